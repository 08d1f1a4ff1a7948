package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateBookingID returns a human-readable booking identifier,
// e.g. "bkg_1756425600_042913". Uniqueness is enforced by the database;
// callers retry on a duplicate key.
func GenerateBookingID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("bkg_%d_%06d", timestamp, randomNum.Int64())
}

// GenerateReceiptID returns a receipt tag for gateway orders.
func GenerateReceiptID(bookingID string) string {
	return fmt.Sprintf("rcpt_%s", bookingID)
}
