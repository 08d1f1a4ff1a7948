package voucher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/skip2/go-qrcode"

	"ms-rental/internal/models"
)

// Generator produces the pickup voucher handed to a renter once payment is
// confirmed: the booking details, encrypted, rendered as a QR code the host
// scans at handover.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &Generator{secret: hashed[:]}
}

type voucherPayload struct {
	BookingID   string `json:"booking_id"`
	VehicleID   string `json:"vehicle_id"`
	UserID      string `json:"user_id"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	CustomerDL  string `json:"customer_license"`
	ConfirmedAt string `json:"confirmed_at,omitempty"`
}

// GeneratePickupVoucher returns a QR PNG for a confirmed booking.
func (g *Generator) GeneratePickupVoucher(booking models.Booking) ([]byte, error) {
	payload := voucherPayload{
		BookingID:  booking.BookingID,
		VehicleID:  booking.VehicleID,
		UserID:     booking.UserID,
		StartDate:  booking.StartDate.Format("2006-01-02"),
		EndDate:    booking.EndDate.Format("2006-01-02"),
		CustomerDL: booking.CustomerLicense,
	}
	if booking.VerifiedAt != nil {
		payload.ConfirmedAt = booking.VerifiedAt.UTC().Format("2006-01-02T15:04:05Z")
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	encrypted, err := encryptAES(data, g.secret)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
