package booking

import (
	"math"

	"ms-rental/internal/models"
)

const (
	taxRate       = 0.18
	insuranceRate = 0.05
)

// ComputePricing builds the frozen pricing snapshot for a rental: subtotal is
// the daily rate times chargeable days, taxes and insurance are rounded
// percentages of the subtotal, and the security deposit is added on top.
func ComputePricing(dailyRate float64, days int, securityDeposit float64) models.PricingInfo {
	subtotal := dailyRate * float64(days)
	taxes := math.Round(subtotal * taxRate)
	insurance := math.Round(subtotal * insuranceRate)
	return models.PricingInfo{
		BasePrice:       dailyRate,
		Subtotal:        subtotal,
		Taxes:           taxes,
		Insurance:       insurance,
		SecurityDeposit: securityDeposit,
		Total:           subtotal + taxes + insurance + securityDeposit,
	}
}

// MinorUnits converts a rupee amount to the gateway's minor currency unit.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
