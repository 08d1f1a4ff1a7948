package booking

import (
	"time"

	"ms-rental/internal/models"
	"ms-rental/internal/utils"
)

// ValidateCreateRequest runs the pure, deterministic request checks. No
// database or network access happens here; "now" is injected so the past-date
// rule is testable. Returns the parsed date range on success.
func ValidateCreateRequest(req models.CreateBookingRequest, now time.Time) (time.Time, time.Time, error) {
	var missing []string

	if req.VehicleID == "" {
		missing = append(missing, "vehicle_id")
	}
	if req.StartDate == "" {
		missing = append(missing, "start_date")
	}
	if req.EndDate == "" {
		missing = append(missing, "end_date")
	}
	if req.CustomerInfo == nil {
		missing = append(missing, "customer_info")
	} else {
		if req.CustomerInfo.FullName == "" {
			missing = append(missing, "customer_info.full_name")
		}
		if req.CustomerInfo.Phone == "" {
			missing = append(missing, "customer_info.phone")
		}
		if req.CustomerInfo.Email == "" {
			missing = append(missing, "customer_info.email")
		}
		if req.CustomerInfo.LicenseNumber == "" {
			missing = append(missing, "customer_info.license_number")
		}
	}
	if req.Pricing == nil {
		missing = append(missing, "pricing")
	} else {
		if req.Pricing.Total == 0 {
			missing = append(missing, "pricing.total")
		}
		if req.Pricing.SecurityDeposit == 0 {
			missing = append(missing, "pricing.security_deposit")
		}
	}
	if len(missing) > 0 {
		return time.Time{}, time.Time{}, NewValidationError(missing)
	}

	start, err := utils.ParseDate(req.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, NewInvalidDateFormat("start_date")
	}
	end, err := utils.ParseDate(req.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, NewInvalidDateFormat("end_date")
	}

	// End must be strictly after start; a same-day rental is rejected.
	if !end.After(start) {
		return time.Time{}, time.Time{}, NewInvalidDateRange()
	}

	// Parsed dates are UTC midnight; normalize "now" to the same zone so a
	// booking starting today is accepted regardless of the server's locale.
	if start.Before(utils.StartOfDay(now.UTC())) {
		return time.Time{}, time.Time{}, NewPastStartDate()
	}

	if req.Pricing.Total <= 0 {
		return time.Time{}, time.Time{}, NewInvalidPricing("pricing total must be a positive amount")
	}

	return start, end, nil
}
