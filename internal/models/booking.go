package models

import (
	"time"

	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusPending                   BookingStatus = "pending"
	StatusConfirmed                 BookingStatus = "confirmed"
	StatusPaymentFailed             BookingStatus = "payment_failed"
	StatusPaymentVerificationFailed BookingStatus = "payment_verification_failed"
	StatusCancelled                 BookingStatus = "cancelled"
	StatusCompleted                 BookingStatus = "completed"
)

// IsCancellable reports whether a booking in this status may still be
// cancelled by its owner.
func (s BookingStatus) IsCancellable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// HoldsCalendar reports whether a booking in this status blocks the
// vehicle's availability calendar.
func (s BookingStatus) HoldsCalendar() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Booking is the persisted reservation. Customer and pricing fields are
// snapshots frozen at creation time; they are never re-derived from the live
// user profile or vehicle rate.
type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID        string `bun:"id,pk" json:"id"`
	BookingID string `bun:"booking_id,unique,notnull" json:"booking_id"`
	VehicleID string `bun:"vehicle_id,notnull" json:"vehicle_id"`
	UserID    string `bun:"user_id,notnull" json:"user_id"`

	StartDate time.Time `bun:"start_date,notnull" json:"start_date"`
	EndDate   time.Time `bun:"end_date,notnull" json:"end_date"`
	StartTime string    `bun:"start_time,nullzero" json:"start_time,omitempty"`
	EndTime   string    `bun:"end_time,nullzero" json:"end_time,omitempty"`

	CustomerName    string `bun:"customer_name,notnull" json:"customer_name"`
	CustomerPhone   string `bun:"customer_phone,notnull" json:"customer_phone"`
	CustomerEmail   string `bun:"customer_email,notnull" json:"customer_email"`
	CustomerLicense string `bun:"customer_license,notnull" json:"customer_license"`
	CustomerAddress string `bun:"customer_address,nullzero" json:"customer_address,omitempty"`

	BasePrice       float64 `bun:"base_price,notnull" json:"base_price"`
	Subtotal        float64 `bun:"subtotal,notnull" json:"subtotal"`
	Taxes           float64 `bun:"taxes,notnull" json:"taxes"`
	Insurance       float64 `bun:"insurance,notnull" json:"insurance"`
	SecurityDeposit float64 `bun:"security_deposit,notnull" json:"security_deposit"`
	Total           float64 `bun:"total,notnull" json:"total"`

	GatewayOrderID   string     `bun:"gateway_order_id,nullzero" json:"gateway_order_id,omitempty"`
	GatewayPaymentID string     `bun:"gateway_payment_id,nullzero" json:"gateway_payment_id,omitempty"`
	GatewaySignature string     `bun:"gateway_signature,nullzero" json:"-"`
	VerifiedAt       *time.Time `bun:"verified_at,nullzero" json:"verified_at,omitempty"`

	Status BookingStatus `bun:"status,notnull" json:"status"`

	CancelReason string     `bun:"cancel_reason,nullzero" json:"cancel_reason,omitempty"`
	CancelledAt  *time.Time `bun:"cancelled_at,nullzero" json:"cancelled_at,omitempty"`

	VoucherQR string `bun:"voucher_qr,nullzero" json:"-"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,nullzero" json:"updated_at,omitempty"`
}

type CustomerInfo struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number"`
	Address       string `json:"address,omitempty"`
}

type PricingInfo struct {
	BasePrice       float64 `json:"base_price"`
	Subtotal        float64 `json:"subtotal"`
	Taxes           float64 `json:"taxes"`
	Insurance       float64 `json:"insurance"`
	SecurityDeposit float64 `json:"security_deposit"`
	Total           float64 `json:"total"`
}

type CreateBookingRequest struct {
	VehicleID    string        `json:"vehicle_id"`
	StartDate    string        `json:"start_date"`
	EndDate      string        `json:"end_date"`
	StartTime    string        `json:"start_time,omitempty"`
	EndTime      string        `json:"end_time,omitempty"`
	CustomerInfo *CustomerInfo `json:"customer_info"`
	Pricing      *PricingInfo  `json:"pricing"`
}

// CreateBookingResponse is what the caller needs to start a gateway checkout.
type CreateBookingResponse struct {
	BookingID      string  `json:"booking_id"`
	GatewayOrderID string  `json:"gateway_order_id"`
	Amount         int64   `json:"amount"`
	Currency       string  `json:"currency"`
	Total          float64 `json:"total"`
	Status         string  `json:"status"`
}

type VerifyPaymentRequest struct {
	BookingID        string `json:"booking_id"`
	GatewayOrderID   string `json:"gateway_order_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	GatewaySignature string `json:"gateway_signature"`
}

type CancelBookingRequest struct {
	Reason string `json:"reason,omitempty"`
}

// BookingConflict is surfaced to the caller when a requested range overlaps
// an existing hold.
type BookingConflict struct {
	BookingID string        `json:"booking_id"`
	StartDate time.Time     `json:"start_date"`
	EndDate   time.Time     `json:"end_date"`
	Status    BookingStatus `json:"status"`
}
