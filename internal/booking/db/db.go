package db

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"ms-rental/internal/models"
)

type DB struct {
	Bun *bun.DB
}

// ErrNotFound is returned when a booking lookup matches nothing.
var ErrNotFound = errors.New("booking not found")

// IsDuplicateKey reports whether an insert failed on the unique booking_id
// index. Matched textually so the same layer works against Postgres and the
// sqlite test dialect.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsExclusionViolation reports whether an insert lost the range-exclusion
// race: Postgres rejected a row overlapping an existing calendar hold.
func IsExclusionViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "violates exclusion constraint")
}

// CreateBooking → insert new booking row
func (d *DB) CreateBooking(ctx context.Context, booking models.Booking) error {
	_, err := d.Bun.NewInsert().Model(&booking).Exec(ctx)
	return err
}

// GetByBookingID → fetch one booking by its public booking id
func (d *DB) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", bookingID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// GetByBookingIDForUser scopes the lookup to the owning user.
func (d *DB) GetByBookingIDForUser(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	var booking models.Booking
	err := d.Bun.NewSelect().
		Model(&booking).
		Where("booking_id = ?", bookingID).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

// FindOverlapping returns bookings holding the vehicle's calendar whose date
// range touches [start, end]. Boundaries are inclusive: a booking ending on
// the requested start day still conflicts.
func (d *DB) FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time) ([]models.Booking, error) {
	var bookings []models.Booking
	err := d.Bun.NewSelect().
		Model(&bookings).
		Where("vehicle_id = ?", vehicleID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.StatusPending, models.StatusConfirmed})).
		Where("start_date <= ?", end).
		Where("end_date >= ?", start).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return bookings, nil
}

// AttachGatewayOrder stores the gateway order id created for a booking.
func (d *DB) AttachGatewayOrder(ctx context.Context, bookingID, gatewayOrderID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("gateway_order_id = ?", gatewayOrderID).
		Set("updated_at = ?", time.Now().UTC()).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return err
}

// ConfirmPayment transitions a booking to confirmed, guarded on the current
// status so a concurrent verification loses cleanly. Returns false when no
// pending row matched.
func (d *DB) ConfirmPayment(ctx context.Context, bookingID, paymentID, signature string, verifiedAt time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.StatusConfirmed).
		Set("gateway_payment_id = ?", paymentID).
		Set("gateway_signature = ?", signature).
		Set("verified_at = ?", verifiedAt).
		Set("updated_at = ?", verifiedAt).
		Where("booking_id = ?", bookingID).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// MarkPaymentFailed records a failed or erroring verification. Same pending
// guard as ConfirmPayment; the row is kept for dispute resolution.
func (d *DB) MarkPaymentFailed(ctx context.Context, bookingID string, status models.BookingStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("booking_id = ?", bookingID).
		Where("status = ?", models.StatusPending).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// CancelBooking transitions to cancelled while the booking is still
// cancellable. Returns false when the status guard did not match.
func (d *DB) CancelBooking(ctx context.Context, bookingID, reason string, cancelledAt time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("status = ?", models.StatusCancelled).
		Set("cancel_reason = ?", reason).
		Set("cancelled_at = ?", cancelledAt).
		Set("updated_at = ?", cancelledAt).
		Where("booking_id = ?", bookingID).
		Where("status IN (?)", bun.In([]models.BookingStatus{models.StatusPending, models.StatusConfirmed})).
		Exec(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

// DeleteBooking removes a booking row. Only the gateway-failure compensation
// path uses this; every other terminal outcome is recorded as status.
func (d *DB) DeleteBooking(ctx context.Context, bookingID string) error {
	_, err := d.Bun.NewDelete().
		Model((*models.Booking)(nil)).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return err
}

// SetVoucher stores the base64 QR voucher generated on confirmation.
func (d *DB) SetVoucher(ctx context.Context, bookingID, voucherQR string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Booking)(nil)).
		Set("voucher_qr = ?", voucherQR).
		Where("booking_id = ?", bookingID).
		Exec(ctx)
	return err
}

// ListByUser returns a user's bookings, newest first, optionally filtered by
// status.
func (d *DB) ListByUser(ctx context.Context, userID string, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	var bookings []models.Booking
	q := d.Bun.NewSelect().
		Model(&bookings).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset)
	if status != "" {
		q = q.Where("status = ?", status)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if bookings == nil {
		bookings = []models.Booking{}
	}
	return bookings, nil
}
