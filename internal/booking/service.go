package booking

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"ms-rental/internal/booking/db"
	"ms-rental/internal/catalog"
	"ms-rental/internal/config"
	"ms-rental/internal/gateway"
	"ms-rental/internal/logger"
	"ms-rental/internal/models"
	"ms-rental/internal/utils"
)

const createRetries = 3

type DBLayer interface {
	CreateBooking(ctx context.Context, booking models.Booking) error
	GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error)
	GetByBookingIDForUser(ctx context.Context, bookingID, userID string) (*models.Booking, error)
	FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time) ([]models.Booking, error)
	AttachGatewayOrder(ctx context.Context, bookingID, gatewayOrderID string) error
	ConfirmPayment(ctx context.Context, bookingID, paymentID, signature string, verifiedAt time.Time) (bool, error)
	MarkPaymentFailed(ctx context.Context, bookingID string, status models.BookingStatus) (bool, error)
	CancelBooking(ctx context.Context, bookingID, reason string, cancelledAt time.Time) (bool, error)
	DeleteBooking(ctx context.Context, bookingID string) error
	SetVoucher(ctx context.Context, bookingID, voucherQR string) error
	ListByUser(ctx context.Context, userID string, status models.BookingStatus, limit, offset int) ([]models.Booking, error)
}

type HoldLock interface {
	HoldRange(ctx context.Context, vehicleID string, days []string, bookingID string) (bool, error)
	ReleaseRange(ctx context.Context, vehicleID string, days []string, bookingID string) error
}

type VehicleCatalog interface {
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
}

type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (*gateway.Order, error)
	VerifySignature(orderID, paymentID, signature string) bool
}

type EventPublisher interface {
	PublishBookingCreated(booking models.Booking) error
	PublishBookingConfirmed(booking models.Booking) error
	PublishBookingCancelled(booking models.Booking) error
	PublishPaymentFailed(booking models.Booking) error
}

type VoucherGenerator interface {
	GeneratePickupVoucher(booking models.Booking) ([]byte, error)
}

type BookingService struct {
	DB       DBLayer
	Locks    HoldLock
	Catalog  VehicleCatalog
	Gateway  PaymentGateway
	Events   EventPublisher
	Vouchers VoucherGenerator

	cfg      config.BookingConfig
	currency string
	logger   *logger.Logger
	now      func() time.Time
}

func NewBookingService(dbLayer DBLayer, locks HoldLock, cat VehicleCatalog, gw PaymentGateway, events EventPublisher, vouchers VoucherGenerator, cfg config.BookingConfig, currency string, log *logger.Logger) *BookingService {
	return &BookingService{
		DB:       dbLayer,
		Locks:    locks,
		Catalog:  cat,
		Gateway:  gw,
		Events:   events,
		Vouchers: vouchers,
		cfg:      cfg,
		currency: currency,
		logger:   log,
		now:      time.Now,
	}
}

// ---------------- CREATE ORDER ----------------

// PlaceBooking runs the full create-order flow: validation, availability,
// pending persist, gateway order, order-id attach. The one rollback in the
// system lives here: a booking whose gateway order failed is deleted so it
// cannot hold the vehicle's calendar forever.
func (s *BookingService) PlaceBooking(ctx context.Context, userID string, req models.CreateBookingRequest) (*models.CreateBookingResponse, error) {
	start, end, err := ValidateCreateRequest(req, s.now())
	if err != nil {
		return nil, err
	}

	vehicle, err := s.Catalog.FindVehicleByID(ctx, req.VehicleID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, NewProductNotFound(req.VehicleID)
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("vehicle lookup failed: %w", err))
	}

	// The pricing snapshot is recomputed from the catalog rate; a client
	// total that disagrees is rejected, never corrected.
	days := utils.RentalDays(start, end)
	deposit := req.Pricing.SecurityDeposit
	if deposit <= 0 {
		deposit = s.cfg.DefaultSecurityDeposit
	}
	pricing := ComputePricing(vehicle.DailyRate, days, deposit)
	if math.Abs(req.Pricing.Total-pricing.Total) > 0.01 {
		return nil, NewInvalidPricing(fmt.Sprintf(
			"submitted total %.2f does not match computed total %.2f", req.Pricing.Total, pricing.Total))
	}

	bookingID := utils.GenerateBookingID()
	holdDays := utils.DaysCovered(start, end)

	ok, err := s.Locks.HoldRange(ctx, vehicle.ID, holdDays, bookingID)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("hold lock error: %w", err))
	}
	if !ok {
		s.logger.LogBooking("HOLD_DENIED", bookingID, "another request holds part of the range")
		return nil, NewProductUnavailable(nil)
	}

	overlapping, err := s.DB.FindOverlapping(ctx, vehicle.ID, start, end)
	if err != nil {
		_ = s.Locks.ReleaseRange(ctx, vehicle.ID, holdDays, bookingID)
		return nil, NewInternalError(fmt.Errorf("availability check failed: %w", err))
	}
	if len(overlapping) > 0 {
		_ = s.Locks.ReleaseRange(ctx, vehicle.ID, holdDays, bookingID)
		conflicts := make([]models.BookingConflict, len(overlapping))
		for i, b := range overlapping {
			conflicts[i] = models.BookingConflict{
				BookingID: b.BookingID,
				StartDate: b.StartDate,
				EndDate:   b.EndDate,
				Status:    b.Status,
			}
		}
		return nil, NewProductUnavailable(conflicts)
	}

	booking := models.Booking{
		ID:              uuid.NewString(),
		BookingID:       bookingID,
		VehicleID:       vehicle.ID,
		UserID:          userID,
		StartDate:       start,
		EndDate:         end,
		StartTime:       req.StartTime,
		EndTime:         req.EndTime,
		CustomerName:    req.CustomerInfo.FullName,
		CustomerPhone:   req.CustomerInfo.Phone,
		CustomerEmail:   req.CustomerInfo.Email,
		CustomerLicense: req.CustomerInfo.LicenseNumber,
		CustomerAddress: req.CustomerInfo.Address,
		BasePrice:       pricing.BasePrice,
		Subtotal:        pricing.Subtotal,
		Taxes:           pricing.Taxes,
		Insurance:       pricing.Insurance,
		SecurityDeposit: pricing.SecurityDeposit,
		Total:           pricing.Total,
		Status:          models.StatusPending,
		CreatedAt:       s.now().UTC(),
	}

	// Generated booking ids can collide under load; retry with a fresh id.
	for attempt := 0; ; attempt++ {
		err = s.DB.CreateBooking(ctx, booking)
		if err == nil {
			break
		}
		if db.IsDuplicateKey(err) && attempt < createRetries-1 {
			s.logger.LogBooking("ID_COLLISION", booking.BookingID, "regenerating booking id")
			booking.BookingID = utils.GenerateBookingID()
			continue
		}
		_ = s.Locks.ReleaseRange(ctx, vehicle.ID, holdDays, bookingID)
		// A concurrent booking slipped past the redis hold and the SQL
		// recheck; the exclusion constraint is the final word.
		if db.IsExclusionViolation(err) {
			s.logger.LogBooking("EXCLUSION_CONFLICT", booking.BookingID, "overlapping booking won the insert race")
			return nil, NewProductUnavailable(nil)
		}
		return nil, NewInternalError(fmt.Errorf("failed to create booking: %w", err))
	}
	s.logger.LogBooking("CREATED", booking.BookingID, fmt.Sprintf("pending booking for vehicle %s, %s to %s",
		vehicle.ID, req.StartDate, req.EndDate))

	amount := MinorUnits(pricing.Total)
	order, err := s.Gateway.CreateOrder(ctx, amount, s.currency, utils.GenerateReceiptID(booking.BookingID), map[string]interface{}{
		"booking_id": booking.BookingID,
		"vehicle_id": vehicle.ID,
	})
	if err != nil {
		// Compensating action: without a gateway order the pending row is a
		// leaked availability hold.
		s.logger.Error("BOOKING", fmt.Sprintf("Gateway order failed for %s, rolling back booking: %v", booking.BookingID, err))
		if delErr := s.DB.DeleteBooking(ctx, booking.BookingID); delErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("Rollback delete failed for %s: %v", booking.BookingID, delErr))
		}
		_ = s.Locks.ReleaseRange(ctx, vehicle.ID, holdDays, booking.BookingID)
		return nil, NewPaymentGatewayError(err)
	}

	if err := s.DB.AttachGatewayOrder(ctx, booking.BookingID, order.ID); err != nil {
		// A pending row with no stored order id can never be verified, so it
		// would block the calendar until someone noticed. Same compensation as
		// the gateway failure above.
		s.logger.Error("BOOKING", fmt.Sprintf("Attach of gateway order %s failed for %s, rolling back booking: %v", order.ID, booking.BookingID, err))
		if delErr := s.DB.DeleteBooking(ctx, booking.BookingID); delErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("Rollback delete failed for %s: %v", booking.BookingID, delErr))
		}
		_ = s.Locks.ReleaseRange(ctx, vehicle.ID, holdDays, booking.BookingID)
		return nil, NewInternalError(fmt.Errorf("failed to attach gateway order %s: %w", order.ID, err))
	}
	booking.GatewayOrderID = order.ID

	if err := s.Events.PublishBookingCreated(booking); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (booking created): %v", err))
	}

	s.logger.LogBooking("ORDER_ATTACHED", booking.BookingID, fmt.Sprintf("gateway order %s, amount %d %s", order.ID, amount, s.currency))
	return &models.CreateBookingResponse{
		BookingID:      booking.BookingID,
		GatewayOrderID: order.ID,
		Amount:         amount,
		Currency:       s.currency,
		Total:          pricing.Total,
		Status:         string(models.StatusPending),
	}, nil
}

// ---------------- VERIFY PAYMENT ----------------

// VerifyPayment drives the one-way state machine out of pending. Every guard
// that rejects without mutating comes before the first write, and the write
// itself is conditional on status so a concurrent verification loses cleanly.
func (s *BookingService) VerifyPayment(ctx context.Context, userID string, req models.VerifyPaymentRequest) (*models.Booking, error) {
	booking, err := s.DB.GetByBookingIDForUser(ctx, req.BookingID, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NewBookingNotFound(req.BookingID)
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("booking lookup failed: %w", err))
	}

	if booking.Status != models.StatusPending {
		return nil, NewInvalidBookingState(booking.Status)
	}

	// A callback replayed against the wrong booking fails here regardless of
	// signature validity.
	if booking.GatewayOrderID == "" || booking.GatewayOrderID != req.GatewayOrderID {
		s.logger.LogSecurity("ORDER_MISMATCH", fmt.Sprintf("booking %s: callback order %s vs stored %s",
			booking.BookingID, req.GatewayOrderID, booking.GatewayOrderID))
		return nil, NewOrderIdMismatch()
	}

	if !s.Gateway.VerifySignature(req.GatewayOrderID, req.GatewayPaymentID, req.GatewaySignature) {
		s.logger.LogSecurity("BAD_SIGNATURE", fmt.Sprintf("booking %s: signature verification failed", booking.BookingID))
		if _, markErr := s.DB.MarkPaymentFailed(ctx, booking.BookingID, models.StatusPaymentFailed); markErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("Failed to mark %s payment_failed: %v", booking.BookingID, markErr))
		}
		booking.Status = models.StatusPaymentFailed
		s.releaseHolds(ctx, booking)
		if pubErr := s.Events.PublishPaymentFailed(*booking); pubErr != nil {
			s.logger.Error("KAFKA", fmt.Sprintf("Publish error (payment failed): %v", pubErr))
		}
		return nil, NewInvalidSignature()
	}

	verifiedAt := s.now().UTC()
	confirmed, err := s.DB.ConfirmPayment(ctx, booking.BookingID, req.GatewayPaymentID, req.GatewaySignature, verifiedAt)
	if err != nil {
		s.logger.Error("BOOKING", fmt.Sprintf("Confirm update failed for %s: %v", booking.BookingID, err))
		if _, markErr := s.DB.MarkPaymentFailed(ctx, booking.BookingID, models.StatusPaymentVerificationFailed); markErr != nil {
			s.logger.Error("BOOKING", fmt.Sprintf("Failed to mark %s payment_verification_failed: %v", booking.BookingID, markErr))
		}
		s.releaseHolds(ctx, booking)
		return nil, NewInternalError(fmt.Errorf("verification update failed: %w", err))
	}
	if !confirmed {
		// Another request moved the booking out of pending between our read
		// and the conditional update.
		current, readErr := s.DB.GetByBookingID(ctx, booking.BookingID)
		if readErr == nil {
			return nil, NewInvalidBookingState(current.Status)
		}
		return nil, NewInvalidBookingState(booking.Status)
	}

	booking.Status = models.StatusConfirmed
	booking.GatewayPaymentID = req.GatewayPaymentID
	booking.GatewaySignature = req.GatewaySignature
	booking.VerifiedAt = &verifiedAt
	s.logger.LogBooking("CONFIRMED", booking.BookingID, fmt.Sprintf("payment %s verified", req.GatewayPaymentID))

	if s.Vouchers != nil {
		if png, vErr := s.Vouchers.GeneratePickupVoucher(*booking); vErr != nil {
			s.logger.Error("VOUCHER", fmt.Sprintf("Failed to generate voucher for %s: %v", booking.BookingID, vErr))
		} else {
			encoded := base64.StdEncoding.EncodeToString(png)
			if setErr := s.DB.SetVoucher(ctx, booking.BookingID, encoded); setErr != nil {
				s.logger.Error("VOUCHER", fmt.Sprintf("Failed to store voucher for %s: %v", booking.BookingID, setErr))
			} else {
				booking.VoucherQR = encoded
			}
		}
	}

	if err := s.Events.PublishBookingConfirmed(*booking); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (booking confirmed): %v", err))
	}

	return booking, nil
}

// ---------------- CANCEL ----------------

func (s *BookingService) CancelBooking(ctx context.Context, userID, bookingID, reason string) (*models.Booking, error) {
	booking, err := s.DB.GetByBookingIDForUser(ctx, bookingID, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NewBookingNotFound(bookingID)
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("booking lookup failed: %w", err))
	}

	if !booking.Status.IsCancellable() {
		return nil, NewInvalidCancellationState(booking.Status)
	}

	if reason == "" {
		reason = "Cancelled by customer"
	}

	// The cancellation-window fee is observed, not enforced. Logged so the
	// business can size the gap before switching enforcement on.
	if until := booking.StartDate.Sub(s.now()); until >= 0 && until < s.cfg.CancellationWindow {
		s.logger.Warn("BOOKING", fmt.Sprintf("Booking %s cancelled %.1fh before start, inside the %.0fh fee window (fee not enforced)",
			booking.BookingID, until.Hours(), s.cfg.CancellationWindow.Hours()))
	}

	cancelledAt := s.now().UTC()
	ok, err := s.DB.CancelBooking(ctx, booking.BookingID, reason, cancelledAt)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("cancel update failed: %w", err))
	}
	if !ok {
		current, readErr := s.DB.GetByBookingID(ctx, booking.BookingID)
		if readErr == nil {
			return nil, NewInvalidCancellationState(current.Status)
		}
		return nil, NewInvalidCancellationState(booking.Status)
	}

	booking.Status = models.StatusCancelled
	booking.CancelReason = reason
	booking.CancelledAt = &cancelledAt
	s.logger.LogBooking("CANCELLED", booking.BookingID, reason)

	s.releaseHolds(ctx, booking)

	if err := s.Events.PublishBookingCancelled(*booking); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("Publish error (booking cancelled): %v", err))
	}

	return booking, nil
}

// ---------------- READS ----------------

func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID string) (*models.Booking, error) {
	booking, err := s.DB.GetByBookingIDForUser(ctx, bookingID, userID)
	if errors.Is(err, db.ErrNotFound) {
		return nil, NewBookingNotFound(bookingID)
	}
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("booking lookup failed: %w", err))
	}
	return booking, nil
}

func (s *BookingService) ListBookings(ctx context.Context, userID string, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	bookings, err := s.DB.ListByUser(ctx, userID, status, limit, offset)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("booking list failed: %w", err))
	}
	return bookings, nil
}

// GetVoucher returns the pickup-voucher PNG for a confirmed booking,
// generating it on demand when the stored copy is missing.
func (s *BookingService) GetVoucher(ctx context.Context, userID, bookingID string) ([]byte, error) {
	booking, err := s.GetBooking(ctx, userID, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.StatusConfirmed {
		return nil, &DomainError{
			Kind:       KindInvalidBookingState,
			StatusCode: 409,
			Message:    "voucher is only available for confirmed bookings",
		}
	}
	if booking.VoucherQR != "" {
		return base64.StdEncoding.DecodeString(booking.VoucherQR)
	}
	if s.Vouchers == nil {
		return nil, NewInternalError(errors.New("voucher generator not configured"))
	}
	png, err := s.Vouchers.GeneratePickupVoucher(*booking)
	if err != nil {
		return nil, NewInternalError(fmt.Errorf("voucher generation failed: %w", err))
	}
	return png, nil
}

func (s *BookingService) releaseHolds(ctx context.Context, booking *models.Booking) {
	days := utils.DaysCovered(booking.StartDate, booking.EndDate)
	if err := s.Locks.ReleaseRange(ctx, booking.VehicleID, days, booking.BookingID); err != nil {
		s.logger.Error("BOOKING", fmt.Sprintf("Failed to release holds for %s: %v", booking.BookingID, err))
	}
}
