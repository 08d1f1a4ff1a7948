package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-rental/internal/booking"
	bookingdb "ms-rental/internal/booking/db"
	"ms-rental/internal/catalog"
	"ms-rental/internal/config"
	"ms-rental/internal/gateway"
	"ms-rental/internal/logger"
	"ms-rental/internal/models"
)

// Mock implementations

type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) CreateBooking(ctx context.Context, b models.Booking) error {
	args := m.Called(ctx, b)
	return args.Error(0)
}

func (m *MockDBLayer) GetByBookingID(ctx context.Context, bookingID string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) GetByBookingIDForUser(ctx context.Context, bookingID, userID string) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Booking), args.Error(1)
}

func (m *MockDBLayer) FindOverlapping(ctx context.Context, vehicleID string, start, end time.Time) ([]models.Booking, error) {
	args := m.Called(ctx, vehicleID, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

func (m *MockDBLayer) AttachGatewayOrder(ctx context.Context, bookingID, gatewayOrderID string) error {
	args := m.Called(ctx, bookingID, gatewayOrderID)
	return args.Error(0)
}

func (m *MockDBLayer) ConfirmPayment(ctx context.Context, bookingID, paymentID, signature string, verifiedAt time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, paymentID, signature, verifiedAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) MarkPaymentFailed(ctx context.Context, bookingID string, status models.BookingStatus) (bool, error) {
	args := m.Called(ctx, bookingID, status)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) CancelBooking(ctx context.Context, bookingID, reason string, cancelledAt time.Time) (bool, error) {
	args := m.Called(ctx, bookingID, reason, cancelledAt)
	return args.Bool(0), args.Error(1)
}

func (m *MockDBLayer) DeleteBooking(ctx context.Context, bookingID string) error {
	args := m.Called(ctx, bookingID)
	return args.Error(0)
}

func (m *MockDBLayer) SetVoucher(ctx context.Context, bookingID, voucherQR string) error {
	args := m.Called(ctx, bookingID, voucherQR)
	return args.Error(0)
}

func (m *MockDBLayer) ListByUser(ctx context.Context, userID string, status models.BookingStatus, limit, offset int) ([]models.Booking, error) {
	args := m.Called(ctx, userID, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Booking), args.Error(1)
}

type MockHoldLock struct {
	mock.Mock
}

func (m *MockHoldLock) HoldRange(ctx context.Context, vehicleID string, days []string, bookingID string) (bool, error) {
	args := m.Called(ctx, vehicleID, days, bookingID)
	return args.Bool(0), args.Error(1)
}

func (m *MockHoldLock) ReleaseRange(ctx context.Context, vehicleID string, days []string, bookingID string) error {
	args := m.Called(ctx, vehicleID, days, bookingID)
	return args.Error(0)
}

type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (*gateway.Order, error) {
	args := m.Called(ctx, amountMinorUnits, currency, receipt, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Order), args.Error(1)
}

func (m *MockGateway) VerifySignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishBookingCreated(b models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingConfirmed(b models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishBookingCancelled(b models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishPaymentFailed(b models.Booking) error {
	args := m.Called(b)
	return args.Error(0)
}

type MockVoucherGenerator struct {
	mock.Mock
}

func (m *MockVoucherGenerator) GeneratePickupVoucher(b models.Booking) ([]byte, error) {
	args := m.Called(b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

type serviceMocks struct {
	db       *MockDBLayer
	locks    *MockHoldLock
	catalog  *MockCatalog
	gateway  *MockGateway
	events   *MockEventPublisher
	vouchers *MockVoucherGenerator
}

func newTestService() (*booking.BookingService, *serviceMocks) {
	m := &serviceMocks{
		db:       new(MockDBLayer),
		locks:    new(MockHoldLock),
		catalog:  new(MockCatalog),
		gateway:  new(MockGateway),
		events:   new(MockEventPublisher),
		vouchers: new(MockVoucherGenerator),
	}
	cfg := config.BookingConfig{
		DefaultSecurityDeposit: 1000,
		HoldTTL:                15 * time.Minute,
		CancellationWindow:     24 * time.Hour,
	}
	svc := booking.NewBookingService(m.db, m.locks, m.catalog, m.gateway, m.events, m.vouchers, cfg, "INR", logger.NewLogger())
	return svc, m
}

// Dates far enough ahead that the past-start-date rule never interferes.
func placeRequest() models.CreateBookingRequest {
	return models.CreateBookingRequest{
		VehicleID: "veh001",
		StartDate: "2030-05-10",
		EndDate:   "2030-05-12",
		CustomerInfo: &models.CustomerInfo{
			FullName:      "Asha Verma",
			Phone:         "+919876543210",
			Email:         "asha@example.com",
			LicenseNumber: "KA01-2020-0012345",
		},
		Pricing: &models.PricingInfo{
			Total:           4690, // 2 days * 1500 + 540 tax + 150 insurance + 1000 deposit
			SecurityDeposit: 1000,
		},
	}
}

func testVehicle() *models.Vehicle {
	return &models.Vehicle{ID: "veh001", HostID: "host001", Title: "Maruti Swift 2022", DailyRate: 1500, Currency: "INR", Active: true}
}

func pendingBooking() *models.Booking {
	return &models.Booking{
		ID:             "uuid-1",
		BookingID:      "bkg_100_000001",
		VehicleID:      "veh001",
		UserID:         "user1",
		StartDate:      time.Date(2030, 5, 10, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2030, 5, 12, 0, 0, 0, 0, time.UTC),
		GatewayOrderID: "order_abc",
		Total:          4690,
		Status:         models.StatusPending,
	}
}

// ---------------- PlaceBooking ----------------

func TestPlaceBooking_Success(t *testing.T) {
	svc, m := newTestService()
	ctx := context.Background()

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	m.db.On("CreateBooking", mock.Anything, mock.Anything).Return(nil)
	m.gateway.On("CreateOrder", mock.Anything, int64(469000), "INR", mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_test123", Amount: 469000, Currency: "INR"}, nil)
	m.db.On("AttachGatewayOrder", mock.Anything, mock.Anything, "order_test123").Return(nil)
	m.events.On("PublishBookingCreated", mock.Anything).Return(nil)

	resp, err := svc.PlaceBooking(ctx, "user1", placeRequest())
	require.NoError(t, err)

	assert.Equal(t, "order_test123", resp.GatewayOrderID)
	assert.Equal(t, int64(469000), resp.Amount)
	assert.Equal(t, "INR", resp.Currency)
	assert.Equal(t, 4690.0, resp.Total)
	assert.Equal(t, "pending", resp.Status)
	assert.NotEmpty(t, resp.BookingID)

	m.db.AssertCalled(t, "CreateBooking", mock.Anything, mock.MatchedBy(func(b models.Booking) bool {
		return b.Status == models.StatusPending && b.UserID == "user1" && b.Total == 4690
	}))
	m.events.AssertCalled(t, "PublishBookingCreated", mock.Anything)
}

func TestPlaceBooking_ValidationFailsBeforeAnySideEffect(t *testing.T) {
	svc, m := newTestService()

	_, err := svc.PlaceBooking(context.Background(), "user1", models.CreateBookingRequest{})
	assert.Equal(t, booking.KindValidation, booking.KindOf(err))

	m.catalog.AssertNotCalled(t, "FindVehicleByID", mock.Anything, mock.Anything)
	m.db.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestPlaceBooking_VehicleNotFound(t *testing.T) {
	svc, m := newTestService()
	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(nil, catalog.ErrNotFound)

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindProductNotFound, booking.KindOf(err))
}

func TestPlaceBooking_PricingMismatchRejected(t *testing.T) {
	svc, m := newTestService()
	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)

	req := placeRequest()
	req.Pricing.Total = 100 // far from the computed 4690

	_, err := svc.PlaceBooking(context.Background(), "user1", req)
	assert.Equal(t, booking.KindInvalidPricing, booking.KindOf(err))
	m.db.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestPlaceBooking_HoldDenied(t *testing.T) {
	svc, m := newTestService()
	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(false, nil)

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindProductUnavailable, booking.KindOf(err))
	m.db.AssertNotCalled(t, "CreateBooking", mock.Anything, mock.Anything)
}

func TestPlaceBooking_OverlapReturnsConflicts(t *testing.T) {
	svc, m := newTestService()
	existing := models.Booking{
		BookingID: "bkg_existing",
		StartDate: time.Date(2030, 5, 11, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2030, 5, 14, 0, 0, 0, 0, time.UTC),
		Status:    models.StatusConfirmed,
	}

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{existing}, nil)

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindProductUnavailable, booking.KindOf(err))

	var de *booking.DomainError
	require.True(t, errors.As(err, &de))
	require.Len(t, de.Conflicts, 1)
	assert.Equal(t, "bkg_existing", de.Conflicts[0].BookingID)

	// Holds must not linger after a rejection.
	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything)
}

func TestPlaceBooking_GatewayFailureRollsBack(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	m.db.On("CreateBooking", mock.Anything, mock.Anything).Return(nil)
	m.db.On("DeleteBooking", mock.Anything, mock.Anything).Return(nil)
	m.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("gateway down"))

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindPaymentGatewayError, booking.KindOf(err))

	// The pending row would hold the calendar forever; it must be deleted.
	m.db.AssertCalled(t, "DeleteBooking", mock.Anything, mock.Anything)
	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything)
	m.events.AssertNotCalled(t, "PublishBookingCreated", mock.Anything)
}

func TestPlaceBooking_AttachFailureRollsBack(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	m.db.On("CreateBooking", mock.Anything, mock.Anything).Return(nil)
	m.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_orphan"}, nil)
	m.db.On("AttachGatewayOrder", mock.Anything, mock.Anything, "order_orphan").Return(errors.New("connection reset"))
	m.db.On("DeleteBooking", mock.Anything, mock.Anything).Return(nil)

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindInternal, booking.KindOf(err))

	// A pending row without its order id can never be verified, so it must
	// not be left holding the calendar.
	m.db.AssertCalled(t, "DeleteBooking", mock.Anything, mock.Anything)
	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything)
	m.events.AssertNotCalled(t, "PublishBookingCreated", mock.Anything)
}

func TestPlaceBooking_ExclusionConstraintLossIsUnavailable(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	m.db.On("CreateBooking", mock.Anything, mock.Anything).
		Return(errors.New(`conflicting key value violates exclusion constraint "bookings_no_overlap"`))

	_, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	assert.Equal(t, booking.KindProductUnavailable, booking.KindOf(err))

	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, mock.Anything)
	m.gateway.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPlaceBooking_RetriesOnDuplicateBookingID(t *testing.T) {
	svc, m := newTestService()

	m.catalog.On("FindVehicleByID", mock.Anything, "veh001").Return(testVehicle(), nil)
	m.locks.On("HoldRange", mock.Anything, "veh001", mock.Anything, mock.Anything).Return(true, nil)
	m.db.On("FindOverlapping", mock.Anything, "veh001", mock.Anything, mock.Anything).Return([]models.Booking{}, nil)
	m.db.On("CreateBooking", mock.Anything, mock.Anything).
		Return(errors.New(`duplicate key value violates unique constraint "bookings_booking_id_key"`)).Once()
	m.db.On("CreateBooking", mock.Anything, mock.Anything).Return(nil).Once()
	m.gateway.On("CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_retry"}, nil)
	m.db.On("AttachGatewayOrder", mock.Anything, mock.Anything, "order_retry").Return(nil)
	m.events.On("PublishBookingCreated", mock.Anything).Return(nil)

	resp, err := svc.PlaceBooking(context.Background(), "user1", placeRequest())
	require.NoError(t, err)
	assert.Equal(t, "order_retry", resp.GatewayOrderID)
	m.db.AssertNumberOfCalls(t, "CreateBooking", 2)
}

// ---------------- VerifyPayment ----------------

func verifyRequest() models.VerifyPaymentRequest {
	return models.VerifyPaymentRequest{
		BookingID:        "bkg_100_000001",
		GatewayOrderID:   "order_abc",
		GatewayPaymentID: "pay_xyz",
		GatewaySignature: "deadbeef",
	}
}

func TestVerifyPayment_Success(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.gateway.On("VerifySignature", "order_abc", "pay_xyz", "deadbeef").Return(true)
	m.db.On("ConfirmPayment", mock.Anything, "bkg_100_000001", "pay_xyz", "deadbeef", mock.Anything).Return(true, nil)
	m.vouchers.On("GeneratePickupVoucher", mock.Anything).Return([]byte("png-bytes"), nil)
	m.db.On("SetVoucher", mock.Anything, "bkg_100_000001", mock.Anything).Return(nil)
	m.events.On("PublishBookingConfirmed", mock.Anything).Return(nil)

	updated, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	require.NoError(t, err)

	assert.Equal(t, models.StatusConfirmed, updated.Status)
	assert.Equal(t, "pay_xyz", updated.GatewayPaymentID)
	assert.NotNil(t, updated.VerifiedAt)
	m.events.AssertCalled(t, "PublishBookingConfirmed", mock.Anything)
}

func TestVerifyPayment_BookingNotFound(t *testing.T) {
	svc, m := newTestService()
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(nil, bookingdb.ErrNotFound)

	_, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	assert.Equal(t, booking.KindBookingNotFound, booking.KindOf(err))
}

func TestVerifyPayment_AlreadyConfirmedRejected(t *testing.T) {
	svc, m := newTestService()
	confirmed := pendingBooking()
	confirmed.Status = models.StatusConfirmed
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(confirmed, nil)

	_, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	assert.Equal(t, booking.KindInvalidBookingState, booking.KindOf(err))
	m.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_OrderIdMismatch(t *testing.T) {
	svc, m := newTestService()
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)

	req := verifyRequest()
	req.GatewayOrderID = "order_someone_elses"

	_, err := svc.VerifyPayment(context.Background(), "user1", req)
	assert.Equal(t, booking.KindOrderIdMismatch, booking.KindOf(err))
	m.gateway.AssertNotCalled(t, "VerifySignature", mock.Anything, mock.Anything, mock.Anything)
	m.db.AssertNotCalled(t, "MarkPaymentFailed", mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_MissingStoredOrderRejected(t *testing.T) {
	svc, m := newTestService()
	noOrder := pendingBooking()
	noOrder.GatewayOrderID = ""
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(noOrder, nil)

	_, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	assert.Equal(t, booking.KindOrderIdMismatch, booking.KindOf(err))
}

func TestVerifyPayment_BadSignatureMarksFailed(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.gateway.On("VerifySignature", "order_abc", "pay_xyz", "deadbeef").Return(false)
	m.db.On("MarkPaymentFailed", mock.Anything, "bkg_100_000001", models.StatusPaymentFailed).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, "bkg_100_000001").Return(nil)
	m.events.On("PublishPaymentFailed", mock.Anything).Return(nil)

	_, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	assert.Equal(t, booking.KindInvalidSignature, booking.KindOf(err))

	m.db.AssertCalled(t, "MarkPaymentFailed", mock.Anything, "bkg_100_000001", models.StatusPaymentFailed)
	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, "bkg_100_000001")
	m.events.AssertCalled(t, "PublishPaymentFailed", mock.Anything)
	m.db.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestVerifyPayment_LostRaceReportsCurrentState(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.gateway.On("VerifySignature", "order_abc", "pay_xyz", "deadbeef").Return(true)
	// Another request won the conditional update between our read and write.
	m.db.On("ConfirmPayment", mock.Anything, "bkg_100_000001", "pay_xyz", "deadbeef", mock.Anything).Return(false, nil)
	raced := pendingBooking()
	raced.Status = models.StatusConfirmed
	m.db.On("GetByBookingID", mock.Anything, "bkg_100_000001").Return(raced, nil)

	_, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	assert.Equal(t, booking.KindInvalidBookingState, booking.KindOf(err))
	m.events.AssertNotCalled(t, "PublishBookingConfirmed", mock.Anything)
}

func TestVerifyPayment_VoucherFailureDoesNotFailVerification(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.gateway.On("VerifySignature", "order_abc", "pay_xyz", "deadbeef").Return(true)
	m.db.On("ConfirmPayment", mock.Anything, "bkg_100_000001", "pay_xyz", "deadbeef", mock.Anything).Return(true, nil)
	m.vouchers.On("GeneratePickupVoucher", mock.Anything).Return(nil, errors.New("qr encode failed"))
	m.events.On("PublishBookingConfirmed", mock.Anything).Return(nil)

	updated, err := svc.VerifyPayment(context.Background(), "user1", verifyRequest())
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, updated.Status)
	m.db.AssertNotCalled(t, "SetVoucher", mock.Anything, mock.Anything, mock.Anything)
}

// ---------------- CancelBooking ----------------

func TestCancelBooking_DefaultReason(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.db.On("CancelBooking", mock.Anything, "bkg_100_000001", "Cancelled by customer", mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, "bkg_100_000001").Return(nil)
	m.events.On("PublishBookingCancelled", mock.Anything).Return(nil)

	cancelled, err := svc.CancelBooking(context.Background(), "user1", "bkg_100_000001", "")
	require.NoError(t, err)

	assert.Equal(t, models.StatusCancelled, cancelled.Status)
	assert.Equal(t, "Cancelled by customer", cancelled.CancelReason)
	assert.NotNil(t, cancelled.CancelledAt)
	m.locks.AssertCalled(t, "ReleaseRange", mock.Anything, "veh001", mock.Anything, "bkg_100_000001")
	m.events.AssertCalled(t, "PublishBookingCancelled", mock.Anything)
}

func TestCancelBooking_ConfirmedIsCancellable(t *testing.T) {
	svc, m := newTestService()
	confirmed := pendingBooking()
	confirmed.Status = models.StatusConfirmed

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(confirmed, nil)
	m.db.On("CancelBooking", mock.Anything, "bkg_100_000001", "change of plans", mock.Anything).Return(true, nil)
	m.locks.On("ReleaseRange", mock.Anything, "veh001", mock.Anything, "bkg_100_000001").Return(nil)
	m.events.On("PublishBookingCancelled", mock.Anything).Return(nil)

	cancelled, err := svc.CancelBooking(context.Background(), "user1", "bkg_100_000001", "change of plans")
	require.NoError(t, err)
	assert.Equal(t, "change of plans", cancelled.CancelReason)
}

func TestCancelBooking_CompletedRejected(t *testing.T) {
	svc, m := newTestService()
	done := pendingBooking()
	done.Status = models.StatusCompleted
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(done, nil)

	_, err := svc.CancelBooking(context.Background(), "user1", "bkg_100_000001", "")
	assert.Equal(t, booking.KindInvalidCancellationState, booking.KindOf(err))
	m.db.AssertNotCalled(t, "CancelBooking", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelBooking_LostRaceReportsCurrentState(t *testing.T) {
	svc, m := newTestService()

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)
	m.db.On("CancelBooking", mock.Anything, "bkg_100_000001", "Cancelled by customer", mock.Anything).Return(false, nil)
	raced := pendingBooking()
	raced.Status = models.StatusCancelled
	m.db.On("GetByBookingID", mock.Anything, "bkg_100_000001").Return(raced, nil)

	_, err := svc.CancelBooking(context.Background(), "user1", "bkg_100_000001", "")
	assert.Equal(t, booking.KindInvalidCancellationState, booking.KindOf(err))
	m.events.AssertNotCalled(t, "PublishBookingCancelled", mock.Anything)
}

// ---------------- Reads ----------------

func TestListBookings_ClampsLimit(t *testing.T) {
	svc, m := newTestService()
	m.db.On("ListByUser", mock.Anything, "user1", models.BookingStatus(""), 20, 0).Return([]models.Booking{}, nil)

	_, err := svc.ListBookings(context.Background(), "user1", "", 0, -5)
	require.NoError(t, err)
	m.db.AssertCalled(t, "ListByUser", mock.Anything, "user1", models.BookingStatus(""), 20, 0)
}

func TestGetVoucher_PendingRejected(t *testing.T) {
	svc, m := newTestService()
	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(pendingBooking(), nil)

	_, err := svc.GetVoucher(context.Background(), "user1", "bkg_100_000001")
	assert.Equal(t, booking.KindInvalidBookingState, booking.KindOf(err))
}

func TestGetVoucher_RegeneratesWhenNotStored(t *testing.T) {
	svc, m := newTestService()
	confirmed := pendingBooking()
	confirmed.Status = models.StatusConfirmed

	m.db.On("GetByBookingIDForUser", mock.Anything, "bkg_100_000001", "user1").Return(confirmed, nil)
	m.vouchers.On("GeneratePickupVoucher", mock.Anything).Return([]byte("fresh-png"), nil)

	png, err := svc.GetVoucher(context.Background(), "user1", "bkg_100_000001")
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh-png"), png)
}
