package booking

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-rental/internal/models"
)

// ErrorKind is the machine-checkable category carried on every domain error.
type ErrorKind string

const (
	KindValidation               ErrorKind = "ValidationError"
	KindInvalidDateFormat        ErrorKind = "InvalidDateFormat"
	KindInvalidDateRange         ErrorKind = "InvalidDateRange"
	KindPastStartDate            ErrorKind = "PastStartDate"
	KindInvalidPricing           ErrorKind = "InvalidPricing"
	KindProductNotFound          ErrorKind = "ProductNotFound"
	KindProductUnavailable       ErrorKind = "ProductUnavailable"
	KindPaymentGatewayError      ErrorKind = "PaymentGatewayError"
	KindOrderIdMismatch          ErrorKind = "OrderIdMismatch"
	KindInvalidSignature         ErrorKind = "InvalidSignature"
	KindInvalidBookingState      ErrorKind = "InvalidBookingState"
	KindInvalidCancellationState ErrorKind = "InvalidCancellationState"
	KindBookingNotFound          ErrorKind = "BookingNotFound"
	KindInternal                 ErrorKind = "InternalError"
)

// DomainError splits what the caller may see from what goes to the logs,
// and carries the HTTP status the boundary should answer with.
type DomainError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Fields     []string                 // populated for validation errors
	Conflicts  []models.BookingConflict // populated for availability errors
	Err        error                    // internal cause, never surfaced
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// KindOf extracts the domain kind from an error chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func newError(kind ErrorKind, status int, message string) *DomainError {
	return &DomainError{Kind: kind, StatusCode: status, Message: message}
}

func NewValidationError(missing []string) *DomainError {
	e := newError(KindValidation, http.StatusBadRequest,
		fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")))
	e.Fields = missing
	return e
}

func NewInvalidDateFormat(field string) *DomainError {
	return newError(KindInvalidDateFormat, http.StatusBadRequest,
		fmt.Sprintf("%s is not a valid date, expected YYYY-MM-DD", field))
}

func NewInvalidDateRange() *DomainError {
	return newError(KindInvalidDateRange, http.StatusBadRequest,
		"end date must be after start date")
}

func NewPastStartDate() *DomainError {
	return newError(KindPastStartDate, http.StatusBadRequest,
		"start date must not be in the past")
}

func NewInvalidPricing(message string) *DomainError {
	return newError(KindInvalidPricing, http.StatusBadRequest, message)
}

func NewProductNotFound(vehicleID string) *DomainError {
	return newError(KindProductNotFound, http.StatusNotFound,
		fmt.Sprintf("vehicle %s does not exist", vehicleID))
}

func NewProductUnavailable(conflicts []models.BookingConflict) *DomainError {
	e := newError(KindProductUnavailable, http.StatusConflict,
		"vehicle is not available for the requested dates")
	e.Conflicts = conflicts
	return e
}

func NewPaymentGatewayError(err error) *DomainError {
	e := newError(KindPaymentGatewayError, http.StatusBadGateway,
		"payment gateway order creation failed")
	e.Err = err
	return e
}

func NewOrderIdMismatch() *DomainError {
	return newError(KindOrderIdMismatch, http.StatusBadRequest,
		"gateway order id does not match this booking")
}

func NewInvalidSignature() *DomainError {
	return newError(KindInvalidSignature, http.StatusBadRequest,
		"payment signature verification failed")
}

func NewInvalidBookingState(status models.BookingStatus) *DomainError {
	return newError(KindInvalidBookingState, http.StatusConflict,
		fmt.Sprintf("booking is %s, payment can only be verified while pending", status))
}

func NewInvalidCancellationState(status models.BookingStatus) *DomainError {
	return newError(KindInvalidCancellationState, http.StatusConflict,
		fmt.Sprintf("booking is %s and can no longer be cancelled", status))
}

func NewBookingNotFound(bookingID string) *DomainError {
	return newError(KindBookingNotFound, http.StatusNotFound,
		fmt.Sprintf("booking %s not found", bookingID))
}

func NewInternalError(err error) *DomainError {
	e := newError(KindInternal, http.StatusInternalServerError,
		"internal server error")
	e.Err = err
	return e
}
