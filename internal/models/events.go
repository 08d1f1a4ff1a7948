package models

import "time"

// BookingEvent is the payload published to Kafka on lifecycle transitions.
type BookingEvent struct {
	Type      string        `json:"type"`
	BookingID string        `json:"booking_id"`
	VehicleID string        `json:"vehicle_id"`
	UserID    string        `json:"user_id"`
	Status    BookingStatus `json:"status"`
	Total     float64       `json:"total"`
	Timestamp time.Time     `json:"timestamp"`
}

const (
	EventBookingCreated   = "booking.created"
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventPaymentFailed    = "booking.payment_failed"
)

func NewBookingEvent(eventType string, b Booking) BookingEvent {
	return BookingEvent{
		Type:      eventType,
		BookingID: b.BookingID,
		VehicleID: b.VehicleID,
		UserID:    b.UserID,
		Status:    b.Status,
		Total:     b.Total,
		Timestamp: time.Now().UTC(),
	}
}
