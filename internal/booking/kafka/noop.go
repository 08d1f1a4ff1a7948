package kafka

import "ms-rental/internal/models"

// Noop satisfies the event publisher when Kafka is disabled.
type Noop struct{}

func (Noop) PublishBookingCreated(models.Booking) error   { return nil }
func (Noop) PublishBookingConfirmed(models.Booking) error { return nil }
func (Noop) PublishBookingCancelled(models.Booking) error { return nil }
func (Noop) PublishPaymentFailed(models.Booking) error    { return nil }
