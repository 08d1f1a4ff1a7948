package kafka

import (
	"context"
	"encoding/json"

	"github.com/segmentio/kafka-go"

	"ms-rental/internal/config"
	"ms-rental/internal/models"
)

type Producer struct {
	Writer *kafka.Writer
	Topics config.TopicConfig
}

func NewProducer(brokers []string, topics config.TopicConfig) *Producer {
	writer := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	return &Producer{Writer: writer, Topics: topics}
}

func (p *Producer) publish(topic string, event models.BookingEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.Writer.WriteMessages(context.Background(),
		kafka.Message{
			Topic: topic,
			Key:   []byte(event.BookingID),
			Value: value,
		},
	)
}

// PublishBookingCreated streams the booking creation event to Kafka
func (p *Producer) PublishBookingCreated(booking models.Booking) error {
	return p.publish(p.Topics.BookingCreated, models.NewBookingEvent(models.EventBookingCreated, booking))
}

// PublishBookingConfirmed streams the payment confirmation event to Kafka
func (p *Producer) PublishBookingConfirmed(booking models.Booking) error {
	return p.publish(p.Topics.BookingConfirmed, models.NewBookingEvent(models.EventBookingConfirmed, booking))
}

// PublishBookingCancelled streams the cancellation event to Kafka
func (p *Producer) PublishBookingCancelled(booking models.Booking) error {
	return p.publish(p.Topics.BookingCancelled, models.NewBookingEvent(models.EventBookingCancelled, booking))
}

// PublishPaymentFailed streams a failed verification event to Kafka
func (p *Producer) PublishPaymentFailed(booking models.Booking) error {
	return p.publish(p.Topics.PaymentFailed, models.NewBookingEvent(models.EventPaymentFailed, booking))
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}
