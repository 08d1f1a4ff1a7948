package gateway

import (
	"context"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"

	"ms-rental/internal/config"
	"ms-rental/internal/logger"
)

var (
	ErrGatewayAPIError       = errors.New("payment gateway API error")
	ErrGatewayInitFailed     = errors.New("failed to initialize payment gateway client")
	ErrMalformedOrderPayload = errors.New("malformed gateway order payload")
)

// Order is the gateway-side object representing an amount to be collected.
type Order struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
}

// RazorpayGateway wraps the Razorpay SDK behind the interface the booking
// service consumes. Credentials come in via config, never from ambient env.
type RazorpayGateway struct {
	client *razorpay.Client
	secret string
	log    *logger.Logger
}

func NewRazorpayGateway(cfg config.GatewayConfig, log *logger.Logger) (*RazorpayGateway, error) {
	if cfg.KeyID == "" || cfg.KeySecret == "" {
		log.Error("GATEWAY", "Razorpay credentials not configured")
		return nil, ErrGatewayInitFailed
	}

	client := razorpay.NewClient(cfg.KeyID, cfg.KeySecret)

	log.Info("GATEWAY", "Razorpay client initialized")
	return &RazorpayGateway{
		client: client,
		secret: cfg.KeySecret,
		log:    log,
	}, nil
}

// CreateOrder registers an order with the gateway for the given amount in
// minor currency units.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]interface{}) (*Order, error) {
	data := map[string]interface{}{
		"amount":   amountMinorUnits,
		"currency": currency,
		"receipt":  receipt,
	}
	if len(notes) > 0 {
		data["notes"] = notes
	}

	body, err := g.client.Order.Create(data, nil)
	if err != nil {
		g.log.Error("GATEWAY", fmt.Sprintf("Order creation failed for receipt %s: %v", receipt, err))
		return nil, fmt.Errorf("%w: %v", ErrGatewayAPIError, err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		g.log.Error("GATEWAY", fmt.Sprintf("Order response missing id for receipt %s", receipt))
		return nil, ErrMalformedOrderPayload
	}

	g.log.Info("GATEWAY", fmt.Sprintf("Created gateway order %s (%d %s) for receipt %s", orderID, amountMinorUnits, currency, receipt))
	return &Order{
		ID:       orderID,
		Amount:   amountMinorUnits,
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

// VerifySignature validates a checkout callback signature locally.
func (g *RazorpayGateway) VerifySignature(orderID, paymentID, signature string) bool {
	return VerifySignature(orderID, paymentID, signature, g.secret)
}
