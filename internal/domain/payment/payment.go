// Package payment describes the payment provider boundary: intent creation,
// intent retrieval and authenticated webhook events.
package payment

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
)

// ErrSignatureInvalid is returned when a webhook payload cannot be
// authenticated, including when no signing secret is configured.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// GatewayError wraps any failure reported by the payment provider.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// IntentRequest holds the input for creating a payment intent for an order.
type IntentRequest struct {
	OrderID     string
	UserID      string
	AmountCents int64
	Currency    string
}

// Intent is the provider-side payment intent as seen by this service.
type Intent struct {
	ID           string
	ClientSecret string
	AmountCents  int64
	Currency     string
	Status       string
}

// Gateway wraps the provider's payment-intent lifecycle.
type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
}

// IdempotencyKey derives the provider idempotency key for an order, so that
// repeated creation calls for the same order resolve to one intent.
func IdempotencyKey(orderID string) string {
	return "pi:" + orderID
}

// Metadata keys attached to every intent for correlation.
const (
	MetadataOrderID = "order_id"
	MetadataUserID  = "user_id"
)
