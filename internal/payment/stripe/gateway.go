// Package stripe adapts the Stripe API to the payment provider boundary.
package stripe

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/xenking/coffee-shop/internal/domain/payment"
)

// intentAPI is the subset of the PaymentIntents client used by Gateway.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

var _ payment.Gateway = (*Gateway)(nil)

// Gateway creates and retrieves payment intents.
type Gateway struct {
	intents intentAPI
}

// NewGateway creates a Gateway authenticated with secretKey.
func NewGateway(secretKey string) *Gateway {
	sc := client.New(secretKey, nil)
	return &Gateway{intents: sc.PaymentIntents}
}

// CreateIntent creates a payment intent for the order amount with automatic
// payment methods. The order id is the idempotency key, so repeated calls for
// one order return the same intent.
func (g *Gateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(req.AmountCents),
		Currency: stripe.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(payment.IdempotencyKey(req.OrderID))
	params.AddMetadata(payment.MetadataOrderID, req.OrderID)
	params.AddMetadata(payment.MetadataUserID, req.UserID)

	pi, err := g.intents.New(params)
	if err != nil {
		return nil, &payment.GatewayError{Op: "create intent", Err: err}
	}
	return toIntent(pi), nil
}

// RetrieveIntent fetches an intent by id.
func (g *Gateway) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.intents.Get(id, params)
	if err != nil {
		return nil, &payment.GatewayError{Op: "retrieve intent", Err: err}
	}
	return toIntent(pi), nil
}

func toIntent(pi *stripe.PaymentIntent) *payment.Intent {
	return &payment.Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		Status:       string(pi.Status),
	}
}
