package stripe

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/xenking/coffee-shop/internal/domain/payment"
)

var _ payment.Verifier = (*Verifier)(nil)

// Verifier authenticates Stripe webhook deliveries with the endpoint secret.
type Verifier struct {
	secret string
}

// NewVerifier creates a Verifier. An empty secret rejects every delivery.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: secret}
}

// Verify checks the Stripe-Signature header and the timestamp tolerance, then
// decodes the event. Nothing in the payload is read before the check passes.
func (v *Verifier) Verify(_ context.Context, payload []byte, signature string) (payment.Event, error) {
	switch {
	case v.secret == "":
		return payment.Event{}, errors.Wrap(payment.ErrSignatureInvalid, "webhook secret not configured")
	case signature == "":
		return payment.Event{}, errors.Wrap(payment.ErrSignatureInvalid, "missing signature header")
	}

	se, err := webhook.ConstructEventWithOptions(payload, signature, v.secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return payment.Event{}, errors.Wrapf(payment.ErrSignatureInvalid, "%v", err)
	}

	ev := payment.Event{
		ID:      se.ID,
		RawType: string(se.Type),
		Kind:    payment.KindOf(string(se.Type)),
	}
	if ev.Kind == payment.KindIgnored || se.Data == nil {
		return ev, nil
	}

	ev.IntentID, ev.OrderID, err = decodeIntent(se.Data.Raw)
	if err != nil {
		// Authenticated but unreadable: nothing to correlate, treat as ignored.
		ev.Kind = payment.KindIgnored
	}
	return ev, nil
}

// decodeIntent reads the intent id and the order id metadata from a
// payment_intent object.
func decodeIntent(raw []byte) (intentID, orderID string, err error) {
	d := jx.DecodeBytes(raw)
	err = d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "id":
			v, err := d.Str()
			intentID = v
			return err
		case "metadata":
			if d.Next() != jx.Object {
				return d.Skip()
			}
			return d.Obj(func(d *jx.Decoder, key string) error {
				if key != payment.MetadataOrderID || d.Next() != jx.String {
					return d.Skip()
				}
				v, err := d.Str()
				orderID = v
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return "", "", errors.Wrap(err, "decode payment intent")
	}
	return intentID, orderID, nil
}
