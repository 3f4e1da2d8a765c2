package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/payment"
)

// Webhook outcomes, recorded as the "outcome" attribute of the events counter.
const (
	outcomeRejected     = "rejected"
	outcomeIgnored      = "ignored"
	outcomeApplied      = "applied"
	outcomeDuplicate    = "duplicate"
	outcomeSuperseded   = "superseded"
	outcomeUnmatched    = "unmatched"
	outcomeStorageError = "storage_error"
)

// Reconciler applies authenticated payment events to the order ledger.
//
// Delivery is at-least-once with no ordering, so every step is a
// conditional update: replays and superseded events leave the order as is.
// Only authentication failures are reported to the caller; everything else
// is acknowledged so the provider does not redeliver forever.
type Reconciler struct {
	verifier payment.Verifier
	orders   Repository
	events   EventPublisher
	counter  metric.Int64Counter
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithMeterProvider records webhook outcomes on a counter from mp.
func WithMeterProvider(mp metric.MeterProvider) ReconcilerOption {
	return func(r *Reconciler) {
		c, err := mp.Meter("github.com/xenking/coffee-shop/internal/domain/order").Int64Counter(
			"shop.webhook.events",
			metric.WithDescription("Payment webhook events by kind and outcome"),
		)
		if err == nil {
			r.counter = c
		}
	}
}

// NewReconciler creates a Reconciler.
func NewReconciler(
	verifier payment.Verifier,
	orders Repository,
	events EventPublisher,
	opts ...ReconcilerOption,
) *Reconciler {
	c, _ := noop.NewMeterProvider().Meter("").Int64Counter("")
	r := &Reconciler{
		verifier: verifier,
		orders:   orders,
		events:   events,
		counter:  c,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Handle verifies and applies a raw webhook delivery. The returned error is
// always nil or wraps payment.ErrSignatureInvalid.
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) error {
	lg := zctx.From(ctx)

	ev, err := r.verifier.Verify(ctx, payload, signature)
	if err != nil {
		r.record(ctx, payment.KindIgnored, outcomeRejected)
		lg.Warn("Webhook rejected", zap.Error(err))
		if !errors.Is(err, payment.ErrSignatureInvalid) {
			return errors.Wrapf(payment.ErrSignatureInvalid, "%v", err)
		}
		return err
	}

	lg = lg.With(
		zap.String("event_id", ev.ID),
		zap.String("event_type", ev.RawType),
		zap.String("payment_intent_id", ev.IntentID),
		zap.String("order_id", ev.OrderID),
	)

	var target Status
	switch ev.Kind {
	case payment.KindSucceeded:
		target = StatusPaid
	case payment.KindFailed:
		target = StatusFailed
	default:
		r.record(ctx, ev.Kind, outcomeIgnored)
		lg.Debug("Webhook event ignored")
		return nil
	}

	out, err := r.apply(ctx, ev, target)
	if err != nil {
		// Redelivery by the provider covers transient storage errors.
		r.record(ctx, ev.Kind, outcomeStorageError)
		lg.Error("Webhook order update failed", zap.Error(err))
		return nil
	}

	switch {
	case !out.Found:
		r.record(ctx, ev.Kind, outcomeUnmatched)
		lg.Warn("Webhook event matched no order")
	case !out.Changed && out.Status == target:
		r.record(ctx, ev.Kind, outcomeDuplicate)
		lg.Info("Webhook event already applied", zap.String("status", string(out.Status)))
	case !out.Changed:
		r.record(ctx, ev.Kind, outcomeSuperseded)
		lg.Warn("Webhook event superseded by settled order",
			zap.String("status", string(out.Status)),
			zap.String("target", string(target)),
		)
	default:
		r.record(ctx, ev.Kind, outcomeApplied)
		lg.Info("Order status reconciled",
			zap.String("matched_order_id", out.OrderID),
			zap.String("status", string(out.Status)),
		)
		r.publish(ctx, lg, ev, out)
	}
	return nil
}

// apply prefers the order id from intent metadata and falls back to the
// payment intent reference.
func (r *Reconciler) apply(ctx context.Context, ev payment.Event, target Status) (Outcome, error) {
	if ev.OrderID != "" {
		out, err := r.orders.ApplyStatus(ctx, Match{OrderID: ev.OrderID, PaymentIntentID: ev.IntentID}, target)
		if err != nil || out.Found {
			return out, err
		}
	}
	if ev.IntentID == "" {
		return Outcome{}, nil
	}
	return r.orders.ApplyStatus(ctx, Match{PaymentIntentID: ev.IntentID}, target)
}

func (r *Reconciler) publish(ctx context.Context, lg *zap.Logger, ev payment.Event, out Outcome) {
	if r.events == nil {
		return
	}
	err := r.events.PublishStatusChange(ctx, StatusChange{
		OrderID:         out.OrderID,
		Status:          out.Status,
		PaymentIntentID: ev.IntentID,
		EventID:         ev.ID,
		OccurredAt:      r.now().UTC(),
	})
	if err != nil {
		lg.Error("Publish order status change", zap.Error(err))
	}
}

func (r *Reconciler) record(ctx context.Context, kind payment.EventKind, outcome string) {
	r.counter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind.String()),
		attribute.String("outcome", outcome),
	))
}
