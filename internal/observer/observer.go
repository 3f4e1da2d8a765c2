// Package observer watches an order until it leaves pending or a poll
// budget runs out. It only reads, so a watch may be abandoned at any time.
package observer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/order"
)

// Defaults match a three second poll for one minute.
const (
	DefaultInterval    = 3 * time.Second
	DefaultMaxAttempts = 20
)

// Source reports the current status of an order. order.ErrNotFound means
// the order is not visible yet.
type Source interface {
	Status(ctx context.Context, orderID string) (order.Status, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, orderID string) (order.Status, error)

// Status calls f.
func (f SourceFunc) Status(ctx context.Context, orderID string) (order.Status, error) {
	return f(ctx, orderID)
}

// Hooks receive watch progress. Both are optional.
type Hooks struct {
	// OnUpdate is called with every status read, pending included.
	OnUpdate func(order.Status)
	// OnSettled is called once when the order leaves pending.
	OnSettled func(order.Status)
}

// Observer polls a Source on a fixed interval with a bounded attempt budget.
type Observer struct {
	Interval    time.Duration
	MaxAttempts int
}

// New returns an Observer, substituting defaults for non-positive values.
func New(interval time.Duration, maxAttempts int) Observer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Observer{Interval: interval, MaxAttempts: maxAttempts}
}

// Watch polls immediately and then every Interval until the order settles
// or MaxAttempts polls were made. It returns the last known status, which is
// pending when the budget ran out; that case is not an error. Fetch errors
// are logged and consume an attempt. Cancelling ctx returns ctx.Err().
func (o Observer) Watch(ctx context.Context, orderID string, src Source, h Hooks) (order.Status, error) {
	lg := zctx.From(ctx).With(zap.String("order_id", orderID))
	last := order.StatusPending

	timer := time.NewTimer(0)
	defer timer.Stop()

	for attempt := 1; attempt <= o.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return last, ctx.Err()
		case <-timer.C:
		}

		status, err := src.Status(ctx, orderID)
		switch {
		case err == nil:
			last = status
			if h.OnUpdate != nil {
				h.OnUpdate(status)
			}
			if status != order.StatusPending {
				if h.OnSettled != nil {
					h.OnSettled(status)
				}
				return status, nil
			}
		case ctx.Err() != nil:
			return last, ctx.Err()
		case errors.Is(err, order.ErrNotFound):
			lg.Debug("Order not visible yet", zap.Int("attempt", attempt))
		default:
			lg.Warn("Status poll failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		timer.Reset(o.Interval)
	}

	lg.Info("Status watch budget exhausted",
		zap.Int("attempts", o.MaxAttempts),
		zap.String("status", string(last)),
	)
	return last, nil
}
