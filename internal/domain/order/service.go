package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/coffee-shop/internal/domain/payment"
)

// CheckoutRequest holds the input for starting a checkout.
type CheckoutRequest struct {
	UserID string
	Lines  []LineRequest
	// RequestToken is the client-generated idempotency token. When empty a
	// fresh token is generated and the request is not deduplicated.
	RequestToken string
}

// CheckoutResult is returned to the client to complete payment.
type CheckoutResult struct {
	OrderID      string
	ClientSecret string
	// Reused is true when an existing order was returned for the token.
	Reused bool
}

// Service runs the checkout path: pricing, idempotent order creation and
// payment intent creation.
type Service struct {
	pricer  *Pricer
	orders  Repository
	gateway payment.Gateway
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTracerProvider sets the tracer provider used for checkout spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Service) {
		s.tracer = tp.Tracer("github.com/xenking/coffee-shop/internal/domain/order")
	}
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	pricer *Pricer,
	orders Repository,
	gateway payment.Gateway,
	opts ...Option,
) *Service {
	s := &Service{
		pricer:  pricer,
		orders:  orders,
		gateway: gateway,
		tracer:  noop.NewTracerProvider().Tracer(""),
		now:     time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Checkout creates (or returns) the order for the request token and the
// payment intent the client should confirm.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (_ *CheckoutResult, rerr error) {
	ctx, span := s.tracer.Start(ctx, "order.Checkout",
		trace.WithAttributes(attribute.Int("order.lines", len(req.Lines))),
	)
	defer func() {
		if rerr != nil {
			span.RecordError(rerr)
			span.SetStatus(codes.Error, rerr.Error())
		}
		span.End()
	}()

	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if req.RequestToken == "" {
		req.RequestToken = "cli-" + uuid.New().String()
	}

	existing, err := s.orders.FindByRequestToken(ctx, req.UserID, req.RequestToken)
	switch {
	case err == nil:
		return s.resume(ctx, existing)
	case !errors.Is(err, ErrNotFound):
		return nil, errors.Wrap(err, "find order by request token")
	}

	quote, err := s.pricer.Quote(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	lg := zctx.From(ctx)
	if quote.MixedCurrency {
		lg.Warn("Cart mixes currencies, using first line currency",
			zap.String("currency", quote.Currency),
			zap.String("user_id", req.UserID),
		)
	}

	now := s.now().UTC()
	o := &Order{
		ID:           uuid.New().String(),
		UserID:       req.UserID,
		Status:       StatusPending,
		AmountCents:  quote.AmountCents,
		Currency:     quote.Currency,
		RequestToken: req.RequestToken,
		CreatedAt:    now,
		UpdatedAt:    now,
		Lines:        quote.Lines,
	}
	if err := s.orders.CreatePending(ctx, o); err != nil {
		if !errors.Is(err, ErrDuplicateRequest) {
			return nil, errors.Wrap(err, "create order")
		}
		// A concurrent request with the same token won the insert.
		winner, err := s.orders.FindByRequestToken(ctx, req.UserID, req.RequestToken)
		if err != nil {
			return nil, errors.Wrap(err, "find concurrent order")
		}
		return s.resume(ctx, winner)
	}
	span.SetAttributes(attribute.String("order.id", o.ID))
	lg.Info("Order created",
		zap.String("order_id", o.ID),
		zap.Int64("amount_cents", o.AmountCents),
		zap.String("currency", o.Currency),
	)

	return s.createIntent(ctx, o, false)
}

// resume returns the payment handle of an order created by an earlier request.
func (s *Service) resume(ctx context.Context, o *Order) (*CheckoutResult, error) {
	trace.SpanFromContext(ctx).SetAttributes(
		attribute.String("order.id", o.ID),
		attribute.Bool("order.reused", true),
	)
	if o.PaymentIntentID == "" {
		// The earlier request stopped before the intent was recorded. The
		// provider idempotency key resolves this to the same intent.
		return s.createIntent(ctx, o, true)
	}

	intent, err := s.gateway.RetrieveIntent(ctx, o.PaymentIntentID)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve payment intent")
	}
	return &CheckoutResult{
		OrderID:      o.ID,
		ClientSecret: intent.ClientSecret,
		Reused:       true,
	}, nil
}

func (s *Service) createIntent(ctx context.Context, o *Order, reused bool) (*CheckoutResult, error) {
	intent, err := s.gateway.CreateIntent(ctx, payment.IntentRequest{
		OrderID:     o.ID,
		UserID:      o.UserID,
		AmountCents: o.AmountCents,
		Currency:    o.Currency,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}
	if err := s.orders.AttachPaymentIntent(ctx, o.ID, intent.ID); err != nil {
		return nil, errors.Wrap(err, "attach payment intent")
	}
	return &CheckoutResult{
		OrderID:      o.ID,
		ClientSecret: intent.ClientSecret,
		Reused:       reused,
	}, nil
}

// Status returns the current status of an order.
func (s *Service) Status(ctx context.Context, orderID string) (Status, error) {
	return s.orders.Status(ctx, orderID)
}

// Lookup returns the caller's order by id or payment intent.
func (s *Service) Lookup(ctx context.Context, userID string, m Match) (*Order, error) {
	if m.OrderID == "" && m.PaymentIntentID == "" {
		return nil, ErrNotFound
	}
	return s.orders.GetForUser(ctx, userID, m)
}

// History returns the caller's most recent orders.
func (s *Service) History(ctx context.Context, userID string) ([]Order, error) {
	return s.orders.ListByUser(ctx, userID, historyLimit)
}

const (
	historyLimit      = 50
	defaultAdminLimit = 20
	maxAdminLimit     = 100
)

// AdminList returns orders for the admin view, newest first.
func (s *Service) AdminList(ctx context.Context, f AdminFilter) ([]Order, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errors.Wrapf(ErrUnknownStatus, "%q", f.Status)
	}
	f.Limit = AdminPageSize(f.Limit)
	return s.orders.ListAdmin(ctx, f)
}

// AdminPageSize clamps a requested admin page size.
func AdminPageSize(limit int) int {
	switch {
	case limit <= 0:
		return defaultAdminLimit
	case limit > maxAdminLimit:
		return maxAdminLimit
	default:
		return limit
	}
}
