package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Status is the lifecycle state of an order.
type Status string

const (
	// StatusPending is set at creation, before the payment outcome is known.
	StatusPending Status = "pending"
	// StatusPaid is set by the webhook reconciler on a successful payment.
	StatusPaid Status = "paid"
	// StatusFailed is set by the webhook reconciler on a failed payment.
	StatusFailed Status = "failed"
	// StatusRefunded is set by the refund flow, which lives outside this service.
	StatusRefunded Status = "refunded"
)

// transitions lists the permitted source states for each target state.
var transitions = map[Status][]Status{
	StatusPaid:     {StatusPending},
	StatusFailed:   {StatusPending},
	StatusRefunded: {StatusPaid},
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusFailed, StatusRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further webhook-driven transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusFailed || s == StatusRefunded
}

// Sources returns the states from which an order may move to target.
// Re-applying the target itself is always allowed and is a no-op.
func Sources(target Status) []Status {
	return transitions[target]
}

// TransitionError is returned when a status change would break monotonicity.
type TransitionError struct {
	From Status
	To   Status
}

func (e *TransitionError) Error() string {
	return "order status cannot move from " + string(e.From) + " to " + string(e.To)
}

// Transition validates moving from one status to another. It returns
// changed=false without error when from == to.
func Transition(from, to Status) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	for _, src := range transitions[to] {
		if src == from {
			return true, nil
		}
	}
	return false, &TransitionError{From: from, To: to}
}

// Order is a customer order. Amount is always computed server-side.
type Order struct {
	ID              string
	UserID          string
	Status          Status
	AmountCents     int64
	Currency        string
	PaymentIntentID string
	RequestToken    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Lines           []Line
}

// Line is an order line with the catalog name and price captured at
// creation time.
type Line struct {
	ItemID         string
	Name           string
	UnitPriceCents int64
	Quantity       int
	Currency       string
}

// Total returns quantity × unit price.
func (l Line) Total() int64 {
	return int64(l.Quantity) * l.UnitPriceCents
}

// Match selects the order a reconciliation applies to. OrderID is preferred;
// PaymentIntentID is used when the event carries no order correlation.
type Match struct {
	OrderID         string
	PaymentIntentID string
}

// Outcome reports the result of a conditional status update.
type Outcome struct {
	// Found is false when no order matched.
	Found bool
	// Changed is true when the stored status was actually updated.
	Changed bool
	// Status is the stored status after the update attempt.
	Status Status
	// OrderID is the identifier of the matched order.
	OrderID string
}

// AdminFilter selects orders for the admin listing.
type AdminFilter struct {
	Status Status
	// Before and BeforeID form an exclusive (created_at, id) cursor; a zero
	// Before means newest first. An empty BeforeID bounds on created_at only.
	Before   time.Time
	BeforeID string
	Limit    int
}

// ErrNotFound is returned when an order does not exist.
var ErrNotFound = errors.New("order not found")

// ErrUnknownStatus is returned when a filter names a status that does not exist.
var ErrUnknownStatus = errors.New("unknown order status")

// ErrDuplicateRequest is returned by CreatePending when an order with the same
// (user, request token) pair already exists.
var ErrDuplicateRequest = errors.New("order already exists for request token")

// Repository defines persistence for the order ledger.
type Repository interface {
	// FindByRequestToken returns ErrNotFound when no order exists for the pair.
	FindByRequestToken(ctx context.Context, userID, token string) (*Order, error)
	// CreatePending inserts the order and its lines atomically.
	CreatePending(ctx context.Context, o *Order) error
	// AttachPaymentIntent records the intent reference if none is set yet.
	AttachPaymentIntent(ctx context.Context, orderID, intentID string) error
	// ApplyStatus moves the matched order to status if permitted. When
	// m.OrderID is set the order is matched by id and m.PaymentIntentID, if
	// given, fills a missing intent reference.
	ApplyStatus(ctx context.Context, m Match, to Status) (Outcome, error)
	// Status returns ErrNotFound for an unknown id.
	Status(ctx context.Context, orderID string) (Status, error)
	// GetForUser returns an owner-scoped order with lines.
	GetForUser(ctx context.Context, userID string, m Match) (*Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Order, error)
	ListAdmin(ctx context.Context, f AdminFilter) ([]Order, error)
}

// StatusChange is published after a reconciled transition.
type StatusChange struct {
	OrderID         string
	Status          Status
	PaymentIntentID string
	EventID         string
	OccurredAt      time.Time
}

// EventPublisher fans status changes out to downstream consumers.
type EventPublisher interface {
	PublishStatusChange(ctx context.Context, c StatusChange) error
}
