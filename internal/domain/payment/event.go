package payment

import "context"

// EventKind is the closed set of provider events this service reacts to.
type EventKind int

const (
	// KindIgnored covers every provider event type we do not handle.
	KindIgnored EventKind = iota
	// KindSucceeded means the payment intent completed successfully.
	KindSucceeded
	// KindFailed means the payment attempt failed.
	KindFailed
)

func (k EventKind) String() string {
	switch k {
	case KindSucceeded:
		return "succeeded"
	case KindFailed:
		return "failed"
	default:
		return "ignored"
	}
}

// Provider event type names mapped onto EventKind.
const (
	TypeIntentSucceeded = "payment_intent.succeeded"
	TypeIntentFailed    = "payment_intent.payment_failed"
)

// KindOf maps a provider event type onto an EventKind. Unknown types are
// ignored rather than rejected since the provider adds new ones over time.
func KindOf(eventType string) EventKind {
	switch eventType {
	case TypeIntentSucceeded:
		return KindSucceeded
	case TypeIntentFailed:
		return KindFailed
	default:
		return KindIgnored
	}
}

// Event is an authenticated webhook event.
type Event struct {
	ID       string
	Kind     EventKind
	RawType  string
	IntentID string
	// OrderID is taken from intent metadata; empty when the intent carries none.
	OrderID string
}

// Verifier authenticates a raw webhook payload against its signature header
// and only then decodes it.
type Verifier interface {
	Verify(ctx context.Context, payload []byte, signature string) (Event, error)
}
