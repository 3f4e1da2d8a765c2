package order

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
)

// MaxQuantity is the largest quantity accepted on one line. It fits the
// order_items.quantity INT column.
const MaxQuantity = 10_000

// ErrEmptyCart is returned when checkout is attempted with no lines.
var ErrEmptyCart = errors.New("cart is empty")

// ErrAmountTooLarge is returned when a cart total does not fit in int64
// minor units.
var ErrAmountTooLarge = errors.New("order amount is too large")

// ItemNotFoundError indicates a requested menu item does not exist or is
// no longer on sale.
type ItemNotFoundError struct {
	ItemID string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("menu item %s not found", e.ItemID)
}

// InvalidQuantityError indicates a line quantity outside [1, MaxQuantity].
type InvalidQuantityError struct {
	ItemID   string
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be between 1 and %d for item %s", MaxQuantity, e.ItemID)
}

// LineRequest is a client-submitted cart line. Prices are never accepted
// from the client.
type LineRequest struct {
	ItemID   string
	Quantity int
}

// Quote is the server-computed price of a cart.
type Quote struct {
	AmountCents int64
	Currency    string
	Lines       []Line
	// MixedCurrency is set when catalog items disagree on currency. The first
	// line's currency is used regardless.
	MixedCurrency bool
}

// Pricer recomputes cart totals from the catalog.
type Pricer struct {
	catalog catalog.Repository
}

// NewPricer creates a Pricer backed by the given catalog.
func NewPricer(items catalog.Repository) *Pricer {
	return &Pricer{catalog: items}
}

// Quote validates the requested lines and prices them from a single batch
// catalog lookup.
func (p *Pricer) Quote(ctx context.Context, req []LineRequest) (*Quote, error) {
	if len(req) == 0 {
		return nil, ErrEmptyCart
	}

	ids := make([]string, 0, len(req))
	seen := make(map[string]struct{}, len(req))
	for _, l := range req {
		if l.Quantity <= 0 || l.Quantity > MaxQuantity {
			return nil, &InvalidQuantityError{ItemID: l.ItemID, Quantity: l.Quantity}
		}
		if _, ok := seen[l.ItemID]; !ok {
			seen[l.ItemID] = struct{}{}
			ids = append(ids, l.ItemID)
		}
	}

	items, err := p.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get menu items")
	}
	byID := make(map[string]catalog.Item, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	q := &Quote{Lines: make([]Line, 0, len(req))}
	for i, l := range req {
		it, ok := byID[l.ItemID]
		if !ok || !it.Active {
			return nil, &ItemNotFoundError{ItemID: l.ItemID}
		}
		currency := strings.ToLower(it.Currency)
		if i == 0 {
			q.Currency = currency
		} else if currency != q.Currency {
			q.MixedCurrency = true
		}

		line := Line{
			ItemID:         it.ID,
			Name:           it.Name,
			UnitPriceCents: it.PriceCents,
			Quantity:       l.Quantity,
			Currency:       currency,
		}
		if it.PriceCents < 0 || it.PriceCents > math.MaxInt64/int64(l.Quantity) {
			return nil, errors.Wrapf(ErrAmountTooLarge, "item %s", it.ID)
		}
		total := line.Total()
		if q.AmountCents > math.MaxInt64-total {
			return nil, ErrAmountTooLarge
		}
		q.AmountCents += total
		q.Lines = append(q.Lines, line)
	}

	return q, nil
}
