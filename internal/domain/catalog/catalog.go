package catalog

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a requested menu item does not exist.
var ErrNotFound = errors.New("menu item not found")

// Item is a menu entry as stored in the catalog. Prices are in minor units.
type Item struct {
	ID          string
	Name        string
	Description string
	Category    string
	ImageURL    string
	PriceCents  int64
	Currency    string
	Active      bool
}

// Repository defines read operations for the menu catalog.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Item, error)
}

// Writer loads menu items, replacing existing rows with the same id.
type Writer interface {
	Upsert(ctx context.Context, items []Item) (int64, error)
}
