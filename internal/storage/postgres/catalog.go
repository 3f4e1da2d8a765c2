package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coffee-shop/internal/domain/catalog"
)

const (
	getMenuItemsSQL = `SELECT id, name, description, category, image_url, price_cents, currency, active
		FROM menu_items WHERE id = ANY($1)`

	upsertMenuItemSQL = `INSERT INTO menu_items
		(id, name, description, category, image_url, price_cents, currency, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			image_url = EXCLUDED.image_url,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			active = EXCLUDED.active,
			updated_at = now()`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Writer     = (*CatalogRepository)(nil)
)

// CatalogRepository implements the menu catalog backed by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByIDs returns the items that exist among ids, in no particular order.
// Inactive items are returned; callers decide how to treat them.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Item, error) {
	rows, err := r.pool.Query(ctx, getMenuItemsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("querying menu items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanMenuItem)
	if err != nil {
		return nil, fmt.Errorf("scanning menu items: %w", err)
	}
	return items, nil
}

// Upsert writes items in a single batch and returns the number of rows touched.
func (r *CatalogRepository) Upsert(ctx context.Context, items []catalog.Item) (int64, error) {
	if len(items) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, it := range items {
		batch.Queue(upsertMenuItemSQL,
			it.ID, it.Name, it.Description, it.Category, it.ImageURL,
			it.PriceCents, it.Currency, it.Active,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer func() { _ = br.Close() }()

	var n int64
	for _, it := range items {
		tag, err := br.Exec()
		if err != nil {
			return n, fmt.Errorf("upserting menu item %q: %w", it.ID, err)
		}
		n += tag.RowsAffected()
	}
	return n, nil
}

func scanMenuItem(row pgx.CollectableRow) (catalog.Item, error) {
	var it catalog.Item
	err := row.Scan(
		&it.ID, &it.Name, &it.Description, &it.Category, &it.ImageURL,
		&it.PriceCents, &it.Currency, &it.Active,
	)
	return it, err
}
