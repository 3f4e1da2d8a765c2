package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/coffee-shop/internal/domain/order"
)

const orderColumns = `id, user_id, status, amount_cents, currency,
	COALESCE(payment_intent_id, ''), client_request_id, created_at, updated_at`

const (
	findOrderByTokenSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND client_request_id = $2`

	insertOrderSQL = `INSERT INTO orders
		(id, user_id, status, amount_cents, currency, client_request_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, client_request_id) DO NOTHING
		RETURNING id`

	insertOrderItemSQL = `INSERT INTO order_items
		(order_id, line_no, item_id, name, unit_price_cents, quantity, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	attachIntentSQL = `UPDATE orders SET payment_intent_id = $2, updated_at = now()
		WHERE id = $1 AND (payment_intent_id IS NULL OR payment_intent_id = $2)`

	applyStatusByIDSQL = `UPDATE orders SET
			status = $2,
			payment_intent_id = COALESCE(payment_intent_id, NULLIF($3, '')),
			updated_at = now()
		WHERE id = $1 AND status = ANY($4::text[])
		RETURNING id, status`

	applyStatusByIntentSQL = `UPDATE orders SET status = $2, updated_at = now()
		WHERE payment_intent_id = $1 AND status = ANY($3::text[])
		RETURNING id, status`

	getOrderStatusSQL = `SELECT status FROM orders WHERE id = $1`

	statusByIDSQL     = `SELECT id, status FROM orders WHERE id = $1`
	statusByIntentSQL = `SELECT id, status FROM orders WHERE payment_intent_id = $1`

	getOrderForUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND id = $2`

	getOrderForUserByIntentSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1 AND payment_intent_id = $2`

	listOrderItemsSQL = `SELECT item_id, name, unit_price_cents, quantity, currency
		FROM order_items WHERE order_id = $1 ORDER BY line_no`

	listOrdersByUserSQL = `SELECT ` + orderColumns + `
		FROM orders WHERE user_id = $1
		ORDER BY created_at DESC, id DESC LIMIT $2`

	listOrdersAdminSQL = `SELECT ` + orderColumns + `
		FROM orders
		WHERE ($1 = '' OR status = $1)
		  AND ($2::timestamptz IS NULL OR created_at < $2 OR (created_at = $2 AND id < $4))
		ORDER BY created_at DESC, id DESC LIMIT $3`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// FindByRequestToken returns the order created for (userID, token), without lines.
func (r *OrderRepository) FindByRequestToken(ctx context.Context, userID, token string) (*order.Order, error) {
	return r.queryOne(ctx, findOrderByTokenSQL, userID, token)
}

// CreatePending inserts the order header and its lines in one transaction.
// It returns order.ErrDuplicateRequest when the (user, token) pair is taken.
func (r *OrderRepository) CreatePending(ctx context.Context, o *order.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning order transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, insertOrderSQL,
		o.ID, o.UserID, string(o.Status), o.AmountCents, o.Currency,
		o.RequestToken, o.CreatedAt, o.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.ErrDuplicateRequest
		}
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	batch := &pgx.Batch{}
	for i, l := range o.Lines {
		batch.Queue(insertOrderItemSQL,
			o.ID, i, l.ItemID, l.Name, l.UnitPriceCents, l.Quantity, l.Currency,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting order %q items: %w", o.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// AttachPaymentIntent sets the intent reference when unset or already equal.
func (r *OrderRepository) AttachPaymentIntent(ctx context.Context, orderID, intentID string) error {
	tag, err := r.pool.Exec(ctx, attachIntentSQL, orderID, intentID)
	if err != nil {
		return fmt.Errorf("attaching payment intent to order %q: %w", orderID, err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	if _, err := r.Status(ctx, orderID); err != nil {
		return err
	}
	return fmt.Errorf("order %q already has a different payment intent", orderID)
}

// ApplyStatus performs a conditional update from the allowed source states
// of to. When nothing changes it reports the current status of the match.
func (r *OrderRepository) ApplyStatus(ctx context.Context, m order.Match, to order.Status) (order.Outcome, error) {
	sources := make([]string, 0, 2)
	for _, s := range order.Sources(to) {
		sources = append(sources, string(s))
	}

	var (
		rows    pgx.Rows
		err     error
		current string
		args    []any
	)
	if m.OrderID != "" {
		rows, err = r.pool.Query(ctx, applyStatusByIDSQL, m.OrderID, string(to), m.PaymentIntentID, sources)
		current = statusByIDSQL
		args = []any{m.OrderID}
	} else {
		rows, err = r.pool.Query(ctx, applyStatusByIntentSQL, m.PaymentIntentID, string(to), sources)
		current = statusByIntentSQL
		args = []any{m.PaymentIntentID}
	}
	if err != nil {
		return order.Outcome{}, fmt.Errorf("applying status %q: %w", to, err)
	}

	out, err := pgx.CollectExactlyOneRow(rows, scanOutcome)
	switch {
	case err == nil:
		out.Changed = true
		return out, nil
	case !errors.Is(err, pgx.ErrNoRows):
		return order.Outcome{}, fmt.Errorf("applying status %q: %w", to, err)
	}

	// No transition: either no such order or it is not in a source state.
	rows, err = r.pool.Query(ctx, current, args...)
	if err != nil {
		return order.Outcome{}, fmt.Errorf("reading order status: %w", err)
	}
	out, err = pgx.CollectExactlyOneRow(rows, scanOutcome)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return order.Outcome{}, nil
		}
		return order.Outcome{}, fmt.Errorf("reading order status: %w", err)
	}
	return out, nil
}

// Status returns the stored status of an order.
func (r *OrderRepository) Status(ctx context.Context, orderID string) (order.Status, error) {
	var status string
	err := r.pool.QueryRow(ctx, getOrderStatusSQL, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", order.ErrNotFound
		}
		return "", fmt.Errorf("getting status of order %q: %w", orderID, err)
	}
	return order.Status(status), nil
}

// GetForUser returns the caller's order matched by id or payment intent,
// including its lines.
func (r *OrderRepository) GetForUser(ctx context.Context, userID string, m order.Match) (*order.Order, error) {
	var (
		o   *order.Order
		err error
	)
	if m.OrderID != "" {
		o, err = r.queryOne(ctx, getOrderForUserSQL, userID, m.OrderID)
	} else {
		o, err = r.queryOne(ctx, getOrderForUserByIntentSQL, userID, m.PaymentIntentID)
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, o.ID)
	if err != nil {
		return nil, fmt.Errorf("listing items of order %q: %w", o.ID, err)
	}
	o.Lines, err = pgx.CollectRows(rows, scanOrderLine)
	if err != nil {
		return nil, fmt.Errorf("scanning items of order %q: %w", o.ID, err)
	}
	return o, nil
}

// ListByUser returns the user's newest orders without lines.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, limit int) ([]order.Order, error) {
	return r.queryMany(ctx, listOrdersByUserSQL, userID, limit)
}

// ListAdmin returns orders newest first, filtered by status and paged by a
// created_at cursor.
func (r *OrderRepository) ListAdmin(ctx context.Context, f order.AdminFilter) ([]order.Order, error) {
	var before *time.Time
	if !f.Before.IsZero() {
		before = &f.Before
	}
	return r.queryMany(ctx, listOrdersAdminSQL, string(f.Status), before, f.Limit, f.BeforeID)
}

func (r *OrderRepository) queryOne(ctx context.Context, sql string, args ...any) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying order: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("scanning order: %w", err)
	}
	return &o, nil
}

func (r *OrderRepository) queryMany(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("scanning orders: %w", err)
	}
	return orders, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &status, &o.AmountCents, &o.Currency,
		&o.PaymentIntentID, &o.RequestToken, &o.CreatedAt, &o.UpdatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}

func scanOrderLine(row pgx.CollectableRow) (order.Line, error) {
	var (
		l   order.Line
		qty int32
	)
	err := row.Scan(&l.ItemID, &l.Name, &l.UnitPriceCents, &qty, &l.Currency)
	l.Quantity = int(qty)
	return l, err
}

func scanOutcome(row pgx.CollectableRow) (order.Outcome, error) {
	var (
		out    order.Outcome
		status string
	)
	err := row.Scan(&out.OrderID, &status)
	out.Found = true
	out.Status = order.Status(status)
	return out, err
}
