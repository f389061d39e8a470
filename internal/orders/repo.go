package orders

import (
	"context"
	"errors"
	"fmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists orders. There is no way to rewrite items or totals
// once created; status changes go through a compare-and-set.
type Repository interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, error)
	// UpdateStatus moves the order only if it is still in from. The result
	// carries the order row only; items are not read back.
	UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error)
	// SetStatus ignores the current status. Admin override only. Same result
	// shape as UpdateStatus.
	SetStatus(ctx context.Context, id string, to Status) (Order, error)
	ListByCustomer(ctx context.Context, customerID string, statuses []Status, limit int) ([]Order, error)
	ListByStore(ctx context.Context, storeID string, statuses []Status, limit int) ([]Order, error)
	ListAll(ctx context.Context, statuses []Status, limit int) ([]Order, error)
}

var _ Repository = (*Repo)(nil)

type Repo struct{ DB *pgxpool.Pool }

const orderCols = `id, customer_id, store_id, status, total_amount, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	var s string
	err := row.Scan(&o.ID, &o.CustomerID, &o.StoreID, &s, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	o.Status = Status(s)
	return o, err
}

func (r *Repo) Create(ctx context.Context, o Order) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders(id, customer_id, store_id, status, total_amount, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.CustomerID, o.StoreID, string(o.Status), o.TotalAmount, o.CreatedAt, o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for i, it := range o.items {
		_, err = tx.Exec(ctx, `
			INSERT INTO order_items(order_id, line_no, product_id, name, unit_price, qty, image)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			o.ID, i, it.ProductID, it.Name, it.UnitPrice, it.Quantity, it.Image,
		)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *Repo) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, id))
	if err != nil {
		return Order{}, err
	}
	if err := r.loadItems(ctx, []*Order{&o}); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, from, to Status) (Order, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$3, updated_at=now()
		WHERE id=$1 AND status=$2
		RETURNING `+orderCols, id, string(from), string(to)))
	if errors.Is(err, ErrNotFound) {
		// either the order is gone or someone else moved it first
		var exists bool
		if err := r.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id=$1)`, id).Scan(&exists); err != nil {
			return Order{}, err
		}
		if exists {
			return Order{}, errStatusMoved
		}
		return Order{}, ErrNotFound
	}
	return o, err
}

func (r *Repo) SetStatus(ctx context.Context, id string, to Status) (Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1
		RETURNING `+orderCols, id, string(to)))
}

func (r *Repo) ListByCustomer(ctx context.Context, customerID string, statuses []Status, limit int) ([]Order, error) {
	return r.list(ctx, "customer_id", customerID, statuses, limit)
}

func (r *Repo) ListByStore(ctx context.Context, storeID string, statuses []Status, limit int) ([]Order, error) {
	return r.list(ctx, "store_id", storeID, statuses, limit)
}

func (r *Repo) ListAll(ctx context.Context, statuses []Status, limit int) ([]Order, error) {
	return r.list(ctx, "", "", statuses, limit)
}

// col is a fixed column name, never user input. Empty col lists every order.
func (r *Repo) list(ctx context.Context, col, val string, statuses []Status, limit int) ([]Order, error) {
	scope := "$1 = ''"
	if col != "" {
		scope = col + " = $1"
	}
	var filter []string
	if len(statuses) > 0 {
		filter = make([]string, len(statuses))
		for i, s := range statuses {
			filter[i] = string(s)
		}
	}
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE `+scope+` AND ($2::text[] IS NULL OR status = ANY($2))
		ORDER BY created_at DESC
		LIMIT $3`, val, filter, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ptrs := make([]*Order, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) loadItems(ctx context.Context, batch []*Order) error {
	if len(batch) == 0 {
		return nil
	}
	byID := make(map[string]*Order, len(batch))
	ids := make([]string, 0, len(batch))
	for _, o := range batch {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}
	rows, err := r.DB.Query(ctx, `
		SELECT order_id, product_id, name, unit_price, qty, image
		FROM order_items WHERE order_id = ANY($1)
		ORDER BY order_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID string
		var it Item
		if err := rows.Scan(&orderID, &it.ProductID, &it.Name, &it.UnitPrice, &it.Quantity, &it.Image); err != nil {
			return err
		}
		if o := byID[orderID]; o != nil {
			o.items = append(o.items, it)
		}
	}
	return rows.Err()
}
