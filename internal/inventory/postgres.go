package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*PGStore)(nil)

type PGStore struct{ DB *pgxpool.Pool }

func NewPGStore(db *pgxpool.Pool) *PGStore { return &PGStore{DB: db} }

const productCols = `id, store_id, name, description, category, images, price,
	quantity, reserved_quantity, is_available, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.StoreID, &p.Name, &p.Description, &p.Category, &p.Images, &p.Price,
		&p.Quantity, &p.ReservedQuantity, &p.IsAvailable, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrNotFound
	}
	return p, err
}

func (s *PGStore) Get(ctx context.Context, id string) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1`, id))
}

func (s *PGStore) ListByStore(ctx context.Context, storeID string, onlyAvailable bool) ([]Product, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+productCols+` FROM products
		WHERE store_id=$1 AND ($2 = FALSE OR is_available)
		ORDER BY created_at DESC`, storeID, onlyAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PGStore) Create(ctx context.Context, p Product) (Product, error) {
	if p.Images == nil {
		p.Images = []string{}
	}
	return scanProduct(s.DB.QueryRow(ctx, `
		INSERT INTO products(id, store_id, name, description, category, images, price,
		                     quantity, reserved_quantity, is_available)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING `+productCols,
		p.ID, p.StoreID, p.Name, p.Description, p.Category, p.Images, p.Price,
		p.Quantity, p.ReservedQuantity, p.IsAvailable,
	))
}

// update locks the row, applies the edit and writes every column back, so a
// concurrent purchase either lands before the lock or sees the new counters.
func (s *PGStore) update(ctx context.Context, id string, edit Edit) (Product, error) {
	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Product{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p, err := scanProduct(tx.QueryRow(ctx, `SELECT `+productCols+` FROM products WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return Product{}, err
	}
	edit.apply(&p)
	if p.Images == nil {
		p.Images = []string{}
	}

	p, err = scanProduct(tx.QueryRow(ctx, `
		UPDATE products SET name=$2, description=$3, category=$4, images=$5, price=$6,
		       quantity=$7, reserved_quantity=$8, is_available=$9, updated_at=clock_timestamp()
		WHERE id=$1
		RETURNING `+productCols,
		id, p.Name, p.Description, p.Category, p.Images, p.Price,
		p.Quantity, p.ReservedQuantity, p.IsAvailable,
	))
	if err != nil {
		return Product{}, fmt.Errorf("update product: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Product{}, err
	}
	return p, nil
}

func (s *PGStore) Delete(ctx context.Context, id string) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `DELETE FROM products WHERE id=$1 RETURNING `+productCols, id))
}

func (s *PGStore) decrementIfAvailable(ctx context.Context, id string, qty int) (Product, error) {
	p, err := scanProduct(s.DB.QueryRow(ctx, `
		UPDATE products SET quantity = quantity - $2, updated_at = clock_timestamp()
		WHERE id = $1 AND is_available AND quantity - reserved_quantity >= $2
		RETURNING `+productCols, id, qty))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Product{}, err
	}

	// no row updated: read once more only to explain why
	cur, err := s.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	return Product{}, classify(cur, qty)
}

func (s *PGStore) increment(ctx context.Context, id string, qty int) (Product, error) {
	return scanProduct(s.DB.QueryRow(ctx, `
		UPDATE products SET quantity = quantity + $2, updated_at = clock_timestamp()
		WHERE id = $1
		RETURNING `+productCols, id, qty))
}
