package inventory

import "context"

// Store is the durable product record. The counter writes are unexported so
// that outside this package they are only reachable through Ledger.
type Store interface {
	Get(ctx context.Context, id string) (Product, error)
	ListByStore(ctx context.Context, storeID string, onlyAvailable bool) ([]Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Delete(ctx context.Context, id string) (Product, error)

	update(ctx context.Context, id string, edit Edit) (Product, error)
	// decrementIfAvailable subtracts qty from quantity in one conditional
	// write: the row must exist, be available and have at least qty units
	// above reserved. On refusal nothing is written.
	decrementIfAvailable(ctx context.Context, id string, qty int) (Product, error)
	increment(ctx context.Context, id string, qty int) (Product, error)
}

// classify turns a refused decrement into the precise reason.
func classify(p Product, qty int) error {
	if !p.IsAvailable {
		return ErrUnavailable
	}
	return &StockError{ProductID: p.ID, Requested: qty, Available: p.AvailableQuantity()}
}
