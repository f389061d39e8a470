package inventory

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("github.com/ariefcatur/go-hyperlocal-orders/internal/inventory")

const DefaultMaxPurchaseQty = 99

// Ledger is the only writer of quantity and reservedQuantity.
type Ledger struct {
	store  Store
	maxQty int
	log    *zap.Logger
}

func NewLedger(store Store, maxQty int, log *zap.Logger) *Ledger {
	if maxQty <= 0 {
		maxQty = DefaultMaxPurchaseQty
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{store: store, maxQty: maxQty, log: log}
}

// TryPurchase decrements quantity by qty if and only if the product exists,
// is available and has at least qty units free. reservedQuantity is left as
// is. The returned product is the post-decrement state.
func (l *Ledger) TryPurchase(ctx context.Context, productID string, qty int) (Product, error) {
	ctx, span := tracer.Start(ctx, "ledger.TryPurchase")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("qty", qty))

	if qty < 1 || qty > l.maxQty {
		return Product{}, fmt.Errorf("%w: %d not in [1,%d]", ErrInvalidQuantity, qty, l.maxQty)
	}
	p, err := l.store.decrementIfAvailable(ctx, productID, qty)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Product{}, err
	}
	l.log.Debug("stock decremented",
		zap.String("product_id", productID),
		zap.Int("qty", qty),
		zap.Int("available", p.AvailableQuantity()),
	)
	span.SetStatus(codes.Ok, "")
	return p, nil
}

// Restock puts qty units back. It is not idempotent; callers make sure each
// line item is restocked at most once.
func (l *Ledger) Restock(ctx context.Context, productID string, qty int) (Product, error) {
	ctx, span := tracer.Start(ctx, "ledger.Restock")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID), attribute.Int("qty", qty))

	if qty < 1 {
		return Product{}, fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	p, err := l.store.increment(ctx, productID, qty)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Product{}, err
	}
	return p, nil
}

// Adjust applies a seller edit. Counters are absolute values and must stay
// non-negative.
func (l *Ledger) Adjust(ctx context.Context, productID string, edit Edit) (Product, error) {
	if err := validateEdit(edit); err != nil {
		return Product{}, err
	}
	p, err := l.store.update(ctx, productID, edit)
	if err != nil {
		return Product{}, err
	}
	l.log.Info("product adjusted",
		zap.String("product_id", productID),
		zap.Int("quantity", p.Quantity),
		zap.Int("reserved_quantity", p.ReservedQuantity),
		zap.Bool("is_available", p.IsAvailable),
	)
	return p, nil
}

func validateEdit(e Edit) error {
	if e.Quantity != nil && *e.Quantity < 0 {
		return fmt.Errorf("%w: quantity must be >= 0", ErrInvalidQuantity)
	}
	if e.ReservedQuantity != nil && *e.ReservedQuantity < 0 {
		return fmt.Errorf("%w: reservedQuantity must be >= 0", ErrInvalidQuantity)
	}
	if e.Price != nil && e.Price.IsNegative() {
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidProduct)
	}
	if e.Name != nil && *e.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	}
	return nil
}
