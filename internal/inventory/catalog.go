package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/actor"
	"github.com/ariefcatur/go-hyperlocal-orders/internal/stores"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Notifier receives every product change that subscribers should see.
// Implementations must not block. ctx is only read for its trace.
type Notifier interface {
	ProductChanged(ctx context.Context, p Product)
	ProductDeleted(ctx context.Context, storeID, productID string)
}

// Catalog is the seller-facing product surface. It authorizes against the
// store directory and routes counter edits through the Ledger.
type Catalog struct {
	ledger *Ledger
	store  Store
	dir    stores.Directory
	notify Notifier
	log    *zap.Logger
}

func NewCatalog(ledger *Ledger, store Store, dir stores.Directory, notify Notifier, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{ledger: ledger, store: store, dir: dir, notify: notify, log: log}
}

type Draft struct {
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Category         string          `json:"category"`
	Images           []string        `json:"images"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int             `json:"quantity"`
	ReservedQuantity int             `json:"reservedQuantity"`
	IsAvailable      *bool           `json:"isAvailable"`
}

func (d Draft) validate() error {
	switch {
	case strings.TrimSpace(d.Name) == "":
		return fmt.Errorf("%w: name is required", ErrInvalidProduct)
	case d.Price.IsNegative():
		return fmt.Errorf("%w: price must be >= 0", ErrInvalidProduct)
	case d.Quantity < 0 || d.ReservedQuantity < 0:
		return fmt.Errorf("%w: counters must be >= 0", ErrInvalidQuantity)
	}
	return nil
}

func (c *Catalog) Create(ctx context.Context, a actor.Actor, storeID string, d Draft) (Product, error) {
	if err := c.authorize(ctx, a, storeID); err != nil {
		return Product{}, err
	}
	if err := d.validate(); err != nil {
		return Product{}, err
	}
	available := true
	if d.IsAvailable != nil {
		available = *d.IsAvailable
	}
	p, err := c.store.Create(ctx, Product{
		ID:               uuid.NewString(),
		StoreID:          storeID,
		Name:             strings.TrimSpace(d.Name),
		Description:      d.Description,
		Category:         d.Category,
		Images:           d.Images,
		Price:            d.Price,
		Quantity:         d.Quantity,
		ReservedQuantity: d.ReservedQuantity,
		IsAvailable:      available,
	})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	c.log.Info("product created", zap.String("product_id", p.ID), zap.String("store_id", storeID))
	c.notify.ProductChanged(ctx, p)
	return p, nil
}

func (c *Catalog) Update(ctx context.Context, a actor.Actor, productID string, edit Edit) (Product, error) {
	cur, err := c.store.Get(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if err := c.authorize(ctx, a, cur.StoreID); err != nil {
		return Product{}, err
	}
	p, err := c.ledger.Adjust(ctx, productID, edit)
	if err != nil {
		return Product{}, err
	}
	c.notify.ProductChanged(ctx, p)
	return p, nil
}

// Delete removes the product and tells subscribers to drop it. Restocks that
// arrive later for the same id report ErrNotFound and broadcast nothing.
func (c *Catalog) Delete(ctx context.Context, a actor.Actor, productID string) error {
	cur, err := c.store.Get(ctx, productID)
	if err != nil {
		return err
	}
	if err := c.authorize(ctx, a, cur.StoreID); err != nil {
		return err
	}
	p, err := c.store.Delete(ctx, productID)
	if err != nil {
		return err
	}
	c.log.Info("product deleted", zap.String("product_id", p.ID), zap.String("store_id", p.StoreID))
	c.notify.ProductDeleted(ctx, p.StoreID, p.ID)
	return nil
}

func (c *Catalog) Get(ctx context.Context, productID string) (Product, error) {
	return c.store.Get(ctx, productID)
}

// List returns what a shopper can buy. With all set, the owning seller also
// sees products switched off.
func (c *Catalog) List(ctx context.Context, a actor.Actor, storeID string, all bool) ([]Product, error) {
	if all {
		if err := c.authorize(ctx, a, storeID); err != nil {
			return nil, err
		}
	}
	return c.store.ListByStore(ctx, storeID, !all)
}

func (c *Catalog) authorize(ctx context.Context, a actor.Actor, storeID string) error {
	if a.IsAdmin() {
		return nil
	}
	s, err := c.dir.Get(ctx, storeID)
	if err != nil {
		return err
	}
	if a.Role != actor.RoleSeller || s.SellerID != a.ID {
		return ErrForbidden
	}
	return nil
}
