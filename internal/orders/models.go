package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// Item is the product as it looked when it was bought.
type Item struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Image     string          `json:"image"`
}

func (i Item) LineTotal() decimal.Decimal { return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity))) }

// Order keeps its items private so the snapshot cannot be edited after
// NewOrder. Only Status and UpdatedAt move.
type Order struct {
	ID          string
	CustomerID  string
	StoreID     string
	Status      Status
	TotalAmount decimal.Decimal
	CreatedAt   time.Time
	UpdatedAt   time.Time

	items []Item
}

func NewOrder(id, customerID, storeID string, items []Item, now time.Time) Order {
	snap := append([]Item(nil), items...)
	total := decimal.Zero
	for _, it := range snap {
		total = total.Add(it.LineTotal())
	}
	return Order{
		ID:          id,
		CustomerID:  customerID,
		StoreID:     storeID,
		Status:      StatusPlaced,
		TotalAmount: total,
		CreatedAt:   now,
		UpdatedAt:   now,
		items:       snap,
	}
}

// Items returns a copy of the snapshot.
func (o Order) Items() []Item { return append([]Item(nil), o.items...) }
