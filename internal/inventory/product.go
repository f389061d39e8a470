package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type StockStatus string

const (
	OutOfStock StockStatus = "out_of_stock"
	LowStock   StockStatus = "low_stock"
	InStock    StockStatus = "in_stock"
)

// LowStockThreshold is the first available quantity reported as in_stock.
const LowStockThreshold = 10

func DeriveStatus(available int) StockStatus {
	switch {
	case available <= 0:
		return OutOfStock
	case available < LowStockThreshold:
		return LowStock
	default:
		return InStock
	}
}

type Product struct {
	ID               string
	StoreID          string
	Name             string
	Description      string
	Category         string
	Images           []string
	Price            decimal.Decimal
	Quantity         int
	ReservedQuantity int
	IsAvailable      bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// AvailableQuantity is never negative, even if reserved exceeds quantity.
func (p Product) AvailableQuantity() int {
	if a := p.Quantity - p.ReservedQuantity; a > 0 {
		return a
	}
	return 0
}

func (p Product) StockStatus() StockStatus { return DeriveStatus(p.AvailableQuantity()) }

// FirstImage is what an order line snapshots.
func (p Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p Product) clone() Product {
	if p.Images != nil {
		p.Images = append([]string(nil), p.Images...)
	}
	return p
}

// View is the projection sent to clients and subscribers. Derived fields are
// computed at construction and never stored.
type View struct {
	ID                string          `json:"id"`
	StoreID           string          `json:"storeId"`
	Name              string          `json:"name"`
	Description       string          `json:"description"`
	Category          string          `json:"category"`
	Images            []string        `json:"images"`
	Price             decimal.Decimal `json:"price"`
	Quantity          int             `json:"quantity"`
	ReservedQuantity  int             `json:"reservedQuantity"`
	AvailableQuantity int             `json:"availableQuantity"`
	StockStatus       StockStatus     `json:"stockStatus"`
	IsAvailable       bool            `json:"isAvailable"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

func (p Product) View() View {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return View{
		ID:                p.ID,
		StoreID:           p.StoreID,
		Name:              p.Name,
		Description:       p.Description,
		Category:          p.Category,
		Images:            images,
		Price:             p.Price,
		Quantity:          p.Quantity,
		ReservedQuantity:  p.ReservedQuantity,
		AvailableQuantity: p.AvailableQuantity(),
		StockStatus:       p.StockStatus(),
		IsAvailable:       p.IsAvailable,
		CreatedAt:         p.CreatedAt,
		UpdatedAt:         p.UpdatedAt,
	}
}

// Edit is a partial update. Nil fields are left as they are.
type Edit struct {
	Name             *string          `json:"name,omitempty"`
	Description      *string          `json:"description,omitempty"`
	Category         *string          `json:"category,omitempty"`
	Images           *[]string        `json:"images,omitempty"`
	Price            *decimal.Decimal `json:"price,omitempty"`
	Quantity         *int             `json:"quantity,omitempty"`
	ReservedQuantity *int             `json:"reservedQuantity,omitempty"`
	IsAvailable      *bool            `json:"isAvailable,omitempty"`
}

func (e Edit) apply(p *Product) {
	if e.Name != nil {
		p.Name = *e.Name
	}
	if e.Description != nil {
		p.Description = *e.Description
	}
	if e.Category != nil {
		p.Category = *e.Category
	}
	if e.Images != nil {
		p.Images = append([]string(nil), (*e.Images)...)
	}
	if e.Price != nil {
		p.Price = *e.Price
	}
	if e.Quantity != nil {
		p.Quantity = *e.Quantity
	}
	if e.ReservedQuantity != nil {
		p.ReservedQuantity = *e.ReservedQuantity
	}
	if e.IsAvailable != nil {
		p.IsAvailable = *e.IsAvailable
	}
}
