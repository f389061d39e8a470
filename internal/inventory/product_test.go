package inventory

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDeriveStatus_Boundaries(t *testing.T) {
	cases := []struct {
		available int
		want      StockStatus
	}{
		{-3, OutOfStock},
		{0, OutOfStock},
		{1, LowStock},
		{9, LowStock},
		{10, InStock},
		{250, InStock},
	}
	for _, c := range cases {
		if got := DeriveStatus(c.available); got != c.want {
			t.Fatalf("DeriveStatus(%d) = %s, want %s", c.available, got, c.want)
		}
	}
}

func TestAvailableQuantity_FloorsAtZero(t *testing.T) {
	p := Product{Quantity: 3, ReservedQuantity: 5}
	if got := p.AvailableQuantity(); got != 0 {
		t.Fatalf("available: got %d want 0", got)
	}
	if p.StockStatus() != OutOfStock {
		t.Fatalf("status: got %s", p.StockStatus())
	}
}

func TestView_DerivesOnRead(t *testing.T) {
	p := Product{ID: "p1", StoreID: "s1", Name: "Mangoes", Price: decimal.RequireFromString("2.50"), Quantity: 12, ReservedQuantity: 2, IsAvailable: true}
	v := p.View()
	if v.AvailableQuantity != 10 || v.StockStatus != InStock {
		t.Fatalf("view: got available=%d status=%s", v.AvailableQuantity, v.StockStatus)
	}
	if v.Images == nil {
		t.Fatalf("images should serialize as [] not null")
	}

	p.ReservedQuantity = 3
	if p.View().StockStatus != LowStock {
		t.Fatalf("status must follow counters, got %s", p.View().StockStatus)
	}
}
