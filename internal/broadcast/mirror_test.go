package broadcast

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMirror_LastWriteWinsOnUpdatedAt(t *testing.T) {
	m := NewMirror()
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	newer := product("s-1", 5)
	newer.UpdatedAt = t0.Add(time.Second)
	older := product("s-1", 9)
	older.UpdatedAt = t0

	if !m.Apply(Upsert(newer)) {
		t.Fatalf("first upsert not applied")
	}
	if m.Apply(Upsert(older)) {
		t.Fatalf("stale upsert applied")
	}
	if v, _ := m.Get("p-1"); v.Quantity != 5 {
		t.Fatalf("mirror quantity: got %d want 5", v.Quantity)
	}

	newest := product("s-1", 12)
	newest.UpdatedAt = t0.Add(2 * time.Second)
	m.Apply(Upsert(newest))
	if v, _ := m.Get("p-1"); v.Quantity != 12 || v.AvailableQuantity != 12 {
		t.Fatalf("mirror after newer upsert: %+v", v)
	}
}

func TestMirror_DeleteIsFinal(t *testing.T) {
	m := NewMirror()
	p := product("s-1", 4)
	m.Apply(Upsert(p))

	if !m.Apply(Delete("s-1", "p-1")) {
		t.Fatalf("delete not applied")
	}
	late := p
	late.UpdatedAt = p.UpdatedAt.Add(time.Hour)
	if m.Apply(Upsert(late)) {
		t.Fatalf("upsert after delete resurrected the product")
	}
	if _, ok := m.Get("p-1"); ok {
		t.Fatalf("deleted product still mirrored")
	}
	if m.Apply(Delete("s-1", "p-1")) {
		t.Fatalf("repeated delete reported a change")
	}
	if len(m.Store("s-1")) != 0 {
		t.Fatalf("store listing not empty")
	}
}

func TestDecodeEvent(t *testing.T) {
	b, err := json.Marshal(Upsert(product("s-1", 2)))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ev, err := DecodeEvent(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Key() != "p-1" || ev.Product.StockStatus != "low_stock" {
		t.Fatalf("decoded: %+v", ev)
	}

	for _, raw := range []string{
		`{"type":"upsert","storeId":"s-1"}`,
		`{"type":"delete","storeId":"s-1"}`,
		`{"type":"patch","storeId":"s-1","productId":"p"}`,
		`{"type":"delete","productId":"p"}`,
		`not json`,
	} {
		if _, err := DecodeEvent([]byte(raw)); err == nil {
			t.Fatalf("accepted malformed event %s", raw)
		}
	}
}
