package broadcast

import (
	"sort"
	"sync"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
)

// Mirror is a subscriber-side copy of product state. Upserts win on
// updatedAt, ties go to the later arrival. A delete is final: the id is
// tombstoned and later upserts for it are ignored.
type Mirror struct {
	mu       sync.RWMutex
	products map[string]inventory.View
	deleted  map[string]struct{}
}

func NewMirror() *Mirror {
	return &Mirror{products: make(map[string]inventory.View), deleted: make(map[string]struct{})}
}

// Apply reports whether the event changed the mirror.
func (m *Mirror) Apply(ev Event) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Type {
	case TypeDelete:
		id := ev.Key()
		_, had := m.products[id]
		_, gone := m.deleted[id]
		delete(m.products, id)
		m.deleted[id] = struct{}{}
		return had || !gone
	case TypeUpsert:
		if ev.Product == nil {
			return false
		}
		v := *ev.Product
		if _, gone := m.deleted[v.ID]; gone {
			return false
		}
		if cur, ok := m.products[v.ID]; ok && v.UpdatedAt.Before(cur.UpdatedAt) {
			return false
		}
		m.products[v.ID] = v
		return true
	}
	return false
}

func (m *Mirror) Get(productID string) (inventory.View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.products[productID]
	return v, ok
}

// Store lists the mirrored products of one store, newest update first.
func (m *Mirror) Store(storeID string) []inventory.View {
	m.mu.RLock()
	out := make([]inventory.View, 0)
	for _, v := range m.products {
		if v.StoreID == storeID {
			out = append(out, v)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}
