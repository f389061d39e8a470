package inventory

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps products in a map. One mutex serializes every write, so
// the check-and-decrement is atomic the same way the SQL UPDATE is.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]Product
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]Product), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, id string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p.clone(), nil
}

func (m *MemoryStore) ListByStore(_ context.Context, storeID string, onlyAvailable bool) ([]Product, error) {
	m.mu.Lock()
	out := make([]Product, 0)
	for _, p := range m.products {
		if p.StoreID != storeID || (onlyAvailable && !p.IsAvailable) {
			continue
		}
		out = append(out, p.clone())
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Create(_ context.Context, p Product) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	m.products[p.ID] = p.clone()
	return p.clone(), nil
}

func (m *MemoryStore) update(_ context.Context, id string, edit Edit) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	edit.apply(&p)
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p.clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	delete(m.products, id)
	return p, nil
}

func (m *MemoryStore) decrementIfAvailable(_ context.Context, id string, qty int) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	if !p.IsAvailable || p.Quantity-p.ReservedQuantity < qty {
		return Product{}, classify(p, qty)
	}
	p.Quantity -= qty
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p.clone(), nil
}

func (m *MemoryStore) increment(_ context.Context, id string, qty int) (Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	p.Quantity += qty
	p.UpdatedAt = m.now()
	m.products[id] = p
	return p.clone(), nil
}
