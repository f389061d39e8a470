package orders

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Repository = (*MemoryRepo)(nil)

type MemoryRepo struct {
	mu     sync.RWMutex
	orders map[string]Order
	now    func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[string]Order), now: time.Now}
}

func (m *MemoryRepo) Create(_ context.Context, o Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.items = o.Items()
	m.orders[o.ID] = o
	return nil
}

func (m *MemoryRepo) Get(_ context.Context, id string) (Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return o, nil
}

func (m *MemoryRepo) UpdateStatus(_ context.Context, id string, from, to Status) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	if o.Status != from {
		return Order{}, errStatusMoved
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return o, nil
}

func (m *MemoryRepo) SetStatus(_ context.Context, id string, to Status) (Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	o.Status = to
	o.UpdatedAt = m.now()
	m.orders[id] = o
	return o, nil
}

func (m *MemoryRepo) ListByCustomer(_ context.Context, customerID string, statuses []Status, limit int) ([]Order, error) {
	return m.list(func(o Order) bool { return o.CustomerID == customerID }, statuses, limit), nil
}

func (m *MemoryRepo) ListByStore(_ context.Context, storeID string, statuses []Status, limit int) ([]Order, error) {
	return m.list(func(o Order) bool { return o.StoreID == storeID }, statuses, limit), nil
}

func (m *MemoryRepo) ListAll(_ context.Context, statuses []Status, limit int) ([]Order, error) {
	return m.list(func(Order) bool { return true }, statuses, limit), nil
}

func (m *MemoryRepo) list(match func(Order) bool, statuses []Status, limit int) []Order {
	m.mu.RLock()
	out := make([]Order, 0)
	for _, o := range m.orders {
		if match(o) && hasStatus(statuses, o.Status) {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func hasStatus(statuses []Status, s Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, x := range statuses {
		if x == s {
			return true
		}
	}
	return false
}
