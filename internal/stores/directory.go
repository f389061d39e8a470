// Package stores is the read side of the store directory: who sells from a
// store and whether it is currently trading.
package stores

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("store not found")

type Store struct {
	ID       string
	SellerID string
	Name     string
	IsActive bool
}

type Directory interface {
	Get(ctx context.Context, id string) (Store, error)
}

var (
	_ Directory = (*PGDirectory)(nil)
	_ Directory = (*MemoryDirectory)(nil)
)

// PGDirectory caches lookups for a short TTL. Ownership rarely changes and
// every product and order request asks for it.
type PGDirectory struct {
	db    *pgxpool.Pool
	cache *expirable.LRU[string, Store]
}

func NewPGDirectory(db *pgxpool.Pool, ttl time.Duration) *PGDirectory {
	return &PGDirectory{db: db, cache: expirable.NewLRU[string, Store](4096, nil, ttl)}
}

func (d *PGDirectory) Get(ctx context.Context, id string) (Store, error) {
	if s, ok := d.cache.Get(id); ok {
		return s, nil
	}
	var s Store
	err := d.db.QueryRow(ctx, `SELECT id, seller_id, name, is_active FROM stores WHERE id=$1`, id).
		Scan(&s.ID, &s.SellerID, &s.Name, &s.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return Store{}, ErrNotFound
	}
	if err != nil {
		return Store{}, err
	}
	d.cache.Add(id, s)
	return s, nil
}

func (d *PGDirectory) Upsert(ctx context.Context, s Store) error {
	_, err := d.db.Exec(ctx, `
		INSERT INTO stores(id, seller_id, name, is_active) VALUES ($1,$2,$3,$4)
		ON CONFLICT (id) DO UPDATE SET seller_id=EXCLUDED.seller_id, name=EXCLUDED.name, is_active=EXCLUDED.is_active`,
		s.ID, s.SellerID, s.Name, s.IsActive)
	if err == nil {
		d.cache.Remove(s.ID)
	}
	return err
}

type MemoryDirectory struct {
	mu     sync.RWMutex
	stores map[string]Store
}

func NewMemoryDirectory(seed ...Store) *MemoryDirectory {
	d := &MemoryDirectory{stores: make(map[string]Store)}
	for _, s := range seed {
		d.stores[s.ID] = s
	}
	return d
}

func (d *MemoryDirectory) Get(_ context.Context, id string) (Store, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.stores[id]
	if !ok {
		return Store{}, ErrNotFound
	}
	return s, nil
}

func (d *MemoryDirectory) Put(s Store) {
	d.mu.Lock()
	d.stores[s.ID] = s
	d.mu.Unlock()
}
