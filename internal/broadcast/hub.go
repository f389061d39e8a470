package broadcast

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

var _ Sink = (*Hub)(nil)

// Hub holds the live subscriptions of this process, grouped by store.
// Nothing is persisted; a subscriber that falls behind loses events.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*Subscription]struct{}
	buf    int
	log    *zap.Logger
	closed bool
}

type Subscription struct {
	StoreID string
	C       <-chan Event

	ch   chan Event
	hub  *Hub
	once sync.Once
}

func NewHub(buf int, log *zap.Logger) *Hub {
	if buf <= 0 {
		buf = 64
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{subs: make(map[string]map[*Subscription]struct{}), buf: buf, log: log}
}

func (h *Hub) Join(storeID string) *Subscription {
	ch := make(chan Event, h.buf)
	s := &Subscription{StoreID: storeID, C: ch, ch: ch, hub: h}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		s.once.Do(func() { close(ch) })
		return s
	}
	if h.subs[storeID] == nil {
		h.subs[storeID] = make(map[*Subscription]struct{})
	}
	h.subs[storeID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

// Leave is idempotent. C is closed afterwards.
func (s *Subscription) Leave() {
	s.once.Do(func() {
		h := s.hub
		h.mu.Lock()
		delete(h.subs[s.StoreID], s)
		if len(h.subs[s.StoreID]) == 0 {
			delete(h.subs, s.StoreID)
		}
		close(s.ch)
		h.mu.Unlock()
	})
}

// Close ends every subscription, which lets open streams return during
// server shutdown. Later joins get an already closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Subscription
	for _, set := range h.subs {
		for s := range set {
			all = append(all, s)
		}
	}
	h.mu.Unlock()
	for _, s := range all {
		s.Leave()
	}
}

func (h *Hub) Subscribers(storeID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[storeID])
}

func (h *Hub) Name() string { return "hub" }

func (h *Hub) Send(_ context.Context, ev Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[ev.StoreID] {
		select {
		case s.ch <- ev:
		default:
			h.log.Debug("slow subscriber, event skipped", zap.String("store_id", ev.StoreID))
		}
	}
	return nil
}
