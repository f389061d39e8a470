package broadcast

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/inventory"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const sendTimeout = 2 * time.Second

// Sink delivers events to one transport. Errors are logged by the
// Broadcaster and never reach the publisher.
type Sink interface {
	Name() string
	Send(ctx context.Context, ev Event) error
}

// Broadcaster fans events out to every sink from a single background loop.
// Publish only enqueues; when the inbox is full the event is dropped.
type Broadcaster struct {
	sinks   []Sink
	inbox   chan Event
	closeCh chan struct{}
	log     *zap.Logger
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

func New(buf int, log *zap.Logger, sinks ...Sink) *Broadcaster {
	if buf <= 0 {
		buf = 1024
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Broadcaster{
		sinks:   sinks,
		inbox:   make(chan Event, buf),
		closeCh: make(chan struct{}),
		log:     log,
	}
}

// Start runs the dispatch loop until Close, or until ctx is done. Callers
// that must flush late events pass a ctx that outlives their signal.
func (b *Broadcaster) Start(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			b.Close()
		case <-b.closeCh:
		}
	}()
	go func() {
		defer close(b.closeCh)
		base := context.WithoutCancel(ctx)
		for ev := range b.inbox {
			b.dispatch(base, ev)
		}
	}()
}

func (b *Broadcaster) dispatch(ctx context.Context, ev Event) {
	if ev.span.IsValid() {
		ctx = trace.ContextWithSpanContext(ctx, ev.span)
	}
	for _, s := range b.sinks {
		sctx, cancel := context.WithTimeout(ctx, sendTimeout)
		err := s.Send(sctx, ev)
		cancel()
		if err != nil {
			b.log.Warn("broadcast sink failed",
				zap.String("sink", s.Name()),
				zap.String("store_id", ev.StoreID),
				zap.String("product_id", ev.Key()),
				zap.Error(err))
		}
	}
}

// Publish is safe on a nil Broadcaster and after Close.
func (b *Broadcaster) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	select {
	case b.inbox <- ev:
	default:
		n := b.dropped.Add(1)
		b.log.Warn("broadcast inbox full, event dropped",
			zap.String("store_id", ev.StoreID),
			zap.String("product_id", ev.Key()),
			zap.Uint64("dropped_total", n))
	}
}

func (b *Broadcaster) ProductChanged(ctx context.Context, p inventory.Product) {
	b.Publish(within(ctx, Upsert(p)))
}

func (b *Broadcaster) ProductDeleted(ctx context.Context, storeID, productID string) {
	b.Publish(within(ctx, Delete(storeID, productID)))
}

func (b *Broadcaster) Dropped() uint64 { return b.dropped.Load() }

// Close stops intake. Queued events are still delivered.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.inbox)
	}
}

func (b *Broadcaster) WaitClosed() { <-b.closeCh }
