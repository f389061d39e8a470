package broadcast

import (
	"context"
	"encoding/json"

	kafkax "github.com/ariefcatur/go-hyperlocal-orders/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

const (
	HeaderEventType = "x-event-type"
	HeaderStoreID   = "x-store-id"
)

var _ Sink = (*KafkaSink)(nil)

// KafkaSink puts events on the stock topic for consumers outside the API,
// partitioned by product so one product's updates stay in order.
type KafkaSink struct{ p *kafkax.Producer }

func NewKafkaSink(p *kafkax.Producer) *KafkaSink { return &KafkaSink{p: p} }

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Send(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.p.Publish(ctx, []byte(ev.Key()), b,
		kafkago.Header{Key: HeaderEventType, Value: []byte(ev.Type)},
		kafkago.Header{Key: HeaderStoreID, Value: []byte(ev.StoreID)},
	)
}
