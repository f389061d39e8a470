package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var _ Sink = (*RedisSink)(nil)

// RedisSink publishes each event on the store's channel so every API
// instance can hand it to its own subscribers.
type RedisSink struct{ rdb *redis.Client }

func NewRedisSink(rdb *redis.Client) *RedisSink { return &RedisSink{rdb: rdb} }

func (s *RedisSink) Name() string { return "redis" }

func (s *RedisSink) Send(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, fmt.Sprintf(redisx.KeyStockChannel, ev.StoreID), b).Err()
}

// RedisRelay feeds events published by any instance into the local Hub.
type RedisRelay struct {
	rdb *redis.Client
	hub *Hub
	log *zap.Logger
}

func NewRedisRelay(rdb *redis.Client, hub *Hub, log *zap.Logger) *RedisRelay {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisRelay{rdb: rdb, hub: hub, log: log}
}

// Run blocks until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.rdb.PSubscribe(ctx, redisx.StockChannelPattern)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := DecodeEvent([]byte(msg.Payload))
			if err != nil {
				r.log.Warn("bad stock event on channel", zap.String("channel", msg.Channel), zap.Error(err))
				continue
			}
			_ = r.hub.Send(ctx, ev)
		}
	}
}
