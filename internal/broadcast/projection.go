package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ariefcatur/go-hyperlocal-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
)

// RedisProjection writes the mirrored state of each store into a hash so a
// reconnecting client can load it in one HGETALL.
type RedisProjection struct {
	rdb    *redis.Client
	mirror *Mirror
}

func NewRedisProjection(rdb *redis.Client, mirror *Mirror) *RedisProjection {
	return &RedisProjection{rdb: rdb, mirror: mirror}
}

// Apply is a no-op for events the mirror rejects as stale.
func (p *RedisProjection) Apply(ctx context.Context, ev Event) (bool, error) {
	if !p.mirror.Apply(ev) {
		return false, nil
	}
	key := fmt.Sprintf(redisx.KeyStockView, ev.StoreID)
	if ev.Type == TypeDelete {
		return true, p.rdb.HDel(ctx, key, ev.Key()).Err()
	}
	b, err := json.Marshal(ev.Product)
	if err != nil {
		return true, err
	}
	return true, p.rdb.HSet(ctx, key, ev.Key(), b).Err()
}
