package redisx

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// Idempotency remembers which order a customer's Idempotency-Key produced.
// A claim holds an empty marker until Complete stores the order id.
type Idempotency struct{ rdb *redis.Client }

func NewIdempotency(rdb *redis.Client) *Idempotency {
	if rdb == nil {
		return nil
	}
	return &Idempotency{rdb: rdb}
}

func idemKey(customerID, key string) string {
	return fmt.Sprintf(KeyIdemOrderCreate, customerID, key)
}

// Claim returns claimed=true when the caller should go ahead and purchase.
// Otherwise orderID is the earlier result, or ErrInFlight if there is none yet.
func (i *Idempotency) Claim(ctx context.Context, customerID, key string) (orderID string, claimed bool, err error) {
	k := idemKey(customerID, key)
	ok, err := i.rdb.SetNX(ctx, k, "", TTLInFlight).Result()
	if err != nil {
		return "", false, err
	}
	if ok {
		return "", true, nil
	}
	v, err := i.rdb.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// expired between the two calls; let the caller retry
		return "", false, ErrInFlight
	}
	if err != nil {
		return "", false, err
	}
	if v == "" {
		return "", false, ErrInFlight
	}
	return v, false, nil
}

func (i *Idempotency) Complete(ctx context.Context, customerID, key, orderID string) error {
	return i.rdb.Set(ctx, idemKey(customerID, key), orderID, TTLIdempotency).Err()
}

// Release drops a claim whose purchase failed so the key can be retried.
func (i *Idempotency) Release(ctx context.Context, customerID, key string) error {
	return i.rdb.Del(ctx, idemKey(customerID, key)).Err()
}

// FirstSeen marks an event as processed for service and reports whether this
// is the first time.
func FirstSeen(ctx context.Context, rdb *redis.Client, service, eventID string) (bool, error) {
	return rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, service, eventID), "1", TTLDedup).Result()
}

// Forget undoes FirstSeen for an event whose processing failed, so the
// redelivery is handled again.
func Forget(ctx context.Context, rdb *redis.Client, service, eventID string) error {
	return rdb.Del(ctx, fmt.Sprintf(KeyDedup, service, eventID)).Err()
}
