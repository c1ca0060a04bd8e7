// Package cartcache stores cart snapshots in Redis.
package cartcache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/greenhouse/internal/domain/cart"
)

// DefaultTTL is how long an untouched cart survives.
const DefaultTTL = 30 * 24 * time.Hour

var _ cart.Snapshots = (*Redis)(nil)

// Redis implements cart.Snapshots with one JSON string per shopper under
// the key cart:<uid>.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New returns a Redis snapshot store. A non-positive ttl selects DefaultTTL.
func New(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// Load implements cart.Snapshots.
func (r *Redis) Load(ctx context.Context, userID string) ([]cart.Entry, error) {
	data, err := r.client.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}

	var entries []cart.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, errors.Wrap(err, "decode cart snapshot")
	}
	return entries, nil
}

// Save implements cart.Snapshots.
func (r *Redis) Save(ctx context.Context, userID string, entries []cart.Entry) error {
	if len(entries) == 0 {
		if err := r.client.Del(ctx, key(userID)).Err(); err != nil {
			return errors.Wrap(err, "redis del")
		}
		return nil
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return errors.Wrap(err, "encode cart snapshot")
	}
	if err := r.client.Set(ctx, key(userID), data, r.ttl).Err(); err != nil {
		return errors.Wrap(err, "redis set")
	}
	return nil
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func key(userID string) string {
	return "cart:" + userID
}
