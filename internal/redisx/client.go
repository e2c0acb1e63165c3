package redisx

import (
	"context"
	"errors"
	"github.com/redis/go-redis/v9"
	"strconv"
	"time"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// Cache is a thin key/value view over a client. A missing key is a miss, not an error.
type Cache struct{ R *redis.Client }

func (c Cache) Get(ctx context.Context, key string) (string, bool, error) {
	s, err := c.R.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

func (c Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.R.Set(ctx, key, value, ttl).Err()
}

func (c Cache) Del(ctx context.Context, key string) error {
	return c.R.Del(ctx, key).Err()
}

// Alerts keeps the low-stock hash and consumer dedup markers.
type Alerts struct{ R *redis.Client }

// FirstSeen records key and reports whether this call was the first to do so.
func (a Alerts) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return a.R.SetNX(ctx, key, "1", ttl).Result()
}

// Forget drops a dedup marker so a failed delivery can be retried.
func (a Alerts) Forget(ctx context.Context, key string) error {
	return a.R.Del(ctx, key).Err()
}

func (a Alerts) MarkLow(ctx context.Context, partID int64, payload []byte) error {
	return a.R.HSet(ctx, KeyLowStock, strconv.FormatInt(partID, 10), payload).Err()
}

func (a Alerts) ClearLow(ctx context.Context, partID int64) error {
	return a.R.HDel(ctx, KeyLowStock, strconv.FormatInt(partID, 10)).Err()
}

// LowParts returns the raw payloads keyed by part id.
func (a Alerts) LowParts(ctx context.Context) (map[int64]string, error) {
	raw, err := a.R.HGetAll(ctx, KeyLowStock).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[int64]string, len(raw))
	for k, v := range raw {
		id, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			continue
		}
		out[id] = v
	}
	return out, nil
}
