package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"lectern/internal/observability"

	"github.com/redis/go-redis/v9"
)

func getJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client != nil {
		s, err := client.Get(ctx, key).Bytes()
		switch {
		case err == nil:
			if err := json.Unmarshal(s, dest); err != nil {
				return false, err
			}
			observability.CacheLookups.WithLabelValues("redis", "hit").Inc()
			return true, nil
		case errors.Is(err, redis.Nil):
			observability.CacheLookups.WithLabelValues("redis", "miss").Inc()
			return false, nil
		default:
			slog.WarnContext(ctx, "redis get failed, using local cache", "key", key, "error", err)
		}
	}

	raw, ok := local.get(key)
	if !ok {
		observability.CacheLookups.WithLabelValues("local", "miss").Inc()
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, err
	}
	observability.CacheLookups.WithLabelValues("local", "hit").Inc()
	return true, nil
}

func setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if client != nil {
		if err := client.Set(ctx, key, b, ttl).Err(); err == nil {
			return nil
		}
	}
	local.set(key, b, ttl)
	return nil
}

// Aside reads key into dest from Redis (or the local fallback). On a miss it
// calls fetch, which must populate dest, and stores the result with ttl.
func Aside(ctx context.Context, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := getJSON(ctx, key, dest)
	if err != nil {
		slog.WarnContext(ctx, "cache decode failed, refetching", "key", key, "error", err)
	}
	if found {
		return nil
	}

	if err := fetch(); err != nil {
		return err
	}

	if err := setJSON(ctx, key, dest, ttl); err != nil {
		slog.WarnContext(ctx, "cache store failed", "key", key, "error", err)
	}
	return nil
}

// Invalidate removes keys from Redis and the local fallback.
func Invalidate(ctx context.Context, keys ...string) {
	local.del(keys...)
	if client != nil && len(keys) > 0 {
		if err := client.Del(ctx, keys...).Err(); err != nil {
			slog.WarnContext(ctx, "cache invalidate failed", "keys", keys, "error", err)
		}
	}
}

// InvalidatePrefix removes every key starting with prefix.
func InvalidatePrefix(ctx context.Context, prefix string) {
	local.delPrefix(prefix)
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		slog.WarnContext(ctx, "cache scan failed", "prefix", prefix, "error", err)
		return
	}
	if len(keys) > 0 {
		_ = client.Del(ctx, keys...).Err()
	}
}
