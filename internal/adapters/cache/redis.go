package cache

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 500

// RedisBackend stores entries in Redis.
type RedisBackend struct {
	rdb redis.UniversalClient
}

// RedisOptions are the connection settings for NewRedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisBackend connects and pings Redis.
func NewRedisBackend(ctx context.Context, o RedisOptions) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     o.Addr,
		Password: o.Password,
		DB:       o.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return &RedisBackend{rdb: rdb}, nil
}

// NewRedisBackendFromClient wraps an existing client.
func NewRedisBackendFromClient(rdb redis.UniversalClient) *RedisBackend {
	return &RedisBackend{rdb: rdb}
}

func (r *RedisBackend) Name() string { return "redis" }

func (r *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// Keys walks the keyspace with SCAN rather than KEYS to avoid blocking the server.
func (r *RedisBackend) Keys(ctx context.Context, pattern string) ([]string, error) {
	var (
		cursor uint64
		out    []string
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, pattern, scanBatch).Result()
		if err != nil {
			return nil, err
		}
		out = append(out, keys...)
		if next == 0 {
			return out, nil
		}
		cursor = next
	}
}

func (r *RedisBackend) Delete(ctx context.Context, keys ...string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := r.rdb.Del(ctx, keys...).Result()
	return int(n), err
}

func (r *RedisBackend) MemoryUsage(ctx context.Context) (string, error) {
	info, err := r.rdb.Info(ctx, "memory").Result()
	if err != nil {
		return "", err
	}
	return parseUsedMemory(info), nil
}

// Close releases the connection pool.
func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}

func parseUsedMemory(info string) string {
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if v, ok := strings.CutPrefix(line, "used_memory_human:"); ok {
			return v
		}
	}
	return "unknown"
}
