package emulator

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store using Redis. Each entry is a plain string key
// named "<prefix>:{<bucket>}:<key>" with the bucket query-escaped, so it never
// holds ':' or '}' and one bucket's keys share a cluster hash slot.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(config *RedisConfig) (*RedisStore, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         config.Address(),
		Password:     config.Password,
		DB:           config.DB,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		PoolSize:     config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "kvdb"
	}

	return &RedisStore{client: client, prefix: prefix}, nil
}

func (r *RedisStore) redisKey(bucket, key string) string {
	return r.prefix + ":{" + url.QueryEscape(bucket) + "}:" + key
}

// Get retrieves a value from Redis
func (r *RedisStore) Get(ctx context.Context, bucket, key string) (string, error) {
	val, err := r.client.Get(ctx, r.redisKey(bucket, key)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrKeyNotFound
		}
		return "", fmt.Errorf("failed to get key: %w", err)
	}
	return val, nil
}

// Set stores a value in Redis without expiry
func (r *RedisStore) Set(ctx context.Context, bucket, key, value string) error {
	if err := r.client.Set(ctx, r.redisKey(bucket, key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}
	return nil
}

// Incr uses INCRBY, which treats a missing key as 0
func (r *RedisStore) Incr(ctx context.Context, bucket, key string, delta int64) (string, error) {
	n, err := r.client.IncrBy(ctx, r.redisKey(bucket, key), delta).Result()
	if err != nil {
		if strings.Contains(err.Error(), "not an integer") {
			return "", ErrNotNumeric
		}
		return "", fmt.Errorf("failed to increment key: %w", err)
	}
	return strconv.FormatInt(n, 10), nil
}

// Delete removes a value from Redis
func (r *RedisStore) Delete(ctx context.Context, bucket, key string) error {
	result := r.client.Del(ctx, r.redisKey(bucket, key))
	if err := result.Err(); err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	if result.Val() == 0 {
		return ErrKeyNotFound
	}
	return nil
}

// List scans the bucket's keys, orders them and fetches values with MGET
func (r *RedisStore) List(ctx context.Context, bucket string, q ListQuery) ([]Entry, error) {
	base := r.redisKey(bucket, "")
	pattern := escapeGlob(base+q.Prefix) + "*"

	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 500).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), base))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}

	selected := q.apply(keys)
	if len(selected) == 0 {
		return []Entry{}, nil
	}

	full := make([]string, len(selected))
	for i, k := range selected {
		full[i] = base + k
	}
	values, err := r.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get multiple keys: %w", err)
	}

	entries := make([]Entry, 0, len(selected))
	for i, val := range values {
		// deleted between SCAN and MGET
		if val == nil {
			continue
		}
		if s, ok := val.(string); ok {
			entries = append(entries, Entry{Key: selected[i], Value: s})
		}
	}
	return entries, nil
}

// Ping checks if Redis is healthy
func (r *RedisStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// escapeGlob escapes the characters SCAN MATCH treats specially.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
