package snapshot

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
)

// DefaultRedisKey is the hash holding every bucket.
const DefaultRedisKey = "clinic:state"

// Redis stores buckets as fields of one hash.
type Redis struct {
	client *redis.Client
	key    string
}

// NewRedis connects using a redis:// URL.
func NewRedis(ctx context.Context, url string) (*Redis, error) {
	if url == "" {
		return nil, fmt.Errorf("redis snapshot requires REDIS_URL")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisFromClient(client, DefaultRedisKey), nil
}

// NewRedisFromClient wraps an existing client and stores buckets under key.
func NewRedisFromClient(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

func (r *Redis) Load(ctx context.Context) (map[string][]byte, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, fmt.Errorf("hgetall %s: %w", r.key, err)
	}
	out := make(map[string][]byte, len(fields))
	for k, v := range fields {
		out[k] = []byte(v)
	}
	return out, nil
}

func (r *Redis) Save(ctx context.Context, buckets map[string][]byte) error {
	if len(buckets) == 0 {
		return nil
	}
	values := make([]interface{}, 0, len(buckets)*2)
	for k, v := range buckets {
		values = append(values, k, v)
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.key, values...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("hset %s: %w", r.key, err)
	}
	return nil
}

func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Close() error { return r.client.Close() }
