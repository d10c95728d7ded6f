package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	Address  string
	Password string
	DB       int
	// Prefix namespaces every key.
	Prefix string
}

// ErrEmptyAddress is returned when Redis address is not configured.
var ErrEmptyAddress = errors.New("session: redis address is required")

// connectionTimeout is the timeout for verifying Redis connection.
const connectionTimeout = 5 * time.Second

// Redis is a Store shared between processes. Expiry is enforced by Redis.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg Config) (*Redis, error) {
	if cfg.Address == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("session: redis ping failed: %w", err)
	}

	return &Redis{client: client, prefix: cfg.Prefix}, nil
}

// Close releases the connection pool.
func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) key(k string) string { return r.prefix + k }

func (r *Redis) Put(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("session: encode %q: %w", key, err)
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: put %q: %w", key, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string, v any) error {
	return r.read(key, v, r.client.Get(ctx, r.key(key)))
}

func (r *Redis) Take(ctx context.Context, key string, v any) error {
	return r.read(key, v, r.client.GetDel(ctx, r.key(key)))
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	n, err := r.client.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("session: delete %q: %w", key, err)
	}
	if n == 0 {
		return missing(key)
	}
	return nil
}

func (r *Redis) read(key string, v any, cmd *redis.StringCmd) error {
	data, err := cmd.Bytes()
	if errors.Is(err, redis.Nil) {
		return missing(key)
	}
	if err != nil {
		return fmt.Errorf("session: get %q: %w", key, err)
	}
	return decode(key, data, v)
}
