package metricscache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const defaultRedisNamespace = "folio:"

// Redis cache shared between processes, e.g. the API server and a sampler.
type Redis struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// RedisConfig connection settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	Namespace string
	TTL       time.Duration
}

// NewRedis connects to redis and verifies the connection.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connect to redis")
	}

	return NewRedisWithClient(client, cfg.Namespace, cfg.TTL), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client, namespace string, ttl time.Duration) *Redis {
	if namespace == "" {
		namespace = defaultRedisNamespace
	}

	return &Redis{client: client, namespace: namespace, ttl: ttl}
}

// Get decodes the cached value into dst and reports whether it was found.
func (r *Redis) Get(ctx context.Context, key string, dst any) (bool, error) {
	payload, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}

		return false, errors.Wrapf(err, "redis get %s", key)
	}

	if err := json.Unmarshal(payload, dst); err != nil {
		return false, errors.Wrapf(err, "decode cached %s", key)
	}

	return true, nil
}

// Set stores value under key with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s for cache", key)
	}

	if err := r.client.Set(ctx, r.namespace+key, payload, r.ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}

	return nil
}

// DeletePrefix drops every key under prefix using SCAN.
func (r *Redis) DeletePrefix(ctx context.Context, prefix string) error {
	iter := r.client.Scan(ctx, 0, r.namespace+prefix+"*", 100).Iterator()

	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "redis scan %s", prefix)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return errors.Wrapf(err, "redis delete %s", prefix)
	}

	return nil
}

// Close closes the redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
