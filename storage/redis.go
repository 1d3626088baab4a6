package storage

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ KV = (*Redis)(nil)

// Redis is a KV implementation backed by a redis client, for hosts where the
// identity state must survive process restarts or be shared between workers.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "identity:"
	}
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[Redis.Get] client.Get")
	}
	return value, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string) error {
	// No TTL: token expiry is tracked by the session manager, not the store.
	if err := r.client.Set(ctx, r.prefix+key, value, 0).Err(); err != nil {
		return errors.Wrap(err, "[Redis.Set] client.Set")
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return errors.Wrap(err, "[Redis.Delete] client.Del")
	}
	return nil
}
