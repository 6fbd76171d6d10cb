package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/redis/go-redis/v9"
)

// Redis stores each restaurant under <prefix>:restaurant:<id>, the set of IDs
// under <prefix>:restaurants and group lists under <prefix>:group:<key>.
type Redis struct {
	rdb    *redis.Client
	prefix string
}

// NewRedis connects to url (redis://...) and verifies the connection.
func NewRedis(ctx context.Context, url, prefix string) (*Redis, error) {
	if url == "" {
		return nil, errors.New("redis store needs a URL")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close() //nolint:errcheck
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return NewRedisClient(rdb, prefix), nil
}

// NewRedisClient wraps an existing client.
func NewRedisClient(rdb *redis.Client, prefix string) *Redis {
	if prefix == "" {
		prefix = "tokyodine"
	}
	return &Redis{rdb: rdb, prefix: prefix}
}

func (r *Redis) restaurantKey(id string) string { return r.prefix + ":restaurant:" + id }
func (r *Redis) indexKey() string               { return r.prefix + ":restaurants" }
func (r *Redis) groupKey(key string) string     { return r.prefix + ":group:" + key }

// Restaurant returns the stored JSON for id.
func (r *Redis) Restaurant(ctx context.Context, id string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.restaurantKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", id, err)
	}
	return data, nil
}

// PutRestaurant stores data and adds id to the index in one transaction.
func (r *Redis) PutRestaurant(ctx context.Context, id string, data []byte) error {
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Set(ctx, r.restaurantKey(id), data, 0)
		p.SAdd(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put %s: %w", id, err)
	}
	return nil
}

// RestaurantIDs returns the indexed IDs, sorted.
func (r *Redis) RestaurantIDs(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, r.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	slices.Sort(ids)
	return ids, nil
}

// GroupIDs returns the ID list stored for key.
func (r *Redis) GroupIDs(ctx context.Context, key string) ([]string, error) {
	data, err := r.rdb.Get(ctx, r.groupKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get group %s: %w", key, err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("parsing group %s: %w", key, err)
	}
	return ids, nil
}

// PutGroup stores ids as a JSON list under the group key.
func (r *Redis) PutGroup(ctx context.Context, key string, ids []string) error {
	if ids == nil {
		ids = []string{}
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.groupKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("redis put group %s: %w", key, err)
	}
	return nil
}

// Close closes the client.
func (r *Redis) Close() error { return r.rdb.Close() }
