package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "todomon:"
	maxUpdateRetries = 5
)

// Redis stores each todo as a JSON string and keeps a sorted set of ids
// scored by creation time for listing.
type Redis struct {
	Client    *redis.Client
	KeyPrefix string
	now       func() time.Time
}

// NewRedis connects to the Redis server at addr and verifies it responds.
func NewRedis(ctx context.Context, addr, password string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedisWithClient(rdb), nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(rdb *redis.Client) *Redis {
	return &Redis{
		Client:    rdb,
		KeyPrefix: defaultKeyPrefix,
		now:       time.Now,
	}
}

func (r *Redis) indexKey() string {
	return r.KeyPrefix + "todos"
}

func (r *Redis) itemKey(id string) string {
	return r.KeyPrefix + "todo:" + id
}

func (r *Redis) List(ctx context.Context) ([]Todo, error) {
	ids, err := r.Client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []Todo{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.itemKey(id)
	}
	vals, err := r.Client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Todo, 0, len(vals))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			// deleted between ZREVRANGE and MGET
			continue
		}
		var t Todo
		if err := json.Unmarshal([]byte(s), &t); err != nil {
			return nil, fmt.Errorf("decode todo %s: %w", ids[i], err)
		}
		out = append(out, t)
	}
	return out, nil
}

func (r *Redis) Create(ctx context.Context, text string) (Todo, error) {
	now := r.now().UTC()
	t := Todo{
		ID:        uuid.NewString(),
		Text:      text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(t)
	if err != nil {
		return Todo{}, err
	}

	_, err = r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.itemKey(t.ID), data, 0)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: t.ID})
		return nil
	})
	if err != nil {
		return Todo{}, err
	}
	return t, nil
}

// Update reads, patches and writes the todo inside WATCH so a concurrent
// writer forces a retry instead of being overwritten.
func (r *Redis) Update(ctx context.Context, id string, patch Patch) (Todo, error) {
	key := r.itemKey(id)
	var updated Todo

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		var t Todo
		if err := json.Unmarshal(raw, &t); err != nil {
			return fmt.Errorf("decode todo %s: %w", id, err)
		}
		patch.apply(&t, r.now().UTC())
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err == nil {
			updated = t
		}
		return err
	}

	for i := 0; i < maxUpdateRetries; i++ {
		err := r.Client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return Todo{}, err
		}
		return updated, nil
	}
	return Todo{}, fmt.Errorf("update todo %s: too many concurrent writers", id)
}

func (r *Redis) Delete(ctx context.Context, id string) error {
	var del *redis.IntCmd
	_, err := r.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.Del(ctx, r.itemKey(id))
		pipe.ZRem(ctx, r.indexKey(), id)
		return nil
	})
	if err != nil {
		return err
	}
	if del.Val() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) Close() error {
	return r.Client.Close()
}
