// Package redis keeps the dormant tier in a single Redis hash: one field per cache key,
// each value a codec-encoded entry. WriteAll replaces the hash inside a MULTI/EXEC block.
package redis

import (
	"context"
	stdErrors "errors"
	"fmt"
	"time"

	"github.com/Borislavv/go-crow-cache/model"
	"github.com/Borislavv/go-crow-cache/persistence"
	redis "github.com/redis/go-redis/v9"
)

const defaultRedisOpTimeout = 500 * time.Millisecond

type Option func(*storeOptions)

type storeOptions struct {
	timeout time.Duration
	codec   persistence.Codec
}

// WithTimeout sets the operation timeout for Redis calls.
func WithTimeout(d time.Duration) Option {
	return func(o *storeOptions) {
		o.timeout = d
	}
}

// WithCodec overrides the entry codec (json by default).
func WithCodec(c persistence.Codec) Option {
	return func(o *storeOptions) {
		o.codec = c
	}
}

type Store[V any] struct {
	client  redis.UniversalClient
	key     string
	timeout time.Duration
	codec   persistence.Codec
}

// New returns a Store over client that keeps the tier under the hash key.
func New[V any](client redis.UniversalClient, key string, opts ...Option) *Store[V] {
	o := storeOptions{timeout: defaultRedisOpTimeout, codec: persistence.JSONCodec{}}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store[V]{client: client, key: key, timeout: o.timeout, codec: o.codec}
}

func (s *Store[V]) ReadAll(ctx context.Context) (model.Mapping[V], error) {
	if err := ctx.Err(); err != nil {
		return nil, mapErr(err)
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.HGetAll(cctx, s.key).Result()
	if err != nil {
		return nil, mapErr(err)
	}

	out := make(model.Mapping[V], len(raw))
	for field, value := range raw {
		var e model.Entry[V]
		if err = s.codec.Unmarshal([]byte(value), &e); err != nil {
			return nil, fmt.Errorf("%w: decode field %q: %v", persistence.ErrCorrupted, field, err)
		}
		out[field] = &e
	}
	return out, nil
}

func (s *Store[V]) WriteAll(ctx context.Context, m model.Mapping[V]) error {
	if err := ctx.Err(); err != nil {
		return mapErr(err)
	}

	values := make(map[string]any, len(m))
	for k, e := range m {
		if e == nil {
			continue
		}
		data, err := s.codec.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode entry %q: %w", k, err)
		}
		values[k] = data
	}

	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.client.TxPipelined(cctx, func(pipe redis.Pipeliner) error {
		pipe.Del(cctx, s.key)
		if len(values) > 0 {
			pipe.HSet(cctx, s.key, values)
		}
		return nil
	})
	return mapErr(err)
}

func (s *Store[V]) Clear(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return mapErr(s.client.Del(cctx, s.key).Err())
}

func (s *Store[V]) Exists(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	n, err := s.client.Exists(cctx, s.key).Result()
	return err == nil && n > 0
}

func (s *Store[V]) IsAccessible(ctx context.Context) bool {
	if !s.Exists(ctx) {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(cctx).Err() == nil
}

// EnsureExists checks connectivity; the hash itself is created lazily by the first write.
func (s *Store[V]) EnsureExists(ctx context.Context) error {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Ping(cctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", mapErr(err))
	}
	return nil
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case stdErrors.Is(err, context.DeadlineExceeded):
		return persistence.ErrTimeout
	case stdErrors.Is(err, redis.ErrClosed):
		return persistence.ErrConnectionClosed
	default:
		return err
	}
}
