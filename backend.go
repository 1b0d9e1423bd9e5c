package crowcache

import (
	"fmt"

	"github.com/Borislavv/go-crow-cache/config"
	"github.com/Borislavv/go-crow-cache/persistence"
	"github.com/Borislavv/go-crow-cache/persistence/file"
	"github.com/Borislavv/go-crow-cache/persistence/memory"
	rstore "github.com/Borislavv/go-crow-cache/persistence/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// OpenBackend builds the dormant backend described by cfg.Persistence, after filling cfg
// defaults. Without a persistence section the in-memory backend is used. The returned close
// function releases whatever the backend holds (the redis client) and is never nil.
func OpenBackend[V any](cfg *config.Cache, logger zerolog.Logger) (persistence.Backend[V], func() error, error) {
	noop := func() error { return nil }

	cfg.AdjustConfig()
	p := cfg.Persistence
	if !p.Enabled() {
		return memory.New[V](), noop, nil
	}

	switch p.Backend {
	case config.BackendMemory, "":
		return memory.New[V](), noop, nil
	case config.BackendFile:
		return file.New[V](p.Dir, p.Name,
			file.WithGzip(p.Gzip),
			file.WithCrc32(p.Crc32),
			file.WithLogger(logger.With().Str("component", "file_backend").Logger()),
		), noop, nil
	case config.BackendRedis:
		if p.Redis == nil {
			return nil, noop, fmt.Errorf("%w: redis backend without redis section", config.ErrInvalidConfig)
		}
		client := redis.NewClient(&redis.Options{
			Addr:     p.Redis.Addr,
			Password: p.Redis.Password,
			DB:       p.Redis.DB,
		})
		var opts []rstore.Option
		if cfg.Dormant.OpTimeout > 0 {
			opts = append(opts, rstore.WithTimeout(cfg.Dormant.OpTimeout))
		}
		return rstore.New[V](client, p.Redis.Key, opts...), client.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown persistence backend %q", config.ErrInvalidConfig, p.Backend)
	}
}
