package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid cache config")

const (
	DefaultCapacity           = 1000
	DefaultActiveTTL          = 300 * time.Second
	DefaultDormantTTL         = 500 * time.Second
	DefaultCleanerInterval    = 400 * time.Second
	DefaultLockTimeout        = 500 * time.Millisecond
	DefaultOpTimeout          = 500 * time.Millisecond
	DefaultRefreshRate        = 1000
	DefaultTelemetryInterval  = 5 * time.Second
	DefaultDumpName           = "crowcache"
	DefaultRedisKey           = "crowcache:dormant"
	defaultPersistenceBackend = BackendMemory
)

// Default returns a config equivalent to an empty one passed through AdjustConfig.
func Default() *Cache {
	cfg := &Cache{
		Lifetime: &LifetimeCfg{TTL: DefaultActiveTTL},
		Cleaner:  &CleanerCfg{Interval: DefaultCleanerInterval},
	}
	cfg.AdjustConfig()
	return cfg
}

// AdjustConfig fills zero values with defaults. Nil sections stay disabled.
func (cfg *Cache) AdjustConfig() {
	if cfg.Capacity == 0 {
		cfg.Capacity = DefaultCapacity
	}

	if cfg.Dormant.TTL == 0 {
		cfg.Dormant.TTL = DefaultDormantTTL
	}
	if cfg.Dormant.LockTimeout == 0 {
		cfg.Dormant.LockTimeout = DefaultLockTimeout
	}
	if cfg.Dormant.OpTimeout == 0 {
		cfg.Dormant.OpTimeout = DefaultOpTimeout
	}

	if cfg.Lifetime != nil && cfg.Lifetime.RefreshRate == 0 {
		cfg.Lifetime.RefreshRate = DefaultRefreshRate
	}

	if cfg.Telemetry != nil && cfg.Telemetry.LogsInterval == 0 {
		cfg.Telemetry.LogsInterval = DefaultTelemetryInterval
	}

	if cfg.Persistence.Enabled() {
		if cfg.Persistence.Backend == "" {
			cfg.Persistence.Backend = defaultPersistenceBackend
		}
		if cfg.Persistence.Name == "" {
			cfg.Persistence.Name = DefaultDumpName
		}
		if cfg.Persistence.Redis != nil && cfg.Persistence.Redis.Key == "" {
			cfg.Persistence.Redis.Key = DefaultRedisKey
		}
	}
}

// Validate reports the first inconsistency found, wrapped in ErrInvalidConfig.
func (cfg *Cache) Validate() error {
	if cfg.Capacity < 1 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidConfig, cfg.Capacity)
	}
	if cfg.Dormant.TTL < 0 || cfg.Dormant.LockTimeout < 0 || cfg.Dormant.OpTimeout < 0 {
		return fmt.Errorf("%w: dormant durations must not be negative", ErrInvalidConfig)
	}
	if cfg.Lifetime != nil && (cfg.Lifetime.TTL < 0 || cfg.Lifetime.RefreshRate < 0 || cfg.Lifetime.Workers < 0) {
		return fmt.Errorf("%w: lifetime values must not be negative", ErrInvalidConfig)
	}
	if cfg.Cleaner != nil && cfg.Cleaner.Interval < 0 {
		return fmt.Errorf("%w: cleaner interval must not be negative", ErrInvalidConfig)
	}
	if cfg.Persistence.Enabled() {
		switch cfg.Persistence.Backend {
		case BackendMemory:
		case BackendFile:
			if cfg.Persistence.Dir == "" {
				return fmt.Errorf("%w: file backend requires persistence.dir", ErrInvalidConfig)
			}
		case BackendRedis:
			if cfg.Persistence.Redis == nil || cfg.Persistence.Redis.Addr == "" {
				return fmt.Errorf("%w: redis backend requires persistence.redis.addr", ErrInvalidConfig)
			}
		default:
			return fmt.Errorf("%w: unknown persistence backend %q", ErrInvalidConfig, cfg.Persistence.Backend)
		}
	}
	return nil
}

func LoadConfig(path string) (*Cache, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("stat config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config yaml file %s: %w", path, err)
	}

	var cfg *Cache
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml from %s: %w", path, err)
	}
	if cfg == nil {
		cfg = &Cache{}
	}
	cfg.AdjustConfig()

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
