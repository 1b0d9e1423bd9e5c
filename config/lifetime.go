package config

import "time"

type LifetimeCfg struct {
	// TTL is how long an untouched active entry lives. Every touch re-arms it.
	// Example: "5m".
	TTL time.Duration `yaml:"ttl"`

	// RefreshRate limits how many expiry events (refreshes and removals) are handled per second.
	// Refresh callbacks are user code and may be slow, the limiter keeps a burst of
	// simultaneous expirations from stampeding them.
	// Example: 1000.
	RefreshRate int `yaml:"refresh_rate"`

	// Workers is the number of goroutines consuming expiry events.
	// Zero means GOMAXPROCS.
	Workers int `yaml:"workers"`
}

func (cfg *LifetimeCfg) Enabled() bool {
	return cfg != nil && cfg.TTL > 0
}
