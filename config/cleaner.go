package config

import "time"

type CleanerCfg struct {
	// Interval is the period between two dormant sweeps. Example: "400s".
	Interval time.Duration `yaml:"interval"`
}

func (cfg *CleanerCfg) Enabled() bool {
	return cfg != nil && cfg.Interval > 0
}
