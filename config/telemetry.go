package config

import "time"

type TelemetryCfg struct {
	IsLogsEnabled bool          `yaml:"logs_enabled"`
	LogsInterval  time.Duration `yaml:"logs_interval"`
}

func (cfg *TelemetryCfg) Enabled() bool {
	return cfg != nil && cfg.IsLogsEnabled
}
