package config

import "time"

type DormantCfg struct {
	// TTL is the maximum age (since creation) of a dormant entry. Older entries are
	// filtered out on every read. Example: "500s".
	TTL time.Duration `yaml:"ttl"`

	// LockTimeout bounds how long a caller waits for the dormant read-modify-write lock.
	// On timeout the dormant tier is treated as unavailable for that call.
	LockTimeout time.Duration `yaml:"lock_timeout"`

	// OpTimeout bounds a single backend call (read-all, write-all, clear).
	OpTimeout time.Duration `yaml:"op_timeout"`
}
