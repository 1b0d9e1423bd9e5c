package config

// Cache groups configuration of all cache subsystems.
// Optional components are disabled by setting them to nil.
type Cache struct {
	// Capacity is the maximum number of entries held by the active (in-memory) tier.
	Capacity int `yaml:"capacity"`

	// Lifetime configures per-key expiry of active entries.
	// If nil, active entries never expire on their own and only leave the tier through
	// eviction or explicit removal.
	Lifetime *LifetimeCfg `yaml:"lifetime"`

	// Dormant configures the persisted tier wrapper (TTL filtering and lock/IO timeouts).
	Dormant DormantCfg `yaml:"dormant"`

	// Cleaner configures the periodic dormant sweep.
	// If nil, expired dormant entries are only dropped when somebody reads the tier.
	Cleaner *CleanerCfg `yaml:"cleaner"`

	// Persistence selects and configures the dormant backend built by the demo binary.
	// Library users construct a backend themselves and pass it to the cache constructor.
	Persistence *PersistenceCfg `yaml:"persistence"`

	// Telemetry enables periodic stat logs.
	Telemetry *TelemetryCfg `yaml:"telemetry"`
}
