package config

// Backend names the dormant storage implementation.
type Backend string

const (
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendRedis  Backend = "redis"
)

type PersistenceCfg struct {
	// Backend is one of "memory", "file", "redis".
	Backend Backend `yaml:"backend"`

	// Dir specifies the directory where the dormant dump file is stored (file backend).
	// It is created when missing.
	Dir string `yaml:"dir"`

	// Name defines the base name of the dump file (file backend).
	// The final name carries ".dump" and, with Gzip, ".gz".
	Name string `yaml:"name"`

	// Gzip enables gzip compression of the dump file.
	Gzip bool `yaml:"gzip"`

	// Crc32 enables per-record checksums; a mismatch marks the dump as corrupted.
	Crc32 bool `yaml:"crc32"`

	// Redis configures the redis backend.
	Redis *RedisCfg `yaml:"redis"`
}

type RedisCfg struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Key is the name of the redis hash that holds the dormant tier.
	Key string `yaml:"key"`
}

func (cfg *PersistenceCfg) Enabled() bool {
	return cfg != nil
}
