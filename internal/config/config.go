package config

import "time"

// BridgeConfig is the root configuration for a bridge instance.
type BridgeConfig struct {
	Provider ProviderConfig `yaml:"provider"`
	Server   ServerConfig   `yaml:"server"`
	Stream   StreamConfig   `yaml:"stream"`
	Cache    CacheConfig    `yaml:"cache"`
}

// ProviderConfig holds market-data gateway settings.
type ProviderConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Service            string        `yaml:"service"`
	OpenTimeout        time.Duration `yaml:"open_timeout"`
	RequestPollTimeout time.Duration `yaml:"request_poll_timeout"`
}

// ServerConfig holds HTTP surface settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StreamConfig holds event dispatch loop settings.
type StreamConfig struct {
	PollTimeout  time.Duration `yaml:"poll_timeout"`
	BatchSize    int           `yaml:"batch_size"`
	EmitInterval time.Duration `yaml:"emit_interval"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	QueueSize    int           `yaml:"queue_size"`
}

// CacheConfig holds the Redis response cache settings. An empty addr
// disables caching entirely.
type CacheConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}
