package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultProviderHost       = "localhost"
	DefaultProviderPort       = 8194
	DefaultProviderService    = "//blp/refdata"
	DefaultOpenTimeout        = 10 * time.Second
	DefaultRequestPollTimeout = 100 * time.Millisecond
	DefaultServerHost         = "0.0.0.0"
	DefaultServerPort         = 6659
	DefaultStreamPollTimeout  = 500 * time.Millisecond
	DefaultStreamBatchSize    = 10
	DefaultEmitInterval       = 5 * time.Millisecond
	DefaultRetryBackoff       = 1 * time.Second
	DefaultQueueSize          = 256
	DefaultCacheTTL           = 24 * time.Hour
)

func (c *BridgeConfig) applyDefaults() {
	// Provider defaults
	if c.Provider.Host == "" {
		c.Provider.Host = DefaultProviderHost
	}
	if c.Provider.Port == 0 {
		c.Provider.Port = DefaultProviderPort
	}
	if c.Provider.Service == "" {
		c.Provider.Service = DefaultProviderService
	}
	if c.Provider.OpenTimeout == 0 {
		c.Provider.OpenTimeout = DefaultOpenTimeout
	}
	if c.Provider.RequestPollTimeout == 0 {
		c.Provider.RequestPollTimeout = DefaultRequestPollTimeout
	}

	// Server defaults
	if c.Server.Host == "" {
		c.Server.Host = DefaultServerHost
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}

	// Stream defaults
	if c.Stream.PollTimeout == 0 {
		c.Stream.PollTimeout = DefaultStreamPollTimeout
	}
	if c.Stream.BatchSize == 0 {
		c.Stream.BatchSize = DefaultStreamBatchSize
	}
	if c.Stream.EmitInterval == 0 {
		c.Stream.EmitInterval = DefaultEmitInterval
	}
	if c.Stream.RetryBackoff == 0 {
		c.Stream.RetryBackoff = DefaultRetryBackoff
	}
	if c.Stream.QueueSize == 0 {
		c.Stream.QueueSize = DefaultQueueSize
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}
}
