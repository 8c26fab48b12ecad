package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *BridgeConfig) Validate() error {
	if c.Provider.Host == "" {
		return errors.New("provider.host is required")
	}
	if c.Provider.Port < 1 || c.Provider.Port > 65535 {
		return fmt.Errorf("provider.port must be between 1 and 65535, got %d", c.Provider.Port)
	}
	if !strings.HasPrefix(c.Provider.Service, "//") {
		return fmt.Errorf("provider.service must be a //namespace/name identifier, got %q", c.Provider.Service)
	}
	if c.Provider.RequestPollTimeout <= 0 {
		return errors.New("provider.request_poll_timeout must be positive")
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	for _, origin := range c.Server.AllowedOrigins {
		if !strings.HasPrefix(origin, "http://") && !strings.HasPrefix(origin, "https://") {
			return fmt.Errorf("server.allowed_origins entry %q must be an http(s) origin", origin)
		}
	}

	if c.Stream.PollTimeout <= 0 {
		return errors.New("stream.poll_timeout must be positive")
	}
	if c.Stream.BatchSize < 1 {
		return errors.New("stream.batch_size must be >= 1")
	}
	if c.Stream.EmitInterval < 0 {
		return errors.New("stream.emit_interval must be >= 0")
	}
	if c.Stream.RetryBackoff <= 0 {
		return errors.New("stream.retry_backoff must be positive")
	}
	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}

	if c.Cache.Addr != "" && c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be positive when cache.addr is set")
	}

	return nil
}
