package compress

import (
	"fmt"
	"time"
)

// Default configuration values.
const (
	DefaultWorkers         = 4
	DefaultCacheCapacity   = 512
	DefaultCallTimeout     = 45 * time.Second
	DefaultMaxOutputTokens = 1024
	DefaultRetryBackoff    = 30 * time.Second
	DefaultRetryBackoffMax = 15 * time.Minute
)

// Config holds compression configuration. All fields are externally
// supplied tunables; zero values fall back to defaults.
type Config struct {
	// Workers is the fixed size of the compression worker pool.
	// Default: 4
	Workers int

	// CacheCapacity bounds the compression cache. Once exceeded, the
	// oldest-inserted entries are evicted.
	// Default: 512
	CacheCapacity int

	// CallTimeout bounds each model call. A timed-out call is a
	// compression failure: the turn stays verbatim and is retried later.
	// Default: 45s
	CallTimeout time.Duration

	// MaxOutputTokens bounds the compressed output size per turn.
	// Default: 1024
	MaxOutputTokens int

	// RetryBackoff is the base backoff applied after a failed compression
	// attempt. It doubles per attempt up to RetryBackoffMax.
	// Default: 30s
	RetryBackoff time.Duration

	// RetryBackoffMax caps the per-turn retry backoff.
	// Default: 15m
	RetryBackoffMax time.Duration
}

// DefaultConfig returns a Config with the package defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         DefaultWorkers,
		CacheCapacity:   DefaultCacheCapacity,
		CallTimeout:     DefaultCallTimeout,
		MaxOutputTokens: DefaultMaxOutputTokens,
		RetryBackoff:    DefaultRetryBackoff,
		RetryBackoffMax: DefaultRetryBackoffMax,
	}
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = DefaultCacheCapacity
	}
	if c.CallTimeout == 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.MaxOutputTokens == 0 {
		c.MaxOutputTokens = DefaultMaxOutputTokens
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = DefaultRetryBackoff
	}
	if c.RetryBackoffMax == 0 {
		c.RetryBackoffMax = DefaultRetryBackoffMax
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be positive, got %d", ErrInvalidConfig, c.Workers)
	}
	if c.CacheCapacity < 1 {
		return fmt.Errorf("%w: cache_capacity must be positive, got %d", ErrInvalidConfig, c.CacheCapacity)
	}
	if c.CallTimeout <= 0 {
		return fmt.Errorf("%w: call_timeout must be positive, got %s", ErrInvalidConfig, c.CallTimeout)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("%w: max_output_tokens must be positive, got %d", ErrInvalidConfig, c.MaxOutputTokens)
	}
	if c.RetryBackoff <= 0 || c.RetryBackoffMax < c.RetryBackoff {
		return fmt.Errorf("%w: retry backoff %s must be positive and <= max %s",
			ErrInvalidConfig, c.RetryBackoff, c.RetryBackoffMax)
	}
	return nil
}

// NextRetryDelay returns the backoff before retrying a turn that has failed
// attempts times. Exponential, capped at RetryBackoffMax.
func (c *Config) NextRetryDelay(attempts int) time.Duration {
	d := c.RetryBackoff
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= c.RetryBackoffMax {
			return c.RetryBackoffMax
		}
	}
	if d > c.RetryBackoffMax {
		return c.RetryBackoffMax
	}
	return d
}
