package questlog

import (
	"fmt"

	"github.com/youssefsiam38/questlog/boundary"
	"github.com/youssefsiam38/questlog/compress"
	"github.com/youssefsiam38/questlog/hooks"
	"github.com/youssefsiam38/questlog/metrics"
	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

// Config holds the configuration for a Session.
//
// Example:
//
//	store := storage.NewMemoryStore()
//	session, _ := questlog.NewSession(questlog.Config{
//	    Store: store,
//	    Model: model.NewAnthropic(&client, ""),
//	})
type Config struct {
	// Store is the durable backend for segments, archives, summaries, and
	// visit state (required).
	Store storage.Store

	// Model is the summarization capability used for turn compression and
	// living-summary regeneration (required unless DisableCompression).
	Model model.Client

	// DisableCompression turns off background and forced compression
	// passes. Transitions, archiving, and summaries still run.
	DisableCompression bool

	// KeepRecent is how many of the newest turns stay verbatim, behind the
	// compression frontier. Default 5.
	KeepRecent int

	// PendingWindow is how many turns a lone transition signal is held
	// before the boundary detector reverts. Default 3.
	PendingWindow int

	// TriggerRatio is the fraction of MaxContextChars at which a forced
	// synchronous compression pass runs before the next model call.
	// Default 0.8.
	TriggerRatio float64

	// MaxContextChars is the effective context budget for the active
	// segment plus campaign context. Default 120000.
	MaxContextChars int

	// Compression tunes the compressor, cache, and worker pool. Zero
	// values take defaults.
	Compression compress.Config

	// Logger receives lifecycle events. Defaults to NopLogger.
	Logger Logger

	// Metrics is optional; nil disables instrumentation.
	Metrics *metrics.Metrics

	// Hooks is an optional registry of lifecycle callbacks. Hook errors
	// are logged as warnings, never surfaced to the game loop.
	Hooks *hooks.Registry
}

// DefaultKeepRecent is the default compression frontier margin.
const DefaultKeepRecent = 5

// DefaultTriggerRatio is the default forced-pass threshold.
const DefaultTriggerRatio = 0.8

// DefaultMaxContextChars is the default context budget in characters.
const DefaultMaxContextChars = 120000

// ApplyDefaults fills zero values with defaults.
func (c *Config) ApplyDefaults() {
	if c.KeepRecent == 0 {
		c.KeepRecent = DefaultKeepRecent
	}
	if c.PendingWindow == 0 {
		c.PendingWindow = boundary.DefaultPendingWindow
	}
	if c.TriggerRatio == 0 {
		c.TriggerRatio = DefaultTriggerRatio
	}
	if c.MaxContextChars == 0 {
		c.MaxContextChars = DefaultMaxContextChars
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	c.Compression.ApplyDefaults()
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Store == nil {
		return fmt.Errorf("%w: Store is required", ErrInvalidConfig)
	}
	if c.Model == nil && !c.DisableCompression {
		return fmt.Errorf("%w: Model is required unless compression is disabled", ErrInvalidConfig)
	}
	if c.KeepRecent < 0 {
		return fmt.Errorf("%w: KeepRecent must not be negative", ErrInvalidConfig)
	}
	if c.PendingWindow < 0 {
		return fmt.Errorf("%w: PendingWindow must not be negative", ErrInvalidConfig)
	}
	if c.TriggerRatio < 0 || c.TriggerRatio > 1 {
		return fmt.Errorf("%w: TriggerRatio must be within [0, 1]", ErrInvalidConfig)
	}
	if c.MaxContextChars < 0 {
		return fmt.Errorf("%w: MaxContextChars must not be negative", ErrInvalidConfig)
	}
	if err := c.Compression.Validate(); err != nil {
		return err
	}
	return nil
}
