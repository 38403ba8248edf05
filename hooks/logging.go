package hooks

import (
	"context"
	"log"

	"github.com/youssefsiam38/questlog/storage"
)

// LoggingHooks provides built-in logging hooks for observability
type LoggingHooks struct {
	logger *log.Logger
}

// NewLoggingHooks creates logging hooks with the provided logger
func NewLoggingHooks(logger *log.Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// DefaultLoggingHooks creates logging hooks with default logger
func DefaultLoggingHooks() *LoggingHooks {
	return &LoggingHooks{logger: log.Default()}
}

// TurnAppended logs every appended turn
func (h *LoggingHooks) TurnAppended(ctx context.Context, moduleID string, turn storage.Turn) error {
	h.logger.Printf("[Questlog] Appended %s to module %s", turn.String(), moduleID)
	return nil
}

// BeforeCompression logs the start of a compression pass
func (h *LoggingHooks) BeforeCompression(ctx context.Context, moduleID string, eligible int) error {
	h.logger.Printf("[Questlog] Starting compression pass for module %s (%d eligible turns)", moduleID, eligible)
	return nil
}

// AfterCompression logs the outcome of a compression pass
func (h *LoggingHooks) AfterCompression(ctx context.Context, event storage.CompressionEvent) error {
	h.logger.Printf("[Questlog] Compression complete for module %s: %d/%d turns, %d deferred, %d cache hits (%.1f%% reduction)",
		event.ModuleID, event.TurnsCompressed, event.TurnsEligible, event.TurnsDeferred,
		event.CacheHits, event.Ratio()*100)
	return nil
}

// Transition logs a completed module transition
func (h *LoggingHooks) Transition(ctx context.Context, fromModule, toModule string, cutSeq int, restored bool) error {
	h.logger.Printf("[Questlog] Transition %s -> %s at seq %d (restored=%v)", fromModule, toModule, cutSeq, restored)
	return nil
}

// Summary logs a regenerated living summary
func (h *LoggingHooks) Summary(ctx context.Context, summary storage.LivingSummary) error {
	h.logger.Printf("[Questlog] Living summary regenerated for module %s (visit %d, %d chars)",
		summary.ModuleID, summary.VisitCount, len(summary.NarrativeText))
	return nil
}

// Register attaches all logging hooks to a registry
func (h *LoggingHooks) Register(r *Registry) {
	r.OnTurnAppended(h.TurnAppended)
	r.OnBeforeCompression(h.BeforeCompression)
	r.OnAfterCompression(h.AfterCompression)
	r.OnTransition(h.Transition)
	r.OnSummary(h.Summary)
}
