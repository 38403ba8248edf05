// Package hooks provides observability callbacks for the conversation
// lifecycle: turn appends, compression passes, module transitions, and
// summary regeneration.
package hooks

import (
	"context"
	"sync"

	"github.com/youssefsiam38/questlog/storage"
)

// TurnAppendedHook is called after a turn is appended to the active segment
type TurnAppendedHook func(ctx context.Context, moduleID string, turn storage.Turn) error

// BeforeCompressionHook is called before a compression pass starts
type BeforeCompressionHook func(ctx context.Context, moduleID string, eligible int) error

// AfterCompressionHook is called after a compression pass completes
type AfterCompressionHook func(ctx context.Context, event storage.CompressionEvent) error

// TransitionHook is called after a module transition completes
// Parameters: ctx, fromModule, toModule, cutSeq, restored
type TransitionHook func(ctx context.Context, fromModule, toModule string, cutSeq int, restored bool) error

// SummaryHook is called after a living summary is regenerated
type SummaryHook func(ctx context.Context, summary storage.LivingSummary) error

// Registry holds all registered hooks
type Registry struct {
	mu                sync.RWMutex
	turnAppended      []TurnAppendedHook
	beforeCompression []BeforeCompressionHook
	afterCompression  []AfterCompressionHook
	transition        []TransitionHook
	summary           []SummaryHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{
		turnAppended:      []TurnAppendedHook{},
		beforeCompression: []BeforeCompressionHook{},
		afterCompression:  []AfterCompressionHook{},
		transition:        []TransitionHook{},
		summary:           []SummaryHook{},
	}
}

// OnTurnAppended registers a hook to be called after every append
func (r *Registry) OnTurnAppended(hook TurnAppendedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turnAppended = append(r.turnAppended, hook)
}

// OnBeforeCompression registers a hook to be called before a pass
func (r *Registry) OnBeforeCompression(hook BeforeCompressionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeCompression = append(r.beforeCompression, hook)
}

// OnAfterCompression registers a hook to be called after a pass
func (r *Registry) OnAfterCompression(hook AfterCompressionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterCompression = append(r.afterCompression, hook)
}

// OnTransition registers a hook to be called after a transition
func (r *Registry) OnTransition(hook TransitionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transition = append(r.transition, hook)
}

// OnSummary registers a hook to be called after summary regeneration
func (r *Registry) OnSummary(hook SummaryHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary = append(r.summary, hook)
}

// TriggerTurnAppended calls all registered turn-appended hooks
func (r *Registry) TriggerTurnAppended(ctx context.Context, moduleID string, turn storage.Turn) error {
	r.mu.RLock()
	hooks := make([]TurnAppendedHook, len(r.turnAppended))
	copy(hooks, r.turnAppended)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, moduleID, turn); err != nil {
			return err
		}
	}
	return nil
}

// TriggerBeforeCompression calls all registered before-compression hooks
func (r *Registry) TriggerBeforeCompression(ctx context.Context, moduleID string, eligible int) error {
	r.mu.RLock()
	hooks := make([]BeforeCompressionHook, len(r.beforeCompression))
	copy(hooks, r.beforeCompression)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, moduleID, eligible); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterCompression calls all registered after-compression hooks
func (r *Registry) TriggerAfterCompression(ctx context.Context, event storage.CompressionEvent) error {
	r.mu.RLock()
	hooks := make([]AfterCompressionHook, len(r.afterCompression))
	copy(hooks, r.afterCompression)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// TriggerTransition calls all registered transition hooks
func (r *Registry) TriggerTransition(ctx context.Context, fromModule, toModule string, cutSeq int, restored bool) error {
	r.mu.RLock()
	hooks := make([]TransitionHook, len(r.transition))
	copy(hooks, r.transition)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, fromModule, toModule, cutSeq, restored); err != nil {
			return err
		}
	}
	return nil
}

// TriggerSummary calls all registered summary hooks
func (r *Registry) TriggerSummary(ctx context.Context, summary storage.LivingSummary) error {
	r.mu.RLock()
	hooks := make([]SummaryHook, len(r.summary))
	copy(hooks, r.summary)
	r.mu.RUnlock()

	for _, hook := range hooks {
		if err := hook(ctx, summary); err != nil {
			return err
		}
	}
	return nil
}
