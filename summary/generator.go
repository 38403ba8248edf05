// Package summary maintains one living narrative summary per module and
// assembles the cross-module campaign context injected into prompts.
package summary

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

// DefaultMaxOutputTokens bounds the regenerated narrative.
const DefaultMaxOutputTokens = 2048

// DefaultCallTimeout bounds one regeneration call.
const DefaultCallTimeout = 90 * time.Second

// ErrEmptyNarrative is returned when the model produces no usable text.
var ErrEmptyNarrative = errors.New("summary: model returned empty narrative")

// Generator regenerates living summaries on module exit.
type Generator struct {
	client          model.Client
	store           storage.Store
	maxOutputTokens int
	callTimeout     time.Duration
}

// NewGenerator creates a Generator with default limits.
func NewGenerator(client model.Client, store storage.Store) *Generator {
	return &Generator{
		client:          client,
		store:           store,
		maxOutputTokens: DefaultMaxOutputTokens,
		callTimeout:     DefaultCallTimeout,
	}
}

// Regenerate rebuilds the module's living summary from its full turn
// history and persists it. It is called exactly once per module exit,
// after the segment is archived.
//
// The exit is recorded even when generation fails: VisitCount is
// incremented and LastVisitAt stamped either way, with the prior
// NarrativeText retained on failure. A stale summary beats a blank one.
// The persisted summary is returned alongside any generation error so the
// caller can log the failure without blocking the transition.
func (g *Generator) Regenerate(ctx context.Context, moduleID string, turns []storage.Turn, now time.Time) (storage.LivingSummary, error) {
	now = now.UTC()

	var prior storage.LivingSummary
	switch existing, err := g.store.GetLivingSummary(ctx, moduleID); {
	case errors.Is(err, storage.ErrSummaryNotFound):
		prior = storage.LivingSummary{ModuleID: moduleID, FirstVisitAt: now}
	case err != nil:
		return storage.LivingSummary{}, fmt.Errorf("load summary for module %s: %w", moduleID, err)
	default:
		prior = *existing
	}

	next := prior
	next.VisitCount = prior.VisitCount + 1
	next.LastVisitAt = now

	narrative, genErr := g.generate(ctx, turns)
	if genErr == nil {
		next.NarrativeText = narrative
	}

	if err := g.store.ReplaceLivingSummary(ctx, next); err != nil {
		return storage.LivingSummary{}, fmt.Errorf("save summary for module %s: %w", moduleID, err)
	}
	if genErr != nil {
		return next, fmt.Errorf("regenerate summary for module %s: %w", moduleID, genErr)
	}
	return next, nil
}

func (g *Generator) generate(ctx context.Context, turns []storage.Turn) (string, error) {
	if len(turns) == 0 {
		return "", errors.New("summary: no turns to summarize")
	}
	callCtx, cancel := context.WithTimeout(ctx, g.callTimeout)
	defer cancel()

	out, err := g.client.Summarize(callCtx, model.Request{
		Instructions:    RegenerateInstructions,
		Input:           Transcript(turns),
		MaxOutputTokens: g.maxOutputTokens,
	})
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyNarrative
	}
	return out, nil
}
