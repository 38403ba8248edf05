package storage

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared by all Store implementations.
var (
	// ErrArchiveNotFound is returned by GetArchive when a module has never
	// been archived, meaning a first visit.
	ErrArchiveNotFound = errors.New("archive not found")

	// ErrSummaryNotFound is returned when a module has no living summary yet.
	ErrSummaryNotFound = errors.New("living summary not found")

	// ErrVisitNotFound is returned when a module has never been visited.
	ErrVisitNotFound = errors.New("module visit not found")
)

// VisitState describes where a module's segment is in its lifecycle.
type VisitState string

const (
	// VisitFresh means the segment was created empty on first entry.
	VisitFresh VisitState = "fresh"

	// VisitRestored means the segment was restored from an archive on re-entry.
	VisitRestored VisitState = "restored"

	// VisitMidPlay means turns have been appended since entry.
	VisitMidPlay VisitState = "mid_play"
)

// ModuleVisit tracks which module is active and how its segment was opened.
// Created on first entry, updated on every transition, never deleted.
type ModuleVisit struct {
	ModuleID  string     `json:"module_id"`
	State     VisitState `json:"state"`
	Active    bool       `json:"active"`
	EnteredAt time.Time  `json:"entered_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ArchiveRecord is the durable snapshot of a closed segment, keyed by
// module. At most one live record per module: re-archiving overwrites.
type ArchiveRecord struct {
	ID         string    `json:"id"`
	ModuleID   string    `json:"module_id"`
	Turns      []Turn    `json:"turns"`
	ArchivedAt time.Time `json:"archived_at"`
}

// LivingSummary is the single regenerated-in-full narrative synopsis of a
// module's entire history to date. NarrativeText is only ever replaced
// wholesale, never patched.
type LivingSummary struct {
	ModuleID      string    `json:"module_id"`
	NarrativeText string    `json:"narrative_text"`
	VisitCount    int       `json:"visit_count"`
	FirstVisitAt  time.Time `json:"first_visit_at"`
	LastVisitAt   time.Time `json:"last_visit_at"`
}

// CompressionEvent records one compression pass for observability.
type CompressionEvent struct {
	ID              string    `json:"id"`
	ModuleID        string    `json:"module_id"`
	TurnsEligible   int       `json:"turns_eligible"`
	TurnsCompressed int       `json:"turns_compressed"`
	TurnsDeferred   int       `json:"turns_deferred"`
	CacheHits       int       `json:"cache_hits"`
	OriginalChars   int       `json:"original_chars"`
	CompressedChars int       `json:"compressed_chars"`
	DurationMs      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}

// Ratio returns the achieved reduction ratio for the pass, 0 when nothing
// was compressed.
func (e *CompressionEvent) Ratio() float64 {
	if e.OriginalChars == 0 {
		return 0
	}
	return 1 - float64(e.CompressedChars)/float64(e.OriginalChars)
}

// Store is the persistence interface for the conversation-memory lifecycle.
//
// Implementations must make ReplaceArchive atomic: a failed write leaves any
// prior archive for the module untouched.
type Store interface {
	// Active segment operations. The segment log is read in full on
	// session resume and appended incrementally during play.
	AppendTurn(ctx context.Context, moduleID string, t Turn) error
	ReplaceTurnContent(ctx context.Context, moduleID string, t Turn) error
	LoadSegment(ctx context.Context, moduleID string) ([]Turn, error)
	ReplaceSegment(ctx context.Context, moduleID string, turns []Turn) error
	ClearSegment(ctx context.Context, moduleID string) error

	// Archive operations. One record per module, overwritten on each exit.
	ReplaceArchive(ctx context.Context, rec ArchiveRecord) error
	GetArchive(ctx context.Context, moduleID string) (*ArchiveRecord, error)
	ListArchives(ctx context.Context) ([]*ArchiveRecord, error)

	// Living summary operations. Overwritten wholesale on regeneration.
	ReplaceLivingSummary(ctx context.Context, s LivingSummary) error
	GetLivingSummary(ctx context.Context, moduleID string) (*LivingSummary, error)
	ListLivingSummaries(ctx context.Context) ([]*LivingSummary, error)

	// Module visit state.
	UpsertVisit(ctx context.Context, v ModuleVisit) error
	GetVisit(ctx context.Context, moduleID string) (*ModuleVisit, error)
	ActiveVisit(ctx context.Context) (*ModuleVisit, error)

	// Compression pass observability.
	SaveCompressionEvent(ctx context.Context, ev CompressionEvent) error
	GetCompressionHistory(ctx context.Context, moduleID string) ([]*CompressionEvent, error)

	Close() error
}
