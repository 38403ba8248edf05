// Package archive freezes closed module segments into durable storage and
// restores them when the party returns.
package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/questlog/storage"
)

// ErrFirstVisit is returned by Restore when the module has never been
// archived: the caller opens a fresh segment instead.
var ErrFirstVisit = errors.New("archive: first visit, no archived segment")

// ErrEmptySegment is returned when archiving zero turns; an empty archive
// would silently supersede a real one.
var ErrEmptySegment = errors.New("archive: refusing to archive empty segment")

// Manager owns archive records. One record per module; re-archiving
// replaces the prior record wholesale, it never appends.
type Manager struct {
	store storage.Store
	now   func() time.Time
}

// NewManager creates a Manager over the given store.
func NewManager(store storage.Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Archive freezes the given turns as the module's archive record,
// replacing any prior record atomically. On failure the prior record is
// untouched and the error is surfaced to the caller so the transition can
// be blocked; a partial archive is narrative data loss.
func (m *Manager) Archive(ctx context.Context, moduleID string, turns []storage.Turn) (storage.ArchiveRecord, error) {
	if moduleID == "" {
		return storage.ArchiveRecord{}, errors.New("archive: empty module id")
	}
	if len(turns) == 0 {
		return storage.ArchiveRecord{}, fmt.Errorf("%w: module %s", ErrEmptySegment, moduleID)
	}
	rec := storage.ArchiveRecord{
		ID:         uuid.NewString(),
		ModuleID:   moduleID,
		Turns:      append([]storage.Turn(nil), turns...),
		ArchivedAt: m.now().UTC(),
	}
	if err := m.store.ReplaceArchive(ctx, rec); err != nil {
		return storage.ArchiveRecord{}, fmt.Errorf("archive module %s: %w", moduleID, err)
	}
	return rec, nil
}

// Restore returns the module's archived turns in their exact original
// order, or ErrFirstVisit when no archive exists.
func (m *Manager) Restore(ctx context.Context, moduleID string) ([]storage.Turn, error) {
	rec, err := m.store.GetArchive(ctx, moduleID)
	if errors.Is(err, storage.ErrArchiveNotFound) {
		return nil, fmt.Errorf("%w: module %s", ErrFirstVisit, moduleID)
	}
	if err != nil {
		return nil, fmt.Errorf("restore module %s: %w", moduleID, err)
	}
	return rec.Turns, nil
}

// List returns all archive records ordered by ArchivedAt.
func (m *Manager) List(ctx context.Context) ([]*storage.ArchiveRecord, error) {
	return m.store.ListArchives(ctx)
}
