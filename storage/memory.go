package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a simple in-process store for local/dev use and tests.
// All methods are safe for concurrent callers.
type MemoryStore struct {
	mu        sync.RWMutex
	segments  map[string][]Turn
	archives  map[string]ArchiveRecord
	summaries map[string]LivingSummary
	visits    map[string]ModuleVisit
	events    map[string][]CompressionEvent
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		segments:  make(map[string][]Turn),
		archives:  make(map[string]ArchiveRecord),
		summaries: make(map[string]LivingSummary),
		visits:    make(map[string]ModuleVisit),
		events:    make(map[string][]CompressionEvent),
	}
}

func (s *MemoryStore) AppendTurn(_ context.Context, moduleID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.segments[moduleID]
	if n := len(turns); n > 0 && t.Seq != turns[n-1].Seq+1 {
		return fmt.Errorf("append turn: seq %d does not follow %d", t.Seq, turns[n-1].Seq)
	}
	s.segments[moduleID] = append(turns, t)
	return nil
}

func (s *MemoryStore) ReplaceTurnContent(_ context.Context, moduleID string, t Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.segments[moduleID]
	for i := range turns {
		if turns[i].Seq == t.Seq {
			turns[i].Content = t.Content
			turns[i].State = t.State
			turns[i].Attempts = t.Attempts
			turns[i].NextRetryAt = t.NextRetryAt
			return nil
		}
	}
	return fmt.Errorf("replace turn content: seq %d not found in module %s", t.Seq, moduleID)
}

func (s *MemoryStore) LoadSegment(_ context.Context, moduleID string) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return copyTurns(s.segments[moduleID]), nil
}

func (s *MemoryStore) ReplaceSegment(_ context.Context, moduleID string, turns []Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.segments[moduleID] = copyTurns(turns)
	return nil
}

func (s *MemoryStore) ClearSegment(_ context.Context, moduleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.segments, moduleID)
	return nil
}

func (s *MemoryStore) ReplaceArchive(_ context.Context, rec ArchiveRecord) error {
	if rec.ModuleID == "" {
		return fmt.Errorf("replace archive: module id is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.ArchivedAt.IsZero() {
		rec.ArchivedAt = time.Now().UTC()
	}
	rec.Turns = copyTurns(rec.Turns)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archives[rec.ModuleID] = rec
	return nil
}

func (s *MemoryStore) GetArchive(_ context.Context, moduleID string) (*ArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.archives[moduleID]
	if !ok {
		return nil, ErrArchiveNotFound
	}
	out := rec
	out.Turns = copyTurns(rec.Turns)
	return &out, nil
}

func (s *MemoryStore) ListArchives(_ context.Context) ([]*ArchiveRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*ArchiveRecord, 0, len(s.archives))
	for _, rec := range s.archives {
		r := rec
		r.Turns = copyTurns(rec.Turns)
		out = append(out, &r)
	}
	sortArchives(out)
	return out, nil
}

func (s *MemoryStore) ReplaceLivingSummary(_ context.Context, sum LivingSummary) error {
	if sum.ModuleID == "" {
		return fmt.Errorf("replace living summary: module id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries[sum.ModuleID] = sum
	return nil
}

func (s *MemoryStore) GetLivingSummary(_ context.Context, moduleID string) (*LivingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sum, ok := s.summaries[moduleID]
	if !ok {
		return nil, ErrSummaryNotFound
	}
	out := sum
	return &out, nil
}

func (s *MemoryStore) ListLivingSummaries(_ context.Context) ([]*LivingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*LivingSummary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		v := sum
		out = append(out, &v)
	}
	sortSummaries(out)
	return out, nil
}

func (s *MemoryStore) UpsertVisit(_ context.Context, v ModuleVisit) error {
	if v.ModuleID == "" {
		return fmt.Errorf("upsert visit: module id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.Active {
		// Only one module is active at a time.
		for id, other := range s.visits {
			if other.Active && id != v.ModuleID {
				other.Active = false
				s.visits[id] = other
			}
		}
	}
	s.visits[v.ModuleID] = v
	return nil
}

func (s *MemoryStore) GetVisit(_ context.Context, moduleID string) (*ModuleVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.visits[moduleID]
	if !ok {
		return nil, ErrVisitNotFound
	}
	out := v
	return &out, nil
}

func (s *MemoryStore) ActiveVisit(_ context.Context) (*ModuleVisit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.visits {
		if v.Active {
			out := v
			return &out, nil
		}
	}
	return nil, ErrVisitNotFound
}

func (s *MemoryStore) SaveCompressionEvent(_ context.Context, ev CompressionEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ModuleID] = append(s.events[ev.ModuleID], ev)
	return nil
}

func (s *MemoryStore) GetCompressionHistory(_ context.Context, moduleID string) ([]*CompressionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	evs := s.events[moduleID]
	out := make([]*CompressionEvent, 0, len(evs))
	for _, ev := range evs {
		e := ev
		out = append(out, &e)
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

func sortArchives(recs []*ArchiveRecord) {
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].ArchivedAt.Before(recs[j].ArchivedAt)
	})
}

func sortSummaries(sums []*LivingSummary) {
	sort.Slice(sums, func(i, j int) bool {
		return sums[i].LastVisitAt.Before(sums[j].LastVisitAt)
	})
}

func copyTurns(turns []Turn) []Turn {
	if turns == nil {
		return nil
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
