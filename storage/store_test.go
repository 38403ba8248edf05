package storage_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/questlog/internal/testutil"
	"github.com/youssefsiam38/questlog/storage"
)

// runStoreTests exercises the Store contract against any implementation.
func runStoreTests(t *testing.T, open func(t *testing.T) storage.Store) {
	ctx := context.Background()

	turnAt := func(seq int) storage.Turn {
		return storage.Turn{
			Role:      storage.RolePlayer,
			Content:   fmt.Sprintf("turn %d", seq),
			Seq:       seq,
			Timestamp: time.Now().UTC().Truncate(time.Millisecond),
			Class:     storage.ClassNarrative,
			State:     storage.StateVerbatim,
		}
	}

	t.Run("segment append and load", func(t *testing.T) {
		s := open(t)
		for seq := 1; seq <= 3; seq++ {
			if err := s.AppendTurn(ctx, "mod", turnAt(seq)); err != nil {
				t.Fatal(err)
			}
		}
		turns, err := s.LoadSegment(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if len(turns) != 3 {
			t.Fatalf("loaded %d turns, want 3", len(turns))
		}
		for i, turn := range turns {
			if turn.Seq != i+1 || turn.Content != fmt.Sprintf("turn %d", i+1) {
				t.Errorf("turn %d: %+v", i, turn)
			}
		}
	})

	t.Run("replace turn content", func(t *testing.T) {
		s := open(t)
		if err := s.AppendTurn(ctx, "mod", turnAt(1)); err != nil {
			t.Fatal(err)
		}
		updated := turnAt(1)
		updated.Content = "compacted"
		updated.State = storage.StateCompressed
		if err := s.ReplaceTurnContent(ctx, "mod", updated); err != nil {
			t.Fatal(err)
		}
		turns, err := s.LoadSegment(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if turns[0].Content != "compacted" || turns[0].State != storage.StateCompressed {
			t.Errorf("turn after replace: %+v", turns[0])
		}
	})

	t.Run("deferred turn round trip", func(t *testing.T) {
		s := open(t)
		deferred := turnAt(1)
		deferred.State = storage.StateDeferred
		deferred.Attempts = 2
		deferred.NextRetryAt = time.Now().UTC().Add(time.Minute).Truncate(time.Millisecond)
		if err := s.AppendTurn(ctx, "mod", deferred); err != nil {
			t.Fatal(err)
		}
		turns, err := s.LoadSegment(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if turns[0].State != storage.StateDeferred || turns[0].Attempts != 2 {
			t.Errorf("deferred fields lost: %+v", turns[0])
		}
		if turns[0].NextRetryAt.IsZero() {
			t.Error("next retry time lost")
		}
	})

	t.Run("clear segment", func(t *testing.T) {
		s := open(t)
		if err := s.AppendTurn(ctx, "mod", turnAt(1)); err != nil {
			t.Fatal(err)
		}
		if err := s.ClearSegment(ctx, "mod"); err != nil {
			t.Fatal(err)
		}
		turns, err := s.LoadSegment(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if len(turns) != 0 {
			t.Errorf("%d turns after clear, want 0", len(turns))
		}
	})

	t.Run("replace segment", func(t *testing.T) {
		s := open(t)
		if err := s.AppendTurn(ctx, "mod", turnAt(9)); err != nil {
			t.Fatal(err)
		}
		if err := s.ReplaceSegment(ctx, "mod", []storage.Turn{turnAt(1), turnAt(2)}); err != nil {
			t.Fatal(err)
		}
		turns, err := s.LoadSegment(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if len(turns) != 2 || turns[0].Seq != 1 {
			t.Errorf("segment after replace: %+v", turns)
		}
	})

	t.Run("archive overwrite", func(t *testing.T) {
		s := open(t)
		first := storage.ArchiveRecord{
			ID:         uuid.NewString(),
			ModuleID:   "mod",
			Turns:      []storage.Turn{turnAt(1)},
			ArchivedAt: time.Now().UTC().Truncate(time.Millisecond),
		}
		if err := s.ReplaceArchive(ctx, first); err != nil {
			t.Fatal(err)
		}
		second := first
		second.ID = uuid.NewString()
		second.Turns = []storage.Turn{turnAt(1), turnAt(2)}
		if err := s.ReplaceArchive(ctx, second); err != nil {
			t.Fatal(err)
		}
		rec, err := s.GetArchive(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if len(rec.Turns) != 2 {
			t.Errorf("archive has %d turns, want the overwriting record's 2", len(rec.Turns))
		}
		all, err := s.ListArchives(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(all) != 1 {
			t.Errorf("%d archive records, want 1 per module", len(all))
		}
	})

	t.Run("archive not found", func(t *testing.T) {
		s := open(t)
		if _, err := s.GetArchive(ctx, "nowhere"); !errors.Is(err, storage.ErrArchiveNotFound) {
			t.Fatalf("got %v, want ErrArchiveNotFound", err)
		}
	})

	t.Run("living summary overwrite", func(t *testing.T) {
		s := open(t)
		now := time.Now().UTC().Truncate(time.Millisecond)
		if _, err := s.GetLivingSummary(ctx, "mod"); !errors.Is(err, storage.ErrSummaryNotFound) {
			t.Fatalf("got %v, want ErrSummaryNotFound", err)
		}
		if err := s.ReplaceLivingSummary(ctx, storage.LivingSummary{
			ModuleID: "mod", NarrativeText: "v1", VisitCount: 1, FirstVisitAt: now, LastVisitAt: now,
		}); err != nil {
			t.Fatal(err)
		}
		if err := s.ReplaceLivingSummary(ctx, storage.LivingSummary{
			ModuleID: "mod", NarrativeText: "v2", VisitCount: 2, FirstVisitAt: now, LastVisitAt: now,
		}); err != nil {
			t.Fatal(err)
		}
		sum, err := s.GetLivingSummary(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if sum.NarrativeText != "v2" || sum.VisitCount != 2 {
			t.Errorf("summary after overwrite: %+v", sum)
		}
		all, err := s.ListLivingSummaries(ctx)
		if err != nil || len(all) != 1 {
			t.Errorf("%d summaries (%v), want 1", len(all), err)
		}
	})

	t.Run("visits and active switching", func(t *testing.T) {
		s := open(t)
		now := time.Now().UTC().Truncate(time.Millisecond)

		if _, err := s.ActiveVisit(ctx); !errors.Is(err, storage.ErrVisitNotFound) {
			t.Fatalf("got %v, want ErrVisitNotFound", err)
		}
		if err := s.UpsertVisit(ctx, storage.ModuleVisit{
			ModuleID: "a", State: storage.VisitFresh, Active: true, EnteredAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}
		if err := s.UpsertVisit(ctx, storage.ModuleVisit{
			ModuleID: "b", State: storage.VisitRestored, Active: true, EnteredAt: now, UpdatedAt: now,
		}); err != nil {
			t.Fatal(err)
		}

		active, err := s.ActiveVisit(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if active.ModuleID != "b" {
			t.Errorf("active module %q, want b", active.ModuleID)
		}
		prior, err := s.GetVisit(ctx, "a")
		if err != nil {
			t.Fatal(err)
		}
		if prior.Active {
			t.Error("activating b must deactivate a")
		}
	})

	t.Run("compression events", func(t *testing.T) {
		s := open(t)
		ev := storage.CompressionEvent{
			ID:              uuid.NewString(),
			ModuleID:        "mod",
			TurnsEligible:   10,
			TurnsCompressed: 8,
			TurnsDeferred:   2,
			CacheHits:       3,
			OriginalChars:   4000,
			CompressedChars: 1200,
			DurationMs:      250,
			CreatedAt:       time.Now().UTC().Truncate(time.Millisecond),
		}
		if err := s.SaveCompressionEvent(ctx, ev); err != nil {
			t.Fatal(err)
		}
		history, err := s.GetCompressionHistory(ctx, "mod")
		if err != nil {
			t.Fatal(err)
		}
		if len(history) != 1 || history[0].TurnsCompressed != 8 {
			t.Errorf("history: %+v", history)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) storage.Store {
		return storage.NewMemoryStore()
	})
}

func TestSQLiteStore(t *testing.T) {
	runStoreTests(t, func(t *testing.T) storage.Store {
		s, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "questlog.db"))
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestPostgresStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	t.Cleanup(db.Close)

	ctx := context.Background()
	s := storage.NewPostgresStore(db.Pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	runStoreTests(t, func(t *testing.T) storage.Store {
		if err := db.CleanTables(ctx); err != nil {
			t.Fatal(err)
		}
		return s
	})
}
