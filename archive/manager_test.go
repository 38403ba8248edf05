package archive

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/youssefsiam38/questlog/storage"
)

func segmentOf(n int) []storage.Turn {
	turns := make([]storage.Turn, 0, n)
	for seq := 1; seq <= n; seq++ {
		turns = append(turns, storage.Turn{
			Role:      storage.RolePlayer,
			Content:   fmt.Sprintf("turn %d", seq),
			Seq:       seq,
			Timestamp: time.Now().UTC(),
			Class:     storage.ClassNarrative,
			State:     storage.StateVerbatim,
		})
	}
	return turns
}

func TestManager_RoundTripFidelity(t *testing.T) {
	m := NewManager(storage.NewMemoryStore())
	ctx := context.Background()
	turns := segmentOf(12)

	if _, err := m.Archive(ctx, "sunless-citadel", turns); err != nil {
		t.Fatalf("archive: %v", err)
	}
	restored, err := m.Restore(ctx, "sunless-citadel")
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored) != len(turns) {
		t.Fatalf("restored %d turns, want %d", len(restored), len(turns))
	}
	for i := range turns {
		if restored[i].Seq != turns[i].Seq {
			t.Errorf("turn %d: seq %d, want %d", i, restored[i].Seq, turns[i].Seq)
		}
		if restored[i].Content != turns[i].Content {
			t.Errorf("turn %d: content %q, want %q", i, restored[i].Content, turns[i].Content)
		}
	}
}

func TestManager_FirstVisit(t *testing.T) {
	m := NewManager(storage.NewMemoryStore())
	_, err := m.Restore(context.Background(), "never-visited")
	if !errors.Is(err, ErrFirstVisit) {
		t.Fatalf("got %v, want ErrFirstVisit", err)
	}
}

func TestManager_ReArchiveOverwrites(t *testing.T) {
	m := NewManager(storage.NewMemoryStore())
	ctx := context.Background()

	if _, err := m.Archive(ctx, "mod", segmentOf(5)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Archive(ctx, "mod", segmentOf(9)); err != nil {
		t.Fatal(err)
	}
	restored, err := m.Restore(ctx, "mod")
	if err != nil {
		t.Fatal(err)
	}
	if len(restored) != 9 {
		t.Fatalf("restored %d turns, want the 9 from the second archive", len(restored))
	}
}

func TestManager_RefusesEmptySegment(t *testing.T) {
	store := storage.NewMemoryStore()
	m := NewManager(store)
	ctx := context.Background()

	if _, err := m.Archive(ctx, "mod", segmentOf(3)); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Archive(ctx, "mod", nil); !errors.Is(err, ErrEmptySegment) {
		t.Fatalf("got %v, want ErrEmptySegment", err)
	}
	restored, err := m.Restore(ctx, "mod")
	if err != nil || len(restored) != 3 {
		t.Fatalf("prior archive must survive a refused write: %d turns, %v", len(restored), err)
	}
}

func TestManager_ArchiveDoesNotAliasInput(t *testing.T) {
	m := NewManager(storage.NewMemoryStore())
	ctx := context.Background()
	turns := segmentOf(2)

	if _, err := m.Archive(ctx, "mod", turns); err != nil {
		t.Fatal(err)
	}
	turns[0].Content = "mutated after archiving"

	restored, err := m.Restore(ctx, "mod")
	if err != nil {
		t.Fatal(err)
	}
	if restored[0].Content != "turn 1" {
		t.Error("archive record shares memory with the caller's slice")
	}
}
