package summary

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

func historyOf(n int) []storage.Turn {
	turns := make([]storage.Turn, 0, n)
	for seq := 1; seq <= n; seq++ {
		turns = append(turns, storage.Turn{
			Role:      storage.RoleNarrator,
			Content:   "The party pressed deeper into the ruin.",
			Seq:       seq,
			Timestamp: time.Now().UTC(),
			Class:     storage.ClassNarrative,
			State:     storage.StateVerbatim,
		})
	}
	return turns
}

func TestRegenerate_FirstExit(t *testing.T) {
	store := storage.NewMemoryStore()
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "The party explored the ruin and survived.", nil
	}}
	g := NewGenerator(mock, store)

	now := time.Now()
	sum, err := g.Regenerate(context.Background(), "ruin", historyOf(6), now)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if sum.VisitCount != 1 {
		t.Errorf("visit count %d, want 1", sum.VisitCount)
	}
	if sum.NarrativeText != "The party explored the ruin and survived." {
		t.Errorf("narrative %q", sum.NarrativeText)
	}
	if sum.FirstVisitAt.IsZero() || sum.LastVisitAt.IsZero() {
		t.Error("visit timestamps not stamped")
	}

	persisted, err := store.GetLivingSummary(context.Background(), "ruin")
	if err != nil {
		t.Fatalf("persisted summary missing: %v", err)
	}
	if persisted.VisitCount != 1 {
		t.Errorf("persisted visit count %d, want 1", persisted.VisitCount)
	}
}

func TestRegenerate_VisitCountMonotonic(t *testing.T) {
	store := storage.NewMemoryStore()
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "Chronicle so far.", nil
	}}
	g := NewGenerator(mock, store)

	for exit := 1; exit <= 4; exit++ {
		sum, err := g.Regenerate(context.Background(), "ruin", historyOf(exit*3), time.Now())
		if err != nil {
			t.Fatalf("exit %d: %v", exit, err)
		}
		if sum.VisitCount != exit {
			t.Fatalf("exit %d: visit count %d, want exactly one increment per exit", exit, sum.VisitCount)
		}
	}
}

func TestRegenerate_ReplacesNotAppends(t *testing.T) {
	store := storage.NewMemoryStore()
	call := 0
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		call++
		if call == 1 {
			return "First chronicle.", nil
		}
		return "Second chronicle.", nil
	}}
	g := NewGenerator(mock, store)

	g.Regenerate(context.Background(), "ruin", historyOf(3), time.Now())
	sum, err := g.Regenerate(context.Background(), "ruin", historyOf(6), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if sum.NarrativeText != "Second chronicle." {
		t.Errorf("narrative %q, want a full replacement, not an append", sum.NarrativeText)
	}
	if strings.Contains(sum.NarrativeText, "First chronicle.") {
		t.Error("prior narrative leaked into the regenerated text")
	}
}

func TestRegenerate_FailureRetainsPriorNarrative(t *testing.T) {
	store := storage.NewMemoryStore()
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "The first visit, chronicled.", nil
	}}
	g := NewGenerator(mock, store)
	ctx := context.Background()

	if _, err := g.Regenerate(ctx, "ruin", historyOf(3), time.Now()); err != nil {
		t.Fatal(err)
	}

	mock.SummarizeFunc = func(_ context.Context, req model.Request) (string, error) {
		return "", errors.New("model unavailable")
	}
	sum, err := g.Regenerate(ctx, "ruin", historyOf(6), time.Now())
	if err == nil {
		t.Fatal("expected a regeneration error")
	}
	if sum.NarrativeText != "The first visit, chronicled." {
		t.Errorf("narrative %q, want the prior text retained", sum.NarrativeText)
	}
	if sum.VisitCount != 2 {
		t.Errorf("visit count %d, want 2: the exit still happened", sum.VisitCount)
	}

	persisted, perr := store.GetLivingSummary(ctx, "ruin")
	if perr != nil {
		t.Fatal(perr)
	}
	if persisted.NarrativeText != "The first visit, chronicled." || persisted.VisitCount != 2 {
		t.Errorf("persisted summary %+v, want stale-but-valid narrative with bumped count", persisted)
	}
}

func TestRegenerate_EmptyNarrativeIsFailure(t *testing.T) {
	store := storage.NewMemoryStore()
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "   \n", nil
	}}
	g := NewGenerator(mock, store)

	_, err := g.Regenerate(context.Background(), "ruin", historyOf(3), time.Now())
	if !errors.Is(err, ErrEmptyNarrative) {
		t.Fatalf("got %v, want ErrEmptyNarrative", err)
	}
}

func TestTranscript(t *testing.T) {
	turns := []storage.Turn{
		{Role: storage.RolePlayer, Content: "I open the door.", Seq: 1},
		{Role: storage.RoleNarrator, Content: "It creaks.", Seq: 2},
	}
	got := Transcript(turns)
	want := "player: I open the door.\n\nnarrator: It creaks."
	if got != want {
		t.Errorf("Transcript() = %q, want %q", got, want)
	}
}
