package compress

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/youssefsiam38/questlog/model"
	"github.com/youssefsiam38/questlog/storage"
)

func narrativeTurn(seq int, content string) storage.Turn {
	return storage.Turn{
		Role:      storage.RoleNarrator,
		Content:   content,
		Seq:       seq,
		Timestamp: time.Now(),
		Class:     storage.ClassNarrative,
		State:     storage.StateVerbatim,
	}
}

func TestCompressTurn_Narrative(t *testing.T) {
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "short summary", nil
	}}
	c := NewCompressor(mock, nil, Config{})

	content := strings.Repeat("The party walked through the endless mist. ", 10)
	res := c.CompressTurn(context.Background(), narrativeTurn(1, content))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Compressed != "short summary" {
		t.Errorf("got %q, want model output", res.Compressed)
	}
	if res.Original != content {
		t.Error("original content must be carried through unchanged")
	}
	if mock.CallCount() != 1 {
		t.Errorf("model called %d times, want 1", mock.CallCount())
	}
}

func TestCompressTurn_IdempotenceGuard(t *testing.T) {
	mock := &model.Mock{}
	c := NewCompressor(mock, nil, Config{})

	turn := narrativeTurn(1, "already shrunk")
	turn.State = storage.StateCompressed

	res := c.CompressTurn(context.Background(), turn)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Compressed != "already shrunk" {
		t.Errorf("compressed turn must pass through unchanged, got %q", res.Compressed)
	}
	if mock.CallCount() != 0 {
		t.Errorf("model called %d times for an already-compressed turn, want 0", mock.CallCount())
	}
}

func TestCompressTurn_StructuredPassthrough(t *testing.T) {
	mock := &model.Mock{}
	c := NewCompressor(mock, nil, Config{})

	turn := narrativeTurn(1, `{"hp": 12, "gold": 300}`)
	turn.Class = storage.ClassStructured

	res := c.CompressTurn(context.Background(), turn)
	if res.Err != nil || res.Compressed != turn.Content {
		t.Fatalf("structured content must never be compressed: (%q, %v)", res.Compressed, res.Err)
	}
	if mock.CallCount() != 0 {
		t.Error("model must not be called for structured content")
	}
}

func TestCompressTurn_ModelFailure(t *testing.T) {
	wantErr := errors.New("endpoint unavailable")
	mock := &model.Mock{Err: wantErr}
	c := NewCompressor(mock, nil, Config{})

	turn := narrativeTurn(1, strings.Repeat("long narration ", 20))
	res := c.CompressTurn(context.Background(), turn)
	if !errors.Is(res.Err, wantErr) {
		t.Fatalf("got %v, want wrapped %v", res.Err, wantErr)
	}
	if res.Compressed != turn.Content {
		t.Error("failed compression must leave the original content in place")
	}
}

func TestCompressTurn_NoReduction(t *testing.T) {
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return req.Input + " but longer", nil
	}}
	c := NewCompressor(mock, nil, Config{})

	res := c.CompressTurn(context.Background(), narrativeTurn(1, "brief"))
	if !errors.Is(res.Err, ErrNoReduction) {
		t.Fatalf("got %v, want ErrNoReduction", res.Err)
	}
	if _, ok := c.Cache().Get(CacheKey("brief", NarrativeInstructions)); ok {
		t.Error("a rejected result must not be cached")
	}
}

func TestCompressTurn_CombatPreservesNumbers(t *testing.T) {
	content := "The ogre's club deals 17 damage. Brynn drops to 4 hit points and spends 2 potions. " +
		strings.Repeat("The fight rages on and on. ", 10)

	t.Run("numbers retained", func(t *testing.T) {
		mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
			return "Ogre hit Brynn for 17; she fell to 4 hp, using 2 potions.", nil
		}}
		c := NewCompressor(mock, nil, Config{})
		turn := narrativeTurn(1, content)
		turn.Class = storage.ClassCombat
		if res := c.CompressTurn(context.Background(), turn); res.Err != nil {
			t.Fatalf("unexpected error: %v", res.Err)
		}
	})

	t.Run("numbers dropped", func(t *testing.T) {
		mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
			return "The ogre badly hurt Brynn, who used some potions.", nil
		}}
		c := NewCompressor(mock, nil, Config{})
		turn := narrativeTurn(1, content)
		turn.Class = storage.ClassCombat
		res := c.CompressTurn(context.Background(), turn)
		if !errors.Is(res.Err, ErrLossyResult) {
			t.Fatalf("got %v, want ErrLossyResult", res.Err)
		}
		if res.Compressed != content {
			t.Error("lossy result must be discarded, original retained")
		}
	})
}

func TestCompressTurn_CombatStructuredPayloadNumbers(t *testing.T) {
	content := "Round resolved. " + strings.Repeat("Steel clashed against hide. ", 8) +
		`Outcome: {"damage": 23, "remaining": {"hp": 41}}`

	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "The round resolved with 23 damage, leaving 41 hp.", nil
	}}
	c := NewCompressor(mock, nil, Config{})
	turn := narrativeTurn(1, content)
	turn.Class = storage.ClassCombat
	if res := c.CompressTurn(context.Background(), turn); res.Err != nil {
		t.Fatalf("payload numbers present in output, want success: %v", res.Err)
	}
}

func TestCompressTurn_CacheHit(t *testing.T) {
	mock := &model.Mock{SummarizeFunc: func(_ context.Context, req model.Request) (string, error) {
		return "summary", nil
	}}
	c := NewCompressor(mock, nil, Config{})

	content := strings.Repeat("Identical narration repeated across sessions. ", 5)
	first := c.CompressTurn(context.Background(), narrativeTurn(1, content))
	second := c.CompressTurn(context.Background(), narrativeTurn(9, content))

	if first.Err != nil || second.Err != nil {
		t.Fatalf("unexpected errors: %v, %v", first.Err, second.Err)
	}
	if first.FromCache {
		t.Error("first compression cannot be a cache hit")
	}
	if !second.FromCache {
		t.Error("identical content must be served from cache")
	}
	if mock.CallCount() != 1 {
		t.Errorf("model called %d times, want 1", mock.CallCount())
	}
	if first.Compressed != second.Compressed {
		t.Error("cache must return the identical result")
	}
}
