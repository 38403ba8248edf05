package questlog

import (
	"fmt"
	"time"

	"github.com/youssefsiam38/questlog/storage"
)

// Segment is the ordered turn log for one module's current visit.
//
// Sequence numbers are strictly increasing with no gaps. The compression
// frontier splits the log: turns before it are eligible for compression,
// turns at or after it stay verbatim to preserve immediate-context fidelity
// for the model's next response.
//
// A Segment is owned by exactly one Session and is not safe for concurrent
// use on its own; the Session serializes access.
type Segment struct {
	moduleID string
	turns    []storage.Turn

	// generation is bumped on every transition handoff. Compression passes
	// capture it before fanning out and write back only if it is unchanged,
	// so in-flight work on an archived segment is silently abandoned.
	generation uint64
}

// NewSegment creates an empty segment for the given module.
func NewSegment(moduleID string) *Segment {
	return &Segment{moduleID: moduleID}
}

// RestoredSegment creates a segment seeded with previously archived turns.
// The turns keep their original sequence numbers and order.
func RestoredSegment(moduleID string, turns []storage.Turn) *Segment {
	s := &Segment{moduleID: moduleID}
	s.turns = append(s.turns, turns...)
	return s
}

// ModuleID returns the module this segment belongs to.
func (s *Segment) ModuleID() string { return s.moduleID }

// Len returns the number of turns in the segment.
func (s *Segment) Len() int { return len(s.turns) }

// Generation returns the current handoff generation.
func (s *Segment) Generation() uint64 { return s.generation }

// NextSeq returns the sequence number the next appended turn will receive.
func (s *Segment) NextSeq() int {
	if len(s.turns) == 0 {
		return 1
	}
	return s.turns[len(s.turns)-1].Seq + 1
}

// Append adds a turn to the end of the log. Seq and Timestamp are assigned
// here; callers supply role, content, and class only.
func (s *Segment) Append(role storage.Role, content string, class storage.ContentClass, now time.Time) (storage.Turn, error) {
	if !class.Valid() {
		return storage.Turn{}, fmt.Errorf("%w: unknown content class %q", ErrInvalidTurn, class)
	}
	t := storage.Turn{
		Role:      role,
		Content:   content,
		Seq:       s.NextSeq(),
		Timestamp: now,
		Class:     class,
		State:     storage.StateVerbatim,
	}
	s.turns = append(s.turns, t)
	return t, nil
}

// Turn returns a copy of the turn with the given sequence number.
func (s *Segment) Turn(seq int) (storage.Turn, bool) {
	i, ok := s.index(seq)
	if !ok {
		return storage.Turn{}, false
	}
	return s.turns[i], true
}

// Turns returns a copy of the full ordered turn log.
func (s *Segment) Turns() []storage.Turn {
	out := make([]storage.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// TurnsUpTo returns a copy of all turns with Seq <= cutSeq, in order.
func (s *Segment) TurnsUpTo(cutSeq int) []storage.Turn {
	var out []storage.Turn
	for _, t := range s.turns {
		if t.Seq > cutSeq {
			break
		}
		out = append(out, t)
	}
	return out
}

// Frontier returns the index before which turns are eligible for
// compression, keeping the newest keepRecent turns verbatim.
func (s *Segment) Frontier(keepRecent int) int {
	if keepRecent < 0 {
		keepRecent = 0
	}
	f := len(s.turns) - keepRecent
	if f < 0 {
		return 0
	}
	return f
}

// Eligible returns copies of the turns eligible for a compression pass at
// now: before the frontier, not structured, not already compressed, and not
// deferred turns still inside their backoff window.
func (s *Segment) Eligible(keepRecent int, now time.Time) []storage.Turn {
	frontier := s.Frontier(keepRecent)
	var out []storage.Turn
	for _, t := range s.turns[:frontier] {
		if t.Class == storage.ClassStructured || t.Compressed() || !t.RetryEligible(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// ReplaceContent swaps a turn's content for its compressed form. The
// original content must still match, so a stale write-back from a pass that
// raced an append or a restore is refused rather than applied.
func (s *Segment) ReplaceContent(seq int, original, compressed string) error {
	i, ok := s.index(seq)
	if !ok {
		return fmt.Errorf("%w: seq %d", ErrTurnNotFound, seq)
	}
	if s.turns[i].Compressed() {
		return nil // idempotent: a second pass over a compressed turn is a no-op
	}
	if s.turns[i].Content != original {
		return fmt.Errorf("%w: seq %d content changed since pass started", ErrStaleWriteback, seq)
	}
	s.turns[i].Content = compressed
	s.turns[i].State = storage.StateCompressed
	s.turns[i].Attempts = 0
	s.turns[i].NextRetryAt = time.Time{}
	return nil
}

// MarkDeferred records a failed compression attempt on a turn and schedules
// its next retry. The content is left untouched.
func (s *Segment) MarkDeferred(seq int, nextRetryAt time.Time) error {
	i, ok := s.index(seq)
	if !ok {
		return fmt.Errorf("%w: seq %d", ErrTurnNotFound, seq)
	}
	if s.turns[i].Compressed() {
		return nil
	}
	s.turns[i].State = storage.StateDeferred
	s.turns[i].Attempts++
	s.turns[i].NextRetryAt = nextRetryAt
	return nil
}

// Size returns the total content length in characters. The context budget
// check is character-based, mirroring the model capability's budget.
func (s *Segment) Size() int {
	total := 0
	for _, t := range s.turns {
		total += len(t.Content)
	}
	return total
}

// bumpGeneration invalidates in-flight compression write-backs. Called by
// the Session at transition handoff.
func (s *Segment) bumpGeneration() {
	s.generation++
}

// validate checks the gap-free strictly-increasing Seq invariant. Used by
// restore paths; appends maintain the invariant by construction.
func (s *Segment) validate() error {
	for i := 1; i < len(s.turns); i++ {
		if s.turns[i].Seq != s.turns[i-1].Seq+1 {
			return fmt.Errorf("%w: seq %d followed by %d",
				ErrSegmentCorrupt, s.turns[i-1].Seq, s.turns[i].Seq)
		}
	}
	return nil
}

func (s *Segment) index(seq int) (int, bool) {
	if len(s.turns) == 0 {
		return 0, false
	}
	first := s.turns[0].Seq
	i := seq - first
	if i < 0 || i >= len(s.turns) || s.turns[i].Seq != seq {
		return 0, false
	}
	return i, true
}
