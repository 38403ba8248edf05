package storage

import (
	"fmt"
	"time"
)

// Role identifies the author of a turn.
type Role string

const (
	RolePlayer   Role = "player"
	RoleNarrator Role = "narrator"
	RoleSystem   Role = "system"
)

// ContentClass selects the compression intensity profile for a turn.
// It is a closed set: unknown classes are rejected at append time rather
// than inferred by string matching on turn content.
type ContentClass string

const (
	// ClassNarrative is free-form prose. Compressed aggressively.
	ClassNarrative ContentClass = "narrative"

	// ClassCombat is combat narration. Compressed moderately; quantitative
	// outcomes (damage numbers, resulting resource totals) must survive
	// verbatim or numerically equivalent.
	ClassCombat ContentClass = "combat"

	// ClassStructured is machine-readable state data. Never compressed.
	ClassStructured ContentClass = "structured"
)

// Valid reports whether c is one of the known content classes.
func (c ContentClass) Valid() bool {
	switch c {
	case ClassNarrative, ClassCombat, ClassStructured:
		return true
	}
	return false
}

// CompressionState tracks where a turn sits in the compression lifecycle.
type CompressionState string

const (
	// StateVerbatim means the turn carries its original content.
	StateVerbatim CompressionState = "verbatim"

	// StateCompressed means Content has been replaced by a compressed form.
	StateCompressed CompressionState = "compressed"

	// StateDeferred means a compression attempt failed and the original
	// content was kept. Deferred turns are retried on later passes with
	// backoff.
	StateDeferred CompressionState = "deferred"
)

// Turn is one atomic unit of conversation: a player action or a narrator
// response. Role and Seq are invariant once appended; Content may be
// replaced in place by a compressed form.
type Turn struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Seq       int              `json:"seq"`
	Timestamp time.Time        `json:"timestamp"`
	Class     ContentClass     `json:"class"`
	State     CompressionState `json:"state"`

	// Attempts counts failed compression attempts, used to compute the
	// retry backoff for deferred turns.
	Attempts int `json:"attempts,omitempty"`

	// NextRetryAt is the earliest time a deferred turn may be retried.
	NextRetryAt time.Time `json:"next_retry_at,omitempty"`
}

// Compressed reports whether the turn's content has already been replaced
// by a compressed form.
func (t *Turn) Compressed() bool {
	return t.State == StateCompressed
}

// RetryEligible reports whether a deferred turn may be retried at now.
func (t *Turn) RetryEligible(now time.Time) bool {
	if t.State != StateDeferred {
		return true
	}
	return !now.Before(t.NextRetryAt)
}

func (t *Turn) String() string {
	return fmt.Sprintf("turn %d (%s/%s, %d chars)", t.Seq, t.Role, t.Class, len(t.Content))
}
