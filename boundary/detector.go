package boundary

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/youssefsiam38/questlog/storage"
)

// State is the detector's position in the transition state machine.
type State int

const (
	// StateWithin means play is inside the current module with no
	// transition evidence outstanding.
	StateWithin State = iota

	// StatePending means exactly one transition signal has been seen and
	// the detector is waiting for the other inside the pending window.
	StatePending

	// StateConfirmed is the instant both signals agree. The detector
	// reports the transition and immediately returns to StateWithin for
	// the destination module.
	StateConfirmed
)

func (s State) String() string {
	switch s {
	case StateWithin:
		return "within_module"
	case StatePending:
		return "transition_pending"
	case StateConfirmed:
		return "transition_confirmed"
	default:
		return "unknown"
	}
}

// DefaultPendingWindow is how many subsequent turns a lone signal is held
// before the detector reverts. Three turns covers the usual narration,
// state update, acknowledgment spacing without holding stale evidence
// across a whole scene.
const DefaultPendingWindow = 3

// Transition is a confirmed module change.
type Transition struct {
	// FromModule is the module being exited.
	FromModule string

	// ToModule is the destination declared by the state update.
	ToModule string

	// CutSeq is the sequence number of the last turn that belongs to the
	// outgoing module. Turns after CutSeq belong to the destination.
	CutSeq int

	// StateSeq and CueSeq locate the two signals that confirmed the
	// transition.
	StateSeq int
	CueSeq   int
}

// stateModulePaths are the gjson paths checked, in order, for the party's
// current module id inside a structured state-update turn.
var stateModulePaths = []string{
	"current_module",
	"module",
	"state.current_module",
	"party.current_module",
}

// cuePatterns match narrative phrasing consistent with leaving the current
// module's area. Matching one is corroborating evidence only; flashbacks
// and hypothetical travel talk trip these too, which is exactly why a cue
// alone never confirms anything.
var cuePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bmodule transition:`),
	regexp.MustCompile(`(?i)\blocation transition:`),
	regexp.MustCompile(`(?i)\b(?:leave|leaves|leaving|depart|departs|departing)\b[^.!?]{0,80}\b(?:for|toward|towards|to)\b`),
	regexp.MustCompile(`(?i)\b(?:set out|sets out|setting out|journey|travels?|travelling|traveling)\b[^.!?]{0,80}\b(?:for|toward|towards|to)\b`),
	regexp.MustCompile(`(?i)\b(?:arrive|arrives|arriving)\s+(?:at|in)\b`),
	regexp.MustCompile(`(?i)\bbehind (?:you|them),?\s+(?:the|its)\b[^.!?]{0,60}\b(?:fades?|recedes?|disappears?)\b`),
}

// Detector watches the turn stream for module transitions using the
// two-signal rule. It is owned by one Session and not safe for concurrent
// use.
type Detector struct {
	state         State
	currentModule string
	pendingWindow int

	// pending evidence
	pendingOpened int // seq of the turn that opened the window
	cueSeq        int
	stateSeq      int
	stateModule   string
}

// NewDetector creates a detector anchored to the given current module.
// pendingWindow <= 0 selects DefaultPendingWindow.
func NewDetector(currentModule string, pendingWindow int) *Detector {
	if pendingWindow <= 0 {
		pendingWindow = DefaultPendingWindow
	}
	return &Detector{
		state:         StateWithin,
		currentModule: currentModule,
		pendingWindow: pendingWindow,
	}
}

// State returns the current machine state.
func (d *Detector) State() State { return d.state }

// CurrentModule returns the module the detector considers active.
func (d *Detector) CurrentModule() string { return d.currentModule }

// Reset re-anchors the detector to a module and clears all pending
// evidence. Called by the Session after a restore it performed itself.
func (d *Detector) Reset(currentModule string) {
	d.currentModule = currentModule
	d.clearPending()
}

// Observe feeds one appended turn through the state machine. It returns a
// confirmed Transition and true at the moment both signals agree; in every
// other case ok is false. A confirmed transition re-anchors the detector to
// the destination module.
func (d *Detector) Observe(t storage.Turn) (Transition, bool) {
	if d.state == StatePending && t.Seq-d.pendingOpened >= d.pendingWindow {
		// The other signal never arrived. Transient narration, not a move.
		d.clearPending()
	}

	if dest, ok := d.stateUpdateModule(t); ok {
		d.stateSeq = t.Seq
		d.stateModule = dest
		if d.state == StateWithin {
			d.state = StatePending
			d.pendingOpened = t.Seq
		}
	}
	if d.narrativeCue(t) {
		d.cueSeq = t.Seq
		if d.state == StateWithin {
			d.state = StatePending
			d.pendingOpened = t.Seq
		}
	}

	if d.state == StatePending && d.stateSeq > 0 && d.cueSeq > 0 {
		d.state = StateConfirmed
		tr := Transition{
			FromModule: d.currentModule,
			ToModule:   d.stateModule,
			CutSeq:     d.stateSeq - 1,
			StateSeq:   d.stateSeq,
			CueSeq:     d.cueSeq,
		}
		d.currentModule = tr.ToModule
		d.clearPending()
		return tr, true
	}
	return Transition{}, false
}

// stateUpdateModule extracts a destination module id from a structured
// state-update turn. The update is a signal only when it names a module
// different from the current one.
func (d *Detector) stateUpdateModule(t storage.Turn) (string, bool) {
	if t.Class != storage.ClassStructured {
		return "", false
	}
	payload := t.Content
	if start := strings.IndexByte(payload, '{'); start >= 0 {
		payload = payload[start:]
	}
	if !gjson.Valid(payload) {
		return "", false
	}
	for _, path := range stateModulePaths {
		if v := gjson.Get(payload, path); v.Type == gjson.String && v.Str != "" {
			if v.Str == d.currentModule {
				return "", false
			}
			return v.Str, true
		}
	}
	return "", false
}

func (d *Detector) narrativeCue(t storage.Turn) bool {
	if t.Class == storage.ClassStructured {
		return false
	}
	for _, p := range cuePatterns {
		if p.MatchString(t.Content) {
			return true
		}
	}
	return false
}

func (d *Detector) clearPending() {
	d.state = StateWithin
	d.pendingOpened = 0
	d.cueSeq = 0
	d.stateSeq = 0
	d.stateModule = ""
}
