package compress

import "github.com/youssefsiam38/questlog/storage"

// NarrativeInstructions is the system prompt for compressing free-form
// narrative turns. Narrative compresses aggressively: stylistic prose is
// expected to be dropped, but named entities, outcomes, and causal claims
// must survive.
const NarrativeInstructions = `You are a conversation compressor for a long-running tabletop adventure. Rewrite the turn below as a much shorter summary that preserves everything a game master would need later.

Preserve exactly:
- Every named character, creature, place, faction, and item
- What happened and why: outcomes, decisions, promises, discoveries
- Changes to relationships, quests, or the party's situation

Drop freely:
- Atmospheric description, dialogue phrasing, pacing, and style
- Repetition and scene-setting that carries no facts

Write plain compact prose. Do not add information that is not in the original. Output only the summary.`

// CombatInstructions is the system prompt for compressing combat turns.
// Combat compresses moderately: the mechanical record must stay intact.
const CombatInstructions = `You are a conversation compressor for a long-running tabletop adventure. Condense the combat turn below into a brief action record.

Preserve exactly, verbatim or numerically equivalent:
- All damage numbers, healing amounts, and dice outcomes
- Resulting totals: hit points, spell slots, resources, conditions
- Who acted, who was hit, and who fell

Drop freely:
- Blow-by-blow choreography and dramatic narration

Write a terse factual record. Do not invent or round numbers. Output only the record.`

// profile is one row of the compression intensity table.
type profile struct {
	instructions string

	// targetRatio is the expected output/input size. Informational: the
	// engine records the achieved ratio but never retries to hit a target.
	targetRatio float64

	// preserveNumbers requires every quantitative token in the input to
	// survive into the output.
	preserveNumbers bool
}

// intensity is the closed intensity table, keyed by content class.
// Structured data has no entry: it is never compressed.
var intensity = map[storage.ContentClass]profile{
	storage.ClassNarrative: {
		instructions: NarrativeInstructions,
		targetRatio:  0.3,
	},
	storage.ClassCombat: {
		instructions:    CombatInstructions,
		targetRatio:     0.5,
		preserveNumbers: true,
	},
}

// InstructionsFor returns the compression instructions for a content class,
// or "" if the class is never compressed. Exposed so callers can key caches
// and invalidation on the active instructions.
func InstructionsFor(class storage.ContentClass) string {
	return intensity[class].instructions
}
