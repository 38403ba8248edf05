package summary

import (
	"strings"

	"github.com/youssefsiam38/questlog/storage"
)

// RegenerateInstructions is the system prompt for living-summary
// regeneration. The model is given the module's entire turn history and
// asked for one cohesive narrative; appending to the old summary instead
// would grow without bound and restate already-summarized events.
const RegenerateInstructions = `You are the chronicler for an ongoing tabletop campaign. You will be given the complete transcript of every session the party has played inside one module of the campaign, across all of their visits.

Write a single cohesive narrative summary of the party's entire history in this module. Requirements:
- Cover all visits as one continuous story, in chronological order.
- Preserve the names of characters, places, factions, and items exactly as they appear.
- State outcomes plainly: who was defeated, what was gained or lost, which promises were made, which threads remain open.
- Keep quantitative outcomes that still matter (deaths, rewards, standing with factions).
- Write in past tense, third person. No headings, no bullet lists, no commentary about the transcript itself.

Output only the narrative.`

// Transcript renders turns into the plain-text form fed to the model.
func Transcript(turns []storage.Turn) string {
	var b strings.Builder
	for _, t := range turns {
		b.WriteString(string(t.Role))
		b.WriteString(": ")
		b.WriteString(t.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
