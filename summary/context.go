package summary

import (
	"fmt"
	"strings"

	"github.com/youssefsiam38/questlog/storage"
)

// CampaignContext assembles the cross-module context block injected ahead
// of the active segment in the model prompt. Every module except the
// active one contributes its living summary, oldest visit first, each
// under a chronicle heading. Modules without narrative text are skipped.
//
// maxChars bounds the block; when the summaries overflow it, the oldest
// entries are dropped whole until the block fits (recent history is worth
// more to the model than ancient history). maxChars <= 0 means unbounded.
func CampaignContext(summaries []*storage.LivingSummary, activeModule string, maxChars int) string {
	var entries []string
	for _, s := range summaries {
		if s.ModuleID == activeModule || strings.TrimSpace(s.NarrativeText) == "" {
			continue
		}
		entries = append(entries, fmt.Sprintf("--- %s (Chronicle %03d) ---\n%s",
			s.ModuleID, s.VisitCount, strings.TrimSpace(s.NarrativeText)))
	}
	if len(entries) == 0 {
		return ""
	}

	build := func(es []string) string {
		return "=== CAMPAIGN CONTEXT ===\n\n" + strings.Join(es, "\n\n")
	}
	out := build(entries)
	if maxChars > 0 {
		for len(out) > maxChars && len(entries) > 1 {
			entries = entries[1:]
			out = build(entries)
		}
	}
	return out
}
