package summary

import (
	"strings"
	"testing"

	"github.com/youssefsiam38/questlog/storage"
)

func TestCampaignContext_Format(t *testing.T) {
	summaries := []*storage.LivingSummary{
		{ModuleID: "keep-valley", NarrativeText: "The keep fell to the party.", VisitCount: 2},
		{ModuleID: "sunless-citadel", NarrativeText: "They descended the citadel.", VisitCount: 11},
	}
	got := CampaignContext(summaries, "underdark", 0)

	if !strings.HasPrefix(got, "=== CAMPAIGN CONTEXT ===\n\n") {
		t.Errorf("missing header: %q", got)
	}
	if !strings.Contains(got, "--- keep-valley (Chronicle 002) ---\nThe keep fell to the party.") {
		t.Errorf("keep-valley entry malformed:\n%s", got)
	}
	if !strings.Contains(got, "--- sunless-citadel (Chronicle 011) ---") {
		t.Errorf("chronicle number not zero-padded:\n%s", got)
	}
}

func TestCampaignContext_ExcludesActiveModule(t *testing.T) {
	summaries := []*storage.LivingSummary{
		{ModuleID: "keep-valley", NarrativeText: "History.", VisitCount: 1},
		{ModuleID: "underdark", NarrativeText: "Current events.", VisitCount: 1},
	}
	got := CampaignContext(summaries, "underdark", 0)
	if strings.Contains(got, "underdark") {
		t.Errorf("active module must not appear in its own context:\n%s", got)
	}
}

func TestCampaignContext_SkipsEmptyAndNothing(t *testing.T) {
	if got := CampaignContext(nil, "x", 0); got != "" {
		t.Errorf("no summaries must yield an empty block, got %q", got)
	}
	summaries := []*storage.LivingSummary{
		{ModuleID: "mod", NarrativeText: "   ", VisitCount: 1},
	}
	if got := CampaignContext(summaries, "x", 0); got != "" {
		t.Errorf("blank narratives must be skipped, got %q", got)
	}
}

func TestCampaignContext_BudgetDropsOldestFirst(t *testing.T) {
	long := strings.Repeat("history ", 50)
	summaries := []*storage.LivingSummary{
		{ModuleID: "oldest", NarrativeText: long, VisitCount: 1},
		{ModuleID: "middle", NarrativeText: long, VisitCount: 1},
		{ModuleID: "newest", NarrativeText: long, VisitCount: 1},
	}
	got := CampaignContext(summaries, "x", 600)
	if strings.Contains(got, "--- oldest") {
		t.Errorf("oldest entry should be dropped under budget pressure:\n%s", got)
	}
	if !strings.Contains(got, "--- newest") {
		t.Errorf("newest entry must survive:\n%s", got)
	}
}

func TestRenderHTML(t *testing.T) {
	html, err := RenderHTML("The party defeated **Durnn** and claimed the *Gulthias Blade*.")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, "<strong>Durnn</strong>") {
		t.Errorf("markdown emphasis not rendered: %s", html)
	}
}

func TestRenderHTML_SanitizesScript(t *testing.T) {
	html, err := RenderHTML(`A summary with <script>alert("x")</script> injected.`)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(html, "<script>") {
		t.Errorf("script tag survived sanitization: %s", html)
	}
}
