package prompt

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/signals"
	"github.com/talentforge/reviewd/internal/storage"
)

func testContext() *signals.EmployeeContext {
	return &signals.EmployeeContext{
		Employee: storage.Employee{Name: "Dana Reyes", Title: "Senior Engineer"},
		Window: signals.Window{
			From: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		},
		Objectives: []signals.ObjectiveSignal{
			{
				Title:       "Ship billing v2",
				Description: "Replace the legacy billing pipeline.",
				Level:       "team",
				Progress:    100,
				Status:      "done",
				DueDate:     time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
				KeyResults:  []signals.KeyResultSignal{{Title: "Migrate all tenants", Progress: 100}},
			},
			{Title: "Reduce p99 latency", Level: "individual", Progress: 60, Status: "active"},
		},
		Feedback: []signals.FeedbackSignal{
			{
				GivenByName: "Sam Ortiz",
				Content:     "Great partner on the billing work.",
				Tags:        []string{"collaboration"},
				CreatedAt:   time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC),
			},
		},
	}
}

func TestSystemPrompt_KnownTypes(t *testing.T) {
	for _, typ := range []string{TypeSelf, TypeManager, TypePeer, Type360, TypeUpward} {
		got := SystemPrompt(typ, "")
		if !strings.Contains(got, fmt.Sprintf("Write a %s performance review", typ)) {
			t.Errorf("SystemPrompt(%q) missing type declaration", typ)
		}
		if !strings.Contains(got, DefaultTone) {
			t.Errorf("SystemPrompt(%q) missing default tone", typ)
		}
	}
}

func TestSystemPrompt_UnknownTypeFallsBack(t *testing.T) {
	got := SystemPrompt("archnemesis", "casual")
	if !strings.Contains(got, "Write a manager performance review") {
		t.Error("unknown review type did not fall back to manager")
	}
	if !strings.Contains(got, "casual tone") {
		t.Error("caller tone not applied")
	}
}

func TestSystemPrompt_SchemaInstruction(t *testing.T) {
	got := SystemPrompt(TypeManager, "")
	for _, field := range []string{"strengths", "areasForImprovement", "achievements", "goalsForNextPeriod", "developmentPlan", "managerComments"} {
		if !strings.Contains(got, field) {
			t.Errorf("system prompt missing schema field %q", field)
		}
	}
}

func TestValidType(t *testing.T) {
	if !ValidType(Type360) {
		t.Error("ValidType(360) = false")
	}
	if ValidType("quarterly") {
		t.Error("ValidType(quarterly) = true")
	}
}

func TestUserPrompt_Content(t *testing.T) {
	got := UserPrompt(testContext(), retrieval.RelevantContext{})

	wantSubstrings := []string{
		"Employee: Dana Reyes, Senior Engineer",
		"Review period: 2025-01-01 to 2025-12-31",
		"2 objectives, 50% completion rate, 80% average progress.",
		"Ship billing v2",
		"KR: Migrate all tenants (100%)",
		"Sam Ortiz (2025-07-02): Great partner on the billing work.",
		"Tags: collaboration",
	}
	for _, w := range wantSubstrings {
		if !strings.Contains(got, w) {
			t.Errorf("user prompt missing %q\nprompt:\n%s", w, got)
		}
	}
}

func TestUserPrompt_EmptySignals(t *testing.T) {
	ec := &signals.EmployeeContext{Employee: storage.Employee{Name: "Lee"}}
	got := UserPrompt(ec, retrieval.RelevantContext{})

	if !strings.Contains(got, "No objectives recorded in this period.") {
		t.Error("missing empty-objectives marker")
	}
	if !strings.Contains(got, "No feedback recorded in this period.") {
		t.Error("missing empty-feedback marker")
	}
}

func TestUserPrompt_SnippetsCapped(t *testing.T) {
	var snippets []retrieval.Snippet
	for i := 0; i < 8; i++ {
		snippets = append(snippets, retrieval.Snippet{
			Preview: fmt.Sprintf("snippet-%d", i),
			Score:   0.5,
		})
	}
	got := UserPrompt(testContext(), retrieval.RelevantContext{OKRs: snippets})

	if !strings.Contains(got, "snippet-4") {
		t.Error("fifth snippet missing")
	}
	if strings.Contains(got, "snippet-5") {
		t.Error("sixth snippet present, want cap at 5")
	}
	if !strings.Contains(got, "(50% similar)") {
		t.Error("similarity annotation missing")
	}
}

func TestUserPrompt_Deterministic(t *testing.T) {
	ec := testContext()
	relevant := retrieval.RelevantContext{
		OKRs:     []retrieval.Snippet{{Preview: "past objective", Score: 0.9}},
		Feedback: []retrieval.Snippet{{Preview: "past feedback", Score: 0.8}},
	}

	first := UserPrompt(ec, relevant)
	for i := 0; i < 3; i++ {
		if got := UserPrompt(ec, relevant); got != first {
			t.Fatal("UserPrompt not deterministic for identical input")
		}
	}
}
