// Package prompt renders the system and user prompts for review generation.
// Construction is deterministic: identical inputs produce byte-identical text.
package prompt

import (
	"fmt"
	"strings"

	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/signals"
)

// Review types supported by the prompt builder.
const (
	TypeSelf    = "self"
	TypeManager = "manager"
	TypePeer    = "peer"
	Type360     = "360"
	TypeUpward  = "upward"
)

// DefaultTone is applied when the caller specifies none.
const DefaultTone = "professional"

// maxSnippetsPerSection caps how many retrieved snippets each context section embeds.
const maxSnippetsPerSection = 5

const basePrompt = `You are an HR performance-review writing assistant. Write a %s performance review in a %s tone.

Rules:
- Ground every statement in the provided data; cite objectives and feedback explicitly.
- Balance strengths and areas for improvement.
- Prefer quantitative evidence (progress percentages, completion rates) over generic praise.
- Do not invent accomplishments that are not supported by the data.

Your output must be ONLY a single valid JSON object with exactly these string fields:
{"strengths": "...", "areasForImprovement": "...", "achievements": "...", "goalsForNextPeriod": "...", "developmentPlan": "...", "managerComments": "..."}
Do not include any other text, prose, or markdown.`

// guidelines holds the per-review-type block appended to the base instruction.
var guidelines = map[string]string{
	TypeSelf:    "This is a self-assessment. Write in first person, reflective and honest about both wins and gaps.",
	TypeManager: "This is a manager review. Write in third person, direct and actionable, with clear expectations for the next period.",
	TypePeer:    "This is a peer review. Focus on collaboration, communication, and day-to-day working relationships.",
	Type360:     "This is a 360 review. Synthesize perspectives across the provided feedback sources and note where they agree or diverge.",
	TypeUpward:  "This is an upward review of a manager. Focus on leadership, support, clarity of direction, and team enablement.",
}

// ValidType reports whether reviewType is one of the supported review types.
func ValidType(reviewType string) bool {
	_, ok := guidelines[reviewType]
	return ok
}

// SystemPrompt renders the role and tone specific system prompt.
// Unknown review types fall back to the manager guidelines.
func SystemPrompt(reviewType, tone string) string {
	if tone == "" {
		tone = DefaultTone
	}
	guide, ok := guidelines[reviewType]
	if !ok {
		reviewType = TypeManager
		guide = guidelines[TypeManager]
	}
	return fmt.Sprintf(basePrompt, reviewType, tone) + "\n\n" + guide
}

// UserPrompt renders the data-filled user prompt: employee identity, OKR and
// feedback summaries, and the most relevant retrieved historical snippets.
func UserPrompt(ec *signals.EmployeeContext, relevant retrieval.RelevantContext) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Employee: %s", ec.Employee.Name)
	if ec.Employee.Title != "" {
		fmt.Fprintf(&sb, ", %s", ec.Employee.Title)
	}
	fmt.Fprintf(&sb, "\nReview period: %s to %s\n",
		ec.Window.From.UTC().Format("2006-01-02"), ec.Window.To.UTC().Format("2006-01-02"))

	writeOKRSummary(&sb, ec.Objectives)
	writeFeedbackSummary(&sb, ec.Feedback)
	writeSnippets(&sb, "Relevant historical OKR context", relevant.OKRs)
	writeSnippets(&sb, "Relevant historical feedback context", relevant.Feedback)

	return sb.String()
}

func writeOKRSummary(sb *strings.Builder, objectives []signals.ObjectiveSignal) {
	sb.WriteString("\n[Objectives]\n")
	if len(objectives) == 0 {
		sb.WriteString("No objectives recorded in this period.\n")
		return
	}

	var totalProgress float64
	var completed int
	for _, o := range objectives {
		totalProgress += o.Progress
		if o.Progress >= 100 {
			completed++
		}
	}
	avg := totalProgress / float64(len(objectives))
	completionRate := 100 * float64(completed) / float64(len(objectives))

	fmt.Fprintf(sb, "%d objectives, %.0f%% completion rate, %.0f%% average progress.\n",
		len(objectives), completionRate, avg)
	for _, o := range objectives {
		fmt.Fprintf(sb, "- %s [%s] progress %.0f%%, status %s, due %s\n",
			o.Title, o.Level, o.Progress, o.Status, o.DueDate.UTC().Format("2006-01-02"))
		if o.Description != "" {
			fmt.Fprintf(sb, "  %s\n", o.Description)
		}
		for _, kr := range o.KeyResults {
			fmt.Fprintf(sb, "  - KR: %s (%.0f%%)\n", kr.Title, kr.Progress)
		}
	}
}

func writeFeedbackSummary(sb *strings.Builder, feedback []signals.FeedbackSignal) {
	sb.WriteString("\n[Feedback]\n")
	if len(feedback) == 0 {
		sb.WriteString("No feedback recorded in this period.\n")
		return
	}

	fmt.Fprintf(sb, "%d feedback items received.\n", len(feedback))
	for _, f := range feedback {
		fmt.Fprintf(sb, "- %s (%s): %s\n",
			f.GivenByName, f.CreatedAt.UTC().Format("2006-01-02"), f.Content)
		if len(f.Tags) > 0 {
			fmt.Fprintf(sb, "  Tags: %s\n", strings.Join(f.Tags, ", "))
		}
	}
}

func writeSnippets(sb *strings.Builder, header string, snippets []retrieval.Snippet) {
	if len(snippets) == 0 {
		return
	}
	n := len(snippets)
	if n > maxSnippetsPerSection {
		n = maxSnippetsPerSection
	}
	fmt.Fprintf(sb, "\n[%s]\n", header)
	for _, s := range snippets[:n] {
		fmt.Fprintf(sb, "- (%.0f%% similar) %s\n", s.Score*100, s.Preview)
	}
}
