// Package signals aggregates an employee's structured performance signals
// (objectives, key results, feedback) into the bounded context that grounds
// review generation.
package signals

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/talentforge/reviewd/internal/storage"
)

// Window is a half-open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// DefaultWindow returns the last 365 days ending at now.
func DefaultWindow(now time.Time) Window {
	return Window{From: now.AddDate(0, 0, -365), To: now}
}

// IsZero reports whether the window was left unspecified.
func (w Window) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// ObjectiveSignal is a read-only projection of an objective and its key
// results, snapshotted at aggregation time.
type ObjectiveSignal struct {
	ID          string
	Title       string
	Description string
	Level       string
	Progress    float64
	Status      string
	DueDate     time.Time
	KeyResults  []KeyResultSignal
}

// KeyResultSignal is the snapshot of one key result.
type KeyResultSignal struct {
	Title    string
	Progress float64
}

// FeedbackSignal is an immutable snapshot of one feedback record.
type FeedbackSignal struct {
	ID          string
	Content     string
	Tags        []string
	Visibility  string
	GivenByName string
	CreatedAt   time.Time
}

// EmployeeContext is the aggregated signal set for one employee and window.
// Ephemeral: built per request, never persisted.
type EmployeeContext struct {
	Employee   storage.Employee
	Window     Window
	Objectives []ObjectiveSignal
	Feedback   []FeedbackSignal
}

// Text renders the objective as a model-ready text block, used both for
// embedding at index time and as retrieval preview content.
func (o ObjectiveSignal) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Objective: %s (%s, %.0f%% complete, status %s)", o.Title, o.Level, o.Progress, o.Status)
	if o.Description != "" {
		fmt.Fprintf(&sb, "\n%s", o.Description)
	}
	for _, kr := range o.KeyResults {
		fmt.Fprintf(&sb, "\n- Key result: %s (%.0f%%)", kr.Title, kr.Progress)
	}
	return sb.String()
}

// Text renders the feedback as a model-ready text block.
func (f FeedbackSignal) Text() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Feedback from %s: %s", f.GivenByName, f.Content)
	if len(f.Tags) > 0 {
		fmt.Fprintf(&sb, "\nTags: %s", strings.Join(f.Tags, ", "))
	}
	return sb.String()
}

// ProjectObjective snapshots a stored objective into its signal form.
func ProjectObjective(o storage.Objective) ObjectiveSignal {
	s := ObjectiveSignal{
		ID:          o.ID,
		Title:       o.Title,
		Description: o.Description,
		Level:       o.Level,
		Progress:    o.Progress,
		Status:      o.Status,
		DueDate:     o.DueDate,
	}
	for _, kr := range o.KeyResults {
		s.KeyResults = append(s.KeyResults, KeyResultSignal{Title: kr.Title, Progress: kr.Progress})
	}
	return s
}

// ProjectFeedback snapshots a stored feedback row into its signal form.
// Malformed tag JSON degrades to no tags rather than failing aggregation.
func ProjectFeedback(f storage.Feedback) FeedbackSignal {
	s := FeedbackSignal{
		ID:          f.ID,
		Content:     f.Content,
		Visibility:  f.Visibility,
		GivenByName: f.GivenByName,
		CreatedAt:   f.CreatedAt,
	}
	if f.Tags != "" {
		var tags []string
		if err := json.Unmarshal([]byte(f.Tags), &tags); err == nil {
			s.Tags = tags
		}
	}
	return s
}
