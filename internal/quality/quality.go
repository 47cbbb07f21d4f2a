// Package quality scores how well an employee's aggregated signals can
// support review generation, and derives a confidence estimate for the
// generated output.
package quality

import (
	"math"

	"github.com/talentforge/reviewd/internal/signals"
)

// Scoring weights. Tunable constants carried over unchanged from the original
// scoring rules; they have no documented derivation beyond behavioral
// compatibility.
const (
	// MinOverallScore is the data-quality floor below which generation must
	// fail outright instead of producing a degraded review.
	MinOverallScore = 30.0

	okrCountFull      = 3
	okrCountBonus     = 40.0
	okrCountPartial   = 20.0
	okrProgressBonus  = 30.0
	okrDescribedBonus = 30.0

	feedbackCountFull    = 5
	feedbackCountMin     = 2
	feedbackCountBonus   = 40.0
	feedbackCountPartial = 20.0
	feedbackLongChars    = 100
	feedbackMediumChars  = 50
	feedbackLongBonus    = 30.0
	feedbackMediumBonus  = 15.0
	feedbackTaggedBonus  = 30.0

	maxSubScore = 100.0
)

// DataQuality is the derived quality assessment of one aggregated context.
// Recomputed on every call, never cached.
type DataQuality struct {
	OKRScore      float64 `json:"okrScore"`
	FeedbackScore float64 `json:"feedbackScore"`
	OverallScore  float64 `json:"overallScore"`
}

// Sufficient reports whether the context clears the generation floor.
func (dq DataQuality) Sufficient() bool {
	return dq.OverallScore >= MinOverallScore
}

// Assess computes the data-quality score for an aggregated context.
// Pure function: identical input yields identical output.
func Assess(ec *signals.EmployeeContext) DataQuality {
	okr := okrScore(ec.Objectives)
	fb := feedbackScore(ec.Feedback)
	return DataQuality{
		OKRScore:      okr,
		FeedbackScore: fb,
		OverallScore:  math.Round((okr + fb) / 2),
	}
}

func okrScore(objectives []signals.ObjectiveSignal) float64 {
	if len(objectives) == 0 {
		return 0
	}

	var score float64
	if len(objectives) >= okrCountFull {
		score += okrCountBonus
	} else {
		score += okrCountPartial
	}

	var totalProgress float64
	var described int
	for _, o := range objectives {
		totalProgress += o.Progress
		if o.Description != "" {
			described++
		}
	}
	if totalProgress/float64(len(objectives)) > 0 {
		score += okrProgressBonus
	}
	score += okrDescribedBonus * float64(described) / float64(len(objectives))

	return clamp(score, 0, maxSubScore)
}

func feedbackScore(feedback []signals.FeedbackSignal) float64 {
	if len(feedback) == 0 {
		return 0
	}

	var score float64
	switch {
	case len(feedback) >= feedbackCountFull:
		score += feedbackCountBonus
	case len(feedback) >= feedbackCountMin:
		score += feedbackCountPartial
	}

	var totalLen int
	var tagged int
	for _, f := range feedback {
		totalLen += len(f.Content)
		if len(f.Tags) > 0 {
			tagged++
		}
	}
	meanLen := float64(totalLen) / float64(len(feedback))
	switch {
	case meanLen > feedbackLongChars:
		score += feedbackLongBonus
	case meanLen > feedbackMediumChars:
		score += feedbackMediumBonus
	}
	score += feedbackTaggedBonus * float64(tagged) / float64(len(feedback))

	return clamp(score, 0, maxSubScore)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
