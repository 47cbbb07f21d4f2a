package quality

import (
	"strings"

	"github.com/talentforge/reviewd/internal/signals"
)

// Confidence weights. Two formulas coexist because the original review paths
// evolved them independently; they are kept as distinct strategies and must
// not be merged. See DESIGN.md.
const (
	qualityWeightQuality   = 0.4
	qualityWeightRelevance = 0.3
	qualityWeightVolume    = 0.2
	qualityWeightCoverage  = 0.1

	// fixedTimeCoverage is the constant coverage factor the quality-weighted
	// formula applies; the original never computed real time coverage.
	fixedTimeCoverage = 0.8

	okrVolumeWeight      = 0.3
	feedbackVolumeWeight = 0.1
	volumeTarget         = 2.0

	quantityWeightSources  = 0.7
	quantityWeightQuantity = 0.3
)

// ConfidenceStrategy maps a quality assessment, retrieval scores, and the
// aggregated context to a [0,1] confidence estimate.
type ConfidenceStrategy interface {
	Name() string
	Confidence(dq DataQuality, relevanceScores []float32, ec *signals.EmployeeContext) float64
}

// QualityWeightedConfidence blends overall data quality, mean retrieval
// relevance, signal volume, and a fixed time-coverage factor.
type QualityWeightedConfidence struct{}

func (QualityWeightedConfidence) Name() string { return "quality_weighted" }

func (QualityWeightedConfidence) Confidence(dq DataQuality, relevanceScores []float32, ec *signals.EmployeeContext) float64 {
	nOKR := float64(len(ec.Objectives))
	nFeedback := float64(len(ec.Feedback))

	volume := (nOKR*okrVolumeWeight + nFeedback*feedbackVolumeWeight) / volumeTarget
	if volume > 1 {
		volume = 1
	}

	c := qualityWeightQuality*dq.OverallScore/maxSubScore +
		qualityWeightRelevance*meanRelevance(relevanceScores) +
		qualityWeightVolume*volume +
		qualityWeightCoverage*fixedTimeCoverage

	return clamp(c, 0, 1)
}

// QuantityWeightedConfidence is the older formula kept for compatibility with
// the simpler review path: mean per-source confidence weighted against a step
// function of context-item count.
type QuantityWeightedConfidence struct{}

func (QuantityWeightedConfidence) Name() string { return "quantity_weighted" }

func (QuantityWeightedConfidence) Confidence(dq DataQuality, relevanceScores []float32, ec *signals.EmployeeContext) float64 {
	items := len(ec.Objectives) + len(ec.Feedback)

	var quantityFactor float64
	switch {
	case items >= 10:
		quantityFactor = 1.0
	case items >= 5:
		quantityFactor = 0.8
	case items >= 3:
		quantityFactor = 0.6
	default:
		quantityFactor = 0.4
	}

	c := meanRelevance(relevanceScores)*quantityWeightSources + quantityFactor*quantityWeightQuantity
	return clamp(c, 0, 1)
}

// meanRelevance is the arithmetic mean of retrieval similarity scores,
// 0 when retrieval returned nothing.
func meanRelevance(scores []float32) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += float64(s)
	}
	return sum / float64(len(scores))
}

// StrategyByName resolves a caller-selected strategy. Hyphenated spellings
// are accepted alongside the canonical underscore names. Unknown or empty
// names default to quality-weighted; callers that need strict validation
// check KnownStrategy first.
func StrategyByName(name string) ConfidenceStrategy {
	if normalizeStrategyName(name) == (QuantityWeightedConfidence{}).Name() {
		return QuantityWeightedConfidence{}
	}
	return QualityWeightedConfidence{}
}

// KnownStrategy reports whether name resolves to a strategy. The empty name
// selects the default and counts as known.
func KnownStrategy(name string) bool {
	switch normalizeStrategyName(name) {
	case "", (QualityWeightedConfidence{}).Name(), (QuantityWeightedConfidence{}).Name():
		return true
	}
	return false
}

func normalizeStrategyName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}
