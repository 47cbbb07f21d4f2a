// Package review orchestrates the performance-review generation pipeline:
// gather signals, assess quality, retrieve historical context, prompt the
// model, and normalize the response.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/talentforge/reviewd/internal/ai"
	"github.com/talentforge/reviewd/internal/parse"
	"github.com/talentforge/reviewd/internal/prompt"
	"github.com/talentforge/reviewd/internal/quality"
	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/signals"
)

// ErrInsufficientData is returned when the aggregated context scores below
// the generation floor. A hard failure: no review is produced.
var ErrInsufficientData = errors.New("insufficient data for review generation")

// generationMaxTokens is the completion budget for full review generation.
const generationMaxTokens = 2500

// ContextGatherer aggregates an employee's performance signals.
type ContextGatherer interface {
	Gather(ctx context.Context, employeeID, orgID string, window signals.Window) (*signals.EmployeeContext, error)
}

// RelevanceRetriever fetches semantically similar historical snippets.
// Implementations degrade internally and never fail.
type RelevanceRetriever interface {
	QueryRelevantContext(ctx context.Context, employeeID, queryText string, limit int) retrieval.RelevantContext
}

// CompletionClient sends a prompt to the text-generation model.
type CompletionClient interface {
	Complete(ctx context.Context, messages []ai.Message, opts ai.CompletionOptions) (string, error)
}

// Request describes one review-generation invocation.
type Request struct {
	EmployeeID string
	OrgID      string
	ReviewType string
	Tone       string
	Window     signals.Window
	Strategy   string // confidence strategy name; empty selects quality-weighted
}

// Sources lists the record IDs that grounded the generated review.
type Sources struct {
	OKRs     []string `json:"okrs"`
	Feedback []string `json:"feedback"`
	Projects []string `json:"projects"`
	Goals    []string `json:"goals"`
}

// GeneratedReview is the orchestrator's output. Persistence is the caller's
// concern (audit log).
type GeneratedReview struct {
	parse.Sections

	ReviewType        string              `json:"reviewType"`
	ConfidenceScore   float64             `json:"confidenceScore"`
	Sources           Sources             `json:"sources"`
	DataQuality       quality.DataQuality `json:"dataQuality"`
	ParseOrigin       string              `json:"parseOrigin"`
	RetrievalDegraded bool                `json:"retrievalDegraded"`
	GeneratedAt       time.Time           `json:"generatedAt"`
}

// Generator sequences the review pipeline. All collaborators are injected at
// construction time; the Generator itself holds no mutable state, so
// concurrent Generate calls are independent.
type Generator struct {
	gatherer  ContextGatherer
	retriever RelevanceRetriever
	completer CompletionClient
	topK      int
	now       func() time.Time
}

// NewGenerator creates a Generator wired to its collaborators. topK bounds
// how many historical snippets are retrieved per generation; values <= 0
// select the retrieval default.
func NewGenerator(gatherer ContextGatherer, retriever RelevanceRetriever, completer CompletionClient, topK int) *Generator {
	if topK <= 0 {
		topK = retrieval.DefaultLimit
	}
	return &Generator{
		gatherer:  gatherer,
		retriever: retriever,
		completer: completer,
		topK:      topK,
		now:       time.Now,
	}
}

// Generate runs the full pipeline. Only three failures escape: the employee
// not resolving (storage.ErrNotFound), the context scoring below the quality
// floor (ErrInsufficientData), and the model call failing
// (ai.ErrGenerationFailed / ai.ErrServiceUnavailable). Retrieval and parse
// problems degrade inside a successful result.
func (g *Generator) Generate(ctx context.Context, req Request) (*GeneratedReview, error) {
	reviewType := req.ReviewType
	if reviewType == "" {
		reviewType = prompt.TypeManager
	}

	ec, err := g.gatherer.Gather(ctx, req.EmployeeID, req.OrgID, req.Window)
	if err != nil {
		return nil, err
	}

	dq := quality.Assess(ec)
	if !dq.Sufficient() {
		return nil, fmt.Errorf("%w: overall score %.0f below %.0f", ErrInsufficientData, dq.OverallScore, quality.MinOverallScore)
	}

	relevant := g.retriever.QueryRelevantContext(ctx, req.EmployeeID, contextQuery(ec), g.topK)
	if relevant.Degraded {
		slog.Warn("review generation continuing without retrieved context",
			"employee_id", req.EmployeeID)
	}

	messages := []ai.Message{
		{Role: "system", Content: prompt.SystemPrompt(reviewType, req.Tone)},
		{Role: "user", Content: prompt.UserPrompt(ec, relevant)},
	}

	raw, err := g.completer.Complete(ctx, messages, ai.CompletionOptions{MaxTokens: generationMaxTokens})
	if err != nil {
		return nil, err
	}

	parsed := parse.Review(raw)
	if parsed.Origin != parse.OriginStructured {
		slog.Warn("review response was not valid JSON, recovered via extraction",
			"employee_id", req.EmployeeID, "origin", parsed.Origin.String())
	}

	confidence := quality.StrategyByName(req.Strategy).Confidence(dq, relevant.RelevanceScores, ec)

	return &GeneratedReview{
		Sections:          parsed.Sections,
		ReviewType:        reviewType,
		ConfidenceScore:   confidence,
		Sources:           collectSources(ec),
		DataQuality:       dq,
		ParseOrigin:       parsed.Origin.String(),
		RetrievalDegraded: relevant.Degraded,
		GeneratedAt:       g.now().UTC(),
	}, nil
}

// contextQuery builds the semantic query text for relevance retrieval from
// the aggregated context. Deterministic for a given context.
func contextQuery(ec *signals.EmployeeContext) string {
	parts := make([]string, 0, len(ec.Objectives)+1)
	parts = append(parts, fmt.Sprintf("performance review for %s", ec.Employee.Name))
	for _, o := range ec.Objectives {
		parts = append(parts, o.Title)
	}
	return strings.Join(parts, "; ")
}

// collectSources lists the signal IDs that grounded the review. Projects and
// goals stay empty: those source kinds come from modules outside this
// service and are preserved in the schema for callers that merge them in.
func collectSources(ec *signals.EmployeeContext) Sources {
	s := Sources{
		OKRs:     make([]string, 0, len(ec.Objectives)),
		Feedback: make([]string, 0, len(ec.Feedback)),
		Projects: []string{},
		Goals:    []string{},
	}
	for _, o := range ec.Objectives {
		s.OKRs = append(s.OKRs, o.ID)
	}
	for _, f := range ec.Feedback {
		s.Feedback = append(s.Feedback, f.ID)
	}
	return s
}
