package retrieval

import (
	"context"
	"log/slog"
)

// DefaultLimit is the number of nearest vectors fetched per relevance query.
const DefaultLimit = 20

// Snippet is one retrieved fragment of historical context, tagged with the
// store's similarity score.
type Snippet struct {
	SourceID    string
	ContentType string
	Preview     string
	Score       float32
}

// RelevantContext is the partitioned result of a semantic query. Degraded is
// set when embedding or the store failed and the buckets are empty for that
// reason rather than because nothing matched; callers must tolerate
// zero-relevant-context either way.
type RelevantContext struct {
	OKRs            []Snippet
	Feedback        []Snippet
	RelevanceScores []float32
	Degraded        bool
}

// Retriever combines embedding and namespaced vector search to find an
// employee's relevant historical context.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// QueryRelevantContext embeds the query text and searches the employee's
// namespace for the limit nearest vectors, partitioned by content type.
// OKR-like and feedback-like vectors land in their buckets; unknown content
// types are silently dropped. Failures never propagate: the result degrades
// to empty buckets with Degraded set.
func (r *Retriever) QueryRelevantContext(ctx context.Context, employeeID, queryText string, limit int) RelevantContext {
	if limit <= 0 {
		limit = DefaultLimit
	}

	vec, err := r.embedder.Embed(ctx, queryText)
	if err != nil {
		slog.Warn("relevance retrieval degraded: embedding failed", "employee_id", employeeID, "error", err)
		return RelevantContext{Degraded: true}
	}

	scored, err := r.store.Search(EmployeeNamespace(employeeID), vec, limit)
	if err != nil {
		slog.Warn("relevance retrieval degraded: vector search failed", "employee_id", employeeID, "error", err)
		return RelevantContext{Degraded: true}
	}

	return partition(scored)
}

// partition splits scored records into OKR-like and feedback-like buckets.
// Ingested documents count as feedback-like narrative context.
func partition(scored []ScoredRecord) RelevantContext {
	var out RelevantContext
	for _, s := range scored {
		snippet := Snippet{
			SourceID:    s.SourceID,
			ContentType: s.ContentType,
			Preview:     s.Preview,
			Score:       s.Score,
		}
		switch s.ContentType {
		case ContentTypeOKR:
			out.OKRs = append(out.OKRs, snippet)
		case ContentTypeFeedback, ContentTypeDocument:
			out.Feedback = append(out.Feedback, snippet)
		default:
			continue
		}
		out.RelevanceScores = append(out.RelevanceScores, s.Score)
	}
	return out
}
