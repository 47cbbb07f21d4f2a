// Package indexer embeds performance signals into the per-employee vector
// namespace via the background job queue.
package indexer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/talentforge/reviewd/internal/ingest"
	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/signals"
	"github.com/talentforge/reviewd/internal/storage"
)

// Job types processed by the worker.
const (
	JobIndexObjective = "index_objective"
	JobIndexFeedback  = "index_feedback"
	JobIndexDocument  = "index_document"
)

// previewChars caps how much snapshot text is stored as vector metadata.
const previewChars = 280

// Payload is the job payload shared by all index job types; exactly one ID
// field is set per job.
type Payload struct {
	EmployeeID  string `json:"employee_id"`
	ObjectiveID string `json:"objective_id,omitempty"`
	FeedbackID  string `json:"feedback_id,omitempty"`
	DocumentID  string `json:"document_id,omitempty"`
}

// JobStore abstracts the queue and signal lookups.
type JobStore interface {
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetObjective(ctx context.Context, id string) (storage.Objective, error)
	GetFeedback(ctx context.Context, id string) (storage.Feedback, error)
	GetDocument(id string) (storage.Document, error)
	UpdateDocumentVectorID(id, vectorID string) error
}

// ContentEmbedder generates embeddings for text.
type ContentEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// VectorUpserter writes records into the vector store.
type VectorUpserter interface {
	Upsert(namespace string, records []retrieval.Record) error
}

// Worker processes index jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder ContentEmbedder
	vectors  VectorUpserter
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, embedder ContentEmbedder, vectors VectorUpserter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single index job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobIndexObjective, JobIndexFeedback, JobIndexDocument})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("index job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(job.ID); err != nil {
		w.logger.Error("failed to mark job as completed", "job_id", job.ID, "error", err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var p Payload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &p); err != nil {
		return fmt.Errorf("decoding payload: %w", err)
	}
	if p.EmployeeID == "" {
		return fmt.Errorf("payload missing employee_id")
	}

	var rec retrieval.Record
	var text string
	var err error
	switch job.Type {
	case JobIndexObjective:
		rec, text, err = w.objectiveRecord(ctx, p)
	case JobIndexFeedback:
		rec, text, err = w.feedbackRecord(ctx, p)
	case JobIndexDocument:
		rec, text, err = w.documentRecord(p)
	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
	if err != nil {
		return err
	}

	// Embed the full snapshot text; the stored preview is truncated metadata.
	vec, err := w.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embedding content: %w", err)
	}
	rec.Embedding = vec

	if err := w.vectors.Upsert(retrieval.EmployeeNamespace(p.EmployeeID), []retrieval.Record{rec}); err != nil {
		return fmt.Errorf("upserting vector: %w", err)
	}

	if job.Type == JobIndexDocument {
		if err := w.store.UpdateDocumentVectorID(p.DocumentID, rec.ID); err != nil {
			return fmt.Errorf("recording vector id on document: %w", err)
		}
	}

	w.logger.Debug("indexed signal", "type", rec.ContentType, "source_id", rec.SourceID, "vector_id", rec.ID)
	return nil
}

func (w *Worker) objectiveRecord(ctx context.Context, p Payload) (retrieval.Record, string, error) {
	obj, err := w.store.GetObjective(ctx, p.ObjectiveID)
	if err != nil {
		return retrieval.Record{}, "", fmt.Errorf("loading objective %s: %w", p.ObjectiveID, err)
	}
	text := signals.ProjectObjective(obj).Text()
	return retrieval.Record{
		ID:          uuid.New().String(),
		SourceID:    obj.ID,
		ContentType: retrieval.ContentTypeOKR,
		Preview:     truncate(text, previewChars),
	}, text, nil
}

func (w *Worker) feedbackRecord(ctx context.Context, p Payload) (retrieval.Record, string, error) {
	fb, err := w.store.GetFeedback(ctx, p.FeedbackID)
	if err != nil {
		return retrieval.Record{}, "", fmt.Errorf("loading feedback %s: %w", p.FeedbackID, err)
	}
	// Feedback bodies arrive as rich text; flatten before embedding.
	fb.Content = ingest.FlattenHTML(fb.Content)
	text := signals.ProjectFeedback(fb).Text()
	return retrieval.Record{
		ID:          uuid.New().String(),
		SourceID:    fb.ID,
		ContentType: retrieval.ContentTypeFeedback,
		Preview:     truncate(text, previewChars),
		Tags:        fb.Tags,
	}, text, nil
}

func (w *Worker) documentRecord(p Payload) (retrieval.Record, string, error) {
	doc, err := w.store.GetDocument(p.DocumentID)
	if err != nil {
		return retrieval.Record{}, "", fmt.Errorf("loading document %s: %w", p.DocumentID, err)
	}
	text := doc.Content
	if doc.Title != "" {
		text = doc.Title + ": " + text
	}
	return retrieval.Record{
		ID:          uuid.New().String(),
		SourceID:    doc.ID,
		ContentType: retrieval.ContentTypeDocument,
		Preview:     truncate(text, previewChars),
		Tags:        doc.Tags,
	}, text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
