// Package api exposes the review service over HTTP (chi) and MCP.
package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/talentforge/reviewd/internal/ai"
	"github.com/talentforge/reviewd/internal/indexer"
	"github.com/talentforge/reviewd/internal/ingest"
	"github.com/talentforge/reviewd/internal/quality"
	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/review"
	"github.com/talentforge/reviewd/internal/signals"
	"github.com/talentforge/reviewd/internal/storage"
)

const maxRequestBodySize = 1 << 20  // 1MB
const maxDocumentBodySize = 10 << 20 // 10MB

// ReviewGenerator abstracts the orchestrator for the HTTP layer.
type ReviewGenerator interface {
	Generate(ctx context.Context, req review.Request) (*review.GeneratedReview, error)
}

// VectorPurger abstracts namespace deletion for the employee-data purge path.
type VectorPurger interface {
	DeleteNamespace(namespace string) error
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Store     *storage.Store
	Generator ReviewGenerator
	Gatherer  review.ContextGatherer
	Retriever MCPRetriever
	Vectors   VectorPurger
	Token     string
}

// NewHandler returns the service's HTTP handler. All routes except /health
// require the management bearer token.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Post("/v1/reviews", handleGenerateReview(deps))
		r.Get("/v1/reviews/{id}", handleGetReview(deps))
		r.Post("/v1/employees/sync", handleSyncEmployee(deps))
		r.Get("/v1/employees/{id}/quality", handleQuality(deps))
		r.Get("/v1/employees/{id}/context", handleRecallContext(deps))
		r.Post("/v1/employees/{id}/documents", handleAddDocument(deps))
		r.Post("/v1/employees/{id}/reindex", handleReindex(deps))
		r.Delete("/v1/employees/{id}/vectors", handlePurgeVectors(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// GenerateReviewRequest is the body of POST /v1/reviews.
type GenerateReviewRequest struct {
	EmployeeID string     `json:"employee_id"`
	OrgID      string     `json:"org_id"`
	ReviewType string     `json:"review_type"`
	Tone       string     `json:"tone"`
	Strategy   string     `json:"strategy"`
	From       *time.Time `json:"from"`
	To         *time.Time `json:"to"`
}

func handleGenerateReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req GenerateReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.EmployeeID == "" || req.OrgID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "employee_id and org_id are required")
			return
		}
		if !quality.KnownStrategy(req.Strategy) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "unknown strategy %q", req.Strategy)
			return
		}
		if (req.From == nil) != (req.To == nil) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "from and to must be provided together")
			return
		}

		var window signals.Window
		if req.From != nil && req.To != nil {
			window = signals.Window{From: *req.From, To: *req.To}
		}

		result, err := deps.Generator.Generate(r.Context(), review.Request{
			EmployeeID: req.EmployeeID,
			OrgID:      req.OrgID,
			ReviewType: req.ReviewType,
			Tone:       req.Tone,
			Window:     window,
			Strategy:   req.Strategy,
		})
		if err != nil {
			writeGenerateError(w, err)
			return
		}

		// Audit-log the generation before returning it.
		payload, err := json.Marshal(result)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "encoding review: %v", err)
			return
		}
		record := storage.ReviewRecord{
			ID:             uuid.New().String(),
			EmployeeID:     req.EmployeeID,
			OrgID:          req.OrgID,
			ReviewType:     result.ReviewType,
			PayloadJSON:    string(payload),
			Confidence:     result.ConfidenceScore,
			QualityOverall: result.DataQuality.OverallScore,
		}
		if err := deps.Store.SaveReviewRecord(record); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "recording review: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     record.ID,
			"review": result,
		})
	}
}

func writeGenerateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		httpError(w, http.StatusNotFound, "not_found", "employee not found")
	case errors.Is(err, review.ErrInsufficientData):
		httpError(w, http.StatusUnprocessableEntity, "insufficient_data", "%v", err)
	case errors.Is(err, ai.ErrServiceUnavailable):
		httpError(w, http.StatusServiceUnavailable, "service_unavailable", "%v", err)
	case errors.Is(err, ai.ErrGenerationFailed):
		httpError(w, http.StatusBadGateway, "generation_failed", "%v", err)
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func handleGetReview(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		record, err := deps.Store.GetReviewRecord(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "review %s not found", id)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading review: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":          record.ID,
			"employee_id": record.EmployeeID,
			"org_id":      record.OrgID,
			"review_type": record.ReviewType,
			"created_at":  record.CreatedAt,
			"review":      json.RawMessage(record.PayloadJSON),
		})
	}
}

// SyncEmployeeRequest pushes a snapshot of an employee and their signals from
// the HR system of record. Signals are stored and queued for indexing.
type SyncEmployeeRequest struct {
	Employee   syncEmployee    `json:"employee"`
	Objectives []syncObjective `json:"objectives"`
	Feedback   []syncFeedback  `json:"feedback"`
}

type syncEmployee struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name"`
	Title string `json:"title"`
	Email string `json:"email"`
}

type syncObjective struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Level       string          `json:"level"`
	Progress    float64         `json:"progress"`
	Status      string          `json:"status"`
	DueDate     time.Time       `json:"due_date"`
	KeyResults  []syncKeyResult `json:"key_results"`
}

type syncKeyResult struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Progress float64 `json:"progress"`
}

type syncFeedback struct {
	ID          string    `json:"id"`
	Content     string    `json:"content"`
	Tags        []string  `json:"tags"`
	Visibility  string    `json:"visibility"`
	GivenByName string    `json:"given_by_name"`
	CreatedAt   time.Time `json:"created_at"`
}

func handleSyncEmployee(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		var req SyncEmployeeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Employee.ID == "" || req.Employee.OrgID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "employee.id and employee.org_id are required")
			return
		}

		if err := deps.Store.SaveEmployee(storage.Employee{
			ID:    req.Employee.ID,
			OrgID: req.Employee.OrgID,
			Name:  req.Employee.Name,
			Title: req.Employee.Title,
			Email: req.Employee.Email,
		}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving employee: %v", err)
			return
		}

		var queued int
		for _, o := range req.Objectives {
			obj := storage.Objective{
				ID:          o.ID,
				EmployeeID:  req.Employee.ID,
				Title:       o.Title,
				Description: o.Description,
				Level:       o.Level,
				Progress:    o.Progress,
				Status:      o.Status,
				DueDate:     o.DueDate,
			}
			for _, kr := range o.KeyResults {
				obj.KeyResults = append(obj.KeyResults, storage.KeyResult{ID: kr.ID, ObjectiveID: o.ID, Title: kr.Title, Progress: kr.Progress})
			}
			if err := deps.Store.SaveObjective(obj); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "saving objective %s: %v", o.ID, err)
				return
			}
			if err := enqueueIndexJob(deps.Store, indexer.JobIndexObjective, indexer.Payload{EmployeeID: req.Employee.ID, ObjectiveID: o.ID}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "queueing index job: %v", err)
				return
			}
			queued++
		}
		for _, f := range req.Feedback {
			tags, _ := json.Marshal(f.Tags)
			if err := deps.Store.SaveFeedback(storage.Feedback{
				ID:          f.ID,
				EmployeeID:  req.Employee.ID,
				Content:     f.Content,
				Tags:        string(tags),
				Visibility:  f.Visibility,
				GivenByName: f.GivenByName,
				CreatedAt:   f.CreatedAt,
			}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "saving feedback %s: %v", f.ID, err)
				return
			}
			if err := enqueueIndexJob(deps.Store, indexer.JobIndexFeedback, indexer.Payload{EmployeeID: req.Employee.ID, FeedbackID: f.ID}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "queueing index job: %v", err)
				return
			}
			queued++
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"employee_id": req.Employee.ID,
			"jobs_queued": queued,
		})
	}
}

func handleQuality(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "id")
		orgID := r.URL.Query().Get("org_id")
		if orgID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "org_id query parameter is required")
			return
		}

		ec, err := deps.Gatherer.Gather(r.Context(), employeeID, orgID, signals.Window{})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "employee not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "gathering context: %v", err)
			return
		}

		dq := quality.Assess(ec)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"employee_id":  employeeID,
			"objectives":   len(ec.Objectives),
			"feedback":     len(ec.Feedback),
			"data_quality": dq,
			"sufficient":   dq.Sufficient(),
		})
	}
}

// ContextSnippet is one retrieved fragment in a context-search response.
type ContextSnippet struct {
	SourceID    string  `json:"source_id"`
	ContentType string  `json:"content_type"`
	Preview     string  `json:"preview"`
	Score       float32 `json:"score"`
}

func handleRecallContext(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "id")
		query := r.URL.Query().Get("q")
		if query == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "q query parameter is required")
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		relevant := deps.Retriever.QueryRelevantContext(r.Context(), employeeID, query, limit)
		if relevant.Degraded {
			httpError(w, http.StatusServiceUnavailable, "service_unavailable", "context retrieval unavailable")
			return
		}

		snippets := make([]ContextSnippet, 0, len(relevant.OKRs)+len(relevant.Feedback))
		for _, s := range append(relevant.OKRs, relevant.Feedback...) {
			snippets = append(snippets, ContextSnippet{
				SourceID:    s.SourceID,
				ContentType: s.ContentType,
				Preview:     s.Preview,
				Score:       s.Score,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snippets)
	}
}

// AddDocumentRequest is the body of POST /v1/employees/{id}/documents.
// Text and HTML content arrive in content; PDFs arrive base64-encoded in
// content_base64 with kind "pdf".
type AddDocumentRequest struct {
	Title         string   `json:"title"`
	Kind          string   `json:"kind"`
	Content       string   `json:"content"`
	ContentBase64 string   `json:"content_base64"`
	Source        string   `json:"source"`
	Tags          []string `json:"tags"`
}

func handleAddDocument(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodySize)
		defer r.Body.Close()

		employeeID := chi.URLParam(r, "id")

		var req AddDocumentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		var raw []byte
		switch {
		case req.ContentBase64 != "":
			decoded, err := base64.StdEncoding.DecodeString(req.ContentBase64)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid content_base64: %v", err)
				return
			}
			raw = decoded
		case req.Content != "":
			raw = []byte(req.Content)
		default:
			httpError(w, http.StatusBadRequest, "invalid_request_error", "one of content or content_base64 is required")
			return
		}

		text, err := ingest.Flatten(req.Kind, raw)
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "extracting document text: %v", err)
			return
		}
		if text == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "document has no extractable text")
			return
		}

		tags, _ := json.Marshal(req.Tags)
		doc := storage.Document{
			ID:         uuid.New().String(),
			EmployeeID: employeeID,
			Title:      req.Title,
			Content:    text,
			Source:     req.Source,
			Tags:       string(tags),
		}
		if err := deps.Store.SaveDocument(doc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "saving document: %v", err)
			return
		}
		if err := enqueueIndexJob(deps.Store, indexer.JobIndexDocument, indexer.Payload{EmployeeID: employeeID, DocumentID: doc.ID}); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "queueing index job: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{"id": doc.ID})
	}
}

func handleReindex(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "id")
		orgID := r.URL.Query().Get("org_id")
		if orgID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "org_id query parameter is required")
			return
		}

		ec, err := deps.Gatherer.Gather(r.Context(), employeeID, orgID, signals.Window{})
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "employee not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "gathering context: %v", err)
			return
		}

		var queued int
		for _, o := range ec.Objectives {
			if err := enqueueIndexJob(deps.Store, indexer.JobIndexObjective, indexer.Payload{EmployeeID: employeeID, ObjectiveID: o.ID}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "queueing index job: %v", err)
				return
			}
			queued++
		}
		for _, f := range ec.Feedback {
			if err := enqueueIndexJob(deps.Store, indexer.JobIndexFeedback, indexer.Payload{EmployeeID: employeeID, FeedbackID: f.ID}); err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "queueing index job: %v", err)
				return
			}
			queued++
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"jobs_queued": queued})
	}
}

func handlePurgeVectors(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		employeeID := chi.URLParam(r, "id")
		if err := deps.Vectors.DeleteNamespace(retrieval.EmployeeNamespace(employeeID)); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "purging vectors: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func enqueueIndexJob(store *storage.Store, jobType string, payload indexer.Payload) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling payload: %w", err)
	}
	return store.EnqueueJob(storage.Job{
		ID:          uuid.New().String(),
		Type:        jobType,
		PayloadJSON: string(b),
	})
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
