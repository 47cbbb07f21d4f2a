package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/talentforge/reviewd/internal/retrieval"
	"github.com/talentforge/reviewd/internal/storage"
)

type fakeJobStore struct {
	mu sync.Mutex

	jobs       []*storage.Job
	objectives map[string]storage.Objective
	feedback   map[string]storage.Feedback
	documents  map[string]storage.Document

	completed []string
	failed    map[string]string
	vectorIDs map[string]string
}

func newFakeJobStore() *fakeJobStore {
	return &fakeJobStore{
		objectives: map[string]storage.Objective{},
		feedback:   map[string]storage.Feedback{},
		documents:  map[string]storage.Document{},
		failed:     map[string]string{},
		vectorIDs:  map[string]string{},
	}
}

func (f *fakeJobStore) ClaimNextJob(types []string) (*storage.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return job, nil
}

func (f *fakeJobStore) CompleteJob(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeJobStore) FailJob(id string, errMsg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = errMsg
	return nil
}

func (f *fakeJobStore) GetObjective(ctx context.Context, id string) (storage.Objective, error) {
	o, ok := f.objectives[id]
	if !ok {
		return storage.Objective{}, storage.ErrNotFound
	}
	return o, nil
}

func (f *fakeJobStore) GetFeedback(ctx context.Context, id string) (storage.Feedback, error) {
	fb, ok := f.feedback[id]
	if !ok {
		return storage.Feedback{}, storage.ErrNotFound
	}
	return fb, nil
}

func (f *fakeJobStore) GetDocument(id string) (storage.Document, error) {
	d, ok := f.documents[id]
	if !ok {
		return storage.Document{}, storage.ErrNotFound
	}
	return d, nil
}

func (f *fakeJobStore) UpdateDocumentVectorID(id, vectorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorIDs[id] = vectorID
	return nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.texts = append(f.texts, text)
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeUpserter struct {
	mu         sync.Mutex
	namespaces []string
	records    []retrieval.Record
	err        error
}

func (f *fakeUpserter) Upsert(namespace string, records []retrieval.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.namespaces = append(f.namespaces, namespace)
	f.records = append(f.records, records...)
	return nil
}

func TestRunOnce_NoJob(t *testing.T) {
	w := NewWorker(newFakeJobStore(), &fakeEmbedder{}, &fakeUpserter{}, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if done {
		t.Error("RunOnce reported work with an empty queue")
	}
}

func TestRunOnce_IndexObjective(t *testing.T) {
	store := newFakeJobStore()
	store.objectives["okr-1"] = storage.Objective{
		ID:         "okr-1",
		EmployeeID: "emp-1",
		Title:      "Ship billing v2",
		Progress:   80,
		KeyResults: []storage.KeyResult{{ID: "kr-1", Title: "Migrate tenants", Progress: 100}},
	}
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexObjective,
		PayloadJSON: `{"employee_id":"emp-1","objective_id":"okr-1"}`,
	})
	embedder := &fakeEmbedder{}
	vectors := &fakeUpserter{}
	w := NewWorker(store, embedder, vectors, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = (%v, %v)", done, err)
	}

	if len(store.completed) != 1 || store.completed[0] != "job-1" {
		t.Errorf("completed = %v", store.completed)
	}
	if len(vectors.records) != 1 {
		t.Fatalf("records = %+v", vectors.records)
	}
	rec := vectors.records[0]
	if vectors.namespaces[0] != retrieval.EmployeeNamespace("emp-1") {
		t.Errorf("namespace = %q", vectors.namespaces[0])
	}
	if rec.SourceID != "okr-1" || rec.ContentType != retrieval.ContentTypeOKR {
		t.Errorf("record = %+v", rec)
	}
	if len(rec.Embedding) != 3 {
		t.Errorf("Embedding = %v", rec.Embedding)
	}
	if !strings.Contains(rec.Preview, "Ship billing v2") {
		t.Errorf("Preview = %q", rec.Preview)
	}
	// The full projection is embedded, not just the stored preview.
	if len(embedder.texts) != 1 || !strings.Contains(embedder.texts[0], "Migrate tenants") {
		t.Errorf("embedded texts = %v", embedder.texts)
	}
}

func TestRunOnce_IndexFeedback_FlattensHTML(t *testing.T) {
	store := newFakeJobStore()
	store.feedback["fb-1"] = storage.Feedback{
		ID:          "fb-1",
		EmployeeID:  "emp-1",
		Content:     "<p>Great <b>collaboration</b> this quarter.</p>",
		Tags:        `["collaboration"]`,
		GivenByName: "Sam Ortiz",
	}
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexFeedback,
		PayloadJSON: `{"employee_id":"emp-1","feedback_id":"fb-1"}`,
	})
	embedder := &fakeEmbedder{}
	vectors := &fakeUpserter{}
	w := NewWorker(store, embedder, vectors, 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if len(embedder.texts) != 1 {
		t.Fatalf("embedded texts = %v", embedder.texts)
	}
	text := embedder.texts[0]
	if strings.Contains(text, "<p>") || strings.Contains(text, "<b>") {
		t.Errorf("markup survived flattening: %q", text)
	}
	if !strings.Contains(text, "Great collaboration this quarter.") {
		t.Errorf("embedded text = %q", text)
	}
	if vectors.records[0].Tags != `["collaboration"]` {
		t.Errorf("Tags = %q", vectors.records[0].Tags)
	}
}

func TestRunOnce_IndexDocument_RecordsVectorID(t *testing.T) {
	store := newFakeJobStore()
	store.documents["doc-1"] = storage.Document{
		ID:         "doc-1",
		EmployeeID: "emp-1",
		Title:      "Self assessment",
		Content:    "I led the billing migration.",
	}
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexDocument,
		PayloadJSON: `{"employee_id":"emp-1","document_id":"doc-1"}`,
	})
	vectors := &fakeUpserter{}
	w := NewWorker(store, &fakeEmbedder{}, vectors, 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	rec := vectors.records[0]
	if rec.ContentType != retrieval.ContentTypeDocument {
		t.Errorf("ContentType = %q", rec.ContentType)
	}
	if !strings.HasPrefix(rec.Preview, "Self assessment: ") {
		t.Errorf("Preview = %q", rec.Preview)
	}
	if store.vectorIDs["doc-1"] != rec.ID {
		t.Errorf("vector id = %q, want %q", store.vectorIDs["doc-1"], rec.ID)
	}
}

func TestRunOnce_BadPayloadFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexObjective,
		PayloadJSON: `not json`,
	})
	w := NewWorker(store, &fakeEmbedder{}, &fakeUpserter{}, 0)

	done, err := w.RunOnce(context.Background())
	if err != nil || !done {
		t.Fatalf("RunOnce = (%v, %v)", done, err)
	}
	if _, ok := store.failed["job-1"]; !ok {
		t.Errorf("failed = %v, want job-1 marked failed", store.failed)
	}
	if len(store.completed) != 0 {
		t.Errorf("completed = %v", store.completed)
	}
}

func TestRunOnce_MissingEmployeeIDFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexObjective,
		PayloadJSON: `{"objective_id":"okr-1"}`,
	})
	w := NewWorker(store, &fakeEmbedder{}, &fakeUpserter{}, 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if msg := store.failed["job-1"]; !strings.Contains(msg, "employee_id") {
		t.Errorf("failure message = %q", msg)
	}
}

func TestRunOnce_EmbedErrorFailsJob(t *testing.T) {
	store := newFakeJobStore()
	store.objectives["okr-1"] = storage.Objective{ID: "okr-1", EmployeeID: "emp-1", Title: "Goal"}
	store.jobs = append(store.jobs, &storage.Job{
		ID:          "job-1",
		Type:        JobIndexObjective,
		PayloadJSON: `{"employee_id":"emp-1","objective_id":"okr-1"}`,
	})
	embedder := &fakeEmbedder{err: errors.New("embedding service down")}
	w := NewWorker(store, embedder, &fakeUpserter{}, 0)

	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if msg := store.failed["job-1"]; !strings.Contains(msg, "embedding service down") {
		t.Errorf("failure message = %q", msg)
	}
}
