package storage

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("opening storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Migrations(t *testing.T) {
	s := testStore(t)

	applied, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(applied) == 0 {
		t.Fatal("no migrations applied")
	}
}

func TestEmployeeRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	e := Employee{ID: "emp-1", OrgID: "org-1", Name: "Dana Reyes", Title: "Engineer", Email: "dana@example.com"}
	if err := s.SaveEmployee(e); err != nil {
		t.Fatalf("SaveEmployee: %v", err)
	}

	got, err := s.GetEmployee(ctx, "emp-1", "org-1")
	if err != nil {
		t.Fatalf("GetEmployee: %v", err)
	}
	if got.Name != "Dana Reyes" || got.Email != "dana@example.com" {
		t.Errorf("GetEmployee = %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not populated")
	}
}

func TestGetEmployee_OrgScoped(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveEmployee(Employee{ID: "emp-1", OrgID: "org-1", Name: "Dana"}); err != nil {
		t.Fatalf("SaveEmployee: %v", err)
	}

	// A valid employee ID under the wrong org must look like a missing row.
	_, err := s.GetEmployee(ctx, "emp-1", "org-2")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-org GetEmployee err = %v, want ErrNotFound", err)
	}
}

func TestSaveEmployee_SnapshotReplace(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if err := s.SaveEmployee(Employee{ID: "emp-1", OrgID: "org-1", Name: "Dana"}); err != nil {
		t.Fatalf("SaveEmployee: %v", err)
	}
	if err := s.SaveEmployee(Employee{ID: "emp-1", OrgID: "org-1", Name: "Dana Reyes", Title: "Senior Engineer"}); err != nil {
		t.Fatalf("re-sync SaveEmployee: %v", err)
	}

	got, err := s.GetEmployee(ctx, "emp-1", "org-1")
	if err != nil {
		t.Fatalf("GetEmployee: %v", err)
	}
	if got.Name != "Dana Reyes" || got.Title != "Senior Engineer" {
		t.Errorf("GetEmployee after re-sync = %+v", got)
	}
}

func TestObjectivesByOwner_WindowAndKeyResults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	inWindow := Objective{
		ID:         "okr-1",
		EmployeeID: "emp-1",
		Title:      "Ship billing v2",
		Progress:   80,
		DueDate:    time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		KeyResults: []KeyResult{
			{ID: "kr-1", Title: "Migrate tenants", Progress: 100},
			{ID: "kr-2", Title: "Delete legacy code", Progress: 40},
		},
	}
	outOfWindow := Objective{
		ID:         "okr-2",
		EmployeeID: "emp-1",
		Title:      "Ancient goal",
		DueDate:    time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	otherOwner := Objective{
		ID:         "okr-3",
		EmployeeID: "emp-2",
		Title:      "Someone else's goal",
		DueDate:    time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		CreatedAt:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	for _, o := range []Objective{inWindow, outOfWindow, otherOwner} {
		if err := s.SaveObjective(o); err != nil {
			t.Fatalf("SaveObjective(%s): %v", o.ID, err)
		}
	}

	got, err := s.ObjectivesByOwner(ctx, "emp-1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("ObjectivesByOwner: %v", err)
	}
	if len(got) != 1 || got[0].ID != "okr-1" {
		t.Fatalf("ObjectivesByOwner = %+v, want only okr-1", got)
	}
	if len(got[0].KeyResults) != 2 {
		t.Errorf("KeyResults = %+v", got[0].KeyResults)
	}
}

func TestSaveObjective_SnapshotReplacesKeyResults(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	o := Objective{
		ID:         "okr-1",
		EmployeeID: "emp-1",
		Title:      "Ship billing v2",
		DueDate:    time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		KeyResults: []KeyResult{{ID: "kr-1", Title: "Old KR", Progress: 10}},
	}
	if err := s.SaveObjective(o); err != nil {
		t.Fatalf("SaveObjective: %v", err)
	}

	o.KeyResults = []KeyResult{{ID: "kr-2", Title: "New KR", Progress: 50}}
	if err := s.SaveObjective(o); err != nil {
		t.Fatalf("re-sync SaveObjective: %v", err)
	}

	got, err := s.GetObjective(ctx, "okr-1")
	if err != nil {
		t.Fatalf("GetObjective: %v", err)
	}
	if len(got.KeyResults) != 1 || got.KeyResults[0].ID != "kr-2" {
		t.Errorf("KeyResults after re-sync = %+v", got.KeyResults)
	}
}

func TestFeedbackByReceiver(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	early := Feedback{ID: "fb-1", EmployeeID: "emp-1", Content: "first", CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)}
	late := Feedback{ID: "fb-2", EmployeeID: "emp-1", Content: "second", Tags: `["delivery"]`, CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	other := Feedback{ID: "fb-3", EmployeeID: "emp-2", Content: "not yours", CreatedAt: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)}
	for _, f := range []Feedback{late, early, other} {
		if err := s.SaveFeedback(f); err != nil {
			t.Fatalf("SaveFeedback(%s): %v", f.ID, err)
		}
	}

	got, err := s.FeedbackByReceiver(ctx, "emp-1",
		time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	)
	if err != nil {
		t.Fatalf("FeedbackByReceiver: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("FeedbackByReceiver = %+v", got)
	}
	// Oldest first.
	if got[0].ID != "fb-1" || got[1].ID != "fb-2" {
		t.Errorf("order = [%s, %s]", got[0].ID, got[1].ID)
	}
	if got[1].Tags != `["delivery"]` {
		t.Errorf("Tags = %q", got[1].Tags)
	}
}

func TestReviewRecordRoundTrip(t *testing.T) {
	s := testStore(t)

	r := ReviewRecord{
		ID:             "rev-1",
		EmployeeID:     "emp-1",
		OrgID:          "org-1",
		ReviewType:     "manager",
		PayloadJSON:    `{"strengths":"x"}`,
		Confidence:     0.82,
		QualityOverall: 75,
	}
	if err := s.SaveReviewRecord(r); err != nil {
		t.Fatalf("SaveReviewRecord: %v", err)
	}

	got, err := s.GetReviewRecord("rev-1")
	if err != nil {
		t.Fatalf("GetReviewRecord: %v", err)
	}
	if got.Confidence != 0.82 || got.PayloadJSON != `{"strengths":"x"}` {
		t.Errorf("GetReviewRecord = %+v", got)
	}

	if _, err := s.GetReviewRecord("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing record err = %v, want ErrNotFound", err)
	}
}

func TestRecentReviewRecords(t *testing.T) {
	s := testStore(t)

	for i, id := range []string{"rev-1", "rev-2", "rev-3"} {
		r := ReviewRecord{
			ID:          id,
			EmployeeID:  "emp-1",
			OrgID:       "org-1",
			ReviewType:  "manager",
			PayloadJSON: "{}",
			CreatedAt:   time.Date(2025, 1, 1+i, 0, 0, 0, 0, time.UTC),
		}
		if err := s.SaveReviewRecord(r); err != nil {
			t.Fatalf("SaveReviewRecord: %v", err)
		}
	}

	got, err := s.RecentReviewRecords("emp-1", 2)
	if err != nil {
		t.Fatalf("RecentReviewRecords: %v", err)
	}
	if len(got) != 2 || got[0].ID != "rev-3" {
		t.Fatalf("RecentReviewRecords = %+v, want newest first", got)
	}

	all, err := s.RecentReviewRecords("", 10)
	if err != nil {
		t.Fatalf("RecentReviewRecords(all): %v", err)
	}
	if len(all) != 3 {
		t.Errorf("all records = %d, want 3", len(all))
	}
}

func TestDocumentRoundTrip(t *testing.T) {
	s := testStore(t)

	d := Document{ID: "doc-1", EmployeeID: "emp-1", Title: "Self assessment", Content: "I shipped things.", Source: "upload"}
	if err := s.SaveDocument(d); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	if err := s.UpdateDocumentVectorID("doc-1", "vec-9"); err != nil {
		t.Fatalf("UpdateDocumentVectorID: %v", err)
	}

	got, err := s.GetDocument("doc-1")
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.VectorID != "vec-9" {
		t.Errorf("VectorID = %q", got.VectorID)
	}
	if got.Tags != "[]" {
		t.Errorf("Tags = %q, want empty array default", got.Tags)
	}

	if err := s.UpdateDocumentVectorID("missing", "vec-1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UpdateDocumentVectorID(missing) = %v, want ErrNotFound", err)
	}
}

func TestJobLifecycle(t *testing.T) {
	s := testStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "index_objective", PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"index_objective"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job == nil || job.ID != "job-1" {
		t.Fatalf("ClaimNextJob = %+v", job)
	}
	if job.Status != "running" {
		t.Errorf("Status = %q", job.Status)
	}

	// A claimed job is invisible to further claims.
	again, err := s.ClaimNextJob([]string{"index_objective"})
	if err != nil {
		t.Fatalf("second ClaimNextJob: %v", err)
	}
	if again != nil {
		t.Errorf("claimed job returned again: %+v", again)
	}

	if err := s.CompleteJob(job.ID); err != nil {
		t.Fatalf("CompleteJob: %v", err)
	}
}

func TestClaimNextJob_TypeFiltered(t *testing.T) {
	s := testStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "index_document", PayloadJSON: "{}"}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"index_objective"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if job != nil {
		t.Errorf("claimed job of excluded type: %+v", job)
	}
}

func TestFailJob_RetriesThenFails(t *testing.T) {
	s := testStore(t)

	if err := s.EnqueueJob(Job{ID: "job-1", Type: "index_objective", PayloadJSON: "{}", MaxAttempts: 2}); err != nil {
		t.Fatalf("EnqueueJob: %v", err)
	}

	job, err := s.ClaimNextJob([]string{"index_objective"})
	if err != nil || job == nil {
		t.Fatalf("ClaimNextJob: %v (%+v)", err, job)
	}

	// First failure reschedules with backoff, still pending but not claimable yet.
	if err := s.FailJob(job.ID, "transient"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	rescheduled, err := s.ClaimNextJob([]string{"index_objective"})
	if err != nil {
		t.Fatalf("ClaimNextJob: %v", err)
	}
	if rescheduled != nil {
		t.Errorf("backed-off job claimable immediately: %+v", rescheduled)
	}

	// Second failure exhausts max_attempts.
	if err := s.FailJob(job.ID, "permanent"); err != nil {
		t.Fatalf("FailJob: %v", err)
	}
	var status, lastError string
	if err := s.DB().QueryRow(`SELECT status, last_error FROM jobs WHERE id = ?`, job.ID).Scan(&status, &lastError); err != nil {
		t.Fatalf("reading job row: %v", err)
	}
	if status != "failed" {
		t.Errorf("status = %q, want failed", status)
	}
	if lastError != "permanent" {
		t.Errorf("last_error = %q", lastError)
	}
}
