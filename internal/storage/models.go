package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Employee is an organization member whose performance signals are aggregated.
type Employee struct {
	ID        string
	OrgID     string
	Name      string
	Title     string
	Email     string
	CreatedAt time.Time
}

// Objective is a goal owned by an employee, with nested key results.
type Objective struct {
	ID          string
	EmployeeID  string
	Title       string
	Description string
	Level       string // "individual", "team", "company"
	Progress    float64
	Status      string
	DueDate     time.Time
	CreatedAt   time.Time
	KeyResults  []KeyResult
}

// KeyResult is a measurable sub-goal of an Objective.
type KeyResult struct {
	ID          string
	ObjectiveID string
	Title       string
	Progress    float64
}

// Feedback is a piece of feedback received by an employee.
type Feedback struct {
	ID          string
	EmployeeID  string
	Content     string
	Tags        string // JSON array stored as text
	Visibility  string
	GivenByName string
	CreatedAt   time.Time
}

// ReviewRecord is the audit-log row for one generated review.
type ReviewRecord struct {
	ID             string
	EmployeeID     string
	OrgID          string
	ReviewType     string
	PayloadJSON    string
	Confidence     float64
	QualityOverall float64
	CreatedAt      time.Time
}

// Job is a queued background task, currently only vector indexing.
type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}

// Document is an ingested free-text artifact (note, self-assessment, PDF)
// attached to an employee and indexed into the vector store.
type Document struct {
	ID         string
	EmployeeID string
	Title      string
	Content    string
	Source     string
	Tags       string // JSON array stored as text
	CreatedAt  time.Time
	VectorID   string
}
