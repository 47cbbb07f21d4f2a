package retrieval

import "time"

// Content types recognized by the retriever. Vectors carrying any other
// content type are ignored during partitioning.
const (
	ContentTypeOKR      = "okr"
	ContentTypeFeedback = "feedback"
	ContentTypeDocument = "document"
)

// EmployeeNamespace derives the vector namespace for an employee. Every
// insert and query goes through this function, so cross-employee retrieval
// is impossible by construction rather than by a filter that can be forgotten.
func EmployeeNamespace(employeeID string) string {
	return "employee:" + employeeID
}

// VectorStore is the interface for namespaced vector storage and similarity
// search backends. The current implementation uses SQLite with brute-force
// cosine similarity; an ANN-capable backend can replace it behind the same
// interface.
type VectorStore interface {
	// Upsert adds records to the given namespace, replacing any existing
	// record with the same ID (last writer wins).
	Upsert(namespace string, records []Record) error

	// Search returns the top-K records of the namespace most similar to the
	// query vector, scored by cosine similarity.
	Search(namespace string, vector []float32, topK int) ([]ScoredRecord, error)

	// GetByIDs returns records matching the given IDs within the namespace.
	GetByIDs(namespace string, ids []string) ([]Record, error)

	// DeleteNamespace removes every record in the namespace. Used by the
	// employee-data purge path.
	DeleteNamespace(namespace string) error

	// Count returns the number of records in the namespace.
	Count(namespace string) (int, error)
}

// Record represents a stored vector with its metadata.
type Record struct {
	ID          string
	SourceID    string
	ContentType string
	Preview     string
	Embedding   []float32
	Tags        string // JSON array stored as text
	CreatedAt   time.Time
}

// ScoredRecord is a Record with the store's native similarity score attached.
// Scores are returned as-is, never renormalized locally.
type ScoredRecord struct {
	Record
	Score float32
}
