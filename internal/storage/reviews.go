package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Review audit log ---

func (s *Store) SaveReviewRecord(r ReviewRecord) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO review_records (id, employee_id, org_id, review_type, payload_json, confidence, quality_overall, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EmployeeID, r.OrgID, r.ReviewType, r.PayloadJSON,
		r.Confidence, r.QualityOverall, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetReviewRecord(id string) (ReviewRecord, error) {
	var r ReviewRecord
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, employee_id, org_id, review_type, payload_json, confidence, quality_overall, created_at
		FROM review_records WHERE id = ?`, id,
	).Scan(&r.ID, &r.EmployeeID, &r.OrgID, &r.ReviewType, &r.PayloadJSON, &r.Confidence, &r.QualityOverall, &createdAt)
	if err == sql.ErrNoRows {
		return ReviewRecord{}, ErrNotFound
	}
	if err != nil {
		return ReviewRecord{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return ReviewRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	r.CreatedAt = t
	return r, nil
}

// RecentReviewRecords returns the newest records first. An empty employeeID
// matches all employees.
func (s *Store) RecentReviewRecords(employeeID string, limit int) ([]ReviewRecord, error) {
	query := `
		SELECT id, employee_id, org_id, review_type, payload_json, confidence, quality_overall, created_at
		FROM review_records`
	args := []any{}
	if employeeID != "" {
		query += ` WHERE employee_id = ?`
		args = append(args, employeeID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []ReviewRecord
	for rows.Next() {
		var r ReviewRecord
		var createdAt string
		if err := rows.Scan(&r.ID, &r.EmployeeID, &r.OrgID, &r.ReviewType, &r.PayloadJSON, &r.Confidence, &r.QualityOverall, &createdAt); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		r.CreatedAt = t
		results = append(results, r)
	}
	return results, rows.Err()
}

// --- Documents ---

func (s *Store) SaveDocument(doc Document) error {
	createdAt := doc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tags := doc.Tags
	if tags == "" {
		tags = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, employee_id, title, content, source, tags, created_at, vector_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, doc.EmployeeID, doc.Title, doc.Content, doc.Source, tags,
		createdAt.Format(time.RFC3339), doc.VectorID,
	)
	return err
}

func (s *Store) GetDocument(id string) (Document, error) {
	var d Document
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, employee_id, title, content, source, tags, created_at, vector_id
		FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.EmployeeID, &d.Title, &d.Content, &d.Source, &d.Tags, &createdAt, &d.VectorID)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Document{}, fmt.Errorf("parsing created_at: %w", err)
	}
	d.CreatedAt = t
	return d, nil
}

func (s *Store) UpdateDocumentVectorID(id, vectorID string) error {
	res, err := s.db.Exec(`UPDATE documents SET vector_id = ? WHERE id = ?`, vectorID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
