package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// --- Employees ---

func (s *Store) SaveEmployee(e Employee) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO employees (id, org_id, name, title, email, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.OrgID, e.Name, e.Title, e.Email, createdAt.Format(time.RFC3339),
	)
	return err
}

// GetEmployee resolves an employee within an organization. Employees of other
// organizations are indistinguishable from missing rows.
func (s *Store) GetEmployee(ctx context.Context, id, orgID string) (Employee, error) {
	var e Employee
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, org_id, name, title, email, created_at
		FROM employees WHERE id = ? AND org_id = ?`, id, orgID,
	).Scan(&e.ID, &e.OrgID, &e.Name, &e.Title, &e.Email, &createdAt)
	if err == sql.ErrNoRows {
		return Employee{}, ErrNotFound
	}
	if err != nil {
		return Employee{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Employee{}, fmt.Errorf("parsing created_at: %w", err)
	}
	e.CreatedAt = t
	return e, nil
}

// --- Objectives ---

func (s *Store) SaveObjective(o Objective) error {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning objective transaction: %w", err)
	}
	// Snapshot semantics: a re-synced objective replaces the stored row and
	// its key results wholesale.
	if _, err := tx.Exec(`
		INSERT OR REPLACE INTO objectives (id, employee_id, title, description, level, progress, status, due_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.EmployeeID, o.Title, o.Description, o.Level, o.Progress, o.Status,
		o.DueDate.UTC().Format(time.RFC3339), createdAt.Format(time.RFC3339),
	); err != nil {
		tx.Rollback()
		return fmt.Errorf("inserting objective %s: %w", o.ID, err)
	}
	if _, err := tx.Exec(`DELETE FROM key_results WHERE objective_id = ?`, o.ID); err != nil {
		tx.Rollback()
		return fmt.Errorf("clearing key results for %s: %w", o.ID, err)
	}
	for _, kr := range o.KeyResults {
		if _, err := tx.Exec(`
			INSERT INTO key_results (id, objective_id, title, progress)
			VALUES (?, ?, ?, ?)`,
			kr.ID, o.ID, kr.Title, kr.Progress,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting key result %s: %w", kr.ID, err)
		}
	}
	return tx.Commit()
}

// ObjectivesByOwner returns all objectives created by the employee inside the
// window, each with its nested key results. The full set is loaded; callers
// aggregating a review never paginate.
func (s *Store) ObjectivesByOwner(ctx context.Context, employeeID string, from, to time.Time) ([]Objective, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, title, description, level, progress, status, due_date, created_at
		FROM objectives
		WHERE employee_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`,
		employeeID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying objectives: %w", err)
	}
	defer rows.Close()

	var objectives []Objective
	for rows.Next() {
		var o Objective
		var dueDate, createdAt string
		if err := rows.Scan(&o.ID, &o.EmployeeID, &o.Title, &o.Description, &o.Level, &o.Progress, &o.Status, &dueDate, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning objective: %w", err)
		}
		if o.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
			return nil, fmt.Errorf("parsing due_date for %s: %w", o.ID, err)
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", o.ID, err)
		}
		objectives = append(objectives, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range objectives {
		krs, err := s.keyResultsByObjective(ctx, objectives[i].ID)
		if err != nil {
			return nil, err
		}
		objectives[i].KeyResults = krs
	}
	return objectives, nil
}

func (s *Store) keyResultsByObjective(ctx context.Context, objectiveID string) ([]KeyResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, objective_id, title, progress
		FROM key_results WHERE objective_id = ? ORDER BY id ASC`, objectiveID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying key results: %w", err)
	}
	defer rows.Close()

	var results []KeyResult
	for rows.Next() {
		var kr KeyResult
		if err := rows.Scan(&kr.ID, &kr.ObjectiveID, &kr.Title, &kr.Progress); err != nil {
			return nil, fmt.Errorf("scanning key result: %w", err)
		}
		results = append(results, kr)
	}
	return results, rows.Err()
}

// GetObjective returns a single objective with its key results.
func (s *Store) GetObjective(ctx context.Context, id string) (Objective, error) {
	var o Objective
	var dueDate, createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, title, description, level, progress, status, due_date, created_at
		FROM objectives WHERE id = ?`, id,
	).Scan(&o.ID, &o.EmployeeID, &o.Title, &o.Description, &o.Level, &o.Progress, &o.Status, &dueDate, &createdAt)
	if err == sql.ErrNoRows {
		return Objective{}, ErrNotFound
	}
	if err != nil {
		return Objective{}, err
	}
	if o.DueDate, err = time.Parse(time.RFC3339, dueDate); err != nil {
		return Objective{}, fmt.Errorf("parsing due_date: %w", err)
	}
	if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Objective{}, fmt.Errorf("parsing created_at: %w", err)
	}
	krs, err := s.keyResultsByObjective(ctx, o.ID)
	if err != nil {
		return Objective{}, err
	}
	o.KeyResults = krs
	return o, nil
}

// --- Feedback ---

func (s *Store) SaveFeedback(f Feedback) error {
	createdAt := f.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	tags := f.Tags
	if tags == "" {
		tags = "[]"
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO feedback (id, employee_id, content, tags, visibility, given_by_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.EmployeeID, f.Content, tags, f.Visibility, f.GivenByName,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// FeedbackByReceiver returns all feedback received by the employee inside the window.
func (s *Store) FeedbackByReceiver(ctx context.Context, employeeID string, from, to time.Time) ([]Feedback, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, employee_id, content, tags, visibility, given_by_name, created_at
		FROM feedback
		WHERE employee_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC`,
		employeeID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("querying feedback: %w", err)
	}
	defer rows.Close()

	var items []Feedback
	for rows.Next() {
		var f Feedback
		var createdAt string
		if err := rows.Scan(&f.ID, &f.EmployeeID, &f.Content, &f.Tags, &f.Visibility, &f.GivenByName, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning feedback: %w", err)
		}
		if f.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for %s: %w", f.ID, err)
		}
		items = append(items, f)
	}
	return items, rows.Err()
}

// GetFeedback returns a single feedback item.
func (s *Store) GetFeedback(ctx context.Context, id string) (Feedback, error) {
	var f Feedback
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, employee_id, content, tags, visibility, given_by_name, created_at
		FROM feedback WHERE id = ?`, id,
	).Scan(&f.ID, &f.EmployeeID, &f.Content, &f.Tags, &f.Visibility, &f.GivenByName, &createdAt)
	if err == sql.ErrNoRows {
		return Feedback{}, ErrNotFound
	}
	if err != nil {
		return Feedback{}, err
	}
	t, err := time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return Feedback{}, fmt.Errorf("parsing created_at: %w", err)
	}
	f.CreatedAt = t
	return f, nil
}
