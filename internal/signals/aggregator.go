package signals

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/talentforge/reviewd/internal/storage"
)

// EmployeeReader resolves an employee within an organization.
type EmployeeReader interface {
	GetEmployee(ctx context.Context, id, orgID string) (storage.Employee, error)
}

// ObjectiveReader loads an employee's objectives inside a window.
type ObjectiveReader interface {
	ObjectivesByOwner(ctx context.Context, employeeID string, from, to time.Time) ([]storage.Objective, error)
}

// FeedbackReader loads feedback received by an employee inside a window.
type FeedbackReader interface {
	FeedbackByReceiver(ctx context.Context, employeeID string, from, to time.Time) ([]storage.Feedback, error)
}

// Aggregator gathers an employee's performance signals. Read-only.
type Aggregator struct {
	employees  EmployeeReader
	objectives ObjectiveReader
	feedback   FeedbackReader
	now        func() time.Time
}

// NewAggregator creates an Aggregator over the given readers.
func NewAggregator(employees EmployeeReader, objectives ObjectiveReader, feedback FeedbackReader) *Aggregator {
	return &Aggregator{
		employees:  employees,
		objectives: objectives,
		feedback:   feedback,
		now:        time.Now,
	}
}

// Gather resolves the employee within the organization and collects all
// objectives and feedback inside the window. A zero window defaults to the
// last 365 days. Returns storage.ErrNotFound (wrapped) when the employee does
// not resolve. Objectives and feedback are fetched concurrently; the full set
// within the window is loaded without pagination.
func (a *Aggregator) Gather(ctx context.Context, employeeID, orgID string, window Window) (*EmployeeContext, error) {
	employee, err := a.employees.GetEmployee(ctx, employeeID, orgID)
	if err != nil {
		return nil, fmt.Errorf("resolving employee %s: %w", employeeID, err)
	}

	if window.IsZero() {
		window = DefaultWindow(a.now().UTC())
	}

	var objectives []storage.Objective
	var feedback []storage.Feedback

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objectives, err = a.objectives.ObjectivesByOwner(gCtx, employeeID, window.From, window.To)
		if err != nil {
			return fmt.Errorf("loading objectives: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		feedback, err = a.feedback.FeedbackByReceiver(gCtx, employeeID, window.From, window.To)
		if err != nil {
			return fmt.Errorf("loading feedback: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ec := &EmployeeContext{
		Employee: employee,
		Window:   window,
	}
	for _, o := range objectives {
		ec.Objectives = append(ec.Objectives, ProjectObjective(o))
	}
	for _, f := range feedback {
		ec.Feedback = append(ec.Feedback, ProjectFeedback(f))
	}
	return ec, nil
}
