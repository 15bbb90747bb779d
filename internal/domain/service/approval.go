package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// ApprovalGate blocks a pipeline run until an operator decision arrives or
// the deadline passes. Timeout and cancellation both resolve to denied so
// the gate fails closed.
type ApprovalGate interface {
	Await(ctx context.Context, incidentID string, timeout time.Duration) (model.ApprovalDecision, error)
}

const defaultPollInterval = 2 * time.Second

// PollingGate resolves decisions by polling the incident record. The
// operator endpoint writes the decision through the repository; the gate
// sees it on the next tick.
type PollingGate struct {
	repo         outbound.IncidentRepository
	pollInterval time.Duration
}

func NewPollingGate(repo outbound.IncidentRepository, pollInterval time.Duration) *PollingGate {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	return &PollingGate{repo: repo, pollInterval: pollInterval}
}

var _ ApprovalGate = (*PollingGate)(nil)

// Await polls until the decision leaves pending, the timeout elapses, or
// ctx is cancelled. The zero value of timeout means wait forever on ctx.
func (g *PollingGate) Await(ctx context.Context, incidentID string, timeout time.Duration) (model.ApprovalDecision, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Check immediately so a decision recorded before Await is not delayed
	// by a full poll interval.
	if decision, done, err := g.check(ctx, incidentID); done || err != nil {
		return decision, err
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			// Fail closed: no decision by the deadline means denied.
			return model.DecisionDenied, nil
		case <-ticker.C:
			decision, done, err := g.check(ctx, incidentID)
			if err != nil {
				return model.DecisionDenied, err
			}
			if done {
				return decision, nil
			}
		}
	}
}

func (g *PollingGate) check(ctx context.Context, incidentID string) (model.ApprovalDecision, bool, error) {
	inc, err := g.repo.GetByID(ctx, incidentID)
	if err != nil {
		// A deadline racing the read is a timeout, not a failure.
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return model.DecisionDenied, true, nil
		}
		return model.DecisionDenied, false, fmt.Errorf("polling approval state: %w", err)
	}
	if inc.ApprovalDecision != model.DecisionPending {
		return inc.ApprovalDecision, true, nil
	}
	return model.DecisionPending, false, nil
}

// AutoApproveGate approves immediately. Used when the pipeline runs with
// human approval switched off.
type AutoApproveGate struct{}

func (AutoApproveGate) Await(_ context.Context, _ string, _ time.Duration) (model.ApprovalDecision, error) {
	return model.DecisionApproved, nil
}
