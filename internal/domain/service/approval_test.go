package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
	"github.com/jonny/guardian/internal/domain/service"
)

// memIncidentRepo is a thread-safe in-memory IncidentRepository shared by
// the service tests.
type memIncidentRepo struct {
	mu        sync.Mutex
	incidents map[string]model.Incident
}

var _ outbound.IncidentRepository = (*memIncidentRepo)(nil)

func newMemIncidentRepo() *memIncidentRepo {
	return &memIncidentRepo{incidents: make(map[string]model.Incident)}
}

func (r *memIncidentRepo) Upsert(_ context.Context, inc model.Incident) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incidents[inc.ID] = inc
	return nil
}

func (r *memIncidentRepo) GetByID(_ context.Context, id string) (model.Incident, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[id]
	if !ok {
		return model.Incident{}, outbound.ErrNotFound
	}
	return inc, nil
}

func (r *memIncidentRepo) List(_ context.Context, _ outbound.IncidentFilter, _ outbound.PageRequest) (outbound.PageResult[model.Incident], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := outbound.PageResult[model.Incident]{}
	for _, inc := range r.incidents {
		out.Items = append(out.Items, inc)
		out.TotalCount++
	}
	return out, nil
}

func (r *memIncidentRepo) SetApprovalDecision(_ context.Context, id string, decision model.ApprovalDecision) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	inc, ok := r.incidents[id]
	if !ok {
		return outbound.ErrNotFound
	}
	if inc.Status != model.StatusAwaitingApproval {
		return outbound.ErrPreconditionFailed
	}
	inc.ApprovalDecision = decision
	r.incidents[id] = inc
	return nil
}

func (r *memIncidentRepo) Stats(_ context.Context) (outbound.IncidentStats, error) {
	return outbound.IncidentStats{}, nil
}

// seedAwaiting stores a fresh incident in the awaiting_approval state and
// returns its id.
func seedAwaiting(t *testing.T, repo *memIncidentRepo) string {
	t.Helper()
	inc := model.NewIncident("raw", model.SourceAPI)
	inc = inc.WithStatus(model.StatusInvestigating)
	inc = inc.WithStatus(model.StatusAwaitingApproval)
	if err := repo.Upsert(context.Background(), inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	return inc.ID
}

func TestPollingGate_TimeoutResolvesDenied(t *testing.T) {
	repo := newMemIncidentRepo()
	id := seedAwaiting(t, repo)

	gate := service.NewPollingGate(repo, 10*time.Millisecond)
	start := time.Now()
	decision, err := gate.Await(context.Background(), id, 100*time.Millisecond)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if decision != model.DecisionDenied {
		t.Errorf("decision = %s, want denied", decision)
	}
	if elapsed < 90*time.Millisecond {
		t.Errorf("gate resolved after %v, before the deadline", elapsed)
	}
	if elapsed > 300*time.Millisecond {
		t.Errorf("gate resolved after %v, long past the deadline", elapsed)
	}
}

func TestPollingGate_PriorDecisionReturnsImmediately(t *testing.T) {
	repo := newMemIncidentRepo()
	inc := model.NewIncident("raw", model.SourceAPI)
	inc = inc.WithDecision(model.DecisionApproved)
	if err := repo.Upsert(context.Background(), inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	gate := service.NewPollingGate(repo, time.Hour)
	decision, err := gate.Await(context.Background(), inc.ID, time.Hour)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if decision != model.DecisionApproved {
		t.Errorf("decision = %s, want approved", decision)
	}
}

func TestPollingGate_SeesDecisionRecordedDuringWait(t *testing.T) {
	repo := newMemIncidentRepo()
	id := seedAwaiting(t, repo)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = repo.SetApprovalDecision(context.Background(), id, model.DecisionApproved)
	}()

	gate := service.NewPollingGate(repo, 10*time.Millisecond)
	decision, err := gate.Await(context.Background(), id, time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if decision != model.DecisionApproved {
		t.Errorf("decision = %s, want approved", decision)
	}
}

func TestAutoApproveGate(t *testing.T) {
	decision, err := service.AutoApproveGate{}.Await(context.Background(), "any", 0)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if decision != model.DecisionApproved {
		t.Errorf("decision = %s, want approved", decision)
	}
}
