package sqlite_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jonny/guardian/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(sqlite.Config{
		Path:              ":memory:",
		MaxOpenConns:      1,
		PragmaJournalMode: "memory",
		PragmaBusyTimeout: 5000,
	})
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makeIncident(rawLog string, risk int) model.Incident {
	inc := model.NewIncident(rawLog, model.SourceAPI)
	inc.RiskScore = risk
	return inc
}

func TestIncidentRepo_UpsertAndGetByID(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	inc := makeIncident("failed login burst", 5)
	inc.Indicators = []string{"185.220.101.47"}
	inc.ThreatSummary = "brute force"
	inc = inc.AppendEvent(model.NewEvent(model.EventAnalyzerComplete, inc.ID, map[string]any{"risk_score": 5}))

	if err := repo.Upsert(ctx, inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.RawLog != inc.RawLog {
		t.Errorf("RawLog: got %q want %q", got.RawLog, inc.RawLog)
	}
	if got.RiskScore != 5 {
		t.Errorf("RiskScore: got %d want 5", got.RiskScore)
	}
	if len(got.Indicators) != 1 || got.Indicators[0] != "185.220.101.47" {
		t.Errorf("Indicators: got %v", got.Indicators)
	}
	if len(got.Events) != 1 || got.Events[0].Type != model.EventAnalyzerComplete {
		t.Errorf("Events: got %v", got.Events)
	}
	if got.ApprovalDecision != model.DecisionPending {
		t.Errorf("ApprovalDecision: got %s want pending", got.ApprovalDecision)
	}
}

func TestIncidentRepo_UpsertReplacesRecord(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	inc := makeIncident("raw", 3)
	if err := repo.Upsert(ctx, inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	inc = inc.WithStatus(model.StatusInvestigating)
	inc.RiskScore = 8
	if err := repo.Upsert(ctx, inc); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := repo.GetByID(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != model.StatusInvestigating || got.RiskScore != 8 {
		t.Errorf("record not replaced: status=%s risk=%d", got.Status, got.RiskScore)
	}
}

func TestIncidentRepo_GetByID_NotFound(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)

	_, err := repo.GetByID(context.Background(), "missing")
	if !errors.Is(err, outbound.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestIncidentRepo_ListFilters(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	low := makeIncident("low", 2)
	high := makeIncident("high", 9)
	high.Status = model.StatusAwaitingApproval
	for _, inc := range []model.Incident{low, high} {
		if err := repo.Upsert(ctx, inc); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	result, err := repo.List(ctx, outbound.IncidentFilter{MinRisk: 7}, outbound.PageRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.TotalCount != 1 || len(result.Items) != 1 {
		t.Fatalf("MinRisk filter: total=%d items=%d", result.TotalCount, len(result.Items))
	}
	if result.Items[0].ID != high.ID {
		t.Errorf("wrong incident: %s", result.Items[0].ID)
	}

	result, err = repo.List(ctx, outbound.IncidentFilter{Status: model.StatusAwaitingApproval}, outbound.PageRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.TotalCount != 1 {
		t.Errorf("Status filter: total=%d want 1", result.TotalCount)
	}

	result, err = repo.List(ctx, outbound.IncidentFilter{}, outbound.PageRequest{Limit: 1})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if result.TotalCount != 2 || len(result.Items) != 1 {
		t.Errorf("paging: total=%d items=%d", result.TotalCount, len(result.Items))
	}
}

func TestIncidentRepo_SetApprovalDecision(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	inc := makeIncident("raw", 9)
	inc.Status = model.StatusAwaitingApproval
	if err := repo.Upsert(ctx, inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	if err := repo.SetApprovalDecision(ctx, inc.ID, model.DecisionApproved); err != nil {
		t.Fatalf("SetApprovalDecision: %v", err)
	}
	got, err := repo.GetByID(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ApprovalDecision != model.DecisionApproved {
		t.Errorf("decision = %s, want approved", got.ApprovalDecision)
	}
}

func TestIncidentRepo_SetApprovalDecision_PreconditionFailed(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	inc := makeIncident("raw", 9).Complete()
	if err := repo.Upsert(ctx, inc); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	err := repo.SetApprovalDecision(ctx, inc.ID, model.DecisionApproved)
	if !errors.Is(err, outbound.ErrPreconditionFailed) {
		t.Fatalf("error = %v, want ErrPreconditionFailed", err)
	}

	// The rejected write must not have mutated the record.
	got, err := repo.GetByID(ctx, inc.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ApprovalDecision != model.DecisionPending {
		t.Errorf("decision mutated to %s", got.ApprovalDecision)
	}
	if got.Status != model.StatusComplete {
		t.Errorf("status mutated to %s", got.Status)
	}
}

func TestIncidentRepo_SetApprovalDecision_NotFound(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)

	err := repo.SetApprovalDecision(context.Background(), "missing", model.DecisionDenied)
	if !errors.Is(err, outbound.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestIncidentRepo_Stats(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewIncidentRepo(store)
	ctx := context.Background()

	pending := makeIncident("pending", 9)
	pending.Status = model.StatusAwaitingApproval
	done := makeIncident("done", 7).Complete()
	low := makeIncident("low", 2).Complete()
	for _, inc := range []model.Incident{pending, done, low} {
		if err := repo.Upsert(ctx, inc); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Total != 3 {
		t.Errorf("Total = %d, want 3", stats.Total)
	}
	if stats.HighRisk != 2 {
		t.Errorf("HighRisk = %d, want 2 (scores 9 and 7)", stats.HighRisk)
	}
	if stats.PendingApproval != 1 {
		t.Errorf("PendingApproval = %d, want 1", stats.PendingApproval)
	}
	if stats.ByStatus[model.StatusComplete] != 2 {
		t.Errorf("ByStatus[complete] = %d, want 2", stats.ByStatus[model.StatusComplete])
	}
	want := (9.0 + 7.0 + 2.0) / 3.0
	if diff := stats.AvgRiskScore - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("AvgRiskScore = %f, want %f", stats.AvgRiskScore, want)
	}
}
