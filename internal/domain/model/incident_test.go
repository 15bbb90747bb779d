package model_test

import (
	"strings"
	"testing"

	"github.com/jonny/guardian/internal/domain/model"
)

func TestWithStatus_ForwardOnly(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI)
	if inc.Status != model.StatusAnalyzing {
		t.Fatalf("new incident status = %s, want analyzing", inc.Status)
	}

	inc = inc.WithStatus(model.StatusInvestigating)
	if inc.Status != model.StatusInvestigating {
		t.Fatalf("status = %s, want investigating", inc.Status)
	}

	// Backward move is ignored.
	back := inc.WithStatus(model.StatusAnalyzing)
	if back.Status != model.StatusInvestigating {
		t.Errorf("backward move changed status to %s", back.Status)
	}

	// Same-status move is ignored too.
	same := inc.WithStatus(model.StatusInvestigating)
	if same.Status != model.StatusInvestigating {
		t.Errorf("same-status move changed status to %s", same.Status)
	}
}

func TestWithStatus_SkipAllowed(t *testing.T) {
	// A run that needs no approval jumps investigating -> executing.
	inc := model.NewIncident("raw", model.SourceAPI).
		WithStatus(model.StatusInvestigating).
		WithStatus(model.StatusExecuting)
	if inc.Status != model.StatusExecuting {
		t.Fatalf("status = %s, want executing", inc.Status)
	}
}

func TestWithStatus_ErrorFromAnyNonTerminal(t *testing.T) {
	for _, status := range []model.IncidentStatus{
		model.StatusAnalyzing,
		model.StatusInvestigating,
		model.StatusAwaitingApproval,
		model.StatusExecuting,
	} {
		inc := model.NewIncident("raw", model.SourceAPI)
		inc.Status = status
		inc = inc.WithStatus(model.StatusError)
		if inc.Status != model.StatusError {
			t.Errorf("error transition from %s not applied", status)
		}
	}
}

func TestWithStatus_TerminalIsFinal(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI).Complete()
	if got := inc.WithStatus(model.StatusError).Status; got != model.StatusComplete {
		t.Errorf("complete incident moved to %s", got)
	}
	if got := inc.WithStatus(model.StatusExecuting).Status; got != model.StatusComplete {
		t.Errorf("complete incident moved to %s", got)
	}
}

func TestComplete_SetsCompletedAt(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI).Complete()
	if inc.Status != model.StatusComplete {
		t.Fatalf("status = %s, want complete", inc.Status)
	}
	if inc.CompletedAt == nil {
		t.Fatal("CompletedAt not set")
	}
	if !inc.IsTerminal() {
		t.Error("complete incident not terminal")
	}
}

func TestAppendEvent_DoesNotAliasOriginal(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI)
	one := inc.AppendEvent(model.NewEvent(model.EventAnalyzerComplete, inc.ID, nil))
	two := one.AppendEvent(model.NewEvent(model.EventInvestigatorComplete, inc.ID, nil))

	if len(inc.Events) != 0 {
		t.Errorf("original gained %d events", len(inc.Events))
	}
	if len(one.Events) != 1 {
		t.Errorf("first copy has %d events, want 1", len(one.Events))
	}
	if len(two.Events) != 2 {
		t.Errorf("second copy has %d events, want 2", len(two.Events))
	}
	if two.Events[0].Type != model.EventAnalyzerComplete || two.Events[1].Type != model.EventInvestigatorComplete {
		t.Error("events out of order")
	}
}

func TestHighRisk_Boundary(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI)

	inc.RiskScore = 6
	if inc.HighRisk() {
		t.Error("risk 6 counted as high")
	}
	inc.RiskScore = 7
	if !inc.HighRisk() {
		t.Error("risk 7 not counted as high")
	}
}

func TestWithDecision(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI)
	if inc.ApprovalDecision != model.DecisionPending {
		t.Fatalf("new incident decision = %s, want pending", inc.ApprovalDecision)
	}
	if got := inc.WithDecision(model.DecisionDenied).ApprovalDecision; got != model.DecisionDenied {
		t.Errorf("decision = %s, want denied", got)
	}
}

func TestReport_SummarizesRun(t *testing.T) {
	inc := model.NewIncident("raw", model.SourceAPI)
	inc.RiskScore = 9
	inc.Indicators = []string{"185.220.101.47"}
	inc.PlanText = "block the source address"
	inc.ExecutedActions = []model.ActionResult{
		{Type: model.ActionBlockIP, Target: "185.220.101.47", Outcome: model.OutcomeSuccess},
	}

	report := inc.Report()
	for _, want := range []string{
		inc.ID,
		"risk: 9/10",
		"185.220.101.47",
		"block the source address",
		"block_ip:185.220.101.47 -> success",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestActionResultString(t *testing.T) {
	tests := []struct {
		name   string
		result model.ActionResult
		want   string
	}{
		{
			name:   "denied",
			result: model.ActionResult{Type: model.ActionAlertOnly, Target: "inc-1", Outcome: model.OutcomeDenied},
			want:   "alert_only (denied)",
		},
		{
			name:   "success",
			result: model.ActionResult{Type: model.ActionBlockIP, Target: "1.2.3.4", Outcome: model.OutcomeSuccess},
			want:   "block_ip:1.2.3.4 -> success",
		},
		{
			name:   "error with detail",
			result: model.ActionResult{Type: model.ActionBlockHash, Target: "abc", Outcome: model.OutcomeError, Detail: "boom"},
			want:   "block_hash:abc -> error(boom)",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}
