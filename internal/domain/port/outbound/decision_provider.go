package outbound

import (
	"context"

	"github.com/jonny/guardian/internal/domain/model"
)

// AnalysisResult is the output of the analysis stage's reasoning call.
type AnalysisResult struct {
	RiskScore     int
	Indicators    []string
	ThreatSummary string
}

type InvestigateRequest struct {
	RiskScore  int
	Indicators []string
	Intel      []model.Investigation
}

// InvestigateResult revises the assessment in light of reputation data.
type InvestigateResult struct {
	RiskScore     int
	ThreatContext string
	Confidence    string // LOW | MEDIUM | HIGH
}

type PlanRequest struct {
	RiskScore  int
	Indicators []string
	Intel      []model.Investigation
	RawLog     string
}

// PlanResult carries the human-readable plan and the structured action
// list as two distinct fields; they are never concatenated.
type PlanResult struct {
	PlanText string
	Actions  []model.PlannedAction
}

// DecisionProvider is the external reasoning capability behind the
// analysis, investigation, and mitigation stages. Implementations must
// honor ctx deadlines; output not matching the expected shape is mapped
// to zero values by the implementation, never surfaced as a crash.
type DecisionProvider interface {
	Analyze(ctx context.Context, rawLog string) (AnalysisResult, error)
	Investigate(ctx context.Context, req InvestigateRequest) (InvestigateResult, error)
	Plan(ctx context.Context, req PlanRequest) (PlanResult, error)
	HealthCheck(ctx context.Context) error
}
