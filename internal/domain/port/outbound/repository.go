package outbound

import (
	"context"
	"errors"

	"github.com/jonny/guardian/internal/domain/model"
)

// ErrNotFound is returned when no incident exists for the given id.
var ErrNotFound = errors.New("incident not found")

// ErrPreconditionFailed is returned when a write is rejected because the
// incident is not in the state the operation requires, e.g. an approval
// decision against an incident that is not awaiting approval.
var ErrPreconditionFailed = errors.New("precondition failed")

type PageRequest struct {
	Limit  int
	Offset int
}

type PageResult[T any] struct {
	Items      []T
	TotalCount int64
	Limit      int
	Offset     int
}

// IncidentFilter narrows List results. Zero values mean "no constraint".
type IncidentFilter struct {
	Status  model.IncidentStatus
	MinRisk int
	Source  model.IncidentSource
}

// IncidentStats summarizes the store for the dashboard.
type IncidentStats struct {
	Total           int64                          `json:"total"`
	ByStatus        map[model.IncidentStatus]int64 `json:"by_status"`
	HighRisk        int64                          `json:"high_risk"`
	PendingApproval int64                          `json:"pending_approval"`
	AvgRiskScore    float64                        `json:"avg_risk_score"`
}

// IncidentRepository is the durable keyed record of incident state.
//
// Upsert is a full-record replace keyed by id. The engine holds one logical
// writer per incident, so writes for a single id are strictly ordered;
// writes for different ids must not block each other.
type IncidentRepository interface {
	Upsert(ctx context.Context, incident model.Incident) error
	GetByID(ctx context.Context, id string) (model.Incident, error)
	List(ctx context.Context, filter IncidentFilter, page PageRequest) (PageResult[model.Incident], error)
	// SetApprovalDecision records an operator decision. It succeeds only
	// while the incident is awaiting approval; otherwise it returns
	// ErrPreconditionFailed (or ErrNotFound) and mutates nothing.
	SetApprovalDecision(ctx context.Context, id string, decision model.ApprovalDecision) error
	Stats(ctx context.Context) (IncidentStats, error)
}

// SeenHashRepository remembers content hashes accepted from passive
// ingestion sources. Persisted so a restart never double-submits.
type SeenHashRepository interface {
	Seen(ctx context.Context, hash string) (bool, error)
	MarkSeen(ctx context.Context, hash, source string) error
}
