package inbound

import (
	"context"

	"github.com/jonny/guardian/internal/domain/model"
)

// IncidentSubmitter accepts a raw log and starts a pipeline run for it.
// The returned incident reflects the initial persisted state; the run
// itself proceeds asynchronously.
type IncidentSubmitter interface {
	Submit(ctx context.Context, rawLog string, source model.IncidentSource) (model.Incident, error)
}

// OperatorPort records the only externally triggered mutation to a running
// incident: the approval decision. Implementations must reject the write
// unless the incident is currently awaiting approval.
type OperatorPort interface {
	RecordApprovalDecision(ctx context.Context, id string, decision model.ApprovalDecision) error
}
