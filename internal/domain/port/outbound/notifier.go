package outbound

import (
	"context"

	"github.com/jonny/guardian/internal/domain/model"
)

// Notifier pushes incident lifecycle notifications to an external channel.
// Calls are fire-and-forget from the pipeline's point of view: failures are
// logged by the caller and never abort a stage.
type Notifier interface {
	NotifyCreated(ctx context.Context, incident model.Incident) error
	NotifyApprovalNeeded(ctx context.Context, incident model.Incident) error
	NotifyComplete(ctx context.Context, incident model.Incident) error
}
