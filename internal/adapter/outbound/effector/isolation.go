package effector

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// quarantineVLAN is where isolated hosts are moved.
const quarantineVLAN = "QUARANTINE-999"

// Isolation moves hosts onto the quarantine VLAN.
type Isolation struct {
	state  outbound.SysStateRepository
	logger *slog.Logger
}

func NewIsolation(state outbound.SysStateRepository, logger *slog.Logger) *Isolation {
	return &Isolation{state: state, logger: logger}
}

var _ outbound.Effector = (*Isolation)(nil)

func (i *Isolation) ActionType() model.ActionType { return model.ActionIsolateHost }

func (i *Isolation) Apply(ctx context.Context, target, justification string) (model.ActionResult, error) {
	isolated, err := i.state.HostIsolated(ctx, target)
	if err != nil {
		return errorResult(model.ActionIsolateHost, target, err), err
	}
	if isolated {
		return model.ActionResult{
			Type:    model.ActionIsolateHost,
			Target:  target,
			Outcome: model.OutcomeAlreadyApplied,
			Detail:  "host already isolated",
		}, nil
	}

	entry := outbound.IsolatedHost{
		Hostname:   target,
		Reason:     justification,
		VLAN:       quarantineVLAN,
		IsolatedAt: time.Now().UTC(),
	}
	if err := i.state.IsolateHost(ctx, entry); err != nil {
		return errorResult(model.ActionIsolateHost, target, err), err
	}
	i.logger.Info("host isolated",
		slog.String("hostname", target),
		slog.String("vlan", quarantineVLAN))
	return model.ActionResult{
		Type:    model.ActionIsolateHost,
		Target:  target,
		Outcome: model.OutcomeSuccess,
	}, nil
}
