package effector

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Directory disables compromised user accounts.
type Directory struct {
	state  outbound.SysStateRepository
	logger *slog.Logger
}

func NewDirectory(state outbound.SysStateRepository, logger *slog.Logger) *Directory {
	return &Directory{state: state, logger: logger}
}

var _ outbound.Effector = (*Directory)(nil)

func (d *Directory) ActionType() model.ActionType { return model.ActionDisableUser }

func (d *Directory) Apply(ctx context.Context, target, justification string) (model.ActionResult, error) {
	disabled, err := d.state.UserDisabled(ctx, target)
	if err != nil {
		return errorResult(model.ActionDisableUser, target, err), err
	}
	if disabled {
		return model.ActionResult{
			Type:    model.ActionDisableUser,
			Target:  target,
			Outcome: model.OutcomeAlreadyApplied,
			Detail:  "account already disabled",
		}, nil
	}

	entry := outbound.DisabledUser{Username: target, Reason: justification, DisabledAt: time.Now().UTC()}
	if err := d.state.DisableUser(ctx, entry); err != nil {
		return errorResult(model.ActionDisableUser, target, err), err
	}
	d.logger.Info("user account disabled", slog.String("username", target))
	return model.ActionResult{
		Type:    model.ActionDisableUser,
		Target:  target,
		Outcome: model.OutcomeSuccess,
	}, nil
}
