package effector

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Alert writes a SOC alert entry. Unlike the blocking effectors it is
// append-only: every invocation records a new alert.
type Alert struct {
	state  outbound.SysStateRepository
	logger *slog.Logger
}

func NewAlert(state outbound.SysStateRepository, logger *slog.Logger) *Alert {
	return &Alert{state: state, logger: logger}
}

var _ outbound.Effector = (*Alert)(nil)

func (a *Alert) ActionType() model.ActionType { return model.ActionAlertOnly }

func (a *Alert) Apply(ctx context.Context, target, justification string) (model.ActionResult, error) {
	entry := outbound.AlertEntry{
		ID:          ulid.Make().String(),
		Severity:    "medium",
		Title:       "security alert: " + target,
		Description: justification,
		CreatedAt:   time.Now().UTC(),
	}
	if err := a.state.AppendAlert(ctx, entry); err != nil {
		return errorResult(model.ActionAlertOnly, target, err), err
	}
	a.logger.Info("alert recorded", slog.String("target", target))
	return model.ActionResult{
		Type:    model.ActionAlertOnly,
		Target:  target,
		Outcome: model.OutcomeSuccess,
	}, nil
}
