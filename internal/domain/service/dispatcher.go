package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Dispatcher routes planned actions to the effector registered for their
// type. Registration happens once at startup; Dispatch is read-only.
type Dispatcher struct {
	effectors map[model.ActionType]outbound.Effector
	state     outbound.SysStateRepository
	logger    *slog.Logger
}

func NewDispatcher(state outbound.SysStateRepository, logger *slog.Logger, effectors ...outbound.Effector) *Dispatcher {
	m := make(map[model.ActionType]outbound.Effector, len(effectors))
	for _, e := range effectors {
		m[e.ActionType()] = e
	}
	return &Dispatcher{effectors: m, state: state, logger: logger}
}

// Dispatch applies one action. An unregistered action type is an error
// result, not a panic; it is reported the same way an effector failure is.
func (d *Dispatcher) Dispatch(ctx context.Context, action model.PlannedAction) model.ActionResult {
	eff, ok := d.effectors[action.Type]
	if !ok {
		d.logger.Warn("unknown action type", slog.String("type", string(action.Type)))
		return model.ActionResult{
			Type:    action.Type,
			Target:  action.Target,
			Outcome: model.OutcomeError,
			Detail:  "unknown action type",
		}
	}

	result, err := eff.Apply(ctx, action.Target, action.Justification)
	if err != nil {
		d.logger.Error("effector failed",
			slog.String("type", string(action.Type)),
			slog.String("target", action.Target),
			slog.String("error", err.Error()))
	}
	return result
}

// DispatchAll applies every action in order and returns one result per
// action. A failing action does not stop the rest.
func (d *Dispatcher) DispatchAll(ctx context.Context, actions []model.PlannedAction) []model.ActionResult {
	results := make([]model.ActionResult, 0, len(actions))
	for _, a := range actions {
		results = append(results, d.Dispatch(ctx, a))
	}
	return results
}

// RecordBlocked writes the audit trail for a denied run: a single alert
// noting the operator veto, and one denied action result in place of the
// plan. No planned action is executed.
func (d *Dispatcher) RecordBlocked(ctx context.Context, incident model.Incident) []model.ActionResult {
	entry := outbound.AlertEntry{
		ID:          ulid.Make().String(),
		Severity:    "high",
		Title:       fmt.Sprintf("incident %s blocked by operator", incident.ID),
		Description: fmt.Sprintf("operator denied execution of %d planned action(s); risk score %d", len(incident.Actions), incident.RiskScore),
		Indicators:  incident.Indicators,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.state.AppendAlert(ctx, entry); err != nil {
		d.logger.Error("recording blocked alert", slog.String("error", err.Error()))
	}

	return []model.ActionResult{{
		Type:    model.ActionAlertOnly,
		Target:  incident.ID,
		Outcome: model.OutcomeDenied,
		Detail:  "blocked by operator",
	}}
}
