// Package effector implements the mitigation actions the executor can
// dispatch. Every effector checks recorded state before acting so that
// re-applying an action against the same target is a no-op reported as
// already_applied.
package effector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Firewall blocks IPs by writing deny-list entries.
type Firewall struct {
	state  outbound.SysStateRepository
	logger *slog.Logger
}

func NewFirewall(state outbound.SysStateRepository, logger *slog.Logger) *Firewall {
	return &Firewall{state: state, logger: logger}
}

var _ outbound.Effector = (*Firewall)(nil)

func (f *Firewall) ActionType() model.ActionType { return model.ActionBlockIP }

func (f *Firewall) Apply(ctx context.Context, target, justification string) (model.ActionResult, error) {
	exists, err := f.state.FirewallRuleExists(ctx, target)
	if err != nil {
		return errorResult(model.ActionBlockIP, target, err), err
	}
	if exists {
		return model.ActionResult{
			Type:    model.ActionBlockIP,
			Target:  target,
			Outcome: model.OutcomeAlreadyApplied,
			Detail:  "firewall rule present",
		}, nil
	}

	rule := outbound.FirewallRule{IP: target, Reason: justification, BlockedAt: time.Now().UTC()}
	if err := f.state.AddFirewallRule(ctx, rule); err != nil {
		return errorResult(model.ActionBlockIP, target, err), err
	}
	f.logger.Info("firewall rule added", slog.String("ip", target))
	return model.ActionResult{
		Type:    model.ActionBlockIP,
		Target:  target,
		Outcome: model.OutcomeSuccess,
	}, nil
}

func errorResult(t model.ActionType, target string, err error) model.ActionResult {
	return model.ActionResult{
		Type:    t,
		Target:  target,
		Outcome: model.OutcomeError,
		Detail:  fmt.Sprintf("%v", err),
	}
}
