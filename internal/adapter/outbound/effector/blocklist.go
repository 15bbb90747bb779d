package effector

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Blocklist blocks file hashes endpoint-wide.
type Blocklist struct {
	state  outbound.SysStateRepository
	logger *slog.Logger
}

func NewBlocklist(state outbound.SysStateRepository, logger *slog.Logger) *Blocklist {
	return &Blocklist{state: state, logger: logger}
}

var _ outbound.Effector = (*Blocklist)(nil)

func (b *Blocklist) ActionType() model.ActionType { return model.ActionBlockHash }

func (b *Blocklist) Apply(ctx context.Context, target, justification string) (model.ActionResult, error) {
	exists, err := b.state.BlockedHashExists(ctx, target)
	if err != nil {
		return errorResult(model.ActionBlockHash, target, err), err
	}
	if exists {
		return model.ActionResult{
			Type:    model.ActionBlockHash,
			Target:  target,
			Outcome: model.OutcomeAlreadyApplied,
			Detail:  "hash already on blocklist",
		}, nil
	}

	entry := outbound.BlockedHash{Hash: target, ThreatName: justification, BlockedAt: time.Now().UTC()}
	if err := b.state.AddBlockedHash(ctx, entry); err != nil {
		return errorResult(model.ActionBlockHash, target, err), err
	}
	b.logger.Info("hash blocked", slog.String("hash", target))
	return model.ActionResult{
		Type:    model.ActionBlockHash,
		Target:  target,
		Outcome: model.OutcomeSuccess,
	}, nil
}
