package notification

import (
	"context"
	"log/slog"

	"github.com/jonny/guardian/internal/domain/model"
)

// NoopNotifier is a no-op notifier that logs notifications instead of
// sending them. Used in local development when Slack is not configured.
type NoopNotifier struct {
	logger *slog.Logger
}

// NewNoopNotifier creates a new NoopNotifier.
func NewNoopNotifier(logger *slog.Logger) *NoopNotifier {
	return &NoopNotifier{logger: logger}
}

func (n *NoopNotifier) NotifyCreated(_ context.Context, incident model.Incident) error {
	n.logger.Info("noop: incident created",
		"incidentID", incident.ID,
		"source", incident.Source,
	)
	return nil
}

func (n *NoopNotifier) NotifyApprovalNeeded(_ context.Context, incident model.Incident) error {
	n.logger.Info("noop: approval needed",
		"incidentID", incident.ID,
		"riskScore", incident.RiskScore,
		"actions", len(incident.Actions),
	)
	return nil
}

func (n *NoopNotifier) NotifyComplete(_ context.Context, incident model.Incident) error {
	n.logger.Info("noop: incident complete",
		"incidentID", incident.ID,
		"status", string(incident.Status),
		"executedActions", len(incident.ExecutedActions),
	)
	return nil
}
