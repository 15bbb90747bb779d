// Package slack posts incident lifecycle notifications to a Slack channel.
package slack

import (
	"context"
	"fmt"
	"strings"

	slackapi "github.com/slack-go/slack"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// Config holds Slack notifier configuration.
type Config struct {
	BotToken       string
	DefaultChannel string
	Channels       map[string]string // env -> channel ID
	Environment    string
}

// Notifier implements outbound.Notifier via the Slack API.
type Notifier struct {
	client *slackapi.Client
	config Config
}

// NewNotifier creates a new Slack Notifier.
func NewNotifier(cfg Config) *Notifier {
	return &Notifier{
		client: slackapi.New(cfg.BotToken),
		config: cfg,
	}
}

var _ outbound.Notifier = (*Notifier)(nil)

// channelFor returns the channel to post to for a given environment.
func (n *Notifier) channelFor(env string) string {
	if ch, ok := n.config.Channels[env]; ok {
		return ch
	}
	return n.config.DefaultChannel
}

// NotifyCreated posts a short card when a new incident enters the pipeline.
func (n *Notifier) NotifyCreated(ctx context.Context, incident model.Incident) error {
	blocks := []slackapi.Block{
		slackapi.NewHeaderBlock(
			slackapi.NewTextBlockObject(slackapi.PlainTextType,
				fmt.Sprintf("New incident %s", incident.ID), false, false),
		),
		slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType,
				fmt.Sprintf("*Source:* %s\n```%s```", incident.Source, truncate(incident.RawLog, 500)),
				false, false),
			nil, nil,
		),
	}

	channel := n.channelFor(n.config.Environment)
	_, _, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionText(fmt.Sprintf("New incident %s", incident.ID), false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyCreated: %w", err)
	}
	return nil
}

// NotifyApprovalNeeded posts an approval card with risk context and the
// planned actions.
func (n *Notifier) NotifyApprovalNeeded(ctx context.Context, incident model.Incident) error {
	var lines []string
	lines = append(lines, fmt.Sprintf(":rotating_light: *Risk %d/10* (%s confidence)",
		incident.RiskScore, incident.Confidence))
	lines = append(lines, incident.ThreatSummary)
	for _, a := range incident.Actions {
		lines = append(lines, fmt.Sprintf("• `%s` on `%s` (%s)", a.Type, a.Target, a.Urgency))
	}
	lines = append(lines, fmt.Sprintf("Approve or deny via `POST /api/incidents/%s/approve|deny`", incident.ID))

	blocks := []slackapi.Block{
		slackapi.NewHeaderBlock(
			slackapi.NewTextBlockObject(slackapi.PlainTextType,
				fmt.Sprintf("Approval required: %s", incident.ID), false, false),
		),
		slackapi.NewSectionBlock(
			slackapi.NewTextBlockObject(slackapi.MarkdownType, strings.Join(lines, "\n"), false, false),
			nil, nil,
		),
	}

	channel := n.channelFor(n.config.Environment)
	_, _, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(blocks...),
		slackapi.MsgOptionText("Incident approval required", false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyApprovalNeeded: %w", err)
	}
	return nil
}

// NotifyComplete posts the final outcome with executed actions.
func (n *Notifier) NotifyComplete(ctx context.Context, incident model.Incident) error {
	emoji := ":large_green_circle:"
	if incident.Status == model.StatusError {
		emoji = ":red_circle:"
	}
	lines := []string{
		fmt.Sprintf("%s *%s* finished with status `%s` (risk %d)", emoji, incident.ID, incident.Status, incident.RiskScore),
	}
	for _, r := range incident.ExecutedActions {
		lines = append(lines, "• "+r.String())
	}

	block := slackapi.NewSectionBlock(
		slackapi.NewTextBlockObject(slackapi.MarkdownType, strings.Join(lines, "\n"), false, false),
		nil, nil,
	)

	channel := n.channelFor(n.config.Environment)
	_, _, err := n.client.PostMessageContext(ctx, channel,
		slackapi.MsgOptionBlocks(block),
		slackapi.MsgOptionText(fmt.Sprintf("Incident %s complete", incident.ID), false),
	)
	if err != nil {
		return fmt.Errorf("slack NotifyComplete: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
