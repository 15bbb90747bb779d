package outbound

import (
	"context"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
)

// Effector applies one kind of mitigation action against an external
// system. Apply is idempotent per target: re-applying reports
// OutcomeAlreadyApplied instead of repeating the side effect.
type Effector interface {
	ActionType() model.ActionType
	Apply(ctx context.Context, target, justification string) (model.ActionResult, error)
}

// FirewallRule is one deny-list entry.
type FirewallRule struct {
	IP        string    `json:"ip"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
}

type BlockedHash struct {
	Hash       string    `json:"hash"`
	ThreatName string    `json:"threat_name"`
	BlockedAt  time.Time `json:"blocked_at"`
}

type DisabledUser struct {
	Username   string    `json:"username"`
	Reason     string    `json:"reason"`
	DisabledAt time.Time `json:"disabled_at"`
}

type IsolatedHost struct {
	Hostname   string    `json:"hostname"`
	Reason     string    `json:"reason"`
	VLAN       string    `json:"vlan"`
	IsolatedAt time.Time `json:"isolated_at"`
}

type AlertEntry struct {
	ID          string    `json:"id"`
	Severity    string    `json:"severity"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Indicators  []string  `json:"indicators"`
	CreatedAt   time.Time `json:"created_at"`
}

// SysStateRepository persists effector side effects. Existence checks back
// the idempotency contract; List methods feed the state snapshot endpoint.
type SysStateRepository interface {
	FirewallRuleExists(ctx context.Context, ip string) (bool, error)
	AddFirewallRule(ctx context.Context, rule FirewallRule) error
	ListFirewallRules(ctx context.Context) ([]FirewallRule, error)

	BlockedHashExists(ctx context.Context, hash string) (bool, error)
	AddBlockedHash(ctx context.Context, entry BlockedHash) error
	ListBlockedHashes(ctx context.Context) ([]BlockedHash, error)

	UserDisabled(ctx context.Context, username string) (bool, error)
	DisableUser(ctx context.Context, entry DisabledUser) error
	ListDisabledUsers(ctx context.Context) ([]DisabledUser, error)

	HostIsolated(ctx context.Context, hostname string) (bool, error)
	IsolateHost(ctx context.Context, entry IsolatedHost) error
	ListIsolatedHosts(ctx context.Context) ([]IsolatedHost, error)

	AppendAlert(ctx context.Context, entry AlertEntry) error
	ListAlerts(ctx context.Context) ([]AlertEntry, error)
}
