package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// SysStateRepo persists effector side effects: firewall deny rules, the
// endpoint hash blocklist, disabled accounts, quarantined hosts, and the
// alert log. Existence checks back the dispatch idempotency contract.
type SysStateRepo struct {
	db *sql.DB
}

func NewSysStateRepo(store *Store) *SysStateRepo {
	return &SysStateRepo{db: store.DB}
}

var _ outbound.SysStateRepository = (*SysStateRepo)(nil)

// --- firewall ---

func (r *SysStateRepo) FirewallRuleExists(ctx context.Context, ip string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM firewall_rules WHERE ip = ?`, ip)
}

func (r *SysStateRepo) AddFirewallRule(ctx context.Context, rule outbound.FirewallRule) error {
	const q = `INSERT INTO firewall_rules (ip, reason, blocked_at) VALUES (?,?,?)
		ON CONFLICT(ip) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, rule.IP, rule.Reason, rule.BlockedAt.UTC()); err != nil {
		return fmt.Errorf("adding firewall rule: %w", err)
	}
	return nil
}

func (r *SysStateRepo) ListFirewallRules(ctx context.Context) ([]outbound.FirewallRule, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT ip, reason, blocked_at FROM firewall_rules ORDER BY blocked_at`)
	if err != nil {
		return nil, fmt.Errorf("listing firewall rules: %w", err)
	}
	defer rows.Close()

	var out []outbound.FirewallRule
	for rows.Next() {
		var rule outbound.FirewallRule
		if err := rows.Scan(&rule.IP, &rule.Reason, &rule.BlockedAt); err != nil {
			return nil, fmt.Errorf("scanning firewall rule: %w", err)
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// --- hash blocklist ---

func (r *SysStateRepo) BlockedHashExists(ctx context.Context, hash string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM blocked_hashes WHERE hash = ?`, hash)
}

func (r *SysStateRepo) AddBlockedHash(ctx context.Context, entry outbound.BlockedHash) error {
	const q = `INSERT INTO blocked_hashes (hash, threat_name, blocked_at) VALUES (?,?,?)
		ON CONFLICT(hash) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, entry.Hash, entry.ThreatName, entry.BlockedAt.UTC()); err != nil {
		return fmt.Errorf("adding blocked hash: %w", err)
	}
	return nil
}

func (r *SysStateRepo) ListBlockedHashes(ctx context.Context) ([]outbound.BlockedHash, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT hash, threat_name, blocked_at FROM blocked_hashes ORDER BY blocked_at`)
	if err != nil {
		return nil, fmt.Errorf("listing blocked hashes: %w", err)
	}
	defer rows.Close()

	var out []outbound.BlockedHash
	for rows.Next() {
		var entry outbound.BlockedHash
		if err := rows.Scan(&entry.Hash, &entry.ThreatName, &entry.BlockedAt); err != nil {
			return nil, fmt.Errorf("scanning blocked hash: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// --- directory ---

func (r *SysStateRepo) UserDisabled(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM disabled_users WHERE username = ?`, username)
}

func (r *SysStateRepo) DisableUser(ctx context.Context, entry outbound.DisabledUser) error {
	const q = `INSERT INTO disabled_users (username, reason, disabled_at) VALUES (?,?,?)
		ON CONFLICT(username) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, entry.Username, entry.Reason, entry.DisabledAt.UTC()); err != nil {
		return fmt.Errorf("disabling user: %w", err)
	}
	return nil
}

func (r *SysStateRepo) ListDisabledUsers(ctx context.Context) ([]outbound.DisabledUser, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT username, reason, disabled_at FROM disabled_users ORDER BY disabled_at`)
	if err != nil {
		return nil, fmt.Errorf("listing disabled users: %w", err)
	}
	defer rows.Close()

	var out []outbound.DisabledUser
	for rows.Next() {
		var entry outbound.DisabledUser
		if err := rows.Scan(&entry.Username, &entry.Reason, &entry.DisabledAt); err != nil {
			return nil, fmt.Errorf("scanning disabled user: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// --- isolation ---

func (r *SysStateRepo) HostIsolated(ctx context.Context, hostname string) (bool, error) {
	return r.exists(ctx, `SELECT COUNT(*) FROM isolated_hosts WHERE hostname = ?`, hostname)
}

func (r *SysStateRepo) IsolateHost(ctx context.Context, entry outbound.IsolatedHost) error {
	const q = `INSERT INTO isolated_hosts (hostname, reason, vlan, isolated_at) VALUES (?,?,?,?)
		ON CONFLICT(hostname) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, q, entry.Hostname, entry.Reason, entry.VLAN, entry.IsolatedAt.UTC()); err != nil {
		return fmt.Errorf("isolating host: %w", err)
	}
	return nil
}

func (r *SysStateRepo) ListIsolatedHosts(ctx context.Context) ([]outbound.IsolatedHost, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT hostname, reason, vlan, isolated_at FROM isolated_hosts ORDER BY isolated_at`)
	if err != nil {
		return nil, fmt.Errorf("listing isolated hosts: %w", err)
	}
	defer rows.Close()

	var out []outbound.IsolatedHost
	for rows.Next() {
		var entry outbound.IsolatedHost
		if err := rows.Scan(&entry.Hostname, &entry.Reason, &entry.VLAN, &entry.IsolatedAt); err != nil {
			return nil, fmt.Errorf("scanning isolated host: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// --- alert log ---

func (r *SysStateRepo) AppendAlert(ctx context.Context, entry outbound.AlertEntry) error {
	indicators, err := json.Marshal(entry.Indicators)
	if err != nil {
		return fmt.Errorf("marshaling alert indicators: %w", err)
	}
	const q = `INSERT INTO alert_log (id, severity, title, description, indicators, created_at)
		VALUES (?,?,?,?,?,?)`
	if _, err := r.db.ExecContext(ctx, q,
		entry.ID, entry.Severity, entry.Title, entry.Description, string(indicators), entry.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("appending alert: %w", err)
	}
	return nil
}

func (r *SysStateRepo) ListAlerts(ctx context.Context) ([]outbound.AlertEntry, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, severity, title, description, indicators, created_at FROM alert_log ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var out []outbound.AlertEntry
	for rows.Next() {
		var entry outbound.AlertEntry
		var indicators string
		if err := rows.Scan(&entry.ID, &entry.Severity, &entry.Title, &entry.Description, &indicators, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		if err := json.Unmarshal([]byte(indicators), &entry.Indicators); err != nil {
			entry.Indicators = []string{}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

func (r *SysStateRepo) exists(ctx context.Context, query string, arg any) (bool, error) {
	var count int
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&count); err != nil {
		return false, fmt.Errorf("existence query: %w", err)
	}
	return count > 0, nil
}
