package effector_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/jonny/guardian/internal/adapter/outbound/effector"
	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// memState is an in-memory SysStateRepository for effector tests.
type memState struct {
	firewall map[string]outbound.FirewallRule
	hashes   map[string]outbound.BlockedHash
	users    map[string]outbound.DisabledUser
	hosts    map[string]outbound.IsolatedHost
	alerts   []outbound.AlertEntry
	failWith error
}

var _ outbound.SysStateRepository = (*memState)(nil)

func newMemState() *memState {
	return &memState{
		firewall: make(map[string]outbound.FirewallRule),
		hashes:   make(map[string]outbound.BlockedHash),
		users:    make(map[string]outbound.DisabledUser),
		hosts:    make(map[string]outbound.IsolatedHost),
	}
}

func (m *memState) FirewallRuleExists(_ context.Context, ip string) (bool, error) {
	if m.failWith != nil {
		return false, m.failWith
	}
	_, ok := m.firewall[ip]
	return ok, nil
}

func (m *memState) AddFirewallRule(_ context.Context, rule outbound.FirewallRule) error {
	if m.failWith != nil {
		return m.failWith
	}
	m.firewall[rule.IP] = rule
	return nil
}

func (m *memState) ListFirewallRules(_ context.Context) ([]outbound.FirewallRule, error) {
	return nil, nil
}

func (m *memState) BlockedHashExists(_ context.Context, hash string) (bool, error) {
	_, ok := m.hashes[hash]
	return ok, nil
}

func (m *memState) AddBlockedHash(_ context.Context, entry outbound.BlockedHash) error {
	m.hashes[entry.Hash] = entry
	return nil
}

func (m *memState) ListBlockedHashes(_ context.Context) ([]outbound.BlockedHash, error) {
	return nil, nil
}

func (m *memState) UserDisabled(_ context.Context, username string) (bool, error) {
	_, ok := m.users[username]
	return ok, nil
}

func (m *memState) DisableUser(_ context.Context, entry outbound.DisabledUser) error {
	m.users[entry.Username] = entry
	return nil
}

func (m *memState) ListDisabledUsers(_ context.Context) ([]outbound.DisabledUser, error) {
	return nil, nil
}

func (m *memState) HostIsolated(_ context.Context, hostname string) (bool, error) {
	_, ok := m.hosts[hostname]
	return ok, nil
}

func (m *memState) IsolateHost(_ context.Context, entry outbound.IsolatedHost) error {
	m.hosts[entry.Hostname] = entry
	return nil
}

func (m *memState) ListIsolatedHosts(_ context.Context) ([]outbound.IsolatedHost, error) {
	return nil, nil
}

func (m *memState) AppendAlert(_ context.Context, entry outbound.AlertEntry) error {
	m.alerts = append(m.alerts, entry)
	return nil
}

func (m *memState) ListAlerts(_ context.Context) ([]outbound.AlertEntry, error) {
	return m.alerts, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFirewall_ApplyThenAlreadyApplied(t *testing.T) {
	state := newMemState()
	fw := effector.NewFirewall(state, testLogger())

	first, err := fw.Apply(context.Background(), "185.220.101.47", "flagged malicious")
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if first.Outcome != model.OutcomeSuccess {
		t.Errorf("first Outcome = %s, want success", first.Outcome)
	}

	second, err := fw.Apply(context.Background(), "185.220.101.47", "flagged malicious")
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if second.Outcome != model.OutcomeAlreadyApplied {
		t.Errorf("second Outcome = %s, want already_applied", second.Outcome)
	}

	rule, ok := state.firewall["185.220.101.47"]
	if !ok {
		t.Fatal("rule not recorded")
	}
	if rule.Reason != "flagged malicious" {
		t.Errorf("Reason = %q", rule.Reason)
	}
}

func TestFirewall_StateErrorReturnsErrorResult(t *testing.T) {
	state := newMemState()
	state.failWith = errors.New("db locked")
	fw := effector.NewFirewall(state, testLogger())

	res, err := fw.Apply(context.Background(), "1.2.3.4", "test")
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Outcome != model.OutcomeError {
		t.Errorf("Outcome = %s, want error", res.Outcome)
	}
}

func TestBlocklist_Idempotent(t *testing.T) {
	state := newMemState()
	bl := effector.NewBlocklist(state, testLogger())

	hash := "44d88612fea8a8f36de82e1278abb02f"
	first, err := bl.Apply(context.Background(), hash, "known family")
	if err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	second, err := bl.Apply(context.Background(), hash, "known family")
	if err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	if first.Outcome != model.OutcomeSuccess || second.Outcome != model.OutcomeAlreadyApplied {
		t.Errorf("outcomes = %s, %s", first.Outcome, second.Outcome)
	}
}

func TestDirectory_DisableUser(t *testing.T) {
	state := newMemState()
	dir := effector.NewDirectory(state, testLogger())

	res, err := dir.Apply(context.Background(), "svc-backup", "credential abuse")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", res.Outcome)
	}
	if _, ok := state.users["svc-backup"]; !ok {
		t.Error("user not recorded as disabled")
	}
}

func TestIsolation_AssignsQuarantineVLAN(t *testing.T) {
	state := newMemState()
	iso := effector.NewIsolation(state, testLogger())

	res, err := iso.Apply(context.Background(), "ws-0142", "beaconing to c2")
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if res.Outcome != model.OutcomeSuccess {
		t.Errorf("Outcome = %s, want success", res.Outcome)
	}
	host, ok := state.hosts["ws-0142"]
	if !ok {
		t.Fatal("host not recorded")
	}
	if host.VLAN != "QUARANTINE-999" {
		t.Errorf("VLAN = %q, want QUARANTINE-999", host.VLAN)
	}
}

func TestAlert_AlwaysAppends(t *testing.T) {
	state := newMemState()
	al := effector.NewAlert(state, testLogger())

	for i := 0; i < 2; i++ {
		res, err := al.Apply(context.Background(), "soc-channel", "elevated risk")
		if err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
		if res.Outcome != model.OutcomeSuccess {
			t.Errorf("Apply %d Outcome = %s, want success", i, res.Outcome)
		}
	}
	if len(state.alerts) != 2 {
		t.Errorf("got %d alerts, want 2", len(state.alerts))
	}
}
