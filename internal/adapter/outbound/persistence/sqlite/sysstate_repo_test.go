package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonny/guardian/internal/adapter/outbound/persistence/sqlite"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

func TestSysStateRepo_FirewallRules(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSysStateRepo(store)
	ctx := context.Background()

	exists, err := repo.FirewallRuleExists(ctx, "185.220.101.47")
	if err != nil {
		t.Fatalf("FirewallRuleExists: %v", err)
	}
	if exists {
		t.Fatal("rule exists before insert")
	}

	rule := outbound.FirewallRule{IP: "185.220.101.47", Reason: "tor exit", BlockedAt: time.Now().UTC()}
	if err := repo.AddFirewallRule(ctx, rule); err != nil {
		t.Fatalf("AddFirewallRule: %v", err)
	}
	// Re-adding the same IP is a silent no-op.
	if err := repo.AddFirewallRule(ctx, rule); err != nil {
		t.Fatalf("second AddFirewallRule: %v", err)
	}

	exists, err = repo.FirewallRuleExists(ctx, "185.220.101.47")
	if err != nil {
		t.Fatalf("FirewallRuleExists: %v", err)
	}
	if !exists {
		t.Error("rule missing after insert")
	}

	rules, err := repo.ListFirewallRules(ctx)
	if err != nil {
		t.Fatalf("ListFirewallRules: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	if rules[0].Reason != "tor exit" {
		t.Errorf("Reason = %q", rules[0].Reason)
	}
}

func TestSysStateRepo_IsolatedHosts(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSysStateRepo(store)
	ctx := context.Background()

	entry := outbound.IsolatedHost{
		Hostname:   "web-01",
		Reason:     "beaconing",
		VLAN:       "QUARANTINE-999",
		IsolatedAt: time.Now().UTC(),
	}
	if err := repo.IsolateHost(ctx, entry); err != nil {
		t.Fatalf("IsolateHost: %v", err)
	}

	isolated, err := repo.HostIsolated(ctx, "web-01")
	if err != nil {
		t.Fatalf("HostIsolated: %v", err)
	}
	if !isolated {
		t.Error("host not recorded as isolated")
	}

	hosts, err := repo.ListIsolatedHosts(ctx)
	if err != nil {
		t.Fatalf("ListIsolatedHosts: %v", err)
	}
	if len(hosts) != 1 || hosts[0].VLAN != "QUARANTINE-999" {
		t.Errorf("hosts = %+v", hosts)
	}
}

func TestSysStateRepo_AlertLog(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSysStateRepo(store)
	ctx := context.Background()

	for i, id := range []string{"alert-1", "alert-2"} {
		entry := outbound.AlertEntry{
			ID:          id,
			Severity:    "high",
			Title:       "blocked by operator",
			Description: "operator denied execution",
			Indicators:  []string{"185.220.101.47"},
			CreatedAt:   time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := repo.AppendAlert(ctx, entry); err != nil {
			t.Fatalf("AppendAlert: %v", err)
		}
	}

	alerts, err := repo.ListAlerts(ctx)
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(alerts) != 2 {
		t.Fatalf("got %d alerts, want 2", len(alerts))
	}
	if alerts[0].ID != "alert-1" {
		t.Errorf("alerts not in append order: first = %s", alerts[0].ID)
	}
	if len(alerts[0].Indicators) != 1 || alerts[0].Indicators[0] != "185.220.101.47" {
		t.Errorf("Indicators = %v", alerts[0].Indicators)
	}
}

func TestSysStateRepo_DisabledUsers(t *testing.T) {
	store := newTestStore(t)
	repo := sqlite.NewSysStateRepo(store)
	ctx := context.Background()

	disabled, err := repo.UserDisabled(ctx, "svc-backup")
	if err != nil {
		t.Fatalf("UserDisabled: %v", err)
	}
	if disabled {
		t.Fatal("user disabled before insert")
	}

	entry := outbound.DisabledUser{Username: "svc-backup", Reason: "credential theft", DisabledAt: time.Now().UTC()}
	if err := repo.DisableUser(ctx, entry); err != nil {
		t.Fatalf("DisableUser: %v", err)
	}

	disabled, err = repo.UserDisabled(ctx, "svc-backup")
	if err != nil {
		t.Fatalf("UserDisabled: %v", err)
	}
	if !disabled {
		t.Error("user not recorded as disabled")
	}
}
