package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "rules" {
		t.Errorf("LLM.Provider = %q, want rules", cfg.LLM.Provider)
	}
	if cfg.Pipeline.MaxConcurrent != 4 {
		t.Errorf("Pipeline.MaxConcurrent = %d, want 4", cfg.Pipeline.MaxConcurrent)
	}
	if cfg.Pipeline.Approval.Timeout != 15*time.Minute {
		t.Errorf("Approval.Timeout = %v, want 15m", cfg.Pipeline.Approval.Timeout)
	}
	if cfg.Database.SQLite.PragmaJournalMode != "wal" {
		t.Errorf("PragmaJournalMode = %q, want wal", cfg.Database.SQLite.PragmaJournalMode)
	}

	if err := Validate(cfg); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_OverridesAndKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
llm:
  provider: ollama
  ollama:
    model: mistral:7b
pipeline:
  approval:
    timeout: 5m
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("LLM.Provider = %q, want ollama", cfg.LLM.Provider)
	}
	if cfg.LLM.Ollama.Model != "mistral:7b" {
		t.Errorf("Ollama.Model = %q, want mistral:7b", cfg.LLM.Ollama.Model)
	}
	if cfg.Pipeline.Approval.Timeout != 5*time.Minute {
		t.Errorf("Approval.Timeout = %v, want 5m", cfg.Pipeline.Approval.Timeout)
	}
	// Untouched keys keep their defaults.
	if cfg.LLM.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q, want default", cfg.LLM.Ollama.BaseURL)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want default 30s", cfg.Server.ReadTimeout)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_ABUSE_KEY", "secret-key-123")
	path := writeConfig(t, `
intel:
  abuseipdb:
    apiKey: ${TEST_ABUSE_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Intel.AbuseIPDB.APIKey != "secret-key-123" {
		t.Errorf("APIKey = %q, want expanded env value", cfg.Intel.AbuseIPDB.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.Server.Port = 0 },
			want:   "server.port",
		},
		{
			name:   "unknown provider",
			mutate: func(c *Config) { c.LLM.Provider = "gpt" },
			want:   "llm.provider",
		},
		{
			name:   "claude without key",
			mutate: func(c *Config) { c.LLM.Provider = "claude" },
			want:   "llm.claude.apiKey",
		},
		{
			name:   "zero approval timeout",
			mutate: func(c *Config) { c.Pipeline.Approval.Timeout = 0 },
			want:   "pipeline.approval.timeout",
		},
		{
			name: "scanner enabled without dir",
			mutate: func(c *Config) {
				c.Scanner.Enabled = true
				c.Scanner.Dir = ""
			},
			want: "scanner.dir",
		},
		{
			name:   "slack enabled without token",
			mutate: func(c *Config) { c.Slack.Enabled = true },
			want:   "slack.botToken",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestValidate_AutoApproveSkipsGateChecks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.Approval.AutoApprove = true
	cfg.Pipeline.Approval.Timeout = 0
	cfg.Pipeline.Approval.PollInterval = 0

	if err := Validate(cfg); err != nil {
		t.Errorf("Validate: %v", err)
	}
}
