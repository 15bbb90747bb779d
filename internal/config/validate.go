package config

import (
	"fmt"
	"strings"
)

// Validate checks the config for errors.
func Validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	validProviders := map[string]bool{"claude": true, "ollama": true, "rules": true}
	if !validProviders[cfg.LLM.Provider] {
		errs = append(errs, fmt.Sprintf("llm.provider must be one of: claude, ollama, rules (got %q)", cfg.LLM.Provider))
	}

	if cfg.LLM.Provider == "claude" && cfg.LLM.Claude.APIKey == "" {
		errs = append(errs, "llm.claude.apiKey is required when provider is claude")
	}

	if cfg.LLM.Provider == "ollama" && cfg.LLM.Ollama.BaseURL == "" {
		errs = append(errs, "llm.ollama.baseURL is required when provider is ollama")
	}

	if cfg.Pipeline.MaxConcurrent <= 0 {
		errs = append(errs, "pipeline.maxConcurrent must be positive")
	}

	if !cfg.Pipeline.Approval.AutoApprove {
		if cfg.Pipeline.Approval.Timeout <= 0 {
			errs = append(errs, "pipeline.approval.timeout must be positive")
		}
		if cfg.Pipeline.Approval.PollInterval <= 0 {
			errs = append(errs, "pipeline.approval.pollInterval must be positive")
		}
	}

	if cfg.Scanner.Enabled && cfg.Scanner.Dir == "" {
		errs = append(errs, "scanner.dir is required when scanner is enabled")
	}

	if cfg.Database.SQLite.Path == "" {
		errs = append(errs, "database.sqlite.path is required")
	}

	if cfg.Slack.Enabled && cfg.Slack.BotToken == "" {
		errs = append(errs, "slack.botToken is required when slack is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
