package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	LLM      LLMConfig      `yaml:"llm"`
	Intel    IntelConfig    `yaml:"intel"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Slack    SlackConfig    `yaml:"slack"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port              int           `yaml:"port"`
	ReadTimeout       time.Duration `yaml:"readTimeout"`
	WriteTimeout      time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
	RequestsPerMinute int           `yaml:"requestsPerMinute"`
}

type LLMConfig struct {
	Provider string       `yaml:"provider"`
	Claude   ClaudeConfig `yaml:"claude"`
	Ollama   OllamaConfig `yaml:"ollama"`
}

type ClaudeConfig struct {
	APIKey    string        `yaml:"apiKey"`
	Model     string        `yaml:"model"`
	MaxTokens int           `yaml:"maxTokens"`
	Timeout   time.Duration `yaml:"timeout"`
}

type OllamaConfig struct {
	BaseURL     string        `yaml:"baseURL"`
	Model       string        `yaml:"model"`
	Timeout     time.Duration `yaml:"timeout"`
	Temperature float64       `yaml:"temperature"`
}

type IntelConfig struct {
	AbuseIPDB  IntelSourceConfig `yaml:"abuseipdb"`
	VirusTotal IntelSourceConfig `yaml:"virustotal"`
}

// IntelSourceConfig configures one reputation source. An empty API key
// switches the source to its deterministic offline mode.
type IntelSourceConfig struct {
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

type PipelineConfig struct {
	MaxConcurrent int64          `yaml:"maxConcurrent"`
	Approval      ApprovalConfig `yaml:"approval"`
}

type ApprovalConfig struct {
	AutoApprove  bool          `yaml:"autoApprove"`
	Timeout      time.Duration `yaml:"timeout"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

type ScannerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
}

type SlackConfig struct {
	Enabled        bool              `yaml:"enabled"`
	BotToken       string            `yaml:"botToken"`
	DefaultChannel string            `yaml:"defaultChannel"`
	Channels       map[string]string `yaml:"channels"`
	Environment    string            `yaml:"environment"`
}

type DatabaseConfig struct {
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type SQLiteConfig struct {
	Path              string `yaml:"path"`
	MaxOpenConns      int    `yaml:"maxOpenConns"`
	PragmaJournalMode string `yaml:"pragmaJournalMode"`
	PragmaBusyTimeout int    `yaml:"pragmaBusyTimeout"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads a YAML config file and returns a Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8080,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   15 * time.Second,
			RequestsPerMinute: 240,
		},
		LLM: LLMConfig{
			Provider: "rules",
			Claude: ClaudeConfig{
				Model:     "claude-sonnet-4-5",
				MaxTokens: 2048,
				Timeout:   120 * time.Second,
			},
			Ollama: OllamaConfig{
				BaseURL:     "http://localhost:11434",
				Model:       "llama3:8b",
				Timeout:     120 * time.Second,
				Temperature: 0.1,
			},
		},
		Intel: IntelConfig{
			AbuseIPDB:  IntelSourceConfig{Timeout: 15 * time.Second},
			VirusTotal: IntelSourceConfig{Timeout: 15 * time.Second},
		},
		Pipeline: PipelineConfig{
			MaxConcurrent: 4,
			Approval: ApprovalConfig{
				AutoApprove:  false,
				Timeout:      15 * time.Minute,
				PollInterval: 2 * time.Second,
			},
		},
		Scanner: ScannerConfig{
			Enabled:  false,
			Dir:      "/data/incoming",
			Interval: 30 * time.Second,
		},
		Slack: SlackConfig{
			Enabled:        false,
			DefaultChannel: "#soc-alerts",
			Channels:       map[string]string{"dev": "#soc-alerts-dev", "prod": "#soc-alerts-prod"},
			Environment:    "dev",
		},
		Database: DatabaseConfig{
			SQLite: SQLiteConfig{
				Path:              "/data/guardian.db",
				MaxOpenConns:      1,
				PragmaJournalMode: "wal",
				PragmaBusyTimeout: 5000,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// expandEnvVars replaces ${VAR} patterns with environment variable values.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return "${" + key + "}"
	})
}
