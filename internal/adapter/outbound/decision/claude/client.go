// Package claude implements the decision-provider capability against the
// Claude messages API.
package claude

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonny/guardian/internal/adapter/outbound/decision/prompt"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

const defaultBaseURL = "https://api.anthropic.com"

// Config holds configuration for the Claude client.
type Config struct {
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
	BaseURL   string
}

// Client implements outbound.DecisionProvider via the Claude messages API.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ outbound.DecisionProvider = (*Client)(nil)

// --- Claude API types ---

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type request struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type response struct {
	ID         string         `json:"id"`
	Content    []contentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
}

// Analyze calls the model with the analyzer prompt and parses the result.
// Malformed output maps to a zero-value result, not an error.
func (c *Client) Analyze(ctx context.Context, rawLog string) (outbound.AnalysisResult, error) {
	raw, err := c.send(ctx, prompt.AnalyzerSystem, prompt.BuildAnalyze(rawLog))
	if err != nil {
		return outbound.AnalysisResult{}, err
	}
	var wire prompt.AnalysisWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapAnalysis(wire), nil
}

func (c *Client) Investigate(ctx context.Context, req outbound.InvestigateRequest) (outbound.InvestigateResult, error) {
	raw, err := c.send(ctx, prompt.InvestigatorSystem, prompt.BuildInvestigate(req))
	if err != nil {
		return outbound.InvestigateResult{}, err
	}
	var wire prompt.InvestigateWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapInvestigate(wire, req.RiskScore), nil
}

func (c *Client) Plan(ctx context.Context, req outbound.PlanRequest) (outbound.PlanResult, error) {
	raw, err := c.send(ctx, prompt.MitigatorSystem, prompt.BuildPlan(req))
	if err != nil {
		return outbound.PlanResult{}, err
	}
	var wire prompt.PlanWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapPlan(wire), nil
}

// HealthCheck verifies the API key is present; the messages endpoint has
// no cheap ping, so no request is made.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.config.APIKey == "" {
		return fmt.Errorf("claude api key not configured")
	}
	return nil
}

func (c *Client) send(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(request{
		Model:     c.config.Model,
		MaxTokens: c.config.MaxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.config.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("claude api error %d: %s", resp.StatusCode, string(respBody))
	}

	var out response
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	for _, block := range out.Content {
		if block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", nil
}
