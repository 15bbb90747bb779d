// Package ollama implements the decision-provider capability against a
// local Ollama server.
package ollama

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

// Config holds configuration for the Ollama client.
type Config struct {
	BaseURL     string
	Model       string
	Timeout     time.Duration
	Temperature float64
}

// Client implements outbound.DecisionProvider using the Ollama chat API.
type Client struct {
	config     Config
	httpClient *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &Client{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

var _ outbound.DecisionProvider = (*Client)(nil)

// --- Ollama API types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  chatOptions   `json:"options,omitempty"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (c *Client) Analyze(ctx context.Context, rawLog string) (outbound.AnalysisResult, error) {
	raw, err := c.doChat(ctx, prompt.AnalyzerSystem, prompt.BuildAnalyze(rawLog))
	if err != nil {
		return outbound.AnalysisResult{}, err
	}
	var wire prompt.AnalysisWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapAnalysis(wire), nil
}

func (c *Client) Investigate(ctx context.Context, req outbound.InvestigateRequest) (outbound.InvestigateResult, error) {
	raw, err := c.doChat(ctx, prompt.InvestigatorSystem, prompt.BuildInvestigate(req))
	if err != nil {
		return outbound.InvestigateResult{}, err
	}
	var wire prompt.InvestigateWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapInvestigate(wire, req.RiskScore), nil
}

func (c *Client) Plan(ctx context.Context, req outbound.PlanRequest) (outbound.PlanResult, error) {
	raw, err := c.doChat(ctx, prompt.MitigatorSystem, prompt.BuildPlan(req))
	if err != nil {
		return outbound.PlanResult{}, err
	}
	var wire prompt.PlanWire
	prompt.ParseJSON(raw, &wire)
	return prompt.MapPlan(wire), nil
}

// HealthCheck performs GET /api/tags to verify Ollama is reachable and the
// configured model is pulled.
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("decode tags: %w", err)
	}
	for _, m := range tags.Models {
		if m.Name == c.config.Model {
			return nil
		}
	}
	return fmt.Errorf("model %q not available", c.config.Model)
}

func (c *Client) doChat(ctx context.Context, system, user string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream:  false,
		Options: chatOptions{Temperature: c.config.Temperature},
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.config.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama error %d: %s", resp.StatusCode, string(respBody))
	}

	var out chatResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return out.Message.Content, nil
}
