// Package intel provides IP, hash, and URL reputation lookups. Each
// checker supports a live HTTP mode and a deterministic offline mode
// seeded with well-known malicious indicators, so the pipeline behaves
// identically in tests and in demos without API keys.
package intel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
)

const abuseIPDBBaseURL = "https://api.abuseipdb.com/api/v2"

// AbuseIPDBClient checks IP reputation against AbuseIPDB. With an empty
// API key it falls back to the deterministic seed table.
type AbuseIPDBClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// knownBadIPs maps seeded malicious IPs to their abuse confidence score.
var knownBadIPs = map[string]int{
	"185.220.101.47": 98,
	"194.165.16.11":  87,
	"45.142.212.100": 76,
	"103.21.244.0":   65,
}

func NewAbuseIPDBClient(apiKey string, timeout time.Duration) *AbuseIPDBClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &AbuseIPDBClient{
		apiKey:     apiKey,
		baseURL:    abuseIPDBBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type abuseCheckResponse struct {
	Data struct {
		AbuseConfidenceScore int    `json:"abuseConfidenceScore"`
		CountryCode          string `json:"countryCode"`
		ISP                  string `json:"isp"`
		TotalReports         int    `json:"totalReports"`
	} `json:"data"`
}

func (c *AbuseIPDBClient) Check(ctx context.Context, ip string) (model.Investigation, error) {
	if c.apiKey == "" {
		return c.checkOffline(ip), nil
	}

	u := fmt.Sprintf("%s/check?ipAddress=%s&maxAgeInDays=90", c.baseURL, url.QueryEscape(ip))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return model.Investigation{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Key", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return model.Investigation{}, fmt.Errorf("abuseipdb request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Investigation{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return model.Investigation{}, fmt.Errorf("abuseipdb returned %d: %s", resp.StatusCode, string(body))
	}

	var out abuseCheckResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return model.Investigation{}, fmt.Errorf("unmarshal response: %w", err)
	}

	return model.Investigation{
		Indicator: ip,
		Type:      model.IndicatorIP,
		Source:    "abuseipdb",
		Malicious: out.Data.AbuseConfidenceScore > 25,
		Detail: fmt.Sprintf("confidence=%d reports=%d country=%s isp=%s",
			out.Data.AbuseConfidenceScore, out.Data.TotalReports,
			out.Data.CountryCode, out.Data.ISP),
	}, nil
}

func (c *AbuseIPDBClient) checkOffline(ip string) model.Investigation {
	if score, ok := knownBadIPs[ip]; ok {
		return model.Investigation{
			Indicator: ip,
			Type:      model.IndicatorIP,
			Source:    "abuseipdb",
			Malicious: true,
			Detail:    fmt.Sprintf("confidence=%d (seeded)", score),
		}
	}
	return model.Investigation{
		Indicator: ip,
		Type:      model.IndicatorIP,
		Source:    "abuseipdb",
		Malicious: false,
		Detail:    "confidence=0 (seeded)",
	}
}
