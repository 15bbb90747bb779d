package intel

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
)

const virusTotalBaseURL = "https://www.virustotal.com/api/v3"

// VirusTotalClient checks file hashes and URLs against VirusTotal v3.
// With an empty API key it falls back to the deterministic seed tables.
type VirusTotalClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// knownBadHashes maps seeded malicious hashes to a short family label.
var knownBadHashes = map[string]string{
	"44d88612fea8a8f36de82e1278abb02f":                                 "EICAR-Test-File",
	"e99a18c428cb38d5f260853678922e03":                                 "Mirai",
	"275a021bbfb6489e54d471899f7db9d1663fc695ec2fe2a2c4538aabf651fd0f": "Emotet",
	"5d41402abc4b2a76b9719d911017c592":                                 "AgentTesla",
}

// knownBadURLs are seeded malicious URL substrings.
var knownBadURLs = []string{
	"malware-delivery.example.net",
	"phish-login.example.org",
	"c2-beacon.example.com",
}

func NewVirusTotalClient(apiKey string, timeout time.Duration) *VirusTotalClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &VirusTotalClient{
		apiKey:     apiKey,
		baseURL:    virusTotalBaseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats struct {
				Malicious  int `json:"malicious"`
				Suspicious int `json:"suspicious"`
				Harmless   int `json:"harmless"`
			} `json:"last_analysis_stats"`
			MeaningfulName string `json:"meaningful_name"`
		} `json:"attributes"`
	} `json:"data"`
}

// CheckHash looks up a file hash. A hash is considered malicious when more
// than 5 engines flag it.
func (c *VirusTotalClient) CheckHash(ctx context.Context, hash string) (model.Investigation, error) {
	if c.apiKey == "" {
		return c.hashOffline(hash), nil
	}

	out, err := c.get(ctx, c.baseURL+"/files/"+hash)
	if err != nil {
		return model.Investigation{}, err
	}
	count := out.Data.Attributes.LastAnalysisStats.Malicious
	return model.Investigation{
		Indicator: hash,
		Type:      model.IndicatorHash,
		Source:    "virustotal",
		Malicious: count > 5,
		Detail:    fmt.Sprintf("malicious=%d name=%s", count, out.Data.Attributes.MeaningfulName),
	}, nil
}

// CheckURL looks up a URL. A URL is considered malicious when more than 3
// engines flag it.
func (c *VirusTotalClient) CheckURL(ctx context.Context, rawURL string) (model.Investigation, error) {
	if c.apiKey == "" {
		return c.urlOffline(rawURL), nil
	}

	// VT v3 addresses URLs by url-safe base64 of the URL, unpadded.
	id := strings.TrimRight(base64.URLEncoding.EncodeToString([]byte(rawURL)), "=")
	out, err := c.get(ctx, c.baseURL+"/urls/"+id)
	if err != nil {
		return model.Investigation{}, err
	}
	count := out.Data.Attributes.LastAnalysisStats.Malicious
	return model.Investigation{
		Indicator: rawURL,
		Type:      model.IndicatorURL,
		Source:    "virustotal",
		Malicious: count > 3,
		Detail:    fmt.Sprintf("malicious=%d", count),
	}, nil
}

func (c *VirusTotalClient) get(ctx context.Context, u string) (vtResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return vtResponse{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("x-apikey", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return vtResponse{}, fmt.Errorf("virustotal request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return vtResponse{}, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return vtResponse{}, fmt.Errorf("virustotal returned %d: %s", resp.StatusCode, string(body))
	}

	var out vtResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return vtResponse{}, fmt.Errorf("unmarshal response: %w", err)
	}
	return out, nil
}

func (c *VirusTotalClient) hashOffline(hash string) model.Investigation {
	if family, ok := knownBadHashes[strings.ToLower(hash)]; ok {
		return model.Investigation{
			Indicator: hash,
			Type:      model.IndicatorHash,
			Source:    "virustotal",
			Malicious: true,
			Detail:    fmt.Sprintf("family=%s (seeded)", family),
		}
	}
	return model.Investigation{
		Indicator: hash,
		Type:      model.IndicatorHash,
		Source:    "virustotal",
		Malicious: false,
		Detail:    "malicious=0 (seeded)",
	}
}

func (c *VirusTotalClient) urlOffline(rawURL string) model.Investigation {
	for _, bad := range knownBadURLs {
		if strings.Contains(rawURL, bad) {
			return model.Investigation{
				Indicator: rawURL,
				Type:      model.IndicatorURL,
				Source:    "virustotal",
				Malicious: true,
				Detail:    "matched seeded blocklist",
			}
		}
	}
	return model.Investigation{
		Indicator: rawURL,
		Type:      model.IndicatorURL,
		Source:    "virustotal",
		Malicious: false,
		Detail:    "malicious=0 (seeded)",
	}
}
