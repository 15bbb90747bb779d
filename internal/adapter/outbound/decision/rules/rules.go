// Package rules implements a deterministic, offline decision provider.
// It extracts indicators with regular expressions and scores the log with
// keyword heuristics, so the pipeline stays fully functional without any
// model endpoint configured.
package rules

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

type Provider struct{}

func NewProvider() *Provider { return &Provider{} }

var _ outbound.DecisionProvider = (*Provider)(nil)

var (
	ipRe   = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
	hashRe = regexp.MustCompile(`\b[a-fA-F0-9]{32}\b|\b[a-fA-F0-9]{40}\b|\b[a-fA-F0-9]{64}\b`)
	urlRe  = regexp.MustCompile(`https?://[^\s"']+`)
	userRe = regexp.MustCompile(`(?i)\buser(?:name)?[=:\s]+([a-zA-Z0-9._-]+)`)
)

// scoreRules maps a lowercase keyword to the score contribution it adds.
// The final score is clamped to 0..10.
var scoreRules = []struct {
	keyword string
	points  int
}{
	{"ransomware", 6},
	{"exfiltrat", 5},
	{"privilege escalation", 5},
	{"reverse shell", 5},
	{"malware", 4},
	{"brute force", 4},
	{"c2", 3},
	{"lateral movement", 3},
	{"unauthorized", 3},
	{"failed login", 2},
	{"suspicious", 2},
	{"denied", 1},
	{"anomal", 1},
}

func (p *Provider) Analyze(_ context.Context, rawLog string) (outbound.AnalysisResult, error) {
	indicators := extractIndicators(rawLog)

	lower := strings.ToLower(rawLog)
	score := 0
	var matched []string
	for _, r := range scoreRules {
		if strings.Contains(lower, r.keyword) {
			score += r.points
			matched = append(matched, r.keyword)
		}
	}
	// Indicators alone are weak evidence but not nothing.
	if score == 0 && len(indicators) > 0 {
		score = 2
	}
	if score > 10 {
		score = 10
	}

	summary := "no threat keywords matched"
	if len(matched) > 0 {
		summary = fmt.Sprintf("matched heuristics: %s", strings.Join(matched, ", "))
	}
	return outbound.AnalysisResult{
		RiskScore:     score,
		Indicators:    indicators,
		ThreatSummary: summary,
	}, nil
}

func (p *Provider) Investigate(_ context.Context, req outbound.InvestigateRequest) (outbound.InvestigateResult, error) {
	score := req.RiskScore
	malicious := 0
	for _, inv := range req.Intel {
		if inv.Malicious {
			malicious++
		}
	}
	switch {
	case malicious > 1:
		score += 3
	case malicious == 1:
		score += 2
	case len(req.Intel) > 0:
		// All indicators came back clean.
		score -= 1
	}
	if score > 10 {
		score = 10
	}
	if score < 0 {
		score = 0
	}

	confidence := "MEDIUM"
	if len(req.Intel) == 0 {
		confidence = "LOW"
	} else if malicious > 0 {
		confidence = "HIGH"
	}
	return outbound.InvestigateResult{
		RiskScore:     score,
		ThreatContext: fmt.Sprintf("%d of %d indicators flagged malicious by reputation sources", malicious, len(req.Intel)),
		Confidence:    confidence,
	}, nil
}

func (p *Provider) Plan(_ context.Context, req outbound.PlanRequest) (outbound.PlanResult, error) {
	urgency := model.UrgencyMonitor
	switch {
	case req.RiskScore >= 8:
		urgency = model.UrgencyImmediate
	case req.RiskScore >= 5:
		urgency = model.UrgencySoon
	}

	var actions []model.PlannedAction
	for _, inv := range req.Intel {
		if !inv.Malicious {
			continue
		}
		switch inv.Type {
		case model.IndicatorIP:
			actions = append(actions, model.PlannedAction{
				Type:          model.ActionBlockIP,
				Target:        inv.Indicator,
				Urgency:       urgency,
				Justification: fmt.Sprintf("flagged malicious by %s", inv.Source),
			})
		case model.IndicatorHash:
			actions = append(actions, model.PlannedAction{
				Type:          model.ActionBlockHash,
				Target:        inv.Indicator,
				Urgency:       urgency,
				Justification: fmt.Sprintf("flagged malicious by %s", inv.Source),
			})
		}
	}
	if len(actions) == 0 && req.RiskScore >= 5 {
		actions = append(actions, model.PlannedAction{
			Type:          model.ActionAlertOnly,
			Target:        "soc-channel",
			Urgency:       urgency,
			Justification: "elevated risk with no blockable indicators",
		})
	}

	plan := fmt.Sprintf("Rule-based response for risk score %d: %d action(s) planned.", req.RiskScore, len(actions))
	return outbound.PlanResult{PlanText: plan, Actions: actions}, nil
}

func (p *Provider) HealthCheck(_ context.Context) error { return nil }

func extractIndicators(rawLog string) []string {
	seen := make(map[string]struct{})
	add := func(matches []string) {
		for _, m := range matches {
			seen[m] = struct{}{}
		}
	}
	add(ipRe.FindAllString(rawLog, -1))
	add(hashRe.FindAllString(rawLog, -1))
	add(urlRe.FindAllString(rawLog, -1))
	for _, m := range userRe.FindAllStringSubmatch(rawLog, -1) {
		seen[m[1]] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for ind := range seen {
		out = append(out, ind)
	}
	sort.Strings(out)
	return out
}
