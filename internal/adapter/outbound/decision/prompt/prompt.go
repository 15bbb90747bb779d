// Package prompt holds the system prompts, user-prompt builders, and
// response parsing shared by the LLM-backed decision providers.
package prompt

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

const AnalyzerSystem = `You are a senior security analyst specializing in log analysis and threat detection.

Analyze the raw security log and extract:
1. Suspicious indicators: IP addresses, file hashes (MD5/SHA1/SHA256), domains, usernames
2. A risk score from 0-10 where 0-3 is informational, 4-6 warrants investigation, 7-9 is likely malicious, and 10 is an active breach
3. A brief threat summary explaining your reasoning

Respond in valid JSON with this exact schema:
{
  "risk_score": <integer 0-10>,
  "found_indicators": ["<indicator>", ...],
  "threat_summary": "<concise explanation>"
}

Only flag genuine indicators; do not include timestamps or log levels.`

const InvestigatorSystem = `You are a threat intelligence analyst reviewing reputation results gathered for pre-extracted indicators.

Synthesize the findings, update the risk score if the intel changes the picture (higher or lower), and name any known malware families or campaigns.

Respond in valid JSON with this exact schema:
{
  "updated_risk_score": <integer 0-10>,
  "threat_context": "<what is known about these indicators>",
  "confidence": "<LOW|MEDIUM|HIGH>"
}

Be objective: if the intel is clean, lower the score accordingly.`

const MitigatorSystem = `You are a senior incident responder. Threat analysis and intelligence gathering are complete.

Produce a clear, prioritized mitigation plan. For each action specify the technical action, its target, and the urgency.

Respond in valid JSON with this exact schema:
{
  "mitigation_plan": "<executive summary of the incident and response>",
  "actions": [
    {
      "action_type": "<block_ip|block_hash|disable_user|isolate_host|alert_only>",
      "target": "<the specific IP/hash/user/host>",
      "urgency": "<IMMEDIATE|SOON|MONITOR>",
      "justification": "<why this action is needed>"
    }
  ]
}

If the risk score is 3 or lower, only recommend monitoring. Never recommend destructive actions without clear justification.`

// BuildAnalyze renders the user prompt for the analysis stage.
func BuildAnalyze(rawLog string) string {
	return fmt.Sprintf("Analyze this security log:\n\n%s", rawLog)
}

// BuildInvestigate renders the user prompt for the investigation stage.
func BuildInvestigate(req outbound.InvestigateRequest) string {
	intel, _ := json.MarshalIndent(req.Intel, "", "  ")
	return fmt.Sprintf("Original risk: %d/10\nIndicators: %s\nIntel results:\n%s",
		req.RiskScore, strings.Join(req.Indicators, ", "), intel)
}

// BuildPlan renders the user prompt for the mitigation stage.
func BuildPlan(req outbound.PlanRequest) string {
	intel, _ := json.Marshal(req.Intel)
	return fmt.Sprintf("Risk: %d/10\nIndicators: %s\nIntel: %s\nLog:\n%s",
		req.RiskScore, strings.Join(req.Indicators, ", "), intel, req.RawLog)
}

// --- wire shapes returned by the model ---

type AnalysisWire struct {
	RiskScore     int      `json:"risk_score"`
	Indicators    []string `json:"found_indicators"`
	ThreatSummary string   `json:"threat_summary"`
}

type InvestigateWire struct {
	UpdatedRiskScore int    `json:"updated_risk_score"`
	ThreatContext    string `json:"threat_context"`
	Confidence       string `json:"confidence"`
}

type PlanWire struct {
	MitigationPlan string       `json:"mitigation_plan"`
	Actions        []ActionWire `json:"actions"`
}

type ActionWire struct {
	ActionType    string `json:"action_type"`
	Target        string `json:"target"`
	Urgency       string `json:"urgency"`
	Justification string `json:"justification"`
}

var fenceRe = regexp.MustCompile("```(?:json)?")

// ParseJSON extracts the first JSON object from model output, tolerating
// code fences and surrounding prose. Output that does not contain a
// parseable object leaves v untouched so callers fall through to defaults.
func ParseJSON(content string, v any) bool {
	cleaned := fenceRe.ReplaceAllString(content, "")
	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return false
	}
	return json.Unmarshal([]byte(cleaned[start:end+1]), v) == nil
}

// MapAnalysis converts wire output to the port type, clamping the score.
func MapAnalysis(w AnalysisWire) outbound.AnalysisResult {
	return outbound.AnalysisResult{
		RiskScore:     ClampScore(w.RiskScore),
		Indicators:    w.Indicators,
		ThreatSummary: w.ThreatSummary,
	}
}

// MapInvestigate converts wire output to the port type. A missing score
// falls back to the prior one.
func MapInvestigate(w InvestigateWire, priorScore int) outbound.InvestigateResult {
	score := w.UpdatedRiskScore
	if score == 0 && priorScore > 0 {
		score = priorScore
	}
	confidence := w.Confidence
	if confidence == "" {
		confidence = "MEDIUM"
	}
	return outbound.InvestigateResult{
		RiskScore:     ClampScore(score),
		ThreatContext: w.ThreatContext,
		Confidence:    confidence,
	}
}

// MapPlan converts wire output to the port type, discarding actions that
// lack a type or target.
func MapPlan(w PlanWire) outbound.PlanResult {
	actions := make([]model.PlannedAction, 0, len(w.Actions))
	for _, a := range w.Actions {
		if a.ActionType == "" || a.Target == "" {
			continue
		}
		actions = append(actions, model.PlannedAction{
			Type:          model.ActionType(a.ActionType),
			Target:        a.Target,
			Urgency:       model.Urgency(a.Urgency),
			Justification: a.Justification,
		})
	}
	return outbound.PlanResult{PlanText: w.MitigationPlan, Actions: actions}
}

// ClampScore bounds a risk score to the 0-10 scale.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
