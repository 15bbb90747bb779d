// Package model holds the domain types the pipeline operates on. Incidents
// are value types; mutation helpers return a modified copy so stage code
// never shares writable state.
package model

import (
	"fmt"
	"strings"
	"time"
)

type IncidentStatus string

const (
	StatusAnalyzing        IncidentStatus = "analyzing"
	StatusInvestigating    IncidentStatus = "investigating"
	StatusAwaitingApproval IncidentStatus = "awaiting_approval"
	StatusExecuting        IncidentStatus = "executing"
	StatusComplete         IncidentStatus = "complete"
	// StatusError marks a run abandoned after a stage failure. It is
	// reachable from any non-terminal status.
	StatusError IncidentStatus = "error"
)

// statusRank orders the forward path. A status may only move to a strictly
// higher rank; StatusError sits outside the ordering.
var statusRank = map[IncidentStatus]int{
	StatusAnalyzing:        1,
	StatusInvestigating:    2,
	StatusAwaitingApproval: 3,
	StatusExecuting:        4,
	StatusComplete:         5,
}

type IncidentSource string

const (
	SourceAPI       IncidentSource = "api"
	SourceScheduler IncidentSource = "scheduler"
	SourceWatcher   IncidentSource = "watcher"
)

type ApprovalDecision string

const (
	DecisionPending  ApprovalDecision = "pending"
	DecisionApproved ApprovalDecision = "approved"
	DecisionDenied   ApprovalDecision = "denied"
)

// Incident is the full record of one pipeline run, from raw log to
// executed actions. PlanText and Actions are distinct fields; the plan
// narrative is never used to carry structured data.
type Incident struct {
	ID     string         `json:"id"`
	Source IncidentSource `json:"source"`
	RawLog string         `json:"raw_log"`
	Status IncidentStatus `json:"status"`

	RiskScore     int      `json:"risk_score"`
	Indicators    []string `json:"indicators"`
	ThreatSummary string   `json:"threat_summary"`

	Investigations []Investigation `json:"investigations"`
	ThreatContext  string          `json:"threat_context"`
	Confidence     string          `json:"confidence"`

	PlanText string          `json:"plan_text"`
	Actions  []PlannedAction `json:"actions"`

	RequiresApproval bool             `json:"requires_approval"`
	ApprovalToken    string           `json:"approval_token,omitempty"`
	ApprovalDecision ApprovalDecision `json:"approval_decision"`

	ExecutedActions []ActionResult `json:"executed_actions"`
	Events          []Event        `json:"events"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewIncident creates an incident in the analyzing state.
func NewIncident(rawLog string, source IncidentSource) Incident {
	now := time.Now().UTC()
	return Incident{
		ID:               generateID(),
		Source:           source,
		RawLog:           rawLog,
		Status:           StatusAnalyzing,
		Indicators:       []string{},
		Investigations:   []Investigation{},
		Actions:          []PlannedAction{},
		ApprovalDecision: DecisionPending,
		ExecutedActions:  []ActionResult{},
		Events:           []Event{},
		StartedAt:        now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// WithStatus returns a copy at the new status. Backward moves on the
// forward path are ignored; the copy keeps the current status. StatusError
// is always accepted from a non-terminal state.
func (i Incident) WithStatus(status IncidentStatus) Incident {
	if status == StatusError {
		if !i.IsTerminal() {
			i.Status = StatusError
			i.UpdatedAt = time.Now().UTC()
		}
		return i
	}
	if statusRank[status] <= statusRank[i.Status] {
		return i
	}
	i.Status = status
	i.UpdatedAt = time.Now().UTC()
	return i
}

// WithDecision returns a copy carrying the operator decision.
func (i Incident) WithDecision(decision ApprovalDecision) Incident {
	i.ApprovalDecision = decision
	i.UpdatedAt = time.Now().UTC()
	return i
}

// AppendEvent returns a copy with the event appended. The slice is copied
// so the original's audit log is never aliased.
func (i Incident) AppendEvent(e Event) Incident {
	events := make([]Event, len(i.Events), len(i.Events)+1)
	copy(events, i.Events)
	i.Events = append(events, e)
	i.UpdatedAt = time.Now().UTC()
	return i
}

// Complete returns a copy marked complete with the completion time set.
func (i Incident) Complete() Incident {
	i = i.WithStatus(StatusComplete)
	now := time.Now().UTC()
	i.CompletedAt = &now
	return i
}

// IsTerminal reports whether the run has finished, successfully or not.
func (i Incident) IsTerminal() bool {
	return i.Status == StatusComplete || i.Status == StatusError
}

// HighRisk reports whether the incident counts toward the high-risk
// dashboard bucket.
func (i Incident) HighRisk() bool {
	return i.RiskScore >= 7
}

// Report renders the terminal summary of a run: risk, indicators, the plan
// narrative, and one line per executed action.
func (i Incident) Report() string {
	var b strings.Builder
	fmt.Fprintf(&b, "incident %s\n", i.ID)
	fmt.Fprintf(&b, "risk: %d/10\n", i.RiskScore)
	fmt.Fprintf(&b, "indicators: %s\n", strings.Join(i.Indicators, ", "))
	if i.PlanText != "" {
		fmt.Fprintf(&b, "plan:\n%s\n", i.PlanText)
	}
	b.WriteString("actions:\n")
	for _, a := range i.ExecutedActions {
		fmt.Fprintf(&b, "  %s\n", a.String())
	}
	return b.String()
}
