package model

import "time"

type EventType string

const (
	EventAnalyzerComplete     EventType = "analyzer_complete"
	EventInvestigatorComplete EventType = "investigator_complete"
	EventMitigatorComplete    EventType = "mitigator_complete"
	EventApprovalDecision     EventType = "approval_decision"
	EventApprovalTimeout      EventType = "approval_timeout"
	EventExecutorComplete     EventType = "executor_complete"
	EventIncidentComplete     EventType = "incident_complete"
	EventIncidentError        EventType = "incident_error"
	// EventSnapshot carries the full incident record, sent once to a new
	// observer before live events.
	EventSnapshot EventType = "current_state"
)

// Event is one entry in an incident's append-only audit log, and the unit
// broadcast to live observers.
type Event struct {
	Type       EventType      `json:"type"`
	IncidentID string         `json:"incident_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// NewEvent creates an Event stamped with the current UTC time.
func NewEvent(t EventType, incidentID string, payload map[string]any) Event {
	return Event{
		Type:       t,
		IncidentID: incidentID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}
