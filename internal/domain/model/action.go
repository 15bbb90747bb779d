package model

import "fmt"

type ActionType string

const (
	ActionBlockIP     ActionType = "block_ip"
	ActionBlockHash   ActionType = "block_hash"
	ActionDisableUser ActionType = "disable_user"
	ActionIsolateHost ActionType = "isolate_host"
	ActionAlertOnly   ActionType = "alert_only"
)

type Urgency string

const (
	UrgencyImmediate Urgency = "IMMEDIATE"
	UrgencySoon      Urgency = "SOON"
	UrgencyMonitor   Urgency = "MONITOR"
)

// PlannedAction is one declared mitigation step. It is stored separately
// from the human-readable plan text; the two are never joined into one blob.
type PlannedAction struct {
	Type          ActionType `json:"action_type"`
	Target        string     `json:"target"`
	Urgency       Urgency    `json:"urgency"`
	Justification string     `json:"justification"`
}

type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeAlreadyApplied Outcome = "already_applied"
	OutcomeError          Outcome = "error"
	// OutcomeDenied marks the single blocked-by-operator record written
	// when a denied run reaches the execute stage.
	OutcomeDenied Outcome = "denied"
)

// ActionResult records what happened when an action was dispatched.
type ActionResult struct {
	Type    ActionType `json:"action_type"`
	Target  string     `json:"target"`
	Outcome Outcome    `json:"outcome"`
	Detail  string     `json:"detail,omitempty"`
}

// String renders the result in report form, e.g.
// "block_ip:185.220.101.47 -> success" or "alert_only (denied)".
func (r ActionResult) String() string {
	if r.Outcome == OutcomeDenied {
		return fmt.Sprintf("%s (denied)", r.Type)
	}
	if r.Outcome == OutcomeError && r.Detail != "" {
		return fmt.Sprintf("%s:%s -> error(%s)", r.Type, r.Target, r.Detail)
	}
	return fmt.Sprintf("%s:%s -> %s", r.Type, r.Target, r.Outcome)
}
