package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/outbound"
)

// IncidentRepo implements outbound.IncidentRepository using SQLite.
type IncidentRepo struct {
	db *sql.DB
}

func NewIncidentRepo(store *Store) *IncidentRepo {
	return &IncidentRepo{db: store.DB}
}

var _ outbound.IncidentRepository = (*IncidentRepo)(nil)

const incidentColumns = `id, source, raw_log, status, risk_score, indicators, threat_summary,
	investigations, threat_context, confidence, plan_text, actions, requires_approval,
	approval_token, approval_decision, executed_actions, events,
	started_at, completed_at, created_at, updated_at`

// Upsert replaces the full incident row keyed by id. Idempotent.
func (r *IncidentRepo) Upsert(ctx context.Context, inc model.Incident) error {
	indicators, err := marshalJSON(inc.Indicators)
	if err != nil {
		return fmt.Errorf("marshaling indicators: %w", err)
	}
	investigations, err := marshalJSON(inc.Investigations)
	if err != nil {
		return fmt.Errorf("marshaling investigations: %w", err)
	}
	actions, err := marshalJSON(inc.Actions)
	if err != nil {
		return fmt.Errorf("marshaling actions: %w", err)
	}
	executed, err := marshalJSON(inc.ExecutedActions)
	if err != nil {
		return fmt.Errorf("marshaling executed actions: %w", err)
	}
	events, err := marshalJSON(inc.Events)
	if err != nil {
		return fmt.Errorf("marshaling events: %w", err)
	}

	const q = `INSERT INTO incidents (` + incidentColumns + `)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			risk_score = excluded.risk_score,
			indicators = excluded.indicators,
			threat_summary = excluded.threat_summary,
			investigations = excluded.investigations,
			threat_context = excluded.threat_context,
			confidence = excluded.confidence,
			plan_text = excluded.plan_text,
			actions = excluded.actions,
			requires_approval = excluded.requires_approval,
			approval_token = excluded.approval_token,
			approval_decision = excluded.approval_decision,
			executed_actions = excluded.executed_actions,
			events = excluded.events,
			completed_at = excluded.completed_at,
			updated_at = excluded.updated_at`

	_, err = r.db.ExecContext(ctx, q,
		inc.ID, string(inc.Source), inc.RawLog, string(inc.Status), inc.RiskScore,
		indicators, inc.ThreatSummary, investigations, inc.ThreatContext, inc.Confidence,
		inc.PlanText, actions, boolToInt(inc.RequiresApproval),
		inc.ApprovalToken, string(inc.ApprovalDecision), executed, events,
		inc.StartedAt.UTC(), nullableTime(inc.CompletedAt),
		inc.CreatedAt.UTC(), inc.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("upserting incident: %w", err)
	}
	return nil
}

// GetByID fetches a single incident by primary key.
func (r *IncidentRepo) GetByID(ctx context.Context, id string) (model.Incident, error) {
	const q = `SELECT ` + incidentColumns + ` FROM incidents WHERE id = ?`
	row := r.db.QueryRowContext(ctx, q, id)
	inc, err := scanIncident(row)
	if err == sql.ErrNoRows {
		return model.Incident{}, fmt.Errorf("incident %s: %w", id, outbound.ErrNotFound)
	}
	if err != nil {
		return model.Incident{}, fmt.Errorf("fetching incident: %w", err)
	}
	return inc, nil
}

// List returns a filtered, recency-ordered page of incidents.
func (r *IncidentRepo) List(ctx context.Context, filter outbound.IncidentFilter, page outbound.PageRequest) (outbound.PageResult[model.Incident], error) {
	where, args := buildIncidentWhere(filter)

	countQ := "SELECT COUNT(*) FROM incidents" + where
	var total int64
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return outbound.PageResult[model.Incident]{}, fmt.Errorf("counting incidents: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}

	dataQ := `SELECT ` + incidentColumns + ` FROM incidents` + where +
		` ORDER BY created_at DESC LIMIT ? OFFSET ?`

	rows, err := r.db.QueryContext(ctx, dataQ, append(args, limit, offset)...)
	if err != nil {
		return outbound.PageResult[model.Incident]{}, fmt.Errorf("listing incidents: %w", err)
	}
	defer rows.Close()

	var items []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return outbound.PageResult[model.Incident]{}, fmt.Errorf("scanning incident: %w", err)
		}
		items = append(items, inc)
	}
	if err := rows.Err(); err != nil {
		return outbound.PageResult[model.Incident]{}, fmt.Errorf("iterating incidents: %w", err)
	}

	return outbound.PageResult[model.Incident]{
		Items:      items,
		TotalCount: total,
		Limit:      limit,
		Offset:     offset,
	}, nil
}

// SetApprovalDecision records the operator decision. The guard in the WHERE
// clause rejects stale approvals against finished or already-decided
// incidents without mutating anything.
func (r *IncidentRepo) SetApprovalDecision(ctx context.Context, id string, decision model.ApprovalDecision) error {
	const q = `UPDATE incidents SET approval_decision = ?, updated_at = ?
		WHERE id = ? AND status = ?`
	res, err := r.db.ExecContext(ctx, q, string(decision), time.Now().UTC(), id, string(model.StatusAwaitingApproval))
	if err != nil {
		return fmt.Errorf("setting approval decision: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		return nil
	}

	var exists int
	err = r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking incident existence: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("incident %s: %w", id, outbound.ErrNotFound)
	}
	return fmt.Errorf("incident %s is not awaiting approval: %w", id, outbound.ErrPreconditionFailed)
}

// Stats aggregates dashboard counters in a single round trip per counter.
func (r *IncidentRepo) Stats(ctx context.Context) (outbound.IncidentStats, error) {
	stats := outbound.IncidentStats{ByStatus: make(map[model.IncidentStatus]int64)}

	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM incidents`).Scan(&stats.Total); err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("counting incidents: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM incidents GROUP BY status`)
	if err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("grouping by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return outbound.IncidentStats{}, fmt.Errorf("scanning status count: %w", err)
		}
		stats.ByStatus[model.IncidentStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("iterating status counts: %w", err)
	}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE risk_score >= 7`).Scan(&stats.HighRisk); err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("counting high risk: %w", err)
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM incidents WHERE status = ?`, string(model.StatusAwaitingApproval)).Scan(&stats.PendingApproval); err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("counting pending approval: %w", err)
	}

	var avg sql.NullFloat64
	if err := r.db.QueryRowContext(ctx,
		`SELECT AVG(risk_score) FROM incidents WHERE risk_score > 0`).Scan(&avg); err != nil {
		return outbound.IncidentStats{}, fmt.Errorf("averaging risk: %w", err)
	}
	if avg.Valid {
		stats.AvgRiskScore = avg.Float64
	}
	return stats, nil
}

// --- helpers ---

type incidentScanner interface {
	Scan(dest ...any) error
}

func scanIncident(s incidentScanner) (model.Incident, error) {
	var inc model.Incident
	var source, status, decision string
	var indicators, investigations, actions, executed, events string
	var requiresApproval int
	var completedAt sql.NullTime

	err := s.Scan(
		&inc.ID, &source, &inc.RawLog, &status, &inc.RiskScore,
		&indicators, &inc.ThreatSummary, &investigations, &inc.ThreatContext, &inc.Confidence,
		&inc.PlanText, &actions, &requiresApproval,
		&inc.ApprovalToken, &decision, &executed, &events,
		&inc.StartedAt, &completedAt, &inc.CreatedAt, &inc.UpdatedAt,
	)
	if err != nil {
		return model.Incident{}, err
	}

	inc.Source = model.IncidentSource(source)
	inc.Status = model.IncidentStatus(status)
	inc.ApprovalDecision = model.ApprovalDecision(decision)
	inc.RequiresApproval = requiresApproval != 0
	if completedAt.Valid {
		t := completedAt.Time
		inc.CompletedAt = &t
	}

	if err := json.Unmarshal([]byte(indicators), &inc.Indicators); err != nil {
		inc.Indicators = []string{}
	}
	if err := json.Unmarshal([]byte(investigations), &inc.Investigations); err != nil {
		inc.Investigations = []model.Investigation{}
	}
	if err := json.Unmarshal([]byte(actions), &inc.Actions); err != nil {
		inc.Actions = []model.PlannedAction{}
	}
	if err := json.Unmarshal([]byte(executed), &inc.ExecutedActions); err != nil {
		inc.ExecutedActions = []model.ActionResult{}
	}
	if err := json.Unmarshal([]byte(events), &inc.Events); err != nil {
		inc.Events = []model.Event{}
	}
	return inc, nil
}

func buildIncidentWhere(f outbound.IncidentFilter) (string, []any) {
	var clauses []string
	var args []any

	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.MinRisk > 0 {
		clauses = append(clauses, "risk_score >= ?")
		args = append(args, f.MinRisk)
	}
	if f.Source != "" {
		clauses = append(clauses, "source = ?")
		args = append(args, string(f.Source))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func marshalJSON(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
