// Package api exposes the incident pipeline over HTTP: submission, queries,
// the operator approval endpoints, and a websocket event stream.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/jonny/guardian/internal/adapter/inbound/scanner"
	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/inbound"
	"github.com/jonny/guardian/internal/domain/port/outbound"
	"github.com/jonny/guardian/internal/eventbus"
	"github.com/jonny/guardian/pkg/apierror"
)

// ScanControl is the operability surface of the passive log scanner.
type ScanControl interface {
	Status() scanner.Status
	ScanNow(ctx context.Context)
}

// Handler holds the ports the HTTP surface drives. scan is nil when the
// scanner is disabled.
type Handler struct {
	submitter inbound.IncidentSubmitter
	operator  inbound.OperatorPort
	incidents outbound.IncidentRepository
	sysstate  outbound.SysStateRepository
	bus       *eventbus.Bus
	scan      ScanControl
	logger    *slog.Logger
}

func NewHandler(
	submitter inbound.IncidentSubmitter,
	operator inbound.OperatorPort,
	incidents outbound.IncidentRepository,
	sysstate outbound.SysStateRepository,
	bus *eventbus.Bus,
	scan ScanControl,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		submitter: submitter,
		operator:  operator,
		incidents: incidents,
		sysstate:  sysstate,
		bus:       bus,
		scan:      scan,
		logger:    logger,
	}
}

type submitRequest struct {
	RawLog string `json:"raw_log"`
	Source string `json:"source,omitempty"`
}

// handleSubmit accepts a raw log and starts a pipeline run. The response is
// the initial record; the run continues asynchronously.
func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, apierror.BadRequest("invalid JSON body"))
		return
	}
	if strings.TrimSpace(req.RawLog) == "" {
		h.writeError(w, apierror.BadRequest("raw_log is required"))
		return
	}

	source := model.SourceAPI
	if req.Source != "" {
		source = model.IncidentSource(req.Source)
	}

	inc, err := h.submitter.Submit(r.Context(), req.RawLog, source)
	if err != nil {
		h.logger.Error("submitting incident", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to submit incident"))
		return
	}
	h.writeJSON(w, http.StatusAccepted, inc)
}

// handleGet returns one incident by id.
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	inc, err := h.incidents.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, outbound.ErrNotFound) {
			h.writeError(w, apierror.NotFound("incident"))
			return
		}
		h.logger.Error("fetching incident", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to fetch incident"))
		return
	}
	h.writeJSON(w, http.StatusOK, inc)
}

// handleList returns a filtered page of incidents.
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := outbound.IncidentFilter{
		Status: model.IncidentStatus(q.Get("status")),
		Source: model.IncidentSource(q.Get("source")),
	}
	if v := q.Get("min_risk"); v != "" {
		minRisk, err := strconv.Atoi(v)
		if err != nil {
			h.writeError(w, apierror.BadRequest("min_risk must be an integer"))
			return
		}
		filter.MinRisk = minRisk
	}
	page := outbound.PageRequest{
		Limit:  intQuery(q.Get("limit")),
		Offset: intQuery(q.Get("offset")),
	}

	result, err := h.incidents.List(r.Context(), filter, page)
	if err != nil {
		h.logger.Error("listing incidents", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to list incidents"))
		return
	}
	if result.Items == nil {
		result.Items = []model.Incident{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": result.Items,
		"total":     result.TotalCount,
		"limit":     result.Limit,
		"offset":    result.Offset,
	})
}

// handlePendingApproval lists incidents currently blocked on an operator.
func (h *Handler) handlePendingApproval(w http.ResponseWriter, r *http.Request) {
	result, err := h.incidents.List(r.Context(),
		outbound.IncidentFilter{Status: model.StatusAwaitingApproval},
		outbound.PageRequest{})
	if err != nil {
		h.logger.Error("listing pending approvals", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to list pending approvals"))
		return
	}
	if result.Items == nil {
		result.Items = []model.Incident{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"incidents": result.Items,
		"total":     result.TotalCount,
	})
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, model.DecisionApproved)
}

func (h *Handler) handleDeny(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, model.DecisionDenied)
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request, decision model.ApprovalDecision) {
	id := r.PathValue("id")
	err := h.operator.RecordApprovalDecision(r.Context(), id, decision)
	switch {
	case err == nil:
		h.writeJSON(w, http.StatusOK, map[string]string{
			"incident_id": id,
			"decision":    string(decision),
		})
	case errors.Is(err, outbound.ErrNotFound):
		h.writeError(w, apierror.NotFound("incident"))
	case errors.Is(err, outbound.ErrPreconditionFailed):
		h.writeError(w, apierror.Conflict("incident is not awaiting approval"))
	default:
		h.logger.Error("recording decision", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to record decision"))
	}
}

// handleStats returns the dashboard counters.
func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.incidents.Stats(r.Context())
	if err != nil {
		h.logger.Error("computing stats", slog.String("error", err.Error()))
		h.writeError(w, apierror.Internal("failed to compute stats"))
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// handleState returns the accumulated mitigation state: firewall rules,
// blocked hashes, disabled users, isolated hosts, and the alert log.
func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	rules, err := h.sysstate.ListFirewallRules(ctx)
	if err != nil {
		h.stateError(w, err)
		return
	}
	hashes, err := h.sysstate.ListBlockedHashes(ctx)
	if err != nil {
		h.stateError(w, err)
		return
	}
	users, err := h.sysstate.ListDisabledUsers(ctx)
	if err != nil {
		h.stateError(w, err)
		return
	}
	hosts, err := h.sysstate.ListIsolatedHosts(ctx)
	if err != nil {
		h.stateError(w, err)
		return
	}
	alerts, err := h.sysstate.ListAlerts(ctx)
	if err != nil {
		h.stateError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"firewall_rules": emptyIfNil(rules),
		"blocked_hashes": emptyIfNil(hashes),
		"disabled_users": emptyIfNil(users),
		"isolated_hosts": emptyIfNil(hosts),
		"alerts":         emptyIfNil(alerts),
	})
}

// handleSchedulerStatus reports whether the passive scanner is running and,
// when it is, the directory, interval, and sweep counters.
func (h *Handler) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if h.scan == nil {
		h.writeJSON(w, http.StatusOK, scanner.Status{Enabled: false})
		return
	}
	h.writeJSON(w, http.StatusOK, h.scan.Status())
}

// handleSchedulerScan triggers an out-of-band sweep of the watched directory.
func (h *Handler) handleSchedulerScan(w http.ResponseWriter, r *http.Request) {
	if h.scan == nil {
		h.writeError(w, apierror.Conflict("scanner is not enabled"))
		return
	}
	go h.scan.ScanNow(context.Background())
	h.writeJSON(w, http.StatusAccepted, map[string]string{"message": "scan triggered"})
}

func (h *Handler) stateError(w http.ResponseWriter, err error) {
	h.logger.Error("reading system state", slog.String("error", err.Error()))
	h.writeError(w, apierror.Internal("failed to read system state"))
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encoding response", slog.String("error", err.Error()))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, apiErr *apierror.Error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.Code)
	_ = json.NewEncoder(w).Encode(apiErr)
}

func intQuery(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}

func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
