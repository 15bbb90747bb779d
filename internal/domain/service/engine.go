// Package service contains the pipeline orchestration: the engine that
// drives an incident through analysis, investigation, mitigation planning,
// the approval gate, and execution.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonny/guardian/internal/domain/model"
	"github.com/jonny/guardian/internal/domain/port/inbound"
	"github.com/jonny/guardian/internal/domain/port/outbound"
	"github.com/jonny/guardian/internal/eventbus"
)

// approvalRiskThreshold is the score above which execution requires a human
// decision. A score of exactly 7 executes without a gate.
const approvalRiskThreshold = 7

// EngineConfig tunes the pipeline engine.
type EngineConfig struct {
	MaxConcurrent   int64
	ApprovalTimeout time.Duration
}

// Engine runs the incident pipeline. It is the single logical writer for
// every incident record it owns: each run is one goroutine, and nothing
// else writes the record except the approval decision column.
type Engine struct {
	provider   outbound.DecisionProvider
	intel      outbound.IndicatorInvestigator
	gate       ApprovalGate
	dispatcher *Dispatcher
	incidents  outbound.IncidentRepository
	bus        *eventbus.Bus
	notifier   outbound.Notifier
	logger     *slog.Logger
	config     EngineConfig

	ctx    context.Context
	cancel context.CancelFunc
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
}

// NewEngine creates an Engine with all required dependencies. Runs started
// by Submit live until they finish or Close is called.
func NewEngine(
	provider outbound.DecisionProvider,
	intel outbound.IndicatorInvestigator,
	gate ApprovalGate,
	dispatcher *Dispatcher,
	incidents outbound.IncidentRepository,
	bus *eventbus.Bus,
	notifier outbound.Notifier,
	logger *slog.Logger,
	config EngineConfig,
) *Engine {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 4
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		provider:   provider,
		intel:      intel,
		gate:       gate,
		dispatcher: dispatcher,
		incidents:  incidents,
		bus:        bus,
		notifier:   notifier,
		logger:     logger,
		config:     config,
		ctx:        ctx,
		cancel:     cancel,
		sem:        semaphore.NewWeighted(config.MaxConcurrent),
	}
}

// Ensure Engine satisfies the inbound ports at compile time.
var _ inbound.IncidentSubmitter = (*Engine)(nil)
var _ inbound.OperatorPort = (*Engine)(nil)

// Submit persists a new incident and starts its pipeline run. The run
// proceeds on the engine's own context so it outlives the caller's request.
func (e *Engine) Submit(ctx context.Context, rawLog string, source model.IncidentSource) (model.Incident, error) {
	inc := model.NewIncident(rawLog, source)
	if err := e.incidents.Upsert(ctx, inc); err != nil {
		return model.Incident{}, fmt.Errorf("persisting new incident: %w", err)
	}
	e.logger.Info("incident submitted",
		slog.String("incidentID", inc.ID),
		slog.String("source", string(source)))

	e.notify(func(ctx context.Context) error { return e.notifier.NotifyCreated(ctx, inc) })

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		if err := e.sem.Acquire(e.ctx, 1); err != nil {
			return
		}
		defer e.sem.Release(1)
		e.run(inc)
	}()
	return inc, nil
}

// RecordApprovalDecision implements inbound.OperatorPort. It writes only
// the decision; the waiting run picks it up and advances the record.
func (e *Engine) RecordApprovalDecision(ctx context.Context, id string, decision model.ApprovalDecision) error {
	if decision != model.DecisionApproved && decision != model.DecisionDenied {
		return fmt.Errorf("invalid decision %q: %w", decision, outbound.ErrPreconditionFailed)
	}
	if err := e.incidents.SetApprovalDecision(ctx, id, decision); err != nil {
		return err
	}
	e.logger.Info("approval decision recorded",
		slog.String("incidentID", id),
		slog.String("decision", string(decision)))
	return nil
}

// Close stops accepting work and waits for in-flight runs to finish or for
// ctx to expire.
func (e *Engine) Close(ctx context.Context) error {
	e.cancel()
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for pipeline runs: %w", ctx.Err())
	}
}

// run drives one incident through every stage. Each stage ends with exactly
// one event appended, persisted, and published.
func (e *Engine) run(inc model.Incident) {
	ctx := e.ctx

	// 1. Analyze. A provider failure here is fatal: without a risk score
	// nothing downstream can make a safe decision.
	analysis, err := e.provider.Analyze(ctx, inc.RawLog)
	if err != nil {
		e.fail(ctx, inc, "analysis", err)
		return
	}
	inc.RiskScore = analysis.RiskScore
	inc.Indicators = analysis.Indicators
	inc.ThreatSummary = analysis.ThreatSummary
	inc = e.record(ctx, inc, model.EventAnalyzerComplete, map[string]any{
		"risk_score":      inc.RiskScore,
		"indicator_count": len(inc.Indicators),
	})

	// 2. Investigate. Reputation lookups never abort the run, and a provider
	// failure degrades to the analyzer's score at low confidence.
	inc = inc.WithStatus(model.StatusInvestigating)
	inc.Investigations = e.intel.Investigate(ctx, inc.Indicators)

	investigation, err := e.provider.Investigate(ctx, outbound.InvestigateRequest{
		RiskScore:  inc.RiskScore,
		Indicators: inc.Indicators,
		Intel:      inc.Investigations,
	})
	if err != nil {
		e.logger.Warn("investigation reasoning failed, keeping analyzer score",
			slog.String("incidentID", inc.ID),
			slog.String("error", err.Error()))
		investigation = outbound.InvestigateResult{RiskScore: inc.RiskScore, Confidence: "LOW"}
	}
	inc.RiskScore = investigation.RiskScore
	inc.ThreatContext = investigation.ThreatContext
	inc.Confidence = investigation.Confidence
	inc = e.record(ctx, inc, model.EventInvestigatorComplete, map[string]any{
		"risk_score":      inc.RiskScore,
		"confidence":      inc.Confidence,
		"malicious_count": countMalicious(inc.Investigations),
	})

	// 3. Plan mitigation. On failure fall back to an alert so elevated risk
	// is never silently dropped.
	plan, err := e.provider.Plan(ctx, outbound.PlanRequest{
		RiskScore:  inc.RiskScore,
		Indicators: inc.Indicators,
		Intel:      inc.Investigations,
		RawLog:     inc.RawLog,
	})
	if err != nil {
		e.logger.Warn("mitigation planning failed, degrading to alert",
			slog.String("incidentID", inc.ID),
			slog.String("error", err.Error()))
		plan = outbound.PlanResult{PlanText: "planning unavailable, alerting SOC"}
		if inc.RiskScore >= 5 {
			plan.Actions = []model.PlannedAction{{
				Type:          model.ActionAlertOnly,
				Target:        "soc-channel",
				Urgency:       model.UrgencySoon,
				Justification: "automated planning unavailable for elevated-risk incident",
			}}
		}
	}
	inc.PlanText = plan.PlanText
	inc.Actions = plan.Actions
	inc.RequiresApproval = inc.RiskScore > approvalRiskThreshold

	// 4. Gate. Only runs above the risk threshold pause for a human.
	if inc.RequiresApproval {
		inc.ApprovalToken = model.NewApprovalToken()
		inc = inc.WithStatus(model.StatusAwaitingApproval)
		inc = e.record(ctx, inc, model.EventMitigatorComplete, map[string]any{
			"action_count":      len(inc.Actions),
			"requires_approval": true,
		})
		notifyInc := inc
		e.notify(func(ctx context.Context) error { return e.notifier.NotifyApprovalNeeded(ctx, notifyInc) })

		inc = e.awaitApproval(ctx, inc)
		if inc.Status == model.StatusError {
			return
		}
	} else {
		inc = inc.WithDecision(model.DecisionApproved)
		inc = e.record(ctx, inc, model.EventMitigatorComplete, map[string]any{
			"action_count":      len(inc.Actions),
			"requires_approval": false,
		})
	}

	// 5. Execute. A denied run executes nothing; it leaves a single denied
	// alert record as its audit trail.
	inc = inc.WithStatus(model.StatusExecuting)
	if inc.ApprovalDecision == model.DecisionDenied {
		inc.ExecutedActions = e.dispatcher.RecordBlocked(ctx, inc)
	} else {
		inc.ExecutedActions = e.dispatcher.DispatchAll(ctx, inc.Actions)
	}
	inc = e.record(ctx, inc, model.EventExecutorComplete, map[string]any{
		"executed_count": len(inc.ExecutedActions),
	})

	// 6. Complete.
	inc = inc.Complete()
	inc = e.record(ctx, inc, model.EventIncidentComplete, map[string]any{
		"status":     string(inc.Status),
		"risk_score": inc.RiskScore,
		"report":     inc.Report(),
	})
	e.notify(func(ctx context.Context) error { return e.notifier.NotifyComplete(ctx, inc) })
	e.logger.Info("incident complete",
		slog.String("incidentID", inc.ID),
		slog.Int("riskScore", inc.RiskScore),
		slog.Int("executedActions", len(inc.ExecutedActions)))
}

// awaitApproval blocks on the gate and folds the outcome back into the
// record. An elapsed deadline is recorded as a denied decision with an
// approval_timeout event; it is not an error.
func (e *Engine) awaitApproval(ctx context.Context, inc model.Incident) model.Incident {
	decision, err := e.gate.Await(ctx, inc.ID, e.config.ApprovalTimeout)
	if err != nil {
		e.fail(ctx, inc, "approval", err)
		return inc.WithStatus(model.StatusError)
	}

	// Re-read to distinguish an operator denial from a timeout: on timeout
	// the stored decision is still pending.
	stored, err := e.incidents.GetByID(ctx, inc.ID)
	if err != nil {
		e.fail(ctx, inc, "approval", err)
		return inc.WithStatus(model.StatusError)
	}

	if stored.ApprovalDecision == model.DecisionPending {
		inc = inc.WithDecision(model.DecisionDenied)
		return e.record(ctx, inc, model.EventApprovalTimeout, map[string]any{
			"decision": string(model.DecisionDenied),
			"timeout":  e.config.ApprovalTimeout.String(),
		})
	}

	inc = inc.WithDecision(decision)
	return e.record(ctx, inc, model.EventApprovalDecision, map[string]any{
		"decision": string(inc.ApprovalDecision),
	})
}

// record appends the stage event, persists the record, and publishes to
// observers, in that order. A persistence failure is logged but does not
// stop the run; the event still reaches observers.
func (e *Engine) record(ctx context.Context, inc model.Incident, t model.EventType, payload map[string]any) model.Incident {
	event := model.NewEvent(t, inc.ID, payload)
	inc = inc.AppendEvent(event)
	if err := e.incidents.Upsert(ctx, inc); err != nil {
		e.logger.Error("persisting incident",
			slog.String("incidentID", inc.ID),
			slog.String("event", string(t)),
			slog.String("error", err.Error()))
	}
	e.bus.Publish(event)
	return inc
}

// fail abandons the run, marking the record with the failing stage.
func (e *Engine) fail(ctx context.Context, inc model.Incident, stage string, err error) {
	e.logger.Error("pipeline stage failed",
		slog.String("incidentID", inc.ID),
		slog.String("stage", stage),
		slog.String("error", err.Error()))

	inc = inc.WithStatus(model.StatusError)
	inc = e.record(ctx, inc, model.EventIncidentError, map[string]any{
		"stage": stage,
		"error": err.Error(),
	})
	e.notify(func(ctx context.Context) error { return e.notifier.NotifyComplete(ctx, inc) })
}

// notify runs a notifier call in the background; failures are logged only.
func (e *Engine) notify(fn func(context.Context) error) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(e.ctx, 10*time.Second)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.logger.Warn("notification failed", slog.String("error", err.Error()))
		}
	}()
}

func countMalicious(investigations []model.Investigation) int {
	n := 0
	for _, inv := range investigations {
		if inv.Malicious {
			n++
		}
	}
	return n
}
