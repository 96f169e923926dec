// Package orchestrator exposes the fleet's external operations: status,
// mode changes, optimization runs, position updates and emergency override.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/observability"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/state"
	"github.com/signalsfoundry/rail-corridor-sim/internal/store"
	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// Re-exported so transports depend on one package for error mapping.
var (
	ErrTrainNotFound   = state.ErrTrainNotFound
	ErrAIDisabled      = state.ErrAIDisabled
	ErrInvalidPosition = state.ErrInvalidPosition
)

const statusSuccess = "success"

// PerformanceMetrics accumulates the effect of optimization runs since
// startup.
type PerformanceMetrics struct {
	TotalDelayReduction   int `json:"total_delay_reduction"`
	ConflictsResolved     int `json:"conflicts_resolved"`
	ThroughputImprovement int `json:"throughput_improvement"`
	DecisionsMade         int `json:"decisions_made"`
	OptimizationRuns      int `json:"optimization_runs"`
}

// Status is the full system view returned by Status.
type Status struct {
	SystemStatus       string               `json:"system_status"`
	AIEnabled          bool                 `json:"ai_enabled"`
	Mode               state.Mode           `json:"mode"`
	Trains             []model.Train        `json:"trains"`
	Junctions          []model.Junction     `json:"junctions"`
	Signals            []model.Signal       `json:"signals"`
	TrafficAnalysis    core.TrafficAnalysis `json:"traffic_analysis"`
	DelayPredictions   map[string]int       `json:"delay_predictions"`
	PerformanceMetrics PerformanceMetrics   `json:"performance_metrics"`
	Timestamp          time.Time            `json:"timestamp"`

	// TrainConflicts lists, per train ID, the potential conflicts the train is
	// part of. Trains without conflicts are absent.
	TrainConflicts map[string][]core.Conflict `json:"train_conflicts"`
}

// ModeChange is the result of EnableAI / DisableAI.
type ModeChange struct {
	Status    string     `json:"status"`
	Message   string     `json:"message"`
	Mode      state.Mode `json:"mode"`
	Changed   bool       `json:"changed"`
	Timestamp time.Time  `json:"timestamp"`
}

// OptimizationReport is the result of a successful RunOptimization.
type OptimizationReport struct {
	Status string `json:"status"`
	store.OptimizationRun
	Recommendations []string `json:"recommendations"`
}

// PositionUpdate is the result of UpdatePosition.
type PositionUpdate struct {
	Status      string  `json:"status"`
	TrainID     string  `json:"train_id"`
	NewPosition float64 `json:"new_position"`
}

// OverrideResult is the result of EmergencyOverride.
type OverrideResult struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Metrics receives orchestrator-level measurements.
type Metrics interface {
	ObserveOptimization(outcome string, d time.Duration, executed, skipped int)
	IncEmergencyOverrides()
	SetConflicts(n int)
}

// OverrideListener is notified after every emergency override.
type OverrideListener func(ctx context.Context)

// Orchestrator coordinates FleetState, the optimization engine and the
// decision history.
type Orchestrator struct {
	fleet   *state.FleetState
	engine  *core.Engine
	history store.DecisionStore
	now     func() time.Time
	log     logging.Logger
	metrics Metrics

	mu        sync.Mutex
	perf      PerformanceMetrics
	listeners []OverrideListener
}

// Option customises Orchestrator construction.
type Option func(*Orchestrator)

// WithEngine replaces the default engine.
func WithEngine(e *core.Engine) Option {
	return func(o *Orchestrator) {
		if e != nil {
			o.engine = e
		}
	}
}

// WithDecisionStore sets where optimization runs are recorded.
func WithDecisionStore(s store.DecisionStore) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.history = s
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithMetrics attaches a metrics sink.
func WithMetrics(m Metrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithOverrideListener registers fn to run after every emergency override.
func WithOverrideListener(fn OverrideListener) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.listeners = append(o.listeners, fn)
		}
	}
}

// New wires an Orchestrator around fleet. Without options it uses the
// default engine, an in-memory history and the UTC wall clock.
func New(fleet *state.FleetState, log logging.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = logging.Noop()
	}
	o := &Orchestrator{
		fleet:   fleet,
		engine:  core.NewEngine(core.DefaultEngineConfig()),
		history: store.NewMemoryStore(0),
		now:     func() time.Time { return time.Now().UTC() },
		log:     log.With(logging.String("component", "orchestrator")),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}
	ec := o.engine.Config()
	o.log.Debug(context.Background(), "optimization engine configured",
		logging.Float64("junction_range", ec.JunctionRange),
		logging.Float64("min_improvement", ec.MinImprovement),
		logging.Int("throughput_per_action", ec.ThroughputPerAction),
		logging.Int("throughput_cap", ec.ThroughputCap),
	)
	return o
}

// Engine returns the optimization engine in use.
func (o *Orchestrator) Engine() *core.Engine {
	return o.engine
}

// Fleet exposes the underlying FleetState.
func (o *Orchestrator) Fleet() *state.FleetState {
	return o.fleet
}

// OnEmergencyOverride registers fn to run after every emergency override.
func (o *Orchestrator) OnEmergencyOverride(fn OverrideListener) {
	if fn == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.listeners = append(o.listeners, fn)
}

// Status reports the whole fleet with analysis and predictions.
func (o *Orchestrator) Status(ctx context.Context) Status {
	_, span := observability.StartSpan(ctx, "orchestrator.Status")
	defer span.End()

	snap := o.fleet.Snapshot()
	analysis := core.Analyze(snap.Trains, snap.Junctions)
	if o.metrics != nil {
		o.metrics.SetConflicts(len(analysis.PotentialConflicts))
	}

	return Status{
		SystemStatus:       snap.SystemStatus,
		AIEnabled:          snap.Mode == state.ModeAIEnabled,
		Mode:               snap.Mode,
		Trains:             snap.Trains,
		Junctions:          snap.Junctions,
		Signals:            snap.Signals,
		TrafficAnalysis:    analysis,
		TrainConflicts:     conflictsByTrain(snap.Trains, analysis.PotentialConflicts),
		DelayPredictions:   core.PredictDelays(snap.Trains),
		PerformanceMetrics: o.Performance(),
		Timestamp:          o.now(),
	}
}

// Performance returns the accumulated performance metrics.
func (o *Orchestrator) Performance() PerformanceMetrics {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.perf
}

// EnableAI switches to AI-enabled mode.
func (o *Orchestrator) EnableAI(ctx context.Context) ModeChange {
	changed := o.fleet.EnableAI()
	o.log.Info(ctx, "AI mode enabled", logging.Bool("changed", changed))
	return ModeChange{
		Status:    statusSuccess,
		Message:   "AI traffic control system activated",
		Mode:      state.ModeAIEnabled,
		Changed:   changed,
		Timestamp: o.now(),
	}
}

// DisableAI switches to manual mode.
func (o *Orchestrator) DisableAI(ctx context.Context) ModeChange {
	changed := o.fleet.DisableAI()
	o.log.Info(ctx, "AI mode disabled, switching to manual control", logging.Bool("changed", changed))
	return ModeChange{
		Status:    statusSuccess,
		Message:   "Switched to manual control mode",
		Mode:      state.ModeManual,
		Changed:   changed,
		Timestamp: o.now(),
	}
}

// RunOptimization plans on a snapshot outside the fleet lock, applies the
// plan under the lock and records the run. It fails with ErrAIDisabled in
// manual mode, including when the mode flips between planning and applying.
func (o *Orchestrator) RunOptimization(ctx context.Context) (*OptimizationReport, error) {
	ctx, span := observability.StartSpan(ctx, "orchestrator.RunOptimization")
	defer span.End()

	snap := o.fleet.Snapshot()
	if snap.Mode != state.ModeAIEnabled {
		o.observe(observability.OutcomeDisabled, 0, 0, 0)
		span.SetStatus(codes.Error, ErrAIDisabled.Error())
		return nil, ErrAIDisabled
	}

	_, planSpan := observability.StartSpan(ctx, "orchestrator.plan",
		attribute.Int("trains", len(snap.Trains)),
		attribute.Int("junctions", len(snap.Junctions)),
	)
	plan := o.engine.Optimize(snap.Trains, snap.Junctions)
	planSpan.SetAttributes(attribute.Int("actions", len(plan.Actions)))
	planSpan.End()

	results, err := o.fleet.ApplyActions(ctx, plan.Actions)
	if err != nil {
		outcome := observability.OutcomeFailed
		if errors.Is(err, ErrAIDisabled) {
			outcome = observability.OutcomeDisabled
		}
		o.observe(outcome, plan.ExecutionTime, 0, 0)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	executed := make([]core.Action, 0, len(results))
	skipped := make([]store.SkippedAction, 0)
	for _, r := range results {
		if r.Executed {
			executed = append(executed, r.Action)
			continue
		}
		skipped = append(skipped, store.SkippedAction{Action: r.Action, Reason: r.Reason})
	}

	after := o.fleet.Snapshot()
	run := store.OptimizationRun{
		ID:                   store.NewRunID(),
		Timestamp:            o.now(),
		ExecutedActions:      executed,
		SkippedActions:       skipped,
		Projections:          plan.Projections,
		Confidence:           plan.Confidence,
		ExecutionTimeSeconds: plan.ExecutionTime.Seconds(),
	}
	o.accumulate(plan, executed)

	if err := o.history.Record(ctx, run); err != nil {
		o.log.Warn(ctx, "failed to record optimization run",
			logging.RunID(run.ID),
			logging.Err(err),
		)
	}

	outcome := observability.OutcomeApplied
	if len(executed) == 0 {
		outcome = observability.OutcomeNoAction
	}
	o.observe(outcome, plan.ExecutionTime, len(executed), len(skipped))
	span.SetAttributes(
		observability.AttrRunID.String(run.ID),
		attribute.Int("executed", len(executed)),
		attribute.Int("skipped", len(skipped)),
	)

	o.log.Info(ctx, "optimization run complete",
		logging.RunID(run.ID),
		logging.Int("executed", len(executed)),
		logging.Int("skipped", len(skipped)),
		logging.Float64("confidence", plan.Confidence),
		logging.Duration("execution_time", plan.ExecutionTime),
	)

	return &OptimizationReport{
		Status:          statusSuccess,
		OptimizationRun: run,
		Recommendations: core.Recommend(after.Trains, after.Junctions),
	}, nil
}

// UpdatePosition overwrites one train's position.
func (o *Orchestrator) UpdatePosition(ctx context.Context, trainID string, pos float64) (PositionUpdate, error) {
	_, span := observability.StartSpan(ctx, "orchestrator.UpdatePosition", observability.AttrTrainID.String(trainID))
	defer span.End()

	train, err := o.fleet.UpdatePosition(trainID, pos)
	if err != nil {
		span.RecordError(err)
		return PositionUpdate{}, err
	}
	o.log.Debug(ctx, "train position updated",
		logging.TrainID(trainID),
		logging.Float64("position", train.Position),
	)
	return PositionUpdate{Status: statusSuccess, TrainID: trainID, NewPosition: train.Position}, nil
}

// EmergencyOverride stops every train and sets every signal to red. It
// always succeeds and leaves the control mode unchanged.
func (o *Orchestrator) EmergencyOverride(ctx context.Context) OverrideResult {
	o.fleet.EmergencyOverride()
	o.log.Warn(ctx, "emergency override activated")
	if o.metrics != nil {
		o.metrics.IncEmergencyOverrides()
	}

	o.mu.Lock()
	listeners := append([]OverrideListener(nil), o.listeners...)
	o.mu.Unlock()
	for _, fn := range listeners {
		fn(ctx)
	}

	return OverrideResult{
		Status:    statusSuccess,
		Message:   "Emergency override activated - all trains stopped",
		Timestamp: o.now(),
	}
}

// Recommendations returns the advisory texts for the current fleet.
func (o *Orchestrator) Recommendations(ctx context.Context) []string {
	snap := o.fleet.Snapshot()
	return core.Recommend(snap.Trains, snap.Junctions)
}

// History returns up to limit recorded runs, newest first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]store.OptimizationRun, error) {
	return o.history.Recent(ctx, limit)
}

// TickHook returns a movement tick hook that runs an optimization every
// `every` ticks while AI mode is enabled. Ticks in manual mode are ignored.
func (o *Orchestrator) TickHook(every uint64) func(ctx context.Context, simTime time.Time, tick uint64) {
	return func(ctx context.Context, simTime time.Time, tick uint64) {
		if every == 0 || tick%every != 0 || !o.fleet.AIEnabled() {
			return
		}
		if _, err := o.RunOptimization(ctx); err != nil && !errors.Is(err, ErrAIDisabled) {
			o.log.Warn(ctx, "scheduled optimization failed",
				logging.Any("tick", tick),
				logging.Err(err),
			)
		}
	}
}

func (o *Orchestrator) accumulate(plan core.Plan, executed []core.Action) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.perf.OptimizationRuns++
	o.perf.DecisionsMade += len(plan.Actions)
	o.perf.ThroughputImprovement = plan.Projections.ThroughputImprovement
	for _, a := range executed {
		o.perf.TotalDelayReduction += a.ExpectedDelayReduction
		if a.Type == core.ActionTrackSwitch {
			o.perf.ConflictsResolved++
		}
	}
}

func conflictsByTrain(trains []model.Train, conflicts []core.Conflict) map[string][]core.Conflict {
	out := make(map[string][]core.Conflict)
	for _, t := range trains {
		for _, c := range conflicts {
			if c.Involves(t.ID) {
				out[t.ID] = append(out[t.ID], c)
			}
		}
	}
	return out
}

func (o *Orchestrator) observe(outcome string, d time.Duration, executed, skipped int) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveOptimization(outcome, d, executed, skipped)
}
