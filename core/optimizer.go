package core

import (
	"math"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// ActionType identifies what an optimization action asks the fleet to do.
type ActionType string

const (
	// ActionTrackSwitch moves a train from its current track class to the
	// other one via a nearby junction.
	ActionTrackSwitch ActionType = "track_switch"
)

// Action is a single recommendation produced by the Engine.
type Action struct {
	Type                   ActionType  `json:"type"`
	TrainID                string      `json:"train_id"`
	JunctionID             string      `json:"junction_id"`
	FromTrack              model.Track `json:"from_track"`
	ToTrack                model.Track `json:"to_track"`
	Confidence             float64     `json:"confidence"`
	ExpectedDelayReduction int         `json:"expected_delay_reduction"`
}

// Projections aggregates the expected effect of a set of actions.
type Projections struct {
	DelayReduction        int `json:"delay_reduction"`
	ThroughputImprovement int `json:"throughput_improvement"` // percent
	ConflictsResolved     int `json:"conflicts_resolved"`
}

// Plan is the read-only output of one Engine run.
type Plan struct {
	Actions       []Action      `json:"actions"`
	Projections   Projections   `json:"predicted_improvements"`
	Confidence    float64       `json:"confidence"`
	ExecutionTime time.Duration `json:"-"`
}

// EngineConfig holds the tunable constants of the optimization procedure.
type EngineConfig struct {
	// JunctionRange is the strict distance within which a junction is
	// reachable from a train.
	JunctionRange float64
	// MinImprovement is the score gain a switch must exceed to be proposed.
	MinImprovement float64
	// ThroughputPerAction and ThroughputCap shape the throughput projection
	// (percent).
	ThroughputPerAction int
	ThroughputCap       int
}

// DefaultEngineConfig returns the reference tuning.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		JunctionRange:       30,
		MinImprovement:      0.1,
		ThroughputPerAction: 5,
		ThroughputCap:       30,
	}
}

// Engine proposes track switches that should reduce delay. It never mutates
// its inputs.
type Engine struct {
	cfg EngineConfig
	now func() time.Time
}

// NewEngine constructs an Engine. A zero config falls back to
// DefaultEngineConfig.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg == (EngineConfig{}) {
		cfg = DefaultEngineConfig()
	}
	return &Engine{cfg: cfg, now: time.Now}
}

// Config returns the engine's tuning.
func (e *Engine) Config() EngineConfig {
	return e.cfg
}

// Optimize evaluates every train against the junctions in range and returns
// at most one action per train together with aggregate projections.
func (e *Engine) Optimize(trains []model.Train, junctions []model.Junction) Plan {
	start := e.now()

	actions := make([]Action, 0)
	for _, train := range trains {
		if action, ok := e.bestAction(train, trains, junctions); ok {
			actions = append(actions, action)
		}
	}

	return Plan{
		Actions:       actions,
		Projections:   e.Project(actions),
		Confidence:    MeanConfidence(actions),
		ExecutionTime: e.now().Sub(start),
	}
}

// bestAction walks the nearby junctions in order and keeps the candidate with
// the strictly greatest gain, so the first junction wins a tie.
func (e *Engine) bestAction(train model.Train, all []model.Train, junctions []model.Junction) (Action, bool) {
	var (
		best      Action
		bestScore float64
		found     bool
	)

	for _, junction := range junctions {
		if math.Abs(junction.Position-train.Position) >= e.cfg.JunctionRange {
			continue
		}

		current := ScoreTrack(train, all, train.Track)
		alternate := train.Track.Opposite()
		alt := ScoreTrack(train, all, alternate)

		if alt <= current+e.cfg.MinImprovement {
			continue
		}
		gain := alt - current
		if gain <= bestScore {
			continue
		}
		bestScore = gain
		found = true
		best = Action{
			Type:                   ActionTrackSwitch,
			TrainID:                train.ID,
			JunctionID:             junction.ID,
			FromTrack:              train.Track,
			ToTrack:                alternate,
			Confidence:             math.Min(gain, 1.0),
			ExpectedDelayReduction: int(math.Floor(gain * 10)),
		}
	}

	return best, found
}

// Project aggregates the expected improvements of actions.
func (e *Engine) Project(actions []Action) Projections {
	var p Projections
	for _, a := range actions {
		p.DelayReduction += a.ExpectedDelayReduction
		switch a.Type {
		case ActionTrackSwitch:
			p.ConflictsResolved++
		}
	}
	p.ThroughputImprovement = len(actions) * e.cfg.ThroughputPerAction
	if p.ThroughputImprovement > e.cfg.ThroughputCap {
		p.ThroughputImprovement = e.cfg.ThroughputCap
	}
	return p
}

// MeanConfidence is the arithmetic mean of the actions' confidence, or 0 for
// an empty set.
func MeanConfidence(actions []Action) float64 {
	if len(actions) == 0 {
		return 0
	}
	var sum float64
	for _, a := range actions {
		sum += a.Confidence
	}
	return sum / float64(len(actions))
}
