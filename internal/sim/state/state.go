// internal/sim/state/state.go
package state

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
	"github.com/signalsfoundry/rail-corridor-sim/model"
)

var (
	// ErrTrainNotFound indicates a requested train was not found. It is the
	// kb sentinel so errors.Is works against either package.
	ErrTrainNotFound = kb.ErrTrainNotFound
	// ErrAIDisabled indicates an optimization was requested in manual mode.
	ErrAIDisabled = errors.New("AI optimization is disabled")
	// ErrInvalidPosition indicates a position that is not a finite number.
	ErrInvalidPosition = errors.New("invalid position")
)

// Mode is the control mode of the fleet.
type Mode string

const (
	ModeManual    Mode = "manual"
	ModeAIEnabled Mode = "ai_enabled"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeManual, ModeAIEnabled:
		return true
	default:
		return false
	}
}

// DefaultSystemStatus is the status label reported while the process runs.
const DefaultSystemStatus = "active"

// Reasons attached to skipped actions.
const (
	SkipTrainNotFound     = "train_not_found"
	SkipUnsupportedAction = "unsupported_action"
)

// ActionResult records what happened to one proposed action.
type ActionResult struct {
	Action   core.Action `json:"action"`
	Executed bool        `json:"executed"`
	Reason   string      `json:"reason,omitempty"`
}

// FleetSnapshot is a consistent copy of the fleet taken under the read lock.
// Callers own the slices.
type FleetSnapshot struct {
	Mode         Mode
	SystemStatus string
	Trains       []model.Train
	Junctions    []model.Junction
	Signals      []model.Signal
}

// FleetMetricsRecorder receives fleet-level gauges after every mutation.
type FleetMetricsRecorder interface {
	SetFleetCounts(trains, moving int, aiEnabled bool)
}

// FleetState is the exclusive-access boundary around the fleet. Every
// mutation of trains, signals or the mode goes through it.
type FleetState struct {
	// mu guards mode, systemStatus and all writes to fleet. Take this before
	// the KB lock to keep the FleetState -> KB lock order.
	mu sync.RWMutex

	fleet *kb.KnowledgeBase

	mode         Mode
	systemStatus string

	log     logging.Logger
	metrics FleetMetricsRecorder
}

// FleetStateOption customises FleetState construction.
type FleetStateOption func(*FleetState)

// WithMetricsRecorder attaches an optional metrics recorder for fleet gauges.
func WithMetricsRecorder(m FleetMetricsRecorder) FleetStateOption {
	return func(s *FleetState) {
		s.metrics = m
	}
}

// WithInitialMode starts the fleet in the given mode instead of manual.
func WithInitialMode(m Mode) FleetStateOption {
	return func(s *FleetState) {
		if m.Valid() {
			s.mode = m
		}
	}
}

// NewFleetState wraps a populated knowledge base. The fleet starts in manual
// mode.
func NewFleetState(fleet *kb.KnowledgeBase, log logging.Logger, opts ...FleetStateOption) *FleetState {
	if fleet == nil {
		fleet = kb.NewKnowledgeBase()
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &FleetState{
		fleet:        fleet,
		mode:         ModeManual,
		systemStatus: DefaultSystemStatus,
		log:          log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.updateMetricsLocked()
	return s
}

// Snapshot returns a coherent copy of the fleet.
func (s *FleetState) Snapshot() FleetSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return FleetSnapshot{
		Mode:         s.mode,
		SystemStatus: s.systemStatus,
		Trains:       s.fleet.ListTrains(),
		Junctions:    s.fleet.ListJunctions(),
		Signals:      s.fleet.ListSignals(),
	}
}

// Mode returns the current control mode.
func (s *FleetState) Mode() Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// AIEnabled reports whether optimizations may run.
func (s *FleetState) AIEnabled() bool {
	return s.Mode() == ModeAIEnabled
}

// SystemStatus returns the status label.
func (s *FleetState) SystemStatus() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemStatus
}

// EnableAI switches to AI-enabled mode and reports whether the mode changed.
func (s *FleetState) EnableAI() bool {
	return s.setMode(ModeAIEnabled)
}

// DisableAI switches to manual mode and reports whether the mode changed.
func (s *FleetState) DisableAI() bool {
	return s.setMode(ModeManual)
}

func (s *FleetState) setMode(m Mode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode == m {
		return false
	}
	s.mode = m
	s.updateMetricsLocked()
	return true
}

// ApplyActions executes a plan against the live fleet. The mode is checked
// again under the write lock so a plan computed before a concurrent
// DisableAI is never applied. Actions are applied in order without rollback;
// an action whose train has disappeared is skipped rather than failing the
// batch.
func (s *FleetState) ApplyActions(ctx context.Context, actions []core.Action) ([]ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != ModeAIEnabled {
		return nil, ErrAIDisabled
	}

	results := make([]ActionResult, 0, len(actions))
	for _, a := range actions {
		res := ActionResult{Action: a}
		switch a.Type {
		case core.ActionTrackSwitch:
			err := s.fleet.UpdateTrain(a.TrainID, func(t *model.Train) {
				t.Track = a.ToTrack
				t.Delay = max(0, t.Delay-a.ExpectedDelayReduction)
			})
			switch {
			case err == nil:
				res.Executed = true
			case errors.Is(err, kb.ErrTrainNotFound):
				res.Reason = SkipTrainNotFound
			default:
				return results, fmt.Errorf("apply %s to %q: %w", a.Type, a.TrainID, err)
			}
		default:
			res.Reason = SkipUnsupportedAction
		}
		if !res.Executed {
			s.log.Debug(ctx, "action skipped",
				logging.TrainID(a.TrainID),
				logging.String("action", string(a.Type)),
				logging.String("reason", res.Reason),
			)
		}
		results = append(results, res)
	}
	s.updateMetricsLocked()
	return results, nil
}

// UpdatePosition overwrites the position of one train and returns the
// updated train. Any finite value is stored as given; a position past the end
// of the corridor wraps on the train's next movement tick.
func (s *FleetState) UpdatePosition(id string, pos float64) (model.Train, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.fleet.GetTrain(id); err != nil {
		return model.Train{}, err
	}
	if math.IsNaN(pos) || math.IsInf(pos, 0) {
		return model.Train{}, fmt.Errorf("%w: %v", ErrInvalidPosition, pos)
	}

	var updated model.Train
	if err := s.fleet.UpdateTrain(id, func(t *model.Train) {
		t.Position = pos
		updated = *t
	}); err != nil {
		return model.Train{}, err
	}
	return updated, nil
}

// EmergencyOverride stops every train and sets every signal to red. The mode
// and status label are left untouched. It is idempotent.
func (s *FleetState) EmergencyOverride() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fleet.UpdateAllTrains(func(t *model.Train) {
		t.Speed = 0
	})
	s.fleet.UpdateAllSignals(func(sig *model.Signal) {
		sig.State = model.SignalRed
	})
	s.updateMetricsLocked()
}

// AdvanceTrains runs one movement tick under the write lock and returns the
// number of trains that moved.
func (s *FleetState) AdvanceTrains(motion core.MotionModel) int {
	if motion == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	moved := 0
	s.fleet.UpdateAllTrains(func(t *model.Train) {
		if motion.Advance(t) {
			moved++
		}
	})
	return moved
}

// updateMetricsLocked pushes current fleet gauges into the metrics recorder.
// Caller must hold s.mu when invoking this helper.
func (s *FleetState) updateMetricsLocked() {
	if s == nil || s.metrics == nil {
		return
	}
	trains := s.fleet.ListTrains()
	moving := 0
	for _, t := range trains {
		if t.Speed > 0 {
			moving++
		}
	}
	s.metrics.SetFleetCounts(len(trains), moving, s.mode == ModeAIEnabled)
}
