// Package movement advances the fleet on a fixed tick.
package movement

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/state"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

// TickRecorder receives per-tick measurements.
type TickRecorder interface {
	ObserveTick(d time.Duration, moved int)
}

// TickHook runs after every movement tick, outside the fleet lock.
type TickHook func(ctx context.Context, simTime time.Time, tick uint64)

// Simulator drives FleetState.AdvanceTrains from a SimClock.
type Simulator struct {
	fleet  *state.FleetState
	clock  timectrl.SimClock
	motion core.MotionModel
	log    logging.Logger

	metrics TickRecorder
	hooks   []TickHook

	once sync.Once
	mu   sync.Mutex
	ctx  context.Context
}

// Option customises Simulator construction.
type Option func(*Simulator)

// WithMotionModel replaces the default linear motion.
func WithMotionModel(m core.MotionModel) Option {
	return func(s *Simulator) {
		if m != nil {
			s.motion = m
		}
	}
}

// WithMetrics attaches a tick recorder.
func WithMetrics(r TickRecorder) Option {
	return func(s *Simulator) {
		s.metrics = r
	}
}

// WithTickHook registers fn to run after each tick.
func WithTickHook(fn TickHook) Option {
	return func(s *Simulator) {
		if fn != nil {
			s.hooks = append(s.hooks, fn)
		}
	}
}

// New wires a simulator. Motion defaults to core.LinearMotionModel with the
// default step fraction.
func New(fleet *state.FleetState, clock timectrl.SimClock, log logging.Logger, opts ...Option) *Simulator {
	if log == nil {
		log = logging.Noop()
	}
	s := &Simulator{
		fleet:  fleet,
		clock:  clock,
		motion: core.NewLinearMotionModel(core.DefaultStepFraction),
		log:    log.With(logging.String("component", "movement")),
		ctx:    context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Run ticks until duration of simulation time has elapsed (duration <= 0
// runs until ctx is cancelled). Cancellation is a normal stop and returns
// nil.
func (s *Simulator) Run(ctx context.Context, duration time.Duration) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.once.Do(func() {
		s.clock.AddListener(func(simTime time.Time) {
			s.mu.Lock()
			tickCtx := s.ctx
			s.mu.Unlock()
			s.Step(tickCtx, simTime)
		})
	})

	s.log.Info(ctx, "movement simulator started",
		logging.Duration("tick", s.clock.Interval()),
	)
	<-s.clock.Start(ctx, duration)
	s.log.Info(context.Background(), "movement simulator stopped",
		logging.Any("ticks", s.clock.Ticks()),
	)
	return nil
}

// Step performs a single movement tick and returns how many trains moved.
func (s *Simulator) Step(ctx context.Context, simTime time.Time) int {
	start := time.Now()
	moved := s.fleet.AdvanceTrains(s.motion)
	elapsed := time.Since(start)

	if s.metrics != nil {
		s.metrics.ObserveTick(elapsed, moved)
	}
	s.log.Debug(ctx, "tick",
		logging.SimTime(simTime),
		logging.Int("moved", moved),
	)

	tick := s.clock.Ticks()
	for _, fn := range s.hooks {
		fn(ctx, simTime, tick)
	}
	return moved
}
