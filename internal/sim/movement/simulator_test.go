package movement

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/state"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
	"github.com/signalsfoundry/rail-corridor-sim/model"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

var epoch = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func newFleet(t *testing.T, trains ...model.Train) *state.FleetState {
	t.Helper()
	store := kb.NewKnowledgeBase()
	for _, tr := range trains {
		if err := store.AddTrain(tr); err != nil {
			t.Fatalf("AddTrain(%s): %v", tr.ID, err)
		}
	}
	return state.NewFleetState(store, logging.Noop())
}

func train(id string, pos, speed float64) model.Train {
	return model.Train{
		ID:       id,
		Type:     model.TrainFreight,
		Position: pos,
		Speed:    speed,
		Priority: model.PriorityLow,
		Track:    model.TrackSecondary,
	}
}

type recorder struct {
	mu    sync.Mutex
	ticks int
	moved int
}

func (r *recorder) ObserveTick(_ time.Duration, moved int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks++
	r.moved += moved
}

func TestRunAdvancesForDuration(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 10, 2), train("FRT-2", 50, 0))
	clock := timectrl.NewTimeController(epoch, time.Second, timectrl.Accelerated)
	rec := &recorder{}

	sim := New(fleet, clock, logging.Noop(), WithMetrics(rec))
	if err := sim.Run(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}

	snap := fleet.Snapshot()
	if got := snap.Trains[0].Position; math.Abs(got-11) > 1e-9 {
		t.Fatalf("FRT-1 position = %v, want 11 after 5 ticks", got)
	}
	if got := snap.Trains[1].Position; got != 50 {
		t.Fatalf("stopped FRT-2 position = %v, want 50", got)
	}
	if rec.ticks != 5 || rec.moved != 5 {
		t.Fatalf("recorder = %d ticks / %d moved, want 5 / 5", rec.ticks, rec.moved)
	}
	if got := clock.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("clock.Now() = %v, want epoch+5s", got)
	}
}

func TestRunWrapsAtCorridorEnd(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 99, 15))
	clock := timectrl.NewTimeController(epoch, time.Second, timectrl.Accelerated)

	if err := New(fleet, clock, logging.Noop()).Run(context.Background(), time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fleet.Snapshot().Trains[0].Position; got != 0 {
		t.Fatalf("position = %v, want 0 after wrap", got)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 0, 0.001))
	clock := timectrl.NewTimeController(epoch, time.Millisecond, timectrl.RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(fleet, clock, logging.Noop()).Run(ctx, 0) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned %v on cancel, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestTickHooksSeeTickNumber(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 0, 1))
	clock := timectrl.NewTimeController(epoch, time.Second, timectrl.Accelerated)

	var seen []uint64
	sim := New(fleet, clock, logging.Noop(), WithTickHook(func(_ context.Context, _ time.Time, tick uint64) {
		seen = append(seen, tick)
	}))
	if err := sim.Run(context.Background(), 3*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(seen) != 3 || seen[0] != 1 || seen[2] != 3 {
		t.Fatalf("hook ticks = %v, want [1 2 3]", seen)
	}
}

func TestMovementStopsAfterEmergency(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 20, 3))
	fleet.EmergencyOverride()
	clock := timectrl.NewTimeController(epoch, time.Second, timectrl.Accelerated)

	if err := New(fleet, clock, logging.Noop()).Run(context.Background(), 10*time.Second); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fleet.Snapshot().Trains[0].Position; got != 20 {
		t.Fatalf("position = %v, want 20 after override", got)
	}
}

// stepClock fires a fixed number of ticks as soon as Start is called.
type stepClock struct {
	mu        sync.Mutex
	now       time.Time
	ticks     uint64
	steps     int
	listeners []func(time.Time)
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Ticks() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

func (c *stepClock) Interval() time.Duration { return time.Minute }

func (c *stepClock) AddListener(fn func(time.Time)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *stepClock) Start(context.Context, time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < c.steps; i++ {
			c.mu.Lock()
			c.now = c.now.Add(time.Minute)
			c.ticks++
			now, listeners := c.now, append([]func(time.Time){}, c.listeners...)
			c.mu.Unlock()
			for _, fn := range listeners {
				fn(now)
			}
		}
	}()
	return done
}

func TestRunWithCustomClock(t *testing.T) {
	fleet := newFleet(t, train("FRT-1", 10, 5))
	clock := &stepClock{now: epoch, steps: 4}

	var last time.Time
	sim := New(fleet, clock, logging.Noop(), WithTickHook(func(_ context.Context, simTime time.Time, _ uint64) {
		last = simTime
	}))
	if err := sim.Run(context.Background(), 0); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := fleet.Snapshot().Trains[0].Position; math.Abs(got-12) > 1e-9 {
		t.Fatalf("FRT-1 position = %v, want 12 after 4 ticks", got)
	}
	if !last.Equal(epoch.Add(4 * time.Minute)) {
		t.Fatalf("last hook time = %v, want epoch+4m", last)
	}
}
