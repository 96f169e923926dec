package state

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/model"
)

// TestTickLoopAndCommandsConcurrency runs the movement tick alongside
// concurrent commands to verify we stay race-free and the fleet invariants
// hold.
func TestTickLoopAndCommandsConcurrency(t *testing.T) {
	s := newSampleFleetState(t, WithInitialMode(ModeAIEnabled))
	motion := core.NewLinearMotionModel(core.DefaultStepFraction)
	engine := core.NewEngine(core.DefaultEngineConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	var wg sync.WaitGroup
	var ticks atomic.Int64

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(2 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.AdvanceTrains(motion)
				ticks.Add(1)
			}
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(worker)))
			for ctx.Err() == nil {
				switch rng.Intn(4) {
				case 0:
					snap := s.Snapshot()
					plan := engine.Optimize(snap.Trains, snap.Junctions)
					_, _ = s.ApplyActions(ctx, plan.Actions)
				case 1:
					id := fmt.Sprintf("EXP-00%d", 1+rng.Intn(2))
					_, _ = s.UpdatePosition(id, rng.Float64()*model.CorridorLength)
				case 2:
					if rng.Intn(2) == 0 {
						s.EnableAI()
					} else {
						s.DisableAI()
					}
				default:
					_ = s.SystemStatus()
				}
			}
		}(w)
	}

	wg.Wait()

	if ticks.Load() == 0 {
		t.Fatalf("tick loop never ran")
	}
	for _, tr := range s.Snapshot().Trains {
		if !model.InCorridor(tr.Position) {
			t.Fatalf("train %s position %v outside corridor", tr.ID, tr.Position)
		}
		if tr.Delay < 0 {
			t.Fatalf("train %s delay %d negative", tr.ID, tr.Delay)
		}
	}
}
