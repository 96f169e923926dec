package main

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/config"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
	"github.com/signalsfoundry/rail-corridor-sim/model"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

func headlessConfig() config.Config {
	cfg := config.Default()
	cfg.ClockMode = timectrl.Accelerated.String()
	cfg.TickInterval = time.Second
	cfg.OptimizeEvery = 5
	return cfg
}

// TestSimulateAIEnabled runs a short accelerated simulation with periodic
// optimization.
func TestSimulateAIEnabled(t *testing.T) {
	cfg := headlessConfig()
	cfg.AIEnabled = true

	summary, err := simulate(context.Background(), cfg, 20*time.Second, logging.Noop())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.Ticks != 20 {
		t.Fatalf("Ticks = %d, want 20", summary.Ticks)
	}
	if summary.SimDuration != 20*time.Second {
		t.Fatalf("SimDuration = %v, want 20s", summary.SimDuration)
	}
	if got := summary.Performance.OptimizationRuns; got != 4 {
		t.Fatalf("OptimizationRuns = %d, want 4", got)
	}
	for _, tr := range summary.Final.Trains {
		if !model.InCorridor(tr.Position) {
			t.Fatalf("train %s left the corridor: %v", tr.ID, tr.Position)
		}
		if tr.Delay < 0 {
			t.Fatalf("train %s delay = %d, want >= 0", tr.ID, tr.Delay)
		}
	}
}

func TestSimulateManualNeverOptimizes(t *testing.T) {
	summary, err := simulate(context.Background(), headlessConfig(), 10*time.Second, logging.Noop())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.Performance.OptimizationRuns != 0 {
		t.Fatalf("OptimizationRuns = %d in manual mode, want 0", summary.Performance.OptimizationRuns)
	}
	// EXP-001 starts at 10 with speed 2.0 and advances 0.2 per tick.
	for _, tr := range summary.Final.Trains {
		if tr.ID == "EXP-001" && (tr.Position < 11.99 || tr.Position > 12.01) {
			t.Fatalf("EXP-001 position = %v, want 12", tr.Position)
		}
	}
}

func TestSimulateStaticMotionKeepsPositions(t *testing.T) {
	cfg := headlessConfig()
	cfg.MotionModel = core.MotionStatic

	summary, err := simulate(context.Background(), cfg, 10*time.Second, logging.Noop())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	start := make(map[string]float64)
	for _, tr := range kb.SampleFleet(time.Now()).Trains {
		start[tr.ID] = tr.Position
	}
	for _, tr := range summary.Final.Trains {
		if tr.Position != start[tr.ID] {
			t.Fatalf("train %s position = %v, want unchanged %v", tr.ID, tr.Position, start[tr.ID])
		}
	}
}

func TestSimulateEngineTuning(t *testing.T) {
	cfg := headlessConfig()
	cfg.AIEnabled = true
	// No track switch can gain more than this, so every run proposes nothing.
	cfg.Engine.MinImprovement = 1000

	summary, err := simulate(context.Background(), cfg, 10*time.Second, logging.Noop())
	if err != nil {
		t.Fatalf("simulate: %v", err)
	}
	if summary.Performance.OptimizationRuns != 2 {
		t.Fatalf("OptimizationRuns = %d, want 2", summary.Performance.OptimizationRuns)
	}
	if summary.Performance.DecisionsMade != 0 {
		t.Fatalf("DecisionsMade = %d, want 0", summary.Performance.DecisionsMade)
	}
}

func TestWriteSummary(t *testing.T) {
	var buf bytes.Buffer
	if err := writeSummary(&buf, Summary{Ticks: 3}); err != nil {
		t.Fatalf("writeSummary: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("summary is not JSON: %v", err)
	}
	if decoded["ticks"] != float64(3) {
		t.Fatalf("ticks = %v, want 3", decoded["ticks"])
	}
}
