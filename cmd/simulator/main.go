package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/config"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/orchestrator"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/movement"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/state"
	"github.com/signalsfoundry/rail-corridor-sim/internal/store"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

// Summary is what a headless run reports when it finishes.
type Summary struct {
	Ticks       uint64                          `json:"ticks"`
	SimDuration time.Duration                   `json:"sim_duration"`
	Performance orchestrator.PerformanceMetrics `json:"performance_metrics"`
	Final       orchestrator.Status             `json:"final_status"`
}

func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	// Headless runs default to accelerated time with periodic optimization.
	if os.Getenv("RAIL_CLOCK_MODE") == "" {
		cfg.ClockMode = timectrl.Accelerated.String()
	}
	if os.Getenv("RAIL_OPTIMIZE_EVERY") == "" {
		cfg.OptimizeEvery = 10
	}
	duration := flag.Duration("duration", 60*time.Second, "total simulation duration")
	emitJSON := flag.Bool("json", false, "print the final summary as JSON on stdout")
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	log := logging.New(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		log.Error(context.Background(), "invalid configuration", logging.Err(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	summary, err := simulate(ctx, cfg, *duration, log)
	if err != nil {
		log.Error(ctx, "simulation failed", logging.Err(err))
		os.Exit(1)
	}
	if *emitJSON {
		if err := writeSummary(os.Stdout, summary); err != nil {
			log.Error(ctx, "failed to write summary", logging.Err(err))
			os.Exit(1)
		}
	}
}

// simulate seeds the fleet, advances it for duration of simulation time with
// an optimization every cfg.OptimizeEvery ticks, and reports the outcome.
func simulate(ctx context.Context, cfg config.Config, duration time.Duration, log logging.Logger) (Summary, error) {
	start := time.Now().UTC()
	fleetKB := kb.NewKnowledgeBase()
	if _, err := kb.LoadFleetFile(fleetKB, cfg.FleetPath, start); err != nil {
		return Summary{}, err
	}

	var fleetOpts []state.FleetStateOption
	if cfg.AIEnabled {
		fleetOpts = append(fleetOpts, state.WithInitialMode(state.ModeAIEnabled))
	}
	fleet := state.NewFleetState(fleetKB, log, fleetOpts...)

	history, err := store.Open(ctx, cfg.Store())
	if err != nil {
		return Summary{}, fmt.Errorf("open decision store: %w", err)
	}
	defer history.Close()

	motion, err := cfg.Motion()
	if err != nil {
		return Summary{}, err
	}

	clock := timectrl.NewTimeController(start, cfg.TickInterval, cfg.Clock())
	// Timestamps follow simulation time, not the wall clock.
	orch := orchestrator.New(fleet, log,
		orchestrator.WithEngine(core.NewEngine(cfg.Engine)),
		orchestrator.WithDecisionStore(history),
		orchestrator.WithClock(clock.Now),
	)

	sim := movement.New(fleet, clock, log,
		movement.WithMotionModel(motion),
		movement.WithTickHook(orch.TickHook(uint64(cfg.OptimizeEvery))),
	)

	log.Info(ctx, "starting simulation",
		logging.Duration("duration", duration),
		logging.Duration("tick", cfg.TickInterval),
		logging.String("mode", clock.Mode.String()),
		logging.String("motion", cfg.MotionModel),
		logging.Bool("ai_enabled", fleet.AIEnabled()),
	)
	if err := sim.Run(ctx, duration); err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Ticks:       clock.Ticks(),
		SimDuration: clock.Now().Sub(start),
		Performance: orch.Performance(),
		Final:       orch.Status(ctx),
	}
	log.Info(ctx, "simulation complete",
		logging.Any("ticks", summary.Ticks),
		logging.Int("optimization_runs", summary.Performance.OptimizationRuns),
		logging.Int("total_delay_reduction", summary.Performance.TotalDelayReduction),
		logging.Float64("avg_delay", summary.Final.TrafficAnalysis.AvgDelay),
	)
	for _, t := range summary.Final.Trains {
		log.Debug(ctx, "final train state",
			logging.TrainID(t.ID),
			logging.Float64("position", t.Position),
			logging.String("track", string(t.Track)),
			logging.Int("delay", t.Delay),
		)
	}
	return summary, nil
}

func writeSummary(w io.Writer, s Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
