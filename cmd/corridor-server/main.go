package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/api"
	"github.com/signalsfoundry/rail-corridor-sim/internal/config"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/observability"
	"github.com/signalsfoundry/rail-corridor-sim/internal/orchestrator"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/movement"
	"github.com/signalsfoundry/rail-corridor-sim/internal/sim/state"
	"github.com/signalsfoundry/rail-corridor-sim/internal/store"
	"github.com/signalsfoundry/rail-corridor-sim/kb"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

func main() {
	cfg, err := config.Load(".env", ".env.local")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	cfg.BindFlags(flag.CommandLine)
	flag.Parse()

	log := logging.New(cfg.Logging())
	if err := cfg.Validate(); err != nil {
		log.Error(context.Background(), "invalid configuration", logging.Err(err))
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lis, err := net.Listen("tcp", cfg.HTTPAddr)
	if err != nil {
		log.Error(ctx, "failed to listen for HTTP", logging.String("addr", cfg.HTTPAddr), logging.Err(err))
		os.Exit(1)
	}

	if err := run(ctx, cfg, log, lis); err != nil {
		log.Error(ctx, "corridor server exited", logging.Err(err))
		os.Exit(1)
	}
}

// run serves the corridor API on lis, plus the gRPC health and metrics
// listeners named in cfg, and drives the movement simulator until ctx is
// cancelled or one of them fails.
func run(ctx context.Context, cfg config.Config, log logging.Logger, lis net.Listener) error {
	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	reg := prometheus.NewRegistry()
	collector, err := observability.NewCorridorCollector(reg)
	if err != nil {
		return fmt.Errorf("metrics collector: %w", err)
	}
	simMetrics, err := observability.NewSimulatorCollector(reg)
	if err != nil {
		return fmt.Errorf("simulator metrics: %w", err)
	}

	now := time.Now().UTC()
	fleetKB := kb.NewKnowledgeBase()
	summary, err := kb.LoadFleetFile(fleetKB, cfg.FleetPath, now)
	if err != nil {
		return err
	}
	log.Info(ctx, "fleet loaded",
		logging.String("source", fleetSource(cfg.FleetPath)),
		logging.Int("trains", len(summary.TrainIDs)),
		logging.Int("junctions", len(summary.JunctionIDs)),
		logging.Int("signals", len(summary.SignalIDs)),
	)

	fleetOpts := []state.FleetStateOption{state.WithMetricsRecorder(collector)}
	if cfg.AIEnabled {
		fleetOpts = append(fleetOpts, state.WithInitialMode(state.ModeAIEnabled))
	}
	fleet := state.NewFleetState(fleetKB, log, fleetOpts...)

	history, err := store.Open(ctx, cfg.Store())
	if err != nil {
		return fmt.Errorf("open decision store: %w", err)
	}
	defer history.Close()

	motion, err := cfg.Motion()
	if err != nil {
		return err
	}

	orch := orchestrator.New(fleet, log,
		orchestrator.WithEngine(core.NewEngine(cfg.Engine)),
		orchestrator.WithDecisionStore(history),
		orchestrator.WithMetrics(collector),
	)

	clock := timectrl.NewTimeController(now, cfg.TickInterval, cfg.Clock())
	sim := movement.New(fleet, clock, log,
		movement.WithMotionModel(motion),
		movement.WithMetrics(simMetrics),
		movement.WithTickHook(orch.TickHook(uint64(cfg.OptimizeEvery))),
	)

	httpSrv := &http.Server{
		Handler: api.NewRouter(orch, log,
			api.WithCollector(collector),
			api.WithCORSOrigins(cfg.CORSOrigins),
		),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var grpcSrv *grpc.Server
	var grpcLis net.Listener
	if cfg.GRPCAddr != "" {
		grpcLis, err = net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("listen for gRPC on %s: %w", cfg.GRPCAddr, err)
		}
		grpcSrv, _ = api.NewGRPCServer(orch, log, collector)
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", collector.Handler())
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info(ctx, "serving corridor API", logging.String("addr", lis.Addr().String()))
		if err := httpSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcSrv != nil {
		g.Go(func() error {
			log.Info(ctx, "serving gRPC health", logging.String("addr", grpcLis.Addr().String()))
			if err := grpcSrv.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}
	if metricsSrv != nil {
		g.Go(func() error {
			log.Info(ctx, "serving Prometheus metrics", logging.String("addr", cfg.MetricsAddr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return sim.Run(gctx, 0)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down corridor server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if grpcSrv != nil {
			grpcSrv.GracefulStop()
		}
		if metricsSrv != nil {
			_ = metricsSrv.Shutdown(shutdownCtx)
		}
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func fleetSource(path string) string {
	if path == "" {
		return "sample"
	}
	return path
}
