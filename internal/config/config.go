// Package config assembles process configuration from .env files, RAIL_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/internal/logging"
	"github.com/signalsfoundry/rail-corridor-sim/internal/observability"
	"github.com/signalsfoundry/rail-corridor-sim/internal/store"
	"github.com/signalsfoundry/rail-corridor-sim/timectrl"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the full runtime configuration of the corridor server and the
// headless simulator.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string // empty disables the metrics listener

	// FleetPath points at a JSON fleet snapshot. Empty seeds the sample fleet.
	FleetPath string

	StoreDriver string
	StoreDSN    string

	TickInterval time.Duration
	ClockMode    string
	// OptimizeEvery runs an optimization every N movement ticks while AI mode
	// is enabled. Zero leaves optimization to API callers.
	OptimizeEvery int
	AIEnabled     bool
	// MotionModel names the per-tick motion: linear or static.
	MotionModel string
	Engine      core.EngineConfig

	CORSOrigins     []string
	ShutdownTimeout time.Duration

	LogLevel  string
	LogFormat string

	Tracing observability.TracingConfig
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		HTTPAddr:        ":8080",
		GRPCAddr:        ":50051",
		MetricsAddr:     ":9090",
		StoreDriver:     store.DriverMemory,
		TickInterval:    time.Second,
		ClockMode:       timectrl.RealTime.String(),
		MotionModel:     core.MotionLinear,
		Engine:          core.DefaultEngineConfig(),
		CORSOrigins:     []string{"*"},
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
		LogFormat:       "text",
	}
}

// Load reads the given .env files (missing files are ignored, later files
// override earlier ones) and then builds a Config from the environment.
func Load(envFiles ...string) (Config, error) {
	for i, path := range envFiles {
		if path == "" {
			continue
		}
		var err error
		if i == 0 {
			err = godotenv.Load(path)
		} else {
			err = godotenv.Overload(path)
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv overlays RAIL_* environment variables on Default.
func FromEnv() (Config, error) {
	cfg := Default()

	if v := firstEnv("RAIL_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	} else if port := os.Getenv("PORT"); port != "" {
		cfg.HTTPAddr = ":" + port
	}
	if v, ok := os.LookupEnv("RAIL_GRPC_ADDR"); ok {
		cfg.GRPCAddr = v
	}
	if v, ok := os.LookupEnv("RAIL_METRICS_ADDR"); ok {
		cfg.MetricsAddr = v
	}
	cfg.FleetPath = os.Getenv("RAIL_FLEET_FILE")

	if v := os.Getenv("RAIL_STORE_DRIVER"); v != "" {
		cfg.StoreDriver = strings.ToLower(v)
	}
	cfg.StoreDSN = os.Getenv("RAIL_STORE_DSN")
	if cfg.StoreDSN == "" {
		switch cfg.StoreDriver {
		case store.DriverPostgres:
			cfg.StoreDSN = os.Getenv("DATABASE_URL")
		case store.DriverSQLite:
			cfg.StoreDSN = os.Getenv("SQLITE_DATABASE")
		}
	}

	var errs []error
	if v := os.Getenv("RAIL_TICK_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_TICK_INTERVAL: %w", err))
		}
		cfg.TickInterval = d
	}
	if v := os.Getenv("RAIL_CLOCK_MODE"); v != "" {
		cfg.ClockMode = strings.ToLower(v)
	}
	if v := os.Getenv("RAIL_OPTIMIZE_EVERY"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_OPTIMIZE_EVERY: %w", err))
		}
		cfg.OptimizeEvery = n
	}
	if v := os.Getenv("RAIL_AI_ENABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_AI_ENABLED: %w", err))
		}
		cfg.AIEnabled = b
	}
	if v := os.Getenv("RAIL_MOTION_MODEL"); v != "" {
		cfg.MotionModel = strings.ToLower(v)
	}
	if v := os.Getenv("RAIL_JUNCTION_RANGE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_JUNCTION_RANGE: %w", err))
		}
		cfg.Engine.JunctionRange = f
	}
	if v := os.Getenv("RAIL_MIN_IMPROVEMENT"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_MIN_IMPROVEMENT: %w", err))
		}
		cfg.Engine.MinImprovement = f
	}
	if v := os.Getenv("RAIL_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = splitList(v)
	}
	if v := os.Getenv("RAIL_SHUTDOWN_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("RAIL_SHUTDOWN_TIMEOUT: %w", err))
		}
		cfg.ShutdownTimeout = d
	}
	if v := firstEnv("RAIL_LOG_LEVEL", "LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := firstEnv("RAIL_LOG_FORMAT", "LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	cfg.Tracing = observability.TracingConfigFromEnv()

	if len(errs) > 0 {
		return cfg, fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return cfg, nil
}

// BindFlags registers flags on fs whose defaults are the current values of
// c, so parsing fs lets the command line override the environment.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.HTTPAddr, "http-addr", c.HTTPAddr, "HTTP address the corridor API listens on")
	fs.StringVar(&c.GRPCAddr, "grpc-addr", c.GRPCAddr, "TCP address of the gRPC health server (empty disables)")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "HTTP address for Prometheus /metrics (empty disables)")
	fs.StringVar(&c.FleetPath, "fleet", c.FleetPath, "Path to a JSON fleet snapshot; empty seeds the sample fleet")
	fs.StringVar(&c.StoreDriver, "store", c.StoreDriver, "Decision history backend: memory, sqlite or postgres")
	fs.StringVar(&c.StoreDSN, "store-dsn", c.StoreDSN, "sqlite file path or postgres connection URL")
	fs.DurationVar(&c.TickInterval, "tick", c.TickInterval, "Simulation tick interval")
	fs.StringVar(&c.ClockMode, "clock", c.ClockMode, "Clock mode: realtime or accelerated")
	fs.IntVar(&c.OptimizeEvery, "optimize-every", c.OptimizeEvery, "Run an optimization every N ticks while AI is enabled (0 disables)")
	fs.BoolVar(&c.AIEnabled, "ai", c.AIEnabled, "Start in AI-enabled mode")
	fs.StringVar(&c.MotionModel, "motion", c.MotionModel, "Train motion per tick: linear or static")
	fs.Float64Var(&c.Engine.JunctionRange, "junction-range", c.Engine.JunctionRange, "Distance within which a junction can switch a train")
	fs.Float64Var(&c.Engine.MinImprovement, "min-improvement", c.Engine.MinImprovement, "Score gain a track switch must exceed")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "Log level: debug, info, warn or error")
	fs.StringVar(&c.LogFormat, "log-format", c.LogFormat, "Log format: text or json")
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http address is required"))
	}
	if c.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %v", c.TickInterval))
	}
	switch c.ClockMode {
	case timectrl.RealTime.String(), timectrl.Accelerated.String():
	default:
		errs = append(errs, fmt.Errorf("unknown clock mode %q", c.ClockMode))
	}
	if c.OptimizeEvery < 0 {
		errs = append(errs, fmt.Errorf("optimize-every must not be negative, got %d", c.OptimizeEvery))
	}
	if _, err := core.ParseMotionModel(c.MotionModel); err != nil {
		errs = append(errs, err)
	}
	if c.Engine.JunctionRange <= 0 {
		errs = append(errs, fmt.Errorf("junction range must be positive, got %v", c.Engine.JunctionRange))
	}
	if c.Engine.MinImprovement < 0 {
		errs = append(errs, fmt.Errorf("min improvement must not be negative, got %v", c.Engine.MinImprovement))
	}
	switch c.StoreDriver {
	case "", store.DriverMemory:
	case store.DriverSQLite, store.DriverPostgres:
		if c.StoreDSN == "" {
			errs = append(errs, fmt.Errorf("store %q needs a DSN", c.StoreDriver))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.StoreDriver))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Clock returns the parsed clock mode.
func (c Config) Clock() timectrl.Mode {
	return timectrl.ParseMode(c.ClockMode)
}

// Motion returns the configured motion model.
func (c Config) Motion() (core.MotionModel, error) {
	return core.ParseMotionModel(c.MotionModel)
}

// Store returns the decision store configuration.
func (c Config) Store() store.Config {
	return store.Config{Driver: c.StoreDriver, DSN: c.StoreDSN}
}

// Logging returns the logger configuration.
func (c Config) Logging() logging.Config {
	return logging.Config{Level: c.LogLevel, Format: c.LogFormat, AddSource: true}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
