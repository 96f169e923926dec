// Package store keeps a history of optimization runs.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/rail-corridor-sim/core"
)

// Backend drivers accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const (
	// DefaultLimit is used by Recent when the caller passes limit <= 0.
	DefaultLimit = 20
	// MaxLimit caps Recent regardless of the caller's limit.
	MaxLimit = 500
)

// ErrUnknownDriver is returned by Open for an unsupported driver name.
var ErrUnknownDriver = errors.New("unknown store driver")

// SkippedAction is an action that was proposed but not applied.
type SkippedAction struct {
	core.Action
	Reason string `json:"reason"`
}

// OptimizationRun is one recorded optimization pass.
type OptimizationRun struct {
	ID                   string           `json:"run_id"`
	Timestamp            time.Time        `json:"timestamp"`
	ExecutedActions      []core.Action    `json:"executed_actions"`
	SkippedActions       []SkippedAction  `json:"skipped_actions"`
	Projections          core.Projections `json:"predicted_improvements"`
	Confidence           float64          `json:"confidence"`
	ExecutionTimeSeconds float64          `json:"execution_time_seconds"`
}

// DecisionStore persists optimization runs. Recent returns the newest runs
// first.
type DecisionStore interface {
	Record(ctx context.Context, run OptimizationRun) error
	Recent(ctx context.Context, limit int) ([]OptimizationRun, error)
	Close() error
}

// Config selects and parameterises a backend.
type Config struct {
	Driver string
	// DSN is a file path for sqlite and a connection URL for postgres.
	DSN string
	// MemoryCapacity bounds the in-memory backend.
	MemoryCapacity int
}

// Open constructs the backend named by cfg.Driver. An empty driver selects
// the in-memory store.
func Open(ctx context.Context, cfg Config) (DecisionStore, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", DriverMemory:
		return NewMemoryStore(cfg.MemoryCapacity), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, cfg.DSN)
	case DriverPostgres, "postgresql", "pgx":
		return NewPostgresStore(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func validateRun(run OptimizationRun) error {
	if run.ID == "" {
		return errors.New("run id is required")
	}
	return nil
}
