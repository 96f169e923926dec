package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS optimization_runs (
	seq            BIGSERIAL PRIMARY KEY,
	run_id         UUID             NOT NULL UNIQUE,
	recorded_at    TIMESTAMPTZ      NOT NULL,
	actions        INTEGER          NOT NULL,
	confidence     DOUBLE PRECISION NOT NULL,
	execution_time DOUBLE PRECISION NOT NULL,
	payload        JSONB            NOT NULL
)`

// PostgresStore persists runs in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL and applies the schema.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("postgres store: database url is required")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// Record inserts run.
func (s *PostgresStore) Record(ctx context.Context, run OptimizationRun) error {
	if err := validateRun(run); err != nil {
		return err
	}
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to encode run: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO optimization_runs (run_id, recorded_at, actions, confidence, execution_time, payload)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		run.ID,
		run.Timestamp.UTC(),
		len(run.ExecutedActions)+len(run.SkippedActions),
		run.Confidence,
		run.ExecutionTimeSeconds,
		string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
	}
	return nil
}

// Recent returns up to limit runs, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]OptimizationRun, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT payload::text FROM optimization_runs ORDER BY seq DESC LIMIT $1`, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []OptimizationRun
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		var run OptimizationRun
		if err := json.Unmarshal([]byte(payload), &run); err != nil {
			return nil, fmt.Errorf("failed to decode run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
