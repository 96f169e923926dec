package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/signalsfoundry/rail-corridor-sim/core"
	"github.com/signalsfoundry/rail-corridor-sim/model"
)

func sampleRun(i int) OptimizationRun {
	return OptimizationRun{
		ID:        NewRunID(),
		Timestamp: time.Date(2026, 3, 1, 6, 0, i, 0, time.UTC),
		ExecutedActions: []core.Action{{
			Type:                   core.ActionTrackSwitch,
			TrainID:                fmt.Sprintf("EXP-%03d", i),
			JunctionID:             "junction1",
			FromTrack:              model.TrackMain,
			ToTrack:                model.TrackSecondary,
			Confidence:             0.35,
			ExpectedDelayReduction: 3,
		}},
		SkippedActions: []SkippedAction{{
			Action: core.Action{Type: core.ActionTrackSwitch, TrainID: "GHOST"},
			Reason: "train_not_found",
		}},
		Projections:          core.Projections{DelayReduction: 3, ThroughputImprovement: 5, ConflictsResolved: 1},
		Confidence:           0.35,
		ExecutionTimeSeconds: 0.0004,
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s DecisionStore) {
	t.Helper()
	ctx := context.Background()

	got, err := s.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent on empty store: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("Recent on empty store = %d runs, want 0", len(got))
	}

	var ids []string
	for i := 0; i < 3; i++ {
		run := sampleRun(i)
		if err := s.Record(ctx, run); err != nil {
			t.Fatalf("Record(%d): %v", i, err)
		}
		ids = append(ids, run.ID)
	}

	got, err = s.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Recent(2) = %d runs, want 2", len(got))
	}
	if got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Fatalf("Recent order = [%s %s], want newest first [%s %s]", got[0].ID, got[1].ID, ids[2], ids[1])
	}

	first := got[0]
	if len(first.ExecutedActions) != 1 || first.ExecutedActions[0].TrainID != "EXP-002" {
		t.Fatalf("ExecutedActions = %+v", first.ExecutedActions)
	}
	if len(first.SkippedActions) != 1 || first.SkippedActions[0].Reason != "train_not_found" || first.SkippedActions[0].TrainID != "GHOST" {
		t.Fatalf("SkippedActions = %+v", first.SkippedActions)
	}
	if first.Projections.ConflictsResolved != 1 || !first.Timestamp.Equal(time.Date(2026, 3, 1, 6, 0, 2, 0, time.UTC)) {
		t.Fatalf("run = %+v", first)
	}

	if err := s.Record(ctx, OptimizationRun{}); err == nil {
		t.Fatalf("Record without id succeeded, want error")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore(0))
}

func TestMemoryStoreEvictsOldest(t *testing.T) {
	s := NewMemoryStore(2)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		run := sampleRun(i)
		ids = append(ids, run.ID)
		if err := s.Record(ctx, run); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got, _ := s.Recent(ctx, 0)
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[1] {
		t.Fatalf("Recent after eviction = %+v", got)
	}
}

func TestMemoryStoreConcurrentRecord(t *testing.T) {
	s := NewMemoryStore(1000)
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = s.Record(context.Background(), sampleRun(i))
		}(i)
	}
	wg.Wait()
	got, _ := s.Recent(context.Background(), MaxLimit)
	if len(got) != 50 {
		t.Fatalf("Recent = %d runs, want 50", len(got))
	}
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(context.Background(), Config{Driver: DriverSQLite, DSN: path})
	if err != nil {
		t.Fatalf("Open sqlite: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	run := sampleRun(7)
	if err := s.Record(ctx, run); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	got, err := reopened.Recent(ctx, 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(got) != 1 || got[0].ID != run.ID {
		t.Fatalf("Recent after reopen = %+v, want run %s", got, run.ID)
	}
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set; skipping postgres integration test")
	}
	ctx := context.Background()
	s, err := NewPostgresStore(ctx, url)
	if err != nil {
		t.Fatalf("NewPostgresStore: %v", err)
	}
	defer s.Close()
	if _, err := s.pool.Exec(ctx, `TRUNCATE optimization_runs`); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	exerciseStore(t, s)
}

func TestOpenUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), Config{Driver: "redis"}); !errors.Is(err, ErrUnknownDriver) {
		t.Fatalf("Open(redis) error = %v, want ErrUnknownDriver", err)
	}
}

func TestNewRunIDIsUUID(t *testing.T) {
	if _, err := uuid.Parse(NewRunID()); err != nil {
		t.Fatalf("NewRunID not a uuid: %v", err)
	}
}
