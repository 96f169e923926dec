package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestNewJSONWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Writer: &buf})

	log.With(String("component", "orchestrator")).Info(context.Background(), "run complete",
		Int("actions", 2),
		Float64("confidence", 0.42),
		Err(errors.New("boom")),
	)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec["msg"] != "run complete" || rec["component"] != "orchestrator" || rec["error"] != "boom" {
		t.Fatalf("log record = %v", rec)
	}
	if rec["actions"] != float64(2) {
		t.Fatalf("actions = %v, want 2", rec["actions"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Writer: &buf})
	log.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Fatalf("info logged at warn level: %q", buf.String())
	}
	log.Warn(context.Background(), "shown")
	if buf.Len() == 0 {
		t.Fatalf("warn not logged at warn level")
	}
}

func TestEnsureRequestIDGeneratesUUID(t *testing.T) {
	ctx, id := EnsureRequestID(context.Background())
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("request id %q is not a uuid: %v", id, err)
	}
	if got := RequestIDFromContext(ctx); got != id {
		t.Fatalf("RequestIDFromContext = %q, want %q", got, id)
	}

	ctx2, id2 := EnsureRequestID(ctx)
	if id2 != id || ctx2 != ctx {
		t.Fatalf("EnsureRequestID replaced an existing id")
	}
}

func TestLoggerFromContext(t *testing.T) {
	if LoggerFromContext(context.Background()) != nil {
		t.Fatalf("expected nil logger on empty context")
	}
	ctx := ContextWithLogger(context.Background(), nil)
	if LoggerFromContext(ctx) == nil {
		t.Fatalf("ContextWithLogger(nil) should store a noop logger")
	}
}

func TestErrNil(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != "" {
		t.Fatalf("Err(nil) = %+v", f)
	}
}

func TestCorridorFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "json", Writer: &buf})
	simTime := time.Date(2026, 3, 1, 6, 0, 5, 0, time.UTC)

	log.Info(context.Background(), "train switched", TrainID("EXP-001"), RunID("run-1"), SimTime(simTime))

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if rec[KeyTrainID] != "EXP-001" || rec[KeyRunID] != "run-1" || rec[KeySimTime] != "2026-03-01T06:00:05Z" {
		t.Fatalf("log record = %v", rec)
	}
}

func TestFromContextFallback(t *testing.T) {
	fallback := New(Config{Writer: &bytes.Buffer{}})
	if got := FromContext(context.Background(), fallback); got != fallback {
		t.Fatalf("FromContext without a stored logger should return the fallback")
	}
	if _, ok := FromContext(context.Background(), nil).(noopLogger); !ok {
		t.Fatalf("FromContext(nil fallback) should return Noop")
	}

	ctx, reqLog := WithRequestLogger(context.Background(), fallback)
	ctx = ContextWithLogger(ctx, reqLog)
	if got := FromContext(ctx, fallback); got != reqLog {
		t.Fatalf("FromContext should prefer the request logger")
	}
}
