package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewPeriodicJobValidation(t *testing.T) {
	t.Parallel()

	run := func(ctx context.Context) error { return nil }

	if _, err := NewPeriodicJob("sweep", time.Second, nil, nil); err == nil {
		t.Fatal("expected error for nil run func")
	}
	if _, err := NewPeriodicJob("sweep", 0, run, nil); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

func TestPeriodicJobRunsImmediatelyAndOnTick(t *testing.T) {
	t.Parallel()

	var runs atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	job, err := NewPeriodicJob("sweep", 10*time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) >= 3 {
			cancel()
		}
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewPeriodicJob() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- job.Start(ctx) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Start() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	if runs.Load() < 3 {
		t.Fatalf("runs = %d, want at least 3", runs.Load())
	}
}

func TestPeriodicJobLogsFailures(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var runs atomic.Int32
	job, _ := NewPeriodicJob("reminders", 10*time.Millisecond, func(ctx context.Context) error {
		if runs.Add(1) >= 2 {
			cancel()
			return nil
		}
		return errors.New("db unavailable")
	}, zap.New(core))

	if err := job.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	entries := logs.FilterMessage("initial run failed").All()
	if len(entries) != 1 {
		t.Fatalf("error logs = %d, want 1", len(entries))
	}
	if entries[0].ContextMap()["job"] != "reminders" {
		t.Fatalf("job field = %v, want reminders", entries[0].ContextMap()["job"])
	}
}
