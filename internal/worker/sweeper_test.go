package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSessionSweeperSweepsAtStartAndOnTick(t *testing.T) {
	var calls atomic.Int32
	s := NewSessionSweeper(SweepFunc(func(ctx context.Context) (int, error) {
		calls.Add(1)
		return 2, nil
	}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for calls.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d sweeps ran", calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if got := s.Removed(); got < 6 {
		t.Fatalf("Removed = %d, want >= 6", got)
	}
}

func TestSessionSweeperSurvivesErrors(t *testing.T) {
	var calls atomic.Int32
	s := NewSessionSweeper(SweepFunc(func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("database is locked")
		}
		return 1, nil
	}), 10*time.Millisecond, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	go s.Run(ctx)

	for s.Removed() == 0 {
		select {
		case <-ctx.Done():
			t.Fatal("sweeper stopped after the first error")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestNewSessionSweeperDefaultInterval(t *testing.T) {
	s := NewSessionSweeper(SweepFunc(func(context.Context) (int, error) { return 0, nil }), 0, nil)
	if s.interval != 5*time.Minute {
		t.Fatalf("interval = %v", s.interval)
	}
}
