package e2ee

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"

	"go.uber.org/goleak"
)

func TestForEach(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var running, peak, calls atomic.Int32
	p := ParallelConfig{MaxWorkers: 3}

	err := p.forEach(context.Background(), 20, func(ctx context.Context, i int) error {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		calls.Add(1)
		return nil
	})
	if err != nil {
		t.Fatalf("forEach() unexpected error = %v", err)
	}
	if calls.Load() != 20 {
		t.Errorf("forEach() ran %d calls, want 20", calls.Load())
	}
	if peak.Load() > 3 {
		t.Errorf("forEach() ran %d workers at once, limit is 3", peak.Load())
	}
}

func TestForEach_FirstErrorCancels(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	boom := errors.New("boom")
	p := ParallelConfig{MaxWorkers: 1}

	var calls atomic.Int32
	err := p.forEach(context.Background(), 10, func(ctx context.Context, i int) error {
		calls.Add(1)
		if i == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("forEach() error = %v, want %v", err, boom)
	}
	if calls.Load() >= 10 {
		t.Errorf("forEach() kept going after the first error: %d calls", calls.Load())
	}
}

// TestForEach_PanicRecovery tests that a panicking worker surfaces as an error
func TestForEach_PanicRecovery(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := ParallelConfig{MaxWorkers: 4}
	err := p.forEach(context.Background(), 5, func(ctx context.Context, i int) error {
		if i == 3 {
			panic("test panic in upgrade")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected error from panic recovery, got nil")
	}
	if !strings.Contains(err.Error(), "panic in worker 3") {
		t.Errorf("error should describe the panic, got %q", err)
	}
}

func TestForEach_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := DefaultParallelConfig().forEach(ctx, 5, func(ctx context.Context, i int) error {
		t.Error("fn should not run on a cancelled context")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("forEach() error = %v, want context.Canceled", err)
	}
}
