package server

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"sysobs/pkg/retention"
	"sysobs/pkg/server/monitor"
	"sysobs/pkg/stats"
)

// fakeSource returns canned snapshots, optionally failing first.
type fakeSource struct {
	calls    atomic.Int64
	failures int64
}

func (f *fakeSource) Collect(ctx context.Context) (stats.Snapshot, error) {
	n := f.calls.Add(1)
	if n <= f.failures {
		return stats.Snapshot{}, errors.New("collection broken")
	}
	return stats.Snapshot{
		Memory:         stats.MemoryStats{UsedMB: uint64(n), TotalMB: 16000},
		CollectionTime: time.Now(),
	}, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestRunSampler_IngestsSnapshots(t *testing.T) {
	src := &fakeSource{}
	engine := retention.NewEngine(2, 5, nil, zerolog.Nop())
	samplerMonitor := monitor.NewSamplerMonitor(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunSampler(ctx, src, engine, nil, samplerMonitor, 5*time.Millisecond, zerolog.Nop())

	waitFor(t, func() bool { return len(engine.RecentWindow()) >= 1 })
	cancel()

	if _, ok := engine.Latest(); !ok {
		t.Error("expected the engine to have received snapshots")
	}
	if !samplerMonitor.IsHealthy() {
		t.Error("sampler monitor must be healthy after successful ticks")
	}
}

func TestRunSampler_FailedTicksAreSkipped(t *testing.T) {
	src := &fakeSource{failures: 2}
	engine := retention.NewEngine(10, 5, nil, zerolog.Nop())
	samplerMonitor := monitor.NewSamplerMonitor(5 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go RunSampler(ctx, src, engine, nil, samplerMonitor, 5*time.Millisecond, zerolog.Nop())

	// The first two ticks fail, then collection recovers.
	waitFor(t, func() bool { return engine.CurrentWindowLen() >= 1 })
	cancel()

	latest, ok := engine.Latest()
	if !ok {
		t.Fatal("expected a snapshot after recovery")
	}
	if latest.Memory.UsedMB <= 2 {
		t.Errorf("failed ticks must not be ingested, got used=%d", latest.Memory.UsedMB)
	}
}

func TestRunSampler_StopsOnContextCancel(t *testing.T) {
	src := &fakeSource{}
	engine := retention.NewEngine(2, 5, nil, zerolog.Nop())
	samplerMonitor := monitor.NewSamplerMonitor(time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		RunSampler(ctx, src, engine, nil, samplerMonitor, time.Millisecond, zerolog.Nop())
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("sampler loop did not stop on cancel")
	}
}
