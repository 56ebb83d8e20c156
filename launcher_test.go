package batchgate_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/batchgate"
	"github.com/xraph/batchgate/gate"
)

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, jobID string)

func (f runnerFunc) Run(ctx context.Context, jobID string) { f(ctx, jobID) }

// admitRecorder records the order in which jobs obtain permits.
type admitRecorder struct {
	mu    sync.Mutex
	order []string
}

func (a *admitRecorder) Name() string { return "admit-recorder" }

func (a *admitRecorder) OnJobAdmitted(_ context.Context, jobID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.order = append(a.order, jobID)
	return nil
}

func (a *admitRecorder) snapshot() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.order...)
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msg)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}

func testConfig() batchgate.Config {
	cfg := batchgate.DefaultConfig()
	cfg.ShutdownPollInterval = 20 * time.Millisecond
	return cfg
}

func TestNew_RequiresRunner(t *testing.T) {
	_, err := batchgate.New()
	if !errors.Is(err, batchgate.ErrNoRunner) {
		t.Fatalf("error = %v, want batchgate.ErrNoRunner", err)
	}
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := batchgate.New(
		batchgate.WithRunner(runnerFunc(func(context.Context, string) {})),
		batchgate.WithCapacity(0),
	)
	if err == nil {
		t.Fatal("expected config validation error for zero capacity")
	}
}

func TestDispatch_EmptyJobID(t *testing.T) {
	l, err := batchgate.New(
		batchgate.WithConfig(testConfig()),
		batchgate.WithRunner(runnerFunc(func(context.Context, string) {})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Shutdown()

	_, err = l.Dispatch(context.Background(), "")
	if !errors.Is(err, batchgate.ErrInvalidJobID) {
		t.Fatalf("error = %v, want batchgate.ErrInvalidJobID", err)
	}
	// No permit was involved.
	if got := l.Gate().Available(); got != l.Config().Capacity {
		t.Errorf("Available() = %d, want %d", got, l.Config().Capacity)
	}
}

func TestDispatch_PreCheckSkip(t *testing.T) {
	var bodyCalls atomic.Int64

	cfg := testConfig()
	cfg.Capacity = 2
	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(context.Context, string) { bodyCalls.Add(1) })),
		batchgate.WithPreCheck(func(_ context.Context, jobID string) (bool, error) {
			return jobID != "X", nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Shutdown()

	outcome, err := l.Dispatch(context.Background(), "X")
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if outcome != batchgate.OutcomeSkipped {
		t.Errorf("outcome = %q, want %q", outcome, batchgate.OutcomeSkipped)
	}
	if n := bodyCalls.Load(); n != 0 {
		t.Errorf("job body ran %d times for a skipped job, want 0", n)
	}
	if got := l.Gate().Available(); got != 2 {
		t.Errorf("Available() = %d after skip, want 2", got)
	}
}

func TestDispatch_PreCheckError(t *testing.T) {
	boom := errors.New("precheck backend down")
	l, err := batchgate.New(
		batchgate.WithConfig(testConfig()),
		batchgate.WithRunner(runnerFunc(func(context.Context, string) {})),
		batchgate.WithPreCheck(func(context.Context, string) (bool, error) {
			return false, boom
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Shutdown()

	_, err = l.Dispatch(context.Background(), "j1")
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want wrapping boom", err)
	}
	if got := l.Gate().Available(); got != l.Config().Capacity {
		t.Errorf("Available() = %d after pre-check failure, want %d", got, l.Config().Capacity)
	}
}

func TestDispatch_PoolRejectionDespitePermit(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})

	// Gate capacity deliberately exceeds worker + intake capacity, the
	// documented misconfiguration that makes this path reachable.
	cfg := testConfig()
	cfg.Capacity = 4
	cfg.Workers = 1
	cfg.IntakeCapacity = 1

	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(_ context.Context, _ string) {
			started <- struct{}{}
			<-release
		})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := l.Dispatch(context.Background(), "A"); err != nil {
		t.Fatalf("Dispatch A: %v", err)
	}
	<-started // A is on the worker, not in the intake queue
	if _, err := l.Dispatch(context.Background(), "B"); err != nil {
		t.Fatalf("Dispatch B: %v", err)
	}

	// A occupies the worker, B occupies the intake slot; C is rejected
	// even though two permits remain.
	outcome, err := l.Dispatch(context.Background(), "C")
	if !errors.Is(err, batchgate.ErrPoolRejected) {
		t.Fatalf("error = %v, want batchgate.ErrPoolRejected", err)
	}
	if outcome != batchgate.OutcomeRejected {
		t.Errorf("outcome = %q, want %q", outcome, batchgate.OutcomeRejected)
	}
	if got := l.Gate().Available(); got != 2 {
		t.Errorf("Available() = %d after rejection, want 2 (A and B still hold permits)", got)
	}

	close(release)
	l.Shutdown()
	if got := l.Gate().Available(); got != 4 {
		t.Errorf("Available() = %d after shutdown, want 4", got)
	}
}

func TestDispatch_AdmissionCancelled(t *testing.T) {
	release := make(chan struct{})

	cfg := testConfig()
	cfg.Capacity = 1
	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(_ context.Context, _ string) { <-release })),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := l.Dispatch(context.Background(), "A"); err != nil {
		t.Fatalf("Dispatch A: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = l.Dispatch(ctx, "B")
	if !errors.Is(err, gate.ErrCancelled) {
		t.Fatalf("error = %v, want wrapping gate.ErrCancelled", err)
	}

	close(release)
	l.Shutdown()
	if got := l.Gate().Available(); got != 1 {
		t.Errorf("Available() = %d, want 1: the aborted wait must not leak or mint a permit", got)
	}
}

func TestDispatch_PermitBalanceAcrossAllOutcomes(t *testing.T) {
	cfg := testConfig()
	cfg.Capacity = 3
	cfg.Workers = 2
	cfg.IntakeCapacity = 2

	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(_ context.Context, jobID string) {
			if jobID == "panics" {
				panic("body exploded")
			}
		})),
		batchgate.WithPreCheck(func(_ context.Context, jobID string) (bool, error) {
			switch jobID {
			case "skipped":
				return false, nil
			case "precheck-fails":
				return false, errors.New("boom")
			}
			return true, nil
		}),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, id := range []string{"ok", "skipped", "precheck-fails", "panics", "ok-2"} {
		_, _ = l.Dispatch(context.Background(), id)
	}

	l.Shutdown()
	if got := l.Gate().Available(); got != 3 {
		t.Errorf("Available() = %d after mixed outcomes, want full capacity 3", got)
	}
}

func TestDispatch_FIFOAdmissionOrder(t *testing.T) {
	rec := &admitRecorder{}

	bodies := map[string]chan struct{}{
		"A": make(chan struct{}),
		"B": make(chan struct{}),
	}

	cfg := testConfig()
	cfg.Capacity = 2
	cfg.Workers = 2
	cfg.IntakeCapacity = 2
	cfg.Fair = true

	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(_ context.Context, jobID string) {
			if ch, ok := bodies[jobID]; ok {
				<-ch
			}
		})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Hooks().Register(rec)

	// A and B are admitted immediately and occupy both permits.
	if _, err := l.Dispatch(context.Background(), "A"); err != nil {
		t.Fatalf("Dispatch A: %v", err)
	}
	if _, err := l.Dispatch(context.Background(), "B"); err != nil {
		t.Fatalf("Dispatch B: %v", err)
	}

	var wg sync.WaitGroup
	dispatchAsync := func(id string) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Dispatch(context.Background(), id); err != nil {
				t.Errorf("Dispatch %s: %v", id, err)
			}
		}()
	}

	// C begins waiting before D, so FIFO admission must grant C first.
	dispatchAsync("C")
	waitFor(t, func() bool { return l.Gate().Waiting() == 1 }, "C to queue at the gate")
	dispatchAsync("D")
	waitFor(t, func() bool { return l.Gate().Waiting() == 2 }, "D to queue at the gate")

	close(bodies["A"])
	waitFor(t, func() bool { return len(rec.snapshot()) == 3 }, "next admission after A")
	if order := rec.snapshot(); order[2] != "C" {
		t.Fatalf("third admission = %q, want C (submission order preserved)", order[2])
	}

	close(bodies["B"])
	wg.Wait()

	want := []string{"A", "B", "C", "D"}
	got := rec.snapshot()
	if len(got) != len(want) {
		t.Fatalf("admissions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("admissions = %v, want %v", got, want)
		}
	}

	l.Shutdown()
}

func TestShutdown_WaitsForInflightAndRejectsNewWork(t *testing.T) {
	release := make(chan struct{})
	var completed atomic.Int64

	// One spare permit so the late dispatch reaches the pool instead of
	// blocking at the gate.
	cfg := testConfig()
	cfg.Capacity = 4
	cfg.Workers = 3

	l, err := batchgate.New(
		batchgate.WithConfig(cfg),
		batchgate.WithRunner(runnerFunc(func(_ context.Context, _ string) {
			<-release
			completed.Add(1)
		})),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	for _, id := range []string{"j1", "j2", "j3"} {
		if _, err := l.Dispatch(context.Background(), id); err != nil {
			t.Fatalf("Dispatch %s: %v", id, err)
		}
	}
	waitFor(t, func() bool { return l.Gate().Available() == 1 }, "all three jobs in flight")

	done := make(chan struct{})
	go func() {
		l.Shutdown()
		close(done)
	}()

	// Shutdown must block while jobs are running.
	select {
	case <-done:
		t.Fatal("Shutdown returned while jobs were still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	// New dispatches during shutdown are rejected.
	outcome, err := l.Dispatch(context.Background(), "late")
	if !errors.Is(err, batchgate.ErrPoolRejected) {
		t.Fatalf("late dispatch error = %v, want batchgate.ErrPoolRejected", err)
	}
	if outcome != batchgate.OutcomeRejected {
		t.Errorf("late outcome = %q, want %q", outcome, batchgate.OutcomeRejected)
	}

	close(release)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return after jobs finished")
	}

	if n := completed.Load(); n != 3 {
		t.Errorf("completed = %d jobs, want all 3", n)
	}
	if got := l.Gate().Available(); got != 4 {
		t.Errorf("Available() = %d after shutdown, want 4", got)
	}
}
