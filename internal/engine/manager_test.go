package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeEngine is a minimal Engine whose jobs are driven by the test.
type fakeEngine struct {
	released atomic.Bool
}

func (f *fakeEngine) Transcribe(audioPath string, opts Options) (Job, error) {
	ch := make(chan JobResult, 1)
	ch <- JobResult{Result: Result{Text: "ok"}}
	return &fakeJob{ch: ch}, nil
}

func (f *fakeEngine) Release() error {
	f.released.Store(true)
	return nil
}

type fakeJob struct{ ch chan JobResult }

func (j *fakeJob) Cancel() {}

func (j *fakeJob) Result() <-chan JobResult { return j.ch }

// blockingInit returns an Initializer that blocks until release is closed,
// counting invocations.
func blockingInit(calls *atomic.Int32, release chan struct{}, eng Engine, err error) Initializer {
	return func(ctx context.Context, modelPath string) (Engine, error) {
		calls.Add(1)
		<-release
		return eng, err
	}
}

func TestEnsureReadyFirstCallNeedsModelPath(t *testing.T) {
	m := NewManager(func(ctx context.Context, modelPath string) (Engine, error) {
		t.Fatal("initializer should not run")
		return nil, nil
	}, nil)

	_, err := m.EnsureReady(context.Background(), "")
	if !errors.Is(err, ErrNoModel) {
		t.Errorf("err = %v, want ErrNoModel", err)
	}

	var initErr *InitError
	if !errors.As(err, &initErr) {
		t.Errorf("err = %T, want *InitError", err)
	}
}

func TestEnsureReadyCoalescesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	eng := &fakeEngine{}
	m := NewManager(blockingInit(&calls, release, eng, nil), nil)

	const waiters = 4
	results := make([]Engine, waiters)
	errs := make([]error, waiters)

	var started, done sync.WaitGroup
	for i := 0; i < waiters; i++ {
		started.Add(1)
		done.Add(1)
		go func(i int) {
			started.Done()
			defer done.Done()
			results[i], errs[i] = m.EnsureReady(context.Background(), "/models/tiny.bin")
		}(i)
	}

	started.Wait()
	// Give every waiter a chance to reach the in-flight load before it resolves
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	if got := calls.Load(); got != 1 {
		t.Errorf("initializer ran %d times, want 1", got)
	}
	for i := 0; i < waiters; i++ {
		if errs[i] != nil {
			t.Errorf("waiter %d: %v", i, errs[i])
		}
		if results[i] != eng {
			t.Errorf("waiter %d received a different engine", i)
		}
	}
}

func TestEnsureReadyFailureResetsForRetry(t *testing.T) {
	var calls atomic.Int32
	loadErr := errors.New("model file truncated")
	eng := &fakeEngine{}

	m := NewManager(func(ctx context.Context, modelPath string) (Engine, error) {
		if calls.Add(1) == 1 {
			return nil, loadErr
		}
		return eng, nil
	}, nil)

	_, err := m.EnsureReady(context.Background(), "/models/tiny.bin")
	if !errors.Is(err, loadErr) {
		t.Fatalf("first load err = %v, want wrapped %v", err, loadErr)
	}
	if m.Ready() != nil {
		t.Fatal("manager should be uninitialized after failed load")
	}

	got, err := m.EnsureReady(context.Background(), "/models/tiny.bin")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got != eng {
		t.Error("retry returned a different engine")
	}
	if calls.Load() != 2 {
		t.Errorf("initializer ran %d times, want 2", calls.Load())
	}
}

func TestEnsureReadyPathlessCallAttachesToInFlightLoad(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	eng := &fakeEngine{}
	m := NewManager(blockingInit(&calls, release, eng, nil), nil)

	first := make(chan error, 1)
	go func() {
		_, err := m.EnsureReady(context.Background(), "/models/tiny.bin")
		first <- err
	}()

	// Wait for the load to be in flight
	for i := 0; calls.Load() == 0 && i < 100; i++ {
		time.Sleep(time.Millisecond)
	}
	if calls.Load() == 0 {
		t.Fatal("load never started")
	}

	second := make(chan error, 1)
	go func() {
		_, err := m.EnsureReady(context.Background(), "")
		second <- err
	}()

	time.Sleep(10 * time.Millisecond)
	close(release)

	if err := <-first; err != nil {
		t.Errorf("first caller: %v", err)
	}
	if err := <-second; err != nil {
		t.Errorf("pathless second caller: %v", err)
	}
	if calls.Load() != 1 {
		t.Errorf("initializer ran %d times, want 1", calls.Load())
	}
}

func TestEnsureReadyReturnsExistingEngineWithoutPath(t *testing.T) {
	eng := &fakeEngine{}
	var calls atomic.Int32
	m := NewManager(func(ctx context.Context, modelPath string) (Engine, error) {
		calls.Add(1)
		return eng, nil
	}, nil)

	if _, err := m.EnsureReady(context.Background(), "/models/tiny.bin"); err != nil {
		t.Fatalf("load: %v", err)
	}
	got, err := m.EnsureReady(context.Background(), "")
	if err != nil {
		t.Fatalf("second call: %v", err)
	}
	if got != eng {
		t.Error("second call returned a different engine")
	}
	if calls.Load() != 1 {
		t.Errorf("initializer ran %d times, want 1", calls.Load())
	}
}

func TestReleaseResetsManager(t *testing.T) {
	eng := &fakeEngine{}
	m := NewManager(func(ctx context.Context, modelPath string) (Engine, error) {
		return eng, nil
	}, nil)

	if _, err := m.EnsureReady(context.Background(), "/models/tiny.bin"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if m.Ready() == nil {
		t.Fatal("engine should be ready")
	}

	if err := m.Release(); err != nil {
		t.Fatalf("release: %v", err)
	}
	if !eng.released.Load() {
		t.Error("engine.Release was not called")
	}
	if m.Ready() != nil {
		t.Error("manager should be uninitialized after release")
	}

	// Releasing again is a no-op
	if err := m.Release(); err != nil {
		t.Errorf("second release: %v", err)
	}
}
