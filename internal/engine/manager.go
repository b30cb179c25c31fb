package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"
)

// ErrNoModel is returned when the first EnsureReady call arrives without a
// model path and no engine exists yet.
var ErrNoModel = errors.New("no model path supplied on first load")

// InitError wraps a failed engine load. The Manager resets to uninitialized
// after returning one, so a later EnsureReady may retry.
type InitError struct {
	ModelPath string
	Err       error
}

func (e *InitError) Error() string {
	if e.ModelPath == "" {
		return fmt.Sprintf("engine init: %v", e.Err)
	}
	return fmt.Sprintf("engine init (%s): %v", e.ModelPath, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// Manager holds the single shared engine instance for the process.
// Concurrent loads coalesce: N callers arriving before the first load
// resolves share one underlying initialization and one outcome.
type Manager struct {
	init Initializer
	log  *slog.Logger

	flight singleflight.Group

	mu      sync.Mutex
	engine  Engine
	loading bool
}

// NewManager returns a Manager that loads engines with init. A nil logger
// falls back to slog.Default.
func NewManager(init Initializer, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{init: init, log: log}
}

// EnsureReady returns the shared engine, loading it on first use. A call
// arriving while a load is in flight attaches to that load and shares its
// outcome, even when it carries no model path of its own.
func (m *Manager) EnsureReady(ctx context.Context, modelPath string) (Engine, error) {
	if eng := m.Ready(); eng != nil {
		return eng, nil
	}

	m.mu.Lock()
	loading := m.loading
	m.mu.Unlock()
	if modelPath == "" && !loading {
		return nil, &InitError{Err: ErrNoModel}
	}

	v, err, _ := m.flight.Do("load", func() (any, error) {
		m.mu.Lock()
		if eng := m.engine; eng != nil {
			m.mu.Unlock()
			return eng, nil
		}
		m.loading = true
		m.mu.Unlock()
		defer func() {
			m.mu.Lock()
			m.loading = false
			m.mu.Unlock()
		}()

		m.log.Info("loading recognition engine", "model", modelPath)
		eng, err := m.init(ctx, modelPath)
		if err != nil {
			m.log.Error("engine load failed", "model", modelPath, "error", err)
			return nil, &InitError{ModelPath: modelPath, Err: err}
		}

		m.mu.Lock()
		m.engine = eng
		m.mu.Unlock()
		m.log.Info("recognition engine ready", "model", modelPath)
		return eng, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Engine), nil
}

// Ready returns the engine if loaded, nil otherwise. Never blocks.
func (m *Manager) Ready() Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.engine
}

// Release tears down the engine and returns the Manager to uninitialized.
// Precondition (caller responsibility, not enforced here): no transcription
// may be in flight on the released engine.
func (m *Manager) Release() error {
	m.mu.Lock()
	eng := m.engine
	m.engine = nil
	m.mu.Unlock()

	if eng == nil {
		return nil
	}
	if err := eng.Release(); err != nil {
		return fmt.Errorf("release engine: %w", err)
	}
	return nil
}
