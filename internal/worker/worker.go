package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zephyrus-green/ferrycast/internal/storage"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Queues *Queues
	Logger *slog.Logger
}

// Manager owns the long-running loops and routes sensor commands onto the
// volume queue. When a storage backend is configured it also records history.
type Manager struct {
	deps    Dependencies
	backend storage.Backend

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager creates a new worker manager. backend may be nil.
func NewManager(deps Dependencies, backend storage.Backend) *Manager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		deps:    deps,
		backend: backend,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Go runs fn in its own goroutine until Stop is called.
func (m *Manager) Go(name string, fn func(ctx context.Context)) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.deps.Logger.Debug("Worker started", "worker", name)
		fn(m.ctx)
		m.deps.Logger.Debug("Worker exited", "worker", name)
	}()
}

// Stop cancels every loop started with Go and waits for them to return.
func (m *Manager) Stop() {
	m.cancel()
	m.wg.Wait()
}

// Context is cancelled when Stop is called.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// ObservePosition records a position event in the history backend.
func (m *Manager) ObservePosition(e core.PositionEvent) {
	if !m.hasBackend() {
		return
	}
	if err := m.backend.RecordPosition(&e); err != nil {
		m.deps.Logger.Error("Failed to record position", "mmsi", e.MMSI, "error", err)
	}
}

func (m *Manager) hasBackend() bool {
	return m.backend != nil
}

// DBWriteDurationProvider is an optional interface that backends can implement
// to expose their last DB write duration for monitoring.
type DBWriteDurationProvider interface {
	GetLastDBWriteDuration() time.Duration
}

// GetLastDBWriteDuration returns the duration of the last DB write cycle.
// Returns 0 if the backend doesn't support this metric.
func (m *Manager) GetLastDBWriteDuration() time.Duration {
	if p, ok := m.backend.(DBWriteDurationProvider); ok {
		return p.GetLastDBWriteDuration()
	}
	return 0
}
