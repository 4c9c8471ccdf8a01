package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/zephyrus-green/ferrycast/internal/cache"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// DefaultTickPeriod is the reference interval between position updates.
const DefaultTickPeriod = 2500 * time.Millisecond

// PositionSink receives every emitted position event. Implementations must not block.
type PositionSink interface {
	PushPosition(e core.PositionEvent)
}

// Observer is notified of every emitted position event after the sink.
// Implementations must not block; the tick loop calls them inline.
type Observer interface {
	ObservePosition(e core.PositionEvent)
}

// Config describes the simulated fleet.
type Config struct {
	Track          *geo.Track
	Vessels        []core.Vessel
	TickPeriod     time.Duration
	Terminals      []core.Terminal
	TerminalRadius float64
}

// Dependencies holds the shared structures the simulator writes to.
type Dependencies struct {
	Table     *cache.PositionTable
	Positions PositionSink
	Observers []Observer
	Logger    *slog.Logger
	Now       func() time.Time
}

// Simulator advances every vessel along the shared track on a fixed tick.
type Simulator struct {
	cfg  Config
	deps Dependencies

	mu      sync.Mutex
	cursors []Cursor

	ticks   atomic.Uint64
	counter metric.Int64Counter
}

// New creates a simulator with one cursor per configured vessel.
func New(cfg Config, deps Dependencies) (*Simulator, error) {
	if cfg.Track == nil {
		return nil, errors.New("simulator: track is required")
	}
	if len(cfg.Vessels) == 0 {
		return nil, errors.New("simulator: at least one vessel is required")
	}
	if deps.Table == nil {
		return nil, errors.New("simulator: position table is required")
	}
	if cfg.TickPeriod <= 0 {
		cfg.TickPeriod = DefaultTickPeriod
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	counter, err := meter().Int64Counter(
		"simulator.ticks",
		metric.WithDescription("Total simulator ticks"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating tick counter: %w", err)
	}

	s := &Simulator{
		cfg:     cfg,
		deps:    deps,
		counter: counter,
		cursors: make([]Cursor, 0, len(cfg.Vessels)),
	}

	n := cfg.Track.Len()
	for _, v := range cfg.Vessels {
		c, clamped := NewCursor(v.MMSI, v.Start, n)
		if clamped {
			deps.Logger.Warn("Vessel start index out of range, clamped",
				"mmsi", v.MMSI, "start", v.Start, "index", c.Index, "waypoints", n)
		}
		s.cursors = append(s.cursors, c)
	}

	return s, nil
}

// Tick advances every cursor by one step and publishes the new positions.
// It returns the events emitted, in fleet configuration order.
func (s *Simulator) Tick() []core.PositionEvent {
	tick := s.ticks.Add(1)
	now := s.deps.Now()
	n := s.cfg.Track.Len()

	s.mu.Lock()
	events := make([]core.PositionEvent, len(s.cursors))
	for i := range s.cursors {
		s.cursors[i].Step(n)
		wp := s.cfg.Track.At(s.cursors[i].Index)
		events[i] = core.PositionEvent{
			MMSI: s.cursors[i].Vessel,
			Lat:  wp.Lat,
			Lon:  wp.Lon,
			Tick: tick,
			Time: now,
		}
		if len(s.cfg.Terminals) > 0 {
			events[i].Terminal = geo.TerminalWithin(wp, s.cfg.Terminals, s.cfg.TerminalRadius)
		}
	}
	s.mu.Unlock()

	for _, e := range events {
		s.deps.Table.Set(e)
		if s.deps.Positions != nil {
			s.deps.Positions.PushPosition(e)
		}
		for _, o := range s.deps.Observers {
			o.ObservePosition(e)
		}
	}

	s.counter.Add(context.Background(), 1)
	s.deps.Logger.Debug("Simulator tick", "tick", tick, "vessels", len(events))
	return events
}

// Run ticks every TickPeriod until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.TickPeriod)
	defer ticker.Stop()

	s.deps.Logger.Info("Simulator started",
		"vessels", len(s.cfg.Vessels),
		"waypoints", s.cfg.Track.Len(),
		"period", s.cfg.TickPeriod)

	for {
		select {
		case <-ctx.Done():
			s.deps.Logger.Info("Simulator stopped", "ticks", s.ticks.Load())
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Ticks returns the number of completed ticks.
func (s *Simulator) Ticks() uint64 {
	return s.ticks.Load()
}

// Cursors returns a copy of every cursor in configuration order.
func (s *Simulator) Cursors() []Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cursor, len(s.cursors))
	copy(out, s.cursors)
	return out
}

// Track returns the shared track.
func (s *Simulator) Track() *geo.Track {
	return s.cfg.Track
}
