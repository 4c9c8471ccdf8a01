package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zephyrus-green/ferrycast/internal/cache"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/internal/worker"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// StatusFileName is written into the logs directory by Start.
const StatusFileName = "status.json"

// TickCounter reports how many simulator ticks have run.
type TickCounter interface {
	Ticks() uint64
}

// ClientCounter reports the number of connected streaming clients.
type ClientCounter interface {
	Clients() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Table          *cache.PositionTable
	Track          *geo.Track
	Queues         *worker.Queues
	Ticks          TickCounter
	Clients        ClientCounter
	WorkerManager  *worker.Manager
	Terminals      []core.Terminal
	TerminalRadius float64
	LogsDir        string
	Interval       time.Duration
	Logger         *slog.Logger
	Now            func() time.Time
}

// VesselStatus is the latest known position of one vessel and its relation
// to the nearest terminal.
type VesselStatus struct {
	MMSI            core.MMSI `json:"mmsi"`
	Lat             float64   `json:"lat"`
	Lon             float64   `json:"lon"`
	Tick            uint64    `json:"tick"`
	NearestTerminal string    `json:"nearestTerminal,omitempty"`
	DistanceMeters  float64   `json:"distanceMeters"`
	AtTerminal      bool      `json:"atTerminal"`
}

// TrackStatus summarises the shared track.
type TrackStatus struct {
	Waypoints    int           `json:"waypoints"`
	LengthMeters float64       `json:"lengthMeters"`
	SouthWest    core.Waypoint `json:"southWest"`
	NorthEast    core.Waypoint `json:"northEast"`
}

// Status is the program status served on /status and written to status.json.
type Status struct {
	Time                time.Time      `json:"time"`
	Ticks               uint64         `json:"ticks"`
	Clients             int            `json:"clients"`
	Queues              worker.Depths  `json:"queues"`
	Track               *TrackStatus   `json:"track,omitempty"`
	Vessels             []VesselStatus `json:"vessels"`
	LastWriteDurationMs float64        `json:"lastWriteDurationMs"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status collects the current program status. Missing dependencies leave
// their fields zero.
func (s *Service) Status() Status {
	st := Status{
		Time:    s.deps.Now().UTC(),
		Vessels: []VesselStatus{},
	}
	if s.deps.Ticks != nil {
		st.Ticks = s.deps.Ticks.Ticks()
	}
	if s.deps.Clients != nil {
		st.Clients = s.deps.Clients.Clients()
	}
	if s.deps.Queues != nil {
		st.Queues = s.deps.Queues.Depths()
	}
	if t := s.deps.Track; t != nil {
		sw, ne := t.Bounds()
		st.Track = &TrackStatus{Waypoints: t.Len(), LengthMeters: t.LengthMeters(), SouthWest: sw, NorthEast: ne}
	}
	if s.deps.WorkerManager != nil {
		st.LastWriteDurationMs = float64(s.deps.WorkerManager.GetLastDBWriteDuration().Microseconds()) / 1000
	}
	if s.deps.Table == nil {
		return st
	}

	for _, e := range s.deps.Table.Events() {
		vs := VesselStatus{MMSI: e.MMSI, Lat: e.Lat, Lon: e.Lon, Tick: e.Tick}
		if t, dist, ok := geo.NearestTerminal(core.Waypoint{Lat: e.Lat, Lon: e.Lon}, s.deps.Terminals); ok {
			vs.NearestTerminal = t.Name
			vs.DistanceMeters = dist
			vs.AtTerminal = geo.Within(dist, s.deps.TerminalRadius)
		}
		st.Vessels = append(st.Vessels, vs)
	}
	return st
}

// WriteStatusFile replaces path with the indented JSON status.
func (s *Service) WriteStatusFile(path string) error {
	data, err := json.MarshalIndent(s.Status(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace status file: %w", err)
	}
	return nil
}

// Start starts the status monitor goroutine. It rewrites status.json in the
// logs directory every interval until ctx is cancelled or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if s.deps.LogsDir != "" {
		if err := os.MkdirAll(s.deps.LogsDir, 0o755); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
			close(done)
		}()

		logger := s.deps.Logger
		logger.Debug("Starting status monitor", "interval", s.deps.Interval)

		path := filepath.Join(s.deps.LogsDir, StatusFileName)
		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stop:
				return
			case <-ticker.C:
				if err := s.WriteStatusFile(path); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for its goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.mu.Unlock()
	<-done
}
