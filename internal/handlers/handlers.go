// Package handlers serves the polling, command and status HTTP endpoints.
package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/zephyrus-green/ferrycast/internal/monitor"
	"github.com/zephyrus-green/ferrycast/internal/sensor"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// maxCommandBody caps POST /volume request bodies.
const maxCommandBody = 1 << 10

// Drainer is the destructive read side of the poll queues. *worker.Queues satisfies it.
type Drainer interface {
	DrainPosition() (core.PositionEvent, bool)
	DrainVolume() (core.VolumeIntent, bool)
}

// VolumePublisher sends a volume command toward the sensor topic.
type VolumePublisher interface {
	PublishVolume(delta int) error
}

// StatusSource reports the current program status.
type StatusSource interface {
	Status() monitor.Status
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Queues    Drainer
	Publisher VolumePublisher
	Status    StatusSource
	Logger    *slog.Logger
}

// Service provides the HTTP handler methods.
type Service struct {
	deps Dependencies
}

// NewService creates a new handler service. Publisher and Status may be nil;
// their endpoints then answer 503.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// PositionResponse is the body of a successful position poll.
type PositionResponse struct {
	Status string    `json:"status"`
	MMSI   core.MMSI `json:"mmsi"`
	Lat    float64   `json:"lat"`
	Lon    float64   `json:"lon"`
}

// VolumeResponse is the body of a successful volume poll or command.
type VolumeResponse struct {
	Status    string `json:"status"`
	Direction string `json:"direction"`
	Delta     int    `json:"delta"`
}

// Ferry drains one position event. An empty queue answers 204 with no body.
func (s *Service) Ferry(w http.ResponseWriter, r *http.Request) {
	e, ok := s.deps.Queues.DrainPosition()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, s.deps.Logger, http.StatusOK, PositionResponse{
		Status: "ok",
		MMSI:   e.MMSI,
		Lat:    e.Lat,
		Lon:    e.Lon,
	})
}

// Volume drains one volume intent. An empty queue answers 204 with no body.
func (s *Service) Volume(w http.ResponseWriter, r *http.Request) {
	v, ok := s.deps.Queues.DrainVolume()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, r, s.deps.Logger, http.StatusOK, VolumeResponse{
		Status:    "ok",
		Direction: v.Direction(),
		Delta:     v.Delta,
	})
}

// PublishVolume classifies the request body and publishes the command on
// the sensor topic. The subscriber enqueues it when it comes back.
func (s *Service) PublishVolume(w http.ResponseWriter, r *http.Request) {
	if s.deps.Publisher == nil {
		writeError(w, r, s.deps.Logger, http.StatusServiceUnavailable, "sensor feed disabled")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxCommandBody))
	if err != nil {
		writeError(w, r, s.deps.Logger, http.StatusBadRequest, "failed to read body")
		return
	}

	intent, err := sensor.Classify(body)
	if err != nil {
		writeError(w, r, s.deps.Logger, http.StatusBadRequest, `direction must be "up" or "down"`)
		return
	}

	if err := s.deps.Publisher.PublishVolume(intent.Delta); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, sensor.ErrNotConnected) {
			status = http.StatusServiceUnavailable
		}
		s.deps.Logger.Warn("Volume publish failed", "direction", intent.Direction(), "error", err)
		writeError(w, r, s.deps.Logger, status, err.Error())
		return
	}

	writeJSON(w, r, s.deps.Logger, http.StatusAccepted, VolumeResponse{
		Status:    "ok",
		Direction: intent.Direction(),
		Delta:     intent.Delta,
	})
}

// Health provides a minimal liveness check endpoint.
func (s *Service) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.deps.Logger, http.StatusOK, map[string]string{"status": "ok"})
}

// Status reports queue depths, clients, ticks and terminal proximity.
func (s *Service) Status(w http.ResponseWriter, r *http.Request) {
	if s.deps.Status == nil {
		writeError(w, r, s.deps.Logger, http.StatusServiceUnavailable, "status unavailable")
		return
	}
	writeJSON(w, r, s.deps.Logger, http.StatusOK, s.deps.Status.Status())
}
