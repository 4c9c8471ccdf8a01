// Package convert provides functions to convert between GORM models and core models
package convert

import (
	"encoding/json"
	"fmt"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"

	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// toJSON marshals v for a JSON column. A nil slice is stored as [].
func toJSON[T any](v []T) (datatypes.JSON, error) {
	if len(v) == 0 {
		return datatypes.JSON("[]"), nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

// trackToWKT renders waypoints as a WKT LINESTRING with X=lon, Y=lat.
// Fewer than two waypoints give an empty string.
func trackToWKT(track []core.Waypoint) (string, error) {
	if len(track) < 2 {
		return "", nil
	}
	coords := make([]float64, 0, len(track)*2)
	for _, wp := range track {
		coords = append(coords, wp.Lon, wp.Lat)
	}
	ls, err := geom.NewLineString(geom.NewSequence(coords, geom.DimXY))
	if err != nil {
		return "", err
	}
	return ls.AsText(), nil
}

// SessionParams describes the configuration a session was started with.
type SessionParams struct {
	StartedAt    time.Time
	TickPeriod   time.Duration
	TrackLengthM float64
	Track        []core.Waypoint
	Vessels      []core.Vessel
	Terminals    []core.Terminal
}

// NewSession builds the session row for a simulator run.
func NewSession(p SessionParams) (model.Session, error) {
	track, err := toJSON(p.Track)
	if err != nil {
		return model.Session{}, fmt.Errorf("encoding track: %w", err)
	}
	path, err := trackToWKT(p.Track)
	if err != nil {
		return model.Session{}, fmt.Errorf("building track path: %w", err)
	}
	vessels, err := toJSON(p.Vessels)
	if err != nil {
		return model.Session{}, fmt.Errorf("encoding vessels: %w", err)
	}
	terminals, err := toJSON(p.Terminals)
	if err != nil {
		return model.Session{}, fmt.Errorf("encoding terminals: %w", err)
	}
	return model.Session{
		StartedAt:    p.StartedAt,
		TickPeriodMs: p.TickPeriod.Milliseconds(),
		TrackLengthM: p.TrackLengthM,
		Track:        track,
		Path:         path,
		Vessels:      vessels,
		Terminals:    terminals,
	}, nil
}

// CoreToPositionRecord converts a core.PositionEvent to a GORM model.PositionRecord.
func CoreToPositionRecord(e core.PositionEvent, sessionID uint) model.PositionRecord {
	return model.PositionRecord{
		Time:      e.Time,
		SessionID: sessionID,
		MMSI:      int64(e.MMSI),
		Tick:      e.Tick,
		Lat:       e.Lat,
		Lon:       e.Lon,
		Terminal:  e.Terminal,
	}
}

// CoreToVolumeRecord converts a core.VolumeIntent to a GORM model.VolumeRecord.
func CoreToVolumeRecord(v core.VolumeIntent, sessionID uint) model.VolumeRecord {
	return model.VolumeRecord{
		Time:      v.Time,
		SessionID: sessionID,
		Delta:     v.Delta,
		Direction: v.Direction(),
	}
}
