package core

import (
	"time"
)

// PositionEvent is emitted once per vessel per simulator tick.
// Terminal is set when the vessel is within the configured radius of a terminal.
type PositionEvent struct {
	MMSI     MMSI      `json:"mmsi"`
	Lat      float64   `json:"lat"`
	Lon      float64   `json:"lon"`
	Tick     uint64    `json:"tick"`
	Time     time.Time `json:"time"`
	Terminal string    `json:"terminal,omitempty"`
}

// Position returns the snapshot record for this event.
func (e PositionEvent) Position() VesselPosition {
	return VesselPosition{MMSI: e.MMSI, Lat: e.Lat, Lon: e.Lon}
}

// VolumeIntent is a classified volume adjustment from the sensor feed.
type VolumeIntent struct {
	Delta int       `json:"delta"`
	Time  time.Time `json:"time"`
}

// Volume deltas.
const (
	VolumeUp   = 1
	VolumeDown = -1
)

// Direction returns "up" or "down".
func (v VolumeIntent) Direction() string {
	if v.Delta < 0 {
		return "down"
	}
	return "up"
}

// UploadMetadata describes an exported history file.
type UploadMetadata struct {
	Vessels   int
	Positions int
	Volume    int
	Started   time.Time
	Duration  time.Duration
}

// Commands routed through the dispatcher for sensor input.
const (
	CommandVolumeUp   = "volume:up"
	CommandVolumeDown = "volume:down"
)

// VolumeCommand returns the dispatcher command for a volume delta.
func VolumeCommand(delta int) string {
	if delta < 0 {
		return CommandVolumeDown
	}
	return CommandVolumeUp
}
