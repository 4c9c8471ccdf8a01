package convert

import (
	"encoding/json"
	"fmt"

	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// PositionRecordToCore converts a stored position back to a core.PositionEvent.
func PositionRecordToCore(r model.PositionRecord) core.PositionEvent {
	return core.PositionEvent{
		MMSI:     core.MMSI(r.MMSI),
		Lat:      r.Lat,
		Lon:      r.Lon,
		Tick:     r.Tick,
		Time:     r.Time,
		Terminal: r.Terminal,
	}
}

// VolumeRecordToCore converts a stored volume intent back to a core.VolumeIntent.
func VolumeRecordToCore(r model.VolumeRecord) core.VolumeIntent {
	return core.VolumeIntent{Delta: r.Delta, Time: r.Time}
}

// SessionTrack decodes the waypoint list stored with a session.
func SessionTrack(s model.Session) ([]core.Waypoint, error) {
	var track []core.Waypoint
	if len(s.Track) == 0 {
		return track, nil
	}
	if err := json.Unmarshal(s.Track, &track); err != nil {
		return nil, fmt.Errorf("decoding session track: %w", err)
	}
	return track, nil
}

// SessionVessels decodes the vessel list stored with a session.
func SessionVessels(s model.Session) ([]core.Vessel, error) {
	var vessels []core.Vessel
	if len(s.Vessels) == 0 {
		return vessels, nil
	}
	if err := json.Unmarshal(s.Vessels, &vessels); err != nil {
		return nil, fmt.Errorf("decoding session vessels: %w", err)
	}
	return vessels, nil
}
