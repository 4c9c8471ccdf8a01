package convert

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/zephyrus-green/ferrycast/internal/model"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

func TestPositionRecordRoundTrip(t *testing.T) {
	at := time.Date(2026, 4, 1, 7, 30, 0, 0, time.UTC)
	e := core.PositionEvent{MMSI: 503123456, Lat: -27.49, Lon: 153.01, Tick: 42, Time: at, Terminal: "UQ"}

	rec := CoreToPositionRecord(e, 7)
	assert.Equal(t, uint(7), rec.SessionID)
	assert.Equal(t, int64(503123456), rec.MMSI)
	assert.Equal(t, "UQ", rec.Terminal)

	assert.Equal(t, e, PositionRecordToCore(rec))
}

func TestVolumeRecordRoundTrip(t *testing.T) {
	at := time.Date(2026, 4, 1, 7, 30, 0, 0, time.UTC)

	up := CoreToVolumeRecord(core.VolumeIntent{Delta: core.VolumeUp, Time: at}, 3)
	assert.Equal(t, "up", up.Direction)
	assert.Equal(t, 1, up.Delta)

	down := CoreToVolumeRecord(core.VolumeIntent{Delta: core.VolumeDown, Time: at}, 3)
	assert.Equal(t, "down", down.Direction)

	assert.Equal(t, core.VolumeIntent{Delta: core.VolumeDown, Time: at}, VolumeRecordToCore(down))
}

func TestNewSession(t *testing.T) {
	track := []core.Waypoint{{Lat: -27.49, Lon: 153.01}, {Lat: -27.48, Lon: 153.00}}
	s, err := NewSession(SessionParams{
		StartedAt:    time.Unix(100, 0).UTC(),
		TickPeriod:   2500 * time.Millisecond,
		TrackLengthM: 1234.5,
		Track:        track,
		Vessels:      []core.Vessel{{MMSI: 1, Name: "Mirrigin"}},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2500), s.TickPeriodMs)
	assert.Equal(t, datatypes.JSON("[]"), s.Terminals)
	assert.Equal(t, "LINESTRING(153.01 -27.49,153 -27.48)", s.Path)

	got, err := SessionTrack(s)
	require.NoError(t, err)
	assert.Equal(t, track, got)

	vessels, err := SessionVessels(s)
	require.NoError(t, err)
	require.Len(t, vessels, 1)
	assert.Equal(t, "Mirrigin", vessels[0].Name)
}

func TestSessionTrack_Invalid(t *testing.T) {
	_, err := SessionTrack(model.Session{Track: datatypes.JSON("{")})
	assert.Error(t, err)

	track, err := SessionTrack(model.Session{})
	require.NoError(t, err)
	assert.Empty(t, track)
}

func TestNewSession_Path(t *testing.T) {
	s, err := NewSession(SessionParams{Track: []core.Waypoint{{Lat: 1, Lon: 2}}})
	require.NoError(t, err)
	assert.Empty(t, s.Path, "a single waypoint has no path")

	_, err = NewSession(SessionParams{Track: []core.Waypoint{{Lat: 1, Lon: 2}, {Lat: 1, Lon: 2}}})
	assert.Error(t, err)
}
