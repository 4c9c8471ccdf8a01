package simulator

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrus-green/ferrycast/internal/cache"
	"github.com/zephyrus-green/ferrycast/internal/geo"
	"github.com/zephyrus-green/ferrycast/internal/queue"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

type queueSink struct {
	q *queue.Bounded[core.PositionEvent]
}

func (s queueSink) PushPosition(e core.PositionEvent) { s.q.Push(e) }

type recordingObserver struct {
	mu     sync.Mutex
	events []core.PositionEvent
}

func (o *recordingObserver) ObservePosition(e core.PositionEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

func diagonalTrack(t *testing.T, n int) *geo.Track {
	t.Helper()
	pts := make([]core.Waypoint, n)
	for i := range pts {
		pts[i] = core.Waypoint{Lat: float64(i), Lon: float64(i)}
	}
	track, err := geo.NewTrack(pts)
	require.NoError(t, err)
	return track
}

func vesselIDs(vessels []core.Vessel) []core.MMSI {
	ids := make([]core.MMSI, len(vessels))
	for i, v := range vessels {
		ids[i] = v.MMSI
	}
	return ids
}

func TestNew_Validation(t *testing.T) {
	track := diagonalTrack(t, 3)
	table := cache.NewPositionTable([]core.MMSI{1})
	vessels := []core.Vessel{{MMSI: 1}}

	_, err := New(Config{Vessels: vessels}, Dependencies{Table: table})
	assert.Error(t, err)

	_, err = New(Config{Track: track}, Dependencies{Table: table})
	assert.Error(t, err)

	_, err = New(Config{Track: track, Vessels: vessels}, Dependencies{})
	assert.Error(t, err)

	sim, err := New(Config{Track: track, Vessels: vessels}, Dependencies{Table: table})
	require.NoError(t, err)
	assert.Equal(t, DefaultTickPeriod, sim.cfg.TickPeriod)
}

func TestNew_ClampsStartAndWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	vessels := []core.Vessel{{MMSI: 7, Start: 42}}
	sim, err := New(
		Config{Track: diagonalTrack(t, 4), Vessels: vessels},
		Dependencies{Table: cache.NewPositionTable(vesselIDs(vessels)), Logger: logger},
	)
	require.NoError(t, err)

	cursors := sim.Cursors()
	require.Len(t, cursors, 1)
	assert.Equal(t, 3, cursors[0].Index)
	assert.Contains(t, buf.String(), "clamped")
}

func TestTick_ThreeWaypointScenario(t *testing.T) {
	vessels := []core.Vessel{{MMSI: 503123456, Start: 0}}
	table := cache.NewPositionTable(vesselIDs(vessels))
	positions := queue.NewBounded[core.PositionEvent](2)

	sim, err := New(
		Config{Track: diagonalTrack(t, 3), Vessels: vessels},
		Dependencies{Table: table, Positions: queueSink{positions}},
	)
	require.NoError(t, err)

	want := []core.Waypoint{{Lat: 1, Lon: 1}, {Lat: 2, Lon: 2}, {Lat: 1, Lon: 1}, {Lat: 0, Lon: 0}, {Lat: 1, Lon: 1}}
	for i, wp := range want {
		events := sim.Tick()
		require.Len(t, events, 1)
		assert.Equal(t, wp.Lat, events[0].Lat, "tick %d", i+1)
		assert.Equal(t, wp.Lon, events[0].Lon, "tick %d", i+1)
		assert.Equal(t, uint64(i+1), events[0].Tick)

		if i == 3 {
			// after 4 ticks only the last two events remain
			require.Equal(t, 2, positions.Len())
			first, _ := positions.Pop()
			second, _ := positions.Pop()
			assert.Equal(t, core.VesselPosition{MMSI: 503123456, Lat: 1, Lon: 1}, first.Position())
			assert.Equal(t, core.VesselPosition{MMSI: 503123456, Lat: 0, Lon: 0}, second.Position())
		}
	}
}

func TestTick_SnapshotMatchesCursors(t *testing.T) {
	vessels := []core.Vessel{
		{MMSI: 503123456, Start: 0},
		{MMSI: 503123457, Start: 6},
		{MMSI: 503123458, Start: 12},
	}
	table := cache.NewPositionTable(vesselIDs(vessels))
	track := diagonalTrack(t, 13)

	sim, err := New(Config{Track: track, Vessels: vessels}, Dependencies{Table: table})
	require.NoError(t, err)

	for tick := 0; tick < 40; tick++ {
		sim.Tick()

		snap := table.Snapshot()
		cursors := sim.Cursors()
		require.Len(t, snap, len(vessels))
		for i, c := range cursors {
			wp := track.At(c.Index)
			assert.Equal(t, c.Vessel, snap[i].MMSI)
			assert.Equal(t, wp.Lat, snap[i].Lat)
			assert.Equal(t, wp.Lon, snap[i].Lon)
		}
	}
	assert.Equal(t, uint64(40), sim.Ticks())
}

func TestTick_TagsTerminals(t *testing.T) {
	vessels := []core.Vessel{{MMSI: 1, Start: 0}}
	terminals := []core.Terminal{{Name: "Second", Lat: 1, Lon: 1}}

	sim, err := New(
		Config{Track: diagonalTrack(t, 3), Vessels: vessels, Terminals: terminals, TerminalRadius: 100},
		Dependencies{Table: cache.NewPositionTable(vesselIDs(vessels))},
	)
	require.NoError(t, err)

	first := sim.Tick()
	assert.Equal(t, "Second", first[0].Terminal)

	second := sim.Tick()
	assert.Empty(t, second[0].Terminal)
}

func TestTick_NotifiesObservers(t *testing.T) {
	vessels := []core.Vessel{{MMSI: 1}, {MMSI: 2, Start: 1}}
	obs := &recordingObserver{}

	sim, err := New(
		Config{Track: diagonalTrack(t, 3), Vessels: vessels},
		Dependencies{Table: cache.NewPositionTable(vesselIDs(vessels)), Observers: []Observer{obs}},
	)
	require.NoError(t, err)

	sim.Tick()
	sim.Tick()
	assert.Equal(t, 4, obs.count())
}

func TestTick_UsesClock(t *testing.T) {
	fixed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	vessels := []core.Vessel{{MMSI: 1}}

	sim, err := New(
		Config{Track: diagonalTrack(t, 2), Vessels: vessels},
		Dependencies{Table: cache.NewPositionTable(vesselIDs(vessels)), Now: func() time.Time { return fixed }},
	)
	require.NoError(t, err)

	events := sim.Tick()
	assert.Equal(t, fixed, events[0].Time)
}

func TestRun_StopsOnCancel(t *testing.T) {
	vessels := []core.Vessel{{MMSI: 1}}
	obs := &recordingObserver{}

	sim, err := New(
		Config{Track: diagonalTrack(t, 3), Vessels: vessels, TickPeriod: 5 * time.Millisecond},
		Dependencies{Table: cache.NewPositionTable(vesselIDs(vessels)), Observers: []Observer{obs}},
	)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sim.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return sim.Ticks() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, obs.count(), 3)
}
