package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrus-green/ferrycast/internal/cache"
	"github.com/zephyrus-green/ferrycast/internal/monitor"
	"github.com/zephyrus-green/ferrycast/internal/sensor"
	"github.com/zephyrus-green/ferrycast/internal/worker"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

type fakePublisher struct {
	deltas []int
	err    error
}

func (p *fakePublisher) PublishVolume(delta int) error {
	if p.err != nil {
		return p.err
	}
	p.deltas = append(p.deltas, delta)
	return nil
}

func newQueues(t *testing.T) *worker.Queues {
	t.Helper()
	q, err := worker.NewQueues(2, 2)
	require.NoError(t, err)
	return q
}

func TestFerry_EmptyIsNoContent(t *testing.T) {
	s := NewService(Dependencies{Queues: newQueues(t)})

	rec := httptest.NewRecorder()
	s.Ferry(rec, httptest.NewRequest(http.MethodGet, "/ferry", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestFerry_DrainsInOrder(t *testing.T) {
	q := newQueues(t)
	q.PushPosition(core.PositionEvent{MMSI: 503123456, Lat: -27.49, Lon: 153.01, Tick: 1})
	q.PushPosition(core.PositionEvent{MMSI: 503123457, Lat: -27.48, Lon: 152.99, Tick: 1})
	s := NewService(Dependencies{Queues: q})

	for _, want := range []core.MMSI{503123456, 503123457} {
		rec := httptest.NewRecorder()
		s.Ferry(rec, httptest.NewRequest(http.MethodGet, "/ferry", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var got PositionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, "ok", got.Status)
		assert.Equal(t, want, got.MMSI)
	}

	rec := httptest.NewRecorder()
	s.Ferry(rec, httptest.NewRequest(http.MethodGet, "/ferry", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestVolume_DrainOrder(t *testing.T) {
	q := newQueues(t)
	q.PushVolume(core.VolumeIntent{Delta: core.VolumeUp})
	q.PushVolume(core.VolumeIntent{Delta: core.VolumeDown})
	s := NewService(Dependencies{Queues: q})

	var got []VolumeResponse
	for {
		rec := httptest.NewRecorder()
		s.Volume(rec, httptest.NewRequest(http.MethodGet, "/volume", nil))
		if rec.Code == http.StatusNoContent {
			break
		}
		require.Equal(t, http.StatusOK, rec.Code)
		var v VolumeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
		got = append(got, v)
	}

	require.Len(t, got, 2)
	assert.Equal(t, VolumeResponse{Status: "ok", Direction: "up", Delta: 1}, got[0])
	assert.Equal(t, VolumeResponse{Status: "ok", Direction: "down", Delta: -1}, got[1])
}

func TestPublishVolume(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		pubErr     error
		wantStatus int
		wantDeltas []int
	}{
		{"json up", `{"direction":"up"}`, nil, http.StatusAccepted, []int{1}},
		{"plain down", "Volume down", nil, http.StatusAccepted, []int{-1}},
		{"garbage", `{"direction":"sideways"}`, nil, http.StatusBadRequest, nil},
		{"empty", "", nil, http.StatusBadRequest, nil},
		{"not connected", `{"direction":"up"}`, sensor.ErrNotConnected, http.StatusServiceUnavailable, nil},
		{"broker error", `{"direction":"up"}`, errors.New("boom"), http.StatusBadGateway, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.pubErr}
			s := NewService(Dependencies{Queues: newQueues(t), Publisher: pub})

			rec := httptest.NewRecorder()
			s.PublishVolume(rec, httptest.NewRequest(http.MethodPost, "/volume", strings.NewReader(tt.body)))

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDeltas, pub.deltas)
		})
	}
}

func TestPublishVolume_NoPublisher(t *testing.T) {
	s := NewService(Dependencies{Queues: newQueues(t)})

	rec := httptest.NewRecorder()
	s.PublishVolume(rec, httptest.NewRequest(http.MethodPost, "/volume", strings.NewReader("up")))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHealth(t *testing.T) {
	s := NewService(Dependencies{})

	rec := httptest.NewRecorder()
	s.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	q := newQueues(t)
	q.PushVolume(core.VolumeIntent{Delta: core.VolumeUp})

	table := cache.NewPositionTable([]core.MMSI{503123456})
	table.Set(core.PositionEvent{MMSI: 503123456, Lat: -27.496767, Lon: 153.019527, Tick: 4})

	mon := monitor.NewService(monitor.Dependencies{
		Table:          table,
		Queues:         q,
		Terminals:      []core.Terminal{{Name: "UQ", Lat: -27.496767, Lon: 153.019527}},
		TerminalRadius: 100,
	})
	s := NewService(Dependencies{Queues: q, Status: mon})

	rec := httptest.NewRecorder()
	s.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var st monitor.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 1, st.Queues.Volume)
	require.Len(t, st.Vessels, 1)
	assert.Equal(t, "UQ", st.Vessels[0].NearestTerminal)
	assert.True(t, st.Vessels[0].AtTerminal)
}

func TestStatus_Unavailable(t *testing.T) {
	s := NewService(Dependencies{})

	rec := httptest.NewRecorder()
	s.Status(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
