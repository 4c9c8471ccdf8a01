package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrus-green/ferrycast/internal/storage"
	"github.com/zephyrus-green/ferrycast/pkg/core"
	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	secrets  []string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// testCollector upgrades to WebSocket, records every envelope and acks
// session start and end. When ack is false nothing is acknowledged.
func testCollector(t *testing.T, ack bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.mu.Lock()
		ml.secrets = append(ml.secrets, r.URL.Query().Get("secret"))
		ml.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}
			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if ack && (env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession) {
				data, _ := json.Marshal(streaming.AckMessage{Type: streaming.TypeAck, For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, ml
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSessionStartAndEnd(t *testing.T) {
	srv, ml := testCollector(t, true)

	b := New(Config{
		URL:        wsURL(srv),
		Secret:     "k",
		Vessels:    []core.Vessel{{MMSI: 503123456, Name: "Mirrigin"}},
		TickPeriod: 2500 * time.Millisecond,
	}, nil)
	require.NoError(t, b.Init())
	require.NoError(t, b.Close())

	msgs := ml.all()
	require.Len(t, msgs, 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &start))
	assert.Equal(t, "2.5s", start.TickPeriod)
	require.Len(t, start.Vessels, 1)
	assert.Equal(t, "Mirrigin", start.Vessels[0].Name)

	ml.mu.Lock()
	assert.Equal(t, []string{"k"}, ml.secrets)
	ml.mu.Unlock()
}

func TestRecordsAreStreamed(t *testing.T) {
	srv, ml := testCollector(t, true)

	b := New(Config{URL: wsURL(srv)}, nil)
	require.NoError(t, b.Init())

	require.NoError(t, b.RecordPosition(&core.PositionEvent{MMSI: 1, Lat: -27.5, Lon: 153, Tick: 1}))
	require.NoError(t, b.RecordPosition(&core.PositionEvent{MMSI: 2, Lat: -27.4, Lon: 153, Tick: 1}))
	require.NoError(t, b.RecordVolume(&core.VolumeIntent{Delta: core.VolumeDown}))
	require.NoError(t, b.Close())

	assert.Equal(t, 2, ml.count(streaming.TypePosition))
	assert.Equal(t, 1, ml.count(streaming.TypeVolume))
	assert.Zero(t, b.Dropped())

	for _, env := range ml.all() {
		if env.Type == streaming.TypePosition {
			var e core.PositionEvent
			require.NoError(t, json.Unmarshal(env.Payload, &e))
			assert.Equal(t, uint64(1), e.Tick)
		}
	}
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/ingest"}, nil)
	assert.Error(t, b.Init())
}

func TestInit_AckTimeoutSurfaces(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the ack timeout")
	}
	srv, _ := testCollector(t, false)

	b := New(Config{URL: wsURL(srv)}, nil)
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout waiting for ack")
	require.NoError(t, b.conn.close())
}

func TestSend_DropsWhenQueueFull(t *testing.T) {
	c := newConnection(nil)
	for range sendChSize {
		require.True(t, c.send([]byte("x")))
	}
	assert.False(t, c.send([]byte("overflow")))
	assert.Equal(t, uint64(1), c.dropped.Load())
}
