package streaming

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Message type constants for the position stream.
const (
	TypePositions = "positions"
	TypeHello     = "hello"
)

// Message type constants for the history feed sent to a remote collector.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypePosition     = "position"
	TypeVolume       = "volume"
	TypeAck          = "ack"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Seq     uint64          `json:"seq,omitempty"`
	Payload json.RawMessage `json:"payload"`
}

// HelloPayload is sent once when a client connects.
type HelloPayload struct {
	Vessels        []core.MMSI `json:"vessels"`
	BroadcastEvery string      `json:"broadcastEvery"`
}

// StartSessionPayload opens a recording session on the collector.
type StartSessionPayload struct {
	Started    time.Time     `json:"started"`
	Vessels    []core.Vessel `json:"vessels"`
	TickPeriod string        `json:"tickPeriod"`
}

// AckMessage is the collector's reply to session start and end.
type AckMessage struct {
	Type string `json:"type"`
	For  string `json:"for"`
}

// PositionsPayload is the full snapshot in fleet configuration order.
type PositionsPayload []core.VesselPosition

// Marshal builds a JSON-encoded Envelope from a message type and payload.
func Marshal(msgType string, seq uint64, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(Envelope{Type: msgType, Seq: seq, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}
