// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/zephyrus-green/ferrycast/internal/handlers"
	"github.com/zephyrus-green/ferrycast/internal/monitor"
	"github.com/zephyrus-green/ferrycast/pkg/streaming"
)

// Client talks to a running ferrycast server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	dialer     *ws.Dialer
}

// New creates a new API client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		dialer:     ws.DefaultDialer,
	}
}

// Healthcheck checks if the server is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/health")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// PollPosition drains one position event. ok is false when the queue was empty.
func (c *Client) PollPosition() (pos handlers.PositionResponse, ok bool, err error) {
	ok, err = c.poll("/ferry", &pos)
	return pos, ok, err
}

// PollVolume drains one volume intent. ok is false when the queue was empty.
func (c *Client) PollVolume() (vol handlers.VolumeResponse, ok bool, err error) {
	ok, err = c.poll("/volume", &vol)
	return vol, ok, err
}

func (c *Client) poll(path string, out any) (bool, error) {
	resp, err := c.httpClient.Get(c.baseURL + path)
	if err != nil {
		return false, fmt.Errorf("poll %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNoContent:
		return false, nil
	case http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("decode %s response: %w", path, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("poll %s returned status %d", path, resp.StatusCode)
	}
}

// SendVolume asks the server to publish a volume command ("up" or "down").
func (c *Client) SendVolume(direction string) (handlers.VolumeResponse, error) {
	var out handlers.VolumeResponse

	body, err := json.Marshal(map[string]string{"direction": direction})
	if err != nil {
		return out, err
	}
	resp, err := c.httpClient.Post(c.baseURL+"/volume", "application/json", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("volume request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return out, fmt.Errorf("volume returned status %d: %s", resp.StatusCode, readError(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("decode volume response: %w", err)
	}
	return out, nil
}

// Status fetches the server status.
func (c *Client) Status() (monitor.Status, error) {
	var st monitor.Status
	resp, err := c.httpClient.Get(c.baseURL + "/status")
	if err != nil {
		return st, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("status returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("decode status response: %w", err)
	}
	return st, nil
}

// Watch connects to the snapshot stream and calls fn for every envelope
// until ctx is cancelled, the server closes, or fn returns an error.
func (c *Client) Watch(ctx context.Context, fn func(streaming.Envelope) error) error {
	conn, _, err := c.dialer.DialContext(ctx, c.streamURL(), nil)
	if err != nil {
		return fmt.Errorf("stream dial failed: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(ws.CloseMessage,
			ws.FormatCloseMessage(ws.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	})
	defer stop()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("stream read failed: %w", err)
		}

		var env streaming.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return fmt.Errorf("decode stream frame: %w", err)
		}
		if err := fn(env); err != nil {
			return err
		}
	}
}

func (c *Client) streamURL() string {
	u := c.baseURL
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

func readError(r io.Reader) string {
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&body); err != nil || body.Error == "" {
		return "no detail"
	}
	return body.Error
}
