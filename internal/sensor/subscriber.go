package sensor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.opentelemetry.io/otel/metric"

	"github.com/zephyrus-green/ferrycast/internal/dispatcher"
	"github.com/zephyrus-green/ferrycast/pkg/core"
)

// Dispatcher routes classified commands. *dispatcher.Dispatcher satisfies it.
type Dispatcher interface {
	Dispatch(e dispatcher.Event) (any, error)
}

// Stats counts messages seen by a subscriber.
type Stats struct {
	Received   uint64 `json:"received"`
	Dispatched uint64 `json:"dispatched"`
	Dropped    uint64 `json:"dropped"`
}

// Subscriber turns sensor messages into volume commands.
type Subscriber struct {
	topic  string
	qos    byte
	d      Dispatcher
	logger *slog.Logger
	now    func() time.Time

	received   atomic.Uint64
	dispatched atomic.Uint64
	dropped    atomic.Uint64
	droppedCtr metric.Int64Counter
}

// NewSubscriber creates a subscriber for topic that dispatches through d.
func NewSubscriber(topic string, qos byte, d Dispatcher, logger *slog.Logger) (*Subscriber, error) {
	if d == nil {
		return nil, errors.New("sensor: dispatcher is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	dropped, err := meter().Int64Counter(
		"sensor.messages.dropped",
		metric.WithDescription("Sensor messages dropped as unrecognized or undeliverable"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating dropped counter: %w", err)
	}

	return &Subscriber{
		topic:      topic,
		qos:        qos,
		d:          d,
		logger:     logger,
		now:        time.Now,
		droppedCtr: dropped,
	}, nil
}

// Deliver classifies one payload and dispatches the resulting command.
// Unrecognized payloads are logged and dropped; the error is returned for
// callers that care.
func (s *Subscriber) Deliver(payload []byte) error {
	s.received.Add(1)

	intent, err := Classify(payload)
	if err != nil {
		s.drop()
		s.logger.Warn("Dropping sensor message", "topic", s.topic, "error", err)
		return err
	}

	_, err = s.d.Dispatch(dispatcher.Event{
		Command:   core.VolumeCommand(intent.Delta),
		Args:      []string{string(payload)},
		Source:    s.topic,
		Timestamp: s.now(),
	})
	if err != nil {
		s.drop()
		s.logger.Error("Failed to dispatch sensor command", "direction", intent.Direction(), "error", err)
		return fmt.Errorf("dispatching %s: %w", intent.Direction(), err)
	}

	s.dispatched.Add(1)
	return nil
}

func (s *Subscriber) drop() {
	s.dropped.Add(1)
	s.droppedCtr.Add(context.Background(), 1)
}

// Subscribe registers the message handler on client.
func (s *Subscriber) Subscribe(client mqtt.Client) error {
	s.logger.Info("Subscribing to sensor feed", "topic", s.topic, "qos", s.qos)

	token := client.Subscribe(s.topic, s.qos, s.messageHandler)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("sensor subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("sensor subscription failed: %w", err)
	}
	return nil
}

// OnConnect is suitable as the Connect callback; it resubscribes after reconnects.
func (s *Subscriber) OnConnect(client mqtt.Client) {
	if err := s.Subscribe(client); err != nil {
		s.logger.Error("Failed to subscribe to sensor feed", "topic", s.topic, "error", err)
	}
}

// Unsubscribe removes the subscription if the client is still connected.
func (s *Subscriber) Unsubscribe(client mqtt.Client) {
	if client == nil || !client.IsConnected() {
		return
	}
	token := client.Unsubscribe(s.topic)
	token.WaitTimeout(2 * time.Second)
}

func (s *Subscriber) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.drop()
			s.logger.Error("Recovered from panic in sensor handler", "panic", r)
		}
	}()
	s.Deliver(msg.Payload())
}

// Stats returns message counters.
func (s *Subscriber) Stats() Stats {
	return Stats{
		Received:   s.received.Load(),
		Dispatched: s.dispatched.Load(),
		Dropped:    s.dropped.Load(),
	}
}
