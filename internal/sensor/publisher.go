package sensor

import (
	"errors"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// ErrNotConnected is returned when publishing without a broker connection.
var ErrNotConnected = errors.New("mqtt not connected")

// Publisher sends volume commands to the sensor topic, where speakers and
// the subscriber pick them up.
type Publisher struct {
	client  mqtt.Client
	topic   string
	qos     byte
	timeout time.Duration
}

// NewPublisher creates a publisher on client. client may be nil, in which
// case every publish fails with ErrNotConnected.
func NewPublisher(client mqtt.Client, topic string, qos byte) *Publisher {
	return &Publisher{client: client, topic: topic, qos: qos, timeout: 2 * time.Second}
}

// PublishVolume publishes the phrase for delta.
func (p *Publisher) PublishVolume(delta int) error {
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}

	token := p.client.Publish(p.topic, p.qos, false, Phrase(delta))
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}
