package sensor

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/zephyrus-green/ferrycast/internal/config"
)

const defaultConnectTimeout = 5 * time.Second

// ErrConnectTimeout is returned with a usable client when the first connect
// attempt did not finish in time; the client keeps retrying in the background.
var ErrConnectTimeout = errors.New("mqtt connection timeout")

// Connect establishes a connection to the broker with automatic reconnect.
// onConnect runs after every (re)connect, which is where subscriptions are
// restored.
func Connect(cfg config.MQTTConfig, logger *slog.Logger, onConnect func(mqtt.Client)) (mqtt.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		logger.Info("MQTT connection established", "broker", cfg.Broker, "clientId", cfg.ClientID)
		if onConnect != nil {
			onConnect(c)
		}
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		logger.Warn("MQTT connection lost, will auto-reconnect", "broker", cfg.Broker, "error", err)
	}

	client := mqtt.NewClient(opts)

	logger.Info("Connecting to MQTT broker", "broker", cfg.Broker)
	token := client.Connect()
	if !token.WaitTimeout(timeout) {
		return client, fmt.Errorf("%w after %s", ErrConnectTimeout, timeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	return client, nil
}
