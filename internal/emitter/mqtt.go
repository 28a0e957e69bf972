package emitter

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dshills/winmacro/internal/config"
	"github.com/dshills/winmacro/internal/logging"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	disconnectMs   = 250
)

// ErrNotConnected indicates a publish while the broker connection is down.
var ErrNotConnected = errors.New("mqtt not connected")

// MQTTPublisher publishes to an MQTT broker. The client reconnects on
// its own after a connection loss.
type MQTTPublisher struct {
	client    mqtt.Client
	connected atomic.Bool
	logger    *logging.Logger
}

// Dial connects to the broker in cfg. ctx bounds the initial connect.
func Dial(ctx context.Context, cfg config.MQTTConfig, logger *logging.Logger) (*MQTTPublisher, error) {
	if logger == nil {
		logger = logging.Nop()
	}
	p := &MQTTPublisher{logger: logger.WithComponent("mqtt")}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.connected.Store(true)
		p.logger.Info("connected to %s as %s", cfg.Broker, cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.connected.Store(false)
		p.logger.Warn("connection to %s lost, reconnecting: %v", cfg.Broker, err)
	}

	p.client = mqtt.NewClient(opts)
	p.logger.Info("connecting to %s", cfg.Broker)

	token := p.client.Connect()
	timeout := connectTimeout
	if dl, ok := ctx.Deadline(); ok && time.Until(dl) < timeout {
		timeout = time.Until(dl)
	}
	select {
	case <-token.Done():
	case <-time.After(timeout):
		p.client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connection timeout")
	case <-ctx.Done():
		p.client.Disconnect(0)
		return nil, ctx.Err()
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connection failed: %w", err)
	}
	p.connected.Store(true)
	return p, nil
}

// Publish implements Publisher.
func (p *MQTTPublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	if !p.connected.Load() {
		return ErrNotConnected
	}
	token := p.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish failed: %w", err)
	}
	return nil
}

// Close implements Publisher.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectMs)
		p.logger.Info("disconnected")
	}
	p.connected.Store(false)
	return nil
}
