package transport

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/synheart/synheart-guard/internal/models"
)

// Default MQTT topics; {id} is replaced by the device id.
const (
	DefaultSampleTopic = "synheart/devices/{id}/samples"
	DefaultStatusTopic = "synheart/devices/{id}/status"
)

const disconnectQuiesce = 250 // ms

// mqttConn is the part of a broker session the device needs.
type mqttConn interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error
	Disconnect()
}

// MQTTOptions configures an MQTTDevice.
type MQTTOptions struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	SampleTopic string
	StatusTopic string
	QoS         byte
}

// MQTTDevice reads samples a wearable gateway publishes to a broker. The
// handshake waits for the device's retained "online" status message.
type MQTTDevice struct {
	opts    MQTTOptions
	newConn func(opts MQTTOptions, clientID string) mqttConn
	logger  *zap.Logger
}

// NewMQTTDevice creates a device using the paho client.
func NewMQTTDevice(opts MQTTOptions, logger *zap.Logger) *MQTTDevice {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.SampleTopic == "" {
		opts.SampleTopic = DefaultSampleTopic
	}
	if opts.StatusTopic == "" {
		opts.StatusTopic = DefaultStatusTopic
	}
	if opts.ClientID == "" {
		opts.ClientID = "synheart-guard"
	}
	return &MQTTDevice{
		opts:    opts,
		newConn: newPahoConn,
		logger:  logger,
	}
}

func topicFor(pattern, deviceID string) string {
	return strings.ReplaceAll(pattern, "{id}", deviceID)
}

// Handshake implements Device.
func (d *MQTTDevice) Handshake(ctx context.Context, info models.DeviceInfo) error {
	conn := d.newConn(d.opts, d.opts.ClientID+"-pair")
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Disconnect()

	status := make(chan string, 1)
	topic := topicFor(d.opts.StatusTopic, info.ID)
	err := conn.Subscribe(ctx, topic, func(payload []byte) {
		select {
		case status <- strings.TrimSpace(string(payload)):
		default:
		}
	})
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case s := <-status:
		if s != "online" {
			return fmt.Errorf("%w: status %q", ErrPairingRejected, s)
		}
		return nil
	}
}

// Stream implements Device.
func (d *MQTTDevice) Stream(ctx context.Context, info models.DeviceInfo, emit EmitFunc) error {
	conn := d.newConn(d.opts, d.opts.ClientID)
	if err := conn.Connect(ctx); err != nil {
		return err
	}
	defer conn.Disconnect()

	logger := d.logger.With(zap.String("device_id", info.ID))
	topic := topicFor(d.opts.SampleTopic, info.ID)

	// paho delivers on its own goroutine; keep emit calls serialized
	var mu sync.Mutex
	var asm Assembler
	err := conn.Subscribe(ctx, topic, func(payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		sample, ok, err := asm.Feed(payload)
		if err != nil {
			logger.Warn("dropping malformed message", zap.String("topic", topic), zap.Error(err))
			return
		}
		if ok {
			emit(sample)
		}
	})
	if err != nil {
		return err
	}

	logger.Info("mqtt stream started", zap.String("broker", d.opts.Broker), zap.String("topic", topic))
	<-ctx.Done()
	return ctx.Err()
}

// pahoConn adapts a paho client to mqttConn.
type pahoConn struct {
	client mqtt.Client
	qos    byte
}

func newPahoConn(opts MQTTOptions, clientID string) mqttConn {
	o := mqtt.NewClientOptions()
	o.AddBroker(opts.Broker)
	o.SetClientID(clientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
	}
	if opts.Password != "" {
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetCleanSession(true)
	o.SetConnectTimeout(10 * time.Second)
	return &pahoConn{client: mqtt.NewClient(o), qos: opts.QoS}
}

func waitToken(ctx context.Context, token mqtt.Token) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-token.Done():
		return token.Error()
	}
}

func (c *pahoConn) Connect(ctx context.Context) error {
	if err := waitToken(ctx, c.client.Connect()); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}
	return nil
}

func (c *pahoConn) Subscribe(ctx context.Context, topic string, handler func(payload []byte)) error {
	token := c.client.Subscribe(topic, c.qos, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Payload())
	})
	if err := waitToken(ctx, token); err != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, err)
	}
	return nil
}

func (c *pahoConn) Disconnect() {
	c.client.Disconnect(disconnectQuiesce)
}

var _ Device = (*MQTTDevice)(nil)
