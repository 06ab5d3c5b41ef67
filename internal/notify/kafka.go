package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher forwards notifications to a Kafka topic, keyed by kind.
type KafkaPublisher struct {
	writer   messageWriter
	deviceID func() string
	logger   *zap.Logger
}

// NewKafkaPublisher writes to topic on brokers. deviceID, when set, is added
// as a message header.
func NewKafkaPublisher(brokers []string, topic string, deviceID func() string, logger *zap.Logger) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		WriteTimeout: 10 * time.Second,
	}
	return newKafkaPublisher(w, deviceID, logger)
}

func newKafkaPublisher(w messageWriter, deviceID func() string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if deviceID == nil {
		deviceID = func() string { return "" }
	}
	return &KafkaPublisher{writer: w, deviceID: deviceID, logger: logger}
}

// Write sends one notification.
func (k *KafkaPublisher) Write(ctx context.Context, n Notification) error {
	value, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(n.Kind),
		Value: value,
		Time:  n.At,
	}
	if id := k.deviceID(); id != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "device_id", Value: []byte(id)})
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return nil
}

// Run forwards notifications until the channel closes or ctx is done.
// Failed writes are logged and skipped.
func (k *KafkaPublisher) Run(ctx context.Context, notifications <-chan Notification) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				return nil
			}
			if err := k.Write(ctx, n); err != nil {
				k.logger.Warn("kafka publish failed",
					zap.String("kind", string(n.Kind)),
					zap.Uint64("sequence", n.Sequence),
					zap.Error(err),
				)
			}
		}
	}
}

// Close flushes and closes the writer.
func (k *KafkaPublisher) Close() error {
	return k.writer.Close()
}
