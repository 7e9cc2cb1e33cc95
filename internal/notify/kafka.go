package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaConfig contains configuration for the notification producer
type KafkaConfig struct {
	Brokers      []string
	TopicPrefix  string
	WriteTimeout time.Duration
	BatchTimeout time.Duration
	MaxAttempts  int
}

// DefaultKafkaConfig returns defaults tuned for small, infrequent events
func DefaultKafkaConfig() *KafkaConfig {
	return &KafkaConfig{
		Brokers:      []string{"localhost:9092"},
		TopicPrefix:  "aban",
		WriteTimeout: 5 * time.Second,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
	}
}

// messageWriter is the subset of *kafka.Writer the dispatcher uses
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher publishes each event kind to its own topic
type KafkaDispatcher struct {
	config    *KafkaConfig
	writers   map[string]messageWriter
	newWriter func(topic string) messageWriter
	logger    *zap.Logger
	mu        sync.RWMutex
}

// NewKafkaDispatcher creates a dispatcher. Topics are created lazily on first use.
func NewKafkaDispatcher(config *KafkaConfig, logger *zap.Logger) *KafkaDispatcher {
	if config == nil {
		config = DefaultKafkaConfig()
	}
	d := &KafkaDispatcher{
		config:  config,
		writers: make(map[string]messageWriter),
		logger:  logger,
	}
	d.newWriter = func(topic string) messageWriter {
		return &kafka.Writer{
			Addr:         kafka.TCP(config.Brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: config.BatchTimeout,
			WriteTimeout: config.WriteTimeout,
			RequiredAcks: kafka.RequireAll,
			MaxAttempts:  config.MaxAttempts,
		}
	}
	return d
}

// Topic returns the topic an event kind is published to
func (d *KafkaDispatcher) Topic(kind Kind) string {
	if d.config.TopicPrefix == "" {
		return string(kind)
	}
	return d.config.TopicPrefix + "." + string(kind)
}

// getWriter returns or creates the writer for topic
func (d *KafkaDispatcher) getWriter(topic string) messageWriter {
	d.mu.RLock()
	writer, exists := d.writers[topic]
	d.mu.RUnlock()
	if exists {
		return writer
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if writer, exists := d.writers[topic]; exists {
		return writer
	}
	writer = d.newWriter(topic)
	d.writers[topic] = writer
	return writer
}

// Dispatch publishes event as JSON keyed by a fresh uuid
func (d *KafkaDispatcher) Dispatch(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	topic := d.Topic(event.Kind)
	msg := kafka.Message{
		Key:   []byte(uuid.NewString()),
		Value: data,
		Time:  event.At,
	}

	if err := d.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		d.logger.Error("Failed to publish notification",
			zap.String("topic", topic),
			zap.Int("count", event.Count),
			zap.Error(err))
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	d.logger.Debug("Notification published",
		zap.String("topic", topic),
		zap.Int("count", event.Count))
	return nil
}

// Close flushes and closes every writer
func (d *KafkaDispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var errs []error
	for topic, writer := range d.writers {
		if err := writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close writer %s: %w", topic, err))
		}
		delete(d.writers, topic)
	}
	return errors.Join(errs...)
}
