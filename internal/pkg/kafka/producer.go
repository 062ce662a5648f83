package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

type Producer interface {
	SendMessage(ctx context.Context, key string, message interface{}) error
	Close() error
}

// Handler consumes a message value in-process when no broker is reachable.
type Handler func(ctx context.Context, value []byte) error

type kafkaProducer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer connects to the brokers and makes sure the topic exists. When
// the brokers cannot be reached it falls back to delivering messages to
// fallback in-process, or to a logging mock if fallback is nil.
func NewProducer(brokers []string, topic string, fallback Handler) Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}

	log := logrus.WithFields(logrus.Fields{"brokers": brokers, "topic": topic})
	log.Info("Kafka producer configured")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn, err := dialAny(ctx, brokers)
	if err != nil {
		log.WithError(err).Warn("Kafka connection failed")
		_ = writer.Close()
		if fallback != nil {
			log.Warn("Processing jobs in-process instead")
			return NewInlineProducer(fallback)
		}
		log.Warn("Using mock producer instead")
		return &mockProducer{}
	}
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	})
	if err != nil {
		log.WithError(err).Info("Could not create topic (might already exist)")
	} else {
		log.Info("Created topic")
	}

	return &kafkaProducer{writer: writer, topic: topic}
}

func dialAny(ctx context.Context, brokers []string) (*kafka.Conn, error) {
	var lastErr error
	for _, broker := range brokers {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			return conn, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (p *kafkaProducer) SendMessage(ctx context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: messageBytes,
		Time:  time.Now(),
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		logrus.WithError(err).WithField("topic", p.topic).Error("Failed to write message to Kafka")
		return err
	}

	logrus.WithFields(logrus.Fields{"topic": p.topic, "key": key}).Debug("Message sent")
	return nil
}

func (p *kafkaProducer) Close() error {
	return p.writer.Close()
}

type inlineProducer struct {
	handler Handler
}

func NewInlineProducer(handler Handler) Producer {
	return &inlineProducer{handler: handler}
}

// SendMessage hands the message to the handler on its own goroutine, detached
// from the caller's context.
func (p *inlineProducer) SendMessage(_ context.Context, key string, message interface{}) error {
	messageBytes, err := json.Marshal(message)
	if err != nil {
		return err
	}

	go func() {
		if err := p.handler(context.Background(), messageBytes); err != nil {
			logrus.WithError(err).WithField("key", key).Error("In-process message handling failed")
		}
	}()
	return nil
}

func (p *inlineProducer) Close() error {
	return nil
}

// mockProducer drops messages after logging them
type mockProducer struct{}

func (m *mockProducer) SendMessage(_ context.Context, key string, message interface{}) error {
	logrus.WithFields(logrus.Fields{"key": key, "message": message}).Info("MOCK: message dropped")
	return nil
}

func (m *mockProducer) Close() error {
	return nil
}
