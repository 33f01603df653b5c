package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"dpterminal/internal/metrics"
	"dpterminal/pkg/errors"
	"dpterminal/pkg/logger"
)

// ErrProducerClosed is returned by Publish after Close
var ErrProducerClosed = errors.New("kafka producer closed")

// MessageWriter is the subset of *kafka.Writer the producer needs
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes JSON messages to Kafka topics
type Producer struct {
	mu        sync.Mutex
	writers   map[string]MessageWriter
	closed    bool
	newWriter func(topic string) MessageWriter
	log       *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers      []string
	Async        bool
	BatchTimeout time.Duration
}

// NewProducer creates a producer. With Async set, WriteMessages returns
// immediately and delivery errors are only logged.
func NewProducer(cfg ProducerConfig) *Producer {
	p := &Producer{
		writers: make(map[string]MessageWriter),
		log:     logger.Get().With("component", "kafka_producer"),
	}
	batchTimeout := cfg.BatchTimeout
	if batchTimeout <= 0 {
		batchTimeout = 50 * time.Millisecond
	}

	p.newWriter = func(topic string) MessageWriter {
		w := &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			Async:                  cfg.Async,
			BatchTimeout:           batchTimeout,
			AllowAutoTopicCreation: true,
		}
		if cfg.Async {
			w.Completion = func(msgs []kafka.Message, err error) {
				metrics.RecordKafkaMessage(topic, err)
				if err != nil {
					p.log.Warnw("Async kafka delivery failed", "topic", topic, "messages", len(msgs), "error", err)
				}
			}
		}
		return w
	}
	return p
}

// NewProducerWithWriter builds a producer whose writers come from newWriter
func NewProducerWithWriter(newWriter func(topic string) MessageWriter) *Producer {
	return &Producer{
		writers:   make(map[string]MessageWriter),
		newWriter: newWriter,
		log:       logger.Get().With("component", "kafka_producer"),
	}
}

func (p *Producer) writer(topic string) (MessageWriter, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrProducerClosed
	}
	if w, ok := p.writers[topic]; ok {
		return w, nil
	}
	w := p.newWriter(topic)
	p.writers[topic] = w
	return w, nil
}

// Publish marshals event to JSON and writes it under key
func (p *Producer) Publish(ctx context.Context, topic string, key string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "marshal kafka event")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Time:  time.Now(),
	}

	w, err := p.writer(topic)
	if err != nil {
		return errors.Wrapf(err, "publish to %s", topic)
	}
	if err := w.WriteMessages(ctx, msg); err != nil {
		metrics.RecordKafkaMessage(topic, err)
		return errors.Wrapf(err, "publish to %s", topic)
	}

	p.log.Debugw("Published kafka message", "topic", topic, "key", key)
	return nil
}

// Close closes all writers. Later Publish calls fail with ErrProducerClosed.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	var errs []error
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			errs = append(errs, errors.Wrapf(err, "close writer for %s", topic))
		}
	}
	return errors.Join(errs...)
}
