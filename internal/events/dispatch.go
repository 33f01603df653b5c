package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dpterminal/pkg/logger"
)

// TopicDispatch is the default topic for dispatch events
const TopicDispatch = "dpterminal.dispatch"

// DispatchEvent describes one handled chat message. The message text
// itself is not included.
type DispatchEvent struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Version     string    `json:"version"`
	Timestamp   time.Time `json:"timestamp"`
	SessionID   string    `json:"session_id,omitempty"`
	Intent      string    `json:"intent"`
	Personality string    `json:"personality"`
	Failed      bool      `json:"failed"`
	HasImage    bool      `json:"has_image"`
	Published   bool      `json:"published"`
	DurationMS  int64     `json:"duration_ms"`
}

// NewDispatchEvent fills id, type, version and timestamp
func NewDispatchEvent() DispatchEvent {
	return DispatchEvent{
		ID:        uuid.NewString(),
		Type:      "chat.dispatched",
		Version:   "1.0",
		Timestamp: time.Now().UTC(),
	}
}

// Producer writes JSON events to Kafka
type Producer interface {
	Publish(ctx context.Context, topic string, key string, event interface{}) error
}

// Publisher emits dispatch events without blocking the request
type Publisher struct {
	producer Producer
	topic    string
	timeout  time.Duration
	log      *logger.Logger
}

// NewPublisher creates a new event publisher
func NewPublisher(producer Producer, topic string, log *logger.Logger) *Publisher {
	if topic == "" {
		topic = TopicDispatch
	}
	return &Publisher{
		producer: producer,
		topic:    topic,
		timeout:  2 * time.Second,
		log:      log.With("component", "event_publisher"),
	}
}

// PublishDispatch writes ev keyed by session. Errors are logged, never returned.
func (p *Publisher) PublishDispatch(ctx context.Context, ev DispatchEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	key := ev.SessionID
	if key == "" {
		key = ev.ID
	}
	if err := p.producer.Publish(ctx, p.topic, key, ev); err != nil {
		p.log.Warnw("Failed to publish dispatch event",
			"event_id", ev.ID,
			"intent", ev.Intent,
			"error", err,
		)
	}
}
