package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/pkg/errors"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestPublishReusesWriterPerTopic(t *testing.T) {
	writers := map[string]*fakeWriter{}
	p := NewProducerWithWriter(func(topic string) MessageWriter {
		w := &fakeWriter{}
		writers[topic] = w
		return w
	})

	require.NoError(t, p.Publish(context.Background(), "a", "k1", map[string]int{"n": 1}))
	require.NoError(t, p.Publish(context.Background(), "a", "k2", map[string]int{"n": 2}))
	require.NoError(t, p.Publish(context.Background(), "b", "k3", map[string]int{"n": 3}))

	require.Len(t, writers, 2)
	require.Len(t, writers["a"].msgs, 2)
	assert.Equal(t, "k2", string(writers["a"].msgs[1].Key))

	var decoded map[string]int
	require.NoError(t, json.Unmarshal(writers["b"].msgs[0].Value, &decoded))
	assert.Equal(t, 3, decoded["n"])

	require.NoError(t, p.Close())
	assert.True(t, writers["a"].closed)
}

func TestPublishWrapsWriterError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewProducerWithWriter(func(topic string) MessageWriter { return &fakeWriter{err: boom} })

	err := p.Publish(context.Background(), "a", "k", "v")
	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	p := NewProducerWithWriter(func(topic string) MessageWriter { return &fakeWriter{} })
	assert.Error(t, p.Publish(context.Background(), "a", "k", make(chan int)))
}

func TestPublishAfterCloseIsRejected(t *testing.T) {
	created := 0
	p := NewProducerWithWriter(func(topic string) MessageWriter {
		created++
		return &fakeWriter{}
	})

	require.NoError(t, p.Publish(context.Background(), "a", "k", "v"))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	err := p.Publish(context.Background(), "b", "k", "v")
	assert.True(t, errors.Is(err, ErrProducerClosed))
	assert.Equal(t, 1, created)
}
