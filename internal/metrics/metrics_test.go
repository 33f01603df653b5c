package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dpterminal/internal/testsupport"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(DispatchTotal.WithLabelValues("price", "failure"))
	RecordDispatch("price", 10*time.Millisecond, true)
	assert.Equal(t, before+1, testutil.ToFloat64(DispatchTotal.WithLabelValues("price", "failure")))
}

func TestRecordKafkaMessage(t *testing.T) {
	before := testutil.ToFloat64(KafkaMessages.WithLabelValues("t", "error"))
	RecordKafkaMessage("t", errors.New("broker down"))
	assert.Equal(t, before+1, testutil.ToFloat64(KafkaMessages.WithLabelValues("t", "error")))
}

func TestInitIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestRedisPoolCollector(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(NewRedisPoolCollector(client)))

	n, err := testutil.GatherAndCount(reg)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
}
