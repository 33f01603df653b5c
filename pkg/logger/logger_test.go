package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithFieldsAddsContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := &Logger{SugaredLogger: zap.New(core).Sugar()}

	log.WithFields(map[string]interface{}{"provider": "twitter"}).Infow("posted", "post_id", "42")

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "twitter", fields["provider"])
	assert.Equal(t, "42", fields["post_id"])
}
