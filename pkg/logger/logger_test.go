package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("ERROR"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("loud"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestNew(t *testing.T) {
	l, err := New("debug", "stderr")
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestChildFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := &Logger{Logger: zap.New(core)}

	l.WithSession("owner-1").Info("session")
	l.WithRequest("corr-1", "owner-2").Info("request")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "owner-1", entries[0].ContextMap()["owner_id"])
	assert.Equal(t, "corr-1", entries[1].ContextMap()["correlation_id"])
	assert.Equal(t, "owner-2", entries[1].ContextMap()["owner_id"])
}
