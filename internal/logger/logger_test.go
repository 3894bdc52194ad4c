package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsUnknownLevel(t *testing.T) {
	assert.Error(t, Init(Options{Level: "loud"}))
}

func TestInitDebugLevel(t *testing.T) {
	require.NoError(t, Init(Options{Development: true, Level: "debug"}))
	assert.True(t, GetLogger().Core().Enabled(zapcore.DebugLevel))
}

func TestHelpersWriteToInjectedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(zap.NewNop()) })

	Info("imported", zap.Int("rows", 2))
	Named("fetcher").Warn("image unavailable")
	Debug("hidden")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "imported", entries[0].Message)
	assert.Equal(t, "fetcher", entries[1].LoggerName)
}
