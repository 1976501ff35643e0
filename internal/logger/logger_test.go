package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_Modes(t *testing.T) {
	for _, mode := range []string{"prod", "production", "quiet", "dev", ""} {
		l, err := New(mode)
		require.NoError(t, err, "mode %q", mode)
		require.NotNil(t, l.SugaredLogger)
	}
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil).SugaredLogger)

	l := Nop()
	assert.Same(t, l, OrNop(l))
}

func TestWith_CarriesFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.With("student", "s-1").Info("path generated", "nodes", 3)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "path generated", entry.Message)
	fields := entry.ContextMap()
	assert.Equal(t, "s-1", fields["student"])
	assert.EqualValues(t, 3, fields["nodes"])
}

func TestLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{SugaredLogger: zap.New(core).Sugar()}

	l.Debug("d", "k", 1)
	l.Info("i")
	l.Warn("w")
	l.Error("e")
	l.Sync()

	require.Equal(t, 4, logs.Len())
	var levels []string
	for _, e := range logs.All() {
		levels = append(levels, e.Level.String())
	}
	assert.Equal(t, []string{"debug", "info", "warn", "error"}, levels)
	assert.EqualValues(t, 1, logs.All()[0].ContextMap()["k"])
}
