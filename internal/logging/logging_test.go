package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"INFO", zapcore.InfoLevel},
		{"debug", zapcore.DebugLevel},
		{"trace", zapcore.Level(-2)},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	log, err := New("debug")
	require.NoError(t, err)
	assert.True(t, log.V(1).Enabled())
	assert.False(t, log.V(2).Enabled())

	_, err = New("loud")
	assert.Error(t, err)
}

func TestNewWithCore_Verbosity(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := NewWithCore(core)

	log.Info("loaded", "variant", "stable")
	log.V(1).Info("colorized")
	log.V(2).Info("hidden")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "loaded", entries[0].Message)
	assert.Equal(t, "stable", entries[0].ContextMap()["variant"])
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
}
