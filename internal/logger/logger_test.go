package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"trace", TraceLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"panic", zapcore.PanicLevel},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitFiltersByLevelAndWritesFile(t *testing.T) {
	var console bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "dashgen.log")

	require.NoError(t, Init(Options{Level: "info", File: logPath, Console: &console}))
	t.Cleanup(func() {
		_ = Close()
		_ = Init(Options{Level: "info"})
	})

	Debug("hidden %d", 1)
	Info("shown %s", "here")
	Trace("also hidden")

	assert.Contains(t, console.String(), "shown here")
	assert.NotContains(t, console.String(), "hidden")

	SetLevel(TraceLevel)
	Trace("now visible")
	assert.Contains(t, console.String(), "TRACE")

	require.NoError(t, Close())
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"shown here"`)
}
