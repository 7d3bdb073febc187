package internal

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_ParseLevel(t *testing.T) {
	assert := assert.New(t)

	suite := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tCase := range suite {
		assert.Equal(tCase.want, ParseLevel(tCase.in), tCase.in)
	}
}

func Test_TelemetryLogging(t *testing.T) {
	assert := assert.New(t)

	out := &bytes.Buffer{}
	SetupLogging(slog.LevelInfo, out)
	defer SetupLogging(slog.LevelInfo, os.Stderr)

	tel := NewTelemetry("test", "logger")

	tel.LogDebug("hidden message")
	tel.LogInfo("visible message", "key", 42)
	tel.LogError("failure message", errors.New("boom"))

	logged := out.String()
	assert.NotContains(logged, "hidden message")
	assert.Contains(logged, "visible message")
	assert.Contains(logged, "key=42")
	assert.Contains(logged, "scope=test")
	assert.Contains(logged, "boom")
}
