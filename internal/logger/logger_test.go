package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		checkFunc func(t *testing.T, output string)
	}{
		{
			name: "Text Logger Info Level",
			config: Config{
				Level:  "info",
				Format: "text",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
				assert.Contains(t, output, `msg="test message"`)
			},
		},
		{
			name: "JSON Logger Debug Level",
			config: Config{
				Level:  "debug",
				Format: "json",
				Output: "stdout",
			},
			checkFunc: func(t *testing.T, output string) {
				var logEntry map[string]any
				require.NoError(t, json.Unmarshal([]byte(output), &logEntry), "output: %s", output)
				assert.Equal(t, "DEBUG", logEntry["level"])
				assert.Equal(t, "test message", logEntry["msg"])
			},
		},
		{
			name: "Invalid Level Falls Back To Info",
			config: Config{
				Level:  "verbose",
				Format: "text",
			},
			checkFunc: func(t *testing.T, output string) {
				assert.Contains(t, output, "level=INFO")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(tt.config, &buf)

			if tt.config.Level == "debug" {
				logger.Debug("test message")
			} else {
				logger.Info("test message")
			}

			tt.checkFunc(t, buf.String())
		})
	}
}

func TestNewLogger_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

type brokenWriter struct{ calls int }

func (b *brokenWriter) Write([]byte) (int, error) {
	b.calls++
	return 0, errors.New("disk full")
}

func TestFailSafe(t *testing.T) {
	sink := &brokenWriter{}
	w := FailSafe(sink)

	n, err := w.Write([]byte("job started\n"))
	require.NoError(t, err)
	assert.Equal(t, len("job started\n"), n)

	logger := slog.New(slog.NewTextHandler(w, nil))
	assert.NotPanics(t, func() { logger.Info("job finished", "state", "succeeded") })
	assert.Equal(t, 2, sink.calls)

	assert.Same(t, w, FailSafe(w), "wrapping twice returns the same writer")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	assert.False(t, logger.Enabled(t.Context(), slog.LevelError))
}
