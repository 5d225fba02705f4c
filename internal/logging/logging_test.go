package logging

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerWithWriter_Formats(t *testing.T) {
	var text, js bytes.Buffer
	NewLoggerWithWriter(slog.LevelInfo, "text", &text).Info("strategy resolved", "policy", "fair")
	NewLoggerWithWriter(slog.LevelInfo, "JSON", &js).Info("strategy resolved", "policy", "fair")

	require.Contains(t, text.String(), "policy=fair")
	require.Contains(t, js.String(), `"policy":"fair"`)
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)
	logger.Info("hidden")
	logger.Warn("shown")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		require.Equal(t, want, ParseLevel(in), in)
	}
}
