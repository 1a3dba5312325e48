package logging

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmv4/ghlkit/internal/config"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		level   string
		want    slog.Level
		wantErr bool
	}{
		{level: "debug", want: slog.LevelDebug},
		{level: "info", want: slog.LevelInfo},
		{level: "", want: slog.LevelInfo},
		{level: "warn", want: slog.LevelWarn},
		{level: "error", want: slog.LevelError},
		{level: "verbose", wantErr: true},
	}

	for _, tc := range tests {
		logger, err := New(config.LoggingConfig{Level: tc.level, Format: "json"})
		if tc.wantErr {
			require.Error(t, err, "level %q", tc.level)
			continue
		}
		require.NoError(t, err, "level %q", tc.level)
		require.True(t, logger.Enabled(context.Background(), tc.want), "level %q", tc.level)
		if tc.want > slog.LevelDebug {
			require.False(t, logger.Enabled(context.Background(), tc.want-4), "level %q", tc.level)
		}
	}
}

func TestNewLoggerFormats(t *testing.T) {
	for _, format := range []string{"json", "text", ""} {
		_, err := New(config.LoggingConfig{Level: "info", Format: format})
		require.NoError(t, err, "format %q", format)
	}
	_, err := New(config.LoggingConfig{Level: "info", Format: "xml"})
	require.Error(t, err)
}
