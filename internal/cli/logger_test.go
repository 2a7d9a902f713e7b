package cli

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{" error ", slog.LevelError, false},
		{"loud", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		verbose int
		quiet   bool
		enabled slog.Level
		muted   slog.Level
	}{
		{"configured level", "warn", 0, false, slog.LevelWarn, slog.LevelInfo},
		{"one -v", "warn", 1, false, slog.LevelInfo, slog.LevelDebug},
		{"two -v", "warn", 2, false, slog.LevelDebug, slog.LevelDebug - 1},
		{"clamped at debug", "info", 5, false, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet wins", "debug", 2, true, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(&bytes.Buffer{}, tt.level, tt.verbose, tt.quiet)
			require.NoError(t, err)
			assert.True(t, logger.Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Enabled(context.Background(), tt.muted))
		})
	}
}

func TestNewLogger_Writes(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", 0, false)
	require.NoError(t, err)

	logger.Info("compiled query", "roots", 2)
	assert.Contains(t, buf.String(), `msg="compiled query" roots=2`)

	_, err = NewLogger(&buf, "nope", 0, false)
	require.Error(t, err)
}
