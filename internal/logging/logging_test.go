package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 10, 19, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name    string
		logsDir string
		base    string
		want    string
	}{
		{
			name:    "basic path",
			logsDir: "livepidlogs",
			base:    "livepid",
			want:    filepath.Join("livepidlogs", "livepid.20261019_213836.log"),
		},
		{
			name:    "relative path with dot",
			logsDir: "./livepidlogs",
			base:    "livepid",
			want:    filepath.Join(".", "livepidlogs", "livepid.20261019_213836.log"),
		},
		{
			name:    "absolute path",
			logsDir: filepath.Join("/var", "log", "livepid"),
			base:    "livepid.otel",
			want:    filepath.Join("/var", "log", "livepid", "livepid.otel.20261019_213836.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, tt.base, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
