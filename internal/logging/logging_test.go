package logging

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLogFilePath(t *testing.T) {
	sessionStart := time.Date(2026, 2, 12, 21, 38, 36, 0, time.UTC)

	tests := []struct {
		name      string
		logsDir   string
		sessionID string
		want      string
	}{
		{
			name:    "no session",
			logsDir: "animscopelogs",
			want:    filepath.Join("animscopelogs", "animscope.20260212_213836.log"),
		},
		{
			name:      "session id is shortened",
			logsDir:   "./animscopelogs",
			sessionID: "3f2a9c1e-7b44-4d7e-9a51-0c8e2b6f1d90",
			want:      filepath.Join(".", "animscopelogs", "animscope.20260212_213836.3f2a9c1e.log"),
		},
		{
			name:      "absolute path",
			logsDir:   filepath.Join("/var", "log", "animscope"),
			sessionID: "abc",
			want:      filepath.Join("/var", "log", "animscope", "animscope.20260212_213836.abc.log"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogFilePath(tt.logsDir, "animscope", tt.sessionID, sessionStart)
			assert.Equal(t, tt.want, got)
		})
	}
}
