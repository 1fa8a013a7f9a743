package logging

import (
	"fmt"
	"path/filepath"
	"time"
)

// LogFilePath builds the log file path of one recording session. The
// session id is shortened to its first eight characters.
func LogFilePath(logsDir, binaryName, sessionID string, sessionStart time.Time) string {
	if len(sessionID) > 8 {
		sessionID = sessionID[:8]
	}
	name := fmt.Sprintf("%s.%s.log", binaryName, sessionStart.Format("20060102_150405"))
	if sessionID != "" {
		name = fmt.Sprintf("%s.%s.%s.log", binaryName, sessionStart.Format("20060102_150405"), sessionID)
	}
	return filepath.Join(logsDir, name)
}
