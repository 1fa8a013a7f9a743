package storage

import "github.com/OCAP2/animscope/pkg/core"

// Backend is the interface all storage implementations must satisfy.
// Calls arrive from a single recorder goroutine.
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession(s *core.Session) error

	// Recording
	RecordGroup(g *core.GroupRecord) error
	RecordScreenshots(b *core.ScreenshotBatch) error
	RecordReset(r *core.ResetRecord) error
}

// Exporter is an optional interface for storage backends that produce a
// file once a session ends.
type Exporter interface {
	GetExportedFilePath() string
}
