// Package memory keeps a session in memory and exports it as JSON when the
// session ends.
package memory

import (
	"errors"
	"sync"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no active session")

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	groups      []core.GroupRecord
	screenshots []core.ScreenshotBatch
	resets      []core.ResetRecord

	lastExportPath string
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{cfg: cfg}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops anything kept from
// the previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
	b.groups = nil
	b.screenshots = nil
	b.resets = nil
	b.lastExportPath = ""
	return nil
}

// EndSession finalizes and exports the session data
func (b *Backend) EndSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.session = s
	return b.exportJSON()
}

// RecordGroup keeps every group notification in arrival order
func (b *Backend) RecordGroup(g *core.GroupRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.groups = append(b.groups, *g)
	return nil
}

// RecordScreenshots keeps a batch of frames
func (b *Backend) RecordScreenshots(batch *core.ScreenshotBatch) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.screenshots = append(b.screenshots, *batch)
	return nil
}

// RecordReset keeps a reset marker
func (b *Backend) RecordReset(r *core.ResetRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	b.resets = append(b.resets, *r)
	return nil
}

// GetExportedFilePath returns the file written by the last EndSession.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}

// Recording returns a snapshot of everything kept so far.
func (b *Backend) Recording() Recording {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.buildRecording()
}
