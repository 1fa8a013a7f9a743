// Package recorder turns animation model events into storage records. Model
// observers run on the session loop; storage writes happen on the
// dispatcher's queue goroutine so a slow backend never stalls the loop.
package recorder

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/internal/dispatcher"
	"github.com/OCAP2/animscope/internal/logging"
	"github.com/OCAP2/animscope/internal/storage"
	"github.com/OCAP2/animscope/pkg/core"
)

// methodWrite is the single storage queue. One queue keeps a group record
// ahead of its screenshots.
const methodWrite = "storage.write"

const (
	defaultBufferSize = 1000
	defaultDrainGrace = 250 * time.Millisecond
)

// Loop runs functions on the goroutine that owns the model.
type Loop interface {
	Do(fn func(*animation.Model)) bool
}

// Config configures a Recorder.
type Config struct {
	Backend storage.Backend
	Session *core.Session
	Loop    Loop
	Logger  *slog.Logger
	// BufferSize bounds the write queue. Writes block when it is full.
	BufferSize int
	// DrainGrace is added to the capture deadline before screenshots are
	// collected, leaving room for the last frames in flight.
	DrainGrace time.Duration
	// AfterFunc defaults to time.AfterFunc.
	AfterFunc func(time.Duration, func()) *time.Timer
}

// Recorder forwards model events to a storage backend.
type Recorder struct {
	backend   storage.Backend
	session   *core.Session
	loop      Loop
	log       *slog.Logger
	grace     time.Duration
	afterFunc func(time.Duration, func()) *time.Timer
	d         *dispatcher.Dispatcher

	mu       sync.Mutex
	awaiting map[string]*pendingDrain
	ended    bool
}

// pendingDrain is a group whose capture window is still open.
type pendingDrain struct {
	group *animation.Group
	timer *time.Timer
}

// New creates a recorder and registers its write handler.
func New(cfg Config) (*Recorder, error) {
	if cfg.Backend == nil || cfg.Session == nil || cfg.Loop == nil {
		return nil, errors.New("recorder: backend, session and loop are required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = defaultBufferSize
	}
	if cfg.DrainGrace <= 0 {
		cfg.DrainGrace = defaultDrainGrace
	}
	if cfg.AfterFunc == nil {
		cfg.AfterFunc = time.AfterFunc
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(cfg.Logger))
	if err != nil {
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	r := &Recorder{
		backend:   cfg.Backend,
		session:   cfg.Session,
		loop:      cfg.Loop,
		log:       cfg.Logger,
		grace:     cfg.DrainGrace,
		afterFunc: cfg.AfterFunc,
		d:         d,
		awaiting:  make(map[string]*pendingDrain),
	}
	r.RegisterHandlers(d, cfg.BufferSize)
	return r, nil
}

// RegisterHandlers registers the storage write handler with d.
func (r *Recorder) RegisterHandlers(d *dispatcher.Dispatcher, bufferSize int) {
	d.Register(methodWrite, r.handleWrite, dispatcher.Buffered(bufferSize), dispatcher.Blocking(), dispatcher.Logged())
}

// Start opens the session on the backend. Call it before the session loop
// runs.
func (r *Recorder) Start() error {
	if err := r.backend.StartSession(r.session); err != nil {
		return fmt.Errorf("starting session on backend: %w", err)
	}
	r.log.Info("Recording started", "sessionId", r.session.ID, "url", r.session.TargetURL)
	return nil
}

// Attach subscribes to m. Call it before the loop runs or from the loop.
func (r *Recorder) Attach(m *animation.Model) func() {
	return m.Subscribe(func(e animation.Event) {
		if e.Type == animation.GroupStarted {
			r.groupStarted(m, e.Group, e.Merged)
		}
	})
}

func (r *Recorder) groupStarted(m *animation.Model, g *animation.Group, merged bool) {
	r.enqueue(SnapshotGroup(r.session.ID, g, merged, time.Now()))

	c := m.Capture()
	if c == nil || !c.Capturing() {
		return
	}
	wait := time.Until(c.EndTime()) + r.grace

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ended {
		return
	}
	// a restart extends the window; the later drain picks up every frame
	if prev, ok := r.awaiting[g.ID()]; ok {
		prev.timer.Stop()
	}
	r.awaiting[g.ID()] = &pendingDrain{
		group: g,
		timer: r.afterFunc(wait, func() {
			r.loop.Do(func(*animation.Model) { r.drain(g) })
		}),
	}
}

// drain collects frames captured for g since the last drain.
func (r *Recorder) drain(g *animation.Group) {
	r.mu.Lock()
	if p, ok := r.awaiting[g.ID()]; ok && p.group == g {
		delete(r.awaiting, g.ID())
	}
	r.mu.Unlock()

	shots := g.DrainScreenshots()
	if len(shots) == 0 {
		return
	}
	frames := make([][]byte, len(shots))
	for i, s := range shots {
		frames[i] = s.Data
	}
	r.enqueue(&core.ScreenshotBatch{
		SessionID:  r.session.ID,
		GroupID:    g.ID(),
		Frames:     frames,
		CapturedAt: time.Now(),
	})
}

// RecordReset notes that the model was cleared. It matches the session's
// OnReset hook.
func (r *Recorder) RecordReset(reason string) {
	r.enqueue(&core.ResetRecord{
		SessionID: r.session.ID,
		Reason:    reason,
		At:        time.Now(),
	})
}

func (r *Recorder) enqueue(record any) {
	if _, err := r.d.Dispatch(dispatcher.Event{Method: methodWrite, Params: record}); err != nil {
		r.log.Error("Failed to queue record", "type", fmt.Sprintf("%T", record), "error", err)
	}
}

func (r *Recorder) handleWrite(e dispatcher.Event) (any, error) {
	switch rec := e.Params.(type) {
	case *core.GroupRecord:
		return nil, r.backend.RecordGroup(rec)
	case *core.ScreenshotBatch:
		return nil, r.backend.RecordScreenshots(rec)
	case *core.ResetRecord:
		return nil, r.backend.RecordReset(rec)
	default:
		return nil, fmt.Errorf("unexpected record %T", e.Params)
	}
}

// QueueLen is the number of records waiting for the backend.
func (r *Recorder) QueueLen() int { return r.d.QueueLen() }

// End drains screenshots still waiting for their capture window, flushes the
// write queue and closes the session on the backend. Call it after the
// session loop stopped.
func (r *Recorder) End() error {
	r.mu.Lock()
	r.ended = true
	waiting := make([]*animation.Group, 0, len(r.awaiting))
	for _, p := range r.awaiting {
		p.timer.Stop()
		waiting = append(waiting, p.group)
	}
	r.mu.Unlock()

	for _, g := range waiting {
		r.drain(g)
	}
	r.d.Close()

	if err := r.backend.EndSession(r.session); err != nil {
		return fmt.Errorf("ending session on backend: %w", err)
	}
	r.log.Info("Recording ended", "sessionId", r.session.ID, "duration", r.session.Duration())
	return nil
}
