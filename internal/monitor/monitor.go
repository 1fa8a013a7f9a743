package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
)

// Looper runs a function on the session loop and waits for it.
type Looper interface {
	Call(ctx context.Context, fn func(*animation.Model) error) error
	InboxLen() int
}

// QueueLengther reports how many records wait for storage.
type QueueLengther interface {
	QueueLen() int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Session  Looper
	Recorder QueueLengther
	// Backend is optional; only backends that batch writes report a queue.
	Backend    any
	Logger     *slog.Logger
	StatusFile string
	Interval   time.Duration
}

// Status is one sample of the session's state.
type Status struct {
	Time          time.Time       `json:"time"`
	Model         animation.Stats `json:"model"`
	Inbox         int             `json:"inbox"`
	RecorderQueue int             `json:"recorderQueue"`
	BackendQueue  int             `json:"backendQueue"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = 30 * time.Second
	}
	return &Service{
		deps:     deps,
		stopChan: make(chan struct{}),
	}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// GetStatus samples the model on its loop.
func (s *Service) GetStatus(ctx context.Context) (Status, error) {
	st := Status{Time: time.Now(), Inbox: s.deps.Session.InboxLen()}
	err := s.deps.Session.Call(ctx, func(m *animation.Model) error {
		st.Model = m.Stats()
		return nil
	})
	if err != nil {
		return st, fmt.Errorf("sampling model: %w", err)
	}
	if s.deps.Recorder != nil {
		st.RecorderQueue = s.deps.Recorder.QueueLen()
	}
	if q, ok := s.deps.Backend.(QueueLengther); ok {
		st.BackendQueue = q.QueueLen()
	}
	return st, nil
}

func (s *Service) report(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	st, err := s.GetStatus(ctx)
	if err != nil {
		s.deps.Logger.Warn("Status sample failed", "error", err)
		return
	}
	s.deps.Logger.Info("Status",
		"animations", st.Model.Animations,
		"pending", st.Model.Pending,
		"groups", st.Model.Groups,
		"captureRequests", st.Model.CaptureRequests,
		"capturing", st.Model.Capturing,
		"inbox", st.Inbox,
		"recorderQueue", st.RecorderQueue,
		"backendQueue", st.BackendQueue,
	)

	if s.deps.StatusFile == "" {
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "%s"}`, err))
	}
	if err := os.WriteFile(s.deps.StatusFile, append(data, '\n'), 0o644); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	stop := s.stopChan
	s.mu.Unlock()

	go func() {
		s.deps.Logger.Debug("Starting status monitor", "interval", s.deps.Interval)
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() {
			<-stop
			cancel()
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				s.report(ctx)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		close(s.stopChan)
		s.isRunning = false
	}
}
