// Package session runs the event loop that owns an animation model for one
// debugging target. Protocol events, timer continuations and external calls
// all go through a single ordered inbox, so the model never needs a lock.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/internal/channel"
	"github.com/OCAP2/animscope/internal/dispatcher"
	"github.com/OCAP2/animscope/internal/logging"
	"github.com/OCAP2/animscope/pkg/core"
	"github.com/chromedp/cdproto"
	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/page"
)

// ErrStopped is returned for calls made after the loop exited.
var ErrStopped = errors.New("session stopped")

// methodInvoke carries a func(*animation.Model) onto the loop.
const methodInvoke = "session.invoke"

const defaultInboxSize = 10_000

const animationDomain = "Animation."

// Config configures a Session.
type Config struct {
	Gateway      animation.Gateway
	Screencaster animation.Screencaster
	Styler       animation.NodeStyler
	// Capture is ignored without a Screencaster.
	Capture   animation.ScreencastParams
	MaxWindow time.Duration

	InboxSize int
	TargetURL string
	Logger    *slog.Logger

	// OnReset runs on the loop after the model was cleared, with one of the
	// core.Reset* reasons.
	OnReset func(reason string)
}

// Session is the per-target owner of an animation.Model.
type Session struct {
	info  *core.Session
	model *animation.Model
	inbox channel.Channel[dispatcher.Event]
	d     *dispatcher.Dispatcher
	log   *slog.Logger

	commands *commandQueue
	// lostAnimation is set when an Animation event did not fit the inbox.
	lostAnimation atomic.Bool

	onReset func(string)

	mu  sync.RWMutex
	url string

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a session and its model. Nothing runs until Run.
func New(cfg Config) (*Session, error) {
	if cfg.Gateway == nil {
		return nil, errors.New("session: gateway is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	size := cfg.InboxSize
	if size <= 0 {
		size = defaultInboxSize
	}

	info := core.NewSession(cfg.TargetURL, time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		info:     info,
		inbox:    channel.New[dispatcher.Event](size),
		log:      cfg.Logger.With("session", info.ID),
		onReset:  cfg.OnReset,
		commands: newCommandQueue(),
		url:      cfg.TargetURL,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	opts := []animation.Option{
		animation.WithContext(ctx),
		animation.WithLogger(s.log.With("component", "animation")),
		animation.WithPost(s.post),
		animation.WithExecutor(s.commands.Exec),
	}
	if cfg.Screencaster != nil {
		opts = append(opts, animation.WithScreencaster(cfg.Screencaster))
		if cfg.Capture != (animation.ScreencastParams{}) {
			opts = append(opts, animation.WithScreencastParams(cfg.Capture))
		}
		if cfg.MaxWindow > 0 {
			opts = append(opts, animation.WithMaxCaptureWindow(cfg.MaxWindow))
		}
	}
	if cfg.Styler != nil {
		opts = append(opts, animation.WithNodeStyler(cfg.Styler))
	}
	model, err := animation.NewModel(cfg.Gateway, opts...)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating animation model: %w", err)
	}
	s.model = model

	d, err := dispatcher.New(logging.NewDispatcherLogger(s.log))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}
	s.d = d
	s.registerHandlers()
	return s, nil
}

func (s *Session) registerHandlers() {
	s.d.Register(cdproto.EventAnimationAnimationCreated, s.handleCreated)
	s.d.Register(cdproto.EventAnimationAnimationCanceled, s.handleCanceled)
	s.d.Register(cdproto.EventAnimationAnimationStarted, s.handleStarted, dispatcher.Logged())
	s.d.Register(cdproto.EventPageScreencastFrame, s.handleFrame)
	s.d.Register(cdproto.EventPageFrameNavigated, s.handleNavigated, dispatcher.Logged())
	s.d.Register(methodInvoke, s.handleInvoke)
}

// Info describes the recording session.
func (s *Session) Info() *core.Session { return s.info }

// Model returns the owned model. Only touch it from the loop (inside Do) or
// before Run starts.
func (s *Session) Model() *animation.Model { return s.model }

// URL is the page currently loaded in the target.
func (s *Session) URL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.url
}

// LogAttrs is a logging.ContextProvider for the session.
func (s *Session) LogAttrs() []slog.Attr {
	return []slog.Attr{
		slog.String("sessionId", s.info.ID),
		slog.String("url", s.URL()),
	}
}

// InboxLen reports how many events wait for the loop.
func (s *Session) InboxLen() int { return s.inbox.Len() }

// Deliver enqueues a protocol event without blocking. It reports false when
// the inbox is full or the loop has stopped. A lost Animation event resets
// the model once the loop has caught up.
func (s *Session) Deliver(method string, params any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	if s.inbox.TrySend(dispatcher.Event{Method: method, Params: params, Timestamp: time.Now()}) {
		return true
	}
	if strings.HasPrefix(method, animationDomain) {
		s.lostAnimation.Store(true)
	}
	return false
}

// Do schedules fn on the loop without waiting for it.
func (s *Session) Do(fn func(*animation.Model)) bool {
	return s.Deliver(methodInvoke, fn)
}

// Call runs fn on the loop and waits for it to finish.
func (s *Session) Call(ctx context.Context, fn func(*animation.Model) error) error {
	errc := make(chan error, 1)
	ev := dispatcher.Event{
		Method:    methodInvoke,
		Params:    func(m *animation.Model) { errc <- fn(m) },
		Timestamp: time.Now(),
	}
	if err := s.send(ctx, ev); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrStopped
	}
}

// post moves model timer continuations onto the loop. Unlike Deliver it
// waits for room, as a lost continuation would leave capture running.
func (s *Session) post(f func()) {
	ev := dispatcher.Event{Method: methodInvoke, Params: func(*animation.Model) { f() }}
	if err := s.send(s.ctx, ev); err != nil {
		s.log.Debug("Dropping timer continuation", "error", err)
	}
}

func (s *Session) send(ctx context.Context, ev dispatcher.Event) error {
	select {
	case <-s.done:
		return ErrStopped
	default:
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()
	if err := s.inbox.SendContext(ctx, ev); err != nil {
		select {
		case <-s.done:
			return ErrStopped
		default:
			return err
		}
	}
	return nil
}

// Run enables the Animation domain and processes the inbox until ctx is done
// or Close is called. It must be called once.
func (s *Session) Run(ctx context.Context) error {
	defer close(s.done)
	defer s.cancel()

	go s.commands.run(s.ctx)

	if err := s.model.EnsureEnabled(ctx); err != nil {
		return err
	}
	s.log.Info("Session started", "url", s.URL())

	for {
		select {
		case <-ctx.Done():
			s.shutdown()
			return ctx.Err()
		case <-s.ctx.Done():
			s.shutdown()
			return nil
		case e := <-s.inbox.Receive():
			if _, err := s.d.Dispatch(e); err != nil {
				s.log.Warn("Event failed", "method", e.Method, "error", err)
			}
			s.resyncIfNeeded()
		}
	}
}

// resyncIfNeeded resets the model after Animation events were dropped. It
// waits for an empty inbox so every event queued before the loss has been
// applied; a created id whose started event was lost would otherwise block
// grouping for the rest of the session.
func (s *Session) resyncIfNeeded() {
	if !s.lostAnimation.Load() || s.inbox.Len() > 0 {
		return
	}
	s.lostAnimation.Store(false)
	s.log.Warn("Animation events were dropped, resetting model")
	s.model.Reset()
	s.notifyReset(core.ResetOverflow)
}

// shutdown stops capture while the loop still owns the model.
func (s *Session) shutdown() {
	if c := s.model.Capture(); c != nil {
		c.Stop()
	}
	s.info.End(time.Now())
	s.log.Info("Session stopped", "duration", s.info.Duration())
}

// Close stops the loop. Pending events are discarded.
func (s *Session) Close() {
	s.cancel()
}

// Done is closed once Run returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Suspend clears the model and disables the domain while the target is
// paused.
func (s *Session) Suspend(ctx context.Context) error {
	return s.Call(ctx, func(m *animation.Model) error {
		err := m.SuspendModel(ctx)
		s.notifyReset(core.ResetSuspend)
		return err
	})
}

// Resume re-enables the domain after Suspend.
func (s *Session) Resume(ctx context.Context) error {
	return s.Call(ctx, func(m *animation.Model) error {
		return m.ResumeModel(ctx)
	})
}

// ResetModel drops every animation and group on request.
func (s *Session) ResetModel(ctx context.Context) error {
	return s.Call(ctx, func(m *animation.Model) error {
		m.Reset()
		s.notifyReset(core.ResetManual)
		return nil
	})
}

func (s *Session) notifyReset(reason string) {
	s.log.Info("Animation model reset", "reason", reason)
	if s.onReset != nil {
		s.onReset(reason)
	}
}

func (s *Session) handleCreated(e dispatcher.Event) (any, error) {
	ev, ok := e.Params.(*cdpanim.EventAnimationCreated)
	if !ok {
		return nil, unexpected(e)
	}
	s.model.AnimationCreated(ev.ID)
	return nil, nil
}

func (s *Session) handleCanceled(e dispatcher.Event) (any, error) {
	ev, ok := e.Params.(*cdpanim.EventAnimationCanceled)
	if !ok {
		return nil, unexpected(e)
	}
	s.model.AnimationCanceled(ev.ID)
	return nil, nil
}

func (s *Session) handleStarted(e dispatcher.Event) (any, error) {
	ev, ok := e.Params.(*cdpanim.EventAnimationStarted)
	if !ok {
		return nil, unexpected(e)
	}
	s.model.AnimationStarted(ev.Animation)
	return nil, nil
}

func (s *Session) handleFrame(e dispatcher.Event) (any, error) {
	ev, ok := e.Params.(*page.EventScreencastFrame)
	if !ok {
		return nil, unexpected(e)
	}
	s.model.ScreencastFrame(ev.Data)
	return nil, nil
}

// handleNavigated resets the model when the main frame commits a new
// document. Subframe navigations keep the model.
func (s *Session) handleNavigated(e dispatcher.Event) (any, error) {
	ev, ok := e.Params.(*page.EventFrameNavigated)
	if !ok {
		return nil, unexpected(e)
	}
	if ev.Frame == nil || ev.Frame.ParentID != "" {
		return nil, nil
	}
	url := ev.Frame.URL
	s.mu.Lock()
	s.url = url
	s.mu.Unlock()

	s.model.Reset()
	s.notifyReset(core.ResetNavigation)
	return nil, nil
}

func (s *Session) handleInvoke(e dispatcher.Event) (any, error) {
	fn, ok := e.Params.(func(*animation.Model))
	if !ok {
		return nil, unexpected(e)
	}
	fn(s.model)
	return nil, nil
}

func unexpected(e dispatcher.Event) error {
	return fmt.Errorf("unexpected params %T for %s", e.Params, e.Method)
}
