// Package animation tracks the animations running on an inspected page,
// groups the ones that start together and captures thumbnails for them.
//
// A Model is not safe for concurrent use. Every method, observer callback
// and timer continuation runs on the loop that owns the model, normally a
// session.Session.
package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	cdpanim "github.com/chromedp/cdproto/animation"
)

// ErrNotEnabled is returned when the model is used before EnsureEnabled.
var ErrNotEnabled = errors.New("animation domain not enabled")

// Option configures a Model.
type Option func(*Model)

// WithScreencaster enables thumbnail capture through sc.
func WithScreencaster(sc Screencaster) Option {
	return func(m *Model) { m.screencaster = sc }
}

// WithScreencastParams overrides the screencast format.
func WithScreencastParams(p ScreencastParams) Option {
	return func(m *Model) { m.screencastParams = p }
}

// WithMaxCaptureWindow overrides the per-request capture cap.
func WithMaxCaptureWindow(d time.Duration) Option {
	return func(m *Model) { m.maxCaptureWindow = d }
}

// WithNodeStyler lets SetTiming mirror edits onto the node's CSS.
func WithNodeStyler(s NodeStyler) Option {
	return func(m *Model) { m.styler = s }
}

// WithClock replaces the wall clock used by capture.
func WithClock(c Clock) Option {
	return func(m *Model) { m.clock = c }
}

// WithExecutor sets how fire-and-forget protocol calls are run. exec must
// run calls in the order it receives them. The default runs them in place.
func WithExecutor(exec func(func())) Option {
	return func(m *Model) { m.exec = exec }
}

// WithPost sets how timer continuations are moved back onto the model's
// loop. It is required when capturing on the system clock, whose timers fire
// on their own goroutines. Without it continuations run in place.
func WithPost(post func(func())) Option {
	return func(m *Model) { m.post = post }
}

// WithContext sets the context for fire-and-forget calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.log = l }
}

// Model is the per-target animation registry and grouping engine.
type Model struct {
	gateway          Gateway
	screencaster     Screencaster
	screencastParams ScreencastParams
	maxCaptureWindow time.Duration
	styler           NodeStyler
	clock            Clock
	exec             func(func())
	post             func(func())
	ctx              context.Context
	log              *slog.Logger
	metrics          *metrics

	animationsByID map[string]*Animation
	groups         []*Group
	groupsByID     map[string]*Group
	pending        *pendingSet
	capture        *ScreenshotCapture

	playbackRate float64
	enabled      bool

	observers    []subscription
	nextObserver int
}

// NewModel creates a model that issues commands through gw.
func NewModel(gw Gateway, opts ...Option) (*Model, error) {
	m := &Model{
		gateway:          gw,
		screencastParams: DefaultScreencastParams(),
		maxCaptureWindow: DefaultMaxCaptureWindow,
		clock:            systemClock{},
		exec:             func(f func()) { f() },
		ctx:              context.Background(),
		log:              slog.Default(),
		animationsByID:   make(map[string]*Animation),
		groupsByID:       make(map[string]*Group),
		pending:          newPendingSet(),
		playbackRate:     1,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.post == nil {
		if _, wall := m.clock.(systemClock); wall && m.screencaster != nil {
			return nil, errors.New("animation: capture on the system clock needs WithPost")
		}
		m.post = func(f func()) { f() }
	}

	met, err := newMetrics()
	if err != nil {
		return nil, err
	}
	m.metrics = met

	if m.screencaster != nil {
		m.capture = newScreenshotCapture(m, m.screencaster, m.clock, m.screencastParams, m.maxCaptureWindow)
		m.Subscribe(func(e Event) {
			if e.Type == ModelReset {
				m.capture.Stop()
			}
		})
	}
	return m, nil
}

// Subscribe registers an observer and returns a function that removes it.
func (m *Model) Subscribe(fn Observer) func() {
	m.nextObserver++
	id := m.nextObserver
	m.observers = append(m.observers, subscription{id: id, fn: fn})
	return func() {
		for i, s := range m.observers {
			if s.id == id {
				m.observers = append(m.observers[:i:i], m.observers[i+1:]...)
				return
			}
		}
	}
}

func (m *Model) emit(e Event) {
	for _, s := range m.observers {
		s.fn(e)
	}
}

// fire runs a protocol call without waiting for it. Failures are logged and
// counted; nothing is rolled back.
func (m *Model) fire(op string, call func(ctx context.Context) error) {
	ctx := m.ctx
	m.exec(func() {
		if err := call(ctx); err != nil {
			m.metrics.remoteError(op)
			m.log.Error("protocol call failed", "op", op, "error", err)
		}
	})
}

// EnsureEnabled enables the Animation domain once.
func (m *Model) EnsureEnabled(ctx context.Context) error {
	if m.enabled {
		return nil
	}
	if err := m.gateway.Enable(ctx); err != nil {
		return fmt.Errorf("enabling animation domain: %w", err)
	}
	m.enabled = true
	return nil
}

// Enabled reports whether EnsureEnabled succeeded.
func (m *Model) Enabled() bool { return m.enabled }

// SuspendModel clears all state and disables the domain on the target.
func (m *Model) SuspendModel(ctx context.Context) error {
	m.Reset()
	if err := m.gateway.Disable(ctx); err != nil {
		return fmt.Errorf("disabling animation domain: %w", err)
	}
	return nil
}

// ResumeModel re-enables the domain if it was enabled before suspension.
func (m *Model) ResumeModel(ctx context.Context) error {
	if !m.enabled {
		return nil
	}
	if err := m.gateway.Enable(ctx); err != nil {
		return fmt.Errorf("re-enabling animation domain: %w", err)
	}
	return nil
}

// SetPlaybackRate changes the page-wide animation speed.
func (m *Model) SetPlaybackRate(rate float64) {
	m.playbackRate = rate
	m.fire("setPlaybackRate", func(ctx context.Context) error {
		return m.gateway.SetPlaybackRate(ctx, rate)
	})
}

func (m *Model) PlaybackRate() float64 { return m.playbackRate }

// Reset drops every animation, group and pending id.
func (m *Model) Reset() {
	clear(m.animationsByID)
	clear(m.groupsByID)
	m.groups = nil
	m.pending.clear()
	m.emit(Event{Type: ModelReset})
}

// AnimationCreated marks id as pending until its payload arrives.
func (m *Model) AnimationCreated(id string) {
	m.pending.add(id)
}

// AnimationCanceled forgets a pending id.
func (m *Model) AnimationCanceled(id string) {
	m.pending.remove(id)
	m.flushPendingIfNeeded()
}

// AnimationStarted ingests a started animation.
func (m *Model) AnimationStarted(p *cdpanim.Animation) {
	if p == nil || p.Source == nil || p.Source.BackendNodeID == 0 {
		m.metrics.dropped("malformed")
		m.log.Debug("dropping animation without target node")
		return
	}
	if Kind(p.Type) == KindWebAnimation && p.Source.KeyframesRule != nil && len(p.Source.KeyframesRule.Keyframes) == 0 {
		m.pending.remove(p.ID)
		m.metrics.dropped("empty")
		m.flushPendingIfNeeded()
		return
	}

	m.animationsByID[p.ID] = newAnimation(m, p)
	m.pending.add(p.ID)
	m.flushPendingIfNeeded()
}

func (m *Model) flushPendingIfNeeded() {
	for _, id := range m.pending.order {
		if _, ok := m.animationsByID[id]; !ok {
			return
		}
	}
	for m.pending.len() > 0 {
		m.matchExistingGroups(m.createGroupFromPending())
	}
}

func (m *Model) createGroupFromPending() *Group {
	if m.pending.len() == 0 {
		panic("animation: group extraction with empty pending set")
	}
	anchorID := m.pending.order[0]
	m.pending.remove(anchorID)
	anchor, ok := m.animationsByID[anchorID]
	if !ok {
		panic(fmt.Sprintf("animation: pending anchor %q has no record", anchorID))
	}

	members := []*Animation{anchor}
	for _, id := range m.pending.ids() {
		a := m.animationsByID[id]
		if a.startTime == anchor.startTime {
			members = append(members, a)
			m.pending.remove(id)
		}
	}
	return newGroup(m, anchorID, members)
}

func (m *Model) matchExistingGroups(incoming *Group) bool {
	var matched *Group
	for _, g := range m.groups {
		if g.matches(incoming) {
			matched = g
			g.update(incoming)
			break
		}
	}

	if matched != nil {
		m.metrics.groupsMerged.Add(context.Background(), 1)
		m.emit(Event{Type: GroupStarted, Group: matched, Merged: true})
		return true
	}

	m.groups = append(m.groups, incoming)
	m.groupsByID[incoming.id] = incoming
	m.metrics.groupsCreated.Add(context.Background(), 1)
	if m.capture != nil {
		m.capture.CaptureScreenshots(incoming.FiniteDuration(), incoming)
	}
	m.emit(Event{Type: GroupStarted, Group: incoming})
	return false
}

func (m *Model) removeGroup(id string) {
	if _, ok := m.groupsByID[id]; !ok {
		return
	}
	delete(m.groupsByID, id)
	for i, g := range m.groups {
		if g.id == id {
			m.groups = append(m.groups[:i:i], m.groups[i+1:]...)
			break
		}
	}
}

// ScreencastFrame forwards a page screencast frame to capture.
func (m *Model) ScreencastFrame(data string) {
	if m.capture != nil {
		m.capture.HandleFrame(data)
	}
}

// Capture returns the screenshot capture, nil without a screencaster.
func (m *Model) Capture() *ScreenshotCapture { return m.capture }

// Animation returns a resident record.
func (m *Model) Animation(id string) (*Animation, bool) {
	a, ok := m.animationsByID[id]
	return a, ok
}

// Group returns a registered group.
func (m *Model) Group(id string) (*Group, bool) {
	g, ok := m.groupsByID[id]
	return g, ok
}

// Groups returns the registered groups in creation order.
func (m *Model) Groups() []*Group {
	out := make([]*Group, len(m.groups))
	copy(out, m.groups)
	return out
}

// Pending returns the pending ids in insertion order.
func (m *Model) Pending() []string { return m.pending.ids() }

// Stats is a point-in-time summary of the model.
type Stats struct {
	Animations      int
	Pending         int
	Groups          int
	CaptureRequests int
	Capturing       bool
	PlaybackRate    float64
	Enabled         bool
}

func (m *Model) Stats() Stats {
	s := Stats{
		Animations:   len(m.animationsByID),
		Pending:      m.pending.len(),
		Groups:       len(m.groups),
		PlaybackRate: m.playbackRate,
		Enabled:      m.enabled,
	}
	if m.capture != nil {
		s.CaptureRequests = m.capture.Requests()
		s.Capturing = m.capture.Capturing()
	}
	return s
}
