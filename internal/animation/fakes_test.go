package animation

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
)

type fakeGateway struct {
	mu    sync.Mutex
	calls []string
	err   error

	currentTimes map[string]float64
}

func (f *fakeGateway) record(format string, args ...any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
	return f.err
}

func (f *fakeGateway) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeGateway) count(prefix string) int {
	n := 0
	for _, c := range f.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeGateway) Enable(ctx context.Context) error  { return f.record("enable") }
func (f *fakeGateway) Disable(ctx context.Context) error { return f.record("disable") }

func (f *fakeGateway) SetPlaybackRate(ctx context.Context, rate float64) error {
	return f.record("setPlaybackRate %g", rate)
}

func (f *fakeGateway) ReleaseAnimations(ctx context.Context, ids []string) error {
	return f.record("releaseAnimations %v", ids)
}

func (f *fakeGateway) SetTiming(ctx context.Context, id string, duration, delay float64) error {
	return f.record("setTiming %s %g %g", id, duration, delay)
}

func (f *fakeGateway) SeekAnimations(ctx context.Context, ids []string, t float64) error {
	return f.record("seekAnimations %v %g", ids, t)
}

func (f *fakeGateway) SetPaused(ctx context.Context, ids []string, paused bool) error {
	return f.record("setPaused %v %t", ids, paused)
}

func (f *fakeGateway) CurrentTime(ctx context.Context, id string) (float64, error) {
	if err := f.record("getCurrentTime %s", id); err != nil {
		return 0, err
	}
	return f.currentTimes[id], nil
}

func (f *fakeGateway) ResolveAnimation(ctx context.Context, id string) (*runtime.RemoteObject, error) {
	if err := f.record("resolveAnimation %s", id); err != nil {
		return nil, err
	}
	return &runtime.RemoteObject{ObjectID: runtime.RemoteObjectID("anim-" + id)}, nil
}

type fakeScreencaster struct {
	started []ScreencastParams
	stopped int
}

func (f *fakeScreencaster) StartScreencast(ctx context.Context, p ScreencastParams) error {
	f.started = append(f.started, p)
	return nil
}

func (f *fakeScreencaster) StopScreencast(ctx context.Context) error {
	f.stopped++
	return nil
}

type styleCall struct {
	node     int64
	property string
	value    string
}

type fakeStyler struct {
	calls []styleCall
	err   error
}

func (f *fakeStyler) SetNodeStyle(ctx context.Context, node int64, property, value string) error {
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, styleCall{node, property, value})
	return nil
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: f}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward and fires due timers.
func (c *fakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			t.fn()
		}
	}
}

type fixture struct {
	model  *Model
	gw     *fakeGateway
	sc     *fakeScreencaster
	styler *fakeStyler
	clock  *fakeClock
	events []Event
}

func newFixture(opts ...Option) *fixture {
	f := &fixture{
		gw:     &fakeGateway{currentTimes: map[string]float64{}},
		sc:     &fakeScreencaster{},
		styler: &fakeStyler{},
		clock:  newFakeClock(),
	}
	base := []Option{
		WithScreencaster(f.sc),
		WithNodeStyler(f.styler),
		WithClock(f.clock),
		WithExecutor(func(fn func()) { fn() }),
	}
	m, err := NewModel(f.gw, append(base, opts...)...)
	if err != nil {
		panic(err)
	}
	m.Subscribe(func(e Event) { f.events = append(f.events, e) })
	f.model = m
	return f
}

func (f *fixture) started() []Event {
	var out []Event
	for _, e := range f.events {
		if e.Type == GroupStarted {
			out = append(out, e)
		}
	}
	return out
}

type payloadOpt func(*cdpanim.Animation)

func withStart(t float64) payloadOpt {
	return func(p *cdpanim.Animation) { p.StartTime = t }
}

func withTiming(duration, delay, iterations float64) payloadOpt {
	return func(p *cdpanim.Animation) {
		p.Source.Duration = duration
		p.Source.Delay = delay
		p.Source.Iterations = iterations
	}
}

func withKeyframes(offsets ...string) payloadOpt {
	return func(p *cdpanim.Animation) {
		rule := &cdpanim.KeyframesRule{Keyframes: []*cdpanim.KeyframeStyle{}}
		for _, o := range offsets {
			rule.Keyframes = append(rule.Keyframes, &cdpanim.KeyframeStyle{Offset: o, Easing: "linear"})
		}
		p.Source.KeyframesRule = rule
	}
}

func cssAnimation(id, cssID string, opts ...payloadOpt) *cdpanim.Animation {
	p := &cdpanim.Animation{
		ID:           id,
		Name:         cssID,
		PlayState:    "running",
		PlaybackRate: 1,
		StartTime:    1000,
		Type:         cdpanim.TypeCSSAnimation,
		CSSID:        cssID,
		Source: &cdpanim.Effect{
			BackendNodeID: cdp.BackendNodeID(1),
			Duration:      200,
			Iterations:    1,
			Fill:          "none",
			Easing:        "ease",
		},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func webAnimation(id string, opts ...payloadOpt) *cdpanim.Animation {
	p := cssAnimation(id, "", opts...)
	p.Type = cdpanim.TypeWebAnimation
	return p
}
