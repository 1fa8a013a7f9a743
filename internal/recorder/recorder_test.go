package recorder

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/internal/storage/memory"
	"github.com/OCAP2/animscope/pkg/core"
	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopGateway struct{}

func (nopGateway) Enable(context.Context) error                              { return nil }
func (nopGateway) Disable(context.Context) error                             { return nil }
func (nopGateway) SetPlaybackRate(context.Context, float64) error            { return nil }
func (nopGateway) ReleaseAnimations(context.Context, []string) error         { return nil }
func (nopGateway) SetTiming(context.Context, string, float64, float64) error { return nil }
func (nopGateway) SeekAnimations(context.Context, []string, float64) error   { return nil }
func (nopGateway) SetPaused(context.Context, []string, bool) error           { return nil }
func (nopGateway) CurrentTime(context.Context, string) (float64, error)      { return 0, nil }
func (nopGateway) ResolveAnimation(context.Context, string) (*runtime.RemoteObject, error) {
	return nil, nil
}

type nopScreencaster struct{}

func (nopScreencaster) StartScreencast(context.Context, animation.ScreencastParams) error {
	return nil
}
func (nopScreencaster) StopScreencast(context.Context) error { return nil }

// syncLoop runs loop work inline; the tests drive everything from one
// goroutine.
type syncLoop struct{ m *animation.Model }

func (l *syncLoop) Do(fn func(*animation.Model)) bool {
	fn(l.m)
	return true
}

type manualTimers struct {
	mu     sync.Mutex
	waits  []time.Duration
	fns    []func()
	timers []*time.Timer
}

func (mt *manualTimers) AfterFunc(d time.Duration, f func()) *time.Timer {
	mt.mu.Lock()
	defer mt.mu.Unlock()
	mt.waits = append(mt.waits, d)
	mt.fns = append(mt.fns, f)
	// a real but far-off timer so Stop has something to act on
	t := time.NewTimer(time.Hour)
	mt.timers = append(mt.timers, t)
	return t
}

func (mt *manualTimers) fire(i int) {
	mt.mu.Lock()
	f := mt.fns[i]
	mt.mu.Unlock()
	f()
}

func payload(id string, start float64, kind cdpanim.Type) *cdpanim.Animation {
	return &cdpanim.Animation{
		ID:           id,
		Name:         "slide",
		PlayState:    "running",
		PlaybackRate: 1,
		StartTime:    start,
		Type:         kind,
		CSSID:        "css-" + id,
		Source: &cdpanim.Effect{
			Delay:         100,
			Duration:      400,
			Iterations:    2,
			Fill:          "forwards",
			Direction:     "normal",
			Easing:        "linear",
			BackendNodeID: cdp.BackendNodeID(7),
			KeyframesRule: &cdpanim.KeyframesRule{
				Name: "slide",
				Keyframes: []*cdpanim.KeyframeStyle{
					{Offset: "0%", Easing: "ease"},
					{Offset: "100%", Easing: "ease"},
				},
			},
		},
	}
}

type fixture struct {
	model   *animation.Model
	backend *memory.Backend
	rec     *Recorder
	timers  *manualTimers
	session *core.Session
}

func newFixture(t *testing.T, capture bool) *fixture {
	t.Helper()
	opts := []animation.Option{
		animation.WithExecutor(func(f func()) { f() }),
		animation.WithPost(func(func()) {}),
	}
	if capture {
		opts = append(opts, animation.WithScreencaster(nopScreencaster{}))
	}
	m, err := animation.NewModel(nopGateway{}, opts...)
	require.NoError(t, err)

	f := &fixture{
		model:   m,
		backend: memory.New(config.MemoryConfig{OutputDir: t.TempDir()}),
		timers:  &manualTimers{},
		session: core.NewSession("http://localhost:3000/", time.Now()),
	}
	rec, err := New(Config{
		Backend:   f.backend,
		Session:   f.session,
		Loop:      &syncLoop{m: m},
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		AfterFunc: f.timers.AfterFunc,
	})
	require.NoError(t, err)
	f.rec = rec
	require.NoError(t, rec.Start())
	rec.Attach(m)
	return f
}

func (f *fixture) end(t *testing.T) memory.Recording {
	t.Helper()
	f.session.End(time.Now())
	require.NoError(t, f.rec.End())
	return f.backend.Recording()
}

func TestNew_Validates(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)
}

func TestRecorder_RecordsGroups(t *testing.T) {
	f := newFixture(t, false)

	f.model.AnimationStarted(payload("a", 50, cdpanim.TypeCSSAnimation))
	f.model.AnimationStarted(payload("b", 80, cdpanim.TypeCSSAnimation))

	rec := f.end(t)
	require.Len(t, rec.Groups, 2)
	g := rec.Groups[0]
	assert.Equal(t, f.session.ID, g.SessionID)
	assert.Equal(t, "a", g.GroupID)
	assert.Equal(t, 50.0, g.StartTime)
	assert.Equal(t, 900.0, g.FiniteDuration)
	assert.False(t, g.Merged)
	require.Len(t, g.Animations, 1)

	a := g.Animations[0]
	assert.Equal(t, "CSSAnimation", a.Type)
	assert.Equal(t, "2", a.Iterations)
	assert.Equal(t, 950.0, a.EndTime)
	assert.False(t, a.Infinite)
	assert.Equal(t, "slide", a.KeyframesName)
	assert.Equal(t, []core.Keyframe{{Offset: 0, Easing: "ease"}, {Offset: 1, Easing: "ease"}}, a.Keyframes)
	assert.Equal(t, int64(7), a.BackendNodeID)
	assert.NotNil(t, rec.Session.EndedAt)
}

func TestRecorder_MergedRestart(t *testing.T) {
	f := newFixture(t, false)

	f.model.AnimationStarted(payload("a", 50, cdpanim.TypeCSSAnimation))
	restarted := payload("a2", 900, cdpanim.TypeCSSAnimation)
	restarted.CSSID = "css-a"
	f.model.AnimationStarted(restarted)

	rec := f.end(t)
	require.Len(t, rec.Groups, 2)
	assert.True(t, rec.Groups[1].Merged)
	assert.Equal(t, "a", rec.Groups[1].GroupID, "the surviving group keeps its id")
	assert.Equal(t, "a2", rec.Groups[1].Animations[0].ID)
}

func TestRecorder_InfiniteAnimation(t *testing.T) {
	f := newFixture(t, false)

	p := payload("a", 0, cdpanim.TypeWebAnimation)
	p.Source.Iterations = 0
	f.model.AnimationStarted(p)

	rec := f.end(t)
	require.Len(t, rec.Groups, 1)
	a := rec.Groups[0].Animations[0]
	assert.True(t, a.Infinite)
	assert.Zero(t, a.EndTime)
	assert.Equal(t, "infinite", a.Iterations)
}

func TestRecorder_DrainsScreenshotsAfterWindow(t *testing.T) {
	f := newFixture(t, true)

	f.model.AnimationStarted(payload("a", 50, cdpanim.TypeCSSAnimation))
	require.Len(t, f.timers.waits, 1)
	assert.Greater(t, f.timers.waits[0], defaultDrainGrace)
	assert.LessOrEqual(t, f.timers.waits[0], 900*time.Millisecond+defaultDrainGrace)

	frame := []byte{0xff, 0xd8, 0xff}
	f.model.ScreencastFrame(base64.StdEncoding.EncodeToString(frame))
	f.model.ScreencastFrame("!!not base64!!")
	f.timers.fire(0)

	rec := f.end(t)
	require.Len(t, rec.Screenshots, 1)
	b := rec.Screenshots[0]
	assert.Equal(t, "a", b.GroupID)
	assert.Equal(t, [][]byte{frame}, b.Frames)
}

func TestRecorder_EndDrainsOpenWindows(t *testing.T) {
	f := newFixture(t, true)

	f.model.AnimationStarted(payload("a", 50, cdpanim.TypeCSSAnimation))
	f.model.ScreencastFrame(base64.StdEncoding.EncodeToString([]byte("jpeg")))

	rec := f.end(t)
	require.Len(t, rec.Screenshots, 1)
	assert.Equal(t, [][]byte{[]byte("jpeg")}, rec.Screenshots[0].Frames)
}

func TestRecorder_NoFramesNoBatch(t *testing.T) {
	f := newFixture(t, true)

	f.model.AnimationStarted(payload("a", 50, cdpanim.TypeCSSAnimation))
	f.timers.fire(0)

	rec := f.end(t)
	assert.Empty(t, rec.Screenshots)
}

func TestRecorder_RecordReset(t *testing.T) {
	f := newFixture(t, false)

	f.rec.RecordReset(core.ResetNavigation)

	rec := f.end(t)
	require.Len(t, rec.Resets, 1)
	assert.Equal(t, core.ResetNavigation, rec.Resets[0].Reason)
	assert.Equal(t, f.session.ID, rec.Resets[0].SessionID)
}

type failingBackend struct {
	*memory.Backend
	startErr error
}

func (b *failingBackend) StartSession(s *core.Session) error { return b.startErr }

func TestRecorder_StartError(t *testing.T) {
	m, err := animation.NewModel(nopGateway{})
	require.NoError(t, err)
	rec, err := New(Config{
		Backend: &failingBackend{Backend: memory.New(config.MemoryConfig{}), startErr: errors.New("down")},
		Session: core.NewSession("", time.Now()),
		Loop:    &syncLoop{m: m},
	})
	require.NoError(t, err)

	assert.ErrorContains(t, rec.Start(), "down")
}
