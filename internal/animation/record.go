package animation

import (
	"context"
	"math"

	cdpanim "github.com/chromedp/cdproto/animation"
	"github.com/chromedp/cdproto/runtime"

	"github.com/OCAP2/animscope/internal/util"
)

// Kind is the origin of an animation.
type Kind string

const (
	KindCSSTransition Kind = "CSSTransition"
	KindCSSAnimation  Kind = "CSSAnimation"
	KindWebAnimation  Kind = "WebAnimation"
)

// IsCSS reports whether the style engine created the animation.
func (k Kind) IsCSS() bool {
	return k == KindCSSTransition || k == KindCSSAnimation
}

// displayedIterationCap bounds how many repetitions are shown and captured.
const displayedIterationCap = 3

// Animation is one started animation instance on the inspected page.
type Animation struct {
	model *Model

	id           string
	name         string
	pausedState  bool
	playState    string
	playbackRate float64
	startTime    float64
	currentTime  float64
	kind         Kind
	cssID        string
	effect       *Effect
}

func newAnimation(m *Model, p *cdpanim.Animation) *Animation {
	return &Animation{
		model:        m,
		id:           p.ID,
		name:         p.Name,
		pausedState:  p.PausedState,
		playState:    p.PlayState,
		playbackRate: p.PlaybackRate,
		startTime:    p.StartTime,
		currentTime:  p.CurrentTime,
		kind:         Kind(p.Type),
		cssID:        p.CSSID,
		effect:       newEffect(p.Source),
	}
}

func (a *Animation) ID() string            { return a.id }
func (a *Animation) Name() string          { return a.name }
func (a *Animation) Paused() bool          { return a.pausedState }
func (a *Animation) PlayState() string     { return a.playState }
func (a *Animation) PlaybackRate() float64 { return a.playbackRate }
func (a *Animation) StartTime() float64    { return a.startTime }
func (a *Animation) CurrentTime() float64  { return a.currentTime }
func (a *Animation) Kind() Kind            { return a.kind }
func (a *Animation) CSSID() string         { return a.cssID }
func (a *Animation) Effect() *Effect       { return a.effect }
func (a *Animation) SetPlayState(s string) { a.playState = s }

// EndTime returns when the animation finishes, in ms on the page timeline.
// Unshowable and infinite animations never end.
func (a *Animation) EndTime() float64 {
	iter := a.effect.Iterations()
	if !iter.IsFinite() {
		return math.Inf(1)
	}
	return a.startTime + a.effect.delay + a.effect.duration*iter.Count() + a.effect.endDelay
}

// FiniteDuration is the span shown and captured for the animation: the delay
// plus at most three iterations.
func (a *Animation) FiniteDuration() float64 {
	return a.effect.delay + a.effect.duration*a.effect.Iterations().Capped(displayedIterationCap)
}

// Overlaps reports whether the two animations are active at a common instant.
func (a *Animation) Overlaps(other *Animation) bool {
	if !a.effect.Iterations().IsFinite() || !other.effect.Iterations().IsFinite() {
		return true
	}
	first, second := a, other
	if other.startTime < a.startTime {
		first, second = other, a
	}
	return first.EndTime() >= second.startTime
}

// identityKey identifies the animation across style recalculations. CSS
// animations are recreated with a stable cssId; web animations are matched
// by their own id.
func (a *Animation) identityKey() string {
	if a.kind == KindWebAnimation {
		return string(a.kind) + a.id
	}
	return a.cssID
}

// SetTiming edits duration and delay. The local effect is updated right away;
// the node style and the protocol are updated asynchronously and failures are
// logged without rolling back the local change.
func (a *Animation) SetTiming(duration, delay float64) {
	a.effect.setTiming(duration, delay)

	m := a.model
	id := a.id
	if prefix := util.CSSPropertyPrefix(string(a.kind)); prefix != "" && m.styler != nil {
		nodeID := a.effect.backendNodeID
		m.fire("updateNodeStyle", func(ctx context.Context) error {
			if err := m.styler.SetNodeStyle(ctx, nodeID, prefix+"duration", util.FormatMs(duration)); err != nil {
				return err
			}
			return m.styler.SetNodeStyle(ctx, nodeID, prefix+"delay", util.FormatMs(delay))
		})
	}
	m.fire("setTiming", func(ctx context.Context) error {
		return m.gateway.SetTiming(ctx, id, duration, delay)
	})
}

// ResolveRemoteObject returns a scriptable handle to the animation.
func (a *Animation) ResolveRemoteObject(ctx context.Context) (*runtime.RemoteObject, error) {
	if !a.model.enabled {
		return nil, ErrNotEnabled
	}
	return a.model.gateway.ResolveAnimation(ctx, a.id)
}
