package animation

import (
	cdpanim "github.com/chromedp/cdproto/animation"

	"github.com/OCAP2/animscope/internal/util"
)

// FillMode is an effect's fill mode.
type FillMode string

const (
	FillNone      FillMode = "none"
	FillForwards  FillMode = "forwards"
	FillBackwards FillMode = "backwards"
	FillBoth      FillMode = "both"
	FillAuto      FillMode = "auto"
)

// KeyframeStyle is a single keyframe of a keyframes rule.
type KeyframeStyle struct {
	offset string
	easing string
}

// Offset returns the keyframe offset as the percentage string the protocol
// reports, e.g. "50%".
func (k *KeyframeStyle) Offset() string { return k.offset }

// SetOffset sets the offset from a fraction in [0,1].
func (k *KeyframeStyle) SetOffset(fraction float64) {
	k.offset = util.FormatPercent(fraction)
}

// OffsetAsNumber returns the offset as a fraction in [0,1].
func (k *KeyframeStyle) OffsetAsNumber() float64 {
	return util.ParsePercent(k.offset)
}

func (k *KeyframeStyle) Easing() string { return k.easing }

// KeyframesRule is the ordered keyframe list of an effect.
type KeyframesRule struct {
	name      string
	keyframes []*KeyframeStyle
}

// Name returns the CSS @keyframes name, empty for web animations.
func (r *KeyframesRule) Name() string { return r.name }

func (r *KeyframesRule) Keyframes() []*KeyframeStyle { return r.keyframes }

// Effect holds the timing and keyframes of one animation.
type Effect struct {
	delay          float64
	endDelay       float64
	duration       float64
	iterationStart float64
	iterations     float64
	direction      string
	fill           FillMode
	easing         string
	backendNodeID  int64
	keyframesRule  *KeyframesRule
}

func newEffect(p *cdpanim.Effect) *Effect {
	e := &Effect{
		delay:          p.Delay,
		endDelay:       p.EndDelay,
		duration:       p.Duration,
		iterationStart: p.IterationStart,
		iterations:     p.Iterations,
		direction:      p.Direction,
		fill:           FillMode(p.Fill),
		easing:         p.Easing,
		backendNodeID:  int64(p.BackendNodeID),
	}
	if p.KeyframesRule != nil {
		rule := &KeyframesRule{
			name:      p.KeyframesRule.Name,
			keyframes: make([]*KeyframeStyle, 0, len(p.KeyframesRule.Keyframes)),
		}
		for _, kf := range p.KeyframesRule.Keyframes {
			if kf == nil {
				continue
			}
			rule.keyframes = append(rule.keyframes, &KeyframeStyle{offset: kf.Offset, easing: kf.Easing})
		}
		e.keyframesRule = rule
	}
	return e
}

func (e *Effect) Delay() float64          { return e.delay }
func (e *Effect) EndDelay() float64       { return e.endDelay }
func (e *Effect) Duration() float64       { return e.duration }
func (e *Effect) IterationStart() float64 { return e.iterationStart }
func (e *Effect) Direction() string       { return e.direction }
func (e *Effect) Fill() FillMode          { return e.fill }
func (e *Effect) Easing() string          { return e.easing }
func (e *Effect) BackendNodeID() int64    { return e.backendNodeID }

// KeyframesRule returns the keyframes, or nil for transitions and effects
// without a rule.
func (e *Effect) KeyframesRule() *KeyframesRule { return e.keyframesRule }

// Iterations derives the repeat count. A zero-length effect is unshowable;
// a missing or zero count from the protocol means infinite.
func (e *Effect) Iterations() Iterations {
	if e.delay == 0 && e.endDelay == 0 && e.duration == 0 {
		return Unshowable()
	}
	return Finite(e.iterations)
}

func (e *Effect) setTiming(duration, delay float64) {
	e.duration = duration
	e.delay = delay
}
