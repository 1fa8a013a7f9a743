package recorder

import (
	"math"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
	"github.com/OCAP2/animscope/pkg/core"
)

// SnapshotAnimation copies the recordable state of a.
func SnapshotAnimation(a *animation.Animation) core.AnimationSnapshot {
	e := a.Effect()
	s := core.AnimationSnapshot{
		ID:             a.ID(),
		Name:           a.Name(),
		Type:           string(a.Kind()),
		CSSID:          a.CSSID(),
		PlayState:      a.PlayState(),
		PlaybackRate:   a.PlaybackRate(),
		StartTime:      a.StartTime(),
		CurrentTime:    a.CurrentTime(),
		Delay:          e.Delay(),
		EndDelay:       e.EndDelay(),
		Duration:       e.Duration(),
		IterationStart: e.IterationStart(),
		Iterations:     e.Iterations().String(),
		Direction:      e.Direction(),
		Fill:           string(e.Fill()),
		Easing:         e.Easing(),
		BackendNodeID:  e.BackendNodeID(),
		FiniteDuration: a.FiniteDuration(),
	}
	if end := a.EndTime(); math.IsInf(end, 0) {
		s.Infinite = true
	} else {
		s.EndTime = end
	}
	if rule := e.KeyframesRule(); rule != nil {
		s.KeyframesName = rule.Name()
		for _, k := range rule.Keyframes() {
			s.Keyframes = append(s.Keyframes, core.Keyframe{
				Offset: k.OffsetAsNumber(),
				Easing: k.Easing(),
			})
		}
	}
	return s
}

// SnapshotGroup copies g and its members.
func SnapshotGroup(sessionID string, g *animation.Group, merged bool, at time.Time) *core.GroupRecord {
	members := g.Animations()
	rec := &core.GroupRecord{
		SessionID:      sessionID,
		GroupID:        g.ID(),
		StartTime:      g.StartTime(),
		FiniteDuration: g.FiniteDuration(),
		Merged:         merged,
		Paused:         g.Paused(),
		Animations:     make([]core.AnimationSnapshot, 0, len(members)),
		RecordedAt:     at,
	}
	for _, a := range members {
		rec.Animations = append(rec.Animations, SnapshotAnimation(a))
	}
	return rec
}
