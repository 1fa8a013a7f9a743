package convert

import (
	"database/sql"

	"github.com/OCAP2/animscope/internal/model"
	"github.com/OCAP2/animscope/pkg/core"
	"gorm.io/datatypes"
)

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	out := model.Session{
		SessionID: s.ID,
		TargetURL: s.TargetURL,
		StartedAt: s.StartedAt,
	}
	if s.EndedAt != nil {
		out.EndedAt = sql.NullTime{Time: *s.EndedAt, Valid: true}
	}
	return out
}

// CoreToGroup converts a core.GroupRecord to a GORM model.AnimationGroup
// with its member rows attached.
func CoreToGroup(g core.GroupRecord) model.AnimationGroup {
	out := model.AnimationGroup{
		SessionID:      g.SessionID,
		GroupID:        g.GroupID,
		StartTime:      g.StartTime,
		FiniteDuration: g.FiniteDuration,
		Merged:         g.Merged,
		Paused:         g.Paused,
		RecordedAt:     g.RecordedAt,
		Animations:     make([]model.AnimationRow, 0, len(g.Animations)),
	}
	for _, a := range g.Animations {
		out.Animations = append(out.Animations, CoreToAnimation(a))
	}
	return out
}

// CoreToAnimation converts a core.AnimationSnapshot to a GORM model.AnimationRow.
func CoreToAnimation(a core.AnimationSnapshot) model.AnimationRow {
	keyframes := make([]model.Keyframe, len(a.Keyframes))
	for i, k := range a.Keyframes {
		keyframes[i] = model.Keyframe{Offset: k.Offset, Easing: k.Easing}
	}

	return model.AnimationRow{
		AnimationID:    a.ID,
		Name:           a.Name,
		Type:           a.Type,
		CSSID:          a.CSSID,
		PlayState:      a.PlayState,
		PlaybackRate:   a.PlaybackRate,
		StartTime:      a.StartTime,
		CurrentTime:    a.CurrentTime,
		Delay:          a.Delay,
		EndDelay:       a.EndDelay,
		Duration:       a.Duration,
		IterationStart: a.IterationStart,
		Iterations:     a.Iterations,
		Direction:      a.Direction,
		Fill:           a.Fill,
		Easing:         a.Easing,
		BackendNodeID:  a.BackendNodeID,
		FiniteDuration: a.FiniteDuration,
		EndTime:        a.EndTime,
		Infinite:       a.Infinite,
		KeyframesName:  a.KeyframesName,
		Keyframes:      datatypes.NewJSONSlice(keyframes),
	}
}

// CoreToScreenshots splits a batch into one row per frame.
func CoreToScreenshots(b core.ScreenshotBatch) []model.Screenshot {
	rows := make([]model.Screenshot, len(b.Frames))
	for i, f := range b.Frames {
		rows[i] = model.Screenshot{
			SessionID:  b.SessionID,
			GroupID:    b.GroupID,
			Seq:        i,
			CapturedAt: b.CapturedAt,
			Data:       f,
		}
	}
	return rows
}

// CoreToReset converts a core.ResetRecord to a GORM model.PageReset.
func CoreToReset(r core.ResetRecord) model.PageReset {
	return model.PageReset{
		SessionID: r.SessionID,
		Reason:    r.Reason,
		At:        r.At,
	}
}
