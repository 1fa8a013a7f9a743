// Package convert provides functions to convert GORM models to core models
package convert

import (
	"github.com/OCAP2/animscope/internal/model"
	"github.com/OCAP2/animscope/pkg/core"
)

// SessionToCore converts a GORM Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	out := core.Session{
		ID:        s.SessionID,
		TargetURL: s.TargetURL,
		StartedAt: s.StartedAt,
	}
	if s.EndedAt.Valid {
		ended := s.EndedAt.Time
		out.EndedAt = &ended
	}
	return out
}

// GroupToCore converts a GORM AnimationGroup and its rows to a core.GroupRecord.
func GroupToCore(g model.AnimationGroup) core.GroupRecord {
	out := core.GroupRecord{
		SessionID:      g.SessionID,
		GroupID:        g.GroupID,
		StartTime:      g.StartTime,
		FiniteDuration: g.FiniteDuration,
		Merged:         g.Merged,
		Paused:         g.Paused,
		RecordedAt:     g.RecordedAt,
		Animations:     make([]core.AnimationSnapshot, 0, len(g.Animations)),
	}
	for _, a := range g.Animations {
		out.Animations = append(out.Animations, AnimationToCore(a))
	}
	return out
}

// AnimationToCore converts a GORM AnimationRow to a core.AnimationSnapshot.
func AnimationToCore(a model.AnimationRow) core.AnimationSnapshot {
	var keyframes []core.Keyframe
	if len(a.Keyframes) > 0 {
		keyframes = make([]core.Keyframe, len(a.Keyframes))
		for i, k := range a.Keyframes {
			keyframes[i] = core.Keyframe{Offset: k.Offset, Easing: k.Easing}
		}
	}

	return core.AnimationSnapshot{
		ID:             a.AnimationID,
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
		Keyframes:      keyframes,
	}
}

// ScreenshotsToCore folds the frame rows of one group back into a batch,
// ordered by their sequence number. Rows are expected to share a group.
func ScreenshotsToCore(rows []model.Screenshot) core.ScreenshotBatch {
	if len(rows) == 0 {
		return core.ScreenshotBatch{}
	}
	frames := make([][]byte, len(rows))
	for _, r := range rows {
		if r.Seq >= 0 && r.Seq < len(frames) {
			frames[r.Seq] = r.Data
		}
	}
	return core.ScreenshotBatch{
		SessionID:  rows[0].SessionID,
		GroupID:    rows[0].GroupID,
		Frames:     frames,
		CapturedAt: rows[0].CapturedAt,
	}
}

// ResetToCore converts a GORM PageReset to a core.ResetRecord.
func ResetToCore(r model.PageReset) core.ResetRecord {
	return core.ResetRecord{
		SessionID: r.SessionID,
		Reason:    r.Reason,
		At:        r.At,
	}
}
