package convert

import (
	"testing"
	"time"

	"github.com/OCAP2/animscope/internal/model"
	"github.com/OCAP2/animscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGroup(now time.Time) core.GroupRecord {
	return core.GroupRecord{
		SessionID:      "5a1d9a2e-0000-4000-8000-000000000001",
		GroupID:        "g1",
		StartTime:      1000,
		FiniteDuration: 300,
		Merged:         true,
		RecordedAt:     now,
		Animations: []core.AnimationSnapshot{
			{
				ID:             "x",
				Name:           "fade",
				Type:           "CSSAnimation",
				CSSID:          "css-1",
				PlayState:      "running",
				PlaybackRate:   1,
				StartTime:      1000,
				Delay:          100,
				Duration:       200,
				Iterations:     "1",
				Direction:      "normal",
				Fill:           "both",
				Easing:         "ease",
				BackendNodeID:  7,
				FiniteDuration: 300,
				EndTime:        1300,
				KeyframesName:  "fade",
				Keyframes: []core.Keyframe{
					{Offset: 0, Easing: "ease"},
					{Offset: 1, Easing: "linear"},
				},
			},
			{
				ID:         "y",
				Type:       "WebAnimation",
				Iterations: "infinite",
				Infinite:   true,
			},
		},
	}
}

// Round-trip: Core → GORM → Core
func TestGroupRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	original := sampleGroup(now)

	row := CoreToGroup(original)
	require.Len(t, row.Animations, 2)
	assert.Equal(t, "x", row.Animations[0].AnimationID)
	assert.Len(t, row.Animations[0].Keyframes, 2)

	back := GroupToCore(row)
	assert.Equal(t, original, back)
}

func TestAnimationToCore_NoKeyframes(t *testing.T) {
	out := AnimationToCore(model.AnimationRow{AnimationID: "a"})
	assert.Nil(t, out.Keyframes)
}

func TestSessionRoundTrip(t *testing.T) {
	start := time.Date(2024, 2, 1, 9, 0, 0, 0, time.UTC)
	s := core.NewSession("http://localhost:8080", start)

	row := CoreToSession(*s)
	assert.False(t, row.EndedAt.Valid)
	assert.Equal(t, *s, SessionToCore(row))

	s.End(start.Add(time.Minute))
	row = CoreToSession(*s)
	require.True(t, row.EndedAt.Valid)
	assert.Equal(t, *s, SessionToCore(row))
}

func TestScreenshotRoundTrip(t *testing.T) {
	now := time.Now()
	batch := core.ScreenshotBatch{
		SessionID:  "s",
		GroupID:    "g",
		Frames:     [][]byte{{0xff, 0xd8}, {0xff, 0xd9}},
		CapturedAt: now,
	}

	rows := CoreToScreenshots(batch)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[1].Seq)

	// order comes from Seq, not slice position
	rows[0], rows[1] = rows[1], rows[0]
	assert.Equal(t, batch, ScreenshotsToCore(rows))
}

func TestScreenshotsToCore_Empty(t *testing.T) {
	assert.Equal(t, core.ScreenshotBatch{}, ScreenshotsToCore(nil))
}

func TestResetRoundTrip(t *testing.T) {
	r := core.ResetRecord{SessionID: "s", Reason: core.ResetNavigation, At: time.Now()}
	assert.Equal(t, r, ResetToCore(CoreToReset(r)))
}
