package animation

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoMemberGroup(t *testing.T, f *fixture) *Group {
	t.Helper()
	f.model.AnimationCreated("a")
	f.model.AnimationCreated("b")
	f.model.AnimationStarted(cssAnimation("a", "css-a", withTiming(100, 0, 1)))
	f.model.AnimationStarted(cssAnimation("b", "css-b", withTiming(400, 50, 1)))
	g, ok := f.model.Group("a")
	require.True(t, ok)
	return g
}

func TestGroup_TogglePauseIdempotent(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)

	g.TogglePause(true)
	g.TogglePause(true)
	assert.Equal(t, 1, f.gw.count("setPaused"))
	assert.True(t, g.Paused())

	g.TogglePause(false)
	assert.Equal(t, 2, f.gw.count("setPaused"))
	assert.Contains(t, f.gw.Calls(), "setPaused [a b] false")
}

func TestGroup_SeekTo(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)

	g.SeekTo(75)

	assert.Contains(t, f.gw.Calls(), "seekAnimations [a b] 75")
}

func TestGroup_FiniteDurationAndStart(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)

	assert.Equal(t, 450.0, g.FiniteDuration())
	assert.Equal(t, 1000.0, g.StartTime())
}

func TestGroup_CurrentTimeUsesLongestMember(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)
	f.gw.currentTimes["b"] = 321
	ctx := context.Background()

	_, err := g.CurrentTime(ctx)
	require.ErrorIs(t, err, ErrNotEnabled)

	require.NoError(t, f.model.EnsureEnabled(ctx))
	ct, err := g.CurrentTime(ctx)
	require.NoError(t, err)
	assert.Equal(t, 321.0, ct)
	assert.Contains(t, f.gw.Calls(), "getCurrentTime b")
}

func TestGroup_CurrentTimeEmpty(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.model.EnsureEnabled(context.Background()))
	g := newGroup(f.model, "empty", nil)

	_, err := g.CurrentTime(context.Background())
	assert.ErrorIs(t, err, ErrNoAnimations)
}

func TestGroup_Release(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)

	g.Release()

	_, ok := f.model.Group("a")
	assert.False(t, ok)
	assert.Empty(t, f.model.Groups())
	assert.Contains(t, f.gw.Calls(), "releaseAnimations [a b]")
}

func TestGroup_DrainScreenshots(t *testing.T) {
	f := newFixture()
	g := twoMemberGroup(t, f)

	frame1 := base64.StdEncoding.EncodeToString([]byte("frame-1"))
	frame2 := base64.StdEncoding.EncodeToString([]byte("frame-2"))

	f.model.ScreencastFrame(frame1)
	f.model.ScreencastFrame("%%not base64%%")

	drained := g.DrainScreenshots()
	require.Len(t, drained, 1)
	assert.Equal(t, []byte("frame-1"), drained[0].Data)
	assert.Nil(t, g.DrainScreenshots(), "drain is not idempotent")

	f.model.ScreencastFrame(frame2)
	drained = g.DrainScreenshots()
	require.Len(t, drained, 1)
	assert.Equal(t, []byte("frame-2"), drained[0].Data)

	all := g.Screenshots()
	require.Len(t, all, 2)
	assert.Equal(t, []byte("frame-1"), all[0].Data)
}

func TestScreenshot_ImageRejectsGarbage(t *testing.T) {
	_, err := Screenshot{Data: []byte("not a jpeg")}.Image()
	assert.Error(t, err)
}
