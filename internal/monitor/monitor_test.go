package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OCAP2/animscope/internal/animation"
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

type fakeLoop struct {
	m     *animation.Model
	inbox int
	err   error
}

func (l *fakeLoop) Call(ctx context.Context, fn func(*animation.Model) error) error {
	if l.err != nil {
		return l.err
	}
	return fn(l.m)
}

func (l *fakeLoop) InboxLen() int { return l.inbox }

type queue int

func (q queue) QueueLen() int { return int(q) }

func newLoop(t *testing.T) *fakeLoop {
	t.Helper()
	m, err := animation.NewModel(nopGateway{})
	require.NoError(t, err)
	m.AnimationCreated("a")
	m.AnimationCreated("b")
	return &fakeLoop{m: m, inbox: 3}
}

func TestGetStatus(t *testing.T) {
	s := NewService(Dependencies{
		Session:  newLoop(t),
		Recorder: queue(4),
		Backend:  queue(9),
	})

	st, err := s.GetStatus(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, st.Model.Pending)
	assert.Equal(t, 3, st.Inbox)
	assert.Equal(t, 4, st.RecorderQueue)
	assert.Equal(t, 9, st.BackendQueue)
	assert.Equal(t, 1.0, st.Model.PlaybackRate)
}

func TestGetStatus_BackendWithoutQueue(t *testing.T) {
	s := NewService(Dependencies{Session: newLoop(t), Backend: struct{}{}})

	st, err := s.GetStatus(context.Background())

	require.NoError(t, err)
	assert.Zero(t, st.BackendQueue)
}

func TestGetStatus_LoopStopped(t *testing.T) {
	l := newLoop(t)
	l.err = errors.New("session stopped")
	s := NewService(Dependencies{Session: l})

	_, err := s.GetStatus(context.Background())

	assert.ErrorContains(t, err, "session stopped")
}

func TestStartStop_WritesStatusFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")
	s := NewService(Dependencies{
		Session:    newLoop(t),
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		StatusFile: path,
		Interval:   10 * time.Millisecond,
	})

	require.NoError(t, s.Start())
	require.NoError(t, s.Start(), "second start is a no-op")
	assert.True(t, s.IsRunning())

	var st Status
	require.Eventually(t, func() bool {
		raw, err := os.ReadFile(path)
		return err == nil && json.Unmarshal(raw, &st) == nil
	}, time.Second, 10*time.Millisecond)
	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Equal(t, 2, st.Model.Pending)
}
