package memory

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession() *core.Session {
	return &core.Session{
		ID:        "0b4f8e0a-6c2d-4f27-9d0e-3f1b2a6c9e11",
		TargetURL: "http://localhost:8080/demo",
		StartedAt: time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC),
	}
}

func TestRecordBeforeStart(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})

	assert.ErrorIs(t, b.RecordGroup(&core.GroupRecord{}), ErrNoSession)
	assert.ErrorIs(t, b.RecordScreenshots(&core.ScreenshotBatch{}), ErrNoSession)
	assert.ErrorIs(t, b.RecordReset(&core.ResetRecord{}), ErrNoSession)
	assert.ErrorIs(t, b.EndSession(testSession()), ErrNoSession)
}

func TestRecordKeepsOrder(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	s := testSession()
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordGroup(&core.GroupRecord{GroupID: "g1"}))
	require.NoError(t, b.RecordGroup(&core.GroupRecord{GroupID: "g1", Merged: true}))
	require.NoError(t, b.RecordGroup(&core.GroupRecord{GroupID: "g2"}))
	require.NoError(t, b.RecordReset(&core.ResetRecord{Reason: core.ResetNavigation}))

	rec := b.Recording()
	require.Len(t, rec.Groups, 3)
	assert.True(t, rec.Groups[1].Merged)
	assert.Equal(t, "g2", rec.Groups[2].GroupID)
	assert.Len(t, rec.Resets, 1)
	assert.Equal(t, s.ID, rec.Session.ID)
}

func TestStartSessionClearsPrevious(t *testing.T) {
	b := New(config.MemoryConfig{OutputDir: t.TempDir()})
	require.NoError(t, b.StartSession(testSession()))
	require.NoError(t, b.RecordGroup(&core.GroupRecord{GroupID: "old"}))

	require.NoError(t, b.StartSession(testSession()))

	assert.Empty(t, b.Recording().Groups)
}

func TestEndSession_ExportRoundTrip(t *testing.T) {
	for _, compress := range []bool{false, true} {
		name := "plain"
		if compress {
			name = "gzip"
		}
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			b := New(config.MemoryConfig{OutputDir: dir, CompressOutput: compress})
			s := testSession()
			require.NoError(t, b.StartSession(s))
			require.NoError(t, b.RecordGroup(&core.GroupRecord{
				SessionID: s.ID,
				GroupID:   "g1",
				Animations: []core.AnimationSnapshot{
					{ID: "a", Type: "CSSTransition", Iterations: "1", Duration: 200},
				},
			}))
			require.NoError(t, b.RecordScreenshots(&core.ScreenshotBatch{
				SessionID: s.ID,
				GroupID:   "g1",
				Frames:    [][]byte{{0xff, 0xd8, 0xff}},
			}))

			s.End(s.StartedAt.Add(time.Minute))
			require.NoError(t, b.EndSession(s))

			path := b.GetExportedFilePath()
			assert.Equal(t, dir, filepath.Dir(path))
			assert.Equal(t, compress, strings.HasSuffix(path, ".gz"))

			rec, err := ReadRecording(path)
			require.NoError(t, err)
			assert.Equal(t, RecordingVersion, rec.Version)
			require.NotNil(t, rec.Session.EndedAt)
			assert.Equal(t, time.Minute, rec.Session.Duration())
			require.Len(t, rec.Groups, 1)
			assert.Equal(t, 200.0, rec.Groups[0].Animations[0].Duration)
			require.Len(t, rec.Screenshots, 1)
			assert.Equal(t, []byte{0xff, 0xd8, 0xff}, rec.Screenshots[0].Frames[0])
		})
	}
}

func TestExportFileName(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		compress bool
		expected string
	}{
		{"host with port", "http://localhost:8080/demo", false, "localhost_8080_20240601_123000_0b4f8e0a.json"},
		{"dotted host", "https://example.com/", true, "example-com_20240601_123000_0b4f8e0a.json.gz"},
		{"no host", "about:blank", false, "session_20240601_123000_0b4f8e0a.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSession()
			s.TargetURL = tt.url
			assert.Equal(t, tt.expected, ExportFileName(*s, tt.compress))
		})
	}
}

func TestReadRecording_Missing(t *testing.T) {
	_, err := ReadRecording(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
