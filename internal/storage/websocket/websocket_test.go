package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OCAP2/animscope/internal/storage"
	"github.com/OCAP2/animscope/pkg/core"
	"github.com/OCAP2/animscope/pkg/streaming"
)

// Compile-time interface check.
var _ storage.Backend = (*Backend)(nil)

type messageLog struct {
	mu       sync.Mutex
	messages []streaming.Envelope
	keys     []string
}

func (m *messageLog) add(env streaming.Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, env)
}

func (m *messageLog) all() []streaming.Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]streaming.Envelope, len(m.messages))
	copy(cp, m.messages)
	return cp
}

func (m *messageLog) count(msgType string) int {
	n := 0
	for _, env := range m.all() {
		if env.Type == msgType {
			n++
		}
	}
	return n
}

// testServer upgrades to WebSocket, records received envelopes and acks
// start_session/end_session. When dropFirst is set the first connection is
// closed right after its start_session ack.
func testServer(t *testing.T, dropFirst bool) (*httptest.Server, *messageLog) {
	t.Helper()
	ml := &messageLog{}
	var conns atomic.Int32

	upgrader := ws.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ml.mu.Lock()
		ml.keys = append(ml.keys, r.Header.Get("X-Api-Key"))
		ml.mu.Unlock()

		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}
		defer c.Close()
		first := conns.Add(1) == 1

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				return
			}

			var env streaming.Envelope
			if err := json.Unmarshal(msg, &env); err != nil {
				continue
			}
			ml.add(env)

			if env.Type == streaming.TypeStartSession || env.Type == streaming.TypeEndSession {
				data, _ := json.Marshal(streaming.AckMessage{Type: "ack", For: env.Type})
				if err := c.WriteMessage(ws.TextMessage, data); err != nil {
					return
				}
				if dropFirst && first && env.Type == streaming.TypeStartSession {
					return
				}
			}
		}
	}))

	return srv, ml
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestStartAndEndSession(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), APIKey: "secret"})
	require.NoError(t, b.Init())
	defer b.Close()

	s := core.NewSession("http://localhost:3000", time.Now())
	require.NoError(t, b.StartSession(s))
	require.NoError(t, b.EndSession(s))

	msgs := ml.all()
	require.GreaterOrEqual(t, len(msgs), 2)
	assert.Equal(t, streaming.TypeStartSession, msgs[0].Type)
	assert.Equal(t, streaming.TypeEndSession, msgs[len(msgs)-1].Type)

	var start streaming.StartSessionPayload
	require.NoError(t, msgs[0].Decode(&start))
	assert.Equal(t, s.ID, start.Session.ID)

	ml.mu.Lock()
	assert.Equal(t, []string{"secret"}, ml.keys)
	ml.mu.Unlock()
}

func TestFireAndForgetMessages(t *testing.T) {
	srv, ml := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())
	defer b.Close()

	s := core.NewSession("http://localhost:3000", time.Now())
	require.NoError(t, b.StartSession(s))

	require.NoError(t, b.RecordGroup(&core.GroupRecord{SessionID: s.ID, GroupID: "g1"}))
	require.NoError(t, b.RecordGroup(&core.GroupRecord{SessionID: s.ID, GroupID: "g1", Merged: true}))
	require.NoError(t, b.RecordScreenshots(&core.ScreenshotBatch{SessionID: s.ID, GroupID: "g1", Frames: [][]byte{{1, 2}}}))
	require.NoError(t, b.RecordReset(&core.ResetRecord{SessionID: s.ID, Reason: core.ResetNavigation}))

	// end_session is acked only after everything queued before it was read
	require.NoError(t, b.EndSession(s))

	assert.Equal(t, 1, ml.count(streaming.TypeStartSession))
	assert.Equal(t, 2, ml.count(streaming.TypeGroupStarted))
	assert.Equal(t, 1, ml.count(streaming.TypeScreenshots))
	assert.Equal(t, 1, ml.count(streaming.TypePageReset))
	assert.Equal(t, 1, ml.count(streaming.TypeEndSession))
}

func TestReconnectReplaysStartSession(t *testing.T) {
	srv, ml := testServer(t, true)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	b.link.retry = retryPolicy{attempts: 5, initial: 10 * time.Millisecond, max: 50 * time.Millisecond}
	require.NoError(t, b.Init())
	defer b.Close()

	s := core.NewSession("http://localhost:3000", time.Now())
	require.NoError(t, b.StartSession(s))

	// the replayed start_session arrives on the second connection
	require.Eventually(t, func() bool {
		return ml.count(streaming.TypeStartSession) == 2
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, b.RecordGroup(&core.GroupRecord{SessionID: s.ID, GroupID: "after"}))
	require.NoError(t, b.EndSession(s))
	assert.Equal(t, 1, ml.count(streaming.TypeGroupStarted))
}

func TestEndSession_Timeout(t *testing.T) {
	upgrader := ws.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	b := New(Config{URL: wsURL(srv), AckTimeout: 50 * time.Millisecond})
	require.NoError(t, b.Init())
	defer b.Close()

	err := b.EndSession(&core.Session{ID: "s"})
	assert.EqualError(t, err, `timeout waiting for ack of "end_session"`)
}

func TestInit_DialFailure(t *testing.T) {
	b := New(Config{URL: "ws://127.0.0.1:1/api"})
	err := b.Init()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "websocket dial failed")
}

func TestClose_Idempotent(t *testing.T) {
	srv, _ := testServer(t, false)
	defer srv.Close()

	b := New(Config{URL: wsURL(srv)})
	require.NoError(t, b.Init())

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
