package streaming

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/OCAP2/animscope/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	rec := core.GroupRecord{SessionID: "s", GroupID: "g", StartTime: 1000, Merged: true}

	env, err := Encode(TypeGroupStarted, rec)
	require.NoError(t, err)
	assert.Equal(t, TypeGroupStarted, env.Type)

	data, err := json.Marshal(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"group_started"`)

	var back Envelope
	require.NoError(t, json.Unmarshal(data, &back))
	var got core.GroupRecord
	require.NoError(t, back.Decode(&got))
	assert.Equal(t, rec, got)
}

func TestScreenshotsPayload_Base64(t *testing.T) {
	env, err := Encode(TypeScreenshots, ScreenshotsPayload{
		GroupID:    "g",
		Frames:     [][]byte{[]byte("jpg")},
		CapturedAt: time.Unix(0, 0).UTC(),
	})
	require.NoError(t, err)
	assert.Contains(t, string(env.Payload), `"frames":["anBn"]`)
}

func TestAckMessage(t *testing.T) {
	var ack AckMessage
	require.NoError(t, json.Unmarshal([]byte(`{"type":"ack","for":"start_session"}`), &ack))
	assert.Equal(t, AckMessage{Type: "ack", For: TypeStartSession}, ack)
}
