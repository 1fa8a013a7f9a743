// Package streaming defines the wire messages a recorder pushes to a live
// presentation server.
package streaming

import (
	"encoding/json"

	"github.com/OCAP2/animscope/pkg/core"
)

// Message type constants matching the streaming protocol.
const (
	TypeStartSession = "start_session"
	TypeEndSession   = "end_session"
	TypeGroupStarted = "group_started"
	TypeScreenshots  = "screenshots"
	TypePageReset    = "page_reset"
)

// Envelope wraps all messages sent over the WebSocket.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// AckMessage is the server's acknowledgement response.
type AckMessage struct {
	Type string `json:"type"` // always "ack"
	For  string `json:"for"`  // the message type being acknowledged
}

// StartSessionPayload announces a new recording.
type StartSessionPayload struct {
	Session *core.Session `json:"session"`
}

// EndSessionPayload closes a recording.
type EndSessionPayload struct {
	SessionID string `json:"sessionId"`
}

// ScreenshotsPayload carries base64 frames, which is how encoding/json
// renders [][]byte.
type ScreenshotsPayload = core.ScreenshotBatch

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// Encode builds an envelope around payload.
func Encode(msgType string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}
