// Package websocket streams a recording to a presentation server as JSON
// envelopes over a WebSocket.
package websocket

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/animscope/pkg/core"
	"github.com/OCAP2/animscope/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL        string
	APIKey     string
	AckTimeout time.Duration
	Logger     *slog.Logger
}

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Exporter.
type Backend struct {
	link *link
	cfg  Config
}

// New creates a new WebSocket storage backend.
func New(cfg Config) *Backend {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = ackTimeout
	}
	return &Backend{
		link: newLink(cfg.URL, cfg.APIKey, cfg.Logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.link.open()
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.link.close()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	env, err := streaming.Encode(msgType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload and queues it (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.link.send(data)
	return nil
}

// StartSession announces the session and waits for the server ack. The
// message is kept for replay after reconnects.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return err
	}
	b.link.setReplay(data)
	return b.link.sendAndWait(data, streaming.TypeStartSession, b.cfg.AckTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeEndSession, streaming.EndSessionPayload{SessionID: s.ID})
	if err != nil {
		return err
	}
	err = b.link.sendAndWait(data, streaming.TypeEndSession, b.cfg.AckTimeout)

	// Clear cached state regardless of error.
	b.link.setReplay(nil)
	return err
}

func (b *Backend) RecordGroup(g *core.GroupRecord) error {
	return b.sendEnvelope(streaming.TypeGroupStarted, g)
}

func (b *Backend) RecordScreenshots(batch *core.ScreenshotBatch) error {
	return b.sendEnvelope(streaming.TypeScreenshots, batch)
}

func (b *Backend) RecordReset(r *core.ResetRecord) error {
	return b.sendEnvelope(streaming.TypePageReset, r)
}
