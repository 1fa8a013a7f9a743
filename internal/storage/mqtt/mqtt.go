// Package mqttstorage publishes recording envelopes to an MQTT broker, one
// topic per session and message type.
package mqttstorage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/OCAP2/animscope/internal/config"
	"github.com/OCAP2/animscope/pkg/core"
	"github.com/OCAP2/animscope/pkg/streaming"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	qos            = 1
	publishTimeout = 5 * time.Second
	connectTimeout = 10 * time.Second
	quiesceMillis  = 250
)

// Backend implements storage.Backend on an MQTT broker.
type Backend struct {
	cfg    config.MQTTConfig
	client mqtt.Client
	log    *slog.Logger

	mu        sync.Mutex
	sessionID string
}

// New creates a new MQTT backend. Nothing is dialed until Init.
func New(cfg config.MQTTConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Backend{cfg: cfg, log: logger}

	options := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true).
		SetOrderMatters(true).
		SetOnConnectHandler(func(mqtt.Client) {
			logger.Info("Connected to MQTT broker", "broker", cfg.Broker)
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.Warn("MQTT connection lost", "error", err)
		})
	b.client = mqtt.NewClient(options)
	return b
}

// Init connects to the broker.
func (b *Backend) Init() error {
	token := b.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("timeout connecting to MQTT broker %s", b.cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", b.cfg.Broker, err)
	}
	return nil
}

// Close disconnects after letting in-flight publishes finish.
func (b *Backend) Close() error {
	if b.client.IsConnected() {
		b.client.Disconnect(quiesceMillis)
	}
	return nil
}

// Topic returns the topic a message type is published on for a session.
func (b *Backend) Topic(sessionID, msgType string) string {
	return strings.TrimSuffix(b.cfg.Topic, "/") + "/" + sessionID + "/" + msgType
}

// StartSession publishes a retained start message so late subscribers can
// discover the running session.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	b.sessionID = s.ID
	b.mu.Unlock()
	return b.publish(s.ID, streaming.TypeStartSession, true, streaming.StartSessionPayload{Session: s})
}

// EndSession publishes the end message and clears the retained start.
func (b *Backend) EndSession(s *core.Session) error {
	if err := b.publish(s.ID, streaming.TypeEndSession, false, streaming.EndSessionPayload{SessionID: s.ID}); err != nil {
		return err
	}
	// an empty retained payload deletes the retained message
	token := b.client.Publish(b.Topic(s.ID, streaming.TypeStartSession), qos, true, []byte{})
	return b.wait(token, streaming.TypeStartSession)
}

func (b *Backend) RecordGroup(g *core.GroupRecord) error {
	return b.publish(b.session(g.SessionID), streaming.TypeGroupStarted, false, g)
}

func (b *Backend) RecordScreenshots(batch *core.ScreenshotBatch) error {
	return b.publish(b.session(batch.SessionID), streaming.TypeScreenshots, false, batch)
}

func (b *Backend) RecordReset(r *core.ResetRecord) error {
	return b.publish(b.session(r.SessionID), streaming.TypePageReset, false, r)
}

func (b *Backend) session(id string) string {
	if id != "" {
		return id
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sessionID
}

func (b *Backend) publish(sessionID, msgType string, retained bool, payload any) error {
	env, err := streaming.Encode(msgType, payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}

	token := b.client.Publish(b.Topic(sessionID, msgType), qos, retained, data)
	return b.wait(token, msgType)
}

func (b *Backend) wait(token mqtt.Token, msgType string) error {
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("timeout publishing %s", msgType)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publishing %s: %w", msgType, err)
	}
	return nil
}
