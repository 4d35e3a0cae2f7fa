// Package websocket streams the session journal to a remote server.
package websocket

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/livepid/tracker/internal/storage"
	"github.com/livepid/tracker/pkg/core"
	"github.com/livepid/tracker/pkg/streaming"
)

// Config holds WebSocket backend configuration.
type Config struct {
	URL    string
	Secret string
}

// Backend streams session data over WebSocket.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn *connection
	cfg  Config

	sessionCounter atomic.Uint64
	sessionID      atomic.Uint64
}

// New creates a new WebSocket storage backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger.With("backend", "websocket")),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	if b.cfg.URL == "" {
		return fmt.Errorf("websocket URL not set")
	}
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// Dropped returns how many messages were dropped because the send queue was full.
func (b *Backend) Dropped() uint64 {
	return b.conn.dropped.Load()
}

// marshalEnvelope builds a JSON-encoded Envelope from a message type and payload.
func marshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := streaming.Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// sendEnvelope marshals the payload into an Envelope and pushes it
// to the write loop (fire-and-forget).
func (b *Backend) sendEnvelope(msgType string, payload any) error {
	data, err := marshalEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	b.conn.send(data)
	return nil
}

// StartSession announces the session and waits for server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := marshalEnvelope(streaming.TypeStartSession, streaming.NewStartSessionPayload(*s))
	if err != nil {
		return err
	}

	b.conn.setHeader(data)

	if err := b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout); err != nil {
		return err
	}

	s.ID = uint(b.sessionCounter.Add(1))
	b.sessionID.Store(uint64(s.ID))
	return nil
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	if b.sessionID.Swap(0) == 0 {
		return storage.ErrNoSession
	}

	data, err := marshalEnvelope(streaming.TypeEndSession, nil)
	if err == nil {
		err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)
	}

	b.conn.setHeader(nil)

	return err
}

func (b *Backend) RecordResolution(r *core.Resolution) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	r.SessionID = id
	return b.sendEnvelope(streaming.TypeResolution, streaming.NewResolutionPayload(*r))
}

func (b *Backend) RecordStatusChange(c *core.StatusChange) error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return storage.ErrNoSession
	}
	c.SessionID = id
	return b.sendEnvelope(streaming.TypeStatusChange, streaming.NewStatusChangePayload(*c))
}
