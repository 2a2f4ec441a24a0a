// Package ws streams decoded tokens over a WebSocket connection, one event
// per decoder step, so clients can render output incrementally.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

const writeTimeout = 10 * time.Second

// Event types sent to clients.
const (
	EventToken = "token"
	EventDone  = "done"
	EventError = "error"
)

// TokenEvent carries one decoded token.
type TokenEvent struct {
	Type  string `json:"type"`
	Index int    `json:"index"`
	Token string `json:"token"`
}

// DoneEvent closes a translation with the full output.
type DoneEvent struct {
	Type   string   `json:"type"`
	Tokens []string `json:"tokens"`
	Count  int      `json:"count"`
}

// ErrorEvent reports a failed translation.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Stream wraps one WebSocket connection for a single translation request.
// Not safe for concurrent use.
type Stream struct {
	conn *websocket.Conn
	log  *logrus.Logger
}

// NewStream wraps an accepted connection.
func NewStream(conn *websocket.Conn, log *logrus.Logger) *Stream {
	return &Stream{conn: conn, log: log}
}

// SendToken emits one decoded token.
func (s *Stream) SendToken(ctx context.Context, index int, token string) error {
	return s.write(ctx, TokenEvent{Type: EventToken, Index: index, Token: token})
}

// SendDone emits the final event with the complete output.
func (s *Stream) SendDone(ctx context.Context, tokens []string) error {
	return s.write(ctx, DoneEvent{Type: EventDone, Tokens: tokens, Count: len(tokens)})
}

// SendError reports a failure to the client before closing.
func (s *Stream) SendError(ctx context.Context, code, message string) error {
	return s.write(ctx, ErrorEvent{Type: EventError, Code: code, Message: message})
}

// Close closes the connection with a normal status.
func (s *Stream) Close() {
	if err := s.conn.Close(websocket.StatusNormalClosure, "done"); err != nil {
		s.log.WithError(err).Debug("websocket close")
	}
}

func (s *Stream) write(ctx context.Context, event any) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling stream event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if err := s.conn.Write(ctx, websocket.MessageText, payload); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}

	return nil
}
