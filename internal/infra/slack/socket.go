package slack

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Alashybay/ai-voice-agent-evaluator/internal/domain"
)

// MessageHandler receives each inbound channel message. Handlers are
// invoked on their own goroutine so a slow pipeline run never blocks the
// socket read loop.
type MessageHandler func(ctx context.Context, msg domain.Message)

// SocketListener keeps a Socket Mode connection open and dispatches
// message events. Slack rotates socket URLs, so on any disconnect the
// listener asks for a fresh URL and redials.
type SocketListener struct {
	client  *Client
	handler MessageHandler
	logger  *slog.Logger

	redialDelay time.Duration
}

func NewSocketListener(client *Client, handler MessageHandler, logger *slog.Logger) *SocketListener {
	return &SocketListener{
		client:      client,
		handler:     handler,
		logger:      logger,
		redialDelay: 3 * time.Second,
	}
}

// envelope is the Socket Mode frame wrapper. Every frame with an
// envelope_id must be acknowledged or Slack redelivers it.
type envelope struct {
	EnvelopeID string          `json:"envelope_id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
}

type eventsAPIPayload struct {
	Event eventMessage `json:"event"`
}

type ack struct {
	EnvelopeID string `json:"envelope_id"`
}

// Run connects and processes events until ctx is canceled. Individual
// connection failures are logged and retried; Run only returns the
// context's error.
func (l *SocketListener) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := l.runConnection(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("socket connection lost, redialing", "error", err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.redialDelay):
		}
	}
}

func (l *SocketListener) runConnection(ctx context.Context) error {
	wsURL, err := l.client.OpenSocketURL(ctx)
	if err != nil {
		return fmt.Errorf("opening socket url: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dialing socket: %w", err)
	}
	defer conn.Close()

	// Unblock ReadMessage when the context ends.
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	l.logger.Info("socket mode connected")

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("reading frame: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			l.logger.Warn("unparseable socket frame", "error", err)
			continue
		}

		if env.EnvelopeID != "" {
			if err := conn.WriteJSON(ack{EnvelopeID: env.EnvelopeID}); err != nil {
				return fmt.Errorf("acking envelope: %w", err)
			}
		}

		switch env.Type {
		case "hello":
			l.logger.Info("socket mode ready")
		case "disconnect":
			// Slack asks clients to reconnect before it closes the socket.
			return fmt.Errorf("server requested disconnect")
		case "events_api":
			l.dispatch(ctx, env.Payload)
		}
	}
}

func (l *SocketListener) dispatch(ctx context.Context, payload json.RawMessage) {
	var p eventsAPIPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		l.logger.Warn("unparseable events_api payload", "error", err)
		return
	}
	if p.Event.Type != "message" {
		return
	}

	msg := p.Event.toDomain("")
	go l.handler(ctx, msg)
}
