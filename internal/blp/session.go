package blp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Session is a stateful, long-lived connection to the terminal gateway.
// At most one live session per role exists; the session supervisor owns
// creation and teardown.
type Session interface {
	// OpenService opens a named service on the session.
	OpenService(ctx context.Context, name string) error

	// SendRequest submits a synchronous request; its responses arrive as
	// events tagged with the given correlation id.
	SendRequest(ctx context.Context, req Request, correlationID string) error

	// Subscribe starts streaming updates for a security.
	Subscribe(ctx context.Context, security string, fields []string, correlationID string) error

	// Unsubscribe stops streaming updates for a correlation id.
	Unsubscribe(ctx context.Context, correlationID string) error

	// NextEvent returns the next event, or a synthetic Timeout event when
	// nothing arrives within the given duration. A non-nil error means the
	// session is no longer usable.
	NextEvent(timeout time.Duration) (Event, error)

	// Stop releases the underlying connection.
	Stop() error
}

// wsSession implements Session over a WebSocket to the gateway.
type wsSession struct {
	cfg    SessionConfig
	logger *slog.Logger

	conn *websocket.Conn

	events chan Event
	errs   chan error
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// Command/ack correlation
	pendingMu sync.Mutex
	pending   map[int64]chan cmdResponse
	cmdID     int64

	mu     sync.Mutex
	closed bool
}

// Dial opens a session to the gateway at cfg.Host:cfg.Port.
func Dial(ctx context.Context, cfg SessionConfig, logger *slog.Logger) (Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	url := fmt.Sprintf("ws://%s:%d/session", cfg.Host, cfg.Port)
	dialer := websocket.Dialer{HandshakeTimeout: cfg.OpenTimeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("open session on %s:%d: %w", cfg.Host, cfg.Port, err)
	}

	s := &wsSession{
		cfg:     cfg,
		logger:  logger,
		conn:    conn,
		events:  make(chan Event, cfg.EventBufferSize),
		errs:    make(chan error, 1),
		done:    make(chan struct{}),
		pending: make(map[int64]chan cmdResponse),
	}

	go s.readPump()

	logger.Debug("session opened", "url", url)
	return s, nil
}

func (s *wsSession) OpenService(ctx context.Context, name string) error {
	if err := s.command(ctx, "openService", openServiceParams{Service: name}); err != nil {
		return fmt.Errorf("open service %s: %w", name, err)
	}
	return nil
}

func (s *wsSession) SendRequest(ctx context.Context, req Request, correlationID string) error {
	return s.command(ctx, "request", requestParams{
		Service:       req.Service,
		Operation:     req.Operation,
		CorrelationID: correlationID,
		Securities:    req.Securities,
		Fields:        req.Fields,
		Settings:      req.Settings,
	})
}

func (s *wsSession) Subscribe(ctx context.Context, security string, fields []string, correlationID string) error {
	return s.command(ctx, "subscribe", subscribeParams{
		Security:      security,
		Fields:        fields,
		CorrelationID: correlationID,
	})
}

func (s *wsSession) Unsubscribe(ctx context.Context, correlationID string) error {
	return s.command(ctx, "unsubscribe", unsubscribeParams{CorrelationID: correlationID})
}

// NextEvent is the only blocking point callers hit, and it is always bounded.
func (s *wsSession) NextEvent(timeout time.Duration) (Event, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-s.events:
		return ev, nil
	case err := <-s.errs:
		return Event{}, err
	case <-s.done:
		return Event{}, ErrAlreadyClosed
	case <-timer.C:
		return Event{Type: EventTimeout}, nil
	}
}

func (s *wsSession) Stop() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	close(s.done)

	s.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return s.conn.Close()
}

// command sends a gateway command and waits for its acknowledgement.
func (s *wsSession) command(ctx context.Context, cmd string, params any) error {
	id := atomic.AddInt64(&s.cmdID, 1)
	respCh := make(chan cmdResponse, 1)

	s.pendingMu.Lock()
	s.pending[id] = respCh
	s.pendingMu.Unlock()

	defer func() {
		s.pendingMu.Lock()
		delete(s.pending, id)
		s.pendingMu.Unlock()
	}()

	data, err := json.Marshal(command{ID: id, Cmd: cmd, Params: params})
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", cmd, err)
	}
	if err := s.send(data); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrAlreadyClosed
	case <-time.After(s.cfg.CommandTimeout):
		return ErrTimeout
	case resp := <-respCh:
		if resp.Type == "error" {
			return fmt.Errorf("%s rejected: %s", cmd, resp.Message)
		}
		return nil
	}
}

func (s *wsSession) send(data []byte) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrNotConnected
	}
	s.mu.Unlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// readPump reads gateway frames and routes them: acks to waiting commands,
// events to the event channel.
func (s *wsSession) readPump() {
	for {
		select {
		case <-s.done:
			return
		default:
		}

		_, data, err := s.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			// Ignore errors after Stop().
			select {
			case <-s.done:
			default:
				select {
				case s.errs <- err:
				default:
				}
			}
			return
		}

		if resp, ok := tryParseAck(data); ok {
			s.routeAck(resp)
			continue
		}

		ev, err := parseEvent(data, receivedAt)
		if err != nil {
			s.logger.Warn("dropping malformed gateway frame", "error", err)
			continue
		}

		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) routeAck(resp cmdResponse) {
	s.pendingMu.Lock()
	ch, ok := s.pending[resp.ID]
	if ok {
		delete(s.pending, resp.ID)
	}
	s.pendingMu.Unlock()

	if ok {
		select {
		case ch <- resp:
		default:
		}
	}
}

// tryParseAck attempts to parse a frame as a command acknowledgement.
func tryParseAck(data []byte) (cmdResponse, bool) {
	if !bytes.Contains(data, []byte(`"id":`)) {
		return cmdResponse{}, false
	}

	var resp cmdResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return cmdResponse{}, false
	}

	switch resp.Type {
	case "ok", "error":
		return resp, true
	}
	return cmdResponse{}, false
}

// parseEvent parses a gateway event frame into an Event.
func parseEvent(data []byte, receivedAt time.Time) (Event, error) {
	var wire eventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return Event{}, err
	}
	if wire.Type != "event" {
		return Event{}, fmt.Errorf("unexpected frame type %q", wire.Type)
	}

	ev := Event{Type: eventTypeNames[wire.EventType]}
	for _, mw := range wire.Messages {
		content, err := DecodeElement(mw.MessageType, mw.Element)
		if err != nil {
			return Event{}, err
		}
		ev.Messages = append(ev.Messages, Message{
			Type:          mw.MessageType,
			CorrelationID: mw.CorrelationID,
			Content:       content,
			ReceivedAt:    receivedAt,
		})
	}
	return ev, nil
}
