package blp

import (
	"encoding/json"
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrTimeout       = errors.New("command timeout")
	ErrAlreadyClosed = errors.New("already closed")
)

// EventType classifies a gateway event. The set is closed so callers can
// match exhaustively.
type EventType int

const (
	EventOther EventType = iota
	EventPartialResponse
	EventResponse
	EventSubscriptionData
	EventSubscriptionStatus
	EventTimeout
)

// eventTypeNames maps wire names to event types. Unknown names classify as
// EventOther.
var eventTypeNames = map[string]EventType{
	"PARTIAL_RESPONSE":    EventPartialResponse,
	"RESPONSE":            EventResponse,
	"SUBSCRIPTION_DATA":   EventSubscriptionData,
	"SUBSCRIPTION_STATUS": EventSubscriptionStatus,
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	switch t {
	case EventPartialResponse:
		return "PARTIAL_RESPONSE"
	case EventResponse:
		return "RESPONSE"
	case EventSubscriptionData:
		return "SUBSCRIPTION_DATA"
	case EventSubscriptionStatus:
		return "SUBSCRIPTION_STATUS"
	case EventTimeout:
		return "TIMEOUT"
	default:
		return "OTHER"
	}
}

// Message is one message within an event: a typed element tree plus the
// correlation id that binds it back to the request or subscription that
// caused it.
type Message struct {
	Type          string
	CorrelationID string
	Content       Element
	ReceivedAt    time.Time
}

// Event is one gateway event, iterable over its messages.
type Event struct {
	Type     EventType
	Messages []Message
}

// Request is a synchronous provider request.
type Request struct {
	Service    string
	Operation  string // "ReferenceDataRequest" or "HistoricalDataRequest"
	Securities []string
	Fields     []string
	Settings   map[string]any // e.g. returnFormattedValue, startDate, periodicitySelection
}

// Message type names reported by the provider.
const (
	MsgReferenceDataResponse  = "ReferenceDataResponse"
	MsgHistoricalDataResponse = "HistoricalDataResponse"
	MsgSubscriptionFailure    = "SubscriptionFailure"
)

// command is a gateway command frame.
type command struct {
	ID     int64  `json:"id"`
	Cmd    string `json:"cmd"`
	Params any    `json:"params,omitempty"`
}

// cmdResponse is a gateway acknowledgement frame.
type cmdResponse struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"` // "ok" or "error"
	Message string `json:"message,omitempty"`
}

// openServiceParams are parameters for an openService command.
type openServiceParams struct {
	Service string `json:"service"`
}

// requestParams are parameters for a request command.
type requestParams struct {
	Service       string         `json:"service"`
	Operation     string         `json:"operation"`
	CorrelationID string         `json:"correlationId"`
	Securities    []string       `json:"securities"`
	Fields        []string       `json:"fields"`
	Settings      map[string]any `json:"settings,omitempty"`
}

// subscribeParams are parameters for a subscribe command.
type subscribeParams struct {
	Security      string   `json:"security"`
	Fields        []string `json:"fields"`
	CorrelationID string   `json:"correlationId"`
}

// unsubscribeParams are parameters for an unsubscribe command.
type unsubscribeParams struct {
	CorrelationID string `json:"correlationId"`
}

// eventWire is the gateway event frame.
type eventWire struct {
	Type      string        `json:"type"` // "event"
	EventType string        `json:"eventType"`
	Messages  []messageWire `json:"messages"`
}

// messageWire is one message within an event frame. Element is kept raw so
// the order-preserving decoder can parse it.
type messageWire struct {
	MessageType   string          `json:"messageType"`
	CorrelationID string          `json:"correlationId"`
	Element       json.RawMessage `json:"element"`
}

// SessionConfig configures a gateway session.
type SessionConfig struct {
	Host            string
	Port            int
	OpenTimeout     time.Duration // WebSocket handshake timeout
	WriteTimeout    time.Duration // Write deadline for sends
	CommandTimeout  time.Duration // Ack timeout for openService/subscribe commands
	EventBufferSize int           // Event channel capacity
}

// DefaultSessionConfig returns sensible defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		OpenTimeout:     10 * time.Second,
		WriteTimeout:    5 * time.Second,
		CommandTimeout:  10 * time.Second,
		EventBufferSize: 1000,
	}
}
