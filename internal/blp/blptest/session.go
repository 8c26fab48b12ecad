// Package blptest provides a scripted in-memory Session for tests.
package blptest

import (
	"context"
	"sync"
	"time"

	"blpbridge/internal/blp"
)

// RequestCall records a SendRequest invocation.
type RequestCall struct {
	Request       blp.Request
	CorrelationID string
}

// SubscribeCall records a Subscribe invocation.
type SubscribeCall struct {
	Security      string
	Fields        []string
	CorrelationID string
}

// ScriptedSession replays a fixed sequence of events and records every call
// made against it. Once the script is exhausted, NextEvent reports timeouts.
// Like the gateway, it echoes the in-flight request's correlation id onto
// replayed messages that do not carry one of their own.
type ScriptedSession struct {
	mu     sync.Mutex
	script []step

	lastRequestCorrelation string

	// Error injection
	OpenServiceErr error
	SendRequestErr error
	SubscribeErr   error

	// Recorded calls
	OpenedServices  []string
	Requests        []RequestCall
	Subscriptions   []SubscribeCall
	Unsubscriptions []string

	stopped bool
}

type step struct {
	event blp.Event
	err   error
}

// Enqueue appends an event to the script.
func (s *ScriptedSession) Enqueue(ev blp.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, step{event: ev})
}

// EnqueueErr appends a poll failure to the script.
func (s *ScriptedSession) EnqueueErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, step{err: err})
}

func (s *ScriptedSession) OpenService(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.OpenServiceErr != nil {
		return s.OpenServiceErr
	}
	s.OpenedServices = append(s.OpenedServices, name)
	return nil
}

func (s *ScriptedSession) SendRequest(ctx context.Context, req blp.Request, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SendRequestErr != nil {
		return s.SendRequestErr
	}
	s.Requests = append(s.Requests, RequestCall{Request: req, CorrelationID: correlationID})
	s.lastRequestCorrelation = correlationID
	return nil
}

func (s *ScriptedSession) Subscribe(ctx context.Context, security string, fields []string, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SubscribeErr != nil {
		return s.SubscribeErr
	}
	s.Subscriptions = append(s.Subscriptions, SubscribeCall{
		Security:      security,
		Fields:        fields,
		CorrelationID: correlationID,
	})
	return nil
}

func (s *ScriptedSession) Unsubscribe(ctx context.Context, correlationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Unsubscriptions = append(s.Unsubscriptions, correlationID)
	return nil
}

func (s *ScriptedSession) NextEvent(timeout time.Duration) (blp.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.script) == 0 {
		return blp.Event{Type: blp.EventTimeout}, nil
	}

	next := s.script[0]
	s.script = s.script[1:]
	if next.err != nil {
		return blp.Event{}, next.err
	}

	ev := next.event
	if len(ev.Messages) > 0 {
		msgs := make([]blp.Message, len(ev.Messages))
		copy(msgs, ev.Messages)
		for i := range msgs {
			if msgs[i].CorrelationID == "" {
				msgs[i].CorrelationID = s.lastRequestCorrelation
			}
		}
		ev.Messages = msgs
	}
	return ev, nil
}

func (s *ScriptedSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

// Stopped reports whether Stop was called.
func (s *ScriptedSession) Stopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}
