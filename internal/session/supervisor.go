package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"blpbridge/internal/blp"
)

// Role identifies which logical session a supervisor owns.
type Role string

const (
	RoleRequests      Role = "requests"
	RoleSubscriptions Role = "subscriptions"
)

// State is the supervisor's lifecycle state.
type State int

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

// ConnError marks a connection-class failure. Callers that see one know the
// session handle may be broken and must not be reused.
type ConnError struct {
	Op  string
	Err error
}

func (e *ConnError) Error() string {
	return fmt.Sprintf("connection failure during %s: %v", e.Op, e.Err)
}

func (e *ConnError) Unwrap() error { return e.Err }

// IsConnError reports whether err is connection-class.
func IsConnError(err error) bool {
	var ce *ConnError
	return errors.As(err, &ce)
}

// Factory opens a fresh provider session with its services ready.
type Factory func(ctx context.Context) (blp.Session, error)

// Supervisor owns at most one live session handle for its role.
type Supervisor struct {
	role    Role
	factory Factory
	logger  *slog.Logger

	// mu is held across the open attempt, which makes EnsureOpen exclusive
	// per role: concurrent callers cannot race to create two live handles.
	mu         sync.Mutex
	state      State
	sess       blp.Session
	generation uint64
}

// NewSupervisor creates a supervisor for one session role.
func NewSupervisor(role Role, factory Factory, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		role:    role,
		factory: factory,
		logger:  logger.With("role", string(role)),
	}
}

// EnsureOpen returns the live session handle, opening one if needed. The
// returned generation increments every time a new handle is created, so
// callers holding per-session state (replayed subscriptions) can detect a
// fresh handle.
func (s *Supervisor) EnsureOpen(ctx context.Context) (blp.Session, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateOpen {
		return s.sess, s.generation, nil
	}

	s.state = StateOpening
	sess, err := s.factory(ctx)
	if err != nil {
		s.state = StateClosed
		return nil, 0, &ConnError{Op: "open " + string(s.role) + " session", Err: err}
	}

	s.sess = sess
	s.state = StateOpen
	s.generation++

	s.logger.Info("session opened", "generation", s.generation)
	return s.sess, s.generation, nil
}

// MarkBroken forces the supervisor back to CLOSED, releasing the current
// handle best-effort. Safe to call from any state; the next EnsureOpen
// recreates the session.
func (s *Supervisor) MarkBroken() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		if err := s.sess.Stop(); err != nil {
			s.logger.Debug("stopping broken session", "error", err)
		}
		s.sess = nil
	}
	if s.state != StateClosed {
		s.logger.Warn("session marked broken", "generation", s.generation)
	}
	s.state = StateClosed
}

// IsOpen reports whether a live handle exists.
func (s *Supervisor) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateOpen
}

// Close releases the current handle during shutdown.
func (s *Supervisor) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sess != nil {
		if err := s.sess.Stop(); err != nil {
			s.logger.Debug("stopping session", "error", err)
		}
		s.sess = nil
	}
	s.state = StateClosed
	s.logger.Info("session closed")
}
