package stream

import (
	"context"
	"fmt"
	"log/slog"

	"blpbridge/internal/session"
	"blpbridge/internal/subs"
)

// Service bridges the API surface to the subscription session and the
// registry.
type Service struct {
	sup      *session.Supervisor
	registry *subs.Registry
	logger   *slog.Logger
}

// NewService constructs the subscription service.
func NewService(sup *session.Supervisor, registry *subs.Registry, logger *slog.Logger) *Service {
	return &Service{sup: sup, registry: registry, logger: logger}
}

// Subscribe registers a security and opens its streaming subscription. If
// the provider command fails, the registry entry is rolled back and the
// session is marked broken so the dispatch loop reopens it.
func (s *Service) Subscribe(ctx context.Context, security string, fields []string) error {
	if security == "" {
		return fmt.Errorf("subscribe: empty security")
	}
	if len(fields) == 0 {
		return fmt.Errorf("subscribe: no fields for %s", security)
	}

	sess, gen, err := s.sup.EnsureOpen(ctx)
	if err != nil {
		return err
	}

	sub := s.registry.Add(security, fields, gen)
	if err := sess.Subscribe(ctx, sub.Security, sub.Fields, sub.CorrelationID); err != nil {
		s.registry.Remove(security)
		s.sup.MarkBroken()
		return &session.ConnError{Op: "subscribe", Err: err}
	}

	s.logger.Info("subscribed",
		"security", security,
		"fields", len(fields))
	return nil
}

// Unsubscribe removes a security's subscription. Unsubscribing a security
// that is not subscribed is a no-op.
func (s *Service) Unsubscribe(ctx context.Context, security string) error {
	sub, ok := s.registry.Remove(security)
	if !ok {
		return nil
	}

	sess, _, err := s.sup.EnsureOpen(ctx)
	if err != nil {
		return err
	}
	if err := sess.Unsubscribe(ctx, sub.CorrelationID); err != nil {
		s.sup.MarkBroken()
		return &session.ConnError{Op: "unsubscribe", Err: err}
	}

	s.logger.Info("unsubscribed", "security", security)
	return nil
}

// Count reports the number of active subscriptions for status endpoints.
func (s *Service) Count() int {
	return s.registry.Len()
}
