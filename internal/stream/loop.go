package stream

import (
	"context"
	"log/slog"
	"time"

	"blpbridge/internal/blp"
	"blpbridge/internal/extract"
	"blpbridge/internal/model"
	"blpbridge/internal/session"
	"blpbridge/internal/subs"
)

// Sink receives batches of normalized updates for fan-out to clients.
type Sink interface {
	Publish(batch []model.Update)
}

// Config tunes the dispatch loop.
type Config struct {
	// PollTimeout bounds each blocking poll of the event stream.
	PollTimeout time.Duration
	// BatchSize caps how many updates a single flush may carry.
	BatchSize int
	// EmitInterval is the minimum spacing between consecutive flushes.
	EmitInterval time.Duration
	// RetryBackoff is how long the loop pauses after a session failure
	// before attempting to reopen.
	RetryBackoff time.Duration
}

// DefaultConfig returns the standard loop tuning.
func DefaultConfig() Config {
	return Config{
		PollTimeout:  500 * time.Millisecond,
		BatchSize:    10,
		EmitInterval: 5 * time.Millisecond,
		RetryBackoff: time.Second,
	}
}

// eventKind is the loop's closed classification of provider events.
type eventKind int

const (
	kindOther eventKind = iota
	kindData
	kindStatus
)

func classify(ev blp.Event) eventKind {
	switch ev.Type {
	case blp.EventSubscriptionData:
		return kindData
	case blp.EventSubscriptionStatus:
		return kindStatus
	default:
		return kindOther
	}
}

// Loop drives the subscription session: it keeps the session open, replays
// registered subscriptions after a reconnect, and turns subscription data
// events into batched client updates.
type Loop struct {
	cfg      Config
	sup      *session.Supervisor
	registry *subs.Registry
	emit     *emitter
	logger   *slog.Logger

	// lastGen is the session generation whose subscriptions have been
	// established. A differing generation from the supervisor means the
	// session was reopened and the registry must be replayed.
	lastGen uint64
}

// NewLoop constructs a dispatch loop. The loop does not start until Run is
// called.
func NewLoop(cfg Config, sup *session.Supervisor, registry *subs.Registry, sink Sink, logger *slog.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		sup:      sup,
		registry: registry,
		emit:     newEmitter(sink, cfg.EmitInterval),
		logger:   logger,
	}
}

// Run polls the subscription session until ctx is cancelled. It never
// returns early on session failures; those are logged, the session is
// marked broken, and the loop retries after a backoff.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("dispatch loop starting",
		"poll_timeout", l.cfg.PollTimeout,
		"batch_size", l.cfg.BatchSize)
	for ctx.Err() == nil {
		l.iterate(ctx)
	}
	l.logger.Info("dispatch loop stopped")
}

func (l *Loop) iterate(ctx context.Context) {
	sess, gen, err := l.sup.EnsureOpen(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("subscription session unavailable", "error", err)
		l.backoff(ctx)
		return
	}
	if gen != l.lastGen {
		l.replay(ctx, sess, gen)
		l.lastGen = gen
	}

	ev, err := sess.NextEvent(l.cfg.PollTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		l.logger.Error("event poll failed, reopening session", "error", err)
		l.sup.MarkBroken()
		l.backoff(ctx)
		return
	}

	switch classify(ev) {
	case kindData:
		l.handleData(ctx, ev)
	case kindStatus:
		l.handleStatus(ev)
	case kindOther:
		// Heartbeats, timeouts and service status carry nothing for
		// clients.
	}
}

// replay re-establishes registered subscriptions on a freshly opened
// session. Subscriptions already opened on this handle by the subscribe
// path are skipped; sending them again would duplicate the stream.
// Individual failures are logged and left in the registry; the provider
// reports persistent ones through subscription status events.
func (l *Loop) replay(ctx context.Context, sess blp.Session, gen uint64) {
	replayed := 0
	for _, sub := range l.registry.All() {
		if sub.Generation == gen {
			continue
		}
		if err := sess.Subscribe(ctx, sub.Security, sub.Fields, sub.CorrelationID); err != nil {
			l.logger.Warn("subscription replay failed",
				"security", sub.Security,
				"error", err)
			continue
		}
		l.registry.MarkReplayed(sub.CorrelationID, gen)
		replayed++
	}
	if replayed > 0 {
		l.logger.Info("replayed subscriptions", "count", replayed)
	}
}

func (l *Loop) handleData(ctx context.Context, ev blp.Event) {
	batch := make([]model.Update, 0, l.cfg.BatchSize)
	for _, msg := range ev.Messages {
		security, ok := l.registry.Resolve(msg.CorrelationID)
		if !ok {
			// Late data for a subscription that was already removed.
			l.logger.Debug("dropping update with unknown correlation",
				"correlation_id", msg.CorrelationID)
			continue
		}
		values := extract.FieldValues(msg, l.logger)
		if len(values) == 0 {
			continue
		}
		batch = append(batch, model.Update{
			Type:     model.UpdateTypeData,
			Security: security,
			Values:   values,
		})
		if len(batch) >= l.cfg.BatchSize {
			l.emit.flush(ctx, batch)
			batch = make([]model.Update, 0, l.cfg.BatchSize)
		}
	}
	if len(batch) > 0 {
		l.emit.flush(ctx, batch)
	}
}

// handleStatus prunes subscriptions the provider has terminated. Status
// events are never fatal to the loop.
func (l *Loop) handleStatus(ev blp.Event) {
	for _, msg := range ev.Messages {
		if msg.Type != blp.MsgSubscriptionFailure {
			continue
		}
		sub, ok := l.registry.RemoveByCorrelation(msg.CorrelationID)
		if !ok {
			continue
		}
		l.logger.Warn("provider terminated subscription",
			"security", sub.Security,
			"correlation_id", sub.CorrelationID)
	}
}

func (l *Loop) backoff(ctx context.Context) {
	t := time.NewTimer(l.cfg.RetryBackoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
