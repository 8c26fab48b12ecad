package request

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"blpbridge/internal/blp"
	"blpbridge/internal/extract"
	"blpbridge/internal/model"
	"blpbridge/internal/session"
)

// Config holds executor settings.
type Config struct {
	Service     string        // provider service name, e.g. //blp/refdata
	PollTimeout time.Duration // bounded NextEvent timeout between completeness checks
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Service:     "//blp/refdata",
		PollTimeout: 100 * time.Millisecond,
	}
}

// Executor runs synchronous provider requests over the request-role session.
type Executor struct {
	cfg    Config
	sup    *session.Supervisor
	logger *slog.Logger

	// One in-flight request at a time: the session delivers events on a
	// single stream, so interleaved collectors would steal each other's
	// response messages. Concurrent API calls queue here.
	execMu sync.Mutex
}

// NewExecutor creates an executor bound to the request-role supervisor.
func NewExecutor(cfg Config, sup *session.Supervisor, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:    cfg,
		sup:    sup,
		logger: logger.With("component", "request"),
	}
}

// LatestData fetches the latest reference fields for the given securities.
// Partial failures come back as error entries next to the data.
func (e *Executor) LatestData(ctx context.Context, securities, fields []string) (model.LatestResult, error) {
	req := blp.Request{
		Service:    e.cfg.Service,
		Operation:  "ReferenceDataRequest",
		Securities: securities,
		Fields:     fields,
		Settings: map[string]any{
			"returnFormattedValue": true,
		},
	}

	msgs, err := e.collect(ctx, req, blp.MsgReferenceDataResponse)
	if err != nil {
		return model.LatestResult{}, err
	}

	result := model.LatestResult{
		Response: []model.PricingRecord{},
		Errors:   []string{},
	}
	for _, msg := range msgs {
		result.Response = append(result.Response, extract.ReferenceRows(msg)...)
	}
	for _, msg := range msgs {
		result.Errors = append(result.Errors, extract.Errors(msg)...)
	}
	return result, nil
}

// HistoricalData fetches a daily series over the query's date range. Series
// from all response messages are merged and re-sorted by date regardless of
// arrival order.
func (e *Executor) HistoricalData(ctx context.Context, q model.HistoricalQuery) (model.HistoricalResult, error) {
	req := blp.Request{
		Service:    e.cfg.Service,
		Operation:  "HistoricalDataRequest",
		Securities: q.Securities,
		Fields:     q.Fields,
		Settings: map[string]any{
			"startDate":            q.StartDate,
			"endDate":              q.EndDate,
			"periodicitySelection": "DAILY",
		},
	}

	msgs, err := e.collect(ctx, req, blp.MsgHistoricalDataResponse)
	if err != nil {
		return model.HistoricalResult{}, err
	}

	parts := make([][]model.HistoricalSeries, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, extract.HistoricalRows(msg))
	}

	result := model.HistoricalResult{
		Response: extract.MergeHistorical(parts...),
		Errors:   []string{},
	}
	for _, msg := range msgs {
		result.Errors = append(result.Errors, extract.Errors(msg)...)
	}
	return result, nil
}

// collect submits a request and polls until the provider flags the response
// complete, gathering every message of the expected type seen along the
// way. Failures invalidate the session before propagating.
func (e *Executor) collect(ctx context.Context, req blp.Request, wantType string) ([]blp.Message, error) {
	e.execMu.Lock()
	defer e.execMu.Unlock()

	sess, _, err := e.sup.EnsureOpen(ctx)
	if err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()
	if err := sess.SendRequest(ctx, req, correlationID); err != nil {
		e.sup.MarkBroken()
		return nil, &session.ConnError{Op: "send " + req.Operation, Err: err}
	}

	var msgs []blp.Message
	for {
		if err := ctx.Err(); err != nil {
			// The request is already on the wire; its response events
			// would otherwise sit queued and bleed into the next call.
			e.sup.MarkBroken()
			return nil, err
		}

		ev, err := sess.NextEvent(e.cfg.PollTimeout)
		if err != nil {
			e.sup.MarkBroken()
			return nil, &session.ConnError{Op: "poll " + req.Operation, Err: err}
		}

		for _, msg := range ev.Messages {
			if msg.Type == wantType && msg.CorrelationID == correlationID {
				msgs = append(msgs, msg)
			}
		}

		// A RESPONSE event means the response is completely received;
		// timeouts just give the loop a chance to observe cancellation.
		if ev.Type == blp.EventResponse {
			return msgs, nil
		}
	}
}
