package stream

import (
	"context"
	"time"

	"blpbridge/internal/model"
)

// emitter delivers batches to the sink with a minimum spacing between
// flushes, so a burst of provider events cannot flood slow clients.
type emitter struct {
	sink     Sink
	interval time.Duration
	last     time.Time
}

func newEmitter(sink Sink, interval time.Duration) *emitter {
	return &emitter{sink: sink, interval: interval}
}

// flush publishes the batch, first waiting out the remainder of the spacing
// interval if the previous flush was too recent. Cancellation skips the wait
// but still delivers, so no collected update is silently dropped.
func (e *emitter) flush(ctx context.Context, batch []model.Update) {
	if len(batch) == 0 {
		return
	}
	if !e.last.IsZero() {
		if wait := e.interval - time.Since(e.last); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
			case <-t.C:
			}
		}
	}
	e.sink.Publish(batch)
	e.last = time.Now()
}
