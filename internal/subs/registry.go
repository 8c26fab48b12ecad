package subs

import (
	"sync"

	"github.com/google/uuid"
)

// Subscription is one active streaming subscription.
type Subscription struct {
	Security      string   `json:"security"`
	Fields        []string `json:"fields"`
	CorrelationID string   `json:"correlationId"`

	// Generation records which session handle the subscription was opened
	// on, so a replay after reconnect skips subscriptions that are already
	// live on the current handle.
	Generation uint64 `json:"-"`
}

// Registry is the thread-safe subscription table, keyed by security.
type Registry struct {
	mu   sync.RWMutex
	subs map[string]Subscription
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[string]Subscription)}
}

// Add inserts or replaces the subscription for a security and returns its
// correlation id. Re-subscribing an already-subscribed security replaces
// its field set under a fresh correlation id.
func (r *Registry) Add(security string, fields []string, generation uint64) Subscription {
	sub := Subscription{
		Security:      security,
		Fields:        append([]string(nil), fields...),
		CorrelationID: uuid.NewString(),
		Generation:    generation,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[security] = sub
	return sub
}

// Remove deletes the subscription for a security, returning it if present.
// Removing an absent security is a no-op.
func (r *Registry) Remove(security string) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[security]
	if ok {
		delete(r.subs, security)
	}
	return sub, ok
}

// RemoveByCorrelation deletes the subscription carrying the given
// correlation id. Used when the provider reports a failure for a
// subscription it identifies only by correlation id.
func (r *Registry) RemoveByCorrelation(correlationID string) (Subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for security, sub := range r.subs {
		if sub.CorrelationID == correlationID {
			delete(r.subs, security)
			return sub, true
		}
	}
	return Subscription{}, false
}

// MarkReplayed records that a subscription was re-established on the given
// session generation.
func (r *Registry) MarkReplayed(correlationID string, generation uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for security, sub := range r.subs {
		if sub.CorrelationID == correlationID {
			sub.Generation = generation
			r.subs[security] = sub
			return
		}
	}
}

// Resolve returns the security owning a correlation id.
func (r *Registry) Resolve(correlationID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for security, sub := range r.subs {
		if sub.CorrelationID == correlationID {
			return security, true
		}
	}
	return "", false
}

// Snapshot returns a read-consistent copy of the table for status reporting.
func (r *Registry) Snapshot() map[string]Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Subscription, len(r.subs))
	for security, sub := range r.subs {
		out[security] = sub
	}
	return out
}

// All returns every subscription; used to replay subscriptions onto a fresh
// session after the old one broke.
func (r *Registry) All() []Subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// Len returns the number of active subscriptions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}
