// Package subs maintains the table of active subscriptions.
//
// The registry is the single source of truth for what is currently
// subscribed. The API surface adds and removes entries on subscribe and
// unsubscribe requests; the event dispatch loop removes entries when the
// provider reports a subscription failure. The correlation id stored with
// each entry is the only link between an inbound provider event and the
// subscription it belongs to.
package subs
