// Package session supervises the lifecycle of provider session handles.
//
// One supervisor exists per session role (synchronous requests, streaming
// subscriptions) and guarantees at most one live handle per role. Sessions
// are opened lazily: EnsureOpen reuses the current handle or creates a new
// one, and MarkBroken discards a handle that callers observed failing, so
// the next call self-heals.
package session
