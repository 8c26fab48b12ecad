// Package blp provides the session capability consumed by the rest of the
// bridge: open a session to the terminal gateway, open a named service, send
// a request, poll for the next event with a bounded timeout, and read
// responses as trees of named elements.
//
// The gateway speaks JSON over a WebSocket. Element trees preserve the
// encounter order of fields, which downstream extraction depends on.
package blp
