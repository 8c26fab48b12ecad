// Package server exposes the bridge over HTTP and websockets. REST handlers
// cover snapshot and historical pricing plus subscription management; the
// websocket hub fans streaming update batches out to connected clients.
package server
