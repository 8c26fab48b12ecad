package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"blpbridge/internal/model"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients are policed by the CORS layer; the websocket endpoint
	// also serves non-browser tails that send no Origin at all.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans update batches out to websocket clients. All client bookkeeping
// happens on the single Run goroutine; handlers and the dispatch loop talk
// to it only through channels.
type Hub struct {
	logger *slog.Logger

	register   chan *client
	unregister chan *client
	broadcast  chan []model.Update

	// done is closed when Run returns, releasing clients that would
	// otherwise block on register or unregister with nobody receiving.
	done chan struct{}

	clients map[*client]struct{}
}

// NewHub creates a hub whose broadcast queue holds queueSize batches.
func NewHub(queueSize int, logger *slog.Logger) *Hub {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:     logger,
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan []model.Update, queueSize),
		done:       make(chan struct{}),
		clients:    make(map[*client]struct{}),
	}
}

// Publish enqueues a batch for broadcast. It never blocks the caller: if the
// queue is full the batch is dropped, since a stalled hub must not stall the
// dispatch loop.
func (h *Hub) Publish(batch []model.Update) {
	if len(batch) == 0 {
		return
	}
	select {
	case h.broadcast <- batch:
	default:
		h.logger.Warn("broadcast queue full, dropping batch",
			"updates", len(batch))
	}
}

// Run owns the client set until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.logger.Info("websocket client connected",
				"clients", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case batch := <-h.broadcast:
			payload, err := json.Marshal(batch)
			if err != nil {
				h.logger.Error("encoding update batch", "error", err)
				continue
			}
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					// A client that cannot keep up is disconnected so it
					// cannot block delivery to the rest.
					delete(h.clients, c)
					close(c.send)
					h.logger.Warn("dropping slow websocket client")
				}
			}
		}
	}
}

// serveWS upgrades the request and attaches the connection to the hub.
func (h *Hub) serveWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	cl := &client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}
	select {
	case h.register <- cl:
	case <-h.done:
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}
