// mockgateway is a synthetic provider gateway for local development. It
// speaks the session wire protocol on ws://host:port/session, acknowledges
// commands, answers requests with generated pricing, and ticks subscription
// data for every subscribed security.
// Usage: go run ./cmd/mockgateway -port 8194 [-tick 500ms]
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type commandFrame struct {
	ID     int64           `json:"id"`
	Cmd    string          `json:"cmd"`
	Params json.RawMessage `json:"params"`
}

type ackFrame struct {
	ID      int64  `json:"id"`
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

type eventFrame struct {
	Type      string         `json:"type"`
	EventType string         `json:"eventType"`
	Messages  []messageFrame `json:"messages"`
}

type messageFrame struct {
	MessageType   string          `json:"messageType"`
	CorrelationID string          `json:"correlationId"`
	Element       json.RawMessage `json:"element"`
}

type requestParams struct {
	Operation     string         `json:"operation"`
	CorrelationID string         `json:"correlationId"`
	Securities    []string       `json:"securities"`
	Fields        []string       `json:"fields"`
	Settings      map[string]any `json:"settings"`
}

type subscribeParams struct {
	Security      string   `json:"security"`
	Fields        []string `json:"fields"`
	CorrelationID string   `json:"correlationId"`
}

type subscription struct {
	security string
	fields   []string
}

// gatewayConn serves one session connection.
type gatewayConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]subscription // correlation id -> subscription
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

func main() {
	port := flag.Int("port", 8194, "listen port")
	tick := flag.Duration("tick", 500*time.Millisecond, "subscription data interval")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	http.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("upgrade failed", "error", err)
			return
		}
		g := &gatewayConn{
			conn:   conn,
			logger: logger.With("remote", conn.RemoteAddr().String()),
			subs:   make(map[string]subscription),
		}
		g.logger.Info("session connected")
		go g.tickLoop(*tick)
		g.readLoop()
	})

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("mock gateway listening", "addr", addr)
	if err := http.ListenAndServe(addr, nil); err != nil {
		logger.Error("listen failed", "error", err)
		os.Exit(1)
	}
}

func (g *gatewayConn) readLoop() {
	defer func() {
		g.conn.Close()
		g.logger.Info("session closed")
	}()

	for {
		_, data, err := g.conn.ReadMessage()
		if err != nil {
			return
		}

		var cmd commandFrame
		if err := json.Unmarshal(data, &cmd); err != nil {
			g.logger.Warn("unparseable frame", "error", err)
			continue
		}

		switch cmd.Cmd {
		case "openService":
			g.ack(cmd.ID)

		case "request":
			var p requestParams
			if err := json.Unmarshal(cmd.Params, &p); err != nil {
				g.nack(cmd.ID, "bad request params")
				continue
			}
			g.ack(cmd.ID)
			g.answerRequest(p)

		case "subscribe":
			var p subscribeParams
			if err := json.Unmarshal(cmd.Params, &p); err != nil {
				g.nack(cmd.ID, "bad subscribe params")
				continue
			}
			g.mu.Lock()
			g.subs[p.CorrelationID] = subscription{security: p.Security, fields: p.Fields}
			g.mu.Unlock()
			g.ack(cmd.ID)
			g.logger.Info("subscribed", "security", p.Security)

		case "unsubscribe":
			var p struct {
				CorrelationID string `json:"correlationId"`
			}
			if err := json.Unmarshal(cmd.Params, &p); err != nil {
				g.nack(cmd.ID, "bad unsubscribe params")
				continue
			}
			g.mu.Lock()
			delete(g.subs, p.CorrelationID)
			g.mu.Unlock()
			g.ack(cmd.ID)

		default:
			g.nack(cmd.ID, "unknown command "+cmd.Cmd)
		}
	}
}

// answerRequest emits a single complete-response event covering every
// requested security.
func (g *gatewayConn) answerRequest(p requestParams) {
	switch p.Operation {
	case "ReferenceDataRequest":
		g.send(eventFrame{
			Type:      "event",
			EventType: "RESPONSE",
			Messages: []messageFrame{{
				MessageType:   "ReferenceDataResponse",
				CorrelationID: p.CorrelationID,
				Element:       referenceElement(p.Securities, p.Fields),
			}},
		})

	case "HistoricalDataRequest":
		start, _ := p.Settings["startDate"].(string)
		end, _ := p.Settings["endDate"].(string)
		// One message per security, the way the real provider splits them.
		var msgs []messageFrame
		for _, security := range p.Securities {
			msgs = append(msgs, messageFrame{
				MessageType:   "HistoricalDataResponse",
				CorrelationID: p.CorrelationID,
				Element:       historicalElement(security, p.Fields, start, end),
			})
		}
		g.send(eventFrame{Type: "event", EventType: "RESPONSE", Messages: msgs})

	default:
		g.logger.Warn("unknown operation", "operation", p.Operation)
	}
}

// tickLoop emits subscription data for every active subscription until the
// connection dies.
func (g *gatewayConn) tickLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for range ticker.C {
		g.mu.Lock()
		var msgs []messageFrame
		for correlationID, sub := range g.subs {
			msgs = append(msgs, messageFrame{
				MessageType:   "MarketDataEvents",
				CorrelationID: correlationID,
				Element:       tickElement(sub.fields),
			})
		}
		g.mu.Unlock()

		if len(msgs) == 0 {
			continue
		}
		if !g.send(eventFrame{Type: "event", EventType: "SUBSCRIPTION_DATA", Messages: msgs}) {
			return
		}
	}
}

func (g *gatewayConn) ack(id int64) {
	g.sendJSON(ackFrame{ID: id, Type: "ok"})
}

func (g *gatewayConn) nack(id int64, msg string) {
	g.sendJSON(ackFrame{ID: id, Type: "error", Message: msg})
}

func (g *gatewayConn) send(ev eventFrame) bool {
	return g.sendJSON(ev)
}

func (g *gatewayConn) sendJSON(v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.Error("marshal frame", "error", err)
		return false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := g.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return false
	}
	return true
}

func price() string {
	return fmt.Sprintf("%.2f", 90+rand.Float64()*20)
}

// referenceElement builds a ReferenceDataResponse element body.
func referenceElement(securities, fields []string) json.RawMessage {
	secs := make([]map[string]any, 0, len(securities))
	for _, s := range securities {
		fieldData := map[string]any{}
		for _, f := range fields {
			fieldData[f] = price()
		}
		secs = append(secs, map[string]any{
			"security":  s,
			"fieldData": fieldData,
		})
	}
	data, _ := json.Marshal(map[string]any{"securityData": secs})
	return data
}

// historicalElement builds a HistoricalDataResponse element body with one
// entry per day in the range. Dates outside a parseable range fall back to a
// single synthetic day.
func historicalElement(security string, fields []string, start, end string) json.RawMessage {
	const layout = "20060102"
	from, err1 := time.Parse(layout, start)
	to, err2 := time.Parse(layout, end)
	if err1 != nil || err2 != nil || to.Before(from) {
		from = time.Now().AddDate(0, 0, -1)
		to = from
	}

	var fieldData []map[string]any
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		entry := map[string]any{"date": d.Format("2006-01-02")}
		for _, f := range fields {
			entry[f] = price()
		}
		fieldData = append(fieldData, entry)
	}

	data, _ := json.Marshal(map[string]any{
		"securityData": []map[string]any{{
			"security":  security,
			"fieldData": fieldData,
		}},
	})
	return data
}

// tickElement builds a streaming update element with one value per field.
func tickElement(fields []string) json.RawMessage {
	values := map[string]any{}
	for _, f := range fields {
		values[f] = price()
	}
	data, _ := json.Marshal(values)
	return data
}
