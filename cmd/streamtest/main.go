// streamtest tails a running bridge's websocket endpoint and prints update
// batches to the console.
// Usage: go run ./cmd/streamtest -addr localhost:6659 [-verbose]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"blpbridge/internal/model"
)

func main() {
	addr := flag.String("addr", "localhost:6659", "bridge host:port")
	verbose := flag.Bool("verbose", false, "print full batch JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	u := url.URL{Scheme: "ws", Host: *addr, Path: "/ws"}
	logger.Info("connecting", "url", u.String())

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		logger.Error("dial failed", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	batches, updates := 0, 0
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			logger.Error("read failed", "error", err)
			os.Exit(1)
		}

		var batch []model.Update
		if err := json.Unmarshal(payload, &batch); err != nil {
			logger.Warn("unparseable batch", "error", err)
			continue
		}
		batches++
		updates += len(batch)

		if *verbose {
			data, _ := json.MarshalIndent(batch, "", "  ")
			fmt.Printf("[BATCH %d] %s\n", batches, data)
			continue
		}
		for _, upd := range batch {
			fmt.Printf("[%s] security=%s values=%v\n", upd.Type, upd.Security, upd.Values)
		}
	}

	logger.Info("done", "batches", batches, "updates", updates)
}
