// bridge serves market data from a provider gateway over HTTP and
// websockets: reference snapshots, historical series, and streaming
// subscription updates.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/redis/go-redis/v9"

	"blpbridge/internal/blp"
	"blpbridge/internal/cache"
	"blpbridge/internal/config"
	"blpbridge/internal/request"
	"blpbridge/internal/server"
	"blpbridge/internal/session"
	"blpbridge/internal/stream"
	"blpbridge/internal/subs"
	"blpbridge/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/bridge.example.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting bridge",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"provider", fmt.Sprintf("%s:%d", cfg.Provider.Host, cfg.Provider.Port),
		"service", cfg.Provider.Service,
		"listen", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// One session factory shared by both roles; each supervisor owns its own
	// handle so request traffic and subscription traffic never share a stream.
	sessionCfg := blp.DefaultSessionConfig()
	sessionCfg.Host = cfg.Provider.Host
	sessionCfg.Port = cfg.Provider.Port
	sessionCfg.OpenTimeout = cfg.Provider.OpenTimeout

	factory := func(ctx context.Context) (blp.Session, error) {
		sess, err := blp.Dial(ctx, sessionCfg, logger)
		if err != nil {
			return nil, err
		}
		if err := sess.OpenService(ctx, cfg.Provider.Service); err != nil {
			sess.Stop()
			return nil, err
		}
		return sess, nil
	}

	requestSup := session.NewSupervisor(session.RoleRequests, factory, logger)
	subscriptionSup := session.NewSupervisor(session.RoleSubscriptions, factory, logger)
	defer requestSup.Close()
	defer subscriptionSup.Close()

	// Request path
	executor := request.NewExecutor(request.Config{
		Service:     cfg.Provider.Service,
		PollTimeout: cfg.Provider.RequestPollTimeout,
	}, requestSup, logger)

	// Historical responses are immutable for a closed date range; cache them
	// in Redis when an address is configured.
	var rdb *redis.Client
	if cfg.Cache.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		defer rdb.Close()
		logger.Info("historical cache enabled", "addr", cfg.Cache.Addr, "ttl", cfg.Cache.TTL)
	}
	historical := cache.NewHistorical(rdb, cfg.Cache.TTL, executor, logger)

	// Streaming path
	registry := subs.NewRegistry()
	subService := stream.NewService(subscriptionSup, registry, logger)
	hub := server.NewHub(cfg.Stream.QueueSize, logger)
	loop := stream.NewLoop(stream.Config{
		PollTimeout:  cfg.Stream.PollTimeout,
		BatchSize:    cfg.Stream.BatchSize,
		EmitInterval: cfg.Stream.EmitInterval,
		RetryBackoff: cfg.Stream.RetryBackoff,
	}, subscriptionSup, registry, hub, logger)

	srv := server.New(server.Config{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, executor, historical, subService, func() bool {
		return requestSup.IsOpen() || subscriptionSup.IsOpen()
	}, hub, logger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if err := srv.Run(ctx); err != nil {
		logger.Error("http server failed", "error", err)
		cancel()
		wg.Wait()
		os.Exit(1)
	}

	wg.Wait()
	logger.Info("shutdown complete")
}
