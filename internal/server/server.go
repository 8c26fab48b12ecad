package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"blpbridge/internal/model"
	"blpbridge/internal/session"
)

// Config tunes the HTTP surface.
type Config struct {
	Host           string
	Port           int
	AllowedOrigins []string
}

// LatestFetcher serves reference-data snapshots.
type LatestFetcher interface {
	LatestData(ctx context.Context, securities, fields []string) (model.LatestResult, error)
}

// HistoricalFetcher serves historical series. In production this is the
// Redis-caching decorator around the request executor.
type HistoricalFetcher interface {
	HistoricalData(ctx context.Context, q model.HistoricalQuery) (model.HistoricalResult, error)
}

// Subscriber manages streaming subscriptions.
type Subscriber interface {
	Subscribe(ctx context.Context, security string, fields []string) error
	Unsubscribe(ctx context.Context, security string) error
	Count() int
}

// Server wires the REST handlers and the websocket hub onto one listener.
type Server struct {
	cfg        Config
	latest     LatestFetcher
	historical HistoricalFetcher
	subs       Subscriber
	sessionUp  func() bool
	hub        *Hub
	logger     *slog.Logger
	engine     *gin.Engine
}

// New assembles the server. sessionUp reports whether a provider session is
// live, for the status endpoint.
func New(cfg Config, latest LatestFetcher, historical HistoricalFetcher, subs Subscriber, sessionUp func() bool, hub *Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:        cfg,
		latest:     latest,
		historical: historical,
		subs:       subs,
		sessionUp:  sessionUp,
		hub:        hub,
		logger:     logger,
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), corsMiddleware(s.cfg.AllowedOrigins))

	r.GET("/latest", s.handleLatest)
	r.GET("/historical", s.handleHistorical)
	r.GET("/status", s.handleStatus)
	r.POST("/subscribe", s.handleSubscribe)
	r.POST("/unsubscribe", s.handleUnsubscribe)
	r.GET("/ws", s.hub.serveWS)
	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down draining in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}

func (s *Server) handleLatest(c *gin.Context) {
	securities := c.QueryArray("security")
	fields := c.QueryArray("field")
	if len(securities) == 0 || len(fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "at least one security and one field are required",
		})
		return
	}

	result, err := s.latest.LatestData(c.Request.Context(), securities, fields)
	if err != nil {
		s.fail(c, "latest", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleHistorical(c *gin.Context) {
	q := model.HistoricalQuery{
		Securities: c.QueryArray("security"),
		Fields:     c.QueryArray("field"),
		StartDate:  c.Query("startDate"),
		EndDate:    c.Query("endDate"),
	}
	if len(q.Securities) == 0 || len(q.Fields) == 0 || q.StartDate == "" || q.EndDate == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "security, field, startDate and endDate are required",
		})
		return
	}

	// The tag depends only on the query, so a revalidation for an unchanged
	// query is answered without touching the provider.
	etag := q.ETag()
	if c.GetHeader("If-None-Match") == etag {
		s.cacheHeaders(c, etag)
		c.Status(http.StatusNotModified)
		return
	}

	result, err := s.historical.HistoricalData(c.Request.Context(), q)
	if err != nil {
		// No caching headers here: a failure must not be cacheable.
		s.fail(c, "historical", err)
		return
	}
	s.cacheHeaders(c, etag)
	c.JSON(http.StatusOK, result)
}

func (s *Server) cacheHeaders(c *gin.Context, etag string) {
	c.Header("Cache-Control", "max-age=86400, must-revalidate")
	c.Header("ETag", etag)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, model.Status{
		Up:                s.sessionUp(),
		SubscriptionCount: s.subs.Count(),
	})
}

type subscribeRequest struct {
	Security string   `json:"security"`
	Fields   []string `json:"fields"`
}

func (s *Server) handleSubscribe(c *gin.Context) {
	var req subscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Security == "" || len(req.Fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "security and fields are required"})
		return
	}

	if err := s.subs.Subscribe(c.Request.Context(), req.Security, req.Fields); err != nil {
		s.fail(c, "subscribe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribed": req.Security})
}

type unsubscribeRequest struct {
	Security string `json:"security"`
}

func (s *Server) handleUnsubscribe(c *gin.Context) {
	var req unsubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Security == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "security is required"})
		return
	}

	if err := s.subs.Unsubscribe(c.Request.Context(), req.Security); err != nil {
		s.fail(c, "unsubscribe", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unsubscribed": req.Security})
}

// fail maps connection-class failures to 502 and everything else to 500.
func (s *Server) fail(c *gin.Context, op string, err error) {
	s.logger.Error("request failed",
		"op", op,
		"error", err)
	status := http.StatusInternalServerError
	if session.IsConnError(err) {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
