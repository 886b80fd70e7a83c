// Package server exposes a log manager over HTTP: SSE and WebSocket streams,
// polling, clearing, health, stats, metrics and pprof.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atikulmunna/logrelay/internal/aggregator"
	"github.com/atikulmunna/logrelay/internal/manager"
	"github.com/atikulmunna/logrelay/internal/metrics"
)

// DefaultKeepAlive is the idle interval after which streams send a heartbeat.
const DefaultKeepAlive = 30 * time.Second

// ErrAlreadyMounted is returned when a second manager is mounted.
var ErrAlreadyMounted = errors.New("server already has a log manager mounted")

// Options configures a Server.
type Options struct {
	Addr       string
	Env        string
	KeepAlive  time.Duration
	Logger     *zap.Logger
	Aggregator *aggregator.Aggregator
	Metrics    *metrics.Metrics
	Gatherer   prometheus.Gatherer
}

// Server holds the Gin engine and the mounted log manager.
type Server struct {
	engine    *gin.Engine
	addr      string
	keepAlive time.Duration
	log       *zap.Logger
	agg       *aggregator.Aggregator
	started   time.Time

	mu  sync.RWMutex
	mgr *manager.Manager
}

// New creates a server with the health, metrics and pprof routes. Log routes
// are added when a manager is mounted.
func New(opts Options) *Server {
	if opts.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.KeepAlive <= 0 {
		opts.KeepAlive = DefaultKeepAlive
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	if opts.Metrics != nil {
		engine.Use(opts.Metrics.Middleware())
	}
	engine.Use(requestLogger(opts.Logger))

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:    engine,
		addr:      opts.Addr,
		keepAlive: opts.KeepAlive,
		log:       opts.Logger,
		agg:       opts.Aggregator,
		started:   time.Now(),
	}

	engine.GET("/healthz", s.handleHealth)

	if opts.Gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	// pprof profiling endpoints.
	engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))

	return s
}

// Mount implements manager.Host by registering the log routes for m.
func (s *Server) Mount(m *manager.Manager) error {
	if m == nil {
		return fmt.Errorf("mount: nil manager")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mgr != nil {
		return ErrAlreadyMounted
	}
	s.mgr = m

	logs := s.engine.Group("/logs")
	logs.GET("/stream/:name", s.handleStream)
	logs.GET("/ws/:name", s.handleWebSocket)
	logs.GET("/data", s.handlePoll)
	logs.DELETE("/data", s.handleClear)

	s.engine.GET("/api/stats", s.handleStats)
	return nil
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}
	s.log.Info("http server listening", zap.String("addr", s.addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) manager() *manager.Manager {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mgr
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	}
	if m := s.manager(); m != nil {
		st := m.Stats()
		body["loggers"] = st.Loggers
		body["subscribers"] = st.Subscribers
		body["dropped_logs"] = st.Dropped
	} else {
		body["status"] = "starting"
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) handleStats(c *gin.Context) {
	if s.agg != nil {
		c.JSON(http.StatusOK, s.agg.Snapshot())
		return
	}
	c.JSON(http.StatusOK, s.manager().Stats())
}

// errorResponse standardizes API errors.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "bad_request", Message: message})
}

func notFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, errorResponse{Error: "not_found", Message: resource + " not found"})
}

// requestLogger logs one line per request. Stream routes log when they end.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
