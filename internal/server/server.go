package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/atikulmunna/logtally/internal/aggregator"
)

// Server serves the latest report over HTTP and pushes updates over WebSocket.
type Server struct {
	engine  *gin.Engine
	port    string
	started time.Time

	mu      sync.RWMutex
	report  *aggregator.Report
	updated time.Time
	runs    int
	clients map[*client]struct{}
}

// New creates the report server. mode is a gin mode ("release", "debug", "test").
func New(port, mode string) *Server {
	if mode == "" {
		mode = gin.ReleaseMode
	}
	gin.SetMode(mode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:  engine,
		port:    port,
		started: time.Now(),
		clients: make(map[*client]struct{}),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/healthz", s.handleHealth)

	api := s.engine.Group("/api")
	api.GET("/report", s.handleReport)
	api.GET("/report/:name", s.handleSection)

	s.engine.GET("/ws", s.handleWebSocket)

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Update replaces the served report and pushes it to every WebSocket client.
func (s *Server) Update(r *aggregator.Report) {
	s.mu.Lock()
	s.report = r
	s.updated = time.Now()
	s.runs++
	clients := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.push(r)
	}
}

// Report returns the report currently served, or nil before the first Update.
func (s *Server) Report() *aggregator.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	resp := gin.H{
		"status":  "ok",
		"uptime":  time.Since(s.started).Round(time.Second).String(),
		"runs":    s.runs,
		"clients": len(s.clients),
	}
	if !s.updated.IsZero() {
		resp["last_run"] = s.updated.UTC().Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleReport(c *gin.Context) {
	r := s.Report()
	if r == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report not ready"})
		return
	}
	c.JSON(http.StatusOK, r)
}

func (s *Server) handleSection(c *gin.Context) {
	r := s.Report()
	if r == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "report not ready"})
		return
	}

	name := c.Param("name")
	data, ok := r.Section(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown report", "name": name})
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "data": data})
}

// Start runs the server until ctx is cancelled, then shuts it down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("report server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.closeClients()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
