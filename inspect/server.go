package inspect

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/acksell/stash/entity"
	"github.com/acksell/stash/examples/snippets"
	"github.com/acksell/stash/kv"
)

// ServerConfig configures the inspection server.
type ServerConfig struct {
	// Port is the HTTP port to listen on. Zero picks a free port.
	Port int
	// Host defaults to localhost.
	Host   string
	Logger *zap.Logger
}

// Server is the inspection HTTP server.
type Server struct {
	config     ServerConfig
	handler    http.Handler
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer creates a server over store. snips may be nil, in which case
// the snippet routes are not registered.
func NewServer(store kv.Store, snips *entity.Manager[snippets.Snippet], config ServerConfig) *Server {
	log := config.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if config.Host == "" {
		config.Host = "localhost"
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), loggingMiddleware(log), corsMiddleware())

	api := NewAPIHandler(store, snips)
	api.RegisterRoutes(router)

	return &Server{
		config:  config,
		handler: router,
		log:     log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is done, then shuts down gracefully. ready, if not
// nil, receives the bound address once the listener is open.
func (s *Server) Run(ctx context.Context, ready chan<- string) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", s.config.Host, s.config.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	s.httpServer = &http.Server{
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(ln)
	}()

	addr := ln.Addr().String()
	s.log.Info("inspect server listening", zap.String("addr", "http://"+addr))
	if ready != nil {
		ready <- addr
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down inspect server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// loggingMiddleware logs HTTP requests.
func loggingMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if c.Request.URL.Path == "/favicon.ico" {
			return
		}
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)))
	}
}

// corsMiddleware adds CORS headers for development.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusOK)
			return
		}
		c.Next()
	}
}
