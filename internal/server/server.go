// Package server exposes the suggestion and identification pipelines over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ppiankov/herbia/internal/logger"
	"github.com/ppiankov/herbia/internal/model"
)

// Suggester runs one suggestion request
type Suggester interface {
	Suggest(ctx context.Context, req model.SuggestRequest) (*model.SuggestResult, error)
}

// Identifier checks one photo against the expected species
type Identifier interface {
	Identify(ctx context.Context, req model.IdentifyRequest) (model.IdentificationResult, error)
	MaxUploadBytes() int64
}

// QuotaStatus reports the daily budget without consuming it
type QuotaStatus interface {
	Exhausted(ctx context.Context) (bool, error)
	Limit() int64
}

// Deps are the handlers' collaborators
type Deps struct {
	Suggester  Suggester
	Identifier Identifier
	Quota      QuotaStatus
	Version    string
}

// Server is the herbia HTTP API
type Server struct {
	engine *gin.Engine
	addr   string
	log    *logger.Logger
}

// New builds the gin engine and registers routes
func New(cfg model.ServerConfig, deps Deps, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With("component", "server")

	engine := gin.New()
	engine.Use(RequestID(), AccessLog(log), Recovery(log), CORS(cfg.AllowOrigins))

	h := &handlers{deps: deps, log: log}
	api := engine.Group("/api")
	{
		api.GET("/health", h.health)
		api.GET("/quota", h.quota)
		api.POST("/plants/suggest", h.suggest)
		api.POST("/plants/identify", h.identify)
	}

	return &Server{engine: engine, addr: cfg.Addr, log: log}
}

// Handler returns the http.Handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
