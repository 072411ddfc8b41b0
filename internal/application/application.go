package application

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/eugenenazirov/signcfg/internal/api"
	"github.com/eugenenazirov/signcfg/internal/config"
	"github.com/eugenenazirov/signcfg/internal/storage"
)

// App encapsulates the serve-mode dependencies and HTTP server.
type App struct {
	storage storage.Storage
	service *Service
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
	errs    chan error
}

// New initializes the serve-mode application from the provided configuration.
// The signing configuration is resolved once up front; a failed resolution is
// recorded and reported by the API rather than aborting startup.
func New(cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := storage.NewMemoryStorage()
	service := NewService(cfg, store, logger)

	if _, err := service.Refresh(); err != nil {
		logger.Warn("initial signing resolution failed", zap.Error(err))
	}

	handler := api.NewHandler(store, service, api.WithOutputPrefix(cfg.OutputPrefix))
	router := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		service: service,
		handler: handler,
		router:  router,
		logger:  logger,
		server:  NewServer(cfg, router),
		errs:    make(chan error, 1),
	}, nil
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		// Signing details are for local build tooling only.
		addr = "127.0.0.1:" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start binds the listen address and serves in a goroutine. Bind failures are
// returned here; later serve failures are delivered on Err.
func (a *App) Start() error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.logger.Info("server listening", zap.String("addr", ln.Addr().String()))

	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("server error", zap.Error(err))
			a.errs <- err
		}
	}()
	return nil
}

// Err reports a failure of the running server.
func (a *App) Err() <-chan error {
	return a.errs
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Shutdown stops the server and releases the held keystore.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if shutdownErr := a.server.Shutdown(ctx); shutdownErr != nil {
		a.logger.Warn("graceful shutdown failed", zap.Error(shutdownErr))
		err = multierr.Append(shutdownErr, a.server.Close())
	}
	return multierr.Append(err, a.service.Close())
}
