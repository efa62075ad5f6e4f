package app

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/wirechat-relay/internal/auth"
	"github.com/vovakirdan/wirechat-relay/internal/config"
	"github.com/vovakirdan/wirechat-relay/internal/core"
	applog "github.com/vovakirdan/wirechat-relay/internal/log"
	"github.com/vovakirdan/wirechat-relay/internal/store"
	"github.com/vovakirdan/wirechat-relay/internal/store/memory"
	"github.com/vovakirdan/wirechat-relay/internal/store/sqlite"
	transporthttp "github.com/vovakirdan/wirechat-relay/internal/transport/http"
)

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	store           store.MessageLog
	origins         *transporthttp.OriginPolicy
	reporter        *Reporter
	log             *zerolog.Logger
}

// New constructs the application with provided configuration.
func New(cfg config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	st, err := openStore(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}
	logger.Info().Str("driver", cfg.Store.Driver).Str("dsn", cfg.Store.DSN).Msg("message log initialized")

	if cfg.Identity.Secret == "" {
		logger.Warn().Msg("identity.secret is empty, identities will not survive a restart")
	}
	issuer, err := auth.NewIssuer(cfg.Identity.Secret, cfg.Identity.TTL)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init identity issuer: %w", err)
	}

	httpLog := applog.Component(logger, "http")
	hub := core.NewHub(st, applog.Component(logger, "hub"))
	origins := transporthttp.NewOriginPolicy(cfg.AllowedOrigins, httpLog)
	server := transporthttp.NewServer(hub, issuer, origins, cfg, httpLog)

	reporter, err := NewReporter(hub, cfg.StatsInterval, applog.Component(logger, "stats"))
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("init stats reporter: %w", err)
	}

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		store:           st,
		origins:         origins,
		reporter:        reporter,
		log:             logger,
	}, nil
}

func openStore(cfg config.StoreConfig) (store.MessageLog, error) {
	switch cfg.Driver {
	case store.DriverMemory:
		return memory.New(), nil
	case store.DriverSQLite:
		return sqlite.New(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %q", store.ErrUnknownDriver, cfg.Driver)
	}
}

// ApplyConfig hot-applies the settings that can change without a restart.
func (a *App) ApplyConfig(cfg config.Config) {
	a.origins.Update(cfg.AllowedOrigins)
	a.log.Info().Strs("allowed_origins", cfg.AllowedOrigins).Msg("origin policy updated")
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() stdhttp.Handler {
	return a.server.Handler
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	a.reporter.Start()

	go func() {
		a.log.Info().Str("addr", a.server.Addr).Msg("http server listening")
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		a.cleanup()
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		a.log.Info().Msg("shutting down http server")
		// answer parked polls and close sockets so Shutdown is not held up by them
		a.hub.Close()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			a.cleanup()
			return err
		}

		a.cleanup()
		return <-serverErr
	}
}

// cleanup stops background jobs and closes the message log.
func (a *App) cleanup() {
	a.reporter.Stop()
	a.hub.Close()
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close store")
		} else {
			a.log.Info().Msg("store closed")
		}
	}
}
