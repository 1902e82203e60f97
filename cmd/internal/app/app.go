// Package app wires the sarir auth server runtime: config, logging, the pgx
// pool, HTTP routes, and the session pruner.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"sarir/cmd/identity"
	authapi "sarir/cmd/internal/auth/api"
	"sarir/cmd/internal/auth/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// App is the server runtime. It owns the DB pool, the wired auth handler,
// and the background pruner's lifetime.
type App struct {
	cfg Config
	log Logger

	pool   *pgxpool.Pool
	auth   *authapi.Handler
	pruner *session.Pruner
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if err := ValidateSecurityConfig(cfg); err != nil {
		return nil, err
	}
	if cfg.DatabaseURL == "" {
		return nil, errors.New("SARIR_DATABASE_URL is required")
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		pool.Close()
		return nil, err
	}
	codec, err := session.NewHMACCodec(sessCfg)
	if err != nil {
		pool.Close()
		return nil, err
	}

	sessStore := session.NewPostgresStore(pool)
	sessSvc := session.NewService(sessCfg, sessStore, codec)

	ids, err := identity.NewPostgresStore(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}

	authCfg := authapi.LoadConfigFromEnv()
	auth := authapi.NewHandler(
		log,
		authCfg,
		ids,
		sessSvc,
		authapi.NewPostgresAuditLog(pool),
		authapi.NewMemoryThrottle(authCfg.LoginLimit, authCfg.LoginWindow),
	)

	return &App{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		auth:   auth,
		pruner: session.NewPruner(sessStore, sessCfg.PruneInterval, log),
	}, nil
}

// Run starts the pruner and the HTTP server, then blocks until context
// cancellation or a fatal server error.
func (a *App) Run(ctx context.Context) error {
	prunerCtx, stopPruner := context.WithCancel(ctx)
	defer stopPruner()
	go a.pruner.Run(prunerCtx)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.pool, a.auth)

	var handler http.Handler = mux
	handler = WithSecurityHeaders(handler)
	handler = WithCORS(handler, a.cfg, a.log)
	handler = WithRequestLogging(handler, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.log.Info("server.stop", "reason", "context_done")
	case err := <-errCh:
		a.log.Error("server.fail", "err", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	stopPruner()
	a.pool.Close()

	a.log.Info("server.stopped")
	return nil
}

func nonZeroDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func nonZeroInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
