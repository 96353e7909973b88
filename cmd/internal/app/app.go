// Package app wires the shieldgate runtime: config, logging, the session
// store, the state machine, and the HTTP/WebSocket gateway.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"shieldgate/cmd/internal/authclient"
	"shieldgate/cmd/internal/callback"
	"shieldgate/cmd/internal/gateway"
	"shieldgate/cmd/internal/session"

	"github.com/jackc/pgx/v5/pgxpool"
)

// closer is a small app-level lifecycle abstraction for DB-backed resources.
type closer interface {
	Close(ctx context.Context) error
}

// nopCloser is used for in-memory store mode.
type nopCloser struct{}

func (nopCloser) Close(_ context.Context) error { return nil }

type poolCloser struct {
	pool *pgxpool.Pool
}

func (c poolCloser) Close(_ context.Context) error {
	if c.pool != nil {
		c.pool.Close()
	}
	return nil
}

// App is the shieldgate runtime: it owns the HTTP server wiring and the
// session controller dependencies.
type App struct {
	cfg Config
	log Logger

	store closer

	dbPool    *pgxpool.Pool
	dbEnabled bool

	gw *gateway.Handler
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	st, closeStore, dbPool, dbEnabled, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	exchanger := authclient.New(log, cfg.AuthBaseURL, cfg.AuthTimeout)
	machine := session.NewMachine(log, st, exchanger)
	interp := callback.New(log, st)
	events := gateway.NewBroadcaster(log, cfg.WSAllowedOrigins)
	gw := gateway.NewHandler(log, machine, interp, events, cfg.OAuthLoginURL)

	return &App{
		cfg:       cfg,
		log:       log,
		store:     closeStore,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		gw:        gw,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal
// server error. The persisted session (if any) is rehydrated before the
// listener opens, so the first request already sees the restored state.
func (a *App) Run(ctx context.Context) error {
	a.gw.Boot(ctx)

	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.gw)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "db_enabled", a.dbEnabled)

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

	if err := a.store.Close(shutdownCtx); err != nil {
		a.log.Error("store.close.fail", "err", err)
	}

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

// newStore decides between Postgres-backed persistence and the in-memory dev
// store. With Postgres the session schema is bootstrapped here, before the
// machine ever loads.
func newStore(ctx context.Context, cfg Config, log Logger) (session.Store, closer, *pgxpool.Pool, bool, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return session.NewMemoryStore(), nopCloser{}, nil, false, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, nil, false, err
	}

	st := session.NewPostgresStore(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, false, err
	}

	log.Info("db.enabled.postgres_store")
	return st, poolCloser{pool: pool}, pool, true, nil
}
