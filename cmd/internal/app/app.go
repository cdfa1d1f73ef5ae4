// Package app wires the Loop server runtime: config, logging, HTTP routes,
// the realtime gateway, and the domain services behind them.
package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"loop/cmd/internal/api"
	"loop/cmd/internal/invite"
	"loop/cmd/internal/realtime"
	"loop/cmd/internal/social"
	"loop/cmd/internal/story"
	"loop/cmd/internal/wallet"
	"loop/cmd/security/token"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is a small app-level lifecycle abstraction.
// It exists to allow DB-backed resources to be closed gracefully.
type Store interface {
	Close(ctx context.Context) error
}

// nopStore is used for in-memory store mode.
type nopStore struct{}

func (nopStore) Close(_ context.Context) error { return nil }

// stores groups the per-domain persistence backends the app wires up.
type stores struct {
	social  social.Store
	invites invite.Store
	wallets wallet.Store
	stories story.Store
}

// App is the Loop server runtime: it owns HTTP server wiring, the
// realtime gateway, and the story sweep schedule.
type App struct {
	cfg Config
	log Logger

	store Store

	dbPool    *pgxpool.Pool
	dbEnabled bool

	ws      *realtime.Gateway
	api     *api.Handler
	sweeper *story.Sweeper
}

// New constructs a fully wired App instance from config and logger.
func New(cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel)
	}

	if cfg.TokenSecret == "" {
		return nil, errors.New("app: LOOP_TOKEN_SECRET is required")
	}
	if cfg.QRSecret == "" {
		return nil, errors.New("app: LOOP_QR_SECRET is required")
	}

	verifier, err := token.NewVerifier([]byte(cfg.TokenSecret))
	if err != nil {
		return nil, err
	}

	st, dbPool, dbEnabled, backends, err := newStore(context.Background(), cfg, log)
	if err != nil {
		return nil, err
	}

	registry := realtime.NewRegistry(log)
	router := realtime.NewRouter(log, registry)

	presence, err := realtime.NewPresenceFanout(log, social.NewGraph(backends.social), router)
	if err != nil {
		return nil, err
	}

	chat, err := social.NewService(log, backends.social, router, presence)
	if err != nil {
		return nil, err
	}

	wallets := wallet.NewService(log, backends.wallets, backends.social, router)
	stories := story.NewService(log, backends.stories, backends.social, router)

	invites, err := invite.NewService(log, backends.invites, backends.social, chat, []byte(cfg.QRSecret))
	if err != nil {
		return nil, err
	}

	ws, err := realtime.NewGateway(log, registry, chat, verifier)
	if err != nil {
		return nil, err
	}

	apiHandler, err := api.NewHandler(log, verifier, chat, wallets, stories, invites)
	if err != nil {
		return nil, err
	}

	sweeper, err := story.NewSweeper(log, stories, cfg.StorySweepSpec)
	if err != nil {
		return nil, err
	}

	return &App{
		cfg:       cfg,
		log:       log,
		store:     st,
		dbPool:    dbPool,
		dbEnabled: dbEnabled,
		ws:        ws,
		api:       apiHandler,
		sweeper:   sweeper,
	}, nil
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	mux := http.NewServeMux()

	registerHTTP(mux, a.log, a.cfg, a.dbPool, a.dbEnabled, a.ws, a.api)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           WithRequestLogging(mux, a.log),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.sweeper.Start()

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
		a.sweeper.Stop()
		return err
	}

	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.log.Error("server.shutdown.fail", "err", err)
		return err
	}

	// Close store resources (pool etc).
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

// newStore decides between Postgres-backed persistence and in-memory dev stores.
func newStore(ctx context.Context, cfg Config, log Logger) (Store, *pgxpool.Pool, bool, stores, error) {
	if cfg.DatabaseURL == "" {
		log.Info("db.disabled.inmemory_store")
		return nopStore{}, nil, false, stores{
			social:  social.NewInMemoryStore(),
			invites: invite.NewInMemoryStore(),
			wallets: wallet.NewInMemoryStore(),
			stories: story.NewInMemoryStore(),
		}, nil
	}

	pool, err := NewDBPool(ctx, cfg)
	if err != nil {
		return nil, nil, false, stores{}, err
	}

	log.Info("db.enabled.postgres_store")

	// Ownership model:
	// - app owns pool lifecycle
	// - the per-domain PostgresStore.Close() are no-ops
	socialStore, err := social.NewPostgresStore(pool, social.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}
	inviteStore, err := invite.NewPostgresStore(pool, invite.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}
	walletStore, err := wallet.NewPostgresStore(pool, wallet.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}
	storyStore, err := story.NewPostgresStore(pool, story.WithSchema(cfg.DBSchema))
	if err != nil {
		pool.Close()
		return nil, nil, false, stores{}, err
	}

	backends := stores{
		social:  socialStore,
		invites: inviteStore,
		wallets: walletStore,
		stories: storyStore,
	}
	return dbStore{pool: pool, backends: backends}, pool, true, backends, nil
}

type dbStore struct {
	pool     *pgxpool.Pool
	backends stores
}

func (s dbStore) Close(_ context.Context) error {
	// The per-domain Close calls are no-ops today; the pool is owned here.
	if s.backends.social != nil {
		_ = s.backends.social.Close()
	}
	if s.backends.invites != nil {
		_ = s.backends.invites.Close()
	}
	if s.backends.wallets != nil {
		_ = s.backends.wallets.Close()
	}
	if s.backends.stories != nil {
		_ = s.backends.stories.Close()
	}
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
