// Package app wires the gatekeep server runtime: config, logging, storage
// backends, the session manager, OAuth providers and HTTP routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"gatekeep/cmd/identity"
	authapi "gatekeep/cmd/internal/auth/api"
	"gatekeep/cmd/internal/auth/oauth"
	"gatekeep/cmd/internal/auth/session"
)

// App is the gatekeep server runtime.
type App struct {
	cfg Config
	log Logger

	backend  *backend
	sessions *session.Manager
	auth     *authapi.Handler
	registry *prometheus.Registry
}

// New constructs a fully wired App instance from config and logger.
func New(ctx context.Context, cfg Config, log Logger) (*App, error) {
	if log == nil {
		log = NewLogger(cfg.LogLevel, cfg.LogFormat)
	}

	sessCfg, err := session.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	authCfg, err := authapi.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}
	oauthCfg, err := oauth.LoadConfigFromEnv()
	if err != nil {
		return nil, err
	}

	be, err := newBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	mgr := session.NewManager(sessCfg, be.sessions, be.users,
		session.WithLogger(log),
		session.WithMetrics(session.NewMetrics(reg)),
	)

	providers, err := oauth.NewRegistryFromConfig(ctx, oauthCfg)
	if err != nil {
		be.Close()
		return nil, err
	}
	if len(providers.Names()) == 0 {
		log.Warn("oauth.providers.none", "hint", "set GATEKEEP_GITHUB_CLIENT_ID/SECRET or GATEKEEP_GOOGLE_CLIENT_ID/SECRET")
	}

	auth, err := authapi.NewHandler(log, authCfg, mgr, be.users, providers)
	if err != nil {
		be.Close()
		return nil, err
	}

	log.Info("app.ready",
		"users_backend", be.usersKind,
		"sessions_backend", be.sessionsKind,
		"providers", providers.Names(),
	)

	return &App{
		cfg:      cfg,
		log:      log,
		backend:  be,
		sessions: mgr,
		auth:     auth,
		registry: reg,
	}, nil
}

// Handler returns the fully wrapped HTTP handler.
func (a *App) Handler() http.Handler {
	mux := http.NewServeMux()
	registerHTTP(mux, a.log, a.cfg, a.backend.ready, a.auth, a.registry)

	var h http.Handler = mux
	h = WithCORS(h, a.cfg, a.log)
	h = WithSecurityHeaders(h)
	h = WithRequestLogging(h, a.log)
	h = WithRequestID(h)
	return h
}

// Run starts the HTTP server and blocks until context cancellation or fatal server error.
func (a *App) Run(ctx context.Context) error {
	defer a.backend.Close()

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: nonZeroDuration(a.cfg.ReadHeaderTimeout, 5*time.Second),
		ReadTimeout:       nonZeroDuration(a.cfg.ReadTimeout, 15*time.Second),
		WriteTimeout:      nonZeroDuration(a.cfg.WriteTimeout, 15*time.Second),
		IdleTimeout:       nonZeroDuration(a.cfg.IdleTimeout, 60*time.Second),
		MaxHeaderBytes:    nonZeroInt(a.cfg.MaxHeaderBytes, 1<<20),
	}

	a.log.Info("server.start", "addr", a.cfg.HTTPAddr)

	purgeCtx, stopPurge := context.WithCancel(ctx)
	defer stopPurge()
	if a.cfg.SessionPurgeInterval > 0 {
		go a.purgeLoop(purgeCtx, a.cfg.SessionPurgeInterval)
	}

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

	a.log.Info("server.stopped")
	return nil
}

// purgeLoop reclaims rows of sessions nobody presents again.
func (a *App) purgeLoop(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.sessions.PurgeExpired(ctx, time.Now().UTC()); err != nil && ctx.Err() == nil {
				a.log.Error("session.purge.fail", "err", err)
			}
		}
	}
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

// backend owns the storage resources chosen at startup.
type backend struct {
	users        identity.Store
	sessions     session.Store
	usersKind    string
	sessionsKind string

	// ready is nil for the in-memory backend.
	ready readinessCheck

	closers []func()
}

// Close releases backend resources in reverse order of acquisition.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

// newBackend picks Postgres, SQLite or in-memory storage, then optionally
// moves sessions to Redis.
func newBackend(ctx context.Context, cfg Config, log Logger) (*backend, error) {
	b := &backend{}

	switch {
	case cfg.DatabaseURL != "":
		pool, err := NewDBPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)

		if cfg.DBMigrate {
			if err := Migrate(ctx, pool, log); err != nil {
				b.Close()
				return nil, err
			}
		}

		users, err := identity.NewPostgresStore(pool)
		if err != nil {
			b.Close()
			return nil, err
		}
		sessions, err := session.NewPostgresStore(pool)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.users, b.sessions = users, sessions
		b.usersKind, b.sessionsKind = "postgres", "postgres"
		b.ready = func(ctx context.Context) error { return PingDB(ctx, pool, 2*time.Second) }

	case cfg.SQLitePath != "":
		db, err := OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("app: open sqlite: %w", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, func() { _ = sqlDB.Close() })

		users, err := identity.NewGormStore(db)
		if err != nil {
			b.Close()
			return nil, err
		}
		sessions, err := session.NewGormStore(db)
		if err != nil {
			b.Close()
			return nil, err
		}
		if err := users.Migrate(ctx); err != nil {
			b.Close()
			return nil, err
		}
		if err := sessions.Migrate(ctx); err != nil {
			b.Close()
			return nil, err
		}
		b.users, b.sessions = users, sessions
		b.usersKind, b.sessionsKind = "sqlite", "sqlite"
		b.ready = func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return sqlDB.PingContext(ctx)
		}

	default:
		log.Warn("db.disabled.inmemory_store")
		b.users, b.sessions = identity.NewMemoryStore(), session.NewMemoryStore()
		b.usersKind, b.sessionsKind = "memory", "memory"
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("app: parse GATEKEEP_REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		b.closers = append(b.closers, func() { _ = client.Close() })

		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			b.Close()
			return nil, fmt.Errorf("app: redis ping: %w", err)
		}

		b.sessions = session.NewRedisStore(client)
		b.sessionsKind = "redis"
		log.Info("session.store.redis")
	}

	return b, nil
}
