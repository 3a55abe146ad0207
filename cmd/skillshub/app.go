package main

import (
	"context"
	"fmt"
	"time"

	"github.com/esat-hub/skills-hub/config"
	"github.com/esat-hub/skills-hub/internal/application/command"
	"github.com/esat-hub/skills-hub/internal/application/eventhandler"
	"github.com/esat-hub/skills-hub/internal/application/query"
	"github.com/esat-hub/skills-hub/internal/domain/progression"
	"github.com/esat-hub/skills-hub/internal/infrastructure/messaging"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/memory"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/postgres"
	"github.com/esat-hub/skills-hub/internal/infrastructure/persistence/redis"
	httpapi "github.com/esat-hub/skills-hub/internal/interface/http"
	"github.com/esat-hub/skills-hub/internal/interface/http/handlers"
	"github.com/esat-hub/skills-hub/pkg/circuitbreaker"
	"github.com/esat-hub/skills-hub/pkg/logger"
	"github.com/esat-hub/skills-hub/pkg/retry"
)

// app owns every long-lived resource of the server process.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	server *httpapi.Server

	closers []func()
}

// buildApp wires storage, cache, event bus, handlers and the HTTP server.
func buildApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, log: log}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	health := handlers.NewCompositeHealthChecker(cfg.App.Version)

	// ─────────────────────────────────────────────────────────────────────────
	// 1. STORAGE
	// ─────────────────────────────────────────────────────────────────────────

	var store progression.Store
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		log.Warn("using in-memory storage with demo data; nothing is persisted")
		store = memory.NewDemoStore()

	default:
		conn, err := connectPostgres(ctx, cfg, log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			log.Info("closing database connection")
			conn.Close()
		})

		if cfg.Database.AutoMigrate {
			applied, err := postgres.Migrate(ctx, conn)
			if err != nil {
				return nil, err
			}
			log.Info("database schema is up to date", logger.Int("applied", applied))
		}

		store = postgres.NewStore(conn)
		health.AddCheck("database", handlers.NewPingCheck(conn))
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. READ CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────

	var cache *redis.ProgressionCache
	if !cfg.Redis.Disabled {
		c, err := connectRedis(ctx, cfg, log)
		if err != nil {
			log.Warn("redis unavailable, caching disabled", logger.Err(err))
		} else {
			a.closers = append(a.closers, func() { _ = c.Close() })
			cache = redis.NewProgressionCache(c,
				redis.WithSummaryTTL(cfg.Redis.SummaryTTL),
				redis.WithQueueTTL(cfg.Redis.QueueTTL),
			)
			health.AddOptionalCheck("cache", handlers.NewPingCheck(c))
		}
	}

	// Interfaces stay nil unless a cache is really there.
	var summaryCache, queueCache progression.ReadCache
	if cache != nil {
		if cfg.Features.IsEnabled(config.FeatureCacheSummary, "") {
			summaryCache = cache
		}
		if cfg.Features.IsEnabled(config.FeatureCacheQueue, "") {
			queueCache = cache
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{
		AsyncMode:      cfg.Events.Async,
		WorkerPoolSize: cfg.Events.Workers,
		Logger:         log,
	})
	a.closers = append(a.closers, func() {
		log.Info("closing event bus")
		_ = bus.Close()
	})

	if cache != nil {
		invalidator := eventhandler.NewOnProgressionChangedHandler(cache, log, eventhandler.DefaultProgressionChangedConfig())
		if err := invalidator.Register(bus); err != nil {
			return nil, fmt.Errorf("register cache invalidation: %w", err)
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. HANDLERS AND HTTP
	// ─────────────────────────────────────────────────────────────────────────

	opts := []command.Option{command.WithLogger(log)}

	deps := httpapi.Dependencies{
		StartSkill:             command.NewStartSkillHandler(store.Catalog(), store, bus, opts...),
		UpdateSkillStatus:      command.NewUpdateSkillStatusHandler(store, bus, opts...),
		RemoveSkill:            command.NewRemoveSkillHandler(store, bus, opts...),
		RestartSkill:           command.NewRestartSkillHandler(store.Catalog(), store, bus, opts...),
		ApproveSkill:           command.NewApproveSkillHandler(store, bus, opts...),
		RejectSkill:            command.NewRejectSkillHandler(store, bus, opts...),
		GetSkillsSummary:       query.NewGetSkillsSummaryHandler(store.Records(), store.Users(), summaryCache, log),
		ListPendingValidations: query.NewListPendingValidationsHandler(store.Records(), queueCache, log),
		Features:               cfg.Features,
		Logger:                 log,
		HealthChecker:          health,
	}

	srvCfg := httpapi.DefaultConfig()
	srvCfg.Addr = cfg.HTTP.Addr
	srvCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	srvCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	srvCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	srvCfg.AllowedOrigins = cfg.HTTP.CORSOrigins
	srvCfg.Version = cfg.App.Version
	srvCfg.ExposeInternalErrors = cfg.IsDevelopment()
	if cfg.HTTP.APIKey != "" {
		srvCfg.APIKeys = []string{cfg.HTTP.APIKey}
	}

	a.server = httpapi.NewServer(srvCfg, deps)
	return a, nil
}

// run serves until ctx is cancelled or the listener fails, then shuts down.
func (a *app) run(ctx context.Context) error {
	errCh := a.server.StartAsync()

	a.log.Info("skills hub is running",
		logger.String("address", a.server.Address()),
		logger.String("storage", a.cfg.Storage.Driver),
	)

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
		return nil
	case <-ctx.Done():
		a.log.Info("received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.App.ShutdownTimeout)
	defer cancel()

	a.log.Info("starting graceful shutdown", logger.Duration("timeout", a.cfg.App.ShutdownTimeout))
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	a.log.Info("shutdown completed successfully")
	return nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// ══════════════════════════════════════════════════════════════════════════════
// BACKING SERVICES
// ══════════════════════════════════════════════════════════════════════════════

func connectPostgres(ctx context.Context, cfg *config.Config, log *logger.Logger) (*postgres.Connection, error) {
	pgCfg := postgres.DefaultConfig()
	pgCfg.URL = cfg.Database.URL
	pgCfg.MaxConns = int32(cfg.Database.MaxConns)
	pgCfg.MinConns = int32(cfg.Database.MinConns)
	pgCfg.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	pgCfg.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database")

	r := retry.StartupRetrier(cfg.Database.ConnectAttempts, func(attempt int, err error, delay time.Duration) {
		log.Warn("database not ready, retrying",
			logger.Int("attempt", attempt),
			logger.Duration("delay", delay),
			logger.Err(err),
		)
	})

	var conn *postgres.Connection
	err := r.Do(ctx, func(ctx context.Context) error {
		c, err := postgres.NewConnection(ctx, pgCfg)
		if err != nil {
			return err
		}
		conn = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	log.Info("database connection established")
	return conn, nil
}

func connectRedis(ctx context.Context, cfg *config.Config, log *logger.Logger) (*redis.Cache, error) {
	rc := redis.DefaultConfig()
	rc.Addr = cfg.Redis.Addr
	rc.Password = cfg.Redis.Password
	rc.DB = cfg.Redis.DB
	rc.PoolSize = cfg.Redis.PoolSize
	rc.MinIdleConns = cfg.Redis.MinIdleConns
	rc.DialTimeout = cfg.Redis.DialTimeout
	rc.ReadTimeout = cfg.Redis.ReadTimeout
	rc.WriteTimeout = cfg.Redis.WriteTimeout
	rc.KeyPrefix = cfg.Redis.KeyPrefix

	breaker := circuitbreaker.CacheBreaker(func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})

	log.Info("connecting to redis", logger.String("addr", rc.Addr))
	return redis.NewCache(ctx, rc, breaker)
}
