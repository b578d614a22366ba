package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gokatarajesh/wordrush/internal/auth/jwt"
	"github.com/gokatarajesh/wordrush/internal/config"
	"github.com/gokatarajesh/wordrush/internal/db/pg"
	"github.com/gokatarajesh/wordrush/internal/db/repository"
	"github.com/gokatarajesh/wordrush/internal/events"
	"github.com/gokatarajesh/wordrush/internal/idempotency"
	"github.com/gokatarajesh/wordrush/internal/leaderboard"
	"github.com/gokatarajesh/wordrush/internal/logging"
	"github.com/gokatarajesh/wordrush/internal/ranking"
	"github.com/gokatarajesh/wordrush/internal/round"
	"github.com/gokatarajesh/wordrush/internal/round/validation"
	"github.com/gokatarajesh/wordrush/internal/server"
	"github.com/gokatarajesh/wordrush/internal/submission"
	"github.com/gokatarajesh/wordrush/internal/telemetry"
	ws "github.com/gokatarajesh/wordrush/pkg/http/ws"
)

// Application aggregates shared infrastructure (DB, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	http  *http.Server

	bus         *events.Bus[events.LeaderboardChanged]
	publisher   *leaderboard.Publisher
	broadcaster *leaderboard.Broadcaster
	warmer      *leaderboard.CacheWarmer
}

// New bootstraps configs, logger, Postgres, Redis and HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	policy, err := cfg.Validation.Policy()
	if err != nil {
		return nil, err
	}
	periods, err := cfg.Leaderboard.ParsedPeriods()
	if err != nil {
		return nil, err
	}
	responsePeriod, err := round.ParsePeriod(cfg.Leaderboard.ResponsePeriod)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Ranking.Location()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store := pg.NewStore(pool)

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; using in-memory idempotency and no leaderboard cache")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.New(registry)

	tokens := jwt.NewManager(jwt.TokenConfig{
		Secret: []byte(cfg.Security.JWTSecret),
		Issuer: cfg.Security.JWTIssuer,
	})

	roundRepo := repository.NewPGRoundRepository(store)
	boardRepo := repository.NewLeaderboardRepository(store)

	ranker := ranking.NewCalculator(boardRepo, ranking.Options{
		Location:     loc,
		QueryTimeout: cfg.Ranking.QueryTimeout,
	}, metrics, logger)

	var (
		claims   idempotency.Store = idempotency.NewMemoryStore()
		universe redis.UniversalClient
	)
	if redisClient != nil {
		claims = idempotency.NewRedisStore(redisClient, "")
		universe = redisClient
	}
	gate := idempotency.NewGate(claims, idempotency.Options{
		TTL:   cfg.Idempotency.TTL,
		Wait:  cfg.Idempotency.Wait,
		Lease: cfg.Idempotency.Lease,
	}, logger)

	cache := leaderboard.NewCache(universe, cfg.Leaderboard.CacheTTL, "")
	boardSvc := leaderboard.NewService(boardRepo, cache, ranker.Key, leaderboard.ServiceOptions{TopN: cfg.Leaderboard.TopN}, logger)

	bus := events.NewBus[events.LeaderboardChanged](256, metrics.EventsDropped.Inc, logger)
	updater := leaderboard.NewUpdater(boardSvc, boardRepo, ranker, bus, metrics, leaderboard.UpdaterOptions{
		Periods:        periods,
		ResponsePeriod: responsePeriod,
		Attempts:       cfg.Leaderboard.UpdateAttempts,
	}, logger)

	hub := ws.NewHub(logger)
	broadcaster := leaderboard.NewBroadcaster(universe, hub, "", logger)
	publisher := leaderboard.NewPublisher(boardSvc, cache, broadcaster, leaderboard.PublisherOptions{}, logger)
	warmer := leaderboard.NewCacheWarmer(boardSvc, periods, cfg.Leaderboard.WarmInterval, logger)

	submitSvc := submission.NewService(gate, validation.New(policy), roundRepo, updater, metrics, logger)

	pings := map[string]server.PingFunc{"postgres": store.Ping}
	if redisClient != nil {
		pings["redis"] = func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }
	}

	apiServer := server.NewHTTPServer(cfg, logger, server.Deps{
		Verifier: tokens,
		Gatherer: registry,
		Pings:    pings,
	},
		submission.NewHandler(submitSvc, cfg.IsDevelopment(), logger),
		leaderboard.NewHTTPHandler(boardSvc, hub, tokens, ws.NewUpgrader(cfg.CORS.AllowedOrigins), logger),
	)

	return &Application{
		cfg:         cfg,
		logger:      logger,
		pool:        pool,
		redis:       redisClient,
		http:        apiServer,
		bus:         bus,
		publisher:   publisher,
		broadcaster: broadcaster,
		warmer:      warmer,
	}, nil
}

// Run starts the HTTP server and background workers and blocks until a
// termination signal, a worker failure or ctx cancellation.
func (a *Application) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	sub := a.bus.Subscribe("leaderboard_publisher")
	g.Go(func() error { return ignoreCanceled(a.publisher.Run(gctx, sub)) })
	g.Go(func() error { return ignoreCanceled(a.broadcaster.Run(gctx)) })
	g.Go(func() error { return ignoreCanceled(a.warmer.Run(gctx)) })

	g.Go(func() error {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.GracefulShutdownTimeout)
		defer cancel()
		if err := a.http.Shutdown(shutdownCtx); err != nil {
			a.logger.Error().Err(err).Msg("http shutdown error")
		}
		a.bus.Close()
		return nil
	})

	err := g.Wait()

	a.pool.Close()
	if a.redis != nil {
		if cerr := a.redis.Close(); cerr != nil {
			a.logger.Error().Err(cerr).Msg("redis shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
