package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/rkatarai/hayaoshi/internal/config"
	"github.com/rkatarai/hayaoshi/internal/db/repository"
	"github.com/rkatarai/hayaoshi/internal/logging"
	"github.com/rkatarai/hayaoshi/internal/match"
	"github.com/rkatarai/hayaoshi/internal/question"
	"github.com/rkatarai/hayaoshi/internal/server"
	"github.com/rkatarai/hayaoshi/internal/store"
	"github.com/rkatarai/hayaoshi/pkg/http/ws"
)

// Application aggregates shared infrastructure (store, optional DB, HTTP
// server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool // nil when no curated question DB is configured
	redis *redis.Client
	http  *http.Server
}

// New bootstraps config, logger, Redis, the optional Postgres pool and the
// HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Msg("starting application bootstrap")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	var pool *pgxpool.Pool
	var resolver *question.Resolver
	catalog := catalogClient(cfg.Catalog)
	if cfg.Postgres.Enabled() {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Postgres.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		questionRepo := repository.NewQuestionRepository(pool)
		resolver = question.NewResolver(questionRepo, catalog, logger)
	} else {
		logger.Info().Msg("no curated question database configured")
		resolver = question.NewResolver(nil, catalog, logger)
	}

	sessionStore := store.NewRedis(redisClient, logger, cfg.Session.TTL)
	matchSvc := match.NewService(sessionStore, logger)
	wsHub := ws.NewHub(logger)

	wsHandler := match.NewWSHandler(matchSvc, sessionStore, resolver, wsHub, logger)
	httpHandler := match.NewHTTPHandler(matchSvc, logger)

	apiServer := server.NewHTTPServer(cfg, logger, pool, redisClient, wsHandler.HandleWebSocket, httpHandler.HandleGetSession)

	return &Application{
		cfg:    cfg,
		logger: logger,
		pool:   pool,
		redis:  redisClient,
		http:   apiServer,
	}, nil
}

// catalogClient builds the remote catalog source, or nil when unconfigured.
func catalogClient(cfg config.Catalog) question.CatalogSource {
	if cfg.BaseURL == "" {
		return nil
	}
	return question.NewCatalogClient(cfg.BaseURL, &http.Client{Timeout: cfg.HTTPTimeout})
}

// Run starts the HTTP server and waits for termination signals.
func (a *Application) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	if a.pool != nil {
		a.pool.Close()
	}
	if err := a.redis.Close(); err != nil {
		a.logger.Error().Err(err).Msg("redis shutdown error")
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}
