package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/gokatarajesh/dsa-logbook/internal/auth/jwt"
	"github.com/gokatarajesh/dsa-logbook/internal/config"
	"github.com/gokatarajesh/dsa-logbook/internal/db/mongostore"
	"github.com/gokatarajesh/dsa-logbook/internal/db/repository"
	"github.com/gokatarajesh/dsa-logbook/internal/logging"
	"github.com/gokatarajesh/dsa-logbook/internal/question"
	"github.com/gokatarajesh/dsa-logbook/internal/question/title"
	"github.com/gokatarajesh/dsa-logbook/internal/server"
)

// Application aggregates shared infrastructure (store, cache, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	pool  *pgxpool.Pool
	mongo *mongo.Client
	redis *redis.Client
	http  *http.Server
}

// New bootstraps logger, the configured store, the optional title cache and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("store", cfg.StoreDriver).Msg("starting application bootstrap")

	a := &Application{cfg: cfg, logger: logger}

	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	pingers := map[string]server.Pinger{"store": store}

	var cache question.TitleCache
	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		cache = question.NewCache(a.redis, cfg.Redis.TitleTTL)
		pingers["redis"] = redisPinger{a.redis}
	} else {
		logger.Warn().Msg("REDIS_ADDR not set; title cache disabled")
	}

	var titles question.TitleLookup
	if cfg.Gemini.APIKey != "" {
		titles = title.NewGeminiClient(title.Config{
			BaseURL: cfg.Gemini.BaseURL,
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			Timeout: cfg.Gemini.HTTPTimeout,
		}, logger)
	} else {
		logger.Warn().Msg("GEMINI_API_KEY not set; title lookup will fail")
	}

	var tokens *jwt.Manager
	if cfg.Auth.JWTSecret != "" {
		tokens = jwt.NewManager(jwt.TokenConfig{
			Secret: []byte(cfg.Auth.JWTSecret),
			TTL:    cfg.Auth.TokenTTL,
			Issuer: cfg.Name,
		})
	} else {
		logger.Warn().Msg("AUTH_JWT_SECRET not set; write routes are open")
	}

	svc := question.NewService(store, titles, question.ServiceOptions{
		DefaultPageSize: cfg.Pagination.DefaultPageSize,
		MaxPageSize:     cfg.Pagination.MaxPageSize,
		Cache:           cache,
		Metrics:         question.NewMetrics(prometheus.DefaultRegisterer),
	}, logger)

	a.http = server.NewHTTPServer(cfg, logger, server.Deps{
		Questions: question.NewHTTPHandler(svc, logger),
		Tokens:    tokens,
		Pingers:   pingers,
	})
	return a, nil
}

func (a *Application) openStore(ctx context.Context) (question.Store, error) {
	switch a.cfg.StoreDriver {
	case config.DriverMongo:
		client, err := mongostore.Connect(ctx, a.cfg.Mongo.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		a.mongo = client
		store := mongostore.New(client, a.cfg.Mongo.Database)
		if err := store.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		return store, nil
	default:
		pool, err := pgxpool.New(ctx, a.cfg.Postgres.PoolConnString())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.pool = pool
		return repository.NewQuestionRepository(pool), nil
	}
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
		a.close(context.Background())
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}
	a.close(shutdownCtx)

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) close(ctx context.Context) {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.mongo != nil {
		if err := a.mongo.Disconnect(ctx); err != nil {
			a.logger.Error().Err(err).Msg("mongo shutdown error")
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error().Err(err).Msg("redis shutdown error")
		}
	}
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
