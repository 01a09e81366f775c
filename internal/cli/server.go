package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"weekly-trivia-service/internal/app"
	"weekly-trivia-service/internal/catalog"
	"weekly-trivia-service/internal/config"
	"weekly-trivia-service/internal/domain"
	"weekly-trivia-service/internal/infra/memory"
	pgstore "weekly-trivia-service/internal/infra/postgres"
	redisinfra "weekly-trivia-service/internal/infra/redis"
	"weekly-trivia-service/internal/pool"
	transport "weekly-trivia-service/internal/transport/http"
	"weekly-trivia-service/internal/trivia"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the weekly trivia server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	zl, err := zap.NewProduction()
	if err != nil {
		return err
	}
	defer func() { _ = zl.Sync() }()
	logger := zl.Sugar()

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	maxYear := cfg.Trivia.MaxYear
	if maxYear == 0 {
		maxYear = time.Now().UTC().Year()
	}
	minYear := cfg.Trivia.MinYear
	if minYear == 0 {
		minYear = domain.MinReleaseYear
	}

	catalogClient, err := catalog.NewHTTPClient(catalog.Options{
		BaseURL:        cfg.Catalog.BaseURL,
		APIKey:         cfg.Catalog.APIKey,
		RequestTimeout: config.TTLDuration(cfg.Catalog.RequestTimeout, 5*time.Second),
		MaxAttempts:    cfg.Catalog.MaxAttempts,
		RatePerSecond:  cfg.Catalog.RatePerSecond,
		MinYear:        minYear,
		MaxYear:        maxYear,
	}, logger)
	if err != nil {
		return err
	}

	triviaService := app.NewTriviaService(
		pool.NewBuilder(catalogClient, logger),
		trivia.NewBuilder(minYear, maxYear),
		cfg.Trivia.Tiers,
		logger,
	)

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	payloadTTL := config.TTLDuration(cfg.Trivia.PayloadTTL, 4*time.Hour)
	var payloads app.PayloadRepository
	if redisClient != nil {
		payloads = redisinfra.NewPayloadCache(redisClient, triviaService, payloadTTL)
	} else {
		payloads = memory.NewPayloadCache(triviaService, payloadTTL)
	}

	var attemptStore app.AttemptStore = memory.NewAttemptStore()
	if cfg.Postgres.URL != "" {
		pgPool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pgPool.Close()
		attemptStore = pgstore.NewAttemptStore(pgPool)
	}
	attemptService := app.NewAttemptService(attemptStore, logger)

	api := transport.NewAPI(payloads, triviaService, attemptService, logger)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      api.Router(cfg.Server.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		logger.Infow("starting weekly trivia service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorw("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server...")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
