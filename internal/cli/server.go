package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"trivia-quiz-service/internal/app"
	"trivia-quiz-service/internal/config"
	"trivia-quiz-service/internal/infra/memory"
	"trivia-quiz-service/internal/infra/postgres"
	infraredis "trivia-quiz-service/internal/infra/redis"
	"trivia-quiz-service/internal/infra/sqlite"
	"trivia-quiz-service/internal/logger"
	transport "trivia-quiz-service/internal/transport/http"
	"trivia-quiz-service/internal/triviaapi"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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
	log, err := logger.New(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	d, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := d.engine
	router := transport.NewRouter(
		transport.NewWSHandler(engine, log.Named("ws")),
		transport.NewAPIHandler(engine, log.Named("api")),
		log.Named("http"),
	)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting quiz service", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("server failed", zap.Error(err))
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	// Hijacked websockets outlive server.Shutdown, so close their sessions
	// and let in-flight score writes finish before the stores close.
	if engineErr := engine.Shutdown(shutdownCtx); engineErr != nil {
		log.Warn("quiz engine did not drain", zap.Error(engineErr))
	}
	return err
}

type deps struct {
	engine *app.Engine
}

// buildDeps wires the question provider, caches and stores that cfg enables.
// Redis backs the question cache and session markers when configured,
// otherwise both stay in memory. Scores go to Postgres, then SQLite, then
// memory, whichever is configured first.
func buildDeps(ctx context.Context, cfg config.Config, log *zap.Logger) (deps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client := triviaapi.NewClient(
		&http.Client{Timeout: config.TTLDuration(cfg.Trivia.Timeout, 10*time.Second)},
		cfg.Trivia.BaseURL,
		log.Named("trivia"),
	)
	fetchTimeout := config.TTLDuration(cfg.Quiz.FetchTimeout, 15*time.Second)

	var (
		cache    app.QuestionCache
		sessions app.SessionRepository
	)
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = redisClient.Close() })
		ttl := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		cache = infraredis.NewQuestionCache(redisClient, client, ttl, fetchTimeout, log.Named("cache"))
		sessions = infraredis.NewSessionStore(redisClient, ttl, log.Named("sessions"))
	} else {
		cache = memory.NewQuestionCache(client, fetchTimeout, log.Named("cache"))
		sessions = memory.NewSessionStore()
	}

	var scores app.ScoreStore
	switch {
	case cfg.Postgres.URL != "":
		if err := runMigrations(ctx, cfg, log); err != nil {
			cleanup()
			return deps{}, nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return deps{}, nil, err
		}
		closers = append(closers, pool.Close)
		scores = postgres.NewScoreStore(pool)
		log.Info("scores stored in postgres")
	case cfg.SQLite.Path != "":
		store, err := sqlite.NewScoreStore(cfg.SQLite.Path)
		if err != nil {
			cleanup()
			return deps{}, nil, err
		}
		closers = append(closers, func() { _ = store.Close() })
		scores = store
		log.Info("scores stored in sqlite", zap.String("path", cfg.SQLite.Path))
	default:
		scores = memory.NewScoreStore()
		log.Warn("no score database configured, scores kept in memory")
	}

	engine := app.NewEngine(cache, scores, sessions, app.Options{
		QuestionSeconds: cfg.Quiz.QuestionSeconds,
		TickInterval:    config.TTLDuration(cfg.Quiz.TickInterval, app.DefaultTickInterval),
		PersistTimeout:  config.TTLDuration(cfg.Quiz.PersistTimeout, app.DefaultPersistTimeout),
		Logger:          log.Named("engine"),
	})
	return deps{engine: engine}, cleanup, nil
}
