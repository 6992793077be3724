package cli

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"quiz-session-engine/internal/config"
	"quiz-session-engine/internal/domain"
	"quiz-session-engine/internal/engine"
	"quiz-session-engine/internal/infra/memory"
	pgloader "quiz-session-engine/internal/infra/postgres"
	redisinfra "quiz-session-engine/internal/infra/redis"
	transport "quiz-session-engine/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz session engine server",
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
	log := newLogger(cfg)

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var loader memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
	if pool != nil {
		loader = pgloader.NewQuestionLoader(pool)
	}

	bankTTL := config.TTLDuration(cfg.Bank.TTL, 10*time.Minute)
	var bank engine.QuestionBank
	if redisClient != nil {
		bank = redisinfra.NewQuestionBank(redisClient, loader, bankTTL)
	} else {
		bank = memory.NewQuestionBank(loader, bankTTL)
	}

	var profiles engine.ProfileRepository
	if redisClient != nil {
		profileTTL := config.TTLDuration(cfg.Redis.ProfileTTL, 30*24*time.Hour)
		profiles = redisinfra.NewProfileStore(redisClient, profileTTL)
	} else {
		profiles = memory.NewProfileStore()
	}

	service := engine.NewService(memory.NewSessionStore(), bank, profiles, engine.Options{
		Scoring:  cfg.Engine.Scoring,
		Adaptive: cfg.Engine.Adaptive,
		Logger:   &log,
	})

	handler := transport.NewHandler(service, &log)
	wsHandler := transport.NewWSHandler(service, &log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Info().Str("port", finalPort).Msg("starting quiz session engine")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info().Msg("shutting down server")
	case <-ctx.Done():
		log.Info().Msg("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func newLogger(cfg config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || cfg.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if cfg.Log.Format == "pretty" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// sampleQuestions seeds the static loader when no Postgres is configured;
// enough content for local poking at every tier of one topic.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:           "arith-e1",
			Prompt:       "What is 2 + 2?",
			Options:      []string{"3", "4", "5"},
			Correct:      "4",
			Explanation:  "2 + 2 = 4.",
			TimeLimitSec: 30,
			Topic:        "arithmetic",
			Difficulty:   domain.TierEasy,
		},
		{
			ID:           "arith-e2",
			Prompt:       "What is 9 - 3?",
			Options:      []string{"5", "6", "7"},
			Correct:      "6",
			Explanation:  "9 - 3 = 6.",
			TimeLimitSec: 30,
			Topic:        "arithmetic",
			Difficulty:   domain.TierEasy,
		},
		{
			ID:           "arith-m1",
			Prompt:       "What is 12 × 12?",
			Options:      []string{"124", "144", "154"},
			Correct:      "144",
			Explanation:  "12 × 12 = 144.",
			TimeLimitSec: 30,
			Topic:        "arithmetic",
			Difficulty:   domain.TierMedium,
		},
		{
			ID:           "arith-m2",
			Prompt:       "What is 85 ÷ 5?",
			Options:      []string{"15", "16", "17"},
			Correct:      "17",
			Explanation:  "85 ÷ 5 = 17.",
			TimeLimitSec: 30,
			Topic:        "arithmetic",
			Difficulty:   domain.TierMedium,
		},
		{
			ID:           "arith-h1",
			Prompt:       "What is 17²?",
			Options:      []string{"279", "289", "299"},
			Correct:      "289",
			Explanation:  "17 × 17 = 289.",
			TimeLimitSec: 45,
			Topic:        "arithmetic",
			Difficulty:   domain.TierHard,
		},
		{
			ID:           "arith-h2",
			Prompt:       "What is 13 × 17?",
			Options:      []string{"211", "221", "231"},
			Correct:      "221",
			Explanation:  "13 × 17 = 221.",
			TimeLimitSec: 45,
			Topic:        "arithmetic",
			Difficulty:   domain.TierHard,
		},
	}
}
