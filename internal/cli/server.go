package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"quiz-lobby-service/internal/app"
	"quiz-lobby-service/internal/config"
	"quiz-lobby-service/internal/domain"
	"quiz-lobby-service/internal/infra/memory"
	pgloader "quiz-lobby-service/internal/infra/postgres"
	redisinfra "quiz-lobby-service/internal/infra/redis"
	"quiz-lobby-service/internal/selector"
	transport "quiz-lobby-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/lmittmann/tint"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the lobby server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	logger := slog.New(tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

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

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	var pgPool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pgPool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.PoolLoader = memory.NewStaticPoolLoader(samplePools())
	if pgPool != nil {
		loader = pgloader.NewPoolLoader(pgPool)
	}

	poolTTL := config.TTLDuration(cfg.Quiz.PoolTTL, 10*time.Minute)
	var pools app.PoolRepository
	if redisClient != nil {
		pools = redisinfra.NewPoolCache(redisClient, loader, poolTTL)
	} else {
		pools = memory.NewPoolRepository(loader, poolTTL)
	}

	var registry app.RoomRepository
	if redisClient != nil {
		registry = redisinfra.NewRoomRegistry(redisClient, redisTTL)
	} else {
		registry = memory.NewRoomRegistry()
	}

	service := app.NewLobbyService(registry, pools, quizConfig(cfg), logger)
	wsHandler := transport.NewWSHandler(service, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: websocket connections outlive any sane value.
	}

	go func() {
		logger.Info("starting lobby server", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		logger.Info("shutting down server")
	case <-ctx.Done():
		logger.Info("context canceled, shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// quizConfig maps file settings onto the service config, falling back to
// the classic 20-question mix with a quarter of movie scenes.
func quizConfig(cfg config.Config) app.Config {
	out := app.Config{
		QuestionCount:   cfg.Quiz.QuestionCount,
		Pacing:          domain.PacingMode(cfg.Quiz.Pacing),
		QuestionTimeout: config.TTLDuration(cfg.Quiz.QuestionTimeout, 0),
	}
	if out.QuestionCount <= 0 {
		out.QuestionCount = 20
	}
	if out.Pacing == "" {
		out.Pacing = domain.PaceAllAtOnce
	}

	sceneRatio := cfg.Quiz.SceneRatio
	sceneMin := cfg.Quiz.SceneMinimum
	if sceneRatio == 0 && sceneMin == 0 {
		sceneRatio, sceneMin = 0.25, 3
	}
	weights := []selector.CategoryWeight{
		{Category: domain.CategoryScene, Ratio: sceneRatio, Minimum: sceneMin},
	}
	if cfg.Quiz.PersonRatio > 0 || cfg.Quiz.PersonMinimum > 0 {
		weights = append(weights, selector.CategoryWeight{
			Category: domain.CategoryPerson,
			Ratio:    cfg.Quiz.PersonRatio,
			Minimum:  cfg.Quiz.PersonMinimum,
		})
	}
	out.Selector = selector.Options{Weights: weights}

	if cfg.Quiz.MustIncludeMin > 0 && cfg.Quiz.MustIncludeContains != "" {
		needle := strings.ToLower(cfg.Quiz.MustIncludeContains)
		out.Selector.MustInclude = &selector.MustIncludeRule{
			Min: cfg.Quiz.MustIncludeMin,
			Matches: func(q domain.Question) bool {
				return strings.Contains(strings.ToLower(q.Text), needle)
			},
		}
	}
	if cfg.Quiz.SentinelText != "" {
		out.Selector.Sentinel = &selector.SentinelRule{
			Position: cfg.Quiz.SentinelPosition,
			Question: domain.Question{Text: cfg.Quiz.SentinelText, Answer: cfg.Quiz.SentinelAnswer},
		}
	}
	return out
}

// samplePools keeps the server usable without a database; swap in the
// Postgres loader by configuring postgres.url.
func samplePools() domain.QuestionPools {
	return domain.QuestionPools{
		domain.CategoryGeneral: {
			{Text: "What is the largest planet in the solar system?", Answer: "Jupiter"},
			{Text: "Which element has the symbol O?", Answer: "Oxygen"},
			{Text: "In which year did the Berlin Wall fall?", Answer: "1989"},
			{Text: "Who painted the Mona Lisa?", Answer: "Leonardo da Vinci"},
			{Text: "What is the capital of Australia?", Answer: "Canberra"},
			{Text: "How many strings does a standard violin have?", Answer: "4"},
		},
		domain.CategoryScene: {
			{Text: "Which film is this scene from?", Answer: "The Matrix", Image: "https://img.example/matrix.jpg"},
			{Text: "Which film is this scene from?", Answer: "Jaws", Image: "https://img.example/jaws.jpg"},
		},
	}
}
