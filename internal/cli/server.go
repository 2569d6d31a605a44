package cli

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/app"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/config"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/domain"
	"github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/infra/memory"
	pgstore "github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/infra/postgres"
	redisstore "github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/infra/redis"
	transport "github.com/truongquangquoc2011/tracnghiemonline-platform-api-sub000/internal/transport/http"
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
	pinTTL := config.TTLDuration(cfg.Redis.PinTTL, 6*time.Hour)
	contentTTL := config.TTLDuration(cfg.Content.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pgstore.NewContentLoader(pool)
	}

	var content app.ContentRepository
	if redisClient != nil {
		content = redisstore.NewContentRepository(redisClient, loader, contentTTL)
	} else {
		content = memory.NewContentRepository(loader, contentTTL)
	}

	var registry app.LiveRegistry
	if redisClient != nil {
		registry = redisstore.NewRegistry(redisClient, pinTTL)
	} else {
		registry = memory.NewRegistry()
	}

	var recorder app.Recorder = memory.NewRecorder()
	if cfg.Postgres.URL != "" {
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
		bundb := bun.NewDB(sqldb, pgdialect.New())
		defer bundb.Close()
		recorder = pgstore.NewRecorder(bundb)
	}

	service := app.NewLobbyService(registry, content, recorder)
	wsHandler := transport.NewWSHandler(service)
	apiHandler := transport.NewAPIHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	apiHandler.Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting lobby service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleQuizzes provides a minimal question set for redis/postgres-less demo
// runs; production content comes from the quizzes table.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"quiz-1": {
			ID:    "quiz-1",
			Title: "Warm-up",
			Questions: []domain.Question{
				{
					ID:           "q1",
					Text:         "What is 2 + 2?",
					TimeLimitSec: 30,
					Multiplier:   1,
					Options: []domain.AnswerOption{
						{ID: "o1", Text: "3", Shape: "triangle", Order: 0},
						{ID: "o2", Text: "4", Shape: "diamond", Order: 1, Correct: true},
						{ID: "o3", Text: "5", Shape: "circle", Order: 2},
					},
				},
				{
					ID:           "q2",
					Text:         "Which planet is closest to the sun?",
					TimeLimitSec: 20,
					Multiplier:   2,
					Options: []domain.AnswerOption{
						{ID: "o4", Text: "Venus", Shape: "triangle", Order: 0},
						{ID: "o5", Text: "Mercury", Shape: "diamond", Order: 1, Correct: true},
						{ID: "o6", Text: "Mars", Shape: "circle", Order: 2},
					},
				},
			},
		},
	}
}
