// The assistant serves the JobFinder retrieval-augmented chat: it indexes
// crawled job postings into pgvector and answers candidate questions over
// HTTP.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/jobfinder/assistant/config"
	"github.com/jobfinder/assistant/internal/chat"
	"github.com/jobfinder/assistant/internal/chunker"
	"github.com/jobfinder/assistant/internal/db"
	"github.com/jobfinder/assistant/internal/embeddings"
	"github.com/jobfinder/assistant/internal/indexer"
	"github.com/jobfinder/assistant/internal/ollama"
	"github.com/jobfinder/assistant/internal/retriever"
	"github.com/jobfinder/assistant/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; the environment wins over the file either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("[main] Config error: %v", err)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("[main] %v", err)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(cfg.Database.ConnectionString); err != nil {
		return err
	}

	database, err := db.New(ctx, cfg.Database.ConnectionString)
	if err != nil {
		return err
	}
	defer database.Close()
	log.Println("[main] Database connected")

	if err := database.EnsureVectorIndex(ctx, cfg.Indexing.IVFFlatLists); err != nil {
		return err
	}

	// Redis is optional: without it locking is in-process only and the
	// failed-chunk backlog is not persisted.
	var rdb *redis.Client
	if cfg.Redis.URL != "" {
		rdb, err = db.NewRedisClient(ctx, cfg.Redis.URL)
		if err != nil {
			log.Printf("[main] Redis unavailable, continuing without it: %v", err)
		} else {
			defer rdb.Close()
			log.Println("[main] Redis connected")
		}
	}

	generator := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.ChatModel)
	model, err := generator.ResolveModel(ctx)
	if err != nil {
		return err
	}
	log.Printf("[main] Chat model: %s", model)

	embedder := embeddings.NewTextEmbedder(cfg.Ollama.BaseURL, cfg.Embeddings.Model, cfg.Embeddings.Dimension)

	failed := indexer.NewFailedSet(rdb)
	ix := indexer.New(
		database,
		chunker.New(cfg.Indexing.ChunkMaxChars),
		embedder,
		database,
		database,
		indexer.NewLocker(rdb, cfg.Indexing.LockTTL),
		failed,
		cfg.Embeddings.MaxRetries,
	)

	scheduler := indexer.NewScheduler(ix, failed, cfg.Indexing.SweepInterval, cfg.Indexing.SweepWorkers)
	if err := scheduler.Start(ctx); err != nil {
		return err
	}
	defer scheduler.Stop()

	ret := retriever.New(database, embedder, retriever.Options{
		TopK:            cfg.Retrieval.TopK,
		LexicalWeight:   cfg.Retrieval.LexicalWeight,
		CurrentJobBoost: cfg.Retrieval.CurrentJobBoost,
		Timeout:         cfg.Retrieval.QueryTimeout,
	})

	chatSvc := chat.NewService(
		chat.NewSessionManager(database, cfg.Chat.IdleTimeout),
		ret,
		chat.NewContextBuilder(cfg.Chat.CharBudget, cfg.Chat.HistoryTurns),
		generator,
		cfg.Retrieval.TopK,
	)

	health := map[string]server.HealthChecker{
		"postgres": func(ctx context.Context) error { return database.Pool().Ping(ctx) },
	}
	if rdb != nil {
		health["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	srv := server.New(":"+cfg.Server.Port, server.NewChatHandler(chatSvc), server.NewJobsHandler(ix), health)

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[main] Listening on :%s", cfg.Server.Port)
		errCh <- srv.Listen()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("[main] Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
