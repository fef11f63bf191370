package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/mailroom/internal/api"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/progress"
	"github.com/ignite/mailroom/internal/repository/postgres"
	"github.com/ignite/mailroom/internal/service/subscriber"
	"github.com/ignite/mailroom/internal/service/tag"
)

// checkPortAvailable verifies that the target port is not already in use,
// so a stale process doesn't silently swallow traffic.
func checkPortAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("address %s is already in use: %v", addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("DATABASE_URL is required")
	}

	if err := checkPortAvailable(cfg.Server.Addr()); err != nil {
		log.Fatalf("Pre-flight check failed: %v", err)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	syncOpts := subscriber.SyncOptions{
		ChunkSize: cfg.Sync.ChunkSize,
		Workers:   cfg.Sync.Workers,
	}
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		defer redisClient.Close()
		syncOpts.Progress = progress.NewRedisReporter(redisClient)
		log.Printf("Sync progress reporting enabled via redis at %s", cfg.Redis.Addr)
	}

	subscriberSvc := subscriber.NewService(postgres.NewSubscriberRepo(db), syncOpts)
	tagSvc := tag.NewService(postgres.NewTagRepo(db))

	handlers := api.NewHandlers(subscriberSvc, tagSvc, cfg.Sync.TagMode)
	server := api.NewServer(cfg.Server, handlers)

	go func() {
		log.Printf("mailroom API listening on %s (chunk_size=%d workers=%d tag_mode=%s)",
			cfg.Server.Addr(), cfg.Sync.ChunkSize, cfg.Sync.Workers, cfg.Sync.TagMode)
		if err := server.ListenAndServe(); err != nil {
			log.Printf("server stopped: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
