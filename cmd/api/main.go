package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"

	"stakeduel-backend/internal/config"
	"stakeduel-backend/internal/handlers"
	"stakeduel-backend/internal/middleware"
	"stakeduel-backend/internal/services"
	"stakeduel-backend/internal/storage"
	"stakeduel-backend/internal/storage/memory"
	"stakeduel-backend/internal/storage/postgres"
	redisstore "stakeduel-backend/internal/storage/redis"
	s3store "stakeduel-backend/internal/storage/s3"
	"stakeduel-backend/internal/storage/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redis, err := redisstore.NewStore(ctx, redisstore.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPass,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		if cfg.StoreDriver == "redis" {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		log.Printf("Redis unavailable, running without rate limits and event relay: %v", err)
		redis = nil
	} else {
		defer redis.Close()
	}

	store, err := openStore(ctx, cfg, redis)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StoreDriver, err)
	}
	if store != storage.Store(redis) {
		defer store.Close()
	}

	fees, err := cfg.FeeSchedule()
	if err != nil {
		log.Fatalf("Invalid fee schedule: %v", err)
	}

	hub := handlers.NewWebSocketHub()
	defer hub.Close()

	broadcasters := services.MultiBroadcaster{hub}
	var limiter middleware.RateLimiter
	if redis != nil {
		broadcasters = append(broadcasters, services.NewRedisPublisher(redis.Client(), redisstore.EventsChannel))
		limiter = redis
	}

	arena, err := services.NewArena(services.ArenaOptions{
		Clock:             clockwork.NewRealClock(),
		Store:             store,
		Broadcaster:       broadcasters,
		Fees:              fees,
		MatchDuration:     cfg.MatchDuration,
		WaitingTimeout:    cfg.WaitingTimeout,
		NoWinnerPolicy:    cfg.NoWinnerPolicy,
		SnapshotHistory:   cfg.SnapshotHistory,
		DeveloperContacts: cfg.DeveloperContacts,
	})
	if err != nil {
		log.Fatalf("Failed to build arena: %v", err)
	}

	if err := arena.Restore(ctx); err != nil {
		log.Fatalf("Failed to restore state: %v", err)
	}
	if err := arena.Start(cfg.SaveInterval, cfg.ReconcileInterval); err != nil {
		log.Fatalf("Failed to start background jobs: %v", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterOptions{
		Arena:          arena,
		JWT:            services.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer),
		Hub:            hub,
		RateLimiter:    limiter,
		RateLimit:      cfg.RateLimitPerMinute,
		CORSOrigins:    cfg.CORSOrigins,
		InitialBalance: cfg.InitialBalance,
	})

	server := &http.Server{
		Addr:    cfg.HTTPAddress(),
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on %s (store: %s)", cfg.HTTPAddress(), cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown: %v", err)
	}
	if err := arena.Shutdown(shutdownCtx); err != nil {
		log.Printf("Final snapshot failed: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config, redis *redisstore.Store) (storage.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return memory.New(), nil
	case "redis":
		return redis, nil
	case "postgres":
		return postgres.NewStore(ctx, cfg.DatabaseURL)
	case "s3":
		return s3store.NewStore(ctx, s3store.Options{
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Region:   cfg.S3Region,
			Endpoint: cfg.S3Endpoint,
		})
	default:
		return sqlite.Open(cfg.SQLitePath)
	}
}
