package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/mayeshco/ebay-scraper/internal/api"
	"github.com/mayeshco/ebay-scraper/internal/config"
	"github.com/mayeshco/ebay-scraper/internal/database"
	"github.com/mayeshco/ebay-scraper/internal/ebay"
	"github.com/mayeshco/ebay-scraper/internal/events"
	"github.com/mayeshco/ebay-scraper/internal/jobs"
	"github.com/mayeshco/ebay-scraper/internal/ratelimit"
	"github.com/mayeshco/ebay-scraper/internal/scrapfly"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	}))
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}
	if cfg.Scrapfly.Key == "" {
		logger.Error("SCRAPFLY_KEY is required for the api service")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Name,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	store := database.NewStore(db)
	if err := store.EnsureSchema(ctx); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	fetcher := scrapfly.New(scrapfly.Config{
		Key:         cfg.Scrapfly.Key,
		Country:     cfg.Scrapfly.Country,
		Lang:        cfg.Scrapfly.Lang,
		ASP:         cfg.Scrapfly.ASP,
		Concurrency: cfg.Scraper.ConcurrentLimit,
	}, logger,
		scrapfly.WithCache(scrapfly.NewPageCache(redisClient, cfg.Scraper.CacheTTL, logger)),
		scrapfly.WithRateLimiter(ratelimit.NewSimpleRateLimiter(cfg.Scraper.MinDelay, cfg.Scraper.MaxDelay)),
	)

	scraper := ebay.New(fetcher, logger)
	publisher := events.NewPublisher(redisClient, logger)
	jobManager := jobs.NewManager(db, store, scraper, publisher, logger)

	go jobManager.StartWorker(ctx)

	handlers := api.NewHandlers(scraper, jobManager, store, publisher, logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	handlers.Register(r)

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "error", err)
	}
}
