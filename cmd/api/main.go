package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/HeraclesBass/tos-analyzer/internal/application"
	"github.com/HeraclesBass/tos-analyzer/internal/application/analyses"
	"github.com/HeraclesBass/tos-analyzer/internal/application/budget"
	"github.com/HeraclesBass/tos-analyzer/internal/application/engine"
	"github.com/HeraclesBass/tos-analyzer/internal/config"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analysis"
	"github.com/HeraclesBass/tos-analyzer/internal/domain/analytics"
	openaiClient "github.com/HeraclesBass/tos-analyzer/internal/infra/ai/openai"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/cache"
	mysqlRepo "github.com/HeraclesBass/tos-analyzer/internal/infra/db/mysql"
	postgresRepo "github.com/HeraclesBass/tos-analyzer/internal/infra/db/postgres"
	sqliteRepo "github.com/HeraclesBass/tos-analyzer/internal/infra/db/sqlite"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/httpserver"
	"github.com/HeraclesBass/tos-analyzer/internal/infra/kv"
	minioStore "github.com/HeraclesBass/tos-analyzer/internal/infra/storage"
	"github.com/HeraclesBass/tos-analyzer/internal/middleware"
)

func main() {
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.OpenAI.APIKey == "" {
		log.Fatal("openai api key is required (config or OPENAI_API_KEY)")
	}

	ctx := context.Background()

	db, repo, events, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("database connect error: %v", err)
	}
	defer db.Close()

	store := kv.NewMemory()
	defer store.Close()

	guard := budget.New(store, application.SystemClock{})
	if cfg.Limits.DailyTokenBudget > 0 {
		guard.DailyTokens = cfg.Limits.DailyTokenBudget
	}
	if cfg.Limits.WritePerMinute > 0 {
		guard.WriteLimit = cfg.Limits.WritePerMinute
	}
	if cfg.Limits.ReadPerMinute > 0 {
		guard.ReadLimit = cfg.Limits.ReadPerMinute
	}

	var archive analysis.DocumentArchive
	if cfg.Minio.Enabled {
		archive, err = minioStore.New(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
	}

	svc := &analyses.Service{
		Repo:      repo,
		Analytics: events,
		Cache:     cache.New(store),
		Guard:     guard,
		Engine:    engine.New(openaiClient.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.Model)),
		Archive:   archive,
		Clock:     application.SystemClock{},
	}

	mux := chi.NewRouter()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	mux.Use(middleware.LoggingMiddleware)
	mux.Use(middleware.MetricsMiddleware)

	mux.Get("/health", middleware.HealthHandler(map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: db},
		"kv":       &middleware.KVHealthChecker{Store: store},
	}))
	mux.Get("/health/ready", middleware.ReadinessHandler)
	mux.Get("/health/live", middleware.LivenessHandler)
	mux.Get("/metrics", middleware.MetricsHandler)

	mux.Mount("/", httpserver.NewRouter(svc, cfg.Server.Debug))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // chunked analyses hold the request open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server listening on %s (driver=%s)", addr, cfg.Database.Driver)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}

func openStore(ctx context.Context, cfg *config.Config) (*sql.DB, analysis.Repository, analytics.Repository, error) {
	switch cfg.Database.Driver {
	case "mysql":
		db, err := mysqlRepo.Connect(ctx, cfg.MySQLDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return db, mysqlRepo.NewAnalysisRepository(db), mysqlRepo.NewAnalyticsRepository(db), nil
	case "postgres":
		db, err := postgresRepo.Connect(ctx, cfg.PostgresDSN())
		if err != nil {
			return nil, nil, nil, err
		}
		return db, postgresRepo.NewAnalysisRepository(db), postgresRepo.NewAnalyticsRepository(db), nil
	case "sqlite":
		db, err := sqliteRepo.Connect(ctx, cfg.Database.Path)
		if err != nil {
			return nil, nil, nil, err
		}
		return db, sqliteRepo.NewAnalysisRepository(db), sqliteRepo.NewAnalyticsRepository(db), nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
}
