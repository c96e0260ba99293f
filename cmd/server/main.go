package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"studylog-backend/internal/aggregation"
	"studylog-backend/internal/config"
	"studylog-backend/internal/database"
	"studylog-backend/internal/handlers"
	"studylog-backend/internal/middleware"
	"studylog-backend/internal/repository"
	"studylog-backend/internal/router"
	"studylog-backend/internal/services"
	"studylog-backend/internal/websocket"
	"studylog-backend/internal/worker"
)

func main() {
	log.Println("Starting StudyLog Backend...")

	cfg := config.Load()
	log.Println("✓ Environment variables loaded")

	pool, err := database.NewPostgresPool(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("✗ PostgreSQL connection failed: %v", err)
	}
	defer pool.Close()
	log.Println("✓ PostgreSQL connected")

	redisClients, err := database.NewRedisClients(cfg.RedisURL)
	if err != nil {
		log.Fatalf("✗ Redis connection failed: %v", err)
	}
	defer redisClients.Close()
	log.Println("✓ Redis connected")

	if err := database.RunMigrations(pool, "migrations"); err != nil {
		log.Fatalf("✗ Database migration failed: %v", err)
	}
	log.Println("✓ Database migrations applied")

	// ──── Repositories ────
	userRepo := repository.NewUserRepo(pool)
	subjectRepo := repository.NewSubjectRepo(pool)
	sessionRepo := repository.NewStudySessionRepo(pool)
	summaryRepo := repository.NewDailySummaryRepo(pool)
	jobRepo := repository.NewJobRepo(pool)

	// ──── Services ────
	jwtAuth := middleware.NewJWTAuth(cfg.JWTSecret)

	var chartCache *services.ChartCache
	if cfg.ChartCacheTTL > 0 {
		chartCache = services.NewChartCache(redisClients.Cache, time.Duration(cfg.ChartCacheTTL)*time.Second)
	}

	engine := aggregation.New(summaryRepo, cfg.Timezone)
	studyService := services.NewStudyService(sessionRepo, summaryRepo, subjectRepo, chartCache, cfg.Timezone)
	backfillService := services.NewBackfillService(sessionRepo, summaryRepo, chartCache, cfg.Timezone)
	chartService := services.NewChartService(engine, chartCache, cfg.Timezone)

	// ──── Handlers ────
	studyHandler := handlers.NewStudyHandler(studyService)
	subjectHandler := handlers.NewSubjectHandler(subjectRepo)
	reviewHandler := handlers.NewReviewHandler(chartService, cfg.Timezone)
	userHandler := handlers.NewUserHandler(userRepo)
	jobHandler := handlers.NewJobHandler(jobRepo, redisClients.Queue)

	// ──── Backfill Worker Pool ────
	workerPool := worker.NewPool(redisClients.Queue, backfillService, jobRepo, cfg.WorkerCount)
	workerPool.Start()
	log.Printf("✓ Worker pool started (%d goroutines)", cfg.WorkerCount)

	// ──── WebSocket Hub ────
	wsHub := websocket.NewHub(redisClients.PubSub, jwtAuth)
	log.Println("✓ WebSocket hub started")

	// ──── HTTP Server ────
	r := router.New(
		jwtAuth,
		studyHandler,
		subjectHandler,
		reviewHandler,
		userHandler,
		jobHandler,
		wsHub,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down...")
		workerPool.Stop()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("✓ StudyLog Backend ready on http://localhost:%s", cfg.Port)
	log.Printf("  API: http://localhost:%s/api/v1", cfg.Port)
	log.Printf("  WS:  ws://localhost:%s/api/v1/ws", cfg.Port)

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}
}
