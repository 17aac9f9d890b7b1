package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"farmhand/internal/httpapi"
	"farmhand/internal/pkg/logger"
	"farmhand/internal/pkg/shutdown"
	"farmhand/internal/storage"
	"farmhand/internal/worker"
	"farmhand/internal/worker/util"
)

func main() {
	_ = godotenv.Load()

	log := logger.New(logger.Config{
		Level:       util.Env("LOG_LEVEL", "info"),
		Format:      util.Env("LOG_FORMAT", "json"),
		ServiceName: "farmhand-worker",
		AddSource:   util.BoolEnv("LOG_SOURCE", false),
	})

	log.Info("starting farmhand worker",
		"version", "0.1.0",
	)

	// Load configuration
	httpPort := util.Env("HTTP_PORT", "8090")
	dbURL := util.MustEnv("DATABASE_URL")
	redisAddr := util.MustEnv("REDIS_ADDR")
	storageRoot := util.Env("STORAGE_LOCAL_ROOT", "/data")
	appRoot := util.Env("APP_ROOT", "/opt/farmhand")
	queueName := util.Env("TASK_QUEUE_NAME", "farmhand:tasks")
	maxAttempts := util.IntEnv("TASK_MAX_ATTEMPTS", 3)

	ctx := context.Background()

	// Initialize shutdown manager
	shutdownMgr := shutdown.NewManager(log, 30*time.Second)

	// Connect to PostgreSQL
	log.Info("connecting to PostgreSQL")
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.LogFatal("failed to connect to PostgreSQL", err)
	}
	shutdownMgr.Register("postgres", func(ctx context.Context) error {
		pool.Close()
		return nil
	})

	if err := pool.Ping(ctx); err != nil {
		log.LogFatal("failed to ping PostgreSQL", err)
	}
	log.Info("PostgreSQL connected")

	// Connect to Redis
	log.Info("connecting to Redis")
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	shutdownMgr.Register("redis", func(ctx context.Context) error {
		return rdb.Close()
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.LogFatal("failed to ping Redis", err)
	}
	log.Info("Redis connected")

	// Initialize storage provider
	log.Info("initializing storage provider")
	sp, err := storage.NewProvider()
	if err != nil {
		log.LogFatal("failed to initialize storage provider", err)
	}
	log.Info("storage provider initialized", "provider", sp.Provider())

	// Health endpoint
	router := httpapi.NewRouter(httpapi.Deps{
		Pool: pool,
		RDB:  rdb,
		SP:   sp,
		Log:  log,
	})
	server := &http.Server{
		Addr:         "0.0.0.0:" + httpPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	shutdownMgr.Register("http-server", func(ctx context.Context) error {
		log.Info("shutting down HTTP server")
		return server.Shutdown(ctx)
	})

	go func() {
		log.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.LogFatal("HTTP server failed", err)
		}
	}()

	// Start the worker loop; cancel it first during shutdown so the
	// pool and redis client outlive in-flight tasks.
	runCtx, cancelRun := context.WithCancel(ctx)
	shutdownMgr.Register("worker-loop", func(ctx context.Context) error {
		cancelRun()
		return nil
	})

	go func() {
		err := worker.Run(runCtx, worker.Deps{
			Pool:        pool,
			RDB:         rdb,
			SP:          sp,
			QueueName:   queueName,
			StorageRoot: storageRoot,
			AppRoot:     appRoot,
			MaxAttempts: maxAttempts,
			Log:         log,
		})
		if err != nil && runCtx.Err() == nil {
			log.LogFatal("worker loop failed", err)
		}
	}()

	// Wait for shutdown signal
	shutdownMgr.Wait()
}
