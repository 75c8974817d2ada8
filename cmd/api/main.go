package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amit-git-account/ai-video-ads/internal/api"
	"github.com/amit-git-account/ai-video-ads/internal/app"
	"github.com/amit-git-account/ai-video-ads/internal/config"
	"github.com/amit-git-account/ai-video-ads/internal/db"
	"github.com/amit-git-account/ai-video-ads/internal/logging"
	"github.com/amit-git-account/ai-video-ads/internal/queue"
	"github.com/amit-git-account/ai-video-ads/internal/storage"
	"github.com/amit-git-account/ai-video-ads/internal/worker"
	"github.com/rs/zerolog"
)

// jobStore is what both the API and the worker need from a backend.
type jobStore interface {
	api.JobStore
	worker.JobStore
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLogger := logging.New("production")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}

	logger := logging.New(cfg.AppEnv)
	logger.Info().Str("env", cfg.AppEnv).Msg("starting ai-video-ads")

	store, closeStore, err := openJobStore(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("job_store", cfg.JobStore).Msg("failed to open job store")
	}
	defer closeStore()

	handler := api.NewHandler(store, api.Defaults{
		Platform: cfg.DefaultPlatform,
		Tone:     cfg.DefaultTone,
	}, logger)
	router := api.NewRouter(handler, api.RouterConfig{
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	workerDone := make(chan struct{})

	if cfg.WorkerEnabled {
		w, err := buildWorker(workerCtx, cfg, store, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to build worker")
		}
		go func() {
			defer close(workerDone)
			w.Start(workerCtx)
		}()
	} else {
		close(workerDone)
		logger.Info().Msg("worker disabled")
	}

	go func() {
		logger.Info().Str("addr", server.Addr).Msg("API server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	// An in-flight job is cancelled and recorded as failed before we exit.
	workerCancel()
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn().Msg("worker did not stop before shutdown deadline")
	}

	logger.Info().Msg("server exited")
}

func openJobStore(cfg *config.Config, logger zerolog.Logger) (jobStore, func(), error) {
	switch cfg.JobStore {
	case config.StoreRedis:
		q, err := queue.New(cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info().Msg("connected to redis job store")
		return q, func() { q.Close() }, nil
	default:
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, nil, err
		}
		logger.Info().Msg("connected to postgres job store")
		return database, func() { database.Close() }, nil
	}
}

func openArtifactStore(cfg *config.Config, logger zerolog.Logger) (worker.ArtifactStore, error) {
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		logger.Info().Str("bucket", cfg.SupabaseStorageBucket).Msg("artifact storage: supabase")
		return storage.NewSupabase(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, logger), nil
	default:
		logger.Info().Str("endpoint", cfg.S3Endpoint).Str("bucket", cfg.S3Bucket).Msg("artifact storage: s3")
		return storage.NewS3(storage.S3Options{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			UseSSL:          cfg.S3UseSSL,
		}, logger)
	}
}

func buildWorker(ctx context.Context, cfg *config.Config, store worker.JobStore, logger zerolog.Logger) (*worker.Worker, error) {
	artifacts, err := openArtifactStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	p, err := app.BuildPipeline(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return worker.New(store, p, artifacts, worker.Options{
		PollInterval: cfg.PollInterval,
		ClaimTimeout: cfg.ClaimTimeout,
		JobTimeout:   cfg.JobTimeout,
		ResultURLTTL: cfg.ResultURLTTL,
	}, logger), nil
}
