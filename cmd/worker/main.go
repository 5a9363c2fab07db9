package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/compiler"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/fetcher"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/queue"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/storage"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracing"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracker"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/webhook"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	if cfg.Tracker.Backend != "redis" {
		logger.Fatalf("Worker requires tracker.backend=redis to share job state with the API")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tracerCloser, err := tracing.Init(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	jobs, trackerCloser, err := tracker.Open(ctx, cfg.Tracker, cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to initialize job tracker: %v", err)
	}
	defer trackerCloser.Close()

	stor, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	ffmpeg := transcoder.NewFFmpeg(cfg.Compiler.FFmpegPath, cfg.Compiler.FFprobePath, transcoder.EncodeProfile{
		VideoCodec: cfg.Compiler.VideoCodec,
		AudioCodec: cfg.Compiler.AudioCodec,
		Preset:     cfg.Compiler.Preset,
		CRF:        cfg.Compiler.CRF,
	})
	profile := ffmpeg.Profile()
	logger.WithFields(map[string]interface{}{
		"bucket":      stor.Bucket(),
		"video_codec": profile.VideoCodec,
		"audio_codec": profile.AudioCodec,
		"preset":      profile.Preset,
		"crf":         profile.CRF,
	}).Info("Compilation output configured")
	if err := ffmpeg.Available(ctx); err != nil {
		logger.Fatalf("ffmpeg is not available: %v", err)
	}

	svc := compiler.New(compiler.Deps{
		Fetcher:   fetcher.New(cfg.Compiler.FetchTimeout),
		Encoder:   ffmpeg,
		Publisher: stor,
		Tracker:   jobs,
		Notifier:  webhook.NewNotifier(cfg.Webhook.Secret, cfg.Webhook.Timeout),
		Logger:    logger,
	}, compiler.Options{
		TempDir:          cfg.Compiler.TempDir,
		FetchConcurrency: cfg.Compiler.FetchConcurrency,
	})

	metricsServer := metrics.NewServer(cfg.Metrics.Port)
	go func() {
		if err := metricsServer.Start(); err != nil {
			logger.ErrorWithErr("Metrics server failed", err)
		}
	}()

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Job handler
	jobHandler := func(ctx context.Context, task models.CompilationTask) error {
		jobCtx, jobCancel := context.WithTimeout(ctx, cfg.Compiler.JobTimeout)
		defer jobCancel()
		return svc.Run(jobCtx, task)
	}

	// Start consuming jobs
	logger.Infof("Worker started with %d slots, waiting for jobs...", cfg.Compiler.MaxConcurrent)
	if err := q.Consume(ctx, cfg.Compiler.MaxConcurrent, jobHandler); err != nil {
		logger.Fatalf("Failed to consume jobs: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Metrics server shutdown failed", err)
	}

	logger.Info("Worker stopped")
}
