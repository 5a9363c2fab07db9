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

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/compiler"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/fetcher"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/middleware"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/queue"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/storage"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracing"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracker"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/webhook"
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
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

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

	var pool *compiler.Pool
	switch cfg.Compiler.Dispatch {
	case "queue":
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		svc.SetDispatcher(q)
		go reportQueueDepth(ctx, q, logger)
		logger.Info("Dispatching compilations to RabbitMQ")
	default:
		pool = compiler.NewPool(cfg.Compiler.MaxConcurrent, cfg.Compiler.QueueSize, cfg.Compiler.JobTimeout, svc.Run, logger)
		pool.Start()
		svc.SetDispatcher(pool)
	}

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go limiter.Cleanup(ctx, 10*time.Minute, 30*time.Minute)
	}

	api := &API{
		compiler:      svc,
		tracker:       jobs,
		ffmpeg:        ffmpeg,
		storage:       stor,
		logger:        logger,
		reportUnknown: cfg.Tracker.ReportUnknown,
	}
	router := setupRouter(api, cfg, limiter)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.ErrorWithErr("Server forced to shutdown", err)
	}

	if pool != nil {
		logger.Infof("Draining compilation pool with %d queued job(s)", pool.Pending())
		if err := pool.Shutdown(shutdownCtx); err != nil {
			logger.ErrorWithErr("Compilation pool did not drain", err)
		}
	}

	cancel()
	logger.Info("Server stopped")
}

func reportQueueDepth(ctx context.Context, q *queue.Queue, logger *logging.Logger) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, err := q.Depth()
			if err != nil {
				logger.WithError(err).Debug("Failed to inspect queue depth")
				continue
			}
			metrics.SetQueueDepth(depth)
		}
	}
}
