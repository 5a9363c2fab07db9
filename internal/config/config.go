package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Redis     RedisConfig
	Queue     QueueConfig
	Compiler  CompilerConfig
	Tracker   TrackerConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Webhook   WebhookConfig
	Tracing   TracingConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// CompilerConfig holds the pipeline settings
type CompilerConfig struct {
	// Dispatch is "local" (in-process pool) or "queue" (RabbitMQ + worker)
	Dispatch         string
	MaxConcurrent    int
	QueueSize        int
	FetchConcurrency int
	// FetchTimeout bounds the wait for a source's response headers, not the download
	FetchTimeout     time.Duration
	JobTimeout       time.Duration
	TempDir          string
	FFmpegPath       string
	FFprobePath      string
	VideoCodec       string
	AudioCodec       string
	Preset           string
	CRF              int
}

// TrackerConfig holds job tracker configuration
type TrackerConfig struct {
	// Backend is "memory" or "redis"
	Backend       string
	Retention     time.Duration
	SweepInterval time.Duration
	// ReportUnknown makes status polls for unknown ids return 404 instead of the placeholder
	ReportUnknown bool
}

// AuthConfig holds API authentication configuration
type AuthConfig struct {
	Enabled   bool
	JWTSecret string
}

// RateLimitConfig holds per-client rate limits for submissions
type RateLimitConfig struct {
	Enabled bool
	RPS     int
	Burst   int
}

// WebhookConfig holds completion callback settings
type WebhookConfig struct {
	Secret  string
	Timeout time.Duration
}

// TracingConfig holds Jaeger configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// LoggingConfig holds logger configuration
type LoggingConfig struct {
	Level  string
	Format string
	Output string
}

// MetricsConfig holds the standalone metrics server configuration
type MetricsConfig struct {
	Port int
}

// Load reads configuration from file and environment variables.
// A missing file is not an error; defaults and environment still apply.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("server.port", "SERVER_PORT", "PORT")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks combinations that cannot work together
func (c *Config) Validate() error {
	switch c.Compiler.Dispatch {
	case "local", "queue":
	default:
		return fmt.Errorf("invalid compiler.dispatch %q: want local or queue", c.Compiler.Dispatch)
	}

	switch c.Tracker.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("invalid tracker.backend %q: want memory or redis", c.Tracker.Backend)
	}

	if c.Compiler.Dispatch == "queue" && c.Tracker.Backend != "redis" {
		return fmt.Errorf("compiler.dispatch=queue requires tracker.backend=redis")
	}

	if c.Compiler.MaxConcurrent <= 0 {
		return fmt.Errorf("compiler.maxConcurrent must be positive")
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.enabled requires auth.jwtSecret")
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.shutdownTimeout", "10s")
	v.SetDefault("server.maxBodyBytes", 50*1024*1024) // 50MB

	// Storage defaults
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.accessKeyID", "minioadmin")
	v.SetDefault("storage.secretAccessKey", "minioadmin")
	v.SetDefault("storage.bucketName", "compilations")
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.useSSL", false)
	v.SetDefault("storage.urlExpiry", "1h")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Queue defaults
	v.SetDefault("queue.host", "localhost")
	v.SetDefault("queue.port", 5672)
	v.SetDefault("queue.user", "guest")
	v.SetDefault("queue.password", "guest")
	v.SetDefault("queue.vhost", "/")

	// Compiler defaults
	v.SetDefault("compiler.dispatch", "local")
	v.SetDefault("compiler.maxConcurrent", 2)
	v.SetDefault("compiler.queueSize", 32)
	v.SetDefault("compiler.fetchConcurrency", 2)
	v.SetDefault("compiler.fetchTimeout", "30s")
	v.SetDefault("compiler.jobTimeout", "10m")
	v.SetDefault("compiler.tempDir", os.TempDir())
	v.SetDefault("compiler.ffmpegPath", "ffmpeg")
	v.SetDefault("compiler.ffprobePath", "ffprobe")
	v.SetDefault("compiler.videoCodec", "libx264")
	v.SetDefault("compiler.audioCodec", "aac")
	v.SetDefault("compiler.preset", "ultrafast")
	v.SetDefault("compiler.crf", 23)

	// Tracker defaults
	v.SetDefault("tracker.backend", "memory")
	v.SetDefault("tracker.retention", "1h")
	v.SetDefault("tracker.sweepInterval", "1m")
	v.SetDefault("tracker.reportUnknown", false)

	// Auth defaults
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwtSecret", "")

	// Rate limit defaults
	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.rps", 5)
	v.SetDefault("rateLimit.burst", 10)

	// Webhook defaults
	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.timeout", "10s")

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.serviceName", "video-compilation")
	v.SetDefault("tracing.endpoint", "http://localhost:14268/api/traces")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	// Metrics defaults
	v.SetDefault("metrics.port", 9090)
}
