package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/config"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// Storage publishes finished compilations to object storage
type Storage struct {
	client     *minio.Client
	bucketName string
	region     string
	urlExpiry  time.Duration
	logger     *logging.Logger

	mu          sync.Mutex
	bucketReady bool
}

// New creates a new storage client. The bucket is created on first publish.
func New(cfg config.StorageConfig, logger *logging.Logger) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
		region:     cfg.Region,
		urlExpiry:  expiry,
		logger:     logger,
	}, nil
}

// Bucket returns the bucket compilations are written to
func (s *Storage) Bucket() string {
	return s.bucketName
}

// EnsureBucket creates the bucket if it does not exist yet. New buckets carry no
// policy, so objects stay private. Losing a creation race to another publisher
// counts as success.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bucketReady {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, s.bucketName)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, s.bucketName, minio.MakeBucketOptions{
			Region: s.region,
		})
		if err != nil && !isBucketAlreadyCreated(err) {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	s.bucketReady = true
	return nil
}

func isBucketAlreadyCreated(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		return true
	}
	return false
}

// UploadFile uploads a file from local filesystem
func (s *Storage) UploadFile(ctx context.Context, objectName, filePath string) (int64, error) {
	start := time.Now()

	info, err := s.client.FPutObject(ctx, s.bucketName, objectName, filePath, minio.PutObjectOptions{
		ContentType: getContentType(filePath),
	})

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.RecordStorageOperation("upload", status, time.Since(start).Seconds(), info.Size)
	s.logger.LogStorageOperation("upload", s.bucketName, objectName, info.Size, time.Since(start), err)

	if err != nil {
		return 0, fmt.Errorf("failed to upload file: %w", err)
	}

	return info.Size, nil
}

// PresignedURL returns a read-only URL for exactly one object, valid for the configured expiry
func (s *Storage) PresignedURL(ctx context.Context, objectName string) (string, error) {
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(objectName)))

	u, err := s.client.PresignedGetObject(ctx, s.bucketName, objectName, s.urlExpiry, params)
	if err != nil {
		return "", fmt.Errorf("failed to generate URL: %w", err)
	}

	return u.String(), nil
}

// Publish uploads localPath as objectName and returns a signed download URL
func (s *Storage) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", models.NewError(models.ErrorKindPublish, "publish", err)
	}

	if err := s.EnsureBucket(ctx); err != nil {
		return "", models.NewError(models.ErrorKindPublish, "publish", err)
	}

	if _, err := s.UploadFile(ctx, objectName, localPath); err != nil {
		return "", models.NewError(models.ErrorKindPublish, "publish", err)
	}

	signed, err := s.PresignedURL(ctx, objectName)
	if err != nil {
		return "", models.NewError(models.ErrorKindPublish, "publish", err)
	}

	return signed, nil
}

// Ping checks that the storage endpoint answers
func (s *Storage) Ping(ctx context.Context) error {
	if _, err := s.client.BucketExists(ctx, s.bucketName); err != nil {
		return fmt.Errorf("storage unreachable: %w", err)
	}
	return nil
}

// getContentType returns the content type based on file extension
func getContentType(filePath string) string {
	ext := filepath.Ext(filePath)
	switch ext {
	case ".mp4":
		return "video/mp4"
	case ".mov":
		return "video/quicktime"
	case ".mkv":
		return "video/x-matroska"
	case ".webm":
		return "video/webm"
	default:
		return "application/octet-stream"
	}
}
