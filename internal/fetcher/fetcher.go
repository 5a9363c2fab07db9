package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// HTTPFetcher downloads source videos over HTTP(S)
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
}

// New creates a fetcher that gives up when a source takes longer than
// headerTimeout to answer. The body transfer itself is bounded only by the
// caller's context, so large sources are not cut off mid-download.
func New(headerTimeout time.Duration) *HTTPFetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = headerTimeout
	return NewWithClient(&http.Client{Transport: transport})
}

// NewWithClient creates a fetcher around an existing client
func NewWithClient(client *http.Client) *HTTPFetcher {
	return &HTTPFetcher{
		client:    client,
		userAgent: "video-compilation/1.0",
	}
}

// Fetch streams the body at url into destPath and returns the number of bytes written.
// A partially written file is removed on failure.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, destPath string) (n int64, err error) {
	start := time.Now()
	defer func() {
		status := "success"
		if err != nil {
			status = "error"
		}
		metrics.RecordFetch(status, time.Since(start).Seconds(), n)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, models.NewError(models.ErrorKindFetch, "download source", fmt.Errorf("invalid source url: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, models.NewError(models.ErrorKindFetch, "download source", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return 0, models.NewError(models.ErrorKindFetch, "download source",
			fmt.Errorf("Failed to download video: %d", resp.StatusCode))
	}

	file, err := os.Create(destPath)
	if err != nil {
		return 0, models.NewError(models.ErrorKindFetch, "download source", fmt.Errorf("failed to create %s: %w", destPath, err))
	}

	n, err = io.Copy(file, resp.Body)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(destPath)
		return n, models.NewError(models.ErrorKindFetch, "download source", fmt.Errorf("failed to write body: %w", err))
	}

	return n, nil
}
