// Package compiler turns clip selections into a single published video.
//
// Submit validates a request and hands it to a Dispatcher; Run executes the
// fetch, extract, concat and publish stages for one job and records every
// phase in the tracker.
package compiler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracker"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// Fetcher downloads one source video to a local path
type Fetcher interface {
	Fetch(ctx context.Context, url, destPath string) (int64, error)
}

// Encoder cuts and joins clips
type Encoder interface {
	ExtractClip(ctx context.Context, opts transcoder.ClipOptions) (int64, error)
	ConcatVideo(ctx context.Context, opts transcoder.ConcatenationOptions) (int64, error)
	ProbeDuration(ctx context.Context, path string) (float64, error)
}

// Publisher uploads the final file and returns a signed URL for it
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// Notifier reports terminal job states to a caller-supplied URL
type Notifier interface {
	Notify(ctx context.Context, callbackURL string, state models.JobState) error
}

// Dispatcher schedules a task for execution
type Dispatcher interface {
	Dispatch(ctx context.Context, task models.CompilationTask) error
}

// Deps are the collaborators of a Service
type Deps struct {
	Fetcher   Fetcher
	Encoder   Encoder
	Publisher Publisher
	Tracker   tracker.Tracker
	Notifier  Notifier // optional
	Logger    *logging.Logger
}

// Options tune the pipeline
type Options struct {
	TempDir          string
	FetchConcurrency int
}

// Service orchestrates compilation jobs
type Service struct {
	fetcher    Fetcher
	encoder    Encoder
	publisher  Publisher
	tracker    tracker.Tracker
	notifier   Notifier
	dispatcher Dispatcher
	logger     *logging.Logger

	tempDir          string
	fetchConcurrency int
	now              func() time.Time
}

// New creates a compilation service. A dispatcher must be attached with
// SetDispatcher before Submit is called.
func New(deps Deps, opts Options) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.FetchConcurrency <= 0 {
		opts.FetchConcurrency = 1
	}

	return &Service{
		fetcher:          deps.Fetcher,
		encoder:          deps.Encoder,
		publisher:        deps.Publisher,
		tracker:          deps.Tracker,
		notifier:         deps.Notifier,
		logger:           logger,
		tempDir:          opts.TempDir,
		fetchConcurrency: opts.FetchConcurrency,
		now:              time.Now,
	}
}

// SetDispatcher attaches the transport used by Submit
func (s *Service) SetDispatcher(d Dispatcher) {
	s.dispatcher = d
}

// Submit validates req, registers a job and dispatches it. On any error no
// job is left behind in the tracker.
func (s *Service) Submit(ctx context.Context, req *models.CompilationRequest) (string, error) {
	if err := req.Validate(); err != nil {
		metrics.RecordJobSubmitted("invalid", len(req.Clips))
		return "", err
	}
	if s.dispatcher == nil {
		return "", fmt.Errorf("no dispatcher configured")
	}

	now := s.now()
	jobID := models.NewJobID(now)

	state := models.JobState{
		JobID:    jobID,
		VideoID:  req.VideoID,
		Status:   models.JobStatusProcessing,
		Message:  "Job queued",
		Progress: 0,
	}
	if err := s.tracker.Create(ctx, state); err != nil {
		metrics.RecordJobSubmitted("error", len(req.Clips))
		return "", fmt.Errorf("failed to create job: %w", err)
	}

	task := models.CompilationTask{
		JobID:      jobID,
		Request:    *req,
		EnqueuedAt: now,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		if delErr := s.tracker.Delete(context.WithoutCancel(ctx), jobID); delErr != nil {
			s.logger.WithJobID(jobID).WithError(delErr).Warn("Failed to remove undispatched job")
		}
		metrics.RecordJobSubmitted("rejected", len(req.Clips))
		return "", fmt.Errorf("failed to dispatch job: %w", err)
	}

	metrics.RecordJobSubmitted("accepted", len(req.Clips))
	s.logger.LogJobEvent(jobID, "submitted", string(models.JobStatusProcessing), map[string]interface{}{
		"video_id": req.VideoID,
		"clips":    len(req.Clips),
		"sources":  len(req.SourceURLs()),
	})
	return jobID, nil
}
