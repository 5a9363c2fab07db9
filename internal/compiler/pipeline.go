package compiler

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"golang.org/x/sync/errgroup"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracing"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// Progress checkpoints reported to the tracker
const (
	progressStarted     = 5
	progressFetching    = 10
	progressExtracting  = 30
	progressConcatenate = 80
	progressUploading   = 90
	progressDone        = 100
)

const (
	manifestName = "concat.txt"
	outputName   = "compilation.mp4"
)

// Run executes one compilation job to a terminal state. The scratch
// directory is removed on every path. The returned error is the one
// recorded on the job.
func (s *Service) Run(ctx context.Context, task models.CompilationTask) error {
	req := task.Request
	log := s.logger.WithJobID(task.JobID).WithVideoID(req.VideoID)

	span, ctx := tracing.StartJobSpan(ctx, task.JobID, req.VideoID, len(req.Clips))
	defer tracing.FinishSpan(span)

	metrics.JobStarted()
	defer metrics.JobFinished()

	started := s.now()
	log.LogJobEvent(task.JobID, "started", string(models.JobStatusProcessing), map[string]interface{}{
		"clips":         len(req.Clips),
		"queued_for_ms": started.Sub(task.EnqueuedAt).Milliseconds(),
	})

	videoURL, err := s.compileSafe(ctx, task, log)

	final := models.JobState{
		JobID:   task.JobID,
		VideoID: req.VideoID,
	}
	if err != nil {
		tracing.LogError(span, err)
		final.Status = models.JobStatusFailed
		final.Message = "Compilation failed"
		final.Error = err.Error()
		metrics.RecordError("compiler", string(models.KindOf(err)))
	} else {
		final.Status = models.JobStatusCompleted
		final.Message = "Compilation complete"
		final.Progress = progressDone
		final.VideoURL = videoURL
	}

	// Terminal writes must land even when the job context expired
	bg := context.WithoutCancel(ctx)
	if uerr := s.tracker.Update(bg, final); uerr != nil {
		log.WithError(uerr).Error("Failed to record final job state")
	}

	duration := s.now().Sub(started)
	metrics.RecordJobCompleted(string(final.Status), duration.Seconds())
	log.LogJobEvent(task.JobID, "finished", string(final.Status), map[string]interface{}{
		"duration_ms": duration.Milliseconds(),
		"error":       final.Error,
	})

	if s.notifier != nil && req.CallbackURL != "" {
		if nerr := s.notifier.Notify(bg, req.CallbackURL, final); nerr != nil {
			log.WithError(nerr).Warn("Failed to deliver completion callback")
		}
	}

	return err
}

func (s *Service) compileSafe(ctx context.Context, task models.CompilationTask, log *logging.Logger) (videoURL string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = models.NewError(models.ErrorKindInternal, "compile", fmt.Errorf("panic: %v", r))
		}
	}()
	return s.compile(ctx, task, log)
}

func (s *Service) compile(ctx context.Context, task models.CompilationTask, log *logging.Logger) (string, error) {
	req := task.Request
	if err := req.Validate(); err != nil {
		return "", err
	}

	s.progress(ctx, task, progressStarted, "Starting compilation", log)

	workDir, err := os.MkdirTemp(s.tempDir, "compilation-*")
	if err != nil {
		return "", models.NewError(models.ErrorKindInternal, "create scratch dir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.WithError(err).WithField("dir", workDir).Warn("Failed to remove scratch dir")
		}
	}()

	sources := req.SourceURLs()
	s.progress(ctx, task, progressFetching, fmt.Sprintf("Downloading %d source video(s)", len(sources)), log)

	var localSources map[string]string
	err = s.stage(ctx, "fetch", log, func(ctx context.Context) error {
		var ferr error
		localSources, ferr = s.fetchSources(ctx, workDir, sources)
		return ferr
	})
	if err != nil {
		return "", err
	}

	s.progress(ctx, task, progressExtracting, "Extracting clips", log)

	clipPaths := make([]string, len(req.Clips))
	err = s.stage(ctx, "extract", log, func(ctx context.Context) error {
		for i, clip := range req.Clips {
			start, duration, err := clip.Range()
			if err != nil {
				return models.NewError(models.ErrorKindInvalidRequest, fmt.Sprintf("clip %d", i), err)
			}

			clipPaths[i] = filepath.Join(workDir, fmt.Sprintf("clip-%d.mp4", i))
			_, err = s.encoder.ExtractClip(ctx, transcoder.ClipOptions{
				InputPath:  localSources[clip.VideoURL],
				OutputPath: clipPaths[i],
				Start:      start,
				Duration:   duration,
			})
			if err != nil {
				log.WithField("clip", i).WithError(err).Error("Clip extraction failed")
				return err
			}

			progress := progressExtracting + (progressConcatenate-progressExtracting)*(i+1)/len(req.Clips)
			s.progress(ctx, task, progress, fmt.Sprintf("Extracted clip %d of %d", i+1, len(req.Clips)), log)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	s.progress(ctx, task, progressConcatenate, fmt.Sprintf("Concatenating %d clips", len(clipPaths)), log)

	outputPath := filepath.Join(workDir, outputName)
	err = s.stage(ctx, "concat", log, func(ctx context.Context) error {
		_, err := s.encoder.ConcatVideo(ctx, transcoder.ConcatenationOptions{
			InputPaths:   clipPaths,
			ManifestPath: filepath.Join(workDir, manifestName),
			OutputPath:   outputPath,
		})
		return err
	})
	if err != nil {
		return "", err
	}

	if d, perr := s.encoder.ProbeDuration(ctx, outputPath); perr != nil {
		log.WithError(perr).Warn("Failed to probe compilation duration")
	} else {
		tracing.SetTag(opentracing.SpanFromContext(ctx), "output.duration", d)
		log.WithField("duration_s", d).Debug("Compilation encoded")
	}

	s.progress(ctx, task, progressUploading, "Uploading compilation", log)

	var videoURL string
	err = s.stage(ctx, "publish", log, func(ctx context.Context) error {
		var perr error
		videoURL, perr = s.publisher.Publish(ctx, outputPath, req.OutputName(s.now()))
		return perr
	})
	if err != nil {
		return "", err
	}

	return videoURL, nil
}

// fetchSources downloads every distinct URL once and returns url -> local path
func (s *Service) fetchSources(ctx context.Context, workDir string, urls []string) (map[string]string, error) {
	paths := make(map[string]string, len(urls))
	for i, u := range urls {
		paths[u] = filepath.Join(workDir, fmt.Sprintf("source-%d%s", i, sourceExt(u)))
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetchConcurrency)

	for _, u := range urls {
		u, dest := u, paths[u]
		g.Go(func() error {
			_, err := s.fetcher.Fetch(gctx, u, dest)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// stage runs fn inside a tracing span and records its duration
func (s *Service) stage(ctx context.Context, name string, log *logging.Logger, fn func(context.Context) error) error {
	span, ctx := tracing.StartSpan(ctx, name)
	defer tracing.FinishSpan(span)

	start := time.Now()
	err := fn(ctx)
	duration := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
		tracing.LogError(span, err)
	}
	metrics.RecordStage(name, status, duration.Seconds())
	log.LogStage(name, duration, err)
	return err
}

// progress records a processing checkpoint. Tracker failures are logged and
// do not abort the job.
func (s *Service) progress(ctx context.Context, task models.CompilationTask, pct int, message string, log *logging.Logger) {
	err := s.tracker.Update(ctx, models.JobState{
		JobID:    task.JobID,
		VideoID:  task.Request.VideoID,
		Status:   models.JobStatusProcessing,
		Message:  message,
		Progress: pct,
	})
	if err != nil {
		log.WithError(err).WithField("progress", pct).Warn("Failed to update job progress")
	}
}

// sourceExt keeps a recognisable container extension from the URL path
func sourceExt(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ".mp4"
	}
	ext := strings.ToLower(path.Ext(u.Path))
	switch ext {
	case ".mp4", ".mov", ".mkv", ".webm", ".avi", ".ts", ".m4v", ".flv":
		return ext
	}
	return ".mp4"
}
