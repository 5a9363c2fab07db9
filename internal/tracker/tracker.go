// Package tracker records the progress of compilation jobs for pollers.
//
// Entries expire a fixed retention after their last write regardless of
// status. Get returns nil for ids that were never created or have expired;
// callers decide how to present that.
package tracker

import (
	"context"
	"errors"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

// ErrJobExists is returned by Create when the id is already tracked
var ErrJobExists = errors.New("job already exists")

// ErrJobFinished is returned by Update when a completed or failed job would
// be moved back to processing
var ErrJobFinished = errors.New("job already finished")

// Tracker stores job snapshots
type Tracker interface {
	// Create registers a new job
	Create(ctx context.Context, state models.JobState) error
	// Update replaces the stored snapshot. Progress never moves backwards
	// and a finished job never returns to processing.
	Update(ctx context.Context, state models.JobState) error
	// Get returns the snapshot, or nil when the job is unknown
	Get(ctx context.Context, jobID string) (*models.JobState, error)
	// Delete forgets a job. Deleting an unknown id is not an error.
	Delete(ctx context.Context, jobID string) error
}

// merge applies the invariants every backend shares to an incoming snapshot
func merge(prev *models.JobState, next models.JobState) (models.JobState, error) {
	if prev != nil && prev.Status.IsTerminal() && !next.Status.IsTerminal() {
		return *prev, ErrJobFinished
	}
	if next.Progress < 0 {
		next.Progress = 0
	}
	if next.Progress > 100 {
		next.Progress = 100
	}
	if prev != nil && next.Progress < prev.Progress {
		next.Progress = prev.Progress
	}
	if prev != nil && next.VideoID == "" {
		next.VideoID = prev.VideoID
	}
	return next, nil
}
