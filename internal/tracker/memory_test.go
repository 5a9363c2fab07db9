package tracker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemoryTracker(retention time.Duration) (*MemoryTracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	m := NewMemoryTracker(retention)
	m.now = clock.Now
	return m, clock
}

func processing(jobID string, progress int, message string) models.JobState {
	return models.JobState{
		JobID:    jobID,
		VideoID:  "vid-1",
		Status:   models.JobStatusProcessing,
		Message:  message,
		Progress: progress,
	}
}

func TestMemoryTracker_CreateAndGet(t *testing.T) {
	m, clock := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 0, "Job queued")))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
	assert.Equal(t, "Job queued", got.Message)
	assert.Equal(t, clock.Now(), got.UpdatedAt)

	assert.ErrorIs(t, m.Create(ctx, processing("job-1", 0, "again")), ErrJobExists)
}

func TestMemoryTracker_GetUnknown(t *testing.T) {
	m, _ := newTestMemoryTracker(time.Hour)

	got, err := m.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryTracker_UpdateOverwrites(t *testing.T) {
	m, _ := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 5, "Starting compilation")))
	require.NoError(t, m.Update(ctx, models.JobState{
		JobID:    "job-1",
		Status:   models.JobStatusCompleted,
		Message:  "Compilation complete",
		Progress: 100,
		VideoURL: "https://example.com/out.mp4",
	}))

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	assert.Equal(t, "https://example.com/out.mp4", got.VideoURL)
	assert.Equal(t, "vid-1", got.VideoID)
}

func TestMemoryTracker_FinishedJobStaysFinished(t *testing.T) {
	m, _ := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 90, "Uploading compilation")))
	require.NoError(t, m.Update(ctx, models.JobState{
		JobID:    "job-1",
		Status:   models.JobStatusCompleted,
		Message:  "Compilation complete",
		Progress: 100,
		VideoURL: "https://example.com/out.mp4",
	}))

	err := m.Update(ctx, processing("job-1", 50, "late writer"))
	assert.ErrorIs(t, err, ErrJobFinished)

	got, err := m.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, "https://example.com/out.mp4", got.VideoURL)
	assert.Equal(t, "Compilation complete", got.Message)
}

func TestMemoryTracker_ProgressNeverDecreases(t *testing.T) {
	m, _ := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 30, "Extracting clips")))
	require.NoError(t, m.Update(ctx, processing("job-1", 10, "late writer")))

	got, _ := m.Get(ctx, "job-1")
	assert.Equal(t, 30, got.Progress)
	assert.Equal(t, "late writer", got.Message)

	require.NoError(t, m.Update(ctx, processing("job-1", 250, "overflow")))
	got, _ = m.Get(ctx, "job-1")
	assert.Equal(t, 100, got.Progress)
}

func TestMemoryTracker_Expiry(t *testing.T) {
	m, clock := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 0, "Job queued")))

	// A write refreshes the deadline
	clock.Advance(50 * time.Minute)
	require.NoError(t, m.Update(ctx, processing("job-1", 90, "Uploading compilation")))

	clock.Advance(50 * time.Minute)
	got, _ := m.Get(ctx, "job-1")
	require.NotNil(t, got)

	clock.Advance(10 * time.Minute)
	got, _ = m.Get(ctx, "job-1")
	assert.Nil(t, got)

	// Expired ids can be reused
	assert.NoError(t, m.Create(ctx, processing("job-1", 0, "Job queued")))
}

func TestMemoryTracker_Sweep(t *testing.T) {
	m, clock := newTestMemoryTracker(time.Minute)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("old", 0, "")))
	clock.Advance(30 * time.Second)
	require.NoError(t, m.Create(ctx, processing("new", 0, "")))
	clock.Advance(45 * time.Second)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())

	got, _ := m.Get(ctx, "new")
	assert.NotNil(t, got)
}

func TestMemoryTracker_RunStopsOnCancel(t *testing.T) {
	m := NewMemoryTracker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		m.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestMemoryTracker_RunReportsTrackedJobs(t *testing.T) {
	m := NewMemoryTracker(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, id := range []string{"job-1", "job-2", "job-3"} {
		require.NoError(t, m.Create(ctx, processing(id, 0, "")))
	}

	go m.Run(ctx, 5*time.Millisecond)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(metrics.TrackedJobs) == 3
	}, time.Second, 5*time.Millisecond)
}

func TestMemoryTracker_ConcurrentUpdates(t *testing.T) {
	m := NewMemoryTracker(time.Hour)
	ctx := context.Background()
	require.NoError(t, m.Create(ctx, processing("job-1", 0, "")))

	var wg sync.WaitGroup
	for i := 1; i <= 100; i++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			_ = m.Update(ctx, processing("job-1", p, ""))
		}(i)
	}
	wg.Wait()

	got, _ := m.Get(ctx, "job-1")
	assert.Equal(t, 100, got.Progress)
}

func TestMemoryTracker_Delete(t *testing.T) {
	m, _ := newTestMemoryTracker(time.Hour)
	ctx := context.Background()

	require.NoError(t, m.Create(ctx, processing("job-1", 0, "")))
	require.NoError(t, m.Delete(ctx, "job-1"))
	require.NoError(t, m.Delete(ctx, "never-existed"))

	got, _ := m.Get(ctx, "job-1")
	assert.Nil(t, got)
}
