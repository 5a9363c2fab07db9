package tracker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

func setupRedisTracker(t *testing.T, retention time.Duration) (*RedisTracker, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}

	tr, err := NewRedisTracker(mr.Host(), mr.Server().Addr().Port, "", 0, retention)
	if err != nil {
		mr.Close()
		t.Fatalf("Failed to create tracker: %v", err)
	}

	t.Cleanup(func() {
		tr.Close()
		mr.Close()
	})
	return tr, mr
}

func TestRedisTracker_CreateAndGet(t *testing.T) {
	tr, mr := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, processing("job-1", 0, "Job queued")))
	assert.True(t, mr.Exists("compilation:job:job-1"))
	assert.Equal(t, time.Hour, mr.TTL("compilation:job:job-1"))

	got, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "vid-1", got.VideoID)
	assert.Equal(t, models.JobStatusProcessing, got.Status)

	assert.ErrorIs(t, tr.Create(ctx, processing("job-1", 0, "")), ErrJobExists)
}

func TestRedisTracker_GetUnknown(t *testing.T) {
	tr, _ := setupRedisTracker(t, time.Hour)

	got, err := tr.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisTracker_UpdateClampsProgress(t *testing.T) {
	tr, _ := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, processing("job-1", 30, "Extracting clips")))
	require.NoError(t, tr.Update(ctx, processing("job-1", 10, "stale")))

	got, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, 30, got.Progress)

	require.NoError(t, tr.Update(ctx, models.JobState{
		JobID:    "job-1",
		Status:   models.JobStatusFailed,
		Message:  "Compilation failed",
		Progress: 30,
		Error:    "Failed to download video: 404",
	}))

	got, err = tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "Failed to download video: 404", got.Error)
	assert.Empty(t, got.VideoURL)
}

func TestRedisTracker_FinishedJobStaysFinished(t *testing.T) {
	tr, _ := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, processing("job-1", 30, "Extracting clips")))
	require.NoError(t, tr.Update(ctx, models.JobState{
		JobID:    "job-1",
		Status:   models.JobStatusFailed,
		Message:  "Compilation failed",
		Progress: 30,
		Error:    "boom",
	}))

	err := tr.Update(ctx, processing("job-1", 40, "late writer"))
	assert.ErrorIs(t, err, ErrJobFinished)

	got, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Equal(t, "boom", got.Error)
}

func TestRedisTracker_UpdateUnknownCreates(t *testing.T) {
	tr, _ := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Update(ctx, processing("external", 42, "set by caller")))

	got, err := tr.Get(ctx, "external")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 42, got.Progress)
}

func TestRedisTracker_Expiry(t *testing.T) {
	tr, mr := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, processing("job-1", 0, "")))

	mr.FastForward(50 * time.Minute)
	require.NoError(t, tr.Update(ctx, processing("job-1", 90, "")))

	mr.FastForward(50 * time.Minute)
	got, err := tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.NotNil(t, got)

	mr.FastForward(11 * time.Minute)
	got, err = tr.Get(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisTracker_Delete(t *testing.T) {
	tr, mr := setupRedisTracker(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, tr.Create(ctx, processing("job-1", 0, "")))
	require.NoError(t, tr.Delete(ctx, "job-1"))
	assert.False(t, mr.Exists("compilation:job:job-1"))
	assert.NoError(t, tr.Delete(ctx, "job-1"))
}

func TestRedisTracker_CorruptValue(t *testing.T) {
	tr, mr := setupRedisTracker(t, time.Hour)

	require.NoError(t, mr.Set("compilation:job:bad", "not json"))

	_, err := tr.Get(context.Background(), "bad")
	assert.Error(t, err)
}

func TestNewRedisTracker_ConnectionFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	host, port := mr.Host(), mr.Server().Addr().Port
	mr.Close()

	_, err = NewRedisTracker(host, port, "", 0, time.Hour)
	assert.Error(t, err)
}

func TestTrackersSatisfyInterface(t *testing.T) {
	var _ Tracker = (*MemoryTracker)(nil)
	var _ Tracker = (*RedisTracker)(nil)
}
