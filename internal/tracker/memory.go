package tracker

import (
	"context"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

type memoryEntry struct {
	state     models.JobState
	expiresAt time.Time
}

// MemoryTracker keeps jobs in process memory
type MemoryTracker struct {
	mu        sync.RWMutex
	jobs      map[string]memoryEntry
	retention time.Duration
	now       func() time.Time
}

// NewMemoryTracker creates a tracker that forgets jobs retention after their last write
func NewMemoryTracker(retention time.Duration) *MemoryTracker {
	return &MemoryTracker{
		jobs:      make(map[string]memoryEntry),
		retention: retention,
		now:       time.Now,
	}
}

// Create registers a new job
func (m *MemoryTracker) Create(ctx context.Context, state models.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if e, ok := m.jobs[state.JobID]; ok && now.Before(e.expiresAt) {
		return ErrJobExists
	}

	state, _ = merge(nil, state)
	state.UpdatedAt = now
	m.jobs[state.JobID] = memoryEntry{state: state, expiresAt: now.Add(m.retention)}
	return nil
}

// Update replaces the stored snapshot
func (m *MemoryTracker) Update(ctx context.Context, state models.JobState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var prev *models.JobState
	if e, ok := m.jobs[state.JobID]; ok && now.Before(e.expiresAt) {
		prev = &e.state
	}

	state, err := merge(prev, state)
	if err != nil {
		return err
	}
	state.UpdatedAt = now
	m.jobs[state.JobID] = memoryEntry{state: state, expiresAt: now.Add(m.retention)}
	return nil
}

// Get returns a copy of the snapshot, or nil when the job is unknown or expired
func (m *MemoryTracker) Get(ctx context.Context, jobID string) (*models.JobState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.jobs[jobID]
	if !ok || !m.now().Before(e.expiresAt) {
		return nil, nil
	}
	state := e.state
	return &state, nil
}

// Delete forgets a job
func (m *MemoryTracker) Delete(ctx context.Context, jobID string) error {
	m.mu.Lock()
	delete(m.jobs, jobID)
	m.mu.Unlock()
	return nil
}

// Len returns the number of stored entries, expired ones included until swept
func (m *MemoryTracker) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.jobs)
}

// Sweep drops expired entries and returns how many were removed
func (m *MemoryTracker) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	removed := 0
	for id, e := range m.jobs {
		if !now.Before(e.expiresAt) {
			delete(m.jobs, id)
			removed++
		}
	}
	return removed
}

// Run sweeps on every tick until ctx is done
func (m *MemoryTracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
			metrics.SetTrackedJobs(m.Len())
		}
	}
}
