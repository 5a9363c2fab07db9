package compiler

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/tracker"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/transcoder"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

type fakeFetcher struct {
	mu    sync.Mutex
	calls map[string]int
	order []string
	fail  map[string]error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{calls: map[string]int{}, fail: map[string]error{}}
}

func (f *fakeFetcher) Fetch(ctx context.Context, url, destPath string) (int64, error) {
	f.mu.Lock()
	f.calls[url]++
	f.order = append(f.order, url)
	err := f.fail[url]
	f.mu.Unlock()

	if err != nil {
		return 0, err
	}
	data := []byte("source:" + url)
	return int64(len(data)), os.WriteFile(destPath, data, 0644)
}

func (f *fakeFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.order)
}

type fakeEncoder struct {
	mu         sync.Mutex
	extracts   []transcoder.ClipOptions
	concats    []transcoder.ConcatenationOptions
	extractErr map[int]error
	concatErr  error
	// block makes ExtractClip wait for ctx to end
	block bool
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{extractErr: map[int]error{}}
}

func (e *fakeEncoder) ExtractClip(ctx context.Context, opts transcoder.ClipOptions) (int64, error) {
	e.mu.Lock()
	idx := len(e.extracts)
	e.extracts = append(e.extracts, opts)
	err := e.extractErr[idx]
	block := e.block
	e.mu.Unlock()

	if block {
		<-ctx.Done()
		return 0, models.NewError(models.ErrorKindExtract, "extract clip", ctx.Err())
	}
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(opts.InputPath); err != nil {
		return 0, models.NewError(models.ErrorKindExtract, "extract clip", err)
	}
	data := []byte(fmt.Sprintf("clip:%s:%.2f:%.2f", opts.InputPath, opts.Start, opts.Duration))
	return int64(len(data)), os.WriteFile(opts.OutputPath, data, 0644)
}

func (e *fakeEncoder) ConcatVideo(ctx context.Context, opts transcoder.ConcatenationOptions) (int64, error) {
	e.mu.Lock()
	e.concats = append(e.concats, opts)
	err := e.concatErr
	e.mu.Unlock()

	if err != nil {
		return 0, err
	}
	data := []byte("compiled")
	return int64(len(data)), os.WriteFile(opts.OutputPath, data, 0644)
}

func (e *fakeEncoder) ProbeDuration(ctx context.Context, path string) (float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	total := 0.0
	for _, c := range e.extracts {
		total += c.Duration
	}
	return total, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	if _, err := os.Stat(localPath); err != nil {
		return "", models.NewError(models.ErrorKindPublish, "upload", err)
	}
	p.mu.Lock()
	p.published = append(p.published, objectName)
	p.mu.Unlock()
	return "https://storage.test/compilations/" + objectName + "?X-Amz-Expires=3600", nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

// recordingTracker keeps every update in order
type recordingTracker struct {
	*tracker.MemoryTracker
	mu      sync.Mutex
	updates []models.JobState
}

func (r *recordingTracker) Update(ctx context.Context, state models.JobState) error {
	r.mu.Lock()
	r.updates = append(r.updates, state)
	r.mu.Unlock()
	return r.MemoryTracker.Update(ctx, state)
}

func (r *recordingTracker) progressSeq() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	seq := make([]int, 0, len(r.updates))
	for _, u := range r.updates {
		if u.Status == models.JobStatusProcessing {
			seq = append(seq, u.Progress)
		}
	}
	return seq
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []models.CompilationTask
	err   error
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, task models.CompilationTask) error {
	if d.err != nil {
		return d.err
	}
	d.mu.Lock()
	d.tasks = append(d.tasks, task)
	d.mu.Unlock()
	return nil
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Notify(ctx context.Context, callbackURL string, state models.JobState) error {
	args := m.Called(ctx, callbackURL, state)
	return args.Error(0)
}
