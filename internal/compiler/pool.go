package compiler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/logging"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/internal/metrics"
	"github.com/therealutkarshpriyadarshi/highlight-compiler/pkg/models"
)

var (
	// ErrPoolSaturated is returned when the backlog is full
	ErrPoolSaturated = errors.New("compilation backlog is full")
	// ErrPoolClosed is returned after Shutdown
	ErrPoolClosed = errors.New("compilation pool is shut down")
)

// RunFunc executes one task
type RunFunc func(ctx context.Context, task models.CompilationTask) error

// Pool runs tasks in-process on a fixed number of workers
type Pool struct {
	run        RunFunc
	workers    int
	jobTimeout time.Duration
	tasks      chan models.CompilationTask
	logger     *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	started bool
	closed  bool
}

// NewPool creates a pool with workers goroutines and a backlog of queueSize tasks
func NewPool(workers, queueSize int, jobTimeout time.Duration, run RunFunc, logger *logging.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = logging.Nop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		run:        run,
		workers:    workers,
		jobTimeout: jobTimeout,
		tasks:      make(chan models.CompilationTask, queueSize),
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.closed {
		return
	}
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(fmt.Sprintf("worker-%d", i))
	}
	p.logger.Infof("Compilation pool started with %d workers", p.workers)
}

// Dispatch enqueues task without blocking
func (p *Pool) Dispatch(ctx context.Context, task models.CompilationTask) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		metrics.SetQueueDepth(len(p.tasks))
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Pending returns the number of tasks waiting for a worker
func (p *Pool) Pending() int {
	return len(p.tasks)
}

// Shutdown stops accepting tasks, cancels running jobs and waits for the
// workers to drain until ctx is done. Tasks still queued run with a
// cancelled context and so fail fast.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()

	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) worker(id string) {
	defer p.wg.Done()
	log := p.logger.WithWorkerID(id)

	for task := range p.tasks {
		metrics.SetQueueDepth(len(p.tasks))
		p.execute(log, task)
	}
}

func (p *Pool) execute(log *logging.Logger, task models.CompilationTask) {
	ctx, cancel := p.ctx, context.CancelFunc(func() {})
	if p.jobTimeout > 0 {
		ctx, cancel = context.WithTimeout(p.ctx, p.jobTimeout)
	}
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.WithJobID(task.JobID).Errorf("Compilation panicked: %v", r)
		}
	}()

	if err := p.run(ctx, task); err != nil {
		log.WithJobID(task.JobID).WithError(err).Debug("Compilation finished with error")
	}
}
