package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrWorkerPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs on a fixed set of worker goroutines. Used to
// keep health probe fan-outs from spawning one goroutine per registered node.
type WorkerPool struct {
	queue    chan func()
	draining atomic.Bool
	done     sync.WaitGroup
	shutdown sync.Once
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = workers
	}

	p := &WorkerPool{queue: make(chan func(), queueSize)}
	p.done.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.done.Done()
	for job := range p.queue {
		job()
	}
}

// Submit enqueues a job, blocking until there is queue room or ctx fires.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}
	if p.draining.Load() {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.queue <- job:
		return nil
	}
}

// Shutdown stops accepting jobs and blocks until every queued job has run and
// the workers have exited. Safe to call more than once; submitters must be
// quiesced first.
func (p *WorkerPool) Shutdown() {
	p.shutdown.Do(func() {
		p.draining.Store(true)
		close(p.queue)
	})
	p.done.Wait()
}
