package task

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	merr "mosaic/internal/errors"
	"mosaic/internal/metrics"
	"mosaic/util"
)

// Func is a task body.  It must call h.Finish when its work, including
// any handed-off completion, is over.  If it panics the pool finishes
// the handle on its behalf.
type Func func(h *Handle)

type job struct {
	h  *Handle
	fn Func
}

// Pool runs tasks on a fixed number of goroutines fed by a bounded
// queue.  Submit never blocks: a full queue rejects the task.
type Pool struct {
	queue   chan job
	wg      sync.WaitGroup
	mu      sync.RWMutex // guards closed against concurrent Submit/Close
	closed  bool
	nextID  atomic.Uint64
	running atomic.Int64
	workers int

	logger  *util.Logger
	metrics *metrics.Collector
}

// NewPool starts workers goroutines with a queue of queueSize pending
// tasks.  workers <= 0 defaults to runtime.NumCPU(); queueSize < 0 is
// treated as 0 (hand-off only).
func NewPool(workers, queueSize int, logger *util.Logger, m *metrics.Collector) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = util.Discard()
	}
	p := &Pool{
		queue:   make(chan job, queueSize),
		workers: workers,
		logger:  logger,
		metrics: m,
	}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker(i)
	}
	return p
}

// Submit schedules fn and returns its handle.  On rejection the handle
// is invalid and the error is ErrPoolSaturated or ErrPoolClosed.
func (p *Pool) Submit(fn Func) (*Handle, error) {
	id := p.nextID.Add(1)

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		p.metrics.TaskRejected()
		return Invalid(id), merr.ErrPoolClosed
	}

	h := newHandle(id)
	select {
	case p.queue <- job{h: h, fn: fn}:
		p.metrics.TaskSubmitted()
		return h, nil
	default:
		p.metrics.TaskRejected()
		return Invalid(id), fmt.Errorf("task %d: %w", id, merr.ErrPoolSaturated)
	}
}

// Workers returns the number of pool goroutines.
func (p *Pool) Workers() int { return p.workers }

// Running returns the number of task bodies currently executing.
func (p *Pool) Running() int { return int(p.running.Load()) }

// Queued returns the number of tasks waiting for a goroutine.
func (p *Pool) Queued() int { return len(p.queue) }

// Close stops accepting tasks and waits for queued and running ones to
// return.  It is safe to call more than once.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(n int) {
	defer p.wg.Done()
	for j := range p.queue {
		p.run(n, j)
	}
}

// run executes one task body, recovering from panics so the worker
// goroutine survives.
func (p *Pool) run(n int, j job) {
	p.running.Add(1)
	defer p.running.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker %d: task %d panicked: %v", n, j.h.ID(), r)
			p.metrics.TaskPanicked()
			j.h.Finish()
		}
	}()
	j.fn(j.h)
}
