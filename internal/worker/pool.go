// Package worker runs scrape targets on a bounded pool. Each worker owns one
// handler (and so one browser session) at a time; handlers are never shared
// between workers.
package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	errs "postscraper/pkg/errors"
	"postscraper/pkg/logger"
	"postscraper/pkg/models"
)

// ErrPoolClosed is returned by Submit once the pool is shutting down.
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Job is one target queued for processing.
type Job struct {
	Target models.Target
	// Seq is the target's position in the plan.
	Seq int
}

// Result reports the outcome of a job.
type Result struct {
	Job      Job
	WorkerID int
	Err      error
	Duration time.Duration
	// Requeued is set when the worker could not start a session for Job and
	// handed it back to the queue for another worker.
	Requeued bool
}

// Handler processes jobs for one worker.
type Handler interface {
	Handle(ctx context.Context, job Job) error
	Close() error
}

// Retirer is implemented by handlers that can wear out without failing,
// such as a session whose proxy was quarantined. A retired handler is closed
// and the worker builds a fresh one for its next job.
type Retirer interface {
	Retired() bool
}

// Factory builds the handler for a worker. It is called when the worker
// takes its first job and again after its handler retires.
type Factory func(ctx context.Context, workerID int) (Handler, error)

// Pool manages concurrent target workers
type Pool struct {
	numWorkers  int
	capacity    int
	resultQueue chan Result
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	factory     Factory
	logger      logger.Logger
	live        atomic.Int32
	stopOnce    sync.Once

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Job
	closed bool
	// busy counts workers holding a job; they may still hand it back.
	busy int
}

// NewPool creates a pool of numWorkers workers. Cancelling ctx stops workers
// at their next job boundary.
func NewPool(ctx context.Context, numWorkers int, factory Factory, log logger.Logger) *Pool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	ctx, cancel := context.WithCancel(ctx)

	p := &Pool{
		numWorkers:  numWorkers,
		capacity:    numWorkers * 2,
		resultQueue: make(chan Result, numWorkers),
		ctx:         ctx,
		cancel:      cancel,
		factory:     factory,
		logger:      log,
	}
	p.cond = sync.NewCond(&p.mu)
	context.AfterFunc(ctx, p.wake)
	return p
}

func (p *Pool) wake() {
	p.mu.Lock()
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Start starts all workers
func (p *Pool) Start() {
	p.logger.InfoWithFields("Starting worker pool", map[string]interface{}{
		"num_workers": p.numWorkers,
	})

	p.live.Store(int32(p.numWorkers))
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

// Stop closes the queue, waits for the workers and closes Results. Queued
// jobs are still processed unless the pool was aborted.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		p.logger.Debug("Stopping worker pool...")
		p.mu.Lock()
		p.closed = true
		p.cond.Broadcast()
		p.mu.Unlock()
		p.wg.Wait()
		close(p.resultQueue)
		p.cancel()
		p.logger.Debug("Worker pool stopped")
	})
}

// Abort cancels in-flight work. Workers finish their current step and exit.
func (p *Pool) Abort() {
	p.cancel()
}

// Submit queues a job. It blocks while the queue is full.
func (p *Pool) Submit(job Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) >= p.capacity && !p.closed && p.ctx.Err() == nil {
		p.cond.Wait()
	}
	if p.closed || p.ctx.Err() != nil {
		return ErrPoolClosed
	}
	p.queue = append(p.queue, job)
	p.cond.Broadcast()
	p.logger.DebugWithFields("Job submitted to queue", map[string]interface{}{
		"target": job.Target.ID,
	})
	return nil
}

// Results returns the result channel. It must be drained until closed.
func (p *Pool) Results() <-chan Result {
	return p.resultQueue
}

// Live returns the number of workers still accepting jobs.
func (p *Pool) Live() int {
	return int(p.live.Load())
}

// QueueSize returns the current number of jobs in the queue
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// take blocks until a job is available. Once the queue is closed a worker
// waits for busy peers, since one of them may hand its job back.
func (p *Pool) take() (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.ctx.Err() != nil {
			return Job{}, false
		}
		if len(p.queue) > 0 {
			job := p.queue[0]
			p.queue = p.queue[1:]
			p.busy++
			p.cond.Broadcast()
			return job, true
		}
		if p.closed && p.busy == 0 {
			return Job{}, false
		}
		p.cond.Wait()
	}
}

func (p *Pool) done() {
	p.mu.Lock()
	p.busy--
	p.cond.Broadcast()
	p.mu.Unlock()
}

// leave retires the calling worker. A job it could not start goes back to
// the front of the queue when another worker is still live; it reports
// whether that happened.
func (p *Pool) leave(unstarted *Job) bool {
	p.mu.Lock()
	requeued := false
	if unstarted != nil {
		p.busy--
		if p.live.Load() > 1 && p.ctx.Err() == nil {
			p.queue = append([]Job{*unstarted}, p.queue...)
			requeued = true
		}
	}
	left := p.live.Add(-1)
	p.cond.Broadcast()
	p.mu.Unlock()

	// the last worker out unblocks any pending Submit
	if left == 0 {
		p.cancel()
	}
	return requeued
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()
	log := p.logger.WithField("worker_id", id)
	log.Debug("Worker started")

	var handler Handler
	release := func() {
		if handler == nil {
			return
		}
		if err := handler.Close(); err != nil {
			log.WithError(err).Warn("Failed to close worker handler")
		}
		handler = nil
	}

	for {
		job, ok := p.take()
		if !ok {
			break
		}

		start := time.Now()
		if handler == nil {
			h, err := p.factory(p.ctx, id)
			if err != nil {
				requeued := p.leave(&job)
				log.WithError(err).ErrorWithFields("Worker could not start a session", map[string]interface{}{
					"target":   job.Target.ID,
					"requeued": requeued,
				})
				p.resultQueue <- Result{Job: job, WorkerID: id, Err: err, Duration: time.Since(start), Requeued: requeued}
				return
			}
			handler = h
		}

		err := handler.Handle(p.ctx, job)
		p.resultQueue <- Result{Job: job, WorkerID: id, Err: err, Duration: time.Since(start)}
		p.done()

		if errs.IsSessionLevel(err) {
			log.WithError(err).Warn("Session lost, worker stopping")
			release()
			p.leave(nil)
			return
		}
		if r, ok := handler.(Retirer); ok && r.Retired() {
			log.Info("Handler retired, starting a fresh one for the next job")
			release()
		}
	}

	release()
	p.leave(nil)
	log.Debug("Worker stopping")
}
