package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dgallion1/doctriage/internal/config"
	"github.com/dgallion1/doctriage/internal/nlp"
)

var (
	// ErrQueueFull is returned by Submit when no queue slot is free.
	ErrQueueFull = errors.New("job queue is full")
	// ErrStopped is returned by Submit once Stop has been called.
	ErrStopped = errors.New("job pool is stopped")
)

const maxSweepInterval = 5 * time.Minute

// Orchestrator runs submitted triage jobs on a bounded worker pool.
type Orchestrator struct {
	store    *JobStore
	pending  chan *Job
	worker   *Worker
	log      *slog.Logger
	poolSize int
	sweep    time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	// mu guards stopped and the close of pending.
	mu      sync.Mutex
	stopped bool
}

// NewOrchestrator creates the pool. Call Start to begin processing.
func NewOrchestrator(cfg config.Config, sim nlp.Similarity, ex nlp.PhraseExtractor, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:   NewJobStore(cfg.JobTTL),
		pending: make(chan *Job, cfg.MaxQueueSize),
		worker: NewWorker(sim, ex, log, Options{
			Workers:      cfg.WorkerCount,
			SnippetChars: cfg.SnippetChars,
		}),
		log:      log,
		poolSize: max(1, cfg.JobWorkers),
		sweep:    sweepInterval(cfg.JobTTL),
	}
}

// sweepInterval checks for expired jobs at least twice per TTL.
func sweepInterval(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return maxSweepInterval
	}
	return max(time.Second, min(ttl/2, maxSweepInterval))
}

// Start launches the job workers and the expiry sweeper.
func (o *Orchestrator) Start(ctx context.Context) {
	ctx, o.cancel = context.WithCancel(ctx)

	for i := range o.poolSize {
		o.wg.Add(1)
		go o.runWorker(ctx, i)
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(o.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := o.store.Cleanup(); n > 0 {
					o.log.Debug("expired jobs removed", "count", n)
				}
			}
		}
	}()
	o.log.Info("job pool started", "workers", o.poolSize, "queue_size", cap(o.pending))
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.pending:
			if !ok {
				return
			}
			o.log.Debug("job picked up", "job_id", job.ID, "worker", id)
			o.worker.Process(ctx, job)
		}
	}
}

// Stop cancels running jobs and waits for the workers to exit. Later
// submissions fail with ErrStopped. It is safe to call more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.stopped {
		o.mu.Unlock()
		return
	}
	o.stopped = true
	close(o.pending)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// Submit registers job and queues it. A job rejected for lack of queue
// space, or because the pool is stopping, stays visible as failed.
func (o *Orchestrator) Submit(job *Job) error {
	o.store.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		job.SetStatus(StatusFailed, "shutting_down")
		return ErrStopped
	}
	select {
	case o.pending <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("%w (%d)", ErrQueueFull, cap(o.pending))
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.store.Get(id)
}

// QueueDepth returns the number of jobs waiting for a worker.
func (o *Orchestrator) QueueDepth() int {
	return len(o.pending)
}
