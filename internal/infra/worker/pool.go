// Package worker runs the generation worker: a polling loop that claims
// queue items under a concurrency bound, the pool manager that supervises
// fleet health, and the configuration/metrics/health plumbing around them.
package worker

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"infinite-feed/internal/domain/entity"
	"infinite-feed/internal/repository"
)

// TaskProcessor executes one claimed queue item. The processor owns the
// complete/fail bookkeeping; the pool only provides scheduling, timeout, and
// concurrency bounds.
type TaskProcessor interface {
	Process(ctx context.Context, item *entity.QueueItem) error
}

// Pool is a single worker process's polling loop. Multiple pools on
// different hosts coordinate exclusively through the queue store's atomic
// claim; a pool holds no cross-process state.
type Pool struct {
	workerID   string
	hostname   string
	pid        int
	queueRepo  repository.QueueRepository
	workerRepo repository.WorkerRepository
	processor  TaskProcessor
	metrics    *WorkerMetrics
	config     WorkerConfig

	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewPool creates a worker pool with a fresh worker identity.
func NewPool(
	queueRepo repository.QueueRepository,
	workerRepo repository.WorkerRepository,
	processor TaskProcessor,
	metrics *WorkerMetrics,
	config WorkerConfig,
) *Pool {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	return &Pool{
		workerID:   uuid.NewString(),
		hostname:   hostname,
		pid:        os.Getpid(),
		queueRepo:  queueRepo,
		workerRepo: workerRepo,
		processor:  processor,
		metrics:    metrics,
		config:     config,
		sem:        semaphore.NewWeighted(int64(config.MaxConcurrent)),
	}
}

// WorkerID returns the pool's worker identity.
func (p *Pool) WorkerID() string {
	return p.workerID
}

// InFlight returns the number of currently executing tasks.
func (p *Pool) InFlight() int {
	return int(p.inFlight.Load())
}

// Run registers the worker, starts the heartbeat, and polls the queue until
// the context is cancelled. On shutdown it drains in-flight tasks and
// deregisters. Blocking call.
func (p *Pool) Run(ctx context.Context) error {
	now := time.Now()
	record := &entity.WorkerRecord{
		WorkerID:      p.workerID,
		Hostname:      p.hostname,
		PID:           p.pid,
		StartedAt:     now,
		LastHeartbeat: now,
	}
	if err := p.workerRepo.Register(ctx, record); err != nil {
		return err
	}

	slog.InfoContext(ctx, "worker pool started",
		slog.String("worker_id", p.workerID),
		slog.String("hostname", p.hostname),
		slog.Int("max_concurrent", p.config.MaxConcurrent),
		slog.Duration("poll_interval", p.config.PollInterval))

	heartbeatDone := make(chan struct{})
	go p.heartbeatLoop(ctx, heartbeatDone)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}

	slog.Info("worker pool draining",
		slog.String("worker_id", p.workerID),
		slog.Int64("in_flight", p.inFlight.Load()))
	p.wg.Wait()
	<-heartbeatDone

	safeCtx := context.WithoutCancel(ctx)
	if err := p.workerRepo.Deregister(safeCtx, p.workerID); err != nil {
		slog.Warn("worker deregistration failed",
			slog.String("worker_id", p.workerID),
			slog.Any("error", err))
	}

	slog.Info("worker pool stopped", slog.String("worker_id", p.workerID))
	return nil
}

// pollOnce attempts to claim and dispatch a single item. At capacity it
// skips claiming entirely so a claimed item never waits on a local slot.
func (p *Pool) pollOnce(ctx context.Context) {
	if !p.sem.TryAcquire(1) {
		p.metrics.RecordPollCycle("at_capacity")
		return
	}

	item, err := p.queueRepo.ClaimNext(ctx, p.workerID)
	if err != nil {
		p.sem.Release(1)
		p.metrics.RecordPollCycle("error")
		slog.WarnContext(ctx, "claim failed",
			slog.String("worker_id", p.workerID),
			slog.Any("error", err))
		return
	}
	if item == nil {
		p.sem.Release(1)
		p.metrics.RecordPollCycle("empty")
		return
	}

	p.metrics.RecordPollCycle("claimed")
	p.metrics.SetTasksInFlight(int(p.inFlight.Add(1)))

	p.wg.Add(1)
	go func() {
		defer func() {
			p.metrics.SetTasksInFlight(int(p.inFlight.Add(-1)))
			p.sem.Release(1)
			p.wg.Done()
		}()

		taskCtx, cancel := context.WithTimeout(ctx, p.config.TaskTimeout)
		defer cancel()

		// Process handles complete/fail bookkeeping and logging itself.
		_ = p.processor.Process(taskCtx, item)
	}()
}

// heartbeatLoop refreshes the worker record until the context is cancelled.
func (p *Pool) heartbeatLoop(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.config.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.workerRepo.Heartbeat(ctx, p.workerID, p.InFlight()); err != nil {
				slog.WarnContext(ctx, "heartbeat failed",
					slog.String("worker_id", p.workerID),
					slog.Any("error", err))
			}
		}
	}
}
