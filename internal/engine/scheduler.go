package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Scheduler runs page enrichment on a fixed pool of worker goroutines.
// Registration stays on the caller's goroutine; only enrichment fans out.
type Scheduler struct {
	engine  *Engine
	logger  *slog.Logger
	workers int

	tasks    chan queuedTask
	inflight sync.WaitGroup
	wg       sync.WaitGroup

	startOnce sync.Once
	stopOnce  sync.Once
}

// queuedTask carries the submitter's context to the worker.
type queuedTask struct {
	ctx context.Context
	enrichTask
}

// NewScheduler creates a pool of n workers. Workers start on first Submit.
func NewScheduler(e *Engine, n int) *Scheduler {
	if n < 1 {
		n = 1
	}
	return &Scheduler{
		engine:  e,
		logger:  e.logger.With("component", "scheduler"),
		workers: n,
		tasks:   make(chan queuedTask, n*4),
	}
}

// Start launches the worker pool.
func (s *Scheduler) Start() {
	s.startOnce.Do(func() {
		s.logger.Info("starting worker pool", "workers", s.workers)
		for i := 0; i < s.workers; i++ {
			s.wg.Add(1)
			go s.worker(i)
		}
	})
}

// Submit queues task, blocking while the queue is full. A task whose context
// is cancelled before it is queued is dropped.
func (s *Scheduler) Submit(ctx context.Context, task enrichTask) {
	s.Start()
	s.inflight.Add(1)
	select {
	case s.tasks <- queuedTask{ctx: ctx, enrichTask: task}:
	case <-ctx.Done():
		s.engine.store.ClearEnriched(task.title)
		s.inflight.Done()
		s.logger.Debug("enrichment dropped", "title", task.title, "error", ctx.Err())
	}
}

// Drain blocks until every submitted task has finished.
func (s *Scheduler) Drain() {
	s.inflight.Wait()
}

// Stop drains the queue and stops all workers. Submit must not be called
// after Stop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.Drain()
		close(s.tasks)
		s.wg.Wait()
	})
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()
	logger := s.logger.With("worker_id", id)

	for task := range s.tasks {
		s.engine.stats.ActiveWorkers.Add(1)
		logger.Debug("enriching", "title", task.title)
		s.engine.enrich(task.ctx, task.enrichTask)
		s.engine.stats.ActiveWorkers.Add(-1)
		s.inflight.Done()
	}
}
