// Package async bounds how many pipeline runs execute at once. A fixed pool
// of workers drains a bounded buffer; a full buffer rejects new work so the
// chat layer can tell the user the bot is busy instead of silently queueing
// unbounded jobs.
package async

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stroyassist/defectbot/internal/common"
	"github.com/stroyassist/defectbot/internal/observability/metrics"
)

// Task is one queued analysis request. Execute runs on a worker goroutine
// and must handle its own errors; the queue only schedules.
type Task struct {
	RunID   string
	ChatID  int64
	Execute func(ctx context.Context)
}

type RunQueue struct {
	logger  *slog.Logger
	metrics *metrics.PipelineMetrics
	workers int

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
}

type Option func(*RunQueue)

func WithWorkers(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *RunQueue) {
		if n > 0 {
			q.ch = make(chan Task, n)
		}
	}
}

func WithMetrics(m *metrics.PipelineMetrics) Option {
	return func(q *RunQueue) {
		q.metrics = m
	}
}

func NewRunQueue(logger *slog.Logger, opts ...Option) *RunQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &RunQueue{
		logger:  logger,
		workers: 2,
		ch:      make(chan Task, 8),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *RunQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("queue.worker.started", "worker_id", workerID)

				for task := range q.ch {
					q.logger.Info("queue.task.start",
						"worker_id", workerID,
						"run_id", task.RunID,
						"chat_id", task.ChatID,
					)
					// Runs are never cancelled mid-flight; shutdown waits for
					// them instead.
					ctx := common.WithRunID(context.Background(), task.RunID)
					ctx = common.WithChatID(ctx, task.ChatID)
					task.Execute(ctx)
					q.logger.Info("queue.task.done", "worker_id", workerID, "run_id", task.RunID)
				}

				q.logger.Info("queue.worker.stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// TryEnqueue schedules a task unless the buffer is full or the queue is
// shutting down. A false return is the backpressure signal.
func (q *RunQueue) TryEnqueue(task Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "run_id", task.RunID)
		return false
	}
	select {
	case q.ch <- task:
		q.logger.Info("queue.enqueue.ok", "run_id", task.RunID, "chat_id", task.ChatID)
		return true
	default:
		q.logger.Warn("queue.enqueue.rejected", "run_id", task.RunID, "chat_id", task.ChatID)
		if q.metrics != nil {
			q.metrics.QueueRejected()
		}
		return false
	}
}

// Shutdown stops intake and waits for queued and running tasks to finish, up
// to ctx's deadline.
func (q *RunQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.drained")
	}
}
