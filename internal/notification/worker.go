package notification

import (
	"context"
	"log/slog"
	"sync"

	"home-sensor-backend/internal/metrics"
)

// WorkerPool delivers notifications off the ingestion path.
type WorkerPool struct {
	size   int
	jobs   chan Message
	sender Sender
	wg     sync.WaitGroup
}

// NewWorkerPool creates a pool of size workers reading from a queue of the given depth.
func NewWorkerPool(size, queue int, sender Sender) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queue <= 0 {
		queue = size
	}
	return &WorkerPool{
		size:   size,
		jobs:   make(chan Message, queue),
		sender: sender,
	}
}

// Start launches the worker goroutines. They stop when ctx is cancelled.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx, i)
	}
}

// Wait blocks until every worker has stopped.
func (wp *WorkerPool) Wait() {
	wp.wg.Wait()
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	defer wp.wg.Done()
	slog.Debug("notification worker started", "worker", id)
	for {
		select {
		case msg := <-wp.jobs:
			if err := wp.sender.Send(ctx, msg); err != nil {
				slog.Warn("notification failed", "worker", id, "room", msg.RoomID, "title", msg.Title, "err", err)
			}
		case <-ctx.Done():
			slog.Debug("notification worker shutting down", "worker", id)
			return
		}
	}
}

// Dispatch queues msg without blocking. It reports false and drops the message when
// the queue is full.
func (wp *WorkerPool) Dispatch(msg Message) bool {
	select {
	case wp.jobs <- msg:
		return true
	default:
		metrics.IncNotification(wp.sender.Name(), metrics.NotificationDropped)
		slog.Warn("notification queue full, dropping", "room", msg.RoomID, "title", msg.Title)
		return false
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan Message {
	return wp.jobs
}
