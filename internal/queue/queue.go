package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"housingsearch/server/internal/models"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// RefreshTask asks the background workers to repopulate listings around a search
type RefreshTask struct {
	Filter      models.SearchFilter
	RequestedAt time.Time
}

// Handler processes a single refresh task
type Handler func(ctx context.Context, task RefreshTask) error

// RefreshQueue is a bounded in-memory queue of refresh tasks
type RefreshQueue struct {
	items    chan RefreshTask
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	wg       sync.WaitGroup
	logger   *logrus.Logger
	handlers []Handler
}

// NewRefreshQueue creates a new refresh queue with the specified buffer size
func NewRefreshQueue(bufferSize int, logger *logrus.Logger) *RefreshQueue {
	if logger == nil {
		logger = logrus.New()
	}
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &RefreshQueue{
		items:    make(chan RefreshTask, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]Handler, 0),
	}
}

// Push enqueues a task without blocking the caller
func (q *RefreshQueue) Push(task RefreshTask) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if task.RequestedAt.IsZero() {
		task.RequestedAt = time.Now().UTC()
	}

	select {
	case q.items <- task:
		q.logger.WithFields(logrus.Fields{
			"radius_km": task.Filter.RadiusKm,
			"pending":   len(q.items),
		}).Debug("Pushed refresh task to queue")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler that is called for every task
func (q *RefreshQueue) Subscribe(handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start launches workers goroutines draining the queue until ctx is done or
// the queue is closed
func (q *RefreshQueue) Start(ctx context.Context, workers int) {
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.process(ctx)
	}
}

func (q *RefreshQueue) process(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.done:
			return
		case task := <-q.items:
			q.processTask(ctx, task)
		}
	}
}

// processTask sends the task to all subscribed handlers
func (q *RefreshQueue) processTask(ctx context.Context, task RefreshTask) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, task); err != nil {
			q.logger.WithError(err).Error("Handler failed to process refresh task")
		}
	}
}

// Close stops accepting tasks and waits for running workers to finish their
// current task. Pending tasks are discarded.
func (q *RefreshQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.done)
	q.mu.Unlock()

	q.wg.Wait()
	return nil
}

// Len returns the current number of pending tasks
func (q *RefreshQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *RefreshQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
