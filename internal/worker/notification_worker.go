// Package worker delivers notifications off the request path.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-intake/internal/events"
	"github.com/spec-kit/ticket-intake/internal/service"
)

// ErrQueueFull is returned by Publish when the backlog is at capacity.
var ErrQueueFull = errors.New("notification queue full")

// ErrStopped is returned by Publish after Stop.
var ErrStopped = errors.New("notification worker stopped")

// NotificationWorker is an events.Dispatcher that queues events and hands
// them to an inner dispatcher from background goroutines.
type NotificationWorker struct {
	inner    events.Dispatcher
	logger   *zap.Logger
	queue    chan events.Event
	workers  int
	timeout  time.Duration
	mu       sync.RWMutex
	stopped  bool
	wg       sync.WaitGroup
	startOne sync.Once
}

// NewNotificationWorker creates a worker with the given backlog size and
// worker count. Each delivery runs under timeout.
func NewNotificationWorker(inner events.Dispatcher, logger *zap.Logger, backlog, workers int, timeout time.Duration) *NotificationWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if backlog <= 0 {
		backlog = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &NotificationWorker{
		inner:   inner,
		logger:  logger,
		queue:   make(chan events.Event, backlog),
		workers: workers,
		timeout: timeout,
	}
}

// StartNotificationWorker registers notification handlers on the inner
// dispatcher and starts delivering.
func StartNotificationWorker(w *NotificationWorker, notificationService *service.NotificationService) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	w.Start()
}

// Start launches the delivery goroutines. It is idempotent.
func (w *NotificationWorker) Start() {
	w.startOne.Do(func() {
		for i := 0; i < w.workers; i++ {
			w.wg.Add(1)
			go w.run()
		}
	})
}

// Publish enqueues the event without waiting for delivery.
func (w *NotificationWorker) Publish(_ context.Context, event events.Event) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.stopped {
		return ErrStopped
	}
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("notification dropped",
			zap.String("ticket_number", event.TicketNumber),
			zap.String("event_type", string(event.Type)))
		return ErrQueueFull
	}
}

// Subscribe registers a handler on the inner dispatcher.
func (w *NotificationWorker) Subscribe(eventType events.EventType, handler events.EventHandler) {
	w.inner.Subscribe(eventType, handler)
}

// Stop rejects new events and waits for the backlog to drain or ctx to end.
func (w *NotificationWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.stopped {
		w.stopped = true
		close(w.queue)
	}
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *NotificationWorker) run() {
	defer w.wg.Done()
	for event := range w.queue {
		w.deliver(event)
	}
}

func (w *NotificationWorker) deliver(event events.Event) {
	ctx := context.Background()
	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}
	if err := w.inner.Publish(ctx, event); err != nil {
		w.logger.Warn("notification delivery failed",
			zap.String("ticket_number", event.TicketNumber),
			zap.String("event_type", string(event.Type)),
			zap.Error(err))
	}
}
