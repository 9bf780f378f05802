package notify

import (
	"context"
	"sync"
	"time"

	"github.com/mirai-api/gateway/internal/logging"
	"github.com/mirai-api/gateway/internal/metrics"
	"github.com/mirai-api/gateway/pkg/models"
)

// Dispatcher fans queued notifications out to a worker pool. Delivery is
// best-effort: send failures are logged and counted, never returned to the
// producer and never retried. One slow destination cannot stall the batch;
// each send runs under its own timeout.
type Dispatcher struct {
	sender  Sender
	log     *logging.Logger
	timeout time.Duration
	workers int

	tasks chan *models.Notification
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher creates a dispatcher with the given worker pool size and
// per-send timeout budget
func NewDispatcher(sender Sender, log *logging.Logger, workers int, timeout time.Duration) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Dispatcher{
		sender:  sender,
		log:     log,
		timeout: timeout,
		workers: workers,
		tasks:   make(chan *models.Notification, workers*16),
	}
}

// Start launches the worker pool. Workers drain the task channel until Stop
// is called or the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop closes the intake and waits for in-flight sends to finish
func (d *Dispatcher) Stop() {
	d.once.Do(func() { close(d.tasks) })
	d.wg.Wait()
}

// Dispatch queues one notification for delivery. When the pool is saturated
// the notification is dropped and logged; blocking the producer would stall
// the scheduler jobs that feed the dispatcher.
func (d *Dispatcher) Dispatch(notification *models.Notification) {
	select {
	case d.tasks <- notification:
	default:
		metrics.NotificationsSentTotal.WithLabelValues(notification.Kind, "dropped").Inc()
		d.log.WithAccountID(notification.AccountID).
			Warnf("Dispatcher saturated, dropping %s notification", notification.Kind)
	}
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case notification, ok := <-d.tasks:
			if !ok {
				return
			}
			d.send(ctx, notification)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, notification *models.Notification) {
	sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.sender.Send(sendCtx, notification.ChatID, notification.Text)
	d.log.LogNotification(notification.Kind, notification.AccountID, notification.ChatID, err)

	status := "ok"
	if err != nil {
		status = "failed"
	}
	metrics.NotificationsSentTotal.WithLabelValues(notification.Kind, status).Inc()
}
