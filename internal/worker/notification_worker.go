package worker

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/mahara-dz/mahara-api/internal/domain"
)

// ErrQueueFull is returned by Send when the worker cannot accept more mail.
var ErrQueueFull = errors.New("notification queue full")

// DeliverFunc hands one email to the transport.
type DeliverFunc func(ctx context.Context, email domain.Email) error

// NotificationWorker delivers emails off the request path.
type NotificationWorker struct {
	queue   chan domain.Email
	deliver DeliverFunc
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewNotificationWorker builds a worker with a bounded queue. A nil deliver
// logs the message instead of sending it.
func NewNotificationWorker(queueSize int, deliver DeliverFunc, logger *zap.Logger) *NotificationWorker {
	if queueSize <= 0 {
		queueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &NotificationWorker{
		queue:  make(chan domain.Email, queueSize),
		logger: logger,
	}
	if deliver == nil {
		deliver = w.logDelivery
	}
	w.deliver = deliver
	return w
}

// Send enqueues an email without blocking.
func (w *NotificationWorker) Send(_ context.Context, email domain.Email) error {
	select {
	case w.queue <- email:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start runs the delivery loop until ctx is cancelled, then drains what is
// already queued.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for {
			select {
			case email := <-w.queue:
				w.deliverOne(ctx, email)
			case <-ctx.Done():
				w.drain()
				return
			}
		}
	}()
}

// Wait blocks until the loop started by Start has exited.
func (w *NotificationWorker) Wait() {
	w.wg.Wait()
}

func (w *NotificationWorker) drain() {
	for {
		select {
		case email := <-w.queue:
			w.deliverOne(context.Background(), email)
		default:
			return
		}
	}
}

func (w *NotificationWorker) deliverOne(ctx context.Context, email domain.Email) {
	if err := w.deliver(ctx, email); err != nil {
		w.logger.Error("email delivery failed", zap.String("to", email.To), zap.String("subject", email.Subject), zap.Error(err))
	}
}

func (w *NotificationWorker) logDelivery(_ context.Context, email domain.Email) error {
	w.logger.Info("email queued for delivery",
		zap.String("to", email.To),
		zap.String("subject", email.Subject))
	return nil
}
