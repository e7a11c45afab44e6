package notifications

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultQueueDepth = 256

// DeliveryWorkers drains a queue of delivery attempts so that a slow email or
// push provider never blocks the request that created the notification.
// Enqueue never blocks: when the queue is full the delivery stays pending and
// the sweeper re-enqueues it later.
type DeliveryWorkers struct {
	dispatcher *Dispatcher
	queue      chan uint
	workers    int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewDeliveryWorkers(dispatcher *Dispatcher, workers int) *DeliveryWorkers {
	if workers <= 0 {
		workers = 4
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &DeliveryWorkers{
		dispatcher: dispatcher,
		queue:      make(chan uint, defaultQueueDepth),
		workers:    workers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the worker goroutines.
func (w *DeliveryWorkers) Start() {
	logrus.Infof("Starting %d delivery workers", w.workers)

	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.run()
	}
}

// Stop cancels in-flight sends and waits for the workers to exit.
func (w *DeliveryWorkers) Stop() {
	logrus.Info("Stopping delivery workers")
	w.cancel()
	w.wg.Wait()
}

// Enqueue hands a delivery to the pool. Returns false when the queue is full
// or the pool is shutting down; the row stays pending for the sweeper.
func (w *DeliveryWorkers) Enqueue(deliveryID uint) bool {
	select {
	case <-w.ctx.Done():
		return false
	case w.queue <- deliveryID:
		return true
	default:
		logrus.WithField("delivery", deliveryID).Warn("Delivery queue full, leaving row for retry sweep")
		return false
	}
}

func (w *DeliveryWorkers) run() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case deliveryID := <-w.queue:
			if err := w.dispatcher.Attempt(w.ctx, deliveryID); err != nil {
				logrus.WithError(err).WithField("delivery", deliveryID).Error("Delivery attempt errored")
			}
		}
	}
}
