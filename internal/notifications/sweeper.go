package notifications

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultSweepInterval = time.Minute
	defaultStaleAfter    = 2 * time.Minute
	sweepBatchSize       = 100
)

// RetrySweeper periodically re-queues eligible failed deliveries and pending
// rows that fell out of the queue. The sweep is re-entrant: claiming happens
// through the dispatcher's status-transition checks, so overlapping sweeps
// never double-send.
type RetrySweeper struct {
	dispatcher *Dispatcher
	workers    *DeliveryWorkers
	interval   time.Duration
	staleAfter time.Duration
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewRetrySweeper(dispatcher *Dispatcher, workers *DeliveryWorkers) *RetrySweeper {
	ctx, cancel := context.WithCancel(context.Background())

	return &RetrySweeper{
		dispatcher: dispatcher,
		workers:    workers,
		interval:   defaultSweepInterval,
		staleAfter: defaultStaleAfter,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// WithInterval overrides the sweep cadence and staleness cutoff.
func (s *RetrySweeper) WithInterval(interval, staleAfter time.Duration) *RetrySweeper {
	if interval > 0 {
		s.interval = interval
	}
	if staleAfter > 0 {
		s.staleAfter = staleAfter
	}
	return s
}

// Start launches the periodic sweep loop.
func (s *RetrySweeper) Start() {
	logrus.Infof("Starting retry sweeper with interval %s", s.interval)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.Sweep()
			}
		}
	}()
}

// Stop halts the sweep loop and waits for it to exit.
func (s *RetrySweeper) Stop() {
	s.cancel()
	<-s.done
	logrus.Info("Retry sweeper stopped")
}

// Sweep runs one pass: failed rows below the attempt ceiling move back to
// pending and are enqueued, then stale pending rows are re-enqueued.
func (s *RetrySweeper) Sweep() {
	claimed, err := s.dispatcher.ClaimFailedForRetry(sweepBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Retry sweep failed to claim failed deliveries")
		return
	}

	for _, id := range claimed {
		s.workers.Enqueue(id)
	}

	stale, err := s.dispatcher.StalePending(time.Now().Add(-s.staleAfter), sweepBatchSize)
	if err != nil {
		logrus.WithError(err).Error("Retry sweep failed to list stale pending deliveries")
		return
	}

	for _, id := range stale {
		s.workers.Enqueue(id)
	}

	if len(claimed) > 0 || len(stale) > 0 {
		logrus.Infof("Retry sweep re-queued %d failed and %d stale deliveries", len(claimed), len(stale))
	}
}
