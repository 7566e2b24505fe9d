package notify

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// Queue decouples alert creation from notification delivery. The evaluator
// enqueues and returns immediately; workers drain the queue and run the
// dispatcher, so delivery failures are logged and auditable instead of
// vanishing with an unawaited call.
type Queue struct {
	dispatcher *Dispatcher
	tasks      chan uint
	sem        *semaphore.Weighted
	stopChan   chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

func NewQueue(dispatcher *Dispatcher, size, workers int, logger zerolog.Logger) *Queue {
	if size <= 0 {
		size = 256
	}
	if workers <= 0 {
		workers = 4
	}
	return &Queue{
		dispatcher: dispatcher,
		tasks:      make(chan uint, size),
		sem:        semaphore.NewWeighted(int64(workers)),
		stopChan:   make(chan struct{}),
		logger:     logger.With().Str("component", "dispatch_queue").Logger(),
	}
}

// Enqueue hands an alert off for delivery without blocking. Returns false
// when the queue is full; the alert still gets retried on the next
// escalation tick, so a full queue degrades latency rather than losing work.
func (q *Queue) Enqueue(alertID uint) bool {
	select {
	case q.tasks <- alertID:
		return true
	default:
		return false
	}
}

// Start drains the queue until Stop is called, with at most the configured
// number of dispatches in flight.
func (q *Queue) Start() {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case alertID := <-q.tasks:
				q.run(alertID)
			case <-q.stopChan:
				return
			}
		}
	}()
}

// Stop stops accepting work and waits for in-flight dispatches to finish.
// Safe to call more than once.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopChan) })
	q.wg.Wait()
}

func (q *Queue) run(alertID uint) {
	ctx := context.Background()
	if err := q.sem.Acquire(ctx, 1); err != nil {
		return
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		defer q.sem.Release(1)

		dispatched, failed, err := q.dispatcher.Dispatch(ctx, alertID)
		if err != nil {
			q.logger.Error().Err(err).Uint("alert_id", alertID).Msg("dispatch failed")
			return
		}
		q.logger.Info().
			Uint("alert_id", alertID).
			Int("dispatched", dispatched).
			Int("failed", failed).
			Msg("alert dispatched")
	}()
}
