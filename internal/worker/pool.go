// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package worker runs the queue-consuming goroutine pool.

Each worker blocks on the queue, hands the envelope to a handler, and applies
the retry policy to the outcome: transient failures are re-queued up to the
attempt budget, permanent ones are dead-lettered immediately. The pool drains
gracefully — in-flight jobs finish before Stop returns.
*/
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/queue"
)

// dequeueWait bounds each blocking poll so shutdown is observed promptly.
const dequeueWait = 5 * time.Second

// requeueTimeout bounds the Retry/DeadLetter round-trip after a failed job.
const requeueTimeout = 5 * time.Second

// HandleFunc processes one delivered envelope. The returned error's
// retryability classification drives the retry policy.
type HandleFunc func(ctx context.Context, envelope *queue.Envelope) error

// Pool consumes one queue with a fixed number of workers.
type Pool struct {
	consumer    queue.Consumer
	queueName   string
	handle      HandleFunc
	concurrency int
	maxAttempts int
	logger      *slog.Logger

	wg sync.WaitGroup
}

// NewPool constructs a pool; Start launches it.
func NewPool(consumer queue.Consumer, queueName string, handle HandleFunc, concurrency, maxAttempts int, logger *slog.Logger) *Pool {
	return &Pool{
		consumer:    consumer,
		queueName:   queueName,
		handle:      handle,
		concurrency: concurrency,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Start launches the worker goroutines. They run until ctx is cancelled.
func (pool *Pool) Start(ctx context.Context) {
	pool.logger.Info("worker_pool_started",
		slog.String("queue", pool.queueName),
		slog.Int("concurrency", pool.concurrency),
	)

	for i := 0; i < pool.concurrency; i++ {
		pool.wg.Add(1)
		go pool.runWorker(ctx, i)
	}
}

// Wait blocks until every worker has drained and exited.
func (pool *Pool) Wait() {
	pool.wg.Wait()
	pool.logger.Info("worker_pool_stopped", slog.String("queue", pool.queueName))
}

func (pool *Pool) runWorker(ctx context.Context, id int) {
	defer pool.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		envelope, err := pool.consumer.Dequeue(ctx, pool.queueName, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			pool.logger.Error("worker_dequeue_failed",
				slog.Int("worker", id), slog.String("error", err.Error()))
			time.Sleep(time.Second)
			continue
		}
		if envelope == nil {
			continue // wait elapsed, nothing to do
		}

		pool.process(ctx, id, envelope)
	}
}

// process runs the handler and applies the retry policy to its outcome.
func (pool *Pool) process(ctx context.Context, id int, envelope *queue.Envelope) {
	err := pool.handle(ctx, envelope)
	if err == nil {
		return
	}

	// The dequeue already popped the job. Re-queue bookkeeping must still
	// run when the run context was cancelled mid-job, or the job is lost.
	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requeueTimeout)
	defer cancel()

	retryable := apperr.IsRetryable(err) || gateway.IsRetryable(err)

	switch {
	case retryable && envelope.Attempts+1 < pool.maxAttempts:
		pool.logger.Warn("job_retry",
			slog.Int("worker", id),
			slog.String("job_id", envelope.ID),
			slog.Int("attempt", envelope.Attempts+1),
			slog.String("error", err.Error()),
		)
		if retryErr := pool.consumer.Retry(requeueCtx, envelope); retryErr != nil {
			pool.logger.Error("job_retry_failed",
				slog.String("job_id", envelope.ID), slog.String("error", retryErr.Error()))
		}

	case retryable:
		pool.deadLetter(requeueCtx, envelope, "attempts exhausted: "+err.Error())

	default:
		pool.deadLetter(requeueCtx, envelope, "permanent failure: "+err.Error())
	}
}

func (pool *Pool) deadLetter(ctx context.Context, envelope *queue.Envelope, reason string) {
	pool.logger.Error("job_dead_lettered",
		slog.String("queue", pool.queueName),
		slog.String("job_id", envelope.ID),
		slog.Int("attempts", envelope.Attempts+1),
		slog.String("reason", reason),
	)
	if err := pool.consumer.DeadLetter(ctx, envelope, reason); err != nil {
		pool.logger.Error("dead_letter_failed",
			slog.String("job_id", envelope.ID), slog.String("error", err.Error()))
	}
}
