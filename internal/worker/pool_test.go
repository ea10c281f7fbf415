// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package worker_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/owarin/serina/internal/gateway"
	"github.com/owarin/serina/internal/platform/apperr"
	"github.com/owarin/serina/internal/queue"
	"github.com/owarin/serina/internal/worker"
)

// chanConsumer is an in-memory queue the pool can drain.
type chanConsumer struct {
	jobs chan *queue.Envelope

	mu      sync.Mutex
	retried []*queue.Envelope
	dead    []string // reasons
}

func newChanConsumer(envelopes ...*queue.Envelope) *chanConsumer {
	c := &chanConsumer{jobs: make(chan *queue.Envelope, 64)}
	for _, e := range envelopes {
		c.jobs <- e
	}
	return c
}

func (c *chanConsumer) Dequeue(ctx context.Context, _ string, wait time.Duration) (*queue.Envelope, error) {
	select {
	case envelope := <-c.jobs:
		return envelope, nil
	case <-time.After(wait):
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *chanConsumer) Retry(ctx context.Context, envelope *queue.Envelope) error {
	// Like the Redis client, refuse to operate on a dead context.
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	envelope.Attempts++
	c.retried = append(c.retried, envelope)
	c.jobs <- envelope
	return nil
}

func (c *chanConsumer) DeadLetter(ctx context.Context, _ *queue.Envelope, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.dead = append(c.dead, reason)
	return nil
}

func (c *chanConsumer) snapshot() (retries int, dead []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.retried), append([]string(nil), c.dead...)
}

func envelope(id string) *queue.Envelope {
	return &queue.Envelope{ID: id, Queue: "ingest", EnqueuedAt: time.Now()}
}

func runPool(t *testing.T, consumer *chanConsumer, handle worker.HandleFunc, maxAttempts int) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(consumer, "ingest", handle, 2, maxAttempts, slog.New(slog.DiscardHandler))
	pool.Start(ctx)

	// Give the workers time to drain the buffered jobs.
	time.Sleep(200 * time.Millisecond)
	cancel()
	pool.Wait()
}

func TestPoolProcessesJobs(t *testing.T) {
	consumer := newChanConsumer(envelope("j1"), envelope("j2"), envelope("j3"))

	var mu sync.Mutex
	var seen []string
	runPool(t, consumer, func(_ context.Context, e *queue.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.ID)
		return nil
	}, 3)

	assert.ElementsMatch(t, []string{"j1", "j2", "j3"}, seen)
	retries, dead := consumer.snapshot()
	assert.Zero(t, retries)
	assert.Empty(t, dead)
}

func TestPoolRetriesTransientThenDeadLetters(t *testing.T) {
	consumer := newChanConsumer(envelope("flaky"))

	failure := gateway.NewScraperError("kyoshiro", "upstream 502", true)
	runPool(t, consumer, func(context.Context, *queue.Envelope) error {
		return failure
	}, 3)

	retries, dead := consumer.snapshot()
	assert.Equal(t, 2, retries, "attempts 1 and 2 re-queue, attempt 3 exhausts")
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0], "attempts exhausted")
}

func TestPoolDeadLettersPermanentFailureImmediately(t *testing.T) {
	consumer := newChanConsumer(envelope("bad"))

	runPool(t, consumer, func(context.Context, *queue.Envelope) error {
		return apperr.Unprocessable("chapter has neither a number nor a slug")
	}, 3)

	retries, dead := consumer.snapshot()
	assert.Zero(t, retries, "a permanent failure is never retried")
	require.Len(t, dead, 1)
	assert.Contains(t, dead[0], "permanent failure")
}

func TestPoolParksInFlightJobWhenShutdownInterrupts(t *testing.T) {
	consumer := newChanConsumer(envelope("inflight"))

	// Shutdown lands while the job is in flight; the job was already popped,
	// so its failure bookkeeping must survive the cancelled run context.
	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(consumer, "ingest", func(context.Context, *queue.Envelope) error {
		cancel()
		return apperr.LockTimeout("series-1:n:7")
	}, 1, 1, slog.New(slog.DiscardHandler))
	pool.Start(ctx)
	pool.Wait()

	retries, dead := consumer.snapshot()
	assert.Zero(t, retries)
	require.Len(t, dead, 1, "the popped job is parked, never dropped")
	assert.Contains(t, dead[0], "attempts exhausted")
}

func TestPoolRetriesInFlightJobAcrossShutdown(t *testing.T) {
	consumer := newChanConsumer(envelope("inflight"))

	ctx, cancel := context.WithCancel(context.Background())
	pool := worker.NewPool(consumer, "ingest", func(context.Context, *queue.Envelope) error {
		cancel()
		return apperr.LockTimeout("series-1:n:7")
	}, 1, 3, slog.New(slog.DiscardHandler))
	pool.Start(ctx)
	pool.Wait()

	retries, dead := consumer.snapshot()
	assert.Equal(t, 1, retries, "the job goes back on the queue for the next process")
	assert.Empty(t, dead)
}

func TestPoolTreatsLockTimeoutAsTransient(t *testing.T) {
	consumer := newChanConsumer(envelope("contended"))

	var attempts int
	var mu sync.Mutex
	runPool(t, consumer, func(context.Context, *queue.Envelope) error {
		mu.Lock()
		defer mu.Unlock()
		attempts++
		if attempts == 1 {
			return apperr.LockTimeout("series-1:n:1105")
		}
		return nil
	}, 3)

	retries, dead := consumer.snapshot()
	assert.Equal(t, 1, retries)
	assert.Empty(t, dead, "the job succeeds on re-delivery")
}
