// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/owarin/serina/internal/platform/constants"
	"github.com/owarin/serina/pkg/uuid"
)

// # Redis Transport

// RedisQueue implements [Producer] and [Consumer] on Redis lists.
//
// Layout: jobs live on "serina:queue:<name>" (LPUSH producer, BRPOP
// consumer), dead-lettered jobs on "serina:dead:<name>". Both lists survive
// process restarts; Redis persistence settings decide durability beyond that.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue constructs a Redis-backed queue transport.
func NewRedisQueue(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

/*
Enqueue appends one job to the named queue.

Parameters:
  - ctx: context.Context
  - queueName: string (Logical queue, e.g. "ingest")
  - payload: any (JSON-serializable job)

Returns:
  - error: Serialization or connectivity failures
*/
func (q *RedisQueue) Enqueue(ctx context.Context, queueName string, payload any) error {
	encoded, err := wrap(queueName, payload)
	if err != nil {
		return err
	}

	if err := q.client.LPush(ctx, queueKey(queueName), encoded).Err(); err != nil {
		return fmt.Errorf("queue: enqueue to %s failed: %w", queueName, err)
	}
	return nil
}

/*
EnqueueBulk appends many jobs in a single pipelined round-trip.

Description: One poll of a long-running series can yield hundreds of
chapters; pipelining keeps that a single network exchange.

Parameters:
  - ctx: context.Context
  - queueName: string
  - payloads: []any

Returns:
  - error: Serialization or connectivity failures
*/
func (q *RedisQueue) EnqueueBulk(ctx context.Context, queueName string, payloads []any) error {
	if len(payloads) == 0 {
		return nil
	}

	pipe := q.client.Pipeline()
	for _, payload := range payloads {
		encoded, err := wrap(queueName, payload)
		if err != nil {
			return err
		}
		pipe.LPush(ctx, queueKey(queueName), encoded)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("queue: bulk enqueue to %s failed: %w", queueName, err)
	}
	return nil
}

// PendingCount returns the number of jobs waiting on the named queue.
func (q *RedisQueue) PendingCount(ctx context.Context, queueName string) (int64, error) {
	count, err := q.client.LLen(ctx, queueKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: pending count for %s failed: %w", queueName, err)
	}
	return count, nil
}

// DeadCount returns the number of jobs parked on the queue's dead-letter list.
func (q *RedisQueue) DeadCount(ctx context.Context, queueName string) (int64, error) {
	count, err := q.client.LLen(ctx, deadKey(queueName)).Result()
	if err != nil {
		return 0, fmt.Errorf("queue: dead count for %s failed: %w", queueName, err)
	}
	return count, nil
}

/*
Dequeue blocks up to wait for the next job on the named queue.

Returns:
  - *Envelope: The delivered job, or nil when the wait elapsed empty.
  - error: Connectivity or decoding failures
*/
func (q *RedisQueue) Dequeue(ctx context.Context, queueName string, wait time.Duration) (*Envelope, error) {
	result, err := q.client.BRPop(ctx, wait, queueKey(queueName)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("queue: dequeue from %s failed: %w", queueName, err)
	}

	// BRPop returns [key, value].
	var envelope Envelope
	if err := json.Unmarshal([]byte(result[1]), &envelope); err != nil {
		return nil, fmt.Errorf("queue: malformed envelope on %s: %w", queueName, err)
	}
	return &envelope, nil
}

// Retry re-enqueues a job after a transient failure with its attempt count bumped.
func (q *RedisQueue) Retry(ctx context.Context, envelope *Envelope) error {
	envelope.Attempts++

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal retry envelope failed: %w", err)
	}

	if err := q.client.LPush(ctx, queueKey(envelope.Queue), encoded).Err(); err != nil {
		return fmt.Errorf("queue: retry enqueue to %s failed: %w", envelope.Queue, err)
	}
	return nil
}

// DeadLetter parks a job on the dead-letter list with a failure reason.
func (q *RedisQueue) DeadLetter(ctx context.Context, envelope *Envelope, reason string) error {
	dead := struct {
		*Envelope
		Reason   string    `json:"reason"`
		FailedAt time.Time `json:"failedAt"`
	}{
		Envelope: envelope,
		Reason:   reason,
		FailedAt: time.Now().UTC(),
	}

	encoded, err := json.Marshal(dead)
	if err != nil {
		return fmt.Errorf("queue: marshal dead envelope failed: %w", err)
	}

	if err := q.client.LPush(ctx, deadKey(envelope.Queue), encoded).Err(); err != nil {
		return fmt.Errorf("queue: dead-letter to %s failed: %w", envelope.Queue, err)
	}
	return nil
}

// # Internal Helpers

// wrap serializes a payload into a fresh delivery envelope.
func wrap(queueName string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal payload failed: %w", err)
	}

	envelope := Envelope{
		ID:         uuid.New(),
		Queue:      queueName,
		Attempts:   0,
		EnqueuedAt: time.Now().UTC(),
		Payload:    body,
	}

	encoded, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope failed: %w", err)
	}
	return encoded, nil
}

func queueKey(queueName string) string { return constants.RedisPrefixQueue + queueName }
func deadKey(queueName string) string  { return constants.RedisPrefixDead + queueName }
