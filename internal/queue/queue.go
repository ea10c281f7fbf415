// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package queue defines the durable job transport used by the ingestion pipeline.

Delivery semantics are at-least-once: every consumer must be idempotent, and
duplicate delivery of the same job is expected rather than prevented here.
Jobs that exhaust their retries are parked on a per-queue dead-letter list
whose length drives the DLQ health monitor.
*/
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// # Job Payloads

// IngestJob is one normalized chapter observation emitted by the poller.
//
// SourceChapterID has no omitempty tag: a missing upstream identifier must
// serialize as an explicit JSON null for backward compatibility with sources
// that predate the field.
type IngestJob struct {
	SeriesID        string    `json:"seriesId"`
	SeriesSourceID  string    `json:"seriesSourceId"`
	ChapterNumber   *string   `json:"chapterNumber,omitempty"`
	ChapterSlug     *string   `json:"chapterSlug,omitempty"`
	ChapterTitle    *string   `json:"chapterTitle,omitempty"`
	ChapterURL      string    `json:"chapterUrl"`
	SourceChapterID *string   `json:"sourceChapterId"`
	PublishedAt     time.Time `json:"publishedAt"`
}

// NotifyJob requests an end-user notification for a newly observed chapter.
// Delivery is an external collaborator's concern; this process only enqueues.
type NotifyJob struct {
	ChapterID string `json:"chapterId"`
	SeriesID  string `json:"seriesId"`
	Title     string `json:"title"`
	URL       string `json:"url"`
}

// Envelope wraps a payload with delivery bookkeeping.
type Envelope struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
	Payload    json.RawMessage `json:"payload"`
}

// Decode unmarshals the envelope payload into target.
func (e *Envelope) Decode(target any) error {
	return json.Unmarshal(e.Payload, target)
}

// # Contracts

// Producer is the enqueue side of the transport.
type Producer interface {

	// Enqueue appends one job to the named queue.
	Enqueue(ctx context.Context, queueName string, payload any) error

	// EnqueueBulk appends many jobs in a single round-trip.
	EnqueueBulk(ctx context.Context, queueName string, payloads []any) error

	// PendingCount returns the number of jobs waiting on the named queue.
	PendingCount(ctx context.Context, queueName string) (int64, error)

	// DeadCount returns the number of jobs parked on the queue's dead-letter list.
	DeadCount(ctx context.Context, queueName string) (int64, error)
}

// Consumer is the worker-side contract.
type Consumer interface {

	// Dequeue blocks up to wait for the next job. A nil envelope with a nil
	// error means the wait elapsed with nothing to do.
	Dequeue(ctx context.Context, queueName string, wait time.Duration) (*Envelope, error)

	// Retry re-enqueues a job after a transient failure, preserving its
	// attempt count (incremented by one).
	Retry(ctx context.Context, envelope *Envelope) error

	// DeadLetter parks a job on the dead-letter list with a failure reason.
	DeadLetter(ctx context.Context, envelope *Envelope, reason string) error
}
