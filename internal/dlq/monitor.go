// Copyright (c) 2026 Serina. All rights reserved.
// Author: rin.owada.dev@gmail.com

/*
Package dlq watches dead-letter queue depth and raises severity-banded alerts.

The monitor samples each watched queue's dead-letter count, classifies it
against fixed thresholds, and fans the resulting alert out to registered
handlers. Alerting is advisory: the monitor never mutates the queues, and a
broken handler can neither block nor crash the sampling loop.
*/
package dlq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/owarin/serina/internal/queue"
)

// Alert types distinguish "a threshold was crossed" from "the backlog is at
// an operationally critical level".
const (
	TypeThreshold = "dlq_threshold"
	TypeCritical  = "dlq_critical"
)

// Severity bands for a dead-letter backlog.
const (
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Thresholds holds the inclusive lower bounds of each severity band.
type Thresholds struct {
	Warning  int64
	Error    int64
	Critical int64
}

// DefaultThresholds reflects operational experience: 50 parked jobs deserve
// a look, 200 mean something is systematically wrong, 500 mean ingestion has
// effectively stopped.
var DefaultThresholds = Thresholds{Warning: 50, Error: 200, Critical: 500}

// Alert is one classified dead-letter backlog report.
type Alert struct {
	Type         string    `json:"type"`
	Severity     string    `json:"severity"`
	Queue        string    `json:"queue"`
	FailureCount int64     `json:"failure_count"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
}

// Handler consumes alerts. Handlers run synchronously during a check and are
// isolated from each other: a panicking handler is logged and skipped.
type Handler func(alert Alert)

// Options tunes a [Monitor].
type Options struct {
	// Queues is the set of queue names whose dead-letter lists are watched.
	Queues []string

	// Thresholds are the severity band bounds. Zero-valued means [DefaultThresholds].
	Thresholds Thresholds

	// Cooldown suppresses repeat alerts of the same (queue, type) pair.
	// Zero disables suppression.
	Cooldown time.Duration

	// Interval between samples when running via [Monitor.Run].
	Interval time.Duration
}

// Monitor samples dead-letter depth and dispatches classified alerts.
type Monitor struct {
	producer queue.Producer
	options  Options
	logger   *slog.Logger

	mu        sync.Mutex
	handlers  map[int]Handler
	nextID    int
	lastFired map[string]time.Time // (queue, type) -> last dispatch
}

// NewMonitor constructs a monitor over the given queue transport.
func NewMonitor(producer queue.Producer, options Options, logger *slog.Logger) *Monitor {
	if options.Thresholds == (Thresholds{}) {
		options.Thresholds = DefaultThresholds
	}
	return &Monitor{
		producer:  producer,
		options:   options,
		logger:    logger,
		handlers:  make(map[int]Handler),
		lastFired: make(map[string]time.Time),
	}
}

// RegisterHandler adds an alert consumer and returns its unregister function.
// Unregistering is idempotent and safe during dispatch.
func (monitor *Monitor) RegisterHandler(handler Handler) (unregister func()) {
	monitor.mu.Lock()
	defer monitor.mu.Unlock()

	id := monitor.nextID
	monitor.nextID++
	monitor.handlers[id] = handler

	return func() {
		monitor.mu.Lock()
		defer monitor.mu.Unlock()
		delete(monitor.handlers, id)
	}
}

// Run samples the watched queues on the configured interval until ctx is
// cancelled.
func (monitor *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(monitor.options.Interval)
	defer ticker.Stop()

	monitor.logger.Info("dlq_monitor_started",
		slog.Duration("interval", monitor.options.Interval))

	for {
		select {
		case <-ctx.Done():
			monitor.logger.Info("dlq_monitor_stopped")
			return
		case <-ticker.C:
			monitor.CheckDLQHealth(ctx)
		}
	}
}

/*
CheckDLQHealth samples every watched queue once and dispatches alerts.

Description: Each queue's dead-letter count is classified independently; a
sampling failure on one queue is logged and never blocks the others.
Dispatched alerts respect the per-(queue, type) cooldown.

Parameters:
  - ctx: context.Context for the queue depth reads.

Returns:
  - []Alert: The alerts dispatched by this pass, for the ops endpoint.
*/
func (monitor *Monitor) CheckDLQHealth(ctx context.Context) []Alert {
	var dispatched []Alert

	for _, queueName := range monitor.options.Queues {
		count, err := monitor.producer.DeadCount(ctx, queueName)
		if err != nil {
			monitor.logger.Error("dlq_depth_read_failed",
				slog.String("queue", queueName), slog.String("error", err.Error()))
			continue
		}

		alert := ClassifyDepth(queueName, count, monitor.options.Thresholds)
		if alert == nil {
			continue
		}
		if monitor.dispatch(*alert) {
			dispatched = append(dispatched, *alert)
		}
	}

	return dispatched
}

/*
CheckCount classifies one externally supplied failure count and dispatches
the resulting alert.

Description: The depth-sampling loop is bypassed; cooldown and handler
dispatch behave exactly as in [Monitor.CheckDLQHealth]. This is the path for
callers that already know the backlog size.

Parameters:
  - queueName: string (Attribution for the alert)
  - count: int64 (Current failure count)

Returns:
  - *Alert: The dispatched alert, nil when healthy or suppressed.
*/
func (monitor *Monitor) CheckCount(queueName string, count int64) *Alert {
	return monitor.checkWith(queueName, count, monitor.options.Thresholds)
}

// CheckCountWithThresholds is [Monitor.CheckCount] with one-off threshold
// overrides. The monitor's configured thresholds are left untouched.
func (monitor *Monitor) CheckCountWithThresholds(queueName string, count int64, thresholds Thresholds) *Alert {
	return monitor.checkWith(queueName, count, thresholds)
}

func (monitor *Monitor) checkWith(queueName string, count int64, thresholds Thresholds) *Alert {
	alert := ClassifyDepth(queueName, count, thresholds)
	if alert == nil {
		return nil
	}
	if !monitor.dispatch(*alert) {
		return nil
	}
	return alert
}

/*
ClassifyDepth bands a dead-letter count into an alert.

Description: Pure classification, no side effects. Counts below the warning
threshold produce no alert. The critical band switches the alert type and
embeds both the count and the word CRITICAL in the message so paging rules
can match on either.

Parameters:
  - queueName: string
  - count: int64 (Current dead-letter depth)
  - thresholds: Thresholds (Inclusive band lower bounds)

Returns:
  - *Alert: The classified alert, or nil for a healthy depth.
*/
func ClassifyDepth(queueName string, count int64, thresholds Thresholds) *Alert {
	if count < thresholds.Warning {
		return nil
	}

	alert := &Alert{
		Queue:        queueName,
		FailureCount: count,
		Timestamp:    time.Now().UTC(),
	}

	switch {
	case count >= thresholds.Critical:
		alert.Type = TypeCritical
		alert.Severity = SeverityCritical
		alert.Message = fmt.Sprintf("CRITICAL: dead-letter queue %q holds %d failed jobs", queueName, count)
	case count >= thresholds.Error:
		alert.Type = TypeThreshold
		alert.Severity = SeverityError
		alert.Message = fmt.Sprintf("dead-letter queue %q holds %d failed jobs", queueName, count)
	default:
		alert.Type = TypeThreshold
		alert.Severity = SeverityWarning
		alert.Message = fmt.Sprintf("dead-letter queue %q holds %d failed jobs", queueName, count)
	}

	return alert
}

// dispatch fans the alert out to every handler, honoring the cooldown.
// It reports whether the alert actually fired.
func (monitor *Monitor) dispatch(alert Alert) bool {
	monitor.mu.Lock()

	cooldownKey := alert.Queue + "|" + alert.Type
	if monitor.options.Cooldown > 0 {
		if last, fired := monitor.lastFired[cooldownKey]; fired && time.Since(last) < monitor.options.Cooldown {
			monitor.mu.Unlock()
			return false
		}
	}
	monitor.lastFired[cooldownKey] = time.Now()

	handlers := make([]Handler, 0, len(monitor.handlers))
	for _, handler := range monitor.handlers {
		handlers = append(handlers, handler)
	}
	monitor.mu.Unlock()

	monitor.logger.Warn("dlq_alert",
		slog.String("queue", alert.Queue),
		slog.String("type", alert.Type),
		slog.String("severity", alert.Severity),
		slog.Int64("failure_count", alert.FailureCount),
	)

	for _, handler := range handlers {
		monitor.invoke(handler, alert)
	}
	return true
}

// invoke runs one handler, containing any panic to that handler alone.
func (monitor *Monitor) invoke(handler Handler, alert Alert) {
	defer func() {
		if recovered := recover(); recovered != nil {
			monitor.logger.Error("dlq_handler_panicked",
				slog.String("queue", alert.Queue),
				slog.Any("panic", recovered),
			)
		}
	}()
	handler(alert)
}
