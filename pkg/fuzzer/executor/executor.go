// Package executor implements the Async Executor of spec.md §4.3: a
// bounded-concurrency task pool with per-operation timeout and
// retry-with-backoff, built the way the teacher's generate_video.go
// fans out parallel calls (goroutines + a buffered result channel
// collected in input order) and retried with pkg/internal/retry.
package executor

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/internal/retry"
	"github.com/mcpconform/fuzzer/pkg/telemetry"
)

// RetryPolicy mirrors spec.md §6: retry{count, base_delay, backoff}.
type RetryPolicy struct {
	Count     int
	BaseDelay time.Duration
	Backoff   float64
	Jitter    float64
}

// Config carries the three knobs spec.md §4.3 names.
type Config struct {
	MaxConcurrency      int
	PerOperationTimeout time.Duration
	Retry               RetryPolicy
	// RateLimit optionally shapes request submission above the
	// concurrency semaphore (spec.md §5 bounded resources; grounded on
	// the teacher's rate-limiting middleware example).
	RateLimit rate.Limit
	Logger    logging.Logger
	// Telemetry enables a span around every Execute call. Nil disables
	// tracing entirely (telemetry.GetTracer returns a no-op tracer for a
	// disabled Settings, so this field may also be left nil and Execute
	// still behaves correctly).
	Telemetry *telemetry.Settings
}

// Operation is a unit of work the executor dispatches: it sends one
// TestCase through the transport and returns the resulting Outcome.
type Operation func(ctx context.Context) (model.Outcome, error)

// Executor runs Operations under bounded concurrency with per-operation
// timeout, retry and cancellation (spec.md §4.3, §5).
type Executor struct {
	cfg     Config
	sem     chan struct{}
	limiter *rate.Limiter
	tracer  trace.Tracer
}

func New(cfg Config) *Executor {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 5
	}
	if cfg.PerOperationTimeout <= 0 {
		cfg.PerOperationTimeout = 30 * time.Second
	}
	cfg.Logger = logging.Or(cfg.Logger)

	e := &Executor{cfg: cfg, sem: make(chan struct{}, cfg.MaxConcurrency), tracer: telemetry.GetTracer(cfg.Telemetry)}
	if cfg.RateLimit > 0 {
		e.limiter = rate.NewLimiter(cfg.RateLimit, cfg.MaxConcurrency)
	}
	return e
}

// Execute races op against the per-operation timeout, retrying on
// Retryable/Timeout outcomes up to Retry.Count times with exponential
// backoff and jitter (spec.md §4.3 "Operation contract"). When telemetry
// is enabled, the whole call (including retries) runs inside one span.
func (e *Executor) Execute(ctx context.Context, op Operation) model.Outcome {
	outcome, _ := telemetry.RecordSpan(ctx, e.tracer, telemetry.SpanOptions{
		Name:        "fuzzer.execute",
		EndWhenDone: true,
	}, func(ctx context.Context, span trace.Span) (model.Outcome, error) {
		o := e.execute(ctx, op)
		span.SetAttributes(attribute.String("outcome.kind", o.Kind.String()))
		return o, nil
	})
	return outcome
}

func (e *Executor) execute(ctx context.Context, op Operation) model.Outcome {
	if ctx.Err() != nil {
		return model.Outcome{Kind: model.OutcomeCancelled}
	}
	select {
	case e.sem <- struct{}{}:
	case <-ctx.Done():
		return model.Outcome{Kind: model.OutcomeCancelled}
	}
	defer func() { <-e.sem }()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			return model.Outcome{Kind: model.OutcomeCancelled}
		}
	}

	var outcome model.Outcome
	retryCfg := retry.Config{
		MaxRetries:     e.cfg.Retry.Count,
		InitialDelay:   e.cfg.Retry.BaseDelay,
		MaxDelay:       30 * time.Second,
		Multiplier:     e.cfg.Retry.Backoff,
		Jitter:         e.cfg.Retry.Count > 0,
		JitterFraction: e.cfg.Retry.Jitter,
	}
	if retryCfg.Multiplier == 0 {
		retryCfg.Multiplier = 2.0
	}

	// fn only ever returns an error when the outcome is retryable, so
	// retry.Do's default "retry every error" behavior is exactly right.
	err := retry.Do(ctx, retryCfg, func(ctx context.Context) error {
		outcome = e.runOnce(ctx, op)
		if isRetryableOutcome(outcome) {
			return errRetryable
		}
		return nil
	})
	if err != nil && ctx.Err() != nil {
		return model.Outcome{Kind: model.OutcomeCancelled}
	}
	return outcome
}

var errRetryable = retryableSentinel{}

type retryableSentinel struct{}

func (retryableSentinel) Error() string { return "retryable outcome" }

func isRetryableOutcome(o model.Outcome) bool {
	if o.Kind == model.OutcomeTimeout {
		return true
	}
	if o.Kind == model.OutcomeTransportError {
		return o.TransportKind == model.TransportRetryable || o.TransportKind == model.TransportTimeout
	}
	return false
}

func (e *Executor) runOnce(ctx context.Context, op Operation) model.Outcome {
	opCtx, cancel := context.WithTimeout(ctx, e.cfg.PerOperationTimeout)
	defer cancel()

	type result struct {
		outcome model.Outcome
		err     error
	}
	done := make(chan result, 1)
	go func() {
		outcome, err := op(opCtx)
		done <- result{outcome, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return model.Outcome{Kind: model.OutcomeTransportError, TransportKind: model.TransportRetryable}
		}
		return r.outcome
	case <-opCtx.Done():
		if ctx.Err() != nil {
			return model.Outcome{Kind: model.OutcomeCancelled}
		}
		return model.Outcome{Kind: model.OutcomeTimeout}
	}
}

// BatchItem wraps one Operation for ExecuteBatch, which returns results in
// input order regardless of completion order (spec.md §4.3 "Batch
// contract").
type BatchItem struct {
	Op Operation
}

// ExecuteBatch runs every item concurrently (bounded by the same
// semaphore) and collects results in input order; a slow operation does
// not delay collection of earlier ones beyond the semaphore itself.
func (e *Executor) ExecuteBatch(ctx context.Context, items []BatchItem) []model.Outcome {
	results := make([]model.Outcome, len(items))
	var wg sync.WaitGroup
	wg.Add(len(items))
	for i, item := range items {
		go func(i int, item BatchItem) {
			defer wg.Done()
			results[i] = e.Execute(ctx, item.Op)
		}(i, item)
	}
	wg.Wait()
	return results
}
