package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteSuccessNoRetry(t *testing.T) {
	e := New(Config{MaxConcurrency: 2, PerOperationTimeout: time.Second})
	var calls int32
	outcome := e.Execute(context.Background(), func(ctx context.Context) (model.Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return model.Outcome{Kind: model.OutcomeSuccess}, nil
	})
	assert.Equal(t, model.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

// Testable property (spec.md §8): executor with retry_count=0 attempts
// each case exactly once.
func TestExecuteRetryCountZeroAttemptsOnce(t *testing.T) {
	e := New(Config{MaxConcurrency: 1, PerOperationTimeout: time.Second, Retry: RetryPolicy{Count: 0}})
	var calls int32
	outcome := e.Execute(context.Background(), func(ctx context.Context) (model.Outcome, error) {
		atomic.AddInt32(&calls, 1)
		return model.Outcome{Kind: model.OutcomeTimeout}, nil
	})
	assert.Equal(t, model.OutcomeTimeout, outcome.Kind)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestExecuteRetriesRetryableOutcome(t *testing.T) {
	e := New(Config{
		MaxConcurrency:      1,
		PerOperationTimeout: time.Second,
		Retry:               RetryPolicy{Count: 3, BaseDelay: time.Millisecond, Backoff: 2, Jitter: 0},
	})
	var calls int32
	outcome := e.Execute(context.Background(), func(ctx context.Context) (model.Outcome, error) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			return model.Outcome{Kind: model.OutcomeTransportError, TransportKind: model.TransportRetryable}, nil
		}
		return model.Outcome{Kind: model.OutcomeSuccess}, nil
	})
	assert.Equal(t, model.OutcomeSuccess, outcome.Kind)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestExecuteTimesOutSlowOperation(t *testing.T) {
	e := New(Config{MaxConcurrency: 1, PerOperationTimeout: 20 * time.Millisecond})
	outcome := e.Execute(context.Background(), func(ctx context.Context) (model.Outcome, error) {
		<-ctx.Done()
		return model.Outcome{}, ctx.Err()
	})
	assert.Equal(t, model.OutcomeTimeout, outcome.Kind)
}

// Testable property (spec.md §8): with max_concurrency=N, at no instant
// are more than N operations outstanding.
func TestExecuteBatchRespectsConcurrencyBound(t *testing.T) {
	e := New(Config{MaxConcurrency: 2, PerOperationTimeout: time.Second})
	var inFlight, maxSeen int32

	items := make([]BatchItem, 10)
	for i := range items {
		items[i] = BatchItem{Op: func(ctx context.Context) (model.Outcome, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				cur := atomic.LoadInt32(&maxSeen)
				if n <= cur || atomic.CompareAndSwapInt32(&maxSeen, cur, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return model.Outcome{Kind: model.OutcomeSuccess}, nil
		}}
	}

	results := e.ExecuteBatch(context.Background(), items)
	require.Len(t, results, 10)
	for _, r := range results {
		assert.Equal(t, model.OutcomeSuccess, r.Kind)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&maxSeen), int32(2))
}

func TestExecuteBatchPreservesOrder(t *testing.T) {
	e := New(Config{MaxConcurrency: 4, PerOperationTimeout: time.Second})
	items := make([]BatchItem, 5)
	for i := range items {
		i := i
		items[i] = BatchItem{Op: func(ctx context.Context) (model.Outcome, error) {
			time.Sleep(time.Duration(5-i) * time.Millisecond)
			return model.Outcome{Kind: model.OutcomeSuccess, ProtoCode: i}, nil
		}}
	}
	results := e.ExecuteBatch(context.Background(), items)
	for i, r := range results {
		assert.Equal(t, i, r.ProtoCode)
	}
}

func TestExecuteCancellation(t *testing.T) {
	e := New(Config{MaxConcurrency: 1, PerOperationTimeout: time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	outcome := e.Execute(ctx, func(ctx context.Context) (model.Outcome, error) {
		return model.Outcome{Kind: model.OutcomeSuccess}, nil
	})
	assert.Equal(t, model.OutcomeCancelled, outcome.Kind)
}
