package common

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcess_AllSuccess(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	res, err := bp.Process(context.Background(), []string{"a", "b", "c"}, func(ctx context.Context, item string) (string, error) {
		return item + "_processed", nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, 0, res.FailureCount)
	for i, want := range []string{"a_processed", "b_processed", "c_processed"} {
		assert.Equal(t, i, res.Results[i].Index)
		assert.Equal(t, want, res.Results[i].Result)
	}
}

func TestProcess_AllFailure(t *testing.T) {
	bp := NewBatchProcessor[string, string]()
	res, err := bp.Process(context.Background(), []string{"a", "b"}, func(ctx context.Context, item string) (string, error) {
		return "", errors.New("failed")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.FailureCount)
	assert.Equal(t, ItemStatusFailed, res.Results[0].Status)
	assert.Error(t, res.Results[0].Error)
}

func TestProcess_Empty(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	res, err := bp.Process(context.Background(), nil, func(ctx context.Context, i int) (int, error) { return i, nil })
	require.NoError(t, err)
	assert.Empty(t, res.Results)
}

func TestProcess_NilFunc(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	_, err := bp.Process(context.Background(), []int{1}, nil)
	assert.Error(t, err)
}

func TestProcess_ConcurrencyLimit(t *testing.T) {
	var current, peak int32
	bp := NewBatchProcessor[int, int](WithMaxConcurrency(2))

	_, err := bp.Process(context.Background(), []int{1, 2, 3, 4, 5, 6}, func(ctx context.Context, item int) (int, error) {
		n := atomic.AddInt32(&current, 1)
		defer atomic.AddInt32(&current, -1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return item, nil
	})
	require.NoError(t, err)
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestProcess_ItemTimeout(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithItemTimeout(10 * time.Millisecond))
	res, err := bp.Process(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	require.NoError(t, err)
	assert.Equal(t, ItemStatusTimeout, res.Results[0].Status)
}

func TestProcess_Retry(t *testing.T) {
	var calls int32
	bp := NewBatchProcessor[int, int](WithRetryPolicy(&RetryPolicy{MaxRetries: 2}))
	res, err := bp.Process(context.Background(), []int{7}, func(ctx context.Context, item int) (int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return 0, errors.New("transient")
		}
		return item, nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, ItemStatusSuccess, res.Results[0].Status)
	assert.Equal(t, 7, res.Results[0].Result)
}

func TestProcess_RecordsMetrics(t *testing.T) {
	m := NewInMemoryExtractionMetrics()
	bp := NewBatchProcessor[int, int](WithBatchMetrics(m))
	_, err := bp.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) {
		if item == 2 {
			return 0, errors.New("boom")
		}
		return item, nil
	})
	require.NoError(t, err)
	batches, failed := m.Batches()
	assert.Equal(t, 1, batches)
	assert.Equal(t, 1, failed)
}

func TestProcess_Backpressure(t *testing.T) {
	bp := NewBatchProcessor[int, int](WithBackpressureThreshold(2))
	_, err := bp.Process(context.Background(), []int{1, 2, 3}, func(ctx context.Context, item int) (int, error) { return item, nil })
	assert.ErrorIs(t, err, ErrBackpressure)
}

func TestShutdown_RejectsNewBatches(t *testing.T) {
	bp := NewBatchProcessor[int, int]()
	require.NoError(t, bp.Shutdown(context.Background()))
	_, err := bp.Process(context.Background(), []int{1}, func(ctx context.Context, item int) (int, error) { return item, nil })
	assert.ErrorIs(t, err, ErrShutdown)
}

func TestCalculateBackoff(t *testing.T) {
	p := &RetryPolicy{InitialBackoff: 10 * time.Millisecond, MaxBackoff: 30 * time.Millisecond}
	assert.Equal(t, 10*time.Millisecond, calculateBackoff(0, p))
	assert.Equal(t, 20*time.Millisecond, calculateBackoff(1, p))
	assert.Equal(t, 30*time.Millisecond, calculateBackoff(5, p))
	assert.Zero(t, calculateBackoff(0, nil))
}

func TestItemStatus_String(t *testing.T) {
	assert.Equal(t, "SUCCESS", ItemStatusSuccess.String())
	assert.Equal(t, "TIMEOUT", ItemStatusTimeout.String())
	assert.Equal(t, "UNKNOWN(9)", ItemStatus(9).String())
}
