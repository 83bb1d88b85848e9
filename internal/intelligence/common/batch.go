package common

import (
	"context"
	stdliberrors "errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/CureAnalytics/pkg/errors"
)

var (
	ErrShutdown     = stdliberrors.New("batch processor is shutting down")
	ErrBackpressure = stdliberrors.New("backpressure threshold exceeded")
)

// ItemStatus is the outcome of a single batch item.
type ItemStatus int

const (
	ItemStatusSuccess ItemStatus = iota
	ItemStatusFailed
	ItemStatusTimeout
	ItemStatusCancelled
)

func (s ItemStatus) String() string {
	switch s {
	case ItemStatusSuccess:
		return "SUCCESS"
	case ItemStatusFailed:
		return "FAILED"
	case ItemStatusTimeout:
		return "TIMEOUT"
	case ItemStatusCancelled:
		return "CANCELLED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(s))
	}
}

// ProcessFunc processes one item.
type ProcessFunc[T, R any] func(ctx context.Context, item T) (R, error)

// ItemResult holds the outcome of one item.  Index is the item's position in
// the input slice.
type ItemResult[R any] struct {
	Index      int        `json:"index"`
	Result     R          `json:"result"`
	Error      error      `json:"error,omitempty"`
	DurationMs float64    `json:"duration_ms"`
	Status     ItemStatus `json:"status"`
}

// BatchResult aggregates a batch run.  Results are ordered by input index.
type BatchResult[R any] struct {
	Results         []*ItemResult[R] `json:"results"`
	TotalCount      int              `json:"total_count"`
	SuccessCount    int              `json:"success_count"`
	FailureCount    int              `json:"failure_count"`
	TotalDurationMs float64          `json:"total_duration_ms"`
}

// BatchProcessor runs a function over many items with bounded concurrency.
type BatchProcessor[T, R any] interface {
	Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error)
	// Shutdown rejects new batches and waits for in-flight ones, or until ctx ends.
	Shutdown(ctx context.Context) error
}

// RetryPolicy governs how failed items are retried.  With no RetryableErrors
// every error is retried.
type RetryPolicy struct {
	MaxRetries        int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`
	BackoffMultiplier float64       `json:"backoff_multiplier" yaml:"backoff_multiplier" mapstructure:"backoff_multiplier"`
	RetryableErrors   []error       `json:"-" yaml:"-" mapstructure:"-"`
}

func shouldRetry(err error, policy *RetryPolicy) bool {
	if policy == nil || err == nil {
		return false
	}
	if stdliberrors.Is(err, context.Canceled) {
		return false
	}
	if len(policy.RetryableErrors) == 0 {
		return true
	}
	for _, re := range policy.RetryableErrors {
		if stdliberrors.Is(err, re) {
			return true
		}
	}
	return false
}

// calculateBackoff returns the delay before the attempt-th retry, capped at MaxBackoff.
func calculateBackoff(attempt int, policy *RetryPolicy) time.Duration {
	if policy == nil || policy.InitialBackoff <= 0 {
		return 0
	}
	multiplier := policy.BackoffMultiplier
	if multiplier <= 0 {
		multiplier = 2.0
	}
	d := float64(policy.InitialBackoff) * math.Pow(multiplier, float64(attempt))
	if policy.MaxBackoff > 0 && d > float64(policy.MaxBackoff) {
		d = float64(policy.MaxBackoff)
	}
	return time.Duration(d)
}

type batchConfig struct {
	maxConcurrency        int
	itemTimeout           time.Duration
	batchTimeout          time.Duration
	retryPolicy           *RetryPolicy
	backpressureThreshold int
	metrics               ExtractionMetrics
	logger                Logger
}

// BatchOption configures NewBatchProcessor.
type BatchOption func(*batchConfig)

// WithMaxConcurrency bounds the number of items processed at once.
func WithMaxConcurrency(n int) BatchOption {
	return func(c *batchConfig) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// WithItemTimeout bounds each item.
func WithItemTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.itemTimeout = d
		}
	}
}

// WithBatchTimeout bounds the whole batch.
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(c *batchConfig) {
		if d > 0 {
			c.batchTimeout = d
		}
	}
}

func WithRetryPolicy(p *RetryPolicy) BatchOption {
	return func(c *batchConfig) { c.retryPolicy = p }
}

// WithBackpressureThreshold rejects a batch when in-flight plus new items exceed n.
func WithBackpressureThreshold(n int) BatchOption {
	return func(c *batchConfig) { c.backpressureThreshold = n }
}

func WithBatchMetrics(m ExtractionMetrics) BatchOption {
	return func(c *batchConfig) { c.metrics = m }
}

func WithBatchLogger(l Logger) BatchOption {
	return func(c *batchConfig) { c.logger = l }
}

type batchProcessor[T, R any] struct {
	cfg *batchConfig

	shutdown atomic.Bool
	active   atomic.Int64
	pending  atomic.Int64
	drained  chan struct{}
}

// NewBatchProcessor builds a BatchProcessor.  Defaults: 8 workers, 30s per
// item, 5m per batch, no retries.
func NewBatchProcessor[T, R any](opts ...BatchOption) BatchProcessor[T, R] {
	cfg := &batchConfig{
		maxConcurrency: 8,
		itemTimeout:    30 * time.Second,
		batchTimeout:   5 * time.Minute,
	}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.metrics == nil {
		cfg.metrics = NewNoopExtractionMetrics()
	}
	if cfg.logger == nil {
		cfg.logger = NewNoopLogger()
	}
	return &batchProcessor[T, R]{cfg: cfg, drained: make(chan struct{}, 1)}
}

func (bp *batchProcessor[T, R]) Process(ctx context.Context, items []T, fn ProcessFunc[T, R]) (*BatchResult[R], error) {
	if fn == nil {
		return nil, errors.NewInvalidInputError("process function must not be nil")
	}
	if bp.shutdown.Load() {
		return nil, ErrShutdown
	}
	n := len(items)
	if n == 0 {
		return &BatchResult[R]{Results: []*ItemResult[R]{}}, nil
	}

	if t := bp.cfg.backpressureThreshold; t > 0 && bp.pending.Load()+int64(n) > int64(t) {
		return nil, ErrBackpressure
	}
	bp.pending.Add(int64(n))
	defer bp.pending.Add(-int64(n))

	bp.active.Add(1)
	defer func() {
		if bp.active.Add(-1) == 0 && bp.shutdown.Load() {
			select {
			case bp.drained <- struct{}{}:
			default:
			}
		}
	}()

	start := time.Now()
	batchCtx, cancel := context.WithTimeout(ctx, bp.cfg.batchTimeout)
	defer cancel()

	results := make([]*ItemResult[R], n)
	g := new(errgroup.Group)
	g.SetLimit(bp.cfg.maxConcurrency)
	for i := range items {
		idx, item := i, items[i]
		if err := batchCtx.Err(); err != nil {
			results[idx] = &ItemResult[R]{Index: idx, Error: err, Status: classifyCtxError(err)}
			continue
		}
		g.Go(func() error {
			results[idx] = bp.processOne(batchCtx, idx, item, fn)
			return nil
		})
	}
	_ = g.Wait()

	br := &BatchResult[R]{Results: results, TotalCount: n, TotalDurationMs: msSince(start)}
	for _, r := range results {
		if r.Status == ItemStatusSuccess {
			br.SuccessCount++
		} else {
			br.FailureCount++
		}
	}
	bp.cfg.metrics.RecordBatch(ctx, br.TotalCount, br.FailureCount, br.TotalDurationMs)
	if br.FailureCount > 0 {
		bp.cfg.logger.Warn("batch completed with failures", "total", n, "failed", br.FailureCount)
	}
	return br, nil
}

func (bp *batchProcessor[T, R]) processOne(batchCtx context.Context, idx int, item T, fn ProcessFunc[T, R]) *ItemResult[R] {
	start := time.Now()
	attempts := 1
	if p := bp.cfg.retryPolicy; p != nil && p.MaxRetries > 0 {
		attempts += p.MaxRetries
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			if delay := calculateBackoff(attempt-1, bp.cfg.retryPolicy); delay > 0 {
				select {
				case <-batchCtx.Done():
					return &ItemResult[R]{Index: idx, Error: batchCtx.Err(), Status: classifyCtxError(batchCtx.Err()), DurationMs: msSince(start)}
				case <-time.After(delay):
				}
			}
		}

		itemCtx, cancel := context.WithTimeout(batchCtx, bp.cfg.itemTimeout)
		result, err := fn(itemCtx, item)
		cancel()
		if err == nil {
			return &ItemResult[R]{Index: idx, Result: result, Status: ItemStatusSuccess, DurationMs: msSince(start)}
		}
		lastErr = err
		if !shouldRetry(err, bp.cfg.retryPolicy) {
			break
		}
	}
	return &ItemResult[R]{Index: idx, Error: lastErr, Status: classifyError(batchCtx, lastErr), DurationMs: msSince(start)}
}

func (bp *batchProcessor[T, R]) Shutdown(ctx context.Context) error {
	bp.shutdown.Store(true)
	for bp.active.Load() > 0 {
		select {
		case <-bp.drained:
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(10 * time.Millisecond):
		}
	}
	return nil
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}

func classifyCtxError(err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	default:
		return ItemStatusCancelled
	}
}

func classifyError(batchCtx context.Context, err error) ItemStatus {
	switch {
	case err == nil:
		return ItemStatusSuccess
	case stdliberrors.Is(err, context.DeadlineExceeded):
		return ItemStatusTimeout
	case stdliberrors.Is(err, context.Canceled):
		return ItemStatusCancelled
	}
	switch batchCtx.Err() {
	case context.DeadlineExceeded:
		return ItemStatusTimeout
	case context.Canceled:
		return ItemStatusCancelled
	}
	return ItemStatusFailed
}
