package drug_extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/pkg/errors"
)

// TaggedEntity is one span labelled by the biomedical entity tagger.
type TaggedEntity struct {
	SurfaceForm string  `json:"word"`
	CategoryTag string  `json:"entity_group"`
	Score       float64 `json:"score"`
}

// EntityTagger labels biomedical entities in free text.
type EntityTagger interface {
	Tag(ctx context.Context, text string) ([]TaggedEntity, error)
}

// TaggerFactory builds an EntityTagger.  It may be slow (model warm-up).
type TaggerFactory func(ctx context.Context) (EntityTagger, error)

// LazyTagger defers tagger construction until first use.  Initialisation runs
// at most once per LazyTagger; if it fails, every later call reports the same
// error and callers stay on the lexicon path.
type LazyTagger struct {
	factory     TaggerFactory
	initTimeout time.Duration
	logger      common.Logger

	once   sync.Once
	ready  atomic.Bool
	tagger EntityTagger
	err    error
}

// NewLazyTagger wraps factory.  A non-positive initTimeout means 30s.
func NewLazyTagger(factory TaggerFactory, initTimeout time.Duration, logger common.Logger) *LazyTagger {
	if initTimeout <= 0 {
		initTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = common.NewNoopLogger()
	}
	return &LazyTagger{factory: factory, initTimeout: initTimeout, logger: logger}
}

// EnsureReady initialises the tagger.  Concurrent callers block on the same
// initialisation.  Cancelling the caller's ctx does not abort a started init;
// only the init timeout does.
func (l *LazyTagger) EnsureReady(ctx context.Context) error {
	l.once.Do(func() {
		if l.factory == nil {
			l.err = errors.New(errors.ErrCodeTaggerInitFailed, "no tagger factory configured")
			return
		}
		initCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.initTimeout)
		defer cancel()

		start := time.Now()
		t, err := l.build(initCtx)
		switch {
		case err != nil:
			l.err = errors.Wrap(err, errors.ErrCodeTaggerInitFailed, "entity tagger initialisation failed")
		case t == nil:
			l.err = errors.New(errors.ErrCodeTaggerInitFailed, "tagger factory returned nil")
		default:
			l.tagger = t
		}
		if l.err != nil {
			l.logger.Warn("entity tagger unavailable, using lexicon fallback", "error", l.err)
			return
		}
		l.ready.Store(true)
		l.logger.Info("entity tagger ready", "init_ms", time.Since(start).Milliseconds())
	})
	return l.err
}

type buildResult struct {
	tagger EntityTagger
	err    error
}

// build runs the factory on its own goroutine so the init timeout holds even
// for a factory that ignores ctx.
func (l *LazyTagger) build(ctx context.Context) (EntityTagger, error) {
	done := make(chan buildResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- buildResult{err: fmt.Errorf("tagger factory panicked: %v", r)}
			}
		}()
		t, err := l.factory(ctx)
		done <- buildResult{tagger: t, err: err}
	}()

	select {
	case r := <-done:
		return r.tagger, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Ready reports whether initialisation has completed successfully.  It never
// triggers initialisation.
func (l *LazyTagger) Ready() bool {
	return l.ready.Load()
}

// Tag initialises the tagger if needed and delegates to it.
func (l *LazyTagger) Tag(ctx context.Context, text string) ([]TaggedEntity, error) {
	if err := l.EnsureReady(ctx); err != nil {
		return nil, err
	}
	return l.tagger.Tag(ctx, text)
}

// ---------------------------------------------------------------------------
// Serving-backed tagger
// ---------------------------------------------------------------------------

// ServingTagger runs a token-classification model hosted behind a ServingClient.
// The model takes the raw text as a JSON string and returns aggregated entity
// groups.
type ServingTagger struct {
	client    common.ServingClient
	modelName string
	timeout   time.Duration
}

// NewServingTagger returns a tagger calling modelName on client.  A
// non-positive timeout leaves deadlines to the caller's context.
func NewServingTagger(client common.ServingClient, modelName string, timeout time.Duration) (*ServingTagger, error) {
	if client == nil {
		return nil, errors.NewInvalidInputError("serving client is required")
	}
	if modelName == "" {
		return nil, errors.NewInvalidInputError("model name is required")
	}
	return &ServingTagger{client: client, modelName: modelName, timeout: timeout}, nil
}

// ServingTaggerFactory returns a TaggerFactory that checks the serving endpoint
// is healthy before handing out a ServingTagger.
func ServingTaggerFactory(client common.ServingClient, modelName string, timeout time.Duration) TaggerFactory {
	return func(ctx context.Context) (EntityTagger, error) {
		t, err := NewServingTagger(client, modelName, timeout)
		if err != nil {
			return nil, err
		}
		if err := client.Healthy(ctx); err != nil {
			return nil, err
		}
		return t, nil
	}
}

func (t *ServingTagger) Tag(ctx context.Context, text string) ([]TaggedEntity, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}
	inputs, err := json.Marshal(text)
	if err != nil {
		return nil, fmt.Errorf("encode tagger input: %w", err)
	}
	resp, err := t.client.Predict(ctx, &common.PredictRequest{ModelName: t.modelName, Inputs: inputs})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTaggerUnavailable, "entity tagging failed")
	}
	var entities []TaggedEntity
	if err := json.Unmarshal(resp.Outputs, &entities); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTaggerBadResponse, "decode tagger output")
	}
	return entities, nil
}
