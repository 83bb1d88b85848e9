package main

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/database/redis"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/messaging/kafka"
	icommon "github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/internal/testutil"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// fakeService implements the two methods the worker calls; the embedded
// interface panics on anything else.
type fakeService struct {
	analysis.Service
	analyzed   []common.ID
	analyzeErr error
	reprocess  int
	result     *icommon.BatchResult[*paper.Paper]
}

func (f *fakeService) AnalyzeByID(_ context.Context, id common.ID) (*paper.Paper, error) {
	f.analyzed = append(f.analyzed, id)
	if f.analyzeErr != nil {
		return nil, f.analyzeErr
	}
	p := &paper.Paper{}
	p.ID = id
	p.Analysis = &pharma.PharmaceuticalAnalysis{RecommendationLevel: pharma.RecommendationConsider}
	return p, nil
}

func (f *fakeService) Reprocess(context.Context, int) (*icommon.BatchResult[*paper.Paper], error) {
	f.reprocess++
	if f.result == nil {
		return &icommon.BatchResult[*paper.Paper]{}, nil
	}
	return f.result, nil
}

type recordedReprocess struct {
	counts map[pharma.ProcessingStatus]int
}

func (r *recordedReprocess) RecordReprocess(status pharma.ProcessingStatus, n int) {
	if r.counts == nil {
		r.counts = map[pharma.ProcessingStatus]int{}
	}
	r.counts[status] += n
}

func submittedEnvelope(t *testing.T, id string) *kafka.EventEnvelope {
	t.Helper()
	p, err := paper.NewPaper("Metformin outcomes", "A phase II study of metformin.")
	require.NoError(t, err)
	evt := paper.NewPaperSubmittedEvent(p)
	evt.PaperID = id
	env, err := kafka.NewEventEnvelope(evt, "test")
	require.NoError(t, err)
	return env
}

func TestSubmittedHandler_AnalyzesPaper(t *testing.T) {
	svc := &fakeService{}
	log := testutil.NewMockLogger()
	id := common.NewID()

	err := submittedHandler(svc, log)(context.Background(), submittedEnvelope(t, id.String()))
	require.NoError(t, err)
	assert.Equal(t, []common.ID{id}, svc.analyzed)
	assert.True(t, log.HasMessage("info", "paper analyzed"))
}

func TestSubmittedHandler_SkipsMissingPaper(t *testing.T) {
	svc := &fakeService{analyzeErr: errors.New(errors.CodePaperNotFound, "gone")}
	log := testutil.NewMockLogger()

	err := submittedHandler(svc, log)(context.Background(), submittedEnvelope(t, common.NewID().String()))
	assert.NoError(t, err)
	assert.True(t, log.HasMessage("warn", "submitted paper no longer exists"))
}

func TestSubmittedHandler_SkipsPaperInProgress(t *testing.T) {
	svc := &fakeService{analyzeErr: errors.New(errors.ErrCodeConflict, "already being analyzed")}
	log := testutil.NewMockLogger()

	err := submittedHandler(svc, log)(context.Background(), submittedEnvelope(t, common.NewID().String()))
	assert.NoError(t, err)
	assert.True(t, log.HasMessage("info", "submitted paper already being analyzed"))
}

func TestSubmittedHandler_PropagatesFailures(t *testing.T) {
	svc := &fakeService{analyzeErr: errors.New(errors.ErrCodeServiceUnavailable, "db down")}
	err := submittedHandler(svc, testutil.NewMockLogger())(context.Background(), submittedEnvelope(t, common.NewID().String()))
	assert.True(t, errors.IsCode(err, errors.ErrCodeServiceUnavailable))
}

func TestSubmittedHandler_RejectsInvalidID(t *testing.T) {
	svc := &fakeService{}
	err := submittedHandler(svc, testutil.NewMockLogger())(context.Background(), submittedEnvelope(t, "not-a-uuid"))
	assert.True(t, errors.IsCode(err, errors.ErrCodeEventInvalid))
	assert.Empty(t, svc.analyzed)
}

func TestReprocessJob_RecordsOutcome(t *testing.T) {
	svc := &fakeService{result: &icommon.BatchResult[*paper.Paper]{TotalCount: 3, SuccessCount: 2, FailureCount: 1}}
	rec := &recordedReprocess{}
	log := testutil.NewMockLogger()
	job := &reprocessJob{svc: svc, limit: 10, metrics: rec, log: log}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, svc.reprocess)
	assert.Equal(t, 2, rec.counts[pharma.StatusCompleted])
	assert.Equal(t, 1, rec.counts[pharma.StatusFailed])
	assert.True(t, log.HasMessage("info", "reprocess finished"))
}

func TestReprocessJob_SkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()
	client, err := redis.NewClient(ctx, config.RedisConfig{Addr: mr.Addr()}, nil)
	require.NoError(t, err)
	defer client.Close()

	holder := redis.NewMutex(client, "test:", "reprocess", time.Minute, nil)
	ok, err := holder.TryLock(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	svc := &fakeService{}
	job := &reprocessJob{
		svc:  svc,
		lock: redis.NewMutex(client, "test:", "reprocess", time.Minute, nil),
		log:  testutil.NewMockLogger(),
	}
	require.NoError(t, job.Run(ctx))
	assert.Zero(t, svc.reprocess)

	require.NoError(t, holder.Unlock(ctx))
	require.NoError(t, job.Run(ctx))
	assert.Equal(t, 1, svc.reprocess)
}
