package main

import (
	"context"
	"time"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/database/redis"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// reprocessRecorder receives reprocess outcome counts.
type reprocessRecorder interface {
	RecordReprocess(status pharma.ProcessingStatus, n int)
}

// submittedHandler analyzes the paper named by a paper.submitted event.
// Papers deleted before the event arrives, or already being analyzed by
// another caller, are skipped.
func submittedHandler(svc analysis.Service, log logging.Logger) kafka.Handler {
	return func(ctx context.Context, env *kafka.EventEnvelope) error {
		var evt paper.PaperSubmittedEvent
		if err := env.DecodePayload(&evt); err != nil {
			return err
		}
		id := common.ID(evt.PaperID)
		if err := id.Validate(); err != nil {
			return errors.Wrap(err, errors.ErrCodeEventInvalid, "paper.submitted carries an invalid paper id")
		}

		start := time.Now()
		p, err := svc.AnalyzeByID(ctx, id)
		switch {
		case errors.IsCode(err, errors.CodePaperNotFound):
			log.Warn("submitted paper no longer exists", logging.String("paper_id", evt.PaperID))
			return nil
		case errors.IsCode(err, errors.ErrCodeConflict), errors.IsCode(err, errors.CodePaperInvalidState):
			log.Info("submitted paper already being analyzed", logging.String("paper_id", evt.PaperID))
			return nil
		case err != nil:
			return err
		}
		log.Info("paper analyzed",
			logging.String("paper_id", evt.PaperID),
			logging.String("recommendation", string(p.Analysis.RecommendationLevel)),
			logging.Duration("duration", time.Since(start)))
		return nil
	}
}

// reprocessJob re-analyzes pending and failed papers.  With a lock only one
// worker replica runs a given tick.
type reprocessJob struct {
	svc     analysis.Service
	lock    *redis.Mutex
	limit   int
	timeout time.Duration
	metrics reprocessRecorder
	log     logging.Logger
}

func (j *reprocessJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}
	if j.lock == nil {
		return j.reprocess(ctx)
	}
	err := redis.WithLock(ctx, j.lock, j.reprocess)
	if errors.Is(err, redis.ErrLockNotAcquired) {
		j.log.Debug("reprocess skipped, another worker holds the lock")
		return nil
	}
	return err
}

func (j *reprocessJob) reprocess(ctx context.Context) error {
	res, err := j.svc.Reprocess(ctx, j.limit)
	if err != nil {
		return err
	}
	if j.metrics != nil {
		j.metrics.RecordReprocess(pharma.StatusCompleted, res.SuccessCount)
		j.metrics.RecordReprocess(pharma.StatusFailed, res.FailureCount)
	}
	if res.TotalCount > 0 {
		j.log.Info("reprocess finished",
			logging.Int("total", res.TotalCount),
			logging.Int("succeeded", res.SuccessCount),
			logging.Int("failed", res.FailureCount))
	}
	return nil
}
