package analysis

import (
	"context"
	"time"

	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// AnalysisCache stores finished analyses by content key.  Get returns an
// error carrying errors.ErrCodeCacheMiss when key is absent.
type AnalysisCache interface {
	Get(ctx context.Context, key string) (*pharma.PharmaceuticalAnalysis, error)
	Set(ctx context.Context, key string, a *pharma.PharmaceuticalAnalysis, ttl time.Duration) error
}

// EventPublisher delivers domain events to the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, events ...common.DomainEvent) error
}

// SearchIndex is the full-text index of analyzed papers.
type SearchIndex interface {
	Index(ctx context.Context, p pharma.PaperDTO) error
	// SearchByCompound returns one page of papers mentioning compound and the
	// total number of hits.
	SearchByCompound(ctx context.Context, compound string, offset, limit int) ([]pharma.PaperDTO, int, error)
}

// InteractionGraph records which compounds were observed interacting.
type InteractionGraph interface {
	RecordInteractions(ctx context.Context, paperID string, interactions []pharma.DrugInteraction) error
	Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error)
}

// ReportArchive keeps analysis reports in object storage.
type ReportArchive interface {
	// Put stores body under key and returns its location.
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

// Metrics receives application-level analysis telemetry.
type Metrics interface {
	RecordAnalysis(level pharma.RecommendationLevel, durationSeconds float64, compounds int)
	RecordCacheResult(hit bool)
}

type noopMetrics struct{}

func (noopMetrics) RecordAnalysis(pharma.RecommendationLevel, float64, int) {}
func (noopMetrics) RecordCacheResult(bool)                                 {}
