package paper

import (
	"context"
	"time"

	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Repository is the persistence contract for papers.  Lookups of a missing
// paper return an error carrying errors.CodePaperNotFound.
type Repository interface {
	// Save inserts or updates p by ID.
	Save(ctx context.Context, p *Paper) error
	FindByID(ctx context.Context, id common.ID) (*Paper, error)
	FindByDOI(ctx context.Context, doi string) (*Paper, error)
	// ListByStatus returns up to limit papers in status, oldest update first.
	ListByStatus(ctx context.Context, status pharma.ProcessingStatus, limit int) ([]*Paper, error)
	// UpdateAnalysis stores analysis and status without touching bibliographic fields.
	UpdateAnalysis(ctx context.Context, id common.ID, analysis *pharma.PharmaceuticalAnalysis, status pharma.ProcessingStatus) error
	// Claim atomically moves id to processing.  It reports false when another
	// caller claimed the paper less than staleAfter ago, or when the paper
	// does not exist.
	Claim(ctx context.Context, id common.ID, staleAfter time.Duration) (bool, error)
}
