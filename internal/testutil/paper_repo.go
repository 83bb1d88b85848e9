package testutil

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// MemoryPaperRepo is an in-memory paper.Repository.  Stored papers are
// copied on the way in and out.  SaveErr and UpdateErr, when set, are
// returned by the matching call.
type MemoryPaperRepo struct {
	mu     sync.Mutex
	papers map[common.ID]paper.Paper

	SaveErr   error
	UpdateErr error
	Saves     int
}

func NewMemoryPaperRepo(seed ...*paper.Paper) *MemoryPaperRepo {
	r := &MemoryPaperRepo{papers: make(map[common.ID]paper.Paper)}
	for _, p := range seed {
		r.papers[p.ID] = *p
	}
	return r
}

func (r *MemoryPaperRepo) Save(_ context.Context, p *paper.Paper) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Saves++
	if r.SaveErr != nil {
		return r.SaveErr
	}
	cp := *p
	cp.ClearEvents()
	r.papers[p.ID] = cp
	return nil
}

func (r *MemoryPaperRepo) FindByID(_ context.Context, id common.ID) (*paper.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.papers[id]
	if !ok {
		return nil, errors.New(errors.CodePaperNotFound, "paper not found: "+id.String())
	}
	return &p, nil
}

func (r *MemoryPaperRepo) FindByDOI(_ context.Context, doi string) (*paper.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.papers {
		if doi != "" && strings.EqualFold(p.DOI, doi) {
			cp := p
			return &cp, nil
		}
	}
	return nil, errors.New(errors.CodePaperNotFound, "paper not found: "+doi)
}

func (r *MemoryPaperRepo) ListByStatus(_ context.Context, status pharma.ProcessingStatus, limit int) ([]*paper.Paper, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*paper.Paper
	for _, p := range r.papers {
		if p.Status == status {
			cp := p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryPaperRepo) UpdateAnalysis(_ context.Context, id common.ID, analysis *pharma.PharmaceuticalAnalysis, status pharma.ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.UpdateErr != nil {
		return r.UpdateErr
	}
	p, ok := r.papers[id]
	if !ok {
		return errors.New(errors.CodePaperNotFound, "paper not found: "+id.String())
	}
	p.Analysis = analysis
	p.Status = status
	r.papers[id] = p
	return nil
}

func (r *MemoryPaperRepo) Claim(_ context.Context, id common.ID, staleAfter time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.papers[id]
	if !ok {
		return false, nil
	}
	now := time.Now().UTC()
	if p.Status == pharma.StatusProcessing && now.Sub(p.UpdatedAt) < staleAfter {
		return false, nil
	}
	p.Status = pharma.StatusProcessing
	p.FailureReason = ""
	p.UpdatedAt = now
	r.papers[id] = p
	return true, nil
}

// Get returns the stored copy of id for assertions.
func (r *MemoryPaperRepo) Get(id common.ID) (paper.Paper, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.papers[id]
	return p, ok
}

var _ paper.Repository = (*MemoryPaperRepo)(nil)
