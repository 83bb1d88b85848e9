// Package paper implements the research-paper aggregate: its bibliographic
// record, the analysis attached to it and the processing lifecycle that
// governs when an analysis may be (re)computed.  Persistence and search are
// handled by adapters in the infrastructure layer.
package paper

import (
	"fmt"
	"strings"
	"time"

	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// ─────────────────────────────────────────────────────────────────────────────
// State machine
// ─────────────────────────────────────────────────────────────────────────────

// allowedTransitions lists the statuses reachable from each status.
//
//	pending ──► processing ──► completed
//	               ▲  │            │
//	               │  ▼            │
//	               failed ◄────────┘ (re-analysis goes through processing)
var allowedTransitions = map[pharma.ProcessingStatus][]pharma.ProcessingStatus{
	pharma.StatusPending:    {pharma.StatusProcessing},
	pharma.StatusProcessing: {pharma.StatusCompleted, pharma.StatusFailed},
	pharma.StatusFailed:     {pharma.StatusProcessing},
	pharma.StatusCompleted:  {pharma.StatusProcessing},
}

// CanTransition reports whether from → to is a legal status change.
func CanTransition(from, to pharma.ProcessingStatus) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Paper aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Paper is a research paper and its most recent pharmaceutical analysis.
// Status changes go through StartProcessing, Complete and Fail so that the
// lifecycle and domain events stay consistent.
type Paper struct {
	common.BaseEntity

	Title          string   `json:"title"`
	Authors        []string `json:"authors,omitempty"`
	Abstract       string   `json:"abstract"`
	FullText       string   `json:"full_text,omitempty"`
	Journal        string   `json:"journal,omitempty"`
	PublishedDate  string   `json:"published_date,omitempty"`
	DOI            string   `json:"doi,omitempty"`
	PMID           string   `json:"pmid,omitempty"`
	URL            string   `json:"url,omitempty"`
	CitationsCount *int     `json:"citations_count,omitempty"`
	Keywords       []string `json:"keywords,omitempty"`

	Analysis *pharma.PharmaceuticalAnalysis `json:"pharmaceutical_analysis,omitempty"`
	Status   pharma.ProcessingStatus        `json:"processing_status"`

	// FailureReason is set by Fail and cleared by StartProcessing.
	FailureReason string `json:"failure_reason,omitempty"`

	events []common.DomainEvent
}

// NewPaper creates a pending paper with a fresh ID.
func NewPaper(title, abstract string) (*Paper, error) {
	now := time.Now().UTC()
	p := &Paper{
		BaseEntity: common.BaseEntity{
			ID:        common.NewID(),
			CreatedAt: now,
			UpdatedAt: now,
			Version:   1,
		},
		Title:    strings.TrimSpace(title),
		Abstract: abstract,
		Status:   pharma.StatusPending,
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.recordEvent(NewPaperSubmittedEvent(p))
	return p, nil
}

// Validate checks the invariants every stored paper must satisfy.
func (p *Paper) Validate() error {
	if strings.TrimSpace(p.Title) == "" {
		return errors.New(errors.ErrCodePaperInvalid, "paper title is required")
	}
	if strings.TrimSpace(p.Abstract) == "" {
		return errors.New(errors.ErrCodePaperInvalid, "paper abstract is required")
	}
	if p.CitationsCount != nil && *p.CitationsCount < 0 {
		return errors.New(errors.ErrCodePaperInvalid, "citations count must not be negative")
	}
	if p.Status != "" && !p.Status.IsValid() {
		return errors.New(errors.ErrCodePaperInvalid, fmt.Sprintf("unknown processing status %q", p.Status))
	}
	return nil
}

// Text is the text every extractor consumes: the abstract followed directly
// by the full text.
func (p *Paper) Text() string {
	return p.Abstract + p.FullText
}

// Citations returns the citation count, or 0 when unknown.
func (p *Paper) Citations() int {
	if p.CitationsCount == nil {
		return 0
	}
	return *p.CitationsCount
}

// IsAnalyzed reports whether the paper carries a completed analysis.
func (p *Paper) IsAnalyzed() bool {
	return p.Status == pharma.StatusCompleted && p.Analysis != nil
}

// StartProcessing moves the paper into processing.
func (p *Paper) StartProcessing() error {
	if err := p.transition(pharma.StatusProcessing); err != nil {
		return err
	}
	p.FailureReason = ""
	return nil
}

// Complete attaches analysis and marks the paper completed.
func (p *Paper) Complete(analysis *pharma.PharmaceuticalAnalysis) error {
	if analysis == nil {
		return errors.InvalidParam("analysis must not be nil")
	}
	if err := p.transition(pharma.StatusCompleted); err != nil {
		return err
	}
	p.Analysis = analysis
	p.recordEvent(NewPaperAnalyzedEvent(p))
	return nil
}

// Fail marks the paper failed.  The previous analysis, if any, is kept.
func (p *Paper) Fail(reason string) error {
	if err := p.transition(pharma.StatusFailed); err != nil {
		return err
	}
	p.FailureReason = reason
	p.recordEvent(NewPaperAnalysisFailedEvent(p, reason))
	return nil
}

func (p *Paper) transition(to pharma.ProcessingStatus) error {
	if !CanTransition(p.Status, to) {
		return errors.New(errors.CodePaperInvalidState,
			fmt.Sprintf("illegal status transition %q → %q for paper %s", p.Status, to, p.ID),
		)
	}
	p.Status = to
	p.touch()
	return nil
}

// Events returns the domain events recorded since the last ClearEvents.
func (p *Paper) Events() []common.DomainEvent {
	out := make([]common.DomainEvent, len(p.events))
	copy(out, p.events)
	return out
}

// ClearEvents drops recorded events once they have been published.
func (p *Paper) ClearEvents() {
	p.events = nil
}

func (p *Paper) recordEvent(e common.DomainEvent) {
	p.events = append(p.events, e)
}

func (p *Paper) touch() {
	p.UpdatedAt = time.Now().UTC()
	p.Version++
}

// ─────────────────────────────────────────────────────────────────────────────
// DTO mapping
// ─────────────────────────────────────────────────────────────────────────────

// ToDTO converts the aggregate to its wire form.
func (p *Paper) ToDTO() pharma.PaperDTO {
	return pharma.PaperDTO{
		ID:               p.ID.String(),
		Title:            p.Title,
		Authors:          p.Authors,
		Abstract:         p.Abstract,
		FullText:         p.FullText,
		Journal:          p.Journal,
		PublishedDate:    p.PublishedDate,
		DOI:              p.DOI,
		PMID:             p.PMID,
		URL:              p.URL,
		CitationsCount:   p.CitationsCount,
		Keywords:         p.Keywords,
		Analysis:         p.Analysis,
		ProcessingStatus: p.Status,
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

// FromDTO rebuilds a paper from its wire form.  A missing ID is generated,
// a missing status defaults to pending and missing timestamps to now.
func FromDTO(dto pharma.PaperDTO) (*Paper, error) {
	now := time.Now().UTC()
	p := &Paper{
		BaseEntity: common.BaseEntity{
			ID:        common.ID(dto.ID),
			CreatedAt: dto.CreatedAt,
			UpdatedAt: dto.UpdatedAt,
			Version:   1,
		},
		Title:          strings.TrimSpace(dto.Title),
		Authors:        dto.Authors,
		Abstract:       dto.Abstract,
		FullText:       dto.FullText,
		Journal:        dto.Journal,
		PublishedDate:  dto.PublishedDate,
		DOI:            strings.TrimSpace(dto.DOI),
		PMID:           strings.TrimSpace(dto.PMID),
		URL:            dto.URL,
		CitationsCount: dto.CitationsCount,
		Keywords:       dto.Keywords,
		Analysis:       dto.Analysis,
		Status:         dto.ProcessingStatus,
	}
	if p.ID == "" {
		p.ID = common.NewID()
	} else if err := p.ID.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodePaperInvalid, "invalid paper id")
	}
	if p.Status == "" {
		p.Status = pharma.StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
