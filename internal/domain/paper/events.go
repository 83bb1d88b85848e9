package paper

import (
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Event types, also used as message-bus topic suffixes.
const (
	EventPaperSubmitted      = "paper.submitted"
	EventPaperAnalyzed       = "paper.analyzed"
	EventPaperAnalysisFailed = "paper.analysis_failed"
)

// PaperSubmittedEvent announces a paper waiting for analysis.
type PaperSubmittedEvent struct {
	common.BaseEvent
	PaperID string `json:"paper_id"`
	DOI     string `json:"doi,omitempty"`
	Title   string `json:"title"`
}

func NewPaperSubmittedEvent(p *Paper) *PaperSubmittedEvent {
	return &PaperSubmittedEvent{
		BaseEvent: common.NewBaseEvent(EventPaperSubmitted, p.ID.String()),
		PaperID:   p.ID.String(),
		DOI:       p.DOI,
		Title:     p.Title,
	}
}

// PaperAnalyzedEvent carries the headline figures of a completed analysis.
type PaperAnalyzedEvent struct {
	common.BaseEvent
	PaperID             string                     `json:"paper_id"`
	DOI                 string                     `json:"doi,omitempty"`
	Journal             string                     `json:"journal,omitempty"`
	PharmaceuticalScore float64                    `json:"pharmaceutical_score"`
	QualityScore        float64                    `json:"quality_score"`
	EvidenceQuality     pharma.EvidenceQuality     `json:"evidence_quality"`
	Recommendation      pharma.RecommendationLevel `json:"recommendation_level"`
	Compounds           []string                   `json:"compounds,omitempty"`
	InteractionCount    int                        `json:"interaction_count"`
	Version             int                        `json:"version"`
}

func NewPaperAnalyzedEvent(p *Paper) *PaperAnalyzedEvent {
	e := &PaperAnalyzedEvent{
		BaseEvent: common.NewBaseEvent(EventPaperAnalyzed, p.ID.String()),
		PaperID:   p.ID.String(),
		DOI:       p.DOI,
		Journal:   p.Journal,
		Version:   p.Version,
	}
	if a := p.Analysis; a != nil {
		e.PharmaceuticalScore = a.PharmaceuticalScore
		e.QualityScore = a.QualityScore
		e.EvidenceQuality = a.EvidenceQuality
		e.Recommendation = a.RecommendationLevel
		e.InteractionCount = len(a.DrugInteractions)
		for _, c := range a.DrugCompounds {
			e.Compounds = append(e.Compounds, c.Name)
		}
	}
	return e
}

// PaperAnalysisFailedEvent records why an analysis run failed.
type PaperAnalysisFailedEvent struct {
	common.BaseEvent
	PaperID string `json:"paper_id"`
	Reason  string `json:"reason"`
}

func NewPaperAnalysisFailedEvent(p *Paper, reason string) *PaperAnalysisFailedEvent {
	return &PaperAnalysisFailedEvent{
		BaseEvent: common.NewBaseEvent(EventPaperAnalysisFailed, p.ID.String()),
		PaperID:   p.ID.String(),
		Reason:    reason,
	}
}
