package pharma

import "time"

// ProcessingStatus tracks where a paper is in the analysis pipeline.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// IsValid reports whether s is a known status.
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s ProcessingStatus) String() string { return string(s) }

// PaperDTO is the wire representation of a research paper together with its
// analysis, if one has been produced.
type PaperDTO struct {
	ID               string                  `json:"id"`
	Title            string                  `json:"title"`
	Authors          []string                `json:"authors,omitempty"`
	Abstract         string                  `json:"abstract"`
	FullText         string                  `json:"full_text,omitempty"`
	Journal          string                  `json:"journal,omitempty"`
	PublishedDate    string                  `json:"published_date,omitempty"`
	DOI              string                  `json:"doi,omitempty"`
	PMID             string                  `json:"pmid,omitempty"`
	URL              string                  `json:"url,omitempty"`
	CitationsCount   *int                    `json:"citations_count,omitempty"`
	Keywords         []string                `json:"keywords,omitempty"`
	Analysis         *PharmaceuticalAnalysis `json:"pharmaceutical_analysis,omitempty"`
	ProcessingStatus ProcessingStatus        `json:"processing_status"`
	CreatedAt        time.Time               `json:"created_at,omitempty"`
	UpdatedAt        time.Time               `json:"updated_at,omitempty"`
}

// DrugSearchResult is a ranked page of papers with the compounds and
// combinations that stand out across them.
type DrugSearchResult struct {
	Papers                  []PaperDTO        `json:"papers"`
	TotalResults            int               `json:"total_results"`
	HasMore                 bool              `json:"has_more"`
	TopCompounds            []DrugCompound    `json:"top_compounds"`
	RecommendedCombinations []DrugInteraction `json:"recommended_combinations"`
}

// AnalyzeTextRequest asks for a stateless analysis of an arbitrary text.
type AnalyzeTextRequest struct {
	Abstract       string `json:"abstract"`
	FullText       string `json:"full_text,omitempty"`
	Journal        string `json:"journal,omitempty"`
	CitationsCount *int   `json:"citations_count,omitempty"`
}

// Text returns the concatenation every extractor consumes.
func (r AnalyzeTextRequest) Text() string {
	return r.Abstract + r.FullText
}

// InteractionPartner is a compound observed interacting with a queried compound.
type InteractionPartner struct {
	Compound        string          `json:"compound"`
	InteractionType InteractionType `json:"interaction_type"`
	Severity        Severity        `json:"severity"`
	PaperCount      int             `json:"paper_count"`
}
