// Package pharma defines the pharmaceutical-analysis data types shared by the
// extraction engine, the scoring engine, the application layer and the public
// client.  Only plain data types and small pure helpers live here so the
// package can be imported from any layer.
package pharma

import (
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// CompoundType
// ─────────────────────────────────────────────────────────────────────────────

// CompoundType classifies the role of a drug compound mentioned in a paper.
type CompoundType string

const (
	CompoundActiveIngredient CompoundType = "active_ingredient"
	CompoundExcipient        CompoundType = "excipient"
	CompoundMetabolite       CompoundType = "metabolite"
	CompoundCombination      CompoundType = "combination"
)

// IsValid reports whether t is a known compound type.
func (t CompoundType) IsValid() bool {
	switch t {
	case CompoundActiveIngredient, CompoundExcipient, CompoundMetabolite, CompoundCombination:
		return true
	}
	return false
}

func (t CompoundType) String() string { return string(t) }

// ─────────────────────────────────────────────────────────────────────────────
// TrialPhase
// ─────────────────────────────────────────────────────────────────────────────

// TrialPhase is the clinical development phase a paper reports on.
type TrialPhase string

const (
	PhasePreclinical TrialPhase = "preclinical"
	PhaseI           TrialPhase = "phase_i"
	PhaseII          TrialPhase = "phase_ii"
	PhaseIII         TrialPhase = "phase_iii"
	PhaseIV          TrialPhase = "phase_iv"
	PhaseUnknown     TrialPhase = "unknown"
)

// PhaseOrder is the total order over clinical phases, least advanced first.
// PhaseUnknown is outside the order.
var PhaseOrder = []TrialPhase{PhasePreclinical, PhaseI, PhaseII, PhaseIII, PhaseIV}

// Rank returns the index of p in PhaseOrder, or -1 when p is unknown or invalid.
func (p TrialPhase) Rank() int {
	for i, ph := range PhaseOrder {
		if ph == p {
			return i
		}
	}
	return -1
}

// IsValid reports whether p is a known phase, including PhaseUnknown.
func (p TrialPhase) IsValid() bool {
	return p == PhaseUnknown || p.Rank() >= 0
}

func (p TrialPhase) String() string { return string(p) }

// ─────────────────────────────────────────────────────────────────────────────
// InteractionType / Severity
// ─────────────────────────────────────────────────────────────────────────────

// InteractionType is the pharmacological character of a drug-drug interaction.
type InteractionType string

const (
	InteractionSynergistic     InteractionType = "synergistic"
	InteractionAntagonistic    InteractionType = "antagonistic"
	InteractionAdditive        InteractionType = "additive"
	InteractionContraindicated InteractionType = "contraindicated"
)

// IsValid reports whether t is a known interaction type.
func (t InteractionType) IsValid() bool {
	switch t {
	case InteractionSynergistic, InteractionAntagonistic, InteractionAdditive, InteractionContraindicated:
		return true
	}
	return false
}

func (t InteractionType) String() string { return string(t) }

// Severity grades the clinical risk of an interaction.
type Severity string

const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
	SeverityUnknown  Severity = "unknown"
)

// IsValid reports whether s is a known severity.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityMild, SeverityModerate, SeveritySevere, SeverityUnknown:
		return true
	}
	return false
}

func (s Severity) String() string { return string(s) }

// ─────────────────────────────────────────────────────────────────────────────
// EvidenceQuality / RecommendationLevel
// ─────────────────────────────────────────────────────────────────────────────

// EvidenceQuality is the categorical verdict on how strong a paper's evidence is.
type EvidenceQuality string

const (
	EvidenceHigh   EvidenceQuality = "high"
	EvidenceMedium EvidenceQuality = "medium"
	EvidenceLow    EvidenceQuality = "low"
)

// Rank orders evidence categories: low 0, medium 1, high 2.  Invalid values
// rank below low.
func (q EvidenceQuality) Rank() int {
	switch q {
	case EvidenceLow:
		return 0
	case EvidenceMedium:
		return 1
	case EvidenceHigh:
		return 2
	}
	return -1
}

// IsValid reports whether q is a known category.
func (q EvidenceQuality) IsValid() bool { return q.Rank() >= 0 }

func (q EvidenceQuality) String() string { return string(q) }

// RecommendationLevel is the reading recommendation derived from both scores.
type RecommendationLevel string

const (
	RecommendationHighlyRecommended RecommendationLevel = "highly_recommended"
	RecommendationRecommended       RecommendationLevel = "recommended"
	RecommendationConsider          RecommendationLevel = "consider"
	RecommendationNotRecommended    RecommendationLevel = "not_recommended"
)

// Rank orders recommendation levels: not_recommended 0 up to highly_recommended 3.
func (r RecommendationLevel) Rank() int {
	switch r {
	case RecommendationNotRecommended:
		return 0
	case RecommendationConsider:
		return 1
	case RecommendationRecommended:
		return 2
	case RecommendationHighlyRecommended:
		return 3
	}
	return -1
}

// IsValid reports whether r is a known level.
func (r RecommendationLevel) IsValid() bool { return r.Rank() >= 0 }

func (r RecommendationLevel) String() string { return string(r) }

// ─────────────────────────────────────────────────────────────────────────────
// Records
// ─────────────────────────────────────────────────────────────────────────────

// DrugCompound is a single deduplicated drug mention.  Name keeps the surface
// form of the first occurrence; its lower-cased value is the dedup key.
type DrugCompound struct {
	Name            string       `json:"name"`
	ChemicalFormula string       `json:"chemical_formula,omitempty"`
	Type            CompoundType `json:"type"`
	Dosage          string       `json:"dosage,omitempty"`
	Confidence      float64      `json:"confidence"`
	Mentions        int          `json:"mentions"`
}

// ClinicalTrial summarises the trial evidence a paper reports for one phase.
type ClinicalTrial struct {
	Phase              TrialPhase `json:"phase"`
	SampleSize         *int       `json:"sample_size,omitempty"`
	Duration           string     `json:"duration,omitempty"`
	Efficacy           string     `json:"efficacy,omitempty"`
	AdverseEvents      []string   `json:"adverse_events,omitempty"`
	PrimaryEndpoint    string     `json:"primary_endpoint,omitempty"`
	SecondaryEndpoints []string   `json:"secondary_endpoints,omitempty"`
	Confidence         float64    `json:"confidence"`
}

// DrugInteraction is a detected drug-drug interaction between two surface forms.
type DrugInteraction struct {
	Compound1       string          `json:"compound1"`
	Compound2       string          `json:"compound2"`
	InteractionType InteractionType `json:"interaction_type"`
	Severity        Severity        `json:"severity"`
	Description     string          `json:"description"`
	Confidence      float64         `json:"confidence"`
}

// PharmaceuticalAnalysis is the per-paper aggregate produced by the engine.
// It is created once per analysis run and not mutated after scoring.
type PharmaceuticalAnalysis struct {
	DrugCompounds       []DrugCompound      `json:"drug_compounds"`
	ClinicalTrials      []ClinicalTrial     `json:"clinical_trials"`
	DrugInteractions    []DrugInteraction   `json:"drug_interactions"`
	RealWorldEvidence   bool                `json:"real_world_evidence"`
	EvidenceQuality     EvidenceQuality     `json:"evidence_quality"`
	PharmaceuticalScore float64             `json:"pharmaceutical_score"`
	QualityScore        float64             `json:"quality_score"`
	RecommendationLevel RecommendationLevel `json:"recommendation_level"`
	AnalyzedAt          time.Time           `json:"analyzed_at"`
}

// CombinedScore is the mean of the pharmaceutical and quality scores, the value
// recommendation thresholds are applied to.
func (a *PharmaceuticalAnalysis) CombinedScore() float64 {
	if a == nil {
		return 0
	}
	return (a.PharmaceuticalScore + a.QualityScore) / 2
}

// HighestPhase returns the most advanced phase present in trials, or
// PhaseUnknown when none carries an ordered phase.
func HighestPhase(trials []ClinicalTrial) TrialPhase {
	highest := PhaseUnknown
	best := -1
	for _, t := range trials {
		if r := t.Phase.Rank(); r > best {
			best = r
			highest = t.Phase
		}
	}
	return highest
}

// MaxSampleSize returns the largest reported sample size, or 0 when no trial
// reports one.
func MaxSampleSize(trials []ClinicalTrial) int {
	largest := 0
	for _, t := range trials {
		if t.SampleSize != nil && *t.SampleSize > largest {
			largest = *t.SampleSize
		}
	}
	return largest
}

// IntPtr is a convenience for building ClinicalTrial literals.
func IntPtr(v int) *int { return &v }
