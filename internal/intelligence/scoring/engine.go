// Package scoring turns extracted signals into the quality score, the
// pharmaceutical score and a reading recommendation.
package scoring

import (
	"math"
	"strings"

	"github.com/turtacn/CureAnalytics/internal/intelligence/evidence"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// MaxScore caps both scores.
const MaxScore = 100.0

// Journal tier points.
const (
	HighTierPoints    = 20.0
	MediumTierPoints  = 12.0
	DefaultTierPoints = 5.0
)

// DefaultHighTierJournals are matched as case-insensitive substrings of the
// journal name.
var DefaultHighTierJournals = []string{
	"nature", "science", "cell", "new england journal of medicine",
	"lancet", "jama", "nature medicine", "nature biotechnology",
}

// DefaultMediumTierJournals are checked after the high tier.
var DefaultMediumTierJournals = []string{
	"plos one", "scientific reports", "journal of medicinal chemistry",
	"drug discovery today", "pharmaceutical research",
}

var phasePoints = map[pharma.TrialPhase]float64{
	pharma.PhaseIV:          25,
	pharma.PhaseIII:         20,
	pharma.PhaseII:          15,
	pharma.PhaseI:           10,
	pharma.PhasePreclinical: 5,
}

var evidencePoints = map[pharma.EvidenceQuality]float64{
	pharma.EvidenceHigh:   20,
	pharma.EvidenceMedium: 12,
	pharma.EvidenceLow:    5,
}

// PaperSignals is what QualityScore reads from a paper.
type PaperSignals struct {
	Journal   string
	Citations int
	// Text is the abstract followed by the full text.
	Text     string
	Analysis *pharma.PharmaceuticalAnalysis
}

// Engine computes scores.  The zero value is not usable; call NewEngine.
type Engine struct {
	highTier   []string
	mediumTier []string
}

// Option customises an Engine.
type Option func(*Engine)

// WithJournalTiers replaces the default journal lists.  Entries are
// lower-cased.
func WithJournalTiers(high, medium []string) Option {
	return func(e *Engine) {
		e.highTier = lowerAll(high)
		e.mediumTier = lowerAll(medium)
	}
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{highTier: DefaultHighTierJournals, mediumTier: DefaultMediumTierJournals}
	for _, o := range opts {
		o(e)
	}
	return e
}

// JournalPoints returns the tier points for journal.
func (e *Engine) JournalPoints(journal string) float64 {
	j := strings.ToLower(journal)
	if j == "" {
		return DefaultTierPoints
	}
	if containsAny(j, e.highTier) {
		return HighTierPoints
	}
	if containsAny(j, e.mediumTier) {
		return MediumTierPoints
	}
	return DefaultTierPoints
}

// PhasePoints returns the points for the most advanced phase; unknown is 0.
func PhasePoints(phase pharma.TrialPhase) float64 {
	return phasePoints[phase]
}

// QualityScore rates a paper on citations, journal, trial phase and size, and
// real-world evidence.
func (e *Engine) QualityScore(p PaperSignals) float64 {
	score := math.Min(float64(p.Citations)/10, 30)
	score += e.JournalPoints(p.Journal)

	if p.Analysis != nil {
		score += PhasePoints(pharma.HighestPhase(p.Analysis.ClinicalTrials))
		if largest := pharma.MaxSampleSize(p.Analysis.ClinicalTrials); largest > 0 {
			score += math.Min(float64(largest)/100, 15)
		}
	}
	if evidence.DetectRealWorldEvidence(p.Text) {
		score += 10
	}
	return math.Min(score, MaxScore)
}

// PharmaceuticalScore rates the analysis itself.  A nil analysis scores 0.
func (e *Engine) PharmaceuticalScore(a *pharma.PharmaceuticalAnalysis) float64 {
	if a == nil {
		return 0
	}
	score := math.Min(float64(len(a.DrugCompounds))*5, 25)
	score += float64(len(a.ClinicalTrials)) * 5
	score += PhasePoints(pharma.HighestPhase(a.ClinicalTrials))
	score += math.Min(float64(len(a.DrugInteractions))*10, 20)
	score += evidencePoints[a.EvidenceQuality]
	return math.Min(score, MaxScore)
}

// Recommend maps the mean of the two scores onto a recommendation level.
func Recommend(pharmaScore, qualityScore float64) pharma.RecommendationLevel {
	avg := (pharmaScore + qualityScore) / 2
	switch {
	case avg >= 80:
		return pharma.RecommendationHighlyRecommended
	case avg >= 60:
		return pharma.RecommendationRecommended
	case avg >= 40:
		return pharma.RecommendationConsider
	default:
		return pharma.RecommendationNotRecommended
	}
}

// Apply fills the score fields and recommendation of p.Analysis in place.
// It does nothing when p.Analysis is nil.
func (e *Engine) Apply(p PaperSignals) {
	a := p.Analysis
	if a == nil {
		return
	}
	a.PharmaceuticalScore = e.PharmaceuticalScore(a)
	a.QualityScore = e.QualityScore(p)
	a.RecommendationLevel = Recommend(a.PharmaceuticalScore, a.QualityScore)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(strings.TrimSpace(s))
	}
	return out
}
