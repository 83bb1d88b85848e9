// Package evidence grades how strong a paper's evidence is.
package evidence

import (
	"regexp"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Score thresholds for the evidence categories.
const (
	HighThreshold   = 7
	MediumThreshold = 4
)

// LargeSampleSize is the sample size above which a trial earns extra credit.
const LargeSampleSize = 500

// realWorldPattern matches observational-study vocabulary.  Separators between
// words may be whitespace or hyphens ("real-world", "post marketing").
var realWorldPattern = regexp.MustCompile(`(?i)real[\s-]*world|real[\s-]*life|retrospective|cohort|registry|electronic[\s-]*health[\s-]*records?|population[\s-]*based|post[\s-]*marketing|pharmacovigilance`)

// DetectRealWorldEvidence reports whether text describes real-world evidence.
func DetectRealWorldEvidence(text string) bool {
	return realWorldPattern.MatchString(text)
}

// Score returns the raw evidence score behind Assess.
func Score(trials []pharma.ClinicalTrial, hasRWE bool, citations int) int {
	score := 0

	switch {
	case hasPhase(trials, pharma.PhaseIV):
		score += 3
	case hasPhase(trials, pharma.PhaseIII):
		score += 2
	case len(trials) > 0:
		score++
	}

	if pharma.MaxSampleSize(trials) > LargeSampleSize {
		score += 2
	}
	if hasRWE {
		score += 2
	}

	switch {
	case citations > 100:
		score += 2
	case citations > 50:
		score++
	}
	return score
}

// Assess maps the evidence score onto high, medium or low.
func Assess(trials []pharma.ClinicalTrial, hasRWE bool, citations int) pharma.EvidenceQuality {
	switch s := Score(trials, hasRWE, citations); {
	case s >= HighThreshold:
		return pharma.EvidenceHigh
	case s >= MediumThreshold:
		return pharma.EvidenceMedium
	default:
		return pharma.EvidenceLow
	}
}

func hasPhase(trials []pharma.ClinicalTrial, phase pharma.TrialPhase) bool {
	for _, t := range trials {
		if t.Phase == phase {
			return true
		}
	}
	return false
}
