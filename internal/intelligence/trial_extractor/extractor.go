// Package trial_extractor detects clinical-trial phase mentions in paper text.
package trial_extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// EfficacyMentioned is the Efficacy value set when efficacy language appears.
const EfficacyMentioned = "mentioned"

type phasePattern struct {
	phase   pharma.TrialPhase
	pattern *regexp.Regexp
}

// phaseTable is iterated in order; output records follow it.
var phaseTable = []phasePattern{
	{pharma.PhaseI, regexp.MustCompile(`(?i)phase\s*(?:I|1)\b`)},
	{pharma.PhaseII, regexp.MustCompile(`(?i)phase\s*(?:II|2)\b`)},
	{pharma.PhaseIII, regexp.MustCompile(`(?i)phase\s*(?:III|3)\b`)},
	{pharma.PhaseIV, regexp.MustCompile(`(?i)phase\s*(?:IV|4)\b`)},
	{pharma.PhasePreclinical, regexp.MustCompile(`(?i)preclinical|in\s*vitro|in\s*vivo`)},
}

var (
	sampleSizePattern = regexp.MustCompile(`(?i)(\d+)\s*patients?|(\d+)\s*subjects?|n\s*=\s*(\d+)`)
	efficacyPattern   = regexp.MustCompile(`(?i)efficacy|effective|response\s*rate|survival|improvement`)
)

// Extractor turns phase mentions into ClinicalTrial records.  It holds no
// state and is safe for concurrent use.
type Extractor struct{}

// NewExtractor returns a trial extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// Extract returns one record per phase mentioned in text, in phase-table
// order.  Sample size and efficacy are document-wide, so every record of a
// paper carries the same values.
func (e *Extractor) Extract(text string) []pharma.ClinicalTrial {
	trials := []pharma.ClinicalTrial{}
	if strings.TrimSpace(text) == "" {
		return trials
	}

	sampleSize := FindSampleSize(text)
	efficacy := ""
	if efficacyPattern.MatchString(text) {
		efficacy = EfficacyMentioned
	}

	for _, p := range phaseTable {
		count := len(p.pattern.FindAllStringIndex(text, -1))
		if count == 0 {
			continue
		}
		trial := pharma.ClinicalTrial{
			Phase:      p.phase,
			Efficacy:   efficacy,
			Confidence: phaseConfidence(count),
		}
		if sampleSize != nil {
			trial.SampleSize = pharma.IntPtr(*sampleSize)
		}
		trials = append(trials, trial)
	}
	return trials
}

// phaseConfidence grows linearly with the mention count, saturating at ten.
func phaseConfidence(count int) float64 {
	c := float64(count) / 10
	if c > 1 {
		return 1
	}
	return c
}

// FindSampleSize returns the first "N patients", "N subjects" or "n = N" in
// text, or nil.
func FindSampleSize(text string) *int {
	m := sampleSizePattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	for _, g := range m[1:] {
		if g == "" {
			continue
		}
		n, err := strconv.Atoi(g)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}
