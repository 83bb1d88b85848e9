// Package interaction_extractor detects drug combinations and labels them
// with the interaction vocabulary found in the same document.
//
// Detection is document level: every interaction type whose vocabulary
// appears anywhere in the text is attached to every combination phrase, and a
// single severity is chosen for the whole document.  A pair can therefore
// carry several records, one per matching type.
package interaction_extractor

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// interactionConfidence is assigned to every record.
const interactionConfidence = 0.7

var combinationPattern = regexp.MustCompile(`(?i)([\w\-]+)\s*(and|with|\+|plus)\s*([\w\-]+)`)

type typeVocabulary struct {
	interactionType pharma.InteractionType
	pattern         *regexp.Regexp
}

var typeTable = []typeVocabulary{
	{pharma.InteractionSynergistic, regexp.MustCompile(`(?i)synerg|potentiat|enhance|augment`)},
	{pharma.InteractionAntagonistic, regexp.MustCompile(`(?i)antagoni|inhibit|block|reduce`)},
	{pharma.InteractionAdditive, regexp.MustCompile(`(?i)additive|cumulative|combined`)},
	{pharma.InteractionContraindicated, regexp.MustCompile(`(?i)contraindic|avoid|dangerous|toxic`)},
}

type severityVocabulary struct {
	severity pharma.Severity
	pattern  *regexp.Regexp
}

// severityTable is checked in order; the first match wins.
var severityTable = []severityVocabulary{
	{pharma.SeveritySevere, regexp.MustCompile(`(?i)severe|fatal|death|toxic|dangerous`)},
	{pharma.SeverityModerate, regexp.MustCompile(`(?i)moderate|caution|monitor`)},
	{pharma.SeverityMild, regexp.MustCompile(`(?i)mild|minor|slight`)},
}

// Pair is a combination phrase such as "aspirin and warfarin".
type Pair struct {
	Compound1 string
	Compound2 string
}

// Extractor produces DrugInteraction records.  It is stateless.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(text string) []pharma.DrugInteraction {
	out := []pharma.DrugInteraction{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	pairs := FindPairs(text)
	if len(pairs) == 0 {
		return out
	}
	types := DetectTypes(text)
	if len(types) == 0 {
		return out
	}
	severity := DetectSeverity(text)

	for _, p := range pairs {
		for _, it := range types {
			out = append(out, pharma.DrugInteraction{
				Compound1:       p.Compound1,
				Compound2:       p.Compound2,
				InteractionType: it,
				Severity:        severity,
				Description:     Describe(it, p.Compound1, p.Compound2),
				Confidence:      interactionConfidence,
			})
		}
	}
	return out
}

// FindPairs returns combination phrases in text order.  Matches do not overlap.
func FindPairs(text string) []Pair {
	matches := combinationPattern.FindAllStringSubmatch(text, -1)
	pairs := make([]Pair, 0, len(matches))
	for _, m := range matches {
		pairs = append(pairs, Pair{Compound1: m[1], Compound2: m[3]})
	}
	return pairs
}

// DetectTypes returns every interaction type whose vocabulary occurs in text.
func DetectTypes(text string) []pharma.InteractionType {
	var types []pharma.InteractionType
	for _, v := range typeTable {
		if v.pattern.MatchString(text) {
			types = append(types, v.interactionType)
		}
	}
	return types
}

// DetectSeverity returns the first severity whose vocabulary occurs in text.
func DetectSeverity(text string) pharma.Severity {
	for _, v := range severityTable {
		if v.pattern.MatchString(text) {
			return v.severity
		}
	}
	return pharma.SeverityUnknown
}

func Describe(t pharma.InteractionType, c1, c2 string) string {
	return fmt.Sprintf("%s interaction between %s and %s", t, c1, c2)
}
