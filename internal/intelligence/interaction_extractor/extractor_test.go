package interaction_extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

func TestExtract_DangerousPair(t *testing.T) {
	got := NewExtractor().Extract("aspirin and warfarin showed a dangerous interaction")

	require.NotEmpty(t, got)
	assert.Equal(t, pharma.DrugInteraction{
		Compound1:       "aspirin",
		Compound2:       "warfarin",
		InteractionType: pharma.InteractionContraindicated,
		Severity:        pharma.SeveritySevere,
		Description:     "contraindicated interaction between aspirin and warfarin",
		Confidence:      0.7,
	}, got[0])
}

func TestExtract_MultiplicityPerPair(t *testing.T) {
	text := "Metformin plus sitagliptin had a synergistic effect; monitor renal function, avoid in CKD."

	got := NewExtractor().Extract(text)

	require.Len(t, got, 2)
	assert.Equal(t, pharma.InteractionSynergistic, got[0].InteractionType)
	assert.Equal(t, pharma.InteractionContraindicated, got[1].InteractionType)
	for _, r := range got {
		assert.Equal(t, "Metformin", r.Compound1)
		assert.Equal(t, "sitagliptin", r.Compound2)
		assert.Equal(t, pharma.SeverityModerate, r.Severity)
	}
}

func TestExtract_NoTypeVocabulary(t *testing.T) {
	assert.Empty(t, NewExtractor().Extract("aspirin and warfarin were both prescribed"))
}

func TestExtract_NoPairs(t *testing.T) {
	assert.Empty(t, NewExtractor().Extract("A synergistic mechanism was proposed."))
	assert.Empty(t, NewExtractor().Extract(""))
}

func TestFindPairs_MatchesInsideWords(t *testing.T) {
	// The connective is not word-bounded, so "dangerous" reads as d+and+erous.
	got := FindPairs("a dangerous mix")
	assert.Equal(t, []Pair{{Compound1: "d", Compound2: "erous"}}, got)
}

func TestFindPairs(t *testing.T) {
	got := FindPairs("ezetimibe + simvastatin, then drug-A with drug-B")
	assert.Equal(t, []Pair{
		{Compound1: "ezetimibe", Compound2: "simvastatin"},
		{Compound1: "drug-A", Compound2: "drug-B"},
	}, got)
}

func TestDetectSeverity_Priority(t *testing.T) {
	tests := []struct {
		text string
		want pharma.Severity
	}{
		{"mild nausea but one death", pharma.SeveritySevere},
		{"use with caution; minor rash", pharma.SeverityModerate},
		{"slight dizziness", pharma.SeverityMild},
		{"well tolerated", pharma.SeverityUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DetectSeverity(tt.text), tt.text)
	}
}

func TestDetectTypes_Order(t *testing.T) {
	got := DetectTypes("Combined therapy was toxic; CYP3A4 inhibition enhanced exposure.")
	assert.Equal(t, []pharma.InteractionType{
		pharma.InteractionSynergistic,
		pharma.InteractionAntagonistic,
		pharma.InteractionAdditive,
		pharma.InteractionContraindicated,
	}, got)
}
