package pharma

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrialPhase_Rank(t *testing.T) {
	assert.Equal(t, 0, PhasePreclinical.Rank())
	assert.Equal(t, 4, PhaseIV.Rank())
	assert.Equal(t, -1, PhaseUnknown.Rank())
	assert.Equal(t, -1, TrialPhase("phase_v").Rank())
}

func TestTrialPhase_IsValid(t *testing.T) {
	for _, p := range append(PhaseOrder, PhaseUnknown) {
		assert.True(t, p.IsValid(), p)
	}
	assert.False(t, TrialPhase("").IsValid())
}

func TestHighestPhase_Empty(t *testing.T) {
	assert.Equal(t, PhaseUnknown, HighestPhase(nil))
	assert.Equal(t, PhaseUnknown, HighestPhase([]ClinicalTrial{}))
}

func TestHighestPhase_PicksMostAdvanced(t *testing.T) {
	trials := []ClinicalTrial{{Phase: PhaseII}, {Phase: PhaseIV}, {Phase: PhaseI}}
	assert.Equal(t, PhaseIV, HighestPhase(trials))
}

func TestHighestPhase_IgnoresUnknown(t *testing.T) {
	trials := []ClinicalTrial{{Phase: PhaseUnknown}, {Phase: PhasePreclinical}}
	assert.Equal(t, PhasePreclinical, HighestPhase(trials))
	assert.Equal(t, PhaseUnknown, HighestPhase([]ClinicalTrial{{Phase: PhaseUnknown}}))
}

func TestMaxSampleSize(t *testing.T) {
	assert.Equal(t, 0, MaxSampleSize(nil))
	trials := []ClinicalTrial{
		{Phase: PhaseI},
		{Phase: PhaseII, SampleSize: IntPtr(120)},
		{Phase: PhaseIII, SampleSize: IntPtr(80)},
	}
	assert.Equal(t, 120, MaxSampleSize(trials))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, CompoundCombination.IsValid())
	assert.False(t, CompoundType("salt").IsValid())
	assert.True(t, InteractionAdditive.IsValid())
	assert.False(t, InteractionType("neutral").IsValid())
	assert.True(t, SeverityUnknown.IsValid())
	assert.False(t, Severity("critical").IsValid())
	assert.True(t, StatusFailed.IsValid())
	assert.False(t, ProcessingStatus("queued").IsValid())
}

func TestEvidenceQuality_RankOrder(t *testing.T) {
	assert.Less(t, EvidenceLow.Rank(), EvidenceMedium.Rank())
	assert.Less(t, EvidenceMedium.Rank(), EvidenceHigh.Rank())
	assert.False(t, EvidenceQuality("none").IsValid())
}

func TestRecommendationLevel_RankOrder(t *testing.T) {
	assert.Less(t, RecommendationNotRecommended.Rank(), RecommendationConsider.Rank())
	assert.Less(t, RecommendationConsider.Rank(), RecommendationRecommended.Rank())
	assert.Less(t, RecommendationRecommended.Rank(), RecommendationHighlyRecommended.Rank())
}

func TestCombinedScore(t *testing.T) {
	var nilAnalysis *PharmaceuticalAnalysis
	assert.Zero(t, nilAnalysis.CombinedScore())

	a := &PharmaceuticalAnalysis{PharmaceuticalScore: 60, QualityScore: 90}
	assert.Equal(t, 75.0, a.CombinedScore())
}

func TestClinicalTrial_JSONOmitsEmptyOptionals(t *testing.T) {
	b, err := json.Marshal(ClinicalTrial{Phase: PhaseIII, Confidence: 0.1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"phase":"phase_iii","confidence":0.1}`, string(b))
}

func TestAnalyzeTextRequest_Text(t *testing.T) {
	r := AnalyzeTextRequest{Abstract: "abstract. ", FullText: "body"}
	assert.Equal(t, "abstract. body", r.Text())
}
