package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

func scored(title string, pharmaScore, quality float64, citations *int) pharma.PaperDTO {
	return pharma.PaperDTO{
		Title:          title,
		CitationsCount: citations,
		Analysis: &pharma.PharmaceuticalAnalysis{
			PharmaceuticalScore: pharmaScore,
			QualityScore:        quality,
		},
	}
}

func TestRankPapers_Ordering(t *testing.T) {
	papers := []pharma.PaperDTO{
		scored("b-tie", 50, 50, pharma.IntPtr(10)),
		{Title: "unanalyzed"},
		scored("top", 90, 70, nil),
		scored("a-tie", 40, 60, pharma.IntPtr(10)),
		scored("cited", 60, 40, pharma.IntPtr(99)),
	}
	RankPapers(papers)

	var titles []string
	for _, p := range papers {
		titles = append(titles, p.Title)
	}
	assert.Equal(t, []string{"top", "cited", "a-tie", "b-tie", "unanalyzed"}, titles)
}

func TestTopCompounds_MergesAcrossPapers(t *testing.T) {
	papers := []pharma.PaperDTO{
		{Analysis: &pharma.PharmaceuticalAnalysis{DrugCompounds: []pharma.DrugCompound{
			{Name: "Aspirin", Confidence: 0.8, Mentions: 2},
			{Name: "insulin", Confidence: 0.8, Mentions: 1},
		}}},
		{Analysis: &pharma.PharmaceuticalAnalysis{DrugCompounds: []pharma.DrugCompound{
			{Name: "aspirin", Confidence: 0.95, Mentions: 3},
		}}},
		{Title: "no analysis"},
	}
	top := TopCompounds(papers, 10)
	require.Len(t, top, 2)
	assert.Equal(t, "Aspirin", top[0].Name)
	assert.Equal(t, 5, top[0].Mentions)
	assert.Equal(t, 0.95, top[0].Confidence)

	var many []pharma.DrugCompound
	for i := 0; i < 15; i++ {
		many = append(many, pharma.DrugCompound{Name: fmt.Sprintf("drug%d", i), Mentions: i + 1})
	}
	top = TopCompounds([]pharma.PaperDTO{{Analysis: &pharma.PharmaceuticalAnalysis{DrugCompounds: many}}}, TopCompoundsLimit)
	require.Len(t, top, TopCompoundsLimit)
	assert.Equal(t, "drug14", top[0].Name)
}

func TestRecommendedCombinations(t *testing.T) {
	syn := pharma.DrugInteraction{Compound1: "Metformin", Compound2: "sitagliptin", InteractionType: pharma.InteractionSynergistic, Severity: pharma.SeverityUnknown}
	papers := []pharma.PaperDTO{
		{Analysis: &pharma.PharmaceuticalAnalysis{
			RecommendationLevel: pharma.RecommendationHighlyRecommended,
			DrugInteractions: []pharma.DrugInteraction{
				syn,
				{Compound1: "sitagliptin", Compound2: "metformin", InteractionType: pharma.InteractionSynergistic},
				{Compound1: "a", Compound2: "b", InteractionType: pharma.InteractionAdditive, Severity: pharma.SeveritySevere},
				{Compound1: "c", Compound2: "d", InteractionType: pharma.InteractionContraindicated},
				{Compound1: "e", Compound2: "f", InteractionType: pharma.InteractionAdditive, Severity: pharma.SeverityMild},
			},
		}},
		{Analysis: &pharma.PharmaceuticalAnalysis{
			RecommendationLevel: pharma.RecommendationConsider,
			DrugInteractions: []pharma.DrugInteraction{
				{Compound1: "g", Compound2: "h", InteractionType: pharma.InteractionSynergistic},
			},
		}},
	}

	got := RecommendedCombinations(papers, 10)
	require.Len(t, got, 2)
	assert.Equal(t, syn, got[0])
	assert.Equal(t, "e", got[1].Compound1)

	assert.Len(t, RecommendedCombinations(papers, 1), 1)
	assert.Empty(t, RecommendedCombinations(nil, 10))
}

func TestBuildSearchResult(t *testing.T) {
	res := BuildSearchResult([]pharma.PaperDTO{scored("x", 1, 1, nil)}, 7, true)
	assert.Equal(t, 7, res.TotalResults)
	assert.True(t, res.HasMore)
	assert.NotNil(t, res.TopCompounds)
	assert.NotNil(t, res.RecommendedCombinations)
}

func TestCacheKey(t *testing.T) {
	base := pipeline.Document{Abstract: "Caféine", Journal: "Nature", Citations: 4}
	decomposed := pipeline.Document{Abstract: "Cafe\u0301ine", Journal: " nature ", Citations: 4}

	assert.Equal(t, CacheKey(base), CacheKey(decomposed))
	assert.Contains(t, CacheKey(base), "analysis:v1:")

	other := base
	other.Citations = 5
	assert.NotEqual(t, CacheKey(base), CacheKey(other))

	split := pipeline.Document{Abstract: "Caf", FullText: "éine", Journal: "Nature", Citations: 4}
	assert.Equal(t, CacheKey(base), CacheKey(split))
}
