package analysis

import (
	"sort"
	"strings"

	"github.com/turtacn/CureAnalytics/internal/intelligence/drug_extractor"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Limits on the aggregate sections of a DrugSearchResult.
const (
	TopCompoundsLimit    = 10
	TopCombinationsLimit = 10
)

// RankPapers orders papers by descending combined score, then by citations,
// then by title.  Papers without an analysis score 0.  The input is sorted in
// place.
func RankPapers(papers []pharma.PaperDTO) {
	sort.SliceStable(papers, func(i, j int) bool {
		si, sj := papers[i].Analysis.CombinedScore(), papers[j].Analysis.CombinedScore()
		if si != sj {
			return si > sj
		}
		ci, cj := citations(papers[i]), citations(papers[j])
		if ci != cj {
			return ci > cj
		}
		return papers[i].Title < papers[j].Title
	})
}

// BuildSearchResult ranks papers and derives the compounds and combinations
// that stand out across them.
func BuildSearchResult(papers []pharma.PaperDTO, total int, hasMore bool) pharma.DrugSearchResult {
	RankPapers(papers)
	return pharma.DrugSearchResult{
		Papers:                  papers,
		TotalResults:            total,
		HasMore:                 hasMore,
		TopCompounds:            TopCompounds(papers, TopCompoundsLimit),
		RecommendedCombinations: RecommendedCombinations(papers, TopCombinationsLimit),
	}
}

// TopCompounds merges the compounds of every analyzed paper with the
// extraction dedup rule and returns the limit most mentioned.
func TopCompounds(papers []pharma.PaperDTO, limit int) []pharma.DrugCompound {
	groups := make([][]pharma.DrugCompound, 0, len(papers))
	for _, p := range papers {
		if p.Analysis != nil {
			groups = append(groups, p.Analysis.DrugCompounds)
		}
	}
	merged := drug_extractor.Merge(groups...)
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// RecommendedCombinations collects synergistic or additive, non-severe
// interactions from papers recommended or better.  Pairs are unordered and
// compared case-insensitively together with the interaction type; the first
// occurrence wins.
func RecommendedCombinations(papers []pharma.PaperDTO, limit int) []pharma.DrugInteraction {
	out := make([]pharma.DrugInteraction, 0)
	seen := make(map[string]struct{})
	for _, p := range papers {
		a := p.Analysis
		if a == nil || a.RecommendationLevel.Rank() < pharma.RecommendationRecommended.Rank() {
			continue
		}
		for _, in := range a.DrugInteractions {
			if in.InteractionType != pharma.InteractionSynergistic && in.InteractionType != pharma.InteractionAdditive {
				continue
			}
			if in.Severity == pharma.SeveritySevere {
				continue
			}
			key := pairKey(in)
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, in)
			if len(out) == limit {
				return out
			}
		}
	}
	return out
}

func pairKey(in pharma.DrugInteraction) string {
	a, b := strings.ToLower(in.Compound1), strings.ToLower(in.Compound2)
	if b < a {
		a, b = b, a
	}
	return a + "|" + b + "|" + string(in.InteractionType)
}

func citations(p pharma.PaperDTO) int {
	if p.CitationsCount == nil {
		return 0
	}
	return *p.CitationsCount
}
