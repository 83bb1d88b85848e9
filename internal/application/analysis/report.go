package analysis

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// RenderMarkdown writes a human-readable report of one analyzed paper.
func RenderMarkdown(p pharma.PaperDTO) string {
	var b strings.Builder
	title := p.Title
	if title == "" {
		title = "Untitled text"
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if p.Journal != "" {
		fmt.Fprintf(&b, "*%s*", p.Journal)
		if p.CitationsCount != nil {
			fmt.Fprintf(&b, ", %d citations", *p.CitationsCount)
		}
		b.WriteString("\n\n")
	}

	a := p.Analysis
	if a == nil {
		b.WriteString("No analysis available.\n")
		return b.String()
	}

	b.WriteString("## Scores\n\n")
	b.WriteString("| Pharmaceutical | Quality | Evidence | Recommendation |\n")
	b.WriteString("|---|---|---|---|\n")
	fmt.Fprintf(&b, "| %.1f | %.1f | %s | %s |\n\n",
		a.PharmaceuticalScore, a.QualityScore, a.EvidenceQuality, strings.ReplaceAll(string(a.RecommendationLevel), "_", " "))

	if len(a.DrugCompounds) > 0 {
		b.WriteString("## Compounds\n\n")
		b.WriteString("| Name | Type | Dosage | Mentions | Confidence |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for _, c := range a.DrugCompounds {
			fmt.Fprintf(&b, "| %s | %s | %s | %d | %.2f |\n", c.Name, c.Type, dash(c.Dosage), c.Mentions, c.Confidence)
		}
		b.WriteString("\n")
	}

	if len(a.ClinicalTrials) > 0 {
		b.WriteString("## Clinical trials\n\n")
		b.WriteString("| Phase | Sample size | Efficacy | Confidence |\n")
		b.WriteString("|---|---|---|---|\n")
		for _, t := range a.ClinicalTrials {
			size := "-"
			if t.SampleSize != nil {
				size = fmt.Sprint(*t.SampleSize)
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %.2f |\n", t.Phase, size, dash(t.Efficacy), t.Confidence)
		}
		b.WriteString("\n")
	}

	if len(a.DrugInteractions) > 0 {
		b.WriteString("## Interactions\n\n")
		for _, in := range a.DrugInteractions {
			fmt.Fprintf(&b, "- **%s** + **%s**: %s, %s\n", in.Compound1, in.Compound2, in.InteractionType, in.Severity)
		}
		b.WriteString("\n")
	}

	if a.RealWorldEvidence {
		b.WriteString("Includes real-world evidence.\n")
	}
	return b.String()
}

// RenderHTML converts the markdown report to HTML.
func RenderHTML(p pharma.PaperDTO) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(RenderMarkdown(p)), &buf); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	return buf.Bytes(), nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
