package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

type analyzeOptions struct {
	file      string
	text      string
	title     string
	journal   string
	citations int
}

// NewAnalyzeCmd analyzes one text with the local engine.
func NewAnalyzeCmd() *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze a paper abstract or full text",
		Example: `  cureanalytics analyze --text "Aspirin 100 mg in a phase III trial of 1200 patients"
  cureanalytics analyze --file abstract.txt --journal "The Lancet" --citations 120 -o markdown`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyze(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&opts.file, "file", "f", "", `file holding the text, "-" for stdin`)
	f.StringVarP(&opts.text, "text", "t", "", "text to analyze")
	f.StringVar(&opts.title, "title", "", "title used in markdown and html reports")
	f.StringVar(&opts.journal, "journal", "", "journal the paper appeared in")
	f.IntVar(&opts.citations, "citations", -1, "citation count, omitted when negative")
	cmd.MarkFlagsMutuallyExclusive("file", "text")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts *analyzeOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, opts.file, opts.text)
	if err != nil {
		return err
	}

	svc, closer, err := newLocalService(cliCtx)
	if err != nil {
		return err
	}
	defer closer.Close()

	req := pharma.AnalyzeTextRequest{Abstract: text, Journal: opts.journal}
	if opts.citations >= 0 {
		n := opts.citations
		req.CitationsCount = &n
	}
	a, err := svc.AnalyzeText(cmd.Context(), req)
	if err != nil {
		return err
	}

	dto := pharma.PaperDTO{
		Title:            opts.title,
		Abstract:         text,
		Journal:          opts.journal,
		CitationsCount:   req.CitationsCount,
		Analysis:         a,
		ProcessingStatus: pharma.StatusCompleted,
	}
	switch cliCtx.OutputFormat {
	case OutputMarkdown:
		_, err = io.WriteString(cmd.OutOrStdout(), analysis.RenderMarkdown(dto))
		return err
	case OutputHTML:
		body, err := analysis.RenderHTML(dto)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(body)
		return err
	}
	return PrintResult(cmd, cliCtx.OutputFormat, analysisView{a})
}

// readInput returns text, or the contents of file when text is empty.
func readInput(cmd *cobra.Command, file, text string) (string, error) {
	switch {
	case text != "":
		return text, nil
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		return string(b), err
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", errors.Wrap(err, errors.CodeInvalidParam, "read input file")
		}
		return string(b), nil
	}
	return "", errors.InvalidParam("either --file or --text is required")
}

type analysisView struct {
	*pharma.PharmaceuticalAnalysis
}

func (v analysisView) TableHeaders() []string { return []string{"FIELD", "VALUE"} }

func (v analysisView) TableRows() [][]string {
	a := v.PharmaceuticalAnalysis
	compounds := make([]string, 0, len(a.DrugCompounds))
	for _, c := range a.DrugCompounds {
		s := c.Name
		if c.Dosage != "" {
			s += " (" + c.Dosage + ")"
		}
		compounds = append(compounds, s)
	}
	phases := make([]string, 0, len(a.ClinicalTrials))
	for _, t := range a.ClinicalTrials {
		phases = append(phases, string(t.Phase))
	}
	interactions := make([]string, 0, len(a.DrugInteractions))
	for _, in := range a.DrugInteractions {
		interactions = append(interactions, fmt.Sprintf("%s+%s %s/%s", in.Compound1, in.Compound2, in.InteractionType, in.Severity))
	}
	return [][]string{
		{"recommendation", string(a.RecommendationLevel)},
		{"pharmaceutical_score", formatScore(a.PharmaceuticalScore)},
		{"quality_score", formatScore(a.QualityScore)},
		{"evidence_quality", string(a.EvidenceQuality)},
		{"real_world_evidence", strconv.FormatBool(a.RealWorldEvidence)},
		{"compounds", strings.Join(compounds, ", ")},
		{"trial_phases", strings.Join(phases, ", ")},
		{"interactions", strings.Join(interactions, "; ")},
	}
}

func formatScore(f float64) string {
	return strconv.FormatFloat(f, 'f', 1, 64)
}
