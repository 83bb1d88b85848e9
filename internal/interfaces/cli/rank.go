package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/internal/config"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// NewRankCmd ranks a JSON file of papers with the local engine.
func NewRankCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Analyze and rank a set of papers",
		Long: "rank reads papers as a JSON array, or an object with a \"papers\" array,\n" +
			"analyzes those without an analysis and prints them best first together\n" +
			"with the top compounds and recommended combinations.",
		Example: "  cureanalytics rank --file papers.json -o json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			raw, err := readInput(cmd, file, "")
			if err != nil {
				return err
			}
			papers, err := decodePapers([]byte(raw))
			if err != nil {
				return err
			}

			svc, closer, err := newLocalService(cliCtx)
			if err != nil {
				return err
			}
			defer closer.Close()

			res, err := svc.Rank(cmd.Context(), papers)
			if err != nil {
				return err
			}
			return PrintResult(cmd, cliCtx.OutputFormat, resultView{res})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", `JSON file of papers, "-" for stdin`)
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func decodePapers(raw []byte) ([]pharma.PaperDTO, error) {
	raw = bytes.TrimSpace(raw)
	var papers []pharma.PaperDTO
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &papers); err != nil {
			return nil, errors.Wrap(err, errors.CodeInvalidParam, "decode papers")
		}
		return papers, nil
	}
	var wrapped struct {
		Papers []pharma.PaperDTO `json:"papers"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidParam, "decode papers")
	}
	return wrapped.Papers, nil
}

// newLocalService builds an analysis service with no persistence, for
// one-shot CLI runs.
func newLocalService(cliCtx *CLIContext) (analysis.Service, io.Closer, error) {
	cfg := cliCtx.Config
	if cfg == nil {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
	}
	analyzer, closer, err := analysis.NewAnalyzer(cfg.Analysis, nil, cliCtx.Logger)
	if err != nil {
		return nil, nil, err
	}
	svc, err := analysis.NewService(analysis.Deps{
		Analyzer: analyzer,
		Logger:   cliCtx.Logger,
	}, analysis.ConfigFrom(cfg.Analysis))
	if err != nil {
		closer.Close()
		return nil, nil, err
	}
	return svc, closer, nil
}

type resultView struct {
	*pharma.DrugSearchResult
}

func (v resultView) TableHeaders() []string {
	return []string{"RANK", "SCORE", "QUALITY", "RECOMMENDATION", "EVIDENCE", "TITLE"}
}

func (v resultView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.Papers))
	for i, p := range v.Papers {
		row := []string{strconv.Itoa(i + 1), "-", "-", "-", "-", p.Title}
		if a := p.Analysis; a != nil {
			row[1] = formatScore(a.PharmaceuticalScore)
			row[2] = formatScore(a.QualityScore)
			row[3] = string(a.RecommendationLevel)
			row[4] = string(a.EvidenceQuality)
		}
		rows = append(rows, row)
	}
	return rows
}
