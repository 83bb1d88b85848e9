package analysis

import (
	"io"

	"github.com/turtacn/CureAnalytics/internal/config"
	icommon "github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/internal/intelligence/drug_extractor"
	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
	"github.com/turtacn/CureAnalytics/internal/intelligence/scoring"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewAnalyzer assembles the analysis pipeline described by cfg.  When a
// tagger endpoint is configured the compound extractor consults the model
// server through a lazily initialised tagger; the returned Closer releases
// that client.  metrics may be nil.
func NewAnalyzer(cfg config.AnalysisConfig, metrics icommon.ExtractionMetrics, logger logging.Logger) (*pipeline.Pipeline, io.Closer, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = icommon.NewNoopExtractionMetrics()
	}
	ilog := icommon.NewLoggerAdapter(logger.Named("engine"))

	var scoringOpts []scoring.Option
	if len(cfg.HighTierJournals) > 0 || len(cfg.MediumTierJournals) > 0 {
		high, medium := cfg.HighTierJournals, cfg.MediumTierJournals
		if len(high) == 0 {
			high = scoring.DefaultHighTierJournals
		}
		if len(medium) == 0 {
			medium = scoring.DefaultMediumTierJournals
		}
		scoringOpts = append(scoringOpts, scoring.WithJournalTiers(high, medium))
	}

	var (
		tagger drug_extractor.EntityTagger
		closer io.Closer = nopCloser{}
	)
	extCfg := drug_extractor.ExtractorConfig{}
	if cfg.TaggerEndpoint != "" {
		client, err := icommon.NewHTTPServingClient(icommon.HTTPServingConfig{
			BaseURL: cfg.TaggerEndpoint,
			Timeout: cfg.TaggerTimeout,
		}, ilog)
		if err != nil {
			return nil, nil, err
		}
		model := cfg.TaggerModel
		if model == "" {
			model = "biomedical-ner"
		}
		tagger = drug_extractor.NewLazyTagger(
			drug_extractor.ServingTaggerFactory(client, model, cfg.TaggerTimeout),
			cfg.TaggerInitTimeout, ilog)
		extCfg = drug_extractor.ExtractorConfig{EnableTagger: true, TaggerTimeout: cfg.TaggerTimeout}
		closer = client
		logger.Info("entity tagger enabled",
			logging.String("endpoint", cfg.TaggerEndpoint),
			logging.String("model", model))
	}

	compounds := drug_extractor.NewCompoundExtractor(tagger, extCfg, metrics, ilog)
	p := pipeline.New(compounds,
		pipeline.WithScoringEngine(scoring.NewEngine(scoringOpts...)),
		pipeline.WithMetrics(metrics),
		pipeline.WithLogger(ilog),
	)
	return p, closer, nil
}

// ConfigFrom maps the analysis section of the application config onto the
// service tuning.
func ConfigFrom(c config.AnalysisConfig) Config {
	return Config{
		BatchConcurrency: c.BatchConcurrency,
		ItemTimeout:      c.ItemTimeout,
		CacheTTL:         c.CacheTTL,
		MaxTextLength:    c.MaxTextLength,
		ArchiveReports:   c.ArchiveReports,
	}
}
