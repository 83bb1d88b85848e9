// Package pipeline runs the full analysis over one document: the three
// extractors concurrently, then real-world evidence detection, evidence
// grading and scoring.
package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/internal/intelligence/drug_extractor"
	"github.com/turtacn/CureAnalytics/internal/intelligence/evidence"
	"github.com/turtacn/CureAnalytics/internal/intelligence/interaction_extractor"
	"github.com/turtacn/CureAnalytics/internal/intelligence/scoring"
	"github.com/turtacn/CureAnalytics/internal/intelligence/trial_extractor"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Document is the input to Analyze.
type Document struct {
	Abstract  string
	FullText  string
	Journal   string
	Citations int
}

// Text is the abstract followed by the full text, the string every extractor reads.
func (d Document) Text() string {
	return d.Abstract + d.FullText
}

// Analyzer produces a scored PharmaceuticalAnalysis for a document.
type Analyzer interface {
	Analyze(ctx context.Context, doc Document) (*pharma.PharmaceuticalAnalysis, error)
}

// Pipeline is the default Analyzer.
type Pipeline struct {
	compounds    drug_extractor.CompoundExtractor
	trials       *trial_extractor.Extractor
	interactions *interaction_extractor.Extractor
	scorer       *scoring.Engine
	metrics      common.ExtractionMetrics
	logger       common.Logger
	now          func() time.Time
}

// Option customises a Pipeline.
type Option func(*Pipeline)

func WithScoringEngine(e *scoring.Engine) Option {
	return func(p *Pipeline) {
		if e != nil {
			p.scorer = e
		}
	}
}

func WithMetrics(m common.ExtractionMetrics) Option {
	return func(p *Pipeline) {
		if m != nil {
			p.metrics = m
		}
	}
}

func WithLogger(l common.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithClock overrides the AnalyzedAt timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New builds a Pipeline around compounds.  A nil compounds extractor means
// lexicon-only compound extraction.
func New(compounds drug_extractor.CompoundExtractor, opts ...Option) *Pipeline {
	p := &Pipeline{
		compounds:    compounds,
		trials:       trial_extractor.NewExtractor(),
		interactions: interaction_extractor.NewExtractor(),
		scorer:       scoring.NewEngine(),
		metrics:      common.NewNoopExtractionMetrics(),
		logger:       common.NewNoopLogger(),
		now:          time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	if p.compounds == nil {
		p.compounds = drug_extractor.NewCompoundExtractor(nil, drug_extractor.ExtractorConfig{}, p.metrics, p.logger)
	}
	return p
}

// Analyze never fails on content: malformed or empty text yields an empty,
// low-evidence analysis.  It returns an error only when ctx ends first.
func (p *Pipeline) Analyze(ctx context.Context, doc Document) (*pharma.PharmaceuticalAnalysis, error) {
	text := doc.Text()

	var (
		compounds    []pharma.DrugCompound
		trials       []pharma.ClinicalTrial
		interactions []pharma.DrugInteraction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		compounds = p.compounds.Extract(gctx, text)
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		trials = p.trials.Extract(text)
		p.metrics.RecordExtraction(gctx, common.ExtractorTrial, len(trials), msSince(start))
		return nil
	})
	g.Go(func() error {
		start := time.Now()
		interactions = p.interactions.Extract(text)
		p.metrics.RecordExtraction(gctx, common.ExtractorInteraction, len(interactions), msSince(start))
		return nil
	})
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rwe := evidence.DetectRealWorldEvidence(text)
	analysis := &pharma.PharmaceuticalAnalysis{
		DrugCompounds:     compounds,
		ClinicalTrials:    trials,
		DrugInteractions:  interactions,
		RealWorldEvidence: rwe,
		EvidenceQuality:   evidence.Assess(trials, rwe, doc.Citations),
		AnalyzedAt:        p.now().UTC(),
	}
	p.scorer.Apply(scoring.PaperSignals{
		Journal:   doc.Journal,
		Citations: doc.Citations,
		Text:      text,
		Analysis:  analysis,
	})

	p.logger.Debug("analysis completed",
		"compounds", len(compounds),
		"trials", len(trials),
		"interactions", len(interactions),
		"recommendation", analysis.RecommendationLevel.String())
	return analysis, nil
}

// Scorer exposes the scoring engine, for callers that rescore stored analyses.
func (p *Pipeline) Scorer() *scoring.Engine { return p.scorer }

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
