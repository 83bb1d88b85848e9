// Package drug_extractor finds drug compounds mentioned in biomedical text.
//
// An EntityTagger is the primary source.  When no tagger is configured, or it
// fails to start or to answer, a fixed lexicon of common drug names and
// drug-class suffixes is used instead.  Either way the result is deduplicated
// case-insensitively and ordered by how often each compound is mentioned.
package drug_extractor

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Tagger categories treated as drug compounds.
const (
	CategoryChemical = "CHEMICAL"
	CategoryDrug     = "DRUG"
)

// fallbackConfidence is assigned to every lexicon match.
const fallbackConfidence = 0.8

// ExtractorConfig holds tuneable parameters for compound extraction.
type ExtractorConfig struct {
	EnableTagger  bool          `json:"enable_tagger" yaml:"enable_tagger" mapstructure:"enable_tagger"`
	TaggerTimeout time.Duration `json:"tagger_timeout" yaml:"tagger_timeout" mapstructure:"tagger_timeout"`
}

// DefaultExtractorConfig enables the tagger with a 10s per-call budget.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		EnableTagger:  true,
		TaggerTimeout: 10 * time.Second,
	}
}

// CompoundExtractor is the top-level API for drug compound extraction.
type CompoundExtractor interface {
	// Extract never fails: tagger problems are logged and the lexicon is used.
	Extract(ctx context.Context, text string) []pharma.DrugCompound
}

type compoundExtractorImpl struct {
	tagger  EntityTagger
	config  ExtractorConfig
	metrics common.ExtractionMetrics
	logger  common.Logger
}

// NewCompoundExtractor constructs an extractor.  tagger may be nil, in which
// case only the lexicon is used.
func NewCompoundExtractor(
	tagger EntityTagger,
	config ExtractorConfig,
	metrics common.ExtractionMetrics,
	logger common.Logger,
) CompoundExtractor {
	if metrics == nil {
		metrics = common.NewNoopExtractionMetrics()
	}
	if logger == nil {
		logger = common.NewNoopLogger()
	}
	return &compoundExtractorImpl{
		tagger:  tagger,
		config:  config,
		metrics: metrics,
		logger:  logger,
	}
}

func (e *compoundExtractorImpl) Extract(ctx context.Context, text string) []pharma.DrugCompound {
	start := time.Now()
	text = norm.NFC.String(text)
	if strings.TrimSpace(text) == "" {
		return []pharma.DrugCompound{}
	}

	var raw []pharma.DrugCompound
	if entities, ok := e.tag(ctx, text); ok {
		raw = fromTaggedEntities(text, entities)
	} else {
		raw = lexiconMatches(text)
	}
	out := deduplicate(raw)

	e.metrics.RecordExtraction(ctx, common.ExtractorCompound, len(out), float64(time.Since(start).Microseconds())/1000.0)
	return out
}

// tag runs the tagger.  ok is false when the caller must fall back to the
// lexicon.  A tagger that answers with no drug entities is a valid answer.
func (e *compoundExtractorImpl) tag(ctx context.Context, text string) ([]TaggedEntity, bool) {
	if !e.config.EnableTagger || e.tagger == nil {
		e.metrics.RecordTaggerFallback(ctx, common.FallbackNoTagger)
		return nil, false
	}

	tagCtx := ctx
	if e.config.TaggerTimeout > 0 {
		var cancel context.CancelFunc
		tagCtx, cancel = context.WithTimeout(ctx, e.config.TaggerTimeout)
		defer cancel()
	}

	entities, err := e.callTagger(tagCtx, text)
	if err == nil {
		return entities, true
	}

	// The lazy tagger logs its own init failure once.
	if errors.IsCode(err, errors.ErrCodeTaggerInitFailed) {
		e.metrics.RecordTaggerFallback(ctx, common.FallbackInitFailed)
		return nil, false
	}
	e.logger.Warn("entity tagging failed, continuing with lexicon only", "error", err)
	e.metrics.RecordTaggerFallback(ctx, common.FallbackTagError)
	return nil, false
}

type tagResult struct {
	entities []TaggedEntity
	err      error
}

// callTagger runs the tagger on its own goroutine and stops waiting when ctx
// is done, whether or not the tagger honours ctx.  A panic in the tagger is
// returned as an error.
func (e *compoundExtractorImpl) callTagger(ctx context.Context, text string) ([]TaggedEntity, error) {
	done := make(chan tagResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- tagResult{err: errors.Newf(errors.ErrCodeTaggerUnavailable, "entity tagger panicked: %v", r)}
			}
		}()
		entities, err := e.tagger.Tag(ctx, text)
		done <- tagResult{entities: entities, err: err}
	}()

	select {
	case r := <-done:
		return r.entities, r.err
	case <-ctx.Done():
		return nil, errors.Wrap(ctx.Err(), errors.ErrCodeTaggerUnavailable, "entity tagger did not answer in time")
	}
}

// ---------------------------------------------------------------------------
// Tagger path
// ---------------------------------------------------------------------------

// fromTaggedEntities keeps drug entities that occur in text.  Scores outside
// [0,1] are clamped.
func fromTaggedEntities(text string, entities []TaggedEntity) []pharma.DrugCompound {
	out := make([]pharma.DrugCompound, 0, len(entities))
	for _, ent := range entities {
		tag := strings.ToUpper(strings.TrimSpace(ent.CategoryTag))
		if tag != CategoryChemical && tag != CategoryDrug {
			continue
		}
		name := norm.NFC.String(strings.TrimSpace(ent.SurfaceForm))
		if name == "" {
			continue
		}
		mentions := countMentions(text, name)
		if mentions == 0 {
			continue
		}
		out = append(out, pharma.DrugCompound{
			Name:       name,
			Type:       ClassifyCompound(name),
			Dosage:     findDosage(text, name),
			Confidence: clampScore(ent.Score),
			Mentions:   mentions,
		})
	}
	return out
}

func clampScore(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// ClassifyCompound assigns a compound type from the surface form.
func ClassifyCompound(name string) pharma.CompoundType {
	lower := strings.ToLower(name)
	switch {
	case strings.Contains(lower, "placebo"), strings.Contains(lower, "excipient"):
		return pharma.CompoundExcipient
	case strings.Contains(lower, "metabolite"):
		return pharma.CompoundMetabolite
	case strings.Contains(lower, "/"), strings.Contains(lower, "+"):
		return pharma.CompoundCombination
	default:
		return pharma.CompoundActiveIngredient
	}
}

// ---------------------------------------------------------------------------
// Lexicon path
// ---------------------------------------------------------------------------

// lexiconPatterns are scanned in order; each match becomes one raw compound.
var lexiconPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:aspirin|ibuprofen|acetaminophen|morphine|codeine|insulin|metformin|atorvastatin)\b`),
	regexp.MustCompile(`(?i)\b\w+cillin\b`),
	regexp.MustCompile(`(?i)\b\w+mycin\b`),
	regexp.MustCompile(`(?i)\b\w+pril\b`),
	regexp.MustCompile(`(?i)\b\w+sartan\b`),
}

func lexiconMatches(text string) []pharma.DrugCompound {
	var out []pharma.DrugCompound
	for _, re := range lexiconPatterns {
		for _, name := range re.FindAllString(text, -1) {
			out = append(out, pharma.DrugCompound{
				Name:       name,
				Type:       pharma.CompoundActiveIngredient,
				Dosage:     findDosage(text, name),
				Confidence: fallbackConfidence,
				Mentions:   countMentions(text, name),
			})
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Per-match attributes
// ---------------------------------------------------------------------------

// countMentions counts case-insensitive occurrences of name anywhere in text.
func countMentions(text, name string) int {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name))
	if err != nil {
		return 0
	}
	return len(re.FindAllStringIndex(text, -1))
}

// findDosage returns the amount and unit that directly follow name, e.g.
// "500 mg" in "metformin 500 mg twice daily".
func findDosage(text, name string) string {
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(name) + `\s+(\d+(?:\.\d+)?\s*(?:mg|g|ml|μg|µg|units?))`)
	if err != nil {
		return ""
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

// deduplicate merges raw compounds by lower-cased name.  The first occurrence
// keeps its surface form, type and dosage; confidence is the maximum and
// mentions are summed.  Output is ordered by mentions, ties in first-seen order.
func deduplicate(raw []pharma.DrugCompound) []pharma.DrugCompound {
	out := make([]pharma.DrugCompound, 0, len(raw))
	index := make(map[string]int, len(raw))
	for _, c := range raw {
		key := strings.ToLower(c.Name)
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, c)
			continue
		}
		if c.Confidence > out[i].Confidence {
			out[i].Confidence = c.Confidence
		}
		if out[i].Dosage == "" {
			out[i].Dosage = c.Dosage
		}
		out[i].Mentions += c.Mentions
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Mentions > out[j].Mentions
	})
	return out
}

// Merge deduplicates compounds gathered from several documents with the same
// rule as a single extraction.
func Merge(groups ...[]pharma.DrugCompound) []pharma.DrugCompound {
	var all []pharma.DrugCompound
	for _, g := range groups {
		all = append(all, g...)
	}
	return deduplicate(all)
}
