// Package analysis is the application service around the pharmaceutical
// analysis engine.  It owns the paper lifecycle during analysis and fans the
// result out to the cache, repository, message bus, search index,
// interaction graph and report archive.  Only the repository is required for
// persistent operations; every other backend is optional and its failures
// are logged, never returned.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	icommon "github.com/turtacn/CureAnalytics/internal/intelligence/common"
	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// Service defines the analysis use cases.
type Service interface {
	// Submit stores a new paper.  With analyze set it is analyzed right away,
	// otherwise a paper.submitted event is published for the worker.
	Submit(ctx context.Context, dto pharma.PaperDTO, analyze bool) (*paper.Paper, error)
	Get(ctx context.Context, id common.ID) (*paper.Paper, error)
	// Analyze runs the engine over p, persists the result and publishes it.
	Analyze(ctx context.Context, p *paper.Paper) (*paper.Paper, error)
	AnalyzeByID(ctx context.Context, id common.ID) (*paper.Paper, error)
	// AnalyzeText analyzes an ad-hoc text without persisting anything.
	AnalyzeText(ctx context.Context, req pharma.AnalyzeTextRequest) (*pharma.PharmaceuticalAnalysis, error)
	AnalyzeBatch(ctx context.Context, papers []*paper.Paper) (*icommon.BatchResult[*paper.Paper], error)
	// Rank analyzes papers that lack an analysis, without persisting them,
	// and returns them ranked together with the standout compounds and
	// combinations.
	Rank(ctx context.Context, papers []pharma.PaperDTO) (*pharma.DrugSearchResult, error)
	Search(ctx context.Context, compound string, page common.Pagination) (*pharma.DrugSearchResult, error)
	// Reprocess re-analyzes up to limit pending or failed papers, and papers
	// whose processing claim went stale.  Papers claimed by another caller
	// meanwhile are skipped.
	Reprocess(ctx context.Context, limit int) (*icommon.BatchResult[*paper.Paper], error)
	Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error)
}

// Config holds service tuning.
type Config struct {
	BatchConcurrency int           `mapstructure:"batch_concurrency"`
	ItemTimeout      time.Duration `mapstructure:"item_timeout"`
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`
	MaxTextLength    int           `mapstructure:"max_text_length"`
	ArchiveReports   bool          `mapstructure:"archive_reports"`
}

// DefaultConfig returns conservative defaults.
func DefaultConfig() Config {
	return Config{
		BatchConcurrency: 8,
		ItemTimeout:      30 * time.Second,
		CacheTTL:         24 * time.Hour,
		MaxTextLength:    1 << 20,
		ArchiveReports:   true,
	}
}

// Deps are the collaborators of the service.  Analyzer is required; Repo is
// required for persistent operations; the rest may be nil.
type Deps struct {
	Analyzer  pipeline.Analyzer
	Repo      paper.Repository
	Cache     AnalysisCache
	Publisher EventPublisher
	Index     SearchIndex
	Graph     InteractionGraph
	Archive   ReportArchive
	Metrics   Metrics
	Logger    logging.Logger
}

type serviceImpl struct {
	Deps
	cfg   Config
	group singleflight.Group
	batch icommon.BatchProcessor[*paper.Paper, *paper.Paper]
}

// NewService creates the analysis service.
func NewService(deps Deps, cfg Config) (Service, error) {
	if deps.Analyzer == nil {
		return nil, errors.InvalidParam("analyzer is required")
	}
	if deps.Logger == nil {
		deps.Logger = logging.NewNopLogger()
	}
	if deps.Metrics == nil {
		deps.Metrics = noopMetrics{}
	}
	def := DefaultConfig()
	if cfg.BatchConcurrency <= 0 {
		cfg.BatchConcurrency = def.BatchConcurrency
	}
	if cfg.ItemTimeout <= 0 {
		cfg.ItemTimeout = def.ItemTimeout
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.MaxTextLength <= 0 {
		cfg.MaxTextLength = def.MaxTextLength
	}
	s := &serviceImpl{Deps: deps, cfg: cfg}
	s.batch = icommon.NewBatchProcessor[*paper.Paper, *paper.Paper](
		icommon.WithMaxConcurrency(cfg.BatchConcurrency),
		icommon.WithItemTimeout(cfg.ItemTimeout),
		icommon.WithBatchLogger(icommon.NewLoggerAdapter(deps.Logger)),
	)
	return s, nil
}

func (s *serviceImpl) requireRepo() error {
	if s.Repo == nil {
		return errors.New(errors.ErrCodeFeatureDisabled, "paper repository is not configured")
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Paper lifecycle
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Submit(ctx context.Context, dto pharma.PaperDTO, analyze bool) (*paper.Paper, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	dto.ID = ""
	dto.Analysis = nil
	dto.ProcessingStatus = pharma.StatusPending
	p, err := paper.FromDTO(dto)
	if err != nil {
		return nil, err
	}
	if err := s.checkTextLength(p.Text()); err != nil {
		return nil, err
	}
	if p.DOI != "" {
		existing, err := s.Repo.FindByDOI(ctx, p.DOI)
		switch {
		case err == nil:
			return existing, errors.New(errors.ErrCodePaperAlreadyExists, "paper already exists: "+p.DOI)
		case !errors.IsCode(err, errors.CodePaperNotFound):
			return nil, err
		}
	}

	if err := s.Repo.Save(ctx, p); err != nil {
		return nil, err
	}
	if analyze {
		return s.Analyze(ctx, p)
	}
	s.publish(ctx, paper.NewPaperSubmittedEvent(p))
	return p, nil
}

func (s *serviceImpl) Get(ctx context.Context, id common.ID) (*paper.Paper, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if err := id.Validate(); err != nil {
		return nil, errors.InvalidParam(err.Error())
	}
	return s.Repo.FindByID(ctx, id)
}

func (s *serviceImpl) AnalyzeByID(ctx context.Context, id common.ID) (*paper.Paper, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.Analyze(ctx, p)
}

func (s *serviceImpl) Analyze(ctx context.Context, p *paper.Paper) (*paper.Paper, error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.InvalidParam("paper must not be nil")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	log := s.Logger.With(logging.String("paper_id", p.ID.String()))
	start := time.Now()

	p.ClearEvents()
	if err := p.StartProcessing(); err != nil {
		return nil, err
	}
	claimed, err := s.Repo.Claim(ctx, p.ID, s.cfg.ItemTimeout)
	if err != nil {
		return nil, err
	}
	if !claimed {
		return nil, errors.Newf(errors.ErrCodeConflict, "paper %s is already being analyzed", p.ID)
	}

	analysis, err := s.analyzeDocument(ctx, documentOf(p))
	if err != nil {
		s.fail(ctx, p, err, log)
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "analysis failed")
	}
	if err := s.Repo.UpdateAnalysis(ctx, p.ID, analysis, pharma.StatusCompleted); err != nil {
		s.fail(ctx, p, err, log)
		return nil, err
	}
	if err := p.Complete(analysis); err != nil {
		return nil, err
	}

	s.fanOut(ctx, p, log)
	s.Metrics.RecordAnalysis(analysis.RecommendationLevel, time.Since(start).Seconds(), len(analysis.DrugCompounds))
	log.Info("paper analyzed",
		logging.Float64("pharmaceutical_score", analysis.PharmaceuticalScore),
		logging.Float64("quality_score", analysis.QualityScore),
		logging.String("recommendation", analysis.RecommendationLevel.String()),
		logging.Duration("duration", time.Since(start)),
	)
	return p, nil
}

// fail marks p failed and persists the status on a best-effort basis.
func (s *serviceImpl) fail(ctx context.Context, p *paper.Paper, cause error, log logging.Logger) {
	log.Error("paper analysis failed", logging.Err(cause))
	if err := p.Fail(cause.Error()); err != nil {
		return
	}
	saveCtx := context.WithoutCancel(ctx)
	if err := s.Repo.Save(saveCtx, p); err != nil {
		log.Warn("could not persist failed status", logging.Err(err))
	}
	s.publish(saveCtx, p.Events()...)
	p.ClearEvents()
}

// fanOut delivers a completed analysis to the optional backends.
func (s *serviceImpl) fanOut(ctx context.Context, p *paper.Paper, log logging.Logger) {
	s.publish(ctx, p.Events()...)
	p.ClearEvents()

	dto := p.ToDTO()
	if s.Index != nil {
		if err := s.Index.Index(ctx, dto); err != nil {
			log.Warn("search indexing failed", logging.Err(err))
		}
	}
	if s.Graph != nil && len(p.Analysis.DrugInteractions) > 0 {
		if err := s.Graph.RecordInteractions(ctx, p.ID.String(), p.Analysis.DrugInteractions); err != nil {
			log.Warn("interaction graph update failed", logging.Err(err))
		}
	}
	if s.Archive != nil && s.cfg.ArchiveReports {
		body, err := json.Marshal(dto)
		if err != nil {
			log.Warn("report encoding failed", logging.Err(err))
			return
		}
		key := ReportKey(p.ID.String(), p.Analysis.AnalyzedAt)
		if _, err := s.Archive.Put(ctx, key, body, "application/json"); err != nil {
			log.Warn("report archive failed", logging.Err(err), logging.String("key", key))
		}
	}
}

func (s *serviceImpl) publish(ctx context.Context, events ...common.DomainEvent) {
	if s.Publisher == nil || len(events) == 0 {
		return
	}
	if err := s.Publisher.Publish(ctx, events...); err != nil {
		s.Logger.Warn("event publish failed", logging.Err(err), logging.Int("events", len(events)))
	}
}

// ReportKey is the object key of an archived report.
func ReportKey(paperID string, analyzedAt time.Time) string {
	return fmt.Sprintf("reports/%s/%d.json", paperID, analyzedAt.Unix())
}

// ─────────────────────────────────────────────────────────────────────────────
// Stateless analysis
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) AnalyzeText(ctx context.Context, req pharma.AnalyzeTextRequest) (*pharma.PharmaceuticalAnalysis, error) {
	if strings.TrimSpace(req.Text()) == "" {
		return nil, errors.New(errors.ErrCodeAnalysisTextEmpty, "abstract or full text is required")
	}
	if err := s.checkTextLength(req.Text()); err != nil {
		return nil, err
	}
	doc := pipeline.Document{
		Abstract: req.Abstract,
		FullText: req.FullText,
		Journal:  req.Journal,
	}
	if req.CitationsCount != nil {
		doc.Citations = *req.CitationsCount
	}
	start := time.Now()
	a, err := s.analyzeDocument(ctx, doc)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "analysis failed")
	}
	s.Metrics.RecordAnalysis(a.RecommendationLevel, time.Since(start).Seconds(), len(a.DrugCompounds))
	return a, nil
}

func (s *serviceImpl) checkTextLength(text string) error {
	if len(text) > s.cfg.MaxTextLength {
		return errors.New(errors.ErrCodeAnalysisTooLarge,
			fmt.Sprintf("text is %d bytes, limit is %d", len(text), s.cfg.MaxTextLength))
	}
	return nil
}

// analyzeDocument serves doc from the cache or runs the engine once per key,
// however many callers ask concurrently.
func (s *serviceImpl) analyzeDocument(ctx context.Context, doc pipeline.Document) (*pharma.PharmaceuticalAnalysis, error) {
	key := CacheKey(doc)
	if s.Cache != nil {
		a, err := s.Cache.Get(ctx, key)
		if err == nil {
			s.Metrics.RecordCacheResult(true)
			// A reused result is a new analysis as far as callers and report
			// keys are concerned.
			cp := *a
			cp.AnalyzedAt = time.Now().UTC()
			return &cp, nil
		}
		if !errors.IsCode(err, errors.ErrCodeCacheMiss) {
			s.Logger.Warn("analysis cache read failed", logging.Err(err))
		}
		s.Metrics.RecordCacheResult(false)
	}

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		a, err := s.Analyzer.Analyze(ctx, doc)
		if err != nil {
			return nil, err
		}
		if s.Cache != nil {
			if err := s.Cache.Set(ctx, key, a, s.cfg.CacheTTL); err != nil {
				s.Logger.Warn("analysis cache write failed", logging.Err(err))
			}
		}
		return a, nil
	})
	if err != nil {
		return nil, err
	}
	// Callers sharing a flight get their own copy of the top-level struct.
	cp := *v.(*pharma.PharmaceuticalAnalysis)
	return &cp, nil
}

func documentOf(p *paper.Paper) pipeline.Document {
	return pipeline.Document{
		Abstract:  p.Abstract,
		FullText:  p.FullText,
		Journal:   p.Journal,
		Citations: p.Citations(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Batch operations
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) AnalyzeBatch(ctx context.Context, papers []*paper.Paper) (*icommon.BatchResult[*paper.Paper], error) {
	if len(papers) == 0 {
		return nil, errors.New(errors.ErrCodeAnalysisBatchEmpty, "no papers to analyze")
	}
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	return s.batch.Process(ctx, papers, s.Analyze)
}

func (s *serviceImpl) Reprocess(ctx context.Context, limit int) (*icommon.BatchResult[*paper.Paper], error) {
	if err := s.requireRepo(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	var todo []*paper.Paper
	for _, st := range []pharma.ProcessingStatus{pharma.StatusPending, pharma.StatusFailed, pharma.StatusProcessing} {
		if len(todo) >= limit {
			break
		}
		ps, err := s.Repo.ListByStatus(ctx, st, limit-len(todo))
		if err != nil {
			return nil, err
		}
		if st == pharma.StatusProcessing {
			ps = s.abandoned(ps)
		}
		todo = append(todo, ps...)
	}
	if len(todo) == 0 {
		return &icommon.BatchResult[*paper.Paper]{Results: []*icommon.ItemResult[*paper.Paper]{}}, nil
	}
	s.Logger.Info("reprocessing papers", logging.Int("count", len(todo)))
	return s.batch.Process(ctx, todo, s.reprocessOne)
}

// abandoned keeps the processing papers whose claim is older than an item
// timeout, marked failed so they can be claimed again.
func (s *serviceImpl) abandoned(ps []*paper.Paper) []*paper.Paper {
	out := ps[:0]
	for _, p := range ps {
		if time.Since(p.UpdatedAt) < s.cfg.ItemTimeout {
			continue
		}
		if err := p.Fail("processing abandoned"); err != nil {
			continue
		}
		s.Logger.Warn("reclaiming abandoned paper", logging.String("paper_id", p.ID.String()))
		out = append(out, p)
	}
	return out
}

func (s *serviceImpl) reprocessOne(ctx context.Context, p *paper.Paper) (*paper.Paper, error) {
	out, err := s.Analyze(ctx, p)
	if errors.IsCode(err, errors.ErrCodeConflict) {
		s.Logger.Debug("paper claimed elsewhere, skipping", logging.String("paper_id", p.ID.String()))
		return p, nil
	}
	return out, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Ranking and search
// ─────────────────────────────────────────────────────────────────────────────

func (s *serviceImpl) Rank(ctx context.Context, papers []pharma.PaperDTO) (*pharma.DrugSearchResult, error) {
	if len(papers) == 0 {
		return nil, errors.New(errors.ErrCodeAnalysisBatchEmpty, "no papers to rank")
	}
	ranked := make([]pharma.PaperDTO, len(papers))
	copy(ranked, papers)
	for i := range ranked {
		if ranked[i].Analysis != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc := pipeline.Document{
			Abstract: ranked[i].Abstract,
			FullText: ranked[i].FullText,
			Journal:  ranked[i].Journal,
		}
		if ranked[i].CitationsCount != nil {
			doc.Citations = *ranked[i].CitationsCount
		}
		a, err := s.analyzeDocument(ctx, doc)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeAnalysisFailed, "analysis failed")
		}
		ranked[i].Analysis = a
		ranked[i].ProcessingStatus = pharma.StatusCompleted
	}
	result := BuildSearchResult(ranked, len(ranked), false)
	return &result, nil
}

func (s *serviceImpl) Search(ctx context.Context, compound string, page common.Pagination) (*pharma.DrugSearchResult, error) {
	compound = strings.TrimSpace(compound)
	if compound == "" {
		return nil, errors.InvalidParam("drug name is required")
	}
	if s.Index == nil {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "search index is not configured")
	}
	page = page.Normalize()
	hits, total, err := s.Index.SearchByCompound(ctx, compound, page.Offset(), page.PageSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSearchFailed, "compound search failed")
	}
	result := BuildSearchResult(hits, total, page.Offset()+len(hits) < total)
	return &result, nil
}

func (s *serviceImpl) Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error) {
	compound = strings.TrimSpace(compound)
	if compound == "" {
		return nil, errors.InvalidParam("compound name is required")
	}
	if s.Graph == nil {
		return nil, errors.New(errors.ErrCodeFeatureDisabled, "interaction graph is not configured")
	}
	if limit <= 0 {
		limit = 20
	}
	partners, err := s.Graph.Partners(ctx, compound, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraphQueryFailed, "partner lookup failed")
	}
	return partners, nil
}
