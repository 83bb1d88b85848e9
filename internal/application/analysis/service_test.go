package analysis

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/internal/domain/paper"
	"github.com/turtacn/CureAnalytics/internal/intelligence/pipeline"
	"github.com/turtacn/CureAnalytics/internal/testutil"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// ─────────────────────────────────────────────────────────────────────────────
// Test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubAnalyzer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, doc pipeline.Document) (*pharma.PharmaceuticalAnalysis, error)
}

func (s *stubAnalyzer) Analyze(ctx context.Context, doc pipeline.Document) (*pharma.PharmaceuticalAnalysis, error) {
	s.calls.Add(1)
	if s.fn != nil {
		return s.fn(ctx, doc)
	}
	return &pharma.PharmaceuticalAnalysis{
		DrugCompounds:       []pharma.DrugCompound{{Name: "metformin", Mentions: 1}},
		EvidenceQuality:     pharma.EvidenceLow,
		RecommendationLevel: pharma.RecommendationNotRecommended,
		AnalyzedAt:          time.Unix(1700000000, 0).UTC(),
	}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []common.DomainEvent
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, events ...common.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
	return r.err
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

type MockCache struct{ mock.Mock }

func (m *MockCache) Get(ctx context.Context, key string) (*pharma.PharmaceuticalAnalysis, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pharma.PharmaceuticalAnalysis), args.Error(1)
}

func (m *MockCache) Set(ctx context.Context, key string, a *pharma.PharmaceuticalAnalysis, ttl time.Duration) error {
	return m.Called(ctx, key, a, ttl).Error(0)
}

type MockIndex struct{ mock.Mock }

func (m *MockIndex) Index(ctx context.Context, p pharma.PaperDTO) error {
	return m.Called(ctx, p).Error(0)
}

func (m *MockIndex) SearchByCompound(ctx context.Context, compound string, offset, limit int) ([]pharma.PaperDTO, int, error) {
	args := m.Called(ctx, compound, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]pharma.PaperDTO), args.Int(1), args.Error(2)
}

type MockGraph struct{ mock.Mock }

func (m *MockGraph) RecordInteractions(ctx context.Context, paperID string, in []pharma.DrugInteraction) error {
	return m.Called(ctx, paperID, in).Error(0)
}

func (m *MockGraph) Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error) {
	args := m.Called(ctx, compound, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]pharma.InteractionPartner), args.Error(1)
}

type MockArchive struct{ mock.Mock }

func (m *MockArchive) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	args := m.Called(ctx, key, body, contentType)
	return args.String(0), args.Error(1)
}

type countingMetrics struct {
	mu       sync.Mutex
	analyses []pharma.RecommendationLevel
	hits     int
	misses   int
}

func (c *countingMetrics) RecordAnalysis(level pharma.RecommendationLevel, _ float64, _ int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.analyses = append(c.analyses, level)
}

func (c *countingMetrics) RecordCacheResult(hit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if hit {
		c.hits++
	} else {
		c.misses++
	}
}

const interactionAbstract = "A randomized controlled trial of metformin and sitagliptin " +
	"in 1500 patients showed a synergistic effect. Metformin was well tolerated."

func newService(t *testing.T, deps Deps) Service {
	t.Helper()
	if deps.Analyzer == nil {
		deps.Analyzer = pipeline.New(nil)
	}
	if deps.Logger == nil {
		deps.Logger = testutil.NewMockLogger()
	}
	svc, err := NewService(deps, Config{BatchConcurrency: 4})
	require.NoError(t, err)
	return svc
}

func seedPaper(t *testing.T, repo *testutil.MemoryPaperRepo, title, abstract string) *paper.Paper {
	t.Helper()
	p, err := paper.NewPaper(title, abstract)
	require.NoError(t, err)
	p.Journal = "The Lancet"
	p.CitationsCount = pharma.IntPtr(120)
	require.NoError(t, repo.Save(context.Background(), p))
	return p
}

// ─────────────────────────────────────────────────────────────────────────────
// Tests
// ─────────────────────────────────────────────────────────────────────────────

func TestNewService_RequiresAnalyzer(t *testing.T) {
	_, err := NewService(Deps{}, DefaultConfig())
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestAnalyze_FansOutToEveryBackend(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	pub := &recordingPublisher{}
	index := new(MockIndex)
	graph := new(MockGraph)
	archive := new(MockArchive)
	metrics := &countingMetrics{}

	p := seedPaper(t, repo, "Metformin plus sitagliptin", interactionAbstract)

	index.On("Index", mock.Anything, mock.MatchedBy(func(d pharma.PaperDTO) bool {
		return d.ID == p.ID.String() && d.ProcessingStatus == pharma.StatusCompleted
	})).Return(nil).Once()
	graph.On("RecordInteractions", mock.Anything, p.ID.String(), mock.Anything).Return(nil).Once()
	archive.On("Put", mock.Anything, mock.MatchedBy(func(k string) bool {
		return len(k) > 0 && k[:8] == "reports/"
	}), mock.Anything, "application/json").Return("s3://reports/x.json", nil).Once()

	svc := newService(t, Deps{Repo: repo, Publisher: pub, Index: index, Graph: graph, Archive: archive, Metrics: metrics})

	got, err := svc.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, got.Status)
	require.NotNil(t, got.Analysis)
	assert.NotEmpty(t, got.Analysis.DrugInteractions)
	assert.Empty(t, got.Events())

	stored, ok := repo.Get(p.ID)
	require.True(t, ok)
	assert.Equal(t, pharma.StatusCompleted, stored.Status)
	assert.Equal(t, got.Analysis, stored.Analysis)

	assert.Equal(t, []string{paper.EventPaperAnalyzed}, pub.types())
	assert.Len(t, metrics.analyses, 1)
	index.AssertExpectations(t)
	graph.AssertExpectations(t)
	archive.AssertExpectations(t)
}

func TestAnalyze_BackendFailuresAreLoggedNotReturned(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	logger := testutil.NewMockLogger()
	pub := &recordingPublisher{err: stderrors.New("broker down")}
	index := new(MockIndex)
	index.On("Index", mock.Anything, mock.Anything).Return(stderrors.New("index down"))
	archive := new(MockArchive)
	archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", stderrors.New("bucket missing"))

	p := seedPaper(t, repo, "Aspirin", "Aspirin 100 mg daily.")
	svc := newService(t, Deps{Repo: repo, Publisher: pub, Index: index, Archive: archive, Logger: logger})

	got, err := svc.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, got.Status)
	assert.True(t, logger.HasMessage("warn", "event publish failed"))
	assert.True(t, logger.HasMessage("warn", "search indexing failed"))
	assert.True(t, logger.HasMessage("warn", "report archive failed"))
}

func TestAnalyze_PersistenceFailureMarksFailed(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "Aspirin", "Aspirin 100 mg daily.")
	repo.UpdateErr = errors.New(errors.CodeDatabaseError, "connection reset")
	pub := &recordingPublisher{}

	svc := newService(t, Deps{Repo: repo, Publisher: pub})
	_, err := svc.Analyze(context.Background(), p)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeDatabaseError))

	assert.Equal(t, pharma.StatusFailed, p.Status)
	assert.Contains(t, p.FailureReason, "connection reset")
	stored, _ := repo.Get(p.ID)
	assert.Equal(t, pharma.StatusFailed, stored.Status)
	assert.Equal(t, []string{paper.EventPaperAnalysisFailed}, pub.types())
}

func TestAnalyze_EngineFailureMarksFailed(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "Aspirin", "Aspirin 100 mg daily.")
	analyzer := &stubAnalyzer{fn: func(ctx context.Context, _ pipeline.Document) (*pharma.PharmaceuticalAnalysis, error) {
		return nil, context.Canceled
	}}

	svc := newService(t, Deps{Repo: repo, Analyzer: analyzer})
	_, err := svc.Analyze(context.Background(), p)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisFailed))
	assert.Equal(t, pharma.StatusFailed, p.Status)
}

func TestAnalyze_IllegalStateAndMissingRepo(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "Aspirin", "Aspirin.")
	require.NoError(t, p.StartProcessing())

	svc := newService(t, Deps{Repo: repo})
	_, err := svc.Analyze(context.Background(), p)
	assert.True(t, errors.IsCode(err, errors.CodePaperInvalidState))

	noRepo := newService(t, Deps{})
	_, err = noRepo.Analyze(context.Background(), p)
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
}

func TestAnalyze_ReanalysisOfCompletedPaper(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "Aspirin", "Aspirin.")
	svc := newService(t, Deps{Repo: repo})

	_, err := svc.Analyze(context.Background(), p)
	require.NoError(t, err)
	_, err = svc.Analyze(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, p.Status)
}

func TestAnalyzeByID(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "Aspirin", "Aspirin.")
	svc := newService(t, Deps{Repo: repo})

	got, err := svc.AnalyzeByID(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, got.Status)

	_, err = svc.AnalyzeByID(context.Background(), common.NewID())
	assert.True(t, errors.IsCode(err, errors.CodePaperNotFound))

	_, err = svc.AnalyzeByID(context.Background(), "nope")
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))
}

func TestAnalyzeText_CacheHitSkipsEngine(t *testing.T) {
	analyzedAt := time.Unix(1700000000, 0).UTC()
	cached := &pharma.PharmaceuticalAnalysis{
		RecommendationLevel: pharma.RecommendationConsider,
		PharmaceuticalScore: 42,
		AnalyzedAt:          analyzedAt,
	}
	cache := new(MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(cached, nil).Once()
	analyzer := &stubAnalyzer{}
	metrics := &countingMetrics{}

	svc := newService(t, Deps{Analyzer: analyzer, Cache: cache, Metrics: metrics})
	before := time.Now().UTC()
	got, err := svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{Abstract: "aspirin"})
	require.NoError(t, err)
	assert.Equal(t, pharma.RecommendationConsider, got.RecommendationLevel)
	assert.Equal(t, 42.0, got.PharmaceuticalScore)
	assert.False(t, got.AnalyzedAt.Before(before), "cache hit keeps the stored timestamp")
	assert.Equal(t, analyzedAt, cached.AnalyzedAt)
	assert.Equal(t, int32(0), analyzer.calls.Load())
	assert.Equal(t, 1, metrics.hits)
	cache.AssertExpectations(t)
}

func TestAnalyzeText_CacheMissStoresResult(t *testing.T) {
	req := pharma.AnalyzeTextRequest{Abstract: "aspirin", Journal: "Nature", CitationsCount: pharma.IntPtr(3)}
	key := CacheKey(pipeline.Document{Abstract: "aspirin", Journal: "Nature", Citations: 3})

	cache := new(MockCache)
	cache.On("Get", mock.Anything, key).Return(nil, errors.New(errors.ErrCodeCacheMiss, "miss")).Once()
	cache.On("Set", mock.Anything, key, mock.Anything, 24*time.Hour).Return(nil).Once()
	analyzer := &stubAnalyzer{}
	metrics := &countingMetrics{}

	svc := newService(t, Deps{Analyzer: analyzer, Cache: cache, Metrics: metrics})
	_, err := svc.AnalyzeText(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, int32(1), analyzer.calls.Load())
	assert.Equal(t, 1, metrics.misses)
	cache.AssertExpectations(t)
}

func TestAnalyzeText_CacheErrorFallsThrough(t *testing.T) {
	logger := testutil.NewMockLogger()
	cache := new(MockCache)
	cache.On("Get", mock.Anything, mock.Anything).Return(nil, stderrors.New("redis timeout"))
	cache.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(stderrors.New("redis timeout"))

	svc := newService(t, Deps{Analyzer: &stubAnalyzer{}, Cache: cache, Logger: logger})
	_, err := svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{Abstract: "aspirin"})
	require.NoError(t, err)
	assert.True(t, logger.HasMessage("warn", "analysis cache read failed"))
	assert.True(t, logger.HasMessage("warn", "analysis cache write failed"))
}

func TestAnalyzeText_Validation(t *testing.T) {
	svc, err := NewService(Deps{Analyzer: &stubAnalyzer{}}, Config{MaxTextLength: 10})
	require.NoError(t, err)

	_, err = svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{Abstract: "   "})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisTextEmpty))

	_, err = svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{Abstract: "0123456789", FullText: "x"})
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisTooLarge))
}

func TestAnalyzeText_RealEngine(t *testing.T) {
	svc := newService(t, Deps{})
	a, err := svc.AnalyzeText(context.Background(), pharma.AnalyzeTextRequest{
		Abstract:       interactionAbstract,
		Journal:        "New England Journal of Medicine",
		CitationsCount: pharma.IntPtr(50),
	})
	require.NoError(t, err)
	assert.NotEmpty(t, a.DrugCompounds)
	assert.Equal(t, "metformin", a.DrugCompounds[0].Name)
	assert.True(t, a.QualityScore > 0)
}

func TestSubmit(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	pub := &recordingPublisher{}
	svc := newService(t, Deps{Repo: repo, Publisher: pub})

	p, err := svc.Submit(context.Background(), pharma.PaperDTO{
		ID:       "ignored",
		Title:    "Aspirin",
		Abstract: "Aspirin 100 mg.",
		DOI:      "10.1000/asp",
	}, false)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusPending, p.Status)
	assert.NoError(t, p.ID.Validate())
	assert.Equal(t, []string{paper.EventPaperSubmitted}, pub.types())

	_, err = svc.Submit(context.Background(), pharma.PaperDTO{Title: "Again", Abstract: "x", DOI: "10.1000/ASP"}, false)
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperAlreadyExists))

	analyzed, err := svc.Submit(context.Background(), pharma.PaperDTO{Title: "Now", Abstract: "Insulin."}, true)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, analyzed.Status)

	_, err = svc.Submit(context.Background(), pharma.PaperDTO{Title: "No abstract"}, false)
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperInvalid))
}

func TestAnalyzeBatch_KeepsInputOrder(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	var papers []*paper.Paper
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		papers = append(papers, seedPaper(t, repo, title, "Abstract about "+title+" and aspirin."))
	}
	svc := newService(t, Deps{Repo: repo})

	res, err := svc.AnalyzeBatch(context.Background(), papers)
	require.NoError(t, err)
	assert.Equal(t, 5, res.SuccessCount)
	for i, r := range res.Results {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, papers[i].ID, r.Result.ID)
	}

	_, err = svc.AnalyzeBatch(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisBatchEmpty))
}

func TestAnalyzeBatch_CapturesPerItemFailures(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	good := seedPaper(t, repo, "good", "Aspirin.")
	bad := seedPaper(t, repo, "bad", "Insulin.")
	require.NoError(t, bad.StartProcessing())

	svc := newService(t, Deps{Repo: repo})
	res, err := svc.AnalyzeBatch(context.Background(), []*paper.Paper{good, bad})
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 1, res.FailureCount)
	assert.True(t, errors.IsCode(res.Results[1].Error, errors.CodePaperInvalidState))
}

func TestReprocess(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	pending := seedPaper(t, repo, "pending", "Aspirin.")
	failed := seedPaper(t, repo, "failed", "Insulin.")
	require.NoError(t, failed.StartProcessing())
	require.NoError(t, failed.Fail("boom"))
	require.NoError(t, repo.Save(context.Background(), failed))
	done := seedPaper(t, repo, "done", "Codeine.")
	require.NoError(t, done.StartProcessing())
	require.NoError(t, done.Complete(&pharma.PharmaceuticalAnalysis{}))
	require.NoError(t, repo.Save(context.Background(), done))

	svc := newService(t, Deps{Repo: repo})
	res, err := svc.Reprocess(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalCount)
	assert.Equal(t, 2, res.SuccessCount)

	for _, id := range []common.ID{pending.ID, failed.ID} {
		stored, _ := repo.Get(id)
		assert.Equal(t, pharma.StatusCompleted, stored.Status)
	}

	res, err = svc.Reprocess(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 0, res.TotalCount)
}

func TestAnalyze_PaperClaimedElsewhere(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	seeded := seedPaper(t, repo, "Aspirin", "Aspirin 100 mg daily.")
	p, err := repo.FindByID(context.Background(), seeded.ID)
	require.NoError(t, err)

	// Another worker picks up the same pending paper first.
	claimed, err := repo.Claim(context.Background(), p.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	analyzer := &stubAnalyzer{}
	svc := newService(t, Deps{Analyzer: analyzer, Repo: repo})
	_, err = svc.Analyze(context.Background(), p)
	assert.True(t, errors.IsCode(err, errors.ErrCodeConflict))
	assert.Zero(t, analyzer.calls.Load())

	stored, _ := repo.Get(p.ID)
	assert.Equal(t, pharma.StatusProcessing, stored.Status)
}

func TestReprocess_ReclaimsAbandonedPapers(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	stale := seedPaper(t, repo, "stale", "Aspirin.")
	require.NoError(t, stale.StartProcessing())
	stale.UpdatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Save(context.Background(), stale))

	fresh := seedPaper(t, repo, "fresh", "Insulin.")
	claimed, err := repo.Claim(context.Background(), fresh.ID, time.Minute)
	require.NoError(t, err)
	require.True(t, claimed)

	svc := newService(t, Deps{Repo: repo})
	res, err := svc.Reprocess(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 1, res.SuccessCount)

	got, _ := repo.Get(stale.ID)
	assert.Equal(t, pharma.StatusCompleted, got.Status)
	got, _ = repo.Get(fresh.ID)
	assert.Equal(t, pharma.StatusProcessing, got.Status)
}

func TestReprocess_SkipsPapersClaimedMeanwhile(t *testing.T) {
	repo := testutil.NewMemoryPaperRepo()
	p := seedPaper(t, repo, "pending", "Aspirin.")

	analyzer := &stubAnalyzer{}
	// The claim is taken between listing and analysis.
	racing := &claimingRepo{MemoryPaperRepo: repo, steal: p.ID}
	svc := newService(t, Deps{Analyzer: analyzer, Repo: racing})

	res, err := svc.Reprocess(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.TotalCount)
	assert.Equal(t, 0, res.FailureCount)
	assert.Zero(t, analyzer.calls.Load())
}

// claimingRepo lets another caller win the claim on steal.
type claimingRepo struct {
	*testutil.MemoryPaperRepo
	steal common.ID
}

func (r *claimingRepo) Claim(ctx context.Context, id common.ID, staleAfter time.Duration) (bool, error) {
	if id == r.steal {
		_, err := r.MemoryPaperRepo.Claim(ctx, id, staleAfter)
		if err != nil {
			return false, err
		}
	}
	return r.MemoryPaperRepo.Claim(ctx, id, staleAfter)
}

func TestSearch(t *testing.T) {
	index := new(MockIndex)
	hits := []pharma.PaperDTO{
		{Title: "low", Analysis: &pharma.PharmaceuticalAnalysis{PharmaceuticalScore: 10, QualityScore: 10}},
		{Title: "high", Analysis: &pharma.PharmaceuticalAnalysis{PharmaceuticalScore: 90, QualityScore: 90}},
	}
	index.On("SearchByCompound", mock.Anything, "metformin", 20, 20).Return(hits, 45, nil).Once()

	svc := newService(t, Deps{Index: index})
	res, err := svc.Search(context.Background(), " metformin ", common.Pagination{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 45, res.TotalResults)
	assert.True(t, res.HasMore)
	assert.Equal(t, "high", res.Papers[0].Title)
	index.AssertExpectations(t)

	_, err = svc.Search(context.Background(), "", common.Pagination{})
	assert.True(t, errors.IsCode(err, errors.CodeInvalidParam))

	noIndex := newService(t, Deps{})
	_, err = noIndex.Search(context.Background(), "metformin", common.Pagination{})
	assert.True(t, errors.IsCode(err, errors.ErrCodeFeatureDisabled))
}

func TestPartners(t *testing.T) {
	graph := new(MockGraph)
	want := []pharma.InteractionPartner{{Compound: "sitagliptin", InteractionType: pharma.InteractionSynergistic, PaperCount: 3}}
	graph.On("Partners", mock.Anything, "metformin", 20).Return(want, nil).Once()
	graph.On("Partners", mock.Anything, "warfarin", 5).Return(nil, stderrors.New("neo4j down")).Once()

	svc := newService(t, Deps{Graph: graph})
	got, err := svc.Partners(context.Background(), "metformin", 0)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = svc.Partners(context.Background(), "warfarin", 5)
	assert.True(t, errors.IsCode(err, errors.ErrCodeGraphQueryFailed))
	graph.AssertExpectations(t)
}

func TestRank_AnalyzesMissingAndRanks(t *testing.T) {
	analyzer := &stubAnalyzer{fn: func(_ context.Context, doc pipeline.Document) (*pharma.PharmaceuticalAnalysis, error) {
		return &pharma.PharmaceuticalAnalysis{PharmaceuticalScore: 80, QualityScore: 80}, nil
	}}
	svc := newService(t, Deps{Analyzer: analyzer})

	res, err := svc.Rank(context.Background(), []pharma.PaperDTO{
		{Title: "pre-scored", Abstract: "x", Analysis: &pharma.PharmaceuticalAnalysis{PharmaceuticalScore: 20, QualityScore: 20}},
		{Title: "fresh", Abstract: "aspirin"},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), analyzer.calls.Load())
	assert.Equal(t, "fresh", res.Papers[0].Title)
	assert.Equal(t, pharma.StatusCompleted, res.Papers[0].ProcessingStatus)
	assert.Equal(t, 2, res.TotalResults)
	assert.False(t, res.HasMore)

	_, err = svc.Rank(context.Background(), nil)
	assert.True(t, errors.IsCode(err, errors.ErrCodeAnalysisBatchEmpty))
}
