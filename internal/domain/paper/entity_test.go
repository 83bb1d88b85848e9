package paper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

func newTestPaper(t *testing.T) *Paper {
	t.Helper()
	p, err := NewPaper("  Metformin in type 2 diabetes ", "A randomized controlled trial of metformin.")
	require.NoError(t, err)
	return p
}

func TestNewPaper(t *testing.T) {
	p := newTestPaper(t)

	assert.NoError(t, p.ID.Validate())
	assert.Equal(t, "Metformin in type 2 diabetes", p.Title)
	assert.Equal(t, pharma.StatusPending, p.Status)
	assert.Equal(t, 1, p.Version)
	assert.False(t, p.CreatedAt.IsZero())

	events := p.Events()
	require.Len(t, events, 1)
	assert.Equal(t, EventPaperSubmitted, events[0].EventType())
	assert.Equal(t, p.ID.String(), events[0].AggregateID())
}

func TestNewPaper_Validation(t *testing.T) {
	_, err := NewPaper("", "abstract")
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperInvalid))

	_, err = NewPaper("title", "   ")
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperInvalid))
}

func TestPaper_TextAndCitations(t *testing.T) {
	p := newTestPaper(t)
	p.Abstract = "Abstract."
	p.FullText = "Body."
	assert.Equal(t, "Abstract.Body.", p.Text())

	assert.Equal(t, 0, p.Citations())
	p.CitationsCount = pharma.IntPtr(12)
	assert.Equal(t, 12, p.Citations())

	p.CitationsCount = pharma.IntPtr(-1)
	assert.Error(t, p.Validate())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to pharma.ProcessingStatus
		want     bool
	}{
		{pharma.StatusPending, pharma.StatusProcessing, true},
		{pharma.StatusPending, pharma.StatusCompleted, false},
		{pharma.StatusProcessing, pharma.StatusCompleted, true},
		{pharma.StatusProcessing, pharma.StatusFailed, true},
		{pharma.StatusProcessing, pharma.StatusPending, false},
		{pharma.StatusFailed, pharma.StatusProcessing, true},
		{pharma.StatusFailed, pharma.StatusCompleted, false},
		{pharma.StatusCompleted, pharma.StatusProcessing, true},
		{pharma.StatusCompleted, pharma.StatusFailed, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestPaper_Lifecycle(t *testing.T) {
	p := newTestPaper(t)
	p.ClearEvents()

	require.NoError(t, p.StartProcessing())
	assert.Equal(t, pharma.StatusProcessing, p.Status)
	assert.Equal(t, 2, p.Version)

	analysis := &pharma.PharmaceuticalAnalysis{
		DrugCompounds:       []pharma.DrugCompound{{Name: "metformin", Mentions: 2}},
		EvidenceQuality:     pharma.EvidenceMedium,
		PharmaceuticalScore: 42,
		QualityScore:        70,
		RecommendationLevel: pharma.RecommendationConsider,
	}
	require.NoError(t, p.Complete(analysis))
	assert.True(t, p.IsAnalyzed())

	events := p.Events()
	require.Len(t, events, 1)
	analyzed, ok := events[0].(*PaperAnalyzedEvent)
	require.True(t, ok)
	assert.Equal(t, []string{"metformin"}, analyzed.Compounds)
	assert.Equal(t, pharma.RecommendationConsider, analyzed.Recommendation)
	assert.Equal(t, 42.0, analyzed.PharmaceuticalScore)

	// Re-analysis then failure keeps the earlier analysis.
	require.NoError(t, p.StartProcessing())
	require.NoError(t, p.Fail("database unavailable"))
	assert.Equal(t, pharma.StatusFailed, p.Status)
	assert.Equal(t, "database unavailable", p.FailureReason)
	assert.Same(t, analysis, p.Analysis)
	assert.False(t, p.IsAnalyzed())

	require.NoError(t, p.StartProcessing())
	assert.Empty(t, p.FailureReason)
}

func TestPaper_IllegalTransitions(t *testing.T) {
	p := newTestPaper(t)

	err := p.Complete(&pharma.PharmaceuticalAnalysis{})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodePaperInvalidState))
	assert.Equal(t, pharma.StatusPending, p.Status)
	assert.Nil(t, p.Analysis)

	err = p.Fail("x")
	assert.True(t, errors.IsCode(err, errors.CodePaperInvalidState))

	require.NoError(t, p.StartProcessing())
	err = p.StartProcessing()
	assert.True(t, errors.IsCode(err, errors.CodePaperInvalidState))

	assert.Error(t, p.Complete(nil))
}

func TestPaper_DTORoundTrip(t *testing.T) {
	p := newTestPaper(t)
	p.Authors = []string{"A. Author"}
	p.Journal = "The Lancet"
	p.DOI = "10.1000/xyz"
	p.CitationsCount = pharma.IntPtr(5)

	dto := p.ToDTO()
	assert.Equal(t, p.ID.String(), dto.ID)
	assert.Equal(t, pharma.StatusPending, dto.ProcessingStatus)

	back, err := FromDTO(dto)
	require.NoError(t, err)
	assert.Equal(t, p.ID, back.ID)
	assert.Equal(t, p.Journal, back.Journal)
	assert.Equal(t, 5, back.Citations())
	assert.Empty(t, back.Events())
}

func TestFromDTO_Defaults(t *testing.T) {
	p, err := FromDTO(pharma.PaperDTO{Title: "T", Abstract: "A", DOI: " 10.1/x "})
	require.NoError(t, err)
	assert.NoError(t, p.ID.Validate())
	assert.Equal(t, pharma.StatusPending, p.Status)
	assert.Equal(t, "10.1/x", p.DOI)
	assert.False(t, p.CreatedAt.IsZero())
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)

	_, err = FromDTO(pharma.PaperDTO{ID: "bogus", Title: "T", Abstract: "A"})
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperInvalid))

	_, err = FromDTO(pharma.PaperDTO{ID: string(common.NewID()), Title: "T", Abstract: "A", ProcessingStatus: "archived"})
	assert.True(t, errors.IsCode(err, errors.ErrCodePaperInvalid))
}
