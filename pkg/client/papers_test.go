package client

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

func TestClient_Analyze(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/analyze", r.URL.Path)
		var req pharma.AnalyzeTextRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "aspirin 100 mg", req.Abstract)
		_ = json.NewEncoder(w).Encode(pharma.PharmaceuticalAnalysis{PharmaceuticalScore: 42})
	})
	a, err := c.Analyze(context.Background(), pharma.AnalyzeTextRequest{Abstract: "aspirin 100 mg"})
	require.NoError(t, err)
	assert.Equal(t, 42.0, a.PharmaceuticalScore)
}

func TestClient_CreateAndGetPaper(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/papers":
			assert.Equal(t, "false", r.URL.Query().Get("analyze"))
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(pharma.PaperDTO{ID: "p1", ProcessingStatus: pharma.StatusPending})
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/papers/p1":
			_ = json.NewEncoder(w).Encode(pharma.PaperDTO{ID: "p1", ProcessingStatus: pharma.StatusCompleted})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/papers/p1/analyze":
			_ = json.NewEncoder(w).Encode(pharma.PaperDTO{ID: "p1", ProcessingStatus: pharma.StatusCompleted})
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	})
	ctx := context.Background()

	p, err := c.CreatePaper(ctx, pharma.PaperDTO{Title: "t", Abstract: "a"}, false)
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusPending, p.ProcessingStatus)

	p, err = c.GetPaper(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, pharma.StatusCompleted, p.ProcessingStatus)

	_, err = c.AnalyzePaper(ctx, "p1")
	require.NoError(t, err)
}

func TestClient_Report(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "html", r.URL.Query().Get("format"))
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<h1>Report</h1>"))
	})
	body, err := c.Report(context.Background(), "p1", "html")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Report</h1>", string(body))
}

func TestClient_Rank(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Papers []pharma.PaperDTO `json:"papers"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Papers, 2)
		_ = json.NewEncoder(w).Encode(pharma.DrugSearchResult{Papers: body.Papers, TotalResults: 2})
	})
	res, err := c.Rank(context.Background(), []pharma.PaperDTO{{Title: "a"}, {Title: "b"}})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalResults)
}

func TestClient_Search(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/api/v1/search", r.URL.Path)
		assert.Equal(t, "acetylsalicylic acid", q.Get("drug"))
		assert.Equal(t, "2", q.Get("page"))
		assert.Empty(t, q.Get("page_size"))
		_ = json.NewEncoder(w).Encode(pharma.DrugSearchResult{TotalResults: 30, HasMore: true})
	})
	res, err := c.Search(context.Background(), "acetylsalicylic acid", SearchOptions{Page: 2})
	require.NoError(t, err)
	assert.True(t, res.HasMore)
}

func TestClient_Partners(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/compounds/warfarin/partners", r.URL.Path)
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"partners":[{"compound":"aspirin","interaction_type":"antagonistic","severity":"severe","paper_count":2}]}`))
	})
	ps, err := c.Partners(context.Background(), "warfarin", 5)
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, pharma.SeveritySevere, ps[0].Severity)
}
