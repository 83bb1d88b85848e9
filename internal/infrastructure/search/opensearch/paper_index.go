package opensearch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/opensearch-project/opensearch-go/v2/opensearchapi"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// PaperIndexName is appended to the configured prefix.
const PaperIndexName = "papers"

// paperMapping keeps compound names as lowercase keywords so a compound query
// is an exact term match.  The full DTO is stored but not indexed.
const paperMapping = `{
  "settings": {"number_of_shards": 1, "number_of_replicas": 0},
  "mappings": {
    "properties": {
      "title":                {"type": "text"},
      "abstract":             {"type": "text"},
      "journal":              {"type": "keyword"},
      "compounds":            {"type": "keyword"},
      "pharmaceutical_score": {"type": "float"},
      "quality_score":        {"type": "float"},
      "recommendation_level": {"type": "keyword"},
      "citations":            {"type": "integer"},
      "paper":                {"type": "object", "enabled": false}
    }
  }
}`

type paperDoc struct {
	Title               string          `json:"title"`
	Abstract            string          `json:"abstract"`
	Journal             string          `json:"journal,omitempty"`
	Compounds           []string        `json:"compounds"`
	PharmaceuticalScore float64         `json:"pharmaceutical_score"`
	QualityScore        float64         `json:"quality_score"`
	RecommendationLevel string          `json:"recommendation_level,omitempty"`
	Citations           int             `json:"citations"`
	Paper               pharma.PaperDTO `json:"paper"`
}

func newPaperDoc(p pharma.PaperDTO) paperDoc {
	doc := paperDoc{
		Title:     p.Title,
		Abstract:  p.Abstract,
		Journal:   p.Journal,
		Compounds: []string{},
		Paper:     p,
	}
	// Full text is kept in Postgres only.
	doc.Paper.FullText = ""
	if p.CitationsCount != nil {
		doc.Citations = *p.CitationsCount
	}
	if a := p.Analysis; a != nil {
		doc.PharmaceuticalScore = a.PharmaceuticalScore
		doc.QualityScore = a.QualityScore
		doc.RecommendationLevel = string(a.RecommendationLevel)
		for _, c := range a.DrugCompounds {
			doc.Compounds = append(doc.Compounds, strings.ToLower(c.Name))
		}
	}
	return doc
}

// PaperIndex stores analyzed papers in one OpenSearch index.
type PaperIndex struct {
	client  *Client
	index   string
	refresh string
	logger  logging.Logger
}

// PaperIndexOption configures a PaperIndex.
type PaperIndexOption func(*PaperIndex)

// WithRefresh sets the refresh policy used on writes ("true", "wait_for", "false").
func WithRefresh(policy string) PaperIndexOption {
	return func(p *PaperIndex) { p.refresh = policy }
}

// NewPaperIndex returns an index named prefix+"papers".
func NewPaperIndex(client *Client, prefix string, log logging.Logger, opts ...PaperIndexOption) *PaperIndex {
	if log == nil {
		log = logging.NewNopLogger()
	}
	p := &PaperIndex{client: client, index: prefix + PaperIndexName, refresh: "false", logger: log}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Name returns the concrete index name.
func (p *PaperIndex) Name() string { return p.index }

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (p *PaperIndex) EnsureIndex(ctx context.Context) error {
	resp, err := opensearchapi.IndicesExistsRequest{Index: []string{p.index}}.Do(ctx, p.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "check index existence")
	}
	resp.Body.Close()
	switch resp.StatusCode {
	case 200:
		return nil
	case 404:
	default:
		return errors.Newf(errors.ErrCodeSearchIndexFailed, "check index existence: status %d", resp.StatusCode)
	}

	resp, err = opensearchapi.IndicesCreateRequest{
		Index: p.index,
		Body:  strings.NewReader(paperMapping),
	}.Do(ctx, p.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "create index")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		// Another replica may have won the race.
		if resp.StatusCode == 400 && bodyContains(resp.Body, "resource_already_exists_exception") {
			return nil
		}
		return errors.Newf(errors.ErrCodeSearchIndexFailed, "create index: status %d", resp.StatusCode)
	}
	p.logger.Info("opensearch index created", logging.String("index", p.index))
	return nil
}

// Index upserts one paper keyed by its ID.
func (p *PaperIndex) Index(ctx context.Context, paper pharma.PaperDTO) error {
	if paper.ID == "" {
		return errors.InvalidParam("paper id is required for indexing")
	}
	body, err := json.Marshal(newPaperDoc(paper))
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal paper document")
	}
	resp, err := opensearchapi.IndexRequest{
		Index:      p.index,
		DocumentID: paper.ID,
		Body:       bytes.NewReader(body),
		Refresh:    p.refresh,
	}.Do(ctx, p.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "index paper")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return p.responseError(resp, errors.ErrCodeSearchIndexFailed, "index paper")
	}
	return nil
}

// Delete removes a paper from the index.  A missing document is not an error.
func (p *PaperIndex) Delete(ctx context.Context, id string) error {
	resp, err := opensearchapi.DeleteRequest{Index: p.index, DocumentID: id, Refresh: p.refresh}.Do(ctx, p.client.Raw())
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSearchIndexFailed, "delete paper")
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return p.responseError(resp, errors.ErrCodeSearchIndexFailed, "delete paper")
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source paperDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// SearchByCompound returns papers whose analysis names compound, best
// pharmaceutical score first, together with the total hit count.
func (p *PaperIndex) SearchByCompound(ctx context.Context, compound string, offset, limit int) ([]pharma.PaperDTO, int, error) {
	compound = strings.TrimSpace(compound)
	if compound == "" {
		return nil, 0, errors.InvalidParam("compound is required")
	}
	if offset < 0 {
		offset = 0
	}
	query := map[string]any{
		"from":             offset,
		"size":             limit,
		"track_total_hits": true,
		"query": map[string]any{
			"bool": map[string]any{
				"filter": []any{
					map[string]any{"term": map[string]any{"compounds": strings.ToLower(compound)}},
				},
			},
		},
		"sort": []any{
			map[string]any{"pharmaceutical_score": map[string]any{"order": "desc"}},
			map[string]any{"citations": map[string]any{"order": "desc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSerialization, "failed to marshal search query")
	}

	resp, err := opensearchapi.SearchRequest{
		Index: []string{p.index},
		Body:  bytes.NewReader(body),
	}.Do(ctx, p.client.Raw())
	if err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSearchFailed, "search by compound")
	}
	defer resp.Body.Close()
	if resp.IsError() {
		return nil, 0, p.responseError(resp, errors.ErrCodeSearchFailed, "search by compound")
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, 0, errors.Wrap(err, errors.ErrCodeSerialization, "decode search response")
	}
	out := make([]pharma.PaperDTO, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		out = append(out, h.Source.Paper)
	}
	return out, sr.Hits.Total.Value, nil
}

func (p *PaperIndex) responseError(resp *opensearchapi.Response, code errors.ErrorCode, op string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	p.logger.Warn("opensearch request failed",
		logging.String("index", p.index),
		logging.String("op", op),
		logging.Int("status", resp.StatusCode),
		logging.String("body", string(raw)),
	)
	return errors.Newf(code, "%s: status %d", op, resp.StatusCode)
}

func bodyContains(r io.Reader, needle string) bool {
	raw, _ := io.ReadAll(io.LimitReader(r, 4096))
	return bytes.Contains(raw, []byte(needle))
}
