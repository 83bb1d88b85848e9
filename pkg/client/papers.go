package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// SearchOptions pages a compound search.  Zero values mean server defaults.
type SearchOptions struct {
	Page     int
	PageSize int
}

// Analyze scores an ad-hoc text without storing it.
func (c *Client) Analyze(ctx context.Context, req pharma.AnalyzeTextRequest) (*pharma.PharmaceuticalAnalysis, error) {
	var out pharma.PharmaceuticalAnalysis
	if err := c.post(ctx, "/api/v1/analyze", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePaper stores a paper.  With analyze false the server queues it for
// background analysis instead of analyzing it inline.
func (c *Client) CreatePaper(ctx context.Context, p pharma.PaperDTO, analyze bool) (*pharma.PaperDTO, error) {
	var out pharma.PaperDTO
	path := "/api/v1/papers?analyze=" + strconv.FormatBool(analyze)
	if err := c.post(ctx, path, p, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPaper(ctx context.Context, id string) (*pharma.PaperDTO, error) {
	var out pharma.PaperDTO
	if err := c.get(ctx, "/api/v1/papers/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzePaper re-runs the analysis of a stored paper.
func (c *Client) AnalyzePaper(ctx context.Context, id string) (*pharma.PaperDTO, error) {
	var out pharma.PaperDTO
	if err := c.post(ctx, "/api/v1/papers/"+url.PathEscape(id)+"/analyze", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Report fetches the rendered report of a stored paper, format being
// "markdown" or "html".
func (c *Client) Report(ctx context.Context, id, format string) ([]byte, error) {
	var body []byte
	path := fmt.Sprintf("/api/v1/papers/%s/report?format=%s", url.PathEscape(id), url.QueryEscape(format))
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &body); err != nil {
		return nil, err
	}
	return body, nil
}

// Rank analyzes and ranks papers without storing them.
func (c *Client) Rank(ctx context.Context, papers []pharma.PaperDTO) (*pharma.DrugSearchResult, error) {
	var out pharma.DrugSearchResult
	if err := c.post(ctx, "/api/v1/papers/rank", map[string]any{"papers": papers}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Search returns stored papers mentioning drug, best first.
func (c *Client) Search(ctx context.Context, drug string, opts SearchOptions) (*pharma.DrugSearchResult, error) {
	q := url.Values{"drug": {drug}}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(opts.PageSize))
	}
	var out pharma.DrugSearchResult
	if err := c.get(ctx, "/api/v1/search?"+q.Encode(), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Partners lists the compounds recorded as interacting with compound.
func (c *Client) Partners(ctx context.Context, compound string, limit int) ([]pharma.InteractionPartner, error) {
	path := "/api/v1/compounds/" + url.PathEscape(compound) + "/partners"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out struct {
		Partners []pharma.InteractionPartner `json:"partners"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Partners, nil
}
