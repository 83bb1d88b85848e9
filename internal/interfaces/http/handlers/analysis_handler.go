package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/turtacn/CureAnalytics/internal/application/analysis"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
	"github.com/turtacn/CureAnalytics/pkg/types/pharma"
)

// AnalysisHandler exposes the analysis service over HTTP.
type AnalysisHandler struct {
	svc         analysis.Service
	maxBodySize int64
}

// NewAnalysisHandler returns a handler for svc.  A non-positive maxBodySize
// means DefaultMaxBodySize.
func NewAnalysisHandler(svc analysis.Service, maxBodySize int64) *AnalysisHandler {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &AnalysisHandler{svc: svc, maxBodySize: maxBodySize}
}

// RankRequest is the body of POST /papers/rank.
type RankRequest struct {
	Papers []pharma.PaperDTO `json:"papers"`
}

// AnalyzeText handles POST /analyze.
func (h *AnalysisHandler) AnalyzeText(w http.ResponseWriter, r *http.Request) {
	var req pharma.AnalyzeTextRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	a, err := h.svc.AnalyzeText(r.Context(), req)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreatePaper handles POST /papers.  The paper is analyzed synchronously
// unless ?analyze=false, in which case it is queued for the worker and the
// response is 202.
func (h *AnalysisHandler) CreatePaper(w http.ResponseWriter, r *http.Request) {
	var dto pharma.PaperDTO
	if err := decodeJSON(w, r, h.maxBodySize, &dto); err != nil {
		writeAppError(w, r, err)
		return
	}
	analyze := true
	if v := r.URL.Query().Get("analyze"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeAppError(w, r, errors.InvalidParam("analyze must be a boolean"))
			return
		}
		analyze = b
	}
	p, err := h.svc.Submit(r.Context(), dto, analyze)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	status := http.StatusCreated
	if !analyze {
		status = http.StatusAccepted
	}
	w.Header().Set("Location", "/api/v1/papers/"+string(p.ID))
	writeJSON(w, status, p.ToDTO())
}

// GetPaper handles GET /papers/{id}.
func (h *AnalysisHandler) GetPaper(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paperID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.ToDTO())
}

// AnalyzePaper handles POST /papers/{id}/analyze.
func (h *AnalysisHandler) AnalyzePaper(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paperID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.AnalyzeByID(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p.ToDTO())
}

// PaperReport handles GET /papers/{id}/report?format=markdown|html.
func (h *AnalysisHandler) PaperReport(w http.ResponseWriter, r *http.Request) {
	id, ok := h.paperID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "", "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		_, _ = w.Write([]byte(analysis.RenderMarkdown(p.ToDTO())))
	case "html":
		body, err := analysis.RenderHTML(p.ToDTO())
		if err != nil {
			writeAppError(w, r, errors.Wrap(err, errors.ErrCodeInternal, "render report"))
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(body)
	default:
		writeAppError(w, r, errors.InvalidParam("format must be markdown or html"))
	}
}

// Rank handles POST /papers/rank.
func (h *AnalysisHandler) Rank(w http.ResponseWriter, r *http.Request) {
	var req RankRequest
	if err := decodeJSON(w, r, h.maxBodySize, &req); err != nil {
		writeAppError(w, r, err)
		return
	}
	res, err := h.svc.Rank(r.Context(), req.Papers)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Search handles GET /search?drug=&page=&page_size=.
func (h *AnalysisHandler) Search(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Search(r.Context(), r.URL.Query().Get("drug"), parsePagination(r))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Partners handles GET /compounds/{name}/partners?limit=.
func (h *AnalysisHandler) Partners(w http.ResponseWriter, r *http.Request) {
	partners, err := h.svc.Partners(r.Context(), chi.URLParam(r, "name"), queryInt(r, "limit", 20))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"partners": partners})
}

func (h *AnalysisHandler) paperID(w http.ResponseWriter, r *http.Request) (common.ID, bool) {
	id := common.ID(chi.URLParam(r, "id"))
	if err := id.Validate(); err != nil {
		writeAppError(w, r, errors.InvalidParam("paper id must be a UUID"))
		return "", false
	}
	return id, true
}
