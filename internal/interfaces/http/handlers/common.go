package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/turtacn/CureAnalytics/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/CureAnalytics/pkg/errors"
	"github.com/turtacn/CureAnalytics/pkg/types/common"
)

// DefaultMaxBodySize bounds request bodies when no limit is configured.
const DefaultMaxBodySize = 4 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func parsePagination(r *http.Request) common.Pagination {
	p := common.Pagination{Page: 1, PageSize: common.DefaultPageSize}
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && v > 0 {
		p.Page = v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("page_size")); err == nil && v > 0 {
		p.PageSize = v
	}
	return p.Normalize()
}

func queryInt(r *http.Request, key string, def int) int {
	if v, err := strconv.Atoi(r.URL.Query().Get(key)); err == nil && v > 0 {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// decodeJSON reads at most limit bytes of JSON into dst.  Unknown fields are
// rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, limit int64, dst any) error {
	if limit <= 0 {
		limit = DefaultMaxBodySize
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, limit))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return errors.Newf(errors.ErrCodeAnalysisTooLarge, "request body exceeds %d bytes", limit)
		case err == io.EOF:
			return errors.InvalidParam("request body is empty")
		default:
			return errors.Wrap(err, errors.CodeInvalidParam, "malformed JSON body")
		}
	}
	return nil
}

// writeAppError maps err to its HTTP status.  Server-side failures are logged
// and their message masked.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	msg := err.Error()
	var appErr *errors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= 500 {
		logging.FromContext(r.Context()).Error("request failed",
			logging.String("path", r.URL.Path),
			logging.String("code", string(code)),
			logging.Err(err))
		if code == errors.ErrCodeInternal || code == errors.CodeUnknown {
			code = errors.ErrCodeInternal
			msg = "internal server error"
		}
	}
	writeJSON(w, status, ErrorResponse{Code: string(code), Message: msg})
}
