package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are prefixed by the module that owns them.
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeUnauthorized       ErrorCode = "COMMON_003"
	ErrCodeForbidden          ErrorCode = "COMMON_004"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeConflict           ErrorCode = "COMMON_006"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeDatabaseError      ErrorCode = "COMMON_012"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeExternalService    ErrorCode = "COMMON_014"
	ErrCodeFeatureDisabled    ErrorCode = "COMMON_015"
)

// Paper module error codes.
const (
	ErrCodePaperNotFound      ErrorCode = "PAPER_001"
	ErrCodePaperAlreadyExists ErrorCode = "PAPER_002"
	ErrCodePaperInvalid       ErrorCode = "PAPER_003"
	ErrCodePaperInvalidState  ErrorCode = "PAPER_004"
)

// Analysis module error codes.
const (
	ErrCodeAnalysisFailed     ErrorCode = "ANALYSIS_001"
	ErrCodeAnalysisTextEmpty  ErrorCode = "ANALYSIS_002"
	ErrCodeAnalysisBatchEmpty ErrorCode = "ANALYSIS_003"
	ErrCodeAnalysisTooLarge   ErrorCode = "ANALYSIS_004"
)

// Entity tagger error codes.  These never reach API callers because extraction
// falls back to the lexicon, but they are logged and counted.
const (
	ErrCodeTaggerUnavailable ErrorCode = "TAGGER_001"
	ErrCodeTaggerInitFailed  ErrorCode = "TAGGER_002"
	ErrCodeTaggerBadResponse ErrorCode = "TAGGER_003"
)

// Infrastructure error codes.
const (
	ErrCodeCacheMiss          ErrorCode = "CACHE_001"
	ErrCodeSearchFailed       ErrorCode = "SEARCH_001"
	ErrCodeSearchIndexFailed  ErrorCode = "SEARCH_002"
	ErrCodeGraphQueryFailed   ErrorCode = "GRAPH_001"
	ErrCodeStorageFailed      ErrorCode = "STORAGE_001"
	ErrCodeStorageNotFound    ErrorCode = "STORAGE_002"
	ErrCodeEventPublishFailed ErrorCode = "EVENT_001"
	ErrCodeEventInvalid       ErrorCode = "EVENT_002"
)

// Short aliases used at call sites.
const (
	CodeOK                 = ErrorCode("OK")
	CodeUnknown            = ErrorCode("UNKNOWN")
	CodeInternal           = ErrCodeInternal
	CodeInvalidParam       = ErrCodeBadRequest
	CodeNotFound           = ErrCodeNotFound
	CodeConflict           = ErrCodeConflict
	CodeRateLimit          = ErrCodeTooManyRequests
	CodeServiceUnavailable = ErrCodeServiceUnavailable
	CodeValidation         = ErrCodeValidation
	CodeDatabaseError      = ErrCodeDatabaseError
	CodeSerialization      = ErrCodeSerialization

	CodePaperNotFound     = ErrCodePaperNotFound
	CodePaperInvalidState = ErrCodePaperInvalidState
)

// ErrorCodeHTTPStatus maps codes to HTTP statuses.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeDatabaseError:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeExternalService:    http.StatusBadGateway,
	ErrCodeFeatureDisabled:    http.StatusNotImplemented,

	ErrCodePaperNotFound:      http.StatusNotFound,
	ErrCodePaperAlreadyExists: http.StatusConflict,
	ErrCodePaperInvalid:       http.StatusBadRequest,
	ErrCodePaperInvalidState:  http.StatusConflict,

	ErrCodeAnalysisFailed:     http.StatusInternalServerError,
	ErrCodeAnalysisTextEmpty:  http.StatusBadRequest,
	ErrCodeAnalysisBatchEmpty: http.StatusBadRequest,
	ErrCodeAnalysisTooLarge:   http.StatusRequestEntityTooLarge,

	ErrCodeTaggerUnavailable: http.StatusServiceUnavailable,
	ErrCodeTaggerInitFailed:  http.StatusServiceUnavailable,
	ErrCodeTaggerBadResponse: http.StatusBadGateway,

	ErrCodeCacheMiss:          http.StatusNotFound,
	ErrCodeSearchFailed:       http.StatusBadGateway,
	ErrCodeSearchIndexFailed:  http.StatusBadGateway,
	ErrCodeGraphQueryFailed:   http.StatusBadGateway,
	ErrCodeStorageFailed:      http.StatusBadGateway,
	ErrCodeStorageNotFound:    http.StatusNotFound,
	ErrCodeEventPublishFailed: http.StatusBadGateway,
	ErrCodeEventInvalid:       http.StatusBadRequest,
}

// ErrorCodeMessage maps codes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeUnauthorized:       "unauthorized",
	ErrCodeForbidden:          "forbidden",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeDatabaseError:      "database error",
	ErrCodeCacheError:         "cache error",
	ErrCodeExternalService:    "external service error",
	ErrCodeFeatureDisabled:    "feature disabled",

	ErrCodePaperNotFound:      "paper not found",
	ErrCodePaperAlreadyExists: "paper already exists",
	ErrCodePaperInvalid:       "invalid paper",
	ErrCodePaperInvalidState:  "invalid paper processing state",

	ErrCodeAnalysisFailed:     "analysis failed",
	ErrCodeAnalysisTextEmpty:  "paper text is empty",
	ErrCodeAnalysisBatchEmpty: "batch is empty",
	ErrCodeAnalysisTooLarge:   "paper text exceeds the configured limit",

	ErrCodeTaggerUnavailable: "entity tagger unavailable",
	ErrCodeTaggerInitFailed:  "entity tagger initialisation failed",
	ErrCodeTaggerBadResponse: "entity tagger returned a malformed response",

	ErrCodeCacheMiss:          "cache miss",
	ErrCodeSearchFailed:       "search failed",
	ErrCodeSearchIndexFailed:  "search indexing failed",
	ErrCodeGraphQueryFailed:   "interaction graph query failed",
	ErrCodeStorageFailed:      "object storage operation failed",
	ErrCodeStorageNotFound:    "object not found",
	ErrCodeEventPublishFailed: "event publish failed",
	ErrCodeEventInvalid:       "invalid event",
}

// HTTPStatusForCode returns the HTTP status for code, 500 when unmapped.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of code.
func ModuleForCode(code ErrorCode) string {
	parts := strings.SplitN(string(code), "_", 2)
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}
