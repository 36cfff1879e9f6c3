package models

import "fmt"

// Error codes used in results, API responses and internal error handling.
const (
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeTransportTimeout  = "TRANSPORT_TIMEOUT"
	ErrCodeTransportError    = "TRANSPORT_ERROR"
	ErrCodeRenderUnavailable = "RENDER_UNAVAILABLE"
	ErrCodeBothMethodsFailed = "BOTH_METHODS_FAILED"

	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeRateLimited  = "RATE_LIMITED"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// User-facing messages for scrape failures.
const (
	MsgInvalidURL        = "Invalid URL format"
	MsgBothMethodsFailed = "Both static HTTP and rendered browser fetch failed"
	MsgTimeout           = "Request timeout"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse is the body of a non-2xx API response.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// ScrapeError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ScrapeError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ScrapeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ScrapeError) Unwrap() error {
	return e.Err
}

// NewScrapeError creates a new ScrapeError.
func NewScrapeError(code, message string, err error) *ScrapeError {
	return &ScrapeError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ScrapeError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// FailedResult builds an unsuccessful ScrapeResult for url from err.
// Errors that are not ScrapeErrors are reported as INTERNAL_ERROR.
func FailedResult(url string, err error) *ScrapeResult {
	se, ok := err.(*ScrapeError)
	if !ok {
		se = NewScrapeError(ErrCodeInternal, err.Error(), err)
	}
	return &ScrapeResult{
		URL:       url,
		Success:   false,
		Error:     se.Message,
		ErrorCode: se.Code,
	}
}
