package models

import "fmt"

// Error codes used in API responses and internal error handling.
const (
	ErrCodeEmptySelection = "EMPTY_SELECTION"
	ErrCodeExportActive   = "EXPORT_ACTIVE"
	ErrCodeCourierTimeout = "COURIER_TIMEOUT"
	ErrCodeFetchFailed    = "FETCH_FAILED"
	ErrCodeSaveFailed     = "SAVE_FAILED"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeBrowserCrash   = "BROWSER_CRASH"
	ErrCodeCardNotFound   = "CARD_NOT_FOUND"
	ErrCodeNoSuchAsset    = "NO_SUCH_ASSET"
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeRateLimited    = "RATE_LIMITED"
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// ErrorDetail is the structured error in API responses.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ExportError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type ExportError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *ExportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(code, message string, err error) *ExportError {
	return &ExportError{Code: code, Message: message, Err: err}
}

// ToDetail converts an internal error to an API-facing ErrorDetail.
func (e *ExportError) ToDetail() *ErrorDetail {
	return &ErrorDetail{Code: e.Code, Message: e.Message}
}

// AsDetail maps any error to an ErrorDetail, preserving the code when the
// error is an ExportError and falling back to INTERNAL_ERROR otherwise.
func AsDetail(err error) *ErrorDetail {
	if ee, ok := err.(*ExportError); ok {
		return ee.ToDetail()
	}
	return &ErrorDetail{Code: ErrCodeInternal, Message: err.Error()}
}
