package errors

import "fmt"

// ErrorCode represents an edfconv error code.
type ErrorCode string

const (
	ErrNotFound          ErrorCode = "NOT_FOUND"          // input path absent; fatal, no conversion attempted
	ErrUnsupportedFormat ErrorCode = "UNSUPPORTED_FORMAT" // no conversion strategy matches the detected format
	ErrExtraction        ErrorCode = "EXTRACTION"         // malformed annotations, unparsable timestamps, bad spreadsheet
	ErrVerification      ErrorCode = "VERIFICATION"       // written file failed the re-open check
	ErrInvalidRequest    ErrorCode = "INVALID_REQUEST"    // bad CLI/MCP parameters
	ErrInternal          ErrorCode = "INTERNAL"
)

// ConvError represents a structured error with code and details.
type ConvError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ConvError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFound creates an error for a missing input path.
func NewNotFound(path string) *ConvError {
	return &ConvError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewUnsupportedFormat creates an error for a file no strategy can convert.
func NewUnsupportedFormat(path, reason string) *ConvError {
	return &ConvError{
		Code:    ErrUnsupportedFormat,
		Message: fmt.Sprintf("no suitable converter for %s: %s", path, reason),
		Details: map[string]any{"path": path, "reason": reason},
	}
}

// NewExtraction creates an error for a failed annotation extraction.
func NewExtraction(path string, err error) *ConvError {
	return &ConvError{
		Code:    ErrExtraction,
		Message: fmt.Sprintf("annotation extraction failed for %s: %v", path, err),
		Details: map[string]any{"path": path},
	}
}

// NewVerification creates an error for a converted file that fails to re-open.
// Partial output exists on disk when this is returned; it is left for inspection.
func NewVerification(path string, err error) *ConvError {
	return &ConvError{
		Code:    ErrVerification,
		Message: fmt.Sprintf("verification failed for %s: %v", path, err),
		Details: map[string]any{"path": path},
	}
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *ConvError {
	return &ConvError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *ConvError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ConvError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a ConvError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*ConvError); ok {
		return cErr.Code == code
	}
	return false
}

// AsConvError extracts the structured error, if err is one.
func AsConvError(err error) (*ConvError, bool) {
	cErr, ok := err.(*ConvError)
	return cErr, ok
}
