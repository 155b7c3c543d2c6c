package errors

import "fmt"

// ErrorCode represents a medscan error code.
type ErrorCode string

const (
	ErrInvalidRequest        ErrorCode = "INVALID_REQUEST"         // 400
	ErrNotFound              ErrorCode = "NOT_FOUND"               // 404
	ErrSessionClosed         ErrorCode = "SESSION_CLOSED"          // 409
	ErrRecognitionFailed     ErrorCode = "RECOGNITION_FAILED"      // 422
	ErrCaptureFailed         ErrorCode = "CAPTURE_FAILED"          // 500
	ErrPersistenceFailed     ErrorCode = "PERSISTENCE_FAILED"      // 500
	ErrInternal              ErrorCode = "INTERNAL"                // 500
	ErrQualityAnalysisFailed ErrorCode = "QUALITY_ANALYSIS_FAILED" // 502
	ErrConnectivity          ErrorCode = "CONNECTIVITY"            // 503
)

// MedError represents a structured error with code, status, and details.
type MedError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
	Cause   error
}

// Error implements the error interface.
func (e *MedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport or storage error, if any.
func (e *MedError) Unwrap() error {
	return e.Cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *MedError {
	return &MedError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing history record.
func NewNotFound(identifier string) *MedError {
	return &MedError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("history record not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewSessionClosed creates a 409 error for operations on a torn-down session.
func NewSessionClosed(sessionID string) *MedError {
	return &MedError{
		Code:    ErrSessionClosed,
		Status:  409,
		Message: "capture session is closed",
		Details: map[string]any{"session_id": sessionID},
	}
}

// NewConnectivity creates a 503 error when the recognition backend is unreachable.
func NewConnectivity(baseURL string, cause error) *MedError {
	msg := "recognition service unreachable"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MedError{
		Code:    ErrConnectivity,
		Status:  503,
		Message: msg,
		Details: map[string]any{"base_url": baseURL},
		Cause:   cause,
	}
}

// NewCaptureFailed creates a 500 error for a camera-level failure.
func NewCaptureFailed(cause error) *MedError {
	msg := "photo capture failed"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MedError{
		Code:    ErrCaptureFailed,
		Status:  500,
		Message: msg,
		Cause:   cause,
	}
}

// NewQualityAnalysisFailed creates a 502 error when the quality-analysis call
// fails or returns a body without an analysis block.
func NewQualityAnalysisFailed(msg string, cause error) *MedError {
	return &MedError{
		Code:    ErrQualityAnalysisFailed,
		Status:  502,
		Message: msg,
		Cause:   cause,
	}
}

// NewRecognitionFailed creates a 422 error for an explicit success:false or a
// malformed recognition response.
func NewRecognitionFailed(msg string, cause error) *MedError {
	return &MedError{
		Code:    ErrRecognitionFailed,
		Status:  422,
		Message: msg,
		Cause:   cause,
	}
}

// NewPersistenceFailed creates a 500 error when saving history fails.
func NewPersistenceFailed(cause error) *MedError {
	msg := "failed to save history record"
	if cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, cause)
	}
	return &MedError{
		Code:    ErrPersistenceFailed,
		Status:  500,
		Message: msg,
		Cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *MedError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &MedError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		Cause:   err,
	}
}

// Is checks if an error is a MedError with the given code.
func Is(err error, code ErrorCode) bool {
	if mErr, ok := err.(*MedError); ok {
		return mErr.Code == code
	}
	return false
}
