package printing

import (
	"errors"
)

// JobError represents a failure at the job boundary
type JobError struct {
	Code    string
	Message string
	Cause   error
}

func (e *JobError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *JobError) Unwrap() error {
	return e.Cause
}

// Error codes for job failures
const (
	ErrCodeLoadFailure         = "LOAD_FAILURE"
	ErrCodeReadyTimeout        = "READY_TIMEOUT"
	ErrCodePrintFailure        = "PRINT_FAILURE"
	ErrCodeEncodeFailure       = "ENCODE_FAILURE"
	ErrCodeBridgeLaunchFailure = "BRIDGE_LAUNCH_FAILURE"
	ErrCodeCancelled           = "CANCELLED"
)

// ErrCancelled is reported when the user cancels a print dialog.
// It is a neutral outcome and never written to the error log.
var ErrCancelled = errors.New("cancelled")

// NewJobError creates a new JobError
func NewJobError(code, message string, cause error) *JobError {
	return &JobError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// ErrorCode extracts the job error code from err, or PRINT_FAILURE when
// err carries no code of its own.
func ErrorCode(err error) string {
	if IsCancelled(err) {
		return ErrCodeCancelled
	}
	var jobErr *JobError
	if errors.As(err, &jobErr) {
		return jobErr.Code
	}
	return ErrCodePrintFailure
}

// IsCancelled reports whether err is a user cancellation
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
