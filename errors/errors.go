package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// AppError is the unified error type.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Retryable indicates if the operation can be retried.
	Retryable bool `json:"retryable"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// Is reports whether target is an AppError with the same code.
// This lets the package sentinels match errors built by the constructors.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Retryable: IsRetryableCode(code),
	}
}

// Sentinels for use with errors.Is.
var (
	ErrCommandNotFound     = &AppError{Code: ErrCodeCommandNotFound, Message: "command not found"}
	ErrInvalidInput        = &AppError{Code: ErrCodeInvalidInput, Message: "invalid input"}
	ErrSpawnFailed         = &AppError{Code: ErrCodeSpawnFailed, Message: "spawn failed"}
	ErrTimeout             = &AppError{Code: ErrCodeTimeout, Message: "timed out"}
	ErrProcessStillRunning = &AppError{Code: ErrCodeProcessStillRunning, Message: "process still running"}
	ErrNonZeroExit         = &AppError{Code: ErrCodeNonZeroExit, Message: "non-zero exit"}
)

// --- Constructors ---

// CommandNotFound creates an AppError for a program that could not be resolved.
// reason is optional and explains why a candidate was rejected.
func CommandNotFound(program, reason string) *AppError {
	msg := fmt.Sprintf("executable %q not found", program)
	if reason != "" {
		msg = fmt.Sprintf("executable %q not found: %s", program, reason)
	}
	return &AppError{
		Code: ErrCodeCommandNotFound, Message: msg, Retryable: false,
		Details: map[string]any{"program": program},
	}
}

// SpawnFailed creates an AppError for a process the OS refused to create.
func SpawnFailed(program string, args []string, retryable bool, cause error) *AppError {
	return &AppError{
		Code: ErrCodeSpawnFailed, Message: fmt.Sprintf("failed to start %s", commandLine(program, args)),
		Retryable: retryable, Cause: cause,
		Details: map[string]any{"program": program, "args": args},
	}
}

// Timeout creates an AppError for a process killed after exceeding its deadline.
func Timeout(program string, pid int, after time.Duration) *AppError {
	details := map[string]any{"program": program, "pid": pid}
	msg := fmt.Sprintf("%s (pid %d) did not exit in time and was killed", program, pid)
	if after > 0 {
		details["timeout"] = after.String()
		msg = fmt.Sprintf("%s (pid %d) did not exit within %s and was killed", program, pid, after)
	}
	return &AppError{
		Code: ErrCodeTimeout, Message: msg, Retryable: true, Details: details,
	}
}

// StillRunning creates an AppError for an exit status queried before termination.
func StillRunning(program string, pid int) *AppError {
	return &AppError{
		Code: ErrCodeProcessStillRunning, Message: fmt.Sprintf("%s (pid %d) is still running", program, pid),
		Retryable: true,
		Details:   map[string]any{"program": program, "pid": pid},
	}
}

// NonZeroExit creates an AppError for a checked invocation that failed.
// stderr is included verbatim in the details when non-empty.
func NonZeroExit(program string, args []string, exitCode int, stderr []byte) *AppError {
	details := map[string]any{"program": program, "args": args, "exit_code": exitCode}
	if len(stderr) > 0 {
		details["stderr"] = string(stderr)
	}
	return &AppError{
		Code:    ErrCodeNonZeroExit,
		Message: fmt.Sprintf("%s exited with code %d", commandLine(program, args), exitCode),
		Details: details,
	}
}

// InvalidInput creates an AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		Retryable: false, Details: details,
	}
}

// Validation creates an AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{Code: ErrCodeInvalidInput, Message: message}
}

// Internal creates an AppError for an unexpected failure.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred.",
		Retryable: false, Cause: cause,
	}
}

// --- Helpers ---

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err is an AppError with the given code.
func HasCode(err error, code ErrorCode) bool {
	appErr, ok := AsAppError(err)
	return ok && appErr.Code == code
}

func commandLine(program string, args []string) string {
	if len(args) == 0 {
		return program
	}
	return program + " " + strings.Join(args, " ")
}
