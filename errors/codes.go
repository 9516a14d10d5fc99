package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Pre-spawn errors
const (
	// ErrCodeCommandNotFound indicates the program could not be resolved.
	ErrCodeCommandNotFound ErrorCode = "COMMAND_NOT_FOUND"
	// ErrCodeInvalidInput indicates a command or option failed validation.
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// Lifecycle errors
const (
	// ErrCodeSpawnFailed indicates the OS refused to create the process.
	ErrCodeSpawnFailed ErrorCode = "SPAWN_FAILED"
	// ErrCodeTimeout indicates a wait deadline was exceeded and the process was killed.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeProcessStillRunning indicates the exit status was queried too early.
	ErrCodeProcessStillRunning ErrorCode = "PROCESS_STILL_RUNNING"
	// ErrCodeNonZeroExit indicates a checked invocation exited with a non-zero code.
	ErrCodeNonZeroExit ErrorCode = "NON_ZERO_EXIT"
)

// Internal errors
const (
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeTimeout:  true,
	ErrCodeInternal: false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
