// Package errors provides the structured error type used across teashell.
//
// Every failure surfaced by the process engine is an *AppError carrying a
// machine-readable ErrorCode, a human-readable message, retryable detection
// and enough details (program, arguments, OS error text) to diagnose the
// failure without inspecting internals.
//
// Sentinel values such as ErrCommandNotFound and ErrTimeout match any
// AppError with the same code, so callers can use the standard library:
//
//	h, err := cmd.Invoke(ctx, nil)
//	if errors.Is(err, teaerrors.ErrCommandNotFound) {
//		// program is not installed
//	}
package errors
