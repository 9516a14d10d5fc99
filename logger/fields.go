package logger

import (
	"time"
)

// Standard field key constants for structured logging.
const (
	FieldComponent = "component"
	FieldHandleID  = "handle_id"
	FieldPID       = "pid"
	FieldProgram   = "program"
	FieldArgs      = "args"
	FieldState     = "state"
	FieldExitCode  = "exit_code"
	FieldSignal    = "signal"
	FieldStream    = "stream"
	FieldBytes     = "bytes"
	FieldAttempt   = "attempt"
	FieldError     = "error"
	FieldDuration  = "duration_ms"
)

// Fields builds a map[string]interface{} from alternating key-value pairs.
//
//	log.Info("spawned", logger.Fields("pid", 42, "program", "echo"))
func Fields(kvs ...interface{}) map[string]interface{} {
	m := make(map[string]interface{}, len(kvs)/2)
	for i := 0; i < len(kvs)-1; i += 2 {
		if key, ok := kvs[i].(string); ok {
			m[key] = kvs[i+1]
		}
	}
	return m
}

// ErrorFields creates fields for an operation that failed.
func ErrorFields(program string, err error) map[string]interface{} {
	return map[string]interface{}{
		FieldProgram: program,
		FieldError:   err.Error(),
	}
}

// MergeWithDuration adds a duration field to an existing map.
func MergeWithDuration(fields map[string]interface{}, d time.Duration) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields[FieldDuration] = d.Milliseconds()
	return fields
}
