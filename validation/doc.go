// Package validation validates command definitions and engine configuration.
//
// It supports both struct tag validation (using go-playground/validator) and
// programmatic validation with error collection. Both return an
// *errors.AppError with code INVALID_INPUT whose details list every failing
// field.
//
// # Struct Tag Validation
//
//	type Config struct {
//	    ReadChunkSize int    `mapstructure:"read_chunk_size" validate:"min=512"`
//	    KillSignal    string `mapstructure:"kill_signal" validate:"oneof=SIGTERM SIGKILL"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	err := validation.New().
//	    Required("program", program).
//	    NoNUL("args", args...).
//	    Validate()
package validation
