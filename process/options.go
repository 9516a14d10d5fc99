package process

import (
	"io"
	"maps"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/teashell/logger"
	"github.com/kbukum/teashell/resilience"
)

// InvokeOption customizes a single invocation.
type InvokeOption func(*invokeOptions)

type invokeOptions struct {
	capture     bool
	passthrough bool
	stdout      io.Writer
	stderr      io.Writer
	timeout     time.Duration
	dir         string
	env         map[string]string
	flags       []Flag
	combined    bool
	stdin       io.Reader
}

// WithCapture enables or disables recording output into the handle.
func WithCapture(enabled bool) InvokeOption {
	return func(o *invokeOptions) { o.capture = enabled }
}

// WithPassthrough forwards output live to the engine's passthrough writers.
func WithPassthrough() InvokeOption {
	return func(o *invokeOptions) { o.passthrough = true }
}

// WithPassthroughTo forwards output live to the given writers. A nil writer
// falls back to the engine's writer for that stream.
func WithPassthroughTo(stdout, stderr io.Writer) InvokeOption {
	return func(o *invokeOptions) {
		o.passthrough = true
		o.stdout = stdout
		o.stderr = stderr
	}
}

// WithTimeout kills the process if it is still running after d.
// Zero disables the timeout.
func WithTimeout(d time.Duration) InvokeOption {
	return func(o *invokeOptions) { o.timeout = d }
}

// WithDir sets the working directory for this invocation.
func WithDir(dir string) InvokeOption {
	return func(o *invokeOptions) { o.dir = dir }
}

// WithEnv overlays environment variables for this invocation.
func WithEnv(env map[string]string) InvokeOption {
	return func(o *invokeOptions) {
		if o.env == nil {
			o.env = make(map[string]string, len(env))
		}
		maps.Copy(o.env, env)
	}
}

// WithFlags appends flags after the command's baked flags.
func WithFlags(flags ...Flag) InvokeOption {
	return func(o *invokeOptions) { o.flags = append(o.flags, flags...) }
}

// WithCombinedOutput sends stderr into the stdout pipe, so both streams are
// captured, in order, as stdout.
func WithCombinedOutput() InvokeOption {
	return func(o *invokeOptions) { o.combined = true }
}

// WithStdin feeds r to the child's stdin in the background and closes it at
// EOF. The handle's own stdin writer is unavailable in that case.
func WithStdin(r io.Reader) InvokeOption {
	return func(o *invokeOptions) { o.stdin = r }
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) EngineOption {
	return func(e *Engine) { e.log = l }
}

// WithTracerProvider sets the provider for spawn and wait spans.
func WithTracerProvider(tp trace.TracerProvider) EngineOption {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets the provider for process metrics.
func WithMeterProvider(mp metric.MeterProvider) EngineOption {
	return func(e *Engine) { e.meterProvider = mp }
}

// WithPassthroughWriters sets the default passthrough destinations, which
// are os.Stdout and os.Stderr otherwise.
func WithPassthroughWriters(stdout, stderr io.Writer) EngineOption {
	return func(e *Engine) {
		e.stdout = stdout
		e.stderr = stderr
	}
}

// WithSpawnRetry overrides the retry policy for transient spawn failures.
// Its MaxAttempts wins over Config.SpawnAttempts.
func WithSpawnRetry(cfg resilience.RetryConfig) EngineOption {
	return func(e *Engine) { e.retry = &cfg }
}

// CommandOption customizes a Command at construction.
type CommandOption func(*Command)

// WithArgs bakes positional arguments into the command.
func WithArgs(args ...string) CommandOption {
	return func(c *Command) { c.args = append(c.args, args...) }
}

// WithoutColor sets the environment variables common tools honor to turn
// off colored output.
func WithoutColor() CommandOption {
	return func(c *Command) {
		if c.env == nil {
			c.env = make(map[string]string)
		}
		maps.Copy(c.env, noColorEnv)
	}
}

var noColorEnv = map[string]string{
	"NO_COLOR":       "1",
	"TERM":           "dumb",
	"CLICOLOR":       "0",
	"CLICOLOR_FORCE": "0",
	"FORCE_COLOR":    "0",
}

// WithDefaults sets invoke options applied before every invocation's own.
func WithDefaults(opts ...InvokeOption) CommandOption {
	return func(c *Command) { c.defaults = append(c.defaults, opts...) }
}
