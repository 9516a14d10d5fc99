package process

import (
	"context"
	"io"
	"maps"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/kbukum/teashell/errors"
	"github.com/kbukum/teashell/logger"
	"github.com/kbukum/teashell/observability"
	"github.com/kbukum/teashell/resilience"
	"github.com/kbukum/teashell/validation"
)

// Spec is everything the engine needs to start one process.
type Spec struct {
	// Program is the name or path of the executable.
	Program string
	// Args follow the program name on the command line.
	Args []string
	// Env is overlaid on the inherited environment.
	Env map[string]string
	// Dir is the working directory. Empty means the current one.
	Dir string
	// SearchPath replaces $PATH for resolving Program.
	SearchPath []string

	// Capture records output into the handle.
	Capture bool
	// Passthrough forwards output live to Stdout and Stderr, or to the
	// engine's writers where those are nil.
	Passthrough bool
	Stdout      io.Writer
	Stderr      io.Writer

	// Timeout kills the process after this long. Zero means none.
	Timeout time.Duration
	// Combined sends stderr into the stdout pipe.
	Combined bool
	// Stdin, when set, is copied to the child's stdin which is then closed.
	Stdin io.Reader
}

// Engine spawns child processes and manages their lifecycle.
//
// An Engine holds no table of its processes; each Handle carries its own
// state. Engines are safe for concurrent use.
type Engine struct {
	cfg        Config
	killSignal os.Signal

	log            *logger.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	metrics        *observability.ProcessMetrics

	stdout io.Writer
	stderr io.Writer

	retry *resilience.RetryConfig
	slots *resilience.Bulkhead
}

// NewEngine validates cfg and creates an engine.
func NewEngine(cfg Config, opts ...EngineOption) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sig, err := parseSignal(cfg.KillSignal)
	if err != nil {
		return nil, errors.InvalidInput("kill_signal", err.Error())
	}

	e := &Engine{
		cfg:        cfg,
		killSignal: sig,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.log == nil {
		if cfg.Logging.Level != "" {
			lc := cfg.Logging
			e.log = logger.New(&lc, ConfigName)
		} else {
			e.log = logger.Nop()
		}
	}
	e.log = e.log.WithComponent("engine")

	e.tracer = observability.Tracer(e.tracerProvider)
	e.metrics, err = observability.NewProcessMetrics(observability.Meter(e.meterProvider))
	if err != nil {
		return nil, errors.Internal(err)
	}

	if e.retry == nil {
		rc := resilience.DefaultRetryConfig()
		rc.MaxAttempts = cfg.SpawnAttempts
		e.retry = &rc
	}

	e.slots = resilience.NewBulkhead(resilience.BulkheadConfig{
		Name:          "processes",
		MaxConcurrent: cfg.MaxProcesses,
		MaxWait:       cfg.MaxProcessWait,
		OnReject: func(name string, err error) {
			e.log.Warn("process limit reached", logger.Fields(
				"limit", cfg.MaxProcesses,
				logger.FieldError, err.Error(),
			))
		},
	})

	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

func (e *Engine) defaultInvokeOptions() invokeOptions {
	return invokeOptions{
		capture:     e.cfg.Capture,
		passthrough: e.cfg.Passthrough,
		timeout:     e.cfg.Timeout,
	}
}

// Spawn resolves and starts the process described by spec and returns at
// once. ctx bounds only the start itself (resolution, waiting for a
// process slot, retries); use Wait to bound the process lifetime.
//
// Errors are ErrInvalidInput, ErrCommandNotFound or ErrSpawnFailed, and no
// handle exists when one is returned.
func (e *Engine) Spawn(ctx context.Context, spec Spec) (*Handle, error) {
	ctx, span := e.tracer.Start(ctx, observability.SpanProcessSpawn,
		trace.WithAttributes(observability.ProcessAttributes(spec.Program, spec.Args, 0)...))
	defer span.End()

	h, err := e.spawn(ctx, spec)
	if err != nil {
		code := string(errors.ErrCodeInternal)
		if appErr, ok := errors.AsAppError(err); ok {
			code = string(appErr.Code)
		}
		observability.SetSpanError(span, err)
		e.metrics.RecordSpawnFailure(ctx, spec.Program, code)
		e.log.Warn("spawn failed", logger.ErrorFields(spec.Program, err))
		return nil, err
	}

	span.SetAttributes(
		semconv.ProcessPIDKey.Int(h.pid),
		attribute.String(observability.AttrHandleID, h.id),
	)
	return h, nil
}

func (e *Engine) spawn(ctx context.Context, spec Spec) (*Handle, error) {
	if err := validateSpec(spec); err != nil {
		return nil, err
	}

	path, err := resolveProgram(spec.Program, spec.SearchPath, spec.Dir)
	if err != nil {
		return nil, err
	}

	release, err := e.slots.Acquire(ctx)
	if err != nil {
		return nil, errors.SpawnFailed(spec.Program, spec.Args, true, err).
			WithDetail("max_processes", e.cfg.MaxProcesses)
	}

	env := buildEnv(e.cfg.InheritEnv, spec.Env, spec.Dir)

	retry := *e.retry
	retry.OnRetry = func(attempt int, err error, backoff time.Duration) {
		trace.SpanFromContext(ctx).AddEvent("spawn retry", trace.WithAttributes(
			attribute.Int(observability.AttrAttempt, attempt),
		))
		e.log.Warn("spawn failed, retrying", logger.Fields(
			logger.FieldProgram, spec.Program,
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			"backoff_ms", backoff.Milliseconds(),
		))
	}

	h, err := resilience.Retry(ctx, retry, func() (*Handle, error) {
		return e.start(spec, path, env)
	})
	if err != nil {
		release()
		if !errors.IsAppError(err) {
			err = errors.SpawnFailed(spec.Program, spec.Args, false, err)
		}
		return nil, err
	}
	h.release = release
	e.metrics.RecordSpawn(ctx, spec.Program)
	h.log.Debug("process started", logger.Fields(logger.FieldArgs, h.args))

	go e.drain(h, h.stdout, h.stdoutR)
	if h.stderrR != nil {
		go e.drain(h, h.stderr, h.stderrR)
	} else {
		h.stderr.close()
	}
	if spec.Stdin != nil {
		go e.feedStdin(h, spec.Stdin)
	}
	if spec.Timeout > 0 {
		h.watchdog = time.AfterFunc(spec.Timeout, func() {
			e.expire(h, "process timed out")
		})
	}
	go e.reap(h)

	return h, nil
}

// start creates the pipes and the OS process. On failure every descriptor
// it opened is closed again, so it can be retried.
func (e *Engine) start(spec Spec, path string, env []string) (*Handle, error) {
	var parentEnds, childEnds []*os.File
	closeAll := func() {
		for _, f := range append(parentEnds, childEnds...) {
			_ = f.Close()
		}
	}
	fail := func(err error) (*Handle, error) {
		closeAll()
		return nil, errors.SpawnFailed(spec.Program, spec.Args, isTransientSpawnErr(err), err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	parentEnds = append(parentEnds, stdoutR)
	childEnds = append(childEnds, stdoutW)

	stderrW := stdoutW
	var stderrR *os.File
	if !spec.Combined {
		stderrR, stderrW, err = os.Pipe()
		if err != nil {
			return fail(err)
		}
		parentEnds = append(parentEnds, stderrR)
		childEnds = append(childEnds, stderrW)
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		return fail(err)
	}
	parentEnds = append(parentEnds, stdinW)
	childEnds = append(childEnds, stdinR)

	cmd := exec.Command(path, spec.Args...) //nolint:gosec // running arbitrary programs is the purpose of this package
	cmd.Args[0] = spec.Program
	cmd.Env = env
	cmd.Dir = spec.Dir
	cmd.Stdin = stdinR
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW
	cmd.SysProcAttr = sysProcAttr(e.cfg.ProcessGroup)

	if err := cmd.Start(); err != nil {
		return fail(err)
	}

	// The child holds its own copies now; ours would keep the pipes open
	// past its exit.
	for _, f := range childEnds {
		_ = f.Close()
	}

	id := uuid.NewString()
	h := &Handle{
		id:        id,
		engine:    e,
		program:   spec.Program,
		path:      path,
		args:      slices.Clone(spec.Args),
		timeout:   spec.Timeout,
		cmd:       cmd,
		pid:       cmd.Process.Pid,
		startedAt: time.Now(),
		stdoutR:   stdoutR,
		stderrR:   stderrR,
		stdin:     stdinW,
		stdinFed:  spec.Stdin != nil,
		reapedCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	h.log = e.log.WithFields(logger.Fields(
		logger.FieldHandleID, id,
		logger.FieldPID, h.pid,
		logger.FieldProgram, spec.Program,
	))
	h.state.Store(int32(StateRunning))

	var passOut, passErr io.Writer
	if spec.Passthrough {
		passOut, passErr = firstWriter(spec.Stdout, e.stdout), firstWriter(spec.Stderr, e.stderr)
		if sameWriter(passOut, passErr) {
			shared := &syncWriter{w: passOut}
			passOut, passErr = shared, shared
		}
	}
	if spec.Capture {
		h.combined = &combinedBuffer{}
	}
	h.stdout = newTee(Stdout, spec.Capture, passOut, h.combined)
	h.stderr = newTee(Stderr, spec.Capture, passErr, h.combined)
	h.stdout.onPassthroughErr = e.passthroughFailed(h)
	h.stderr.onPassthroughErr = e.passthroughFailed(h)

	return h, nil
}

func (e *Engine) passthroughFailed(h *Handle) func(Stream, error) {
	return func(stream Stream, err error) {
		e.metrics.RecordPassthroughError(context.Background(), stream.String())
		h.log.Warn("passthrough write failed, forwarding stopped", logger.Fields(
			logger.FieldStream, stream.String(),
			logger.FieldError, err.Error(),
		))
	}
}

func (e *Engine) drain(h *Handle, t *Tee, r *os.File) {
	n, err := t.drain(r, e.cfg.ReadChunkSize)
	_ = r.Close()
	if err != nil {
		h.log.Debug("output stream ended early", logger.Fields(
			logger.FieldStream, t.stream.String(),
			logger.FieldBytes, n,
			logger.FieldError, err.Error(),
		))
	}
}

func (e *Engine) feedStdin(h *Handle, r io.Reader) {
	h.stdinMu.Lock()
	w := h.stdin
	h.stdinMu.Unlock()

	_, err := io.Copy(w, r)
	if cerr := h.CloseStdin(); err == nil {
		err = cerr
	}
	if err != nil {
		// The child may exit without reading all of its input.
		h.log.Debug("stdin feed stopped", logger.Fields(logger.FieldError, err.Error()))
	}
}

// reap waits for the process, records its status, then waits for both
// streams to finish before completing the handle.
func (e *Engine) reap(h *Handle) {
	h.recordExit(h.cmd.Wait())
	close(h.reapedCh)

	if e.cfg.DrainTimeout > 0 {
		t := time.AfterFunc(e.cfg.DrainTimeout, func() {
			if h.forceDrain() {
				h.log.Debug("output still open after exit, closing", logger.Fields(
					"drain_timeout_ms", e.cfg.DrainTimeout.Milliseconds(),
				))
			}
		})
		defer t.Stop()
	}

	<-h.stdout.Done()
	<-h.stderr.Done()
	e.finish(h)
}

func (e *Engine) finish(h *Handle) {
	if h.watchdog != nil {
		h.watchdog.Stop()
	}
	_ = h.CloseStdin()

	ctx := context.Background()
	state := h.State()
	duration := h.Duration()
	e.metrics.RecordOutput(ctx, Stdout.String(), h.stdout.read)
	e.metrics.RecordOutput(ctx, Stderr.String(), h.stderr.read)
	e.metrics.RecordExit(ctx, h.program, state.String(), duration)

	fields := logger.MergeWithDuration(logger.Fields(logger.FieldState, state.String()), duration)
	code, _ := h.ExitCode()
	fields[logger.FieldExitCode] = code
	if sig, ok := h.Signal(); ok {
		fields[logger.FieldSignal] = sig.String()
	}
	h.log.Debug("process completed", fields)

	if h.release != nil {
		h.release()
	}
	close(h.done)
}

// Wait blocks until h is complete and returns its exit code, which is -1
// for signal terminations. A non-zero exit is not an error.
//
// When ctx ends first and the process is still running, it is killed, Wait
// waits for it to be reaped and returns ErrTimeout with the state Killed. If
// the process had already exited and only its output was still open, the
// output is closed and the recorded exit code is returned without error. A
// process killed by its own timeout also reports ErrTimeout. Wait may be
// called any number of times and always reports the same outcome.
func (e *Engine) Wait(ctx context.Context, h *Handle) (int, error) {
	ctx, span := e.tracer.Start(ctx, observability.SpanProcessWait,
		trace.WithAttributes(observability.ProcessAttributes(h.program, h.args, h.pid)...))
	defer span.End()

	select {
	case <-h.done:
	default:
		select {
		case <-h.done:
		case <-ctx.Done():
			// expire is a no-op once reaped; the exit outcome then stands.
			e.expire(h, "wait cancelled, killing process")
			<-h.reapedCh
			h.forceDrain()
			<-h.done
		}
	}

	code, err := h.outcome()
	span.SetAttributes(
		attribute.String(observability.AttrState, h.State().String()),
		attribute.Int(observability.AttrExitCode, code),
	)
	if sig, ok := h.Signal(); ok {
		span.SetAttributes(attribute.String(observability.AttrSignal, sig.String()))
	}
	observability.SetSpanError(span, err)
	return code, err
}

// WaitTimeout is Wait bounded by d.
func (e *Engine) WaitTimeout(h *Handle, d time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return e.Wait(ctx, h)
}

// Kill delivers sig to the process, or to its process group when the
// engine uses groups. It is a no-op once the process has been reaped, so
// repeated kills are safe.
//
// Terminating signals (those accepted as Config.KillSignal) mark the process
// as killed, and unless sig is SIGKILL and when KillGrace is set, SIGKILL
// follows if the process is still running after the grace period. Any other
// signal, such as SIGUSR1, is delivered as is.
func (e *Engine) Kill(h *Handle, sig os.Signal) error {
	terminating := isTerminatingSignal(sig)
	if !h.requestSignal(terminating) {
		return nil
	}
	if err := signalProcess(h.cmd.Process, sig, e.cfg.ProcessGroup); err != nil {
		return errors.Internal(err).WithDetails(map[string]any{
			"pid":    h.pid,
			"signal": sig.String(),
		})
	}
	h.log.Debug("signal sent", logger.Fields(logger.FieldSignal, sig.String()))

	if terminating && !isKillSignal(sig) && e.cfg.KillGrace > 0 {
		h.escalateOnce.Do(func() { go e.escalate(h) })
	}
	return nil
}

func (e *Engine) escalate(h *Handle) {
	t := time.NewTimer(e.cfg.KillGrace)
	defer t.Stop()
	select {
	case <-h.reapedCh:
		return
	case <-t.C:
	}
	h.log.Warn("process still running after grace period, sending SIGKILL", logger.Fields(
		"grace_ms", e.cfg.KillGrace.Milliseconds(),
	))
	if err := e.Kill(h, os.Kill); err != nil {
		h.log.Error("kill failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

// expire kills h for running out of time. Without a grace period the kill
// is immediate, so an expired process cannot outlive its deadline by
// ignoring the configured signal.
func (e *Engine) expire(h *Handle, msg string) {
	if !h.markTimedOut() {
		return
	}
	h.log.Warn(msg, logger.Fields("timeout_ms", h.timeout.Milliseconds()))

	sig := e.killSignal
	if e.cfg.KillGrace == 0 {
		sig = os.Kill
	}
	if err := e.Kill(h, sig); err != nil {
		h.log.Error("kill failed", logger.Fields(logger.FieldError, err.Error()))
	}
}

// IsAlive reports whether h has not been reaped. It never blocks.
func (e *Engine) IsAlive(h *Handle) bool {
	return h.State() == StateRunning
}

func validateSpec(spec Spec) error {
	return validation.New().
		Required("program", spec.Program).
		NoNUL("program", spec.Program).
		NoNUL("args", spec.Args...).
		EnvKeys("env", spec.Env).
		NonNegative("timeout", spec.Timeout).
		Custom(spec.Dir == "" || isDir(spec.Dir), "dir", "is not a directory").
		Validate()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// buildEnv overlays env on the inherited environment. Overridden variables
// are dropped from the inherited list; overrides follow in key order. A
// working directory sets PWD unless the overlay does.
func buildEnv(inherit bool, overlay map[string]string, dir string) []string {
	if dir != "" {
		if _, ok := overlay["PWD"]; !ok {
			if abs, err := filepath.Abs(dir); err == nil {
				overlay = maps.Clone(overlay)
				if overlay == nil {
					overlay = make(map[string]string, 1)
				}
				overlay["PWD"] = abs
			}
		}
	}

	var base []string
	if inherit {
		base = os.Environ()
	}
	env := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		key, _, _ := strings.Cut(kv, "=")
		if _, ok := overlay[key]; ok {
			continue
		}
		env = append(env, kv)
	}
	for _, key := range slices.Sorted(maps.Keys(overlay)) {
		env = append(env, key+"="+overlay[key])
	}
	return env
}

func firstWriter(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

func sameWriter(a, b io.Writer) bool {
	if a == nil || b == nil {
		return false
	}
	return reflect.TypeOf(a).Comparable() && reflect.TypeOf(a) == reflect.TypeOf(b) && a == b
}
