package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kbukum/teashell/errors"
	"github.com/kbukum/teashell/logger"
)

// Handle is a running or finished child process started by an Engine.
//
// The handle is complete once the process has been reaped and both output
// streams reached their end; Done is closed at that point. Captured output
// stays readable afterwards. All methods are safe for concurrent use.
type Handle struct {
	id      string
	engine  *Engine
	program string
	path    string
	args    []string
	timeout time.Duration
	log     *logger.Logger

	cmd       *exec.Cmd
	pid       int
	startedAt time.Time

	state atomic.Int32

	// mu guards the exit bookkeeping below.
	mu            sync.RWMutex
	reaped        bool
	exitCode      int
	signal        os.Signal
	waitErr       error
	timedOut      bool
	killRequested bool
	endedAt       time.Time

	stdout   *Tee
	stderr   *Tee
	combined *combinedBuffer
	stdoutR  *os.File
	stderrR  *os.File

	stdinMu     sync.Mutex
	stdin       *os.File
	stdinClosed bool
	stdinFed    bool

	reapedCh chan struct{}
	done     chan struct{}

	escalateOnce sync.Once
	watchdog     *time.Timer
	release      func()
}

// ID returns the unique handle identifier used in logs and traces.
func (h *Handle) ID() string { return h.id }

// PID returns the OS process id.
func (h *Handle) PID() int { return h.pid }

// Program returns the program name as given to the command.
func (h *Handle) Program() string { return h.program }

// Path returns the resolved executable path.
func (h *Handle) Path() string { return h.path }

// Args returns the arguments the process was started with, excluding the
// program name.
func (h *Handle) Args() []string { return slices.Clone(h.args) }

// State returns the current lifecycle state.
func (h *Handle) State() State { return State(h.state.Load()) }

// StartedAt returns when the process was started.
func (h *Handle) StartedAt() time.Time { return h.startedAt }

// Duration returns the process run time so far, or its total run time once
// it has been reaped.
func (h *Handle) Duration() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.endedAt.IsZero() {
		return time.Since(h.startedAt)
	}
	return h.endedAt.Sub(h.startedAt)
}

// Read returns a copy of the output captured so far on stream.
func (h *Handle) Read(stream Stream) []byte {
	switch stream {
	case Stdout:
		return h.stdout.Snapshot()
	case Stderr:
		return h.stderr.Snapshot()
	default:
		return nil
	}
}

// Stdout returns a copy of the captured standard output.
func (h *Handle) Stdout() []byte { return h.stdout.Snapshot() }

// Stderr returns a copy of the captured standard error. It is empty when
// the invocation used combined output.
func (h *Handle) Stderr() []byte { return h.stderr.Snapshot() }

// Combined returns both streams interleaved in the order they were read.
// Nil when capture is disabled.
func (h *Handle) Combined() []byte {
	if h.combined == nil {
		return nil
	}
	return h.combined.snapshot()
}

// PassthroughErr returns the error that stopped forwarding stream, if any.
func (h *Handle) PassthroughErr(stream Stream) error {
	switch stream {
	case Stdout:
		return h.stdout.PassthroughErr()
	case Stderr:
		return h.stderr.PassthroughErr()
	default:
		return nil
	}
}

// Wait blocks until the handle is complete and returns the exit code.
// See Engine.Wait.
func (h *Handle) Wait(ctx context.Context) (int, error) {
	return h.engine.Wait(ctx, h)
}

// WaitTimeout waits at most d. See Engine.WaitTimeout.
func (h *Handle) WaitTimeout(d time.Duration) (int, error) {
	return h.engine.WaitTimeout(h, d)
}

// Kill delivers sig to the process. See Engine.Kill.
func (h *Handle) Kill(sig os.Signal) error {
	return h.engine.Kill(h, sig)
}

// Terminate delivers the engine's configured kill signal.
func (h *Handle) Terminate() error {
	return h.engine.Kill(h, h.engine.killSignal)
}

// IsAlive reports whether the process has not been reaped yet.
func (h *Handle) IsAlive() bool {
	return h.engine.IsAlive(h)
}

// Done is closed once the handle is complete.
func (h *Handle) Done() <-chan struct{} { return h.done }

// ExitCode returns the exit code once the process has been reaped, or
// ErrProcessStillRunning before. Signal terminations report -1.
func (h *Handle) ExitCode() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if !h.reaped {
		return 0, errors.StillRunning(h.program, h.pid)
	}
	return h.exitCode, nil
}

// Signal returns the signal that terminated the process, if any.
func (h *Handle) Signal() (os.Signal, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.signal, h.signal != nil
}

// Stdin returns a writer to the child's standard input, or nil when the
// invocation fed stdin from a reader.
func (h *Handle) Stdin() io.WriteCloser {
	if h.stdinFed {
		return nil
	}
	return stdinWriter{h}
}

// WriteLine writes s to the child's stdin, adding a trailing newline when s
// does not end with one.
func (h *Handle) WriteLine(s string) error {
	if h.stdinFed {
		return errors.InvalidInput("stdin", "stdin is fed from a reader")
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	_, err := h.writeStdin([]byte(s))
	return err
}

// CloseStdin closes the child's stdin, signalling end of input.
func (h *Handle) CloseStdin() error {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()
	if h.stdin == nil || h.stdinClosed {
		return nil
	}
	h.stdinClosed = true
	return h.stdin.Close()
}

func (h *Handle) writeStdin(p []byte) (int, error) {
	h.stdinMu.Lock()
	defer h.stdinMu.Unlock()
	if h.stdin == nil || h.stdinClosed {
		return 0, os.ErrClosed
	}
	return h.stdin.Write(p)
}

type stdinWriter struct{ h *Handle }

func (w stdinWriter) Write(p []byte) (int, error) { return w.h.writeStdin(p) }
func (w stdinWriter) Close() error                { return w.h.CloseStdin() }

func (h *Handle) String() string {
	return fmt.Sprintf("%s[pid=%d, state=%s]", h.program, h.pid, h.State())
}

// recordExit stores the reaped status. The terminal state is decided here,
// under the same lock that markTimedOut and requestSignal use.
func (h *Handle) recordExit(waitErr error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.reaped = true
	h.endedAt = time.Now()

	ps := h.cmd.ProcessState
	if ps == nil {
		h.exitCode = -1
		h.waitErr = waitErr
		h.state.Store(int32(StateExited))
		return
	}

	h.exitCode = ps.ExitCode()
	signaled := false
	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		signaled = true
		h.signal = ws.Signal()
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !stderrors.As(waitErr, &exitErr) {
		h.waitErr = waitErr
	}

	switch {
	case h.timedOut:
		h.state.Store(int32(StateKilled))
	case signaled && h.killRequested:
		h.state.Store(int32(StateKilled))
	case signaled:
		h.state.Store(int32(StateSignaled))
	default:
		h.state.Store(int32(StateExited))
	}
}

// markTimedOut flags the process as killed for exceeding its time. It
// returns false when the process was already reaped or already flagged.
func (h *Handle) markTimedOut() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reaped || h.timedOut {
		return false
	}
	h.timedOut = true
	return true
}

// requestSignal reports whether a signal may still be sent, returning false
// once reaped. A terminating signal also records a kill request.
func (h *Handle) requestSignal(terminating bool) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.reaped {
		return false
	}
	if terminating {
		h.killRequested = true
	}
	return true
}

// forceDrain closes the parent's read ends so the tees stop waiting for
// writers that outlived the process.
func (h *Handle) forceDrain() bool {
	forced := false
	for _, pair := range []struct {
		tee *Tee
		r   *os.File
	}{{h.stdout, h.stdoutR}, {h.stderr, h.stderrR}} {
		if pair.r == nil {
			continue
		}
		select {
		case <-pair.tee.Done():
		default:
			_ = pair.r.Close()
			forced = true
		}
	}
	return forced
}

// outcome returns what Wait reports for a complete handle.
func (h *Handle) outcome() (int, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch {
	case h.timedOut:
		return h.exitCode, errors.Timeout(h.program, h.pid, h.timeout)
	case h.waitErr != nil:
		return h.exitCode, errors.Internal(h.waitErr).WithDetail("pid", h.pid)
	}
	return h.exitCode, nil
}
