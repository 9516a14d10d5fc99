package process

import (
	"context"
	"time"

	"github.com/kbukum/teashell/errors"
)

// Result holds the output and status of a completed process.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// Combined is both streams interleaved in arrival order.
	Combined []byte
	// ExitCode is the process exit code. -1 if the process was killed by a signal.
	ExitCode int
	// State is the terminal lifecycle state.
	State State
	// Duration is how long the process ran.
	Duration time.Duration
}

func resultOf(h *Handle, code int) *Result {
	return &Result{
		Stdout:   h.Stdout(),
		Stderr:   h.Stderr(),
		Combined: h.Combined(),
		ExitCode: code,
		State:    h.State(),
		Duration: h.Duration(),
	}
}

// Run invokes the command and waits for it. A non-zero exit returns
// ErrNonZeroExit along with the result. If ctx ends first the process is
// killed and ErrTimeout is returned with the partial result.
func (c Command) Run(ctx context.Context, args []string, opts ...InvokeOption) (*Result, error) {
	h, err := c.Invoke(ctx, args, opts...)
	if err != nil {
		return nil, err
	}
	code, err := h.Wait(ctx)
	res := resultOf(h, code)
	if err != nil {
		return res, err
	}
	if code != 0 {
		return res, errors.NonZeroExit(h.program, h.args, code, res.Stderr)
	}
	return res, nil
}

// Output runs the command and returns its standard output.
func (c Command) Output(ctx context.Context, args []string, opts ...InvokeOption) (string, error) {
	res, err := c.Run(ctx, args, opts...)
	if res == nil {
		return "", err
	}
	return string(res.Stdout), err
}

// Execute runs argv on e and waits for it. Unlike Run, a non-zero exit is
// reported only through Result.ExitCode; errors mean the process could not
// be started or did not finish in time.
func Execute(ctx context.Context, e *Engine, argv []string, opts ...InvokeOption) (*Result, error) {
	if len(argv) == 0 {
		return nil, errors.InvalidInput("argv", "argv is empty")
	}
	h, err := NewCommand(e, argv[0]).Invoke(ctx, argv[1:], opts...)
	if err != nil {
		return nil, err
	}
	code, err := h.Wait(ctx)
	return resultOf(h, code), err
}
