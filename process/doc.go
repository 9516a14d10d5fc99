// Package process runs external programs and captures their output while
// they run.
//
// A Command describes a program with baked arguments, flags and
// environment. It is an immutable value that can be derived from and
// invoked any number of times:
//
//	e, err := process.NewEngine(process.DefaultConfig())
//	gitLog := e.Command("git").Bake("log").BakeFlags(process.Flag{Name: "n", Value: "5"})
//
//	h, err := gitLog.Invoke(ctx, []string{"--oneline"}, process.WithDir(repo), process.WithPassthrough())
//	code, err := h.Wait(ctx)
//	out := h.Stdout()
//
// Invoke returns as soon as the process has started. One goroutine per
// output stream drains the pipe into a Tee, which appends every chunk to
// the capture buffer and then forwards it to the passthrough writer. A
// Handle is complete once the process has been reaped and both streams
// ended.
//
// Flags render after positional arguments: single-letter names as
// "-x value", longer names as "--name=value", and Switch flags bare.
//
// Run, Output and Execute wrap Invoke and Wait for the common
// run-to-completion case.
//
// Stdin is a plain pipe; programs that require a terminal are not
// supported.
package process
