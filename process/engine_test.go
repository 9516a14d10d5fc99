//go:build !windows

package process_test

import (
	"bytes"
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/kbukum/teashell/errors"
	"github.com/kbukum/teashell/process"
)

func invoke(t *testing.T, cmd process.Command, args []string, opts ...process.InvokeOption) *process.Handle {
	t.Helper()
	h, err := cmd.Invoke(context.Background(), args, opts...)
	if err != nil {
		t.Fatalf("Invoke(%s) failed: %v", cmd.CommandLine(args...), err)
	}
	return h
}

func wait(t *testing.T, h *process.Handle) int {
	t.Helper()
	code, err := h.WaitTimeout(10 * time.Second)
	if err != nil {
		t.Fatalf("Wait(%s) failed: %v", h, err)
	}
	return code
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestInvokeEcho(t *testing.T) {
	h := invoke(t, newEngine(t).Command("echo"), []string{"hello"})

	if code := wait(t, h); code != 0 {
		t.Errorf("expected exit code 0, got %d", code)
	}
	if got := string(h.Stdout()); got != "hello\n" {
		t.Errorf("expected stdout %q, got %q", "hello\n", got)
	}
	if len(h.Stderr()) != 0 {
		t.Errorf("expected empty stderr, got %q", h.Stderr())
	}
	if h.State() != process.StateExited {
		t.Errorf("expected state exited, got %s", h.State())
	}
	if h.IsAlive() {
		t.Error("expected process not alive after wait")
	}
	if _, ok := h.Signal(); ok {
		t.Error("expected no terminating signal")
	}
	if code, err := h.ExitCode(); err != nil || code != 0 {
		t.Errorf("ExitCode() = %d, %v", code, err)
	}
}

func TestHandleAccessors(t *testing.T) {
	h := invoke(t, newEngine(t).Command("echo").Bake("a"), []string{"b"})
	wait(t, h)

	if h.ID() == "" || h.PID() <= 0 {
		t.Errorf("expected id and pid, got %q and %d", h.ID(), h.PID())
	}
	if h.Program() != "echo" || !filepath.IsAbs(h.Path()) {
		t.Errorf("unexpected program %q path %q", h.Program(), h.Path())
	}
	if got := h.Args(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("unexpected args %q", got)
	}
	if h.StartedAt().IsZero() || h.Duration() <= 0 {
		t.Error("expected start time and duration")
	}
	if !strings.Contains(h.String(), "state=exited") {
		t.Errorf("unexpected String(): %s", h)
	}
	select {
	case <-h.Done():
	default:
		t.Error("expected Done closed after wait")
	}
}

func TestNonZeroExitIsNotAnError(t *testing.T) {
	h := invoke(t, newEngine(t).Command("false"), nil)
	if code := wait(t, h); code != 1 {
		t.Errorf("expected exit code 1, got %d", code)
	}
	if h.State() != process.StateExited {
		t.Errorf("expected exited, got %s", h.State())
	}
	if len(h.Stdout()) != 0 {
		t.Errorf("expected no output, got %q", h.Stdout())
	}
}

func TestInvokeCommandNotFound(t *testing.T) {
	h, err := newEngine(t).Command("teashell-nonexistent-binary-xyz").Invoke(context.Background(), nil)
	if !stderrors.Is(err, errors.ErrCommandNotFound) {
		t.Fatalf("expected ErrCommandNotFound, got %v", err)
	}
	if h != nil {
		t.Error("expected no handle when resolution fails")
	}
}

func TestInvokeNotExecutable(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "script"), []byte("#!/bin/sh\necho hi\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := newEngine(t).Command("script").WithSearchPath(dir).Invoke(context.Background(), nil)
	if !stderrors.Is(err, errors.ErrCommandNotFound) {
		t.Fatalf("expected ErrCommandNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "not executable") {
		t.Errorf("expected reason in error, got %v", err)
	}
}

func TestSearchPath(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "greet")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"hi $1\"\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	h := invoke(t, newEngine(t).Command("greet").WithSearchPath(dir), []string{"there"})
	wait(t, h)

	if got := string(h.Stdout()); got != "hi there\n" {
		t.Errorf("unexpected output %q", got)
	}
	if h.Path() != script {
		t.Errorf("expected path %q, got %q", script, h.Path())
	}
}

func TestInvalidSpec(t *testing.T) {
	e := newEngine(t)

	_, err := e.Command("echo").Invoke(context.Background(), []string{"bad\x00arg"})
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for NUL argument, got %v", err)
	}

	missing := filepath.Join(t.TempDir(), "missing")
	_, err = e.Command("echo").Invoke(context.Background(), nil, process.WithDir(missing))
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for missing dir, got %v", err)
	}

	_, err = e.Command("echo").Invoke(context.Background(), nil, process.WithTimeout(-time.Second))
	if !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for negative timeout, got %v", err)
	}
}

func TestTimeoutKillsProcess(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sleep"), []string{"10"}, process.WithTimeout(100*time.Millisecond))

	start := time.Now()
	code, err := h.Wait(context.Background())
	if !stderrors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("expected kill within 2s, took %v", elapsed)
	}
	if code != -1 {
		t.Errorf("expected exit code -1, got %d", code)
	}
	if h.State() != process.StateKilled {
		t.Errorf("expected killed, got %s", h.State())
	}
	if sig, _ := h.Signal(); sig != syscall.SIGTERM {
		t.Errorf("expected SIGTERM, got %v", sig)
	}
}

func TestWaitContextCancelKills(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sleep"), []string{"10"})

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if _, err := h.Wait(ctx); !stderrors.Is(err, errors.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if h.State() != process.StateKilled {
		t.Errorf("expected killed, got %s", h.State())
	}
	if h.IsAlive() {
		t.Error("process must be reaped when Wait returns")
	}
}

func TestWaitAfterCompletionIgnoresDoneContext(t *testing.T) {
	h := invoke(t, newEngine(t).Command("true"), nil)
	wait(t, h)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if code, err := h.Wait(ctx); err != nil || code != 0 {
		t.Errorf("expected cached outcome, got %d, %v", code, err)
	}
}

func TestKillTwiceIsNoop(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sleep"), []string{"10"})

	if err := h.Kill(syscall.SIGKILL); err != nil {
		t.Fatalf("first kill failed: %v", err)
	}
	code := wait(t, h)
	if err := h.Kill(syscall.SIGKILL); err != nil {
		t.Errorf("second kill should be a no-op, got %v", err)
	}
	if code != -1 || h.State() != process.StateKilled {
		t.Errorf("expected killed with -1, got %s with %d", h.State(), code)
	}
	if sig, _ := h.Signal(); sig != syscall.SIGKILL {
		t.Errorf("expected SIGKILL, got %v", sig)
	}
}

func TestTerminate(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sleep"), []string{"10"})
	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	wait(t, h)
	if h.State() != process.StateKilled {
		t.Errorf("expected killed, got %s", h.State())
	}
}

func TestKillEscalatesAfterGrace(t *testing.T) {
	e := newEngine(t, func(c *process.Config) { c.KillGrace = 100 * time.Millisecond })
	h := invoke(t, e.Command("sh"), []string{"-c", `trap "" TERM; echo ready; sleep 10`})
	eventually(t, "trap installed", func() bool { return bytes.Contains(h.Stdout(), []byte("ready")) })

	if err := h.Terminate(); err != nil {
		t.Fatalf("Terminate failed: %v", err)
	}
	start := time.Now()
	wait(t, h)

	if sig, _ := h.Signal(); sig != syscall.SIGKILL {
		t.Errorf("expected escalation to SIGKILL, got %v", sig)
	}
	if h.State() != process.StateKilled {
		t.Errorf("expected killed, got %s", h.State())
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("escalation took %v", elapsed)
	}
}

func TestSignaledBySelf(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "kill -TERM $$"})
	code := wait(t, h)

	if code != -1 {
		t.Errorf("expected exit code -1, got %d", code)
	}
	if h.State() != process.StateSignaled {
		t.Errorf("expected signaled, got %s", h.State())
	}
	if sig, ok := h.Signal(); !ok || sig != syscall.SIGTERM {
		t.Errorf("expected SIGTERM, got %v", sig)
	}
}

func TestExitCodeWhileRunning(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sleep"), []string{"10"})
	defer func() {
		_ = h.Kill(syscall.SIGKILL)
		_, _ = h.WaitTimeout(5 * time.Second)
	}()

	if !h.IsAlive() {
		t.Error("expected process alive")
	}
	if _, err := h.ExitCode(); !stderrors.Is(err, errors.ErrProcessStillRunning) {
		t.Errorf("expected ErrProcessStillRunning, got %v", err)
	}
	if h.State() != process.StateRunning {
		t.Errorf("expected running, got %s", h.State())
	}
}

func TestReadWhileRunning(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "echo first; sleep 10"})
	defer func() {
		_ = h.Kill(syscall.SIGKILL)
		_, _ = h.WaitTimeout(5 * time.Second)
	}()

	eventually(t, "first line", func() bool { return string(h.Read(process.Stdout)) == "first\n" })
	if !h.IsAlive() {
		t.Error("expected process still running")
	}
}

func TestLargeOutputDoesNotDeadlock(t *testing.T) {
	const size = 4 << 20
	h := invoke(t, newEngine(t).Command("dd"), []string{"if=/dev/zero", "bs=1024", "count=4096"})
	wait(t, h)

	if got := len(h.Stdout()); got != size {
		t.Errorf("expected %d bytes, got %d", size, got)
	}
	if len(h.Stderr()) == 0 {
		t.Error("expected dd statistics on stderr")
	}
}

func TestLargeOutputKeepsOrder(t *testing.T) {
	const n = 500_000
	want := make([]byte, 0, 4<<20)
	for i := 1; i <= n; i++ {
		want = strconv.AppendInt(want, int64(i), 10)
		want = append(want, '\n')
	}

	h := invoke(t, newEngine(t).Command("seq"), []string{"1", strconv.Itoa(n)})
	wait(t, h)

	got := h.Stdout()
	if !bytes.Equal(got, want) {
		i := 0
		for i < len(got) && i < len(want) && got[i] == want[i] {
			i++
		}
		t.Fatalf("output differs at byte %d (got %d bytes, want %d)", i, len(got), len(want))
	}
}

func TestStdinRoundTrip(t *testing.T) {
	payload := bytes.Repeat([]byte("teashell\n"), 350_000)
	h := invoke(t, newEngine(t).Command("cat"), nil, process.WithStdin(bytes.NewReader(payload)))
	wait(t, h)

	if !bytes.Equal(h.Stdout(), payload) {
		t.Errorf("round trip mismatch: sent %d bytes, got %d", len(payload), len(h.Stdout()))
	}
	if h.Stdin() != nil {
		t.Error("expected no stdin writer when fed from a reader")
	}
	if err := h.WriteLine("x"); !stderrors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestWriteLineAndCloseStdin(t *testing.T) {
	h := invoke(t, newEngine(t).Command("cat"), nil)

	if err := h.WriteLine("one"); err != nil {
		t.Fatalf("WriteLine failed: %v", err)
	}
	if _, err := h.Stdin().Write([]byte("two\n")); err != nil {
		t.Fatalf("Stdin write failed: %v", err)
	}
	if err := h.CloseStdin(); err != nil {
		t.Fatalf("CloseStdin failed: %v", err)
	}
	wait(t, h)

	if got := string(h.Stdout()); got != "one\ntwo\n" {
		t.Errorf("unexpected output %q", got)
	}
	if err := h.WriteLine("late"); err == nil {
		t.Error("expected write after close to fail")
	}
}

func TestPassthroughMatchesCapture(t *testing.T) {
	var out, errOut bytes.Buffer
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "echo out; echo err >&2; echo more"},
		process.WithPassthroughTo(&out, &errOut))
	wait(t, h)

	if out.String() != "out\nmore\n" || !bytes.Equal(out.Bytes(), h.Stdout()) {
		t.Errorf("stdout passthrough %q, capture %q", out.String(), h.Stdout())
	}
	if errOut.String() != "err\n" || !bytes.Equal(errOut.Bytes(), h.Stderr()) {
		t.Errorf("stderr passthrough %q, capture %q", errOut.String(), h.Stderr())
	}
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestPassthroughToSharedWriter(t *testing.T) {
	shared := &lockedBuffer{}
	e, err := process.NewEngine(process.DefaultConfig(), process.WithPassthroughWriters(shared, shared))
	if err != nil {
		t.Fatal(err)
	}
	h := invoke(t, e.Command("sh"), []string{"-c", "echo a; echo b >&2"}, process.WithPassthrough())
	wait(t, h)

	got := shared.String()
	if !strings.Contains(got, "a\n") || !strings.Contains(got, "b\n") || len(got) != 4 {
		t.Errorf("unexpected shared output %q", got)
	}
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, syscall.EPIPE }

func TestPassthroughFailureKeepsCapture(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "echo one; echo two"},
		process.WithPassthroughTo(brokenWriter{}, nil))
	if code := wait(t, h); code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}

	if got := string(h.Stdout()); got != "one\ntwo\n" {
		t.Errorf("expected capture to continue, got %q", got)
	}
	if !stderrors.Is(h.PassthroughErr(process.Stdout), syscall.EPIPE) {
		t.Errorf("expected EPIPE recorded, got %v", h.PassthroughErr(process.Stdout))
	}
	if h.PassthroughErr(process.Stderr) != nil {
		t.Errorf("stderr passthrough should be unaffected, got %v", h.PassthroughErr(process.Stderr))
	}
}

func TestCaptureDisabled(t *testing.T) {
	var out bytes.Buffer
	h := invoke(t, newEngine(t).Command("echo"), []string{"streamed"},
		process.WithCapture(false), process.WithPassthroughTo(&out, nil))
	wait(t, h)

	if len(h.Stdout()) != 0 || h.Combined() != nil {
		t.Errorf("expected nothing captured, got %q", h.Stdout())
	}
	if out.String() != "streamed\n" {
		t.Errorf("expected passthrough, got %q", out.String())
	}
}

func TestCombinedOutput(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "echo a; echo b >&2; echo c"},
		process.WithCombinedOutput())
	wait(t, h)

	if got := string(h.Stdout()); got != "a\nb\nc\n" {
		t.Errorf("expected interleaved output, got %q", got)
	}
	if len(h.Stderr()) != 0 {
		t.Errorf("expected empty stderr, got %q", h.Stderr())
	}
	if got := string(h.Combined()); got != "a\nb\nc\n" {
		t.Errorf("expected combined buffer to match, got %q", got)
	}
}

func TestCombinedBufferHasBothStreams(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "echo out; echo err >&2"})
	wait(t, h)

	got := string(h.Combined())
	if len(got) != len("out\nerr\n") || !strings.Contains(got, "out\n") || !strings.Contains(got, "err\n") {
		t.Errorf("unexpected combined output %q", got)
	}
}

func TestEnvOverlay(t *testing.T) {
	t.Setenv("TEASHELL_INHERITED", "parent")
	cmd := newEngine(t).Command("sh").BakeEnv(map[string]string{"TEASHELL_BAKED": "baked"})

	h := invoke(t, cmd, []string{"-c", `echo "$TEASHELL_INHERITED $TEASHELL_BAKED $TEASHELL_CALL"`},
		process.WithEnv(map[string]string{"TEASHELL_CALL": "call", "TEASHELL_BAKED": "override"}))
	wait(t, h)

	if got := string(h.Stdout()); got != "parent override call\n" {
		t.Errorf("unexpected environment %q", got)
	}
}

func TestEnvNotInherited(t *testing.T) {
	t.Setenv("TEASHELL_INHERITED", "parent")
	e := newEngine(t, func(c *process.Config) { c.InheritEnv = false })

	h := invoke(t, e.Command("sh"), []string{"-c", `echo "${TEASHELL_INHERITED:-none}"`})
	wait(t, h)

	if got := string(h.Stdout()); got != "none\n" {
		t.Errorf("expected clean environment, got %q", got)
	}
}

func TestWithoutColor(t *testing.T) {
	cmd := process.NewCommand(newEngine(t), "sh", process.WithoutColor())
	h := invoke(t, cmd, []string{"-c", `echo "$NO_COLOR $TERM"`})
	wait(t, h)

	if got := string(h.Stdout()); got != "1 dumb\n" {
		t.Errorf("unexpected color env %q", got)
	}
}

func TestWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}

	for _, cmd := range []process.Command{
		newEngine(t).Command("pwd").WithDir(dir),
		newEngine(t).Command("sh").Bake("-c", "pwd"),
	} {
		h := invoke(t, cmd, nil, process.WithDir(dir))
		wait(t, h)
		got, err := filepath.EvalSymlinks(strings.TrimSpace(string(h.Stdout())))
		if err != nil {
			t.Fatalf("%s printed %q: %v", cmd, h.Stdout(), err)
		}
		if got != want {
			t.Errorf("%s: expected %q, got %q", cmd, want, got)
		}
	}
}

func TestInvokeFlags(t *testing.T) {
	cmd := newEngine(t).Command("echo").BakeFlags(process.Flag{Name: "mode", Value: "fast"})
	h := invoke(t, cmd, []string{"x"}, process.WithFlags(process.Flag{Name: "n", Value: "3"}))
	wait(t, h)

	if got := string(h.Stdout()); got != "x --mode=fast -n 3\n" {
		t.Errorf("unexpected rendering %q", got)
	}
}

func TestCommandDefaults(t *testing.T) {
	cmd := process.NewCommand(newEngine(t), "sh",
		process.WithArgs("-c", `echo "$TEASHELL_DEFAULT"`),
		process.WithDefaults(process.WithEnv(map[string]string{"TEASHELL_DEFAULT": "from-default"})))

	h := invoke(t, cmd, nil)
	wait(t, h)
	if got := string(h.Stdout()); got != "from-default\n" {
		t.Errorf("expected command default env, got %q", got)
	}

	h = invoke(t, cmd.WithInvokeDefaults(process.WithEnv(map[string]string{"TEASHELL_DEFAULT": "later"})), nil)
	wait(t, h)
	if got := string(h.Stdout()); got != "later\n" {
		t.Errorf("expected later default to win, got %q", got)
	}
}

func TestDrainTimeoutAfterExit(t *testing.T) {
	e := newEngine(t, func(c *process.Config) { c.DrainTimeout = 100 * time.Millisecond })
	h := invoke(t, e.Command("sh"), []string{"-c", "sleep 5 & echo started"})

	start := time.Now()
	if code := wait(t, h); code != 0 {
		t.Errorf("expected exit 0, got %d", code)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("expected background writer to be cut off, waited %v", elapsed)
	}
	if got := string(h.Stdout()); got != "started\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestMaxProcesses(t *testing.T) {
	e := newEngine(t, func(c *process.Config) { c.MaxProcesses = 1 })

	first := invoke(t, e.Command("sleep"), []string{"10"})
	if _, err := e.Command("true").Invoke(context.Background(), nil); !stderrors.Is(err, errors.ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed at the limit, got %v", err)
	}

	_ = first.Kill(syscall.SIGKILL)
	wait(t, first)

	h := invoke(t, e.Command("true"), nil)
	wait(t, h)
}

func TestConcurrentInvocations(t *testing.T) {
	e := newEngine(t)
	cmd := e.Command("sh").Bake("-c", `echo "$1"`, "sh")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := strings.Repeat("x", i+1)
			res, err := cmd.Run(context.Background(), []string{want})
			if err != nil {
				errs <- err
				return
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != want {
				errs <- stderrors.New("mismatched output " + got)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestWaitCancelAfterExitKeepsOutcome(t *testing.T) {
	h := invoke(t, newEngine(t).Command("sh"), []string{"-c", "sleep 2 & echo done"})
	eventually(t, "shell exit", func() bool { return !h.IsAlive() })
	eventually(t, "output", func() bool { return string(h.Stdout()) == "done\n" })

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	code, err := h.Wait(ctx)
	if err != nil || code != 0 {
		t.Fatalf("expected exit 0 without error, got %d, %v", code, err)
	}
	if h.State() != process.StateExited {
		t.Errorf("expected exited, got %s", h.State())
	}

	code, err = h.Wait(context.Background())
	if err != nil || code != 0 {
		t.Errorf("repeated Wait must report the same outcome, got %d, %v", code, err)
	}
}

func TestSearchPathDotStaysInDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	for _, entry := range []string{".", ""} {
		_, err := newEngine(t).Command("echo").WithSearchPath(entry).Resolve()
		if !stderrors.Is(err, errors.ErrCommandNotFound) {
			t.Errorf("search path %q: expected ErrCommandNotFound outside $PATH, got %v", entry, err)
		}
	}

	script := filepath.Join(dir, "echo")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho local\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cmd := newEngine(t).Command("echo").WithSearchPath(".")
	path, err := cmd.Resolve()
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	gotPath, _ := filepath.EvalSymlinks(path)
	wantPath, _ := filepath.EvalSymlinks(script)
	if gotPath != wantPath {
		t.Errorf("expected %q, got %q", wantPath, gotPath)
	}

	h := invoke(t, cmd, nil)
	wait(t, h)
	if got := string(h.Stdout()); got != "local\n" {
		t.Errorf("expected the local script to run, got %q", got)
	}
}

func TestNonTerminatingSignalDoesNotKill(t *testing.T) {
	e := newEngine(t, func(c *process.Config) { c.KillGrace = 100 * time.Millisecond })
	h := invoke(t, e.Command("sh"), []string{"-c", `trap "echo got" USR1; echo ready; while :; do sleep 0.05; done`})
	defer func() {
		_ = h.Kill(syscall.SIGKILL)
		_, _ = h.WaitTimeout(5 * time.Second)
	}()
	eventually(t, "trap installed", func() bool { return bytes.Contains(h.Stdout(), []byte("ready")) })

	if err := h.Kill(syscall.SIGUSR1); err != nil {
		t.Fatalf("Kill(SIGUSR1) failed: %v", err)
	}
	eventually(t, "trap output", func() bool { return bytes.Contains(h.Stdout(), []byte("got")) })

	// Well past KillGrace: no escalation may follow a non-terminating signal.
	time.Sleep(400 * time.Millisecond)
	if !h.IsAlive() {
		t.Fatalf("process must survive SIGUSR1, state %s", h.State())
	}

	if err := h.Kill(syscall.SIGKILL); err != nil {
		t.Fatal(err)
	}
	wait(t, h)
	if h.State() != process.StateKilled {
		t.Errorf("expected killed, got %s", h.State())
	}
}
