//go:build !windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

var signalsByName = map[string]os.Signal{
	"SIGTERM": unix.SIGTERM,
	"SIGKILL": unix.SIGKILL,
	"SIGINT":  unix.SIGINT,
	"SIGHUP":  unix.SIGHUP,
	"SIGQUIT": unix.SIGQUIT,
}

func parseSignal(name string) (os.Signal, error) {
	sig, ok := signalsByName[name]
	if !ok {
		return nil, fmt.Errorf("unsupported signal %q", name)
	}
	return sig, nil
}

// isTerminatingSignal reports whether sig is one of the signals accepted as
// a kill signal.
func isTerminatingSignal(sig os.Signal) bool {
	for _, s := range signalsByName {
		if s == sig {
			return true
		}
	}
	return false
}

func isKillSignal(sig os.Signal) bool {
	return sig == unix.SIGKILL
}

func sysProcAttr(processGroup bool) *syscall.SysProcAttr {
	if !processGroup {
		return nil
	}
	return &syscall.SysProcAttr{Setpgid: true}
}

// signalProcess delivers sig to p, or to its whole process group. A process
// or group that is already gone is not an error.
func signalProcess(p *os.Process, sig os.Signal, processGroup bool) error {
	if s, ok := sig.(syscall.Signal); ok && processGroup {
		err := unix.Kill(-p.Pid, s)
		if err == nil || errors.Is(err, unix.ESRCH) {
			return nil
		}
		if !errors.Is(err, unix.EPERM) {
			return fmt.Errorf("signal process group %d: %w", p.Pid, err)
		}
		// The group may contain a member we may not signal; fall back to
		// the leader alone.
	}
	if err := p.Signal(sig); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("signal process %d: %w", p.Pid, err)
	}
	return nil
}

// isTransientSpawnErr reports spawn failures that usually clear on retry:
// an executable still open for writing, or a temporary process limit.
func isTransientSpawnErr(err error) bool {
	return errors.Is(err, unix.ETXTBSY) || errors.Is(err, unix.EAGAIN)
}
