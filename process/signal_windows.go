//go:build windows

package process

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// Windows cannot deliver POSIX signals; every supported name terminates.
func parseSignal(name string) (os.Signal, error) {
	switch name {
	case "SIGTERM", "SIGKILL", "SIGHUP", "SIGQUIT":
		return os.Kill, nil
	case "SIGINT":
		return os.Interrupt, nil
	}
	return nil, fmt.Errorf("unsupported signal %q", name)
}

// isTerminatingSignal is always true: every signal terminates on Windows.
func isTerminatingSignal(os.Signal) bool {
	return true
}

func isKillSignal(sig os.Signal) bool {
	return sig == os.Kill
}

func sysProcAttr(bool) *syscall.SysProcAttr {
	return nil
}

func signalProcess(p *os.Process, _ os.Signal, _ bool) error {
	if err := p.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %d: %w", p.Pid, err)
	}
	return nil
}

func isTransientSpawnErr(error) bool {
	return false
}
