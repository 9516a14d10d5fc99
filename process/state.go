package process

import "fmt"

// State is the lifecycle state of a child process.
//
// Transitions are monotonic: Spawned → Running → one of the terminal states
// Exited, Signaled or Killed.
type State int32

const (
	// StateSpawned is held while the OS process is being created.
	StateSpawned State = iota
	// StateRunning indicates the process has started and not been reaped.
	StateRunning
	// StateExited indicates the process exited on its own with an exit code.
	StateExited
	// StateSignaled indicates the process was terminated by a signal it was
	// not asked to receive from this engine.
	StateSignaled
	// StateKilled indicates the process was terminated after Kill or a
	// timeout.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateSpawned:
		return "spawned"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateSignaled:
		return "signaled"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s >= StateExited
}
