package process

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/kbukum/teashell/errors"
)

// Command describes an external program with default arguments, flags,
// environment and working directory.
//
// A Command is an immutable value: Bake and the With methods return a
// derived copy and never change the receiver. It owns no OS resources and
// may be invoked any number of times, concurrently.
type Command struct {
	engine     *Engine
	program    string
	args       []string
	flags      []Flag
	env        map[string]string
	dir        string
	searchPath []string
	defaults   []InvokeOption
}

// NewCommand creates a command that runs program on engine.
func NewCommand(engine *Engine, program string, opts ...CommandOption) Command {
	c := Command{engine: engine, program: program}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// Command creates a command that runs program on e.
func (e *Engine) Command(program string, opts ...CommandOption) Command {
	return NewCommand(e, program, opts...)
}

func (c Command) clone() Command {
	c.args = slices.Clone(c.args)
	c.flags = slices.Clone(c.flags)
	c.env = maps.Clone(c.env)
	c.searchPath = slices.Clone(c.searchPath)
	c.defaults = slices.Clone(c.defaults)
	return c
}

// Program returns the program name or path as given.
func (c Command) Program() string { return c.program }

// Bake returns a command with args appended to the default arguments.
func (c Command) Bake(args ...string) Command {
	d := c.clone()
	d.args = append(d.args, args...)
	return d
}

// BakeEnv returns a command with env overlaid on its environment overrides.
func (c Command) BakeEnv(env map[string]string) Command {
	d := c.clone()
	if d.env == nil {
		d.env = make(map[string]string, len(env))
	}
	maps.Copy(d.env, env)
	return d
}

// BakeFlags returns a command with flags appended to the default flags.
func (c Command) BakeFlags(flags ...Flag) Command {
	d := c.clone()
	d.flags = append(d.flags, flags...)
	return d
}

// WithDir returns a command that runs in dir.
func (c Command) WithDir(dir string) Command {
	d := c.clone()
	d.dir = dir
	return d
}

// WithSearchPath returns a command that resolves its program in dirs
// instead of $PATH.
func (c Command) WithSearchPath(dirs ...string) Command {
	d := c.clone()
	d.searchPath = slices.Clone(dirs)
	return d
}

// WithInvokeDefaults returns a command that applies opts before the options
// of every invocation.
func (c Command) WithInvokeDefaults(opts ...InvokeOption) Command {
	d := c.clone()
	d.defaults = append(d.defaults, opts...)
	return d
}

// Resolve returns the absolute path of the program, or ErrCommandNotFound.
func (c Command) Resolve() (string, error) {
	return resolveProgram(c.program, c.searchPath, c.dir)
}

// Argv returns the full argument vector, program first, for an invocation
// with args: baked arguments, then args, then baked flags.
func (c Command) Argv(args ...string) []string {
	return append([]string{c.program}, c.arguments(args, nil)...)
}

func (c Command) arguments(args []string, extra []Flag) []string {
	out := make([]string, 0, len(c.args)+len(args)+2*(len(c.flags)+len(extra)))
	out = append(out, c.args...)
	out = append(out, args...)
	out = append(out, renderFlags(c.flags)...)
	out = append(out, renderFlags(extra)...)
	return out
}

// CommandLine renders Argv(args...) as a POSIX shell command line.
func (c Command) CommandLine(args ...string) string {
	argv := c.Argv(args...)
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

func (c Command) String() string {
	return c.CommandLine()
}

// Invoke starts the command with args appended and returns without waiting
// for it. The program is resolved first; ErrCommandNotFound is returned
// before any process exists.
func (c Command) Invoke(ctx context.Context, args []string, opts ...InvokeOption) (*Handle, error) {
	if c.engine == nil {
		return nil, errors.InvalidInput("engine", "command has no engine")
	}

	o := c.engine.defaultInvokeOptions()
	for _, opt := range c.defaults {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}

	for _, f := range append(slices.Clone(c.flags), o.flags...) {
		if problem := flagNameProblem(f.Name); problem != "" {
			return nil, errors.InvalidInput("flags", fmt.Sprintf("flag %q: %s", f.Name, problem)).
				WithDetail("flag", f.Name)
		}
	}

	env := maps.Clone(c.env)
	if len(o.env) > 0 {
		if env == nil {
			env = make(map[string]string, len(o.env))
		}
		maps.Copy(env, o.env)
	}

	dir := c.dir
	if o.dir != "" {
		dir = o.dir
	}

	return c.engine.Spawn(ctx, Spec{
		Program:     c.program,
		Args:        c.arguments(args, o.flags),
		Env:         env,
		Dir:         dir,
		SearchPath:  c.searchPath,
		Capture:     o.capture,
		Passthrough: o.passthrough,
		Stdout:      o.stdout,
		Stderr:      o.stderr,
		Timeout:     o.timeout,
		Combined:    o.combined,
		Stdin:       o.stdin,
	})
}

// shellQuote quotes s for a POSIX shell when it contains anything beyond
// a conservative set of safe characters.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	safe := true
	for _, r := range s {
		if !isShellSafe(r) {
			safe = false
			break
		}
	}
	if safe {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

func isShellSafe(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	}
	return strings.ContainsRune("@%+=:,./_-", r)
}
