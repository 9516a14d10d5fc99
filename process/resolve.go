package process

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kbukum/teashell/errors"
)

// resolveProgram finds the executable for program.
//
// A program containing a path separator is used as given, relative to dir
// when dir is set. Otherwise each directory of searchPath is tried in order,
// falling back to $PATH when searchPath is empty. The result is absolute.
func resolveProgram(program string, searchPath []string, dir string) (string, error) {
	if program == "" {
		return "", errors.CommandNotFound(program, "program name is empty")
	}

	if strings.ContainsRune(program, '/') || strings.ContainsRune(program, filepath.Separator) {
		candidate := program
		if dir != "" && !filepath.IsAbs(candidate) {
			candidate = filepath.Join(dir, candidate)
		}
		return checkExecutable(program, candidate)
	}

	dirs := searchPath
	if len(dirs) == 0 {
		dirs = filepath.SplitList(os.Getenv("PATH"))
	}

	reason := "not found in search path"
	for _, d := range dirs {
		if d == "" {
			d = "."
		}
		candidate := filepath.Join(d, program)
		if !strings.ContainsRune(candidate, filepath.Separator) {
			// Join(".", name) drops the directory; LookPath would then search
			// $PATH instead of the current directory.
			candidate = "." + string(filepath.Separator) + candidate
		}
		path, err := checkExecutable(program, candidate)
		if err == nil {
			return path, nil
		}
		if isRegularFile(candidate) {
			reason = "found but not executable"
		}
	}
	return "", errors.CommandNotFound(program, reason).WithDetail("search_path", dirs)
}

func checkExecutable(program, candidate string) (string, error) {
	// LookPath on a name with a separator only checks the file itself, and
	// applies PATHEXT on Windows.
	path, err := exec.LookPath(candidate)
	if err != nil {
		reason := "no such file"
		if isRegularFile(candidate) {
			reason = "found but not executable"
		}
		return "", errors.CommandNotFound(program, reason).WithCause(err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.CommandNotFound(program, err.Error()).WithCause(err)
	}
	return abs, nil
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
