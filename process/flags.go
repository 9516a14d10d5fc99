package process

import (
	"strings"
	"unicode/utf8"
)

// Flag binds a value to a named option.
//
// Single-character names render as two arguments ("-x", "value");
// longer names render as one argument ("--name=value"). A Bare flag renders
// without a value ("-x" or "--name").
type Flag struct {
	Name  string
	Value string
	Bare  bool
}

// Switch returns a flag rendered without a value.
func Switch(name string) Flag {
	return Flag{Name: name, Bare: true}
}

// Args renders f as command-line arguments.
func (f Flag) Args() []string {
	short := utf8.RuneCountInString(f.Name) == 1
	switch {
	case short && f.Bare:
		return []string{"-" + f.Name}
	case short:
		return []string{"-" + f.Name, f.Value}
	case f.Bare:
		return []string{"--" + f.Name}
	default:
		return []string{"--" + f.Name + "=" + f.Value}
	}
}

func renderFlags(flags []Flag) []string {
	out := make([]string, 0, len(flags)*2)
	for _, f := range flags {
		out = append(out, f.Args()...)
	}
	return out
}

// flagNameProblem describes why name cannot be rendered, or returns "".
func flagNameProblem(name string) string {
	switch {
	case name == "":
		return "name is empty"
	case strings.HasPrefix(name, "-"):
		return "name must not include leading dashes"
	case strings.ContainsAny(name, "= \t\n\x00"):
		return "name must not contain '=', whitespace or NUL"
	}
	return ""
}
