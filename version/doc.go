// Package version reports the teashell build version.
//
// The version is taken from -ldflags when set:
//
//	go build -ldflags "-X github.com/kbukum/teashell/version.Version=1.2.0"
//
// and otherwise from the module build info, which carries the teashell
// version whenever it is compiled into another program as a dependency.
// The observability package stamps it on resources and instrumentation
// scopes.
package version
