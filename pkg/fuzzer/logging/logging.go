// Package logging provides the minimal logging seam shared across the
// fuzzer's components. The teacher repo never pulls in a structured logging
// library; it gates fmt.Printf-style diagnostics behind an EnableLogging
// flag (pkg/mcp/stdio_transport.go, pkg/mcp/http_transport.go). The fuzzer
// follows the same idiom instead of introducing a logging dependency no
// retrieved repo actually uses.
package logging

import "fmt"

// Logger is the narrow interface every component accepts. Nil-safe: callers
// may pass a nil Logger and get the no-op behavior of Discard.
type Logger interface {
	Logf(format string, args ...any)
}

// Func adapts a plain function to Logger.
type Func func(format string, args ...any)

// Logf implements Logger.
func (f Func) Logf(format string, args ...any) {
	if f != nil {
		f(format, args...)
	}
}

// Discard is a Logger that drops everything.
var Discard Logger = Func(nil)

// Printf returns a Logger that writes to standard out via fmt.Printf,
// matching the teacher's "MCP Send: %s" style diagnostics.
func Printf() Logger {
	return Func(func(format string, args ...any) {
		fmt.Printf(format+"\n", args...)
	})
}

// Or returns l if non-nil, otherwise Discard.
func Or(l Logger) Logger {
	if l == nil {
		return Discard
	}
	return l
}
