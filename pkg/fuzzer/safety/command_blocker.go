package safety

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
)

// blockedCommands are the launcher binaries shimmed by CommandBlocker
// (spec.md §4.7), shared with the danger-pattern catalog's launcher list.
var blockedCommands = launcherBinaries

// CommandBlocker installs a PATH-prefix directory of shim executables so
// a child process that execs e.g. "xdg-open" hits a stub that exits
// nonzero and logs, instead of actually opening a browser (spec.md §4.7).
// Activated only when MCP_FUZZER_IN_SAFE_MODE=1.
type CommandBlocker struct {
	dir    string
	logger logging.Logger
}

// NewCommandBlocker creates the shim directory under a temp dir and
// populates it with one shim per blocked command. Returns nil, nil when
// safe mode is not requested.
func NewCommandBlocker(safeMode bool, logger logging.Logger) (*CommandBlocker, error) {
	if !safeMode {
		return nil, nil
	}
	logger = logging.Or(logger)

	dir, err := os.MkdirTemp("", "mcp-fuzzer-shims-")
	if err != nil {
		return nil, fmt.Errorf("safety: create shim dir: %w", err)
	}

	cb := &CommandBlocker{dir: dir, logger: logger}
	for _, name := range blockedCommands {
		if err := cb.writeShim(name); err != nil {
			os.RemoveAll(dir)
			return nil, err
		}
	}
	return cb, nil
}

func (c *CommandBlocker) writeShim(name string) error {
	path := filepath.Join(c.dir, shimFilename(name))
	script := shimScript(name)
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		return fmt.Errorf("safety: write shim %s: %w", name, err)
	}
	return nil
}

func shimFilename(name string) string {
	if runtime.GOOS == "windows" {
		return name + ".bat"
	}
	return name
}

func shimScript(name string) string {
	if runtime.GOOS == "windows" {
		return "@echo off\r\necho blocked by mcp-fuzzer command blocker: " + name + " 1>&2\r\nexit /b 1\r\n"
	}
	return "#!/bin/sh\necho \"blocked by mcp-fuzzer command blocker: " + name + "\" 1>&2\nexit 1\n"
}

// Dir returns the shim directory, to be prepended to a child process's
// PATH.
func (c *CommandBlocker) Dir() string { return c.dir }

// PrependedPath returns origPath with the shim directory prefixed.
func (c *CommandBlocker) PrependedPath(origPath string) string {
	return c.dir + string(os.PathListSeparator) + origPath
}

// ChildEnv returns base (or, when base is empty, the process's own
// environment) with PATH prefixed by the shim directory and
// MCP_FUZZER_IN_SAFE_MODE=1 set, so a spawned child actually resolves
// blocked launcher binaries to their shims (spec.md §4.7).
func (c *CommandBlocker) ChildEnv(base []string) []string {
	if len(base) == 0 {
		base = os.Environ()
	}

	env := make([]string, 0, len(base)+1)
	pathSet := false
	for _, kv := range base {
		if strings.HasPrefix(kv, "PATH=") {
			env = append(env, "PATH="+c.PrependedPath(strings.TrimPrefix(kv, "PATH=")))
			pathSet = true
			continue
		}
		env = append(env, kv)
	}
	if !pathSet {
		env = append(env, "PATH="+c.dir)
	}
	return append(env, "MCP_FUZZER_IN_SAFE_MODE=1")
}

// Teardown removes the shim directory (spec.md §4.7: "torn down on
// session exit").
func (c *CommandBlocker) Teardown() error {
	if c == nil {
		return nil
	}
	return os.RemoveAll(c.dir)
}
