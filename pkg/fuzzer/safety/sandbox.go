package safety

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// Sandbox confines path-shaped argument values to fs_root (spec.md §4.7,
// §3 invariant: "no path returned by the sandbox canonicalizer escapes
// the configured root").
type Sandbox struct {
	Root    string
	Enabled bool
}

func NewSandbox(root string, enabled bool) *Sandbox {
	return &Sandbox{Root: filepath.Clean(root), Enabled: enabled}
}

// Canonicalize resolves p (relative to Root if it is not already
// absolute) and asserts the result is within Root. It does not touch the
// filesystem to resolve symlinks here, since generated paths routinely
// name nonexistent files the fuzzer must still be able to reason about;
// instead it purely lexically cleans the path, which is sufficient to
// catch "../" escapes.
func (s *Sandbox) Canonicalize(p string) (string, error) {
	abs := p
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(s.Root, abs)
	}
	abs = filepath.Clean(abs)

	if abs != s.Root && !strings.HasPrefix(abs, s.Root+string(filepath.Separator)) {
		return "", model.NewTransportError(model.TransportPolicyViolation,
			fmt.Sprintf("path %q escapes sandbox root %q", p, s.Root), nil)
	}
	return abs, nil
}
