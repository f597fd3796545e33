//go:build windows

package process

import "os/exec"

// setProcessGroup is a no-op on Windows; there is no setpgid equivalent
// wired here, so signaling degrades to direct process termination
// (spec.md §4.5: "On non-POSIX, signals are best-effort and degrade to
// termination").
func setProcessGroup(cmd *exec.Cmd) {}

func signalGroup(pgid int, kind SignalKind) error {
	return errUnsupportedSignal
}

const posixSignals = false
