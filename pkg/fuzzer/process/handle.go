// Package process implements the Process Manager and Watchdog of
// spec.md §4.5: subprocess lifecycle owned by one registry, a ticker-based
// watchdog modeled on the teacher's pkg/internal/polling.PollForCompletion,
// and graduated TERM->KILL escalation via process-group signals.
package process

import (
	"sync/atomic"
	"time"
)

// Status is the ProcessHandle state machine of spec.md §3: transitions
// Running -> (Exited | Killed | Failed) exactly once. The reaper task
// performs the Exited and Failed transitions; Manager.Stop's KILL
// escalation performs the Killed transition itself, before it signals.
type Status int32

const (
	StatusRunning Status = iota
	StatusExited
	StatusKilled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusExited:
		return "exited"
	case StatusKilled:
		return "killed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Handle is the Process Manager's view of a spawned child. The manager
// owns it exclusively; the watchdog holds only the pid and looks the
// handle up through the manager on every tick (spec.md §3, §9).
type Handle struct {
	PID       int
	PGID      int
	Name      string
	StartedAt time.Time

	status     atomic.Int32
	exitCode   atomic.Int32
	lastActive atomic.Int64 // UnixNano, updated by Touch
}

func newHandle(pid, pgid int, name string) *Handle {
	h := &Handle{PID: pid, PGID: pgid, Name: name, StartedAt: time.Now()}
	h.status.Store(int32(StatusRunning))
	h.lastActive.Store(time.Now().UnixNano())
	return h
}

// Status reads the current state atomically.
func (h *Handle) Status() Status { return Status(h.status.Load()) }

// ExitCode is meaningful once Status is Exited.
func (h *Handle) ExitCode() int { return int(h.exitCode.Load()) }

// Touch records activity (e.g. a stdout read); called by the transport
// whenever it reads from the child or receives a heartbeat (spec.md §4.5:
// "last_activity is updated by the transport ... or an explicit heartbeat").
func (h *Handle) Touch() { h.lastActive.Store(time.Now().UnixNano()) }

// LastActivity returns the last recorded activity time.
func (h *Handle) LastActivity() time.Time {
	return time.Unix(0, h.lastActive.Load())
}

// transitionOnce moves the handle out of Running exactly once. Called by
// the reaper and by Manager.Stop's KILL escalation; returns false if the
// handle had already left Running (idempotent stop/signal races are
// resolved here).
func (h *Handle) transitionOnce(to Status, exitCode int) bool {
	if !h.status.CompareAndSwap(int32(StatusRunning), int32(to)) {
		return false
	}
	h.exitCode.Store(int32(exitCode))
	return true
}
