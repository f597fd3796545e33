package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
)

// SignalKind is the closed set of signals spec.md §4.5 names: TERM, KILL,
// INT, or a platform-mapped named kind.
type SignalKind int

const (
	SignalTerm SignalKind = iota
	SignalKill
	SignalInt
)

var errUnsupportedSignal = errors.New("process: signal not supported on this platform")

// Config describes one child process to spawn (spec.md §4.5
// "start(ProcessConfig)").
type Config struct {
	Name    string
	Command string
	Args    []string
	Dir     string
	Env     []string
	OnStdout func([]byte)
	OnStderr func([]byte)
	// OnStdoutClosed, if set, fires once the stdout pipe reaches EOF
	// (i.e. the child exited or closed it), so callers pumping stdout
	// into a channel know to stop waiting on it.
	OnStdoutClosed func()
}

type entry struct {
	handle *Handle
	cmd    *exec.Cmd
	stdin  io.WriteCloser
}

// Manager owns subprocess lifecycle exclusively; the Watchdog only ever
// looks handles up by pid through it (spec.md §3, §9).
type Manager struct {
	mu       sync.Mutex
	procs    map[int]*entry
	watchdog *Watchdog
	logger   logging.Logger
}

func NewManager(logger logging.Logger) *Manager {
	m := &Manager{procs: map[int]*entry{}, logger: logging.Or(logger)}
	return m
}

// Start spawns cfg.Command, registers the resulting Handle, and starts a
// reaper goroutine that performs the handle's single Running->terminal
// transition (spec.md §4.5, §9).
func (m *Manager) Start(ctx context.Context, cfg Config) (*Handle, error) {
	cmd := exec.CommandContext(ctx, cfg.Command, cfg.Args...)
	cmd.Dir = cfg.Dir
	cmd.Env = cfg.Env
	setProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("process: stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("process: start %s: %w", cfg.Command, err)
	}

	pgid := cmd.Process.Pid
	handle := newHandle(cmd.Process.Pid, pgid, cfg.Name)

	m.mu.Lock()
	m.procs[handle.PID] = &entry{handle: handle, cmd: cmd, stdin: stdin}
	m.mu.Unlock()

	if cfg.OnStdout != nil {
		go func() {
			streamLines(stdout, cfg.OnStdout)
			if cfg.OnStdoutClosed != nil {
				cfg.OnStdoutClosed()
			}
		}()
	}
	if cfg.OnStderr != nil {
		go streamLines(stderr, cfg.OnStderr)
	}

	go m.reap(handle, cmd)

	if m.watchdog != nil {
		m.watchdog.register(handle)
	}

	return handle, nil
}

// reap is the single background task that awaits the child's exit and
// performs its one terminal state transition (spec.md §3 invariant: "for
// any ProcessHandle in state Running, exactly one background reaper task
// awaits its exit").
func (m *Manager) reap(h *Handle, cmd *exec.Cmd) {
	err := cmd.Wait()
	if h.Status() == StatusKilled {
		// Already transitioned by Stop's KILL escalation.
		return
	}
	if err == nil {
		h.transitionOnce(StatusExited, 0)
		return
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		h.transitionOnce(StatusExited, exitErr.ExitCode())
		return
	}
	h.transitionOnce(StatusFailed, -1)
}

// Stop sends TERM to the process group, waits up to gracePeriod, then
// sends KILL. Idempotent: stopping an already-exited process succeeds
// (spec.md §4.5).
func (m *Manager) Stop(pid int, gracePeriod time.Duration) error {
	h, cmd := m.lookup(pid)
	if h == nil {
		return nil
	}
	if h.Status() != StatusRunning {
		return nil
	}

	if err := m.Signal(pid, SignalTerm); err != nil && posixSignals {
		m.logger.Logf("process: TERM %d failed: %v", pid, err)
	}

	deadline := time.After(gracePeriod)
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			if h.transitionOnce(StatusKilled, -1) {
				_ = m.Signal(pid, SignalKill)
				if cmd.Process != nil {
					_ = cmd.Process.Kill()
				}
			}
			return nil
		case <-tick.C:
			if h.Status() != StatusRunning {
				return nil
			}
		}
	}
}

// Signal sends kind to the process group (or, on platforms without a
// process-group signal primitive, degrades to direct termination of the
// process itself; spec.md §4.5).
func (m *Manager) Signal(pid int, kind SignalKind) error {
	h, cmd := m.lookup(pid)
	if h == nil {
		return fmt.Errorf("process: unknown pid %d", pid)
	}
	if !posixSignals {
		if cmd.Process == nil {
			return nil
		}
		return cmd.Process.Kill()
	}
	return signalGroup(h.PGID, kind)
}

func (m *Manager) lookup(pid int) (*Handle, *exec.Cmd) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.procs[pid]
	if !ok {
		return nil, nil
	}
	return e.handle, e.cmd
}

// Status is a pure reader (spec.md §4.5).
func (m *Manager) Status(pid int) (Status, bool) {
	h, _ := m.lookup(pid)
	if h == nil {
		return 0, false
	}
	return h.Status(), true
}

// List is a pure reader returning every handle the manager knows about.
func (m *Manager) List() []*Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Handle, 0, len(m.procs))
	for _, e := range m.procs {
		out = append(out, e.handle)
	}
	return out
}

// Stats is a pure reader summarizing handle states.
type Stats struct {
	Running, Exited, Killed, Failed int
}

func (m *Manager) Stats() Stats {
	var s Stats
	for _, h := range m.List() {
		switch h.Status() {
		case StatusRunning:
			s.Running++
		case StatusExited:
			s.Exited++
		case StatusKilled:
			s.Killed++
		case StatusFailed:
			s.Failed++
		}
	}
	return s
}

// AttachWatchdog registers an already-running Watchdog so future Start
// calls register their handles with it.
func (m *Manager) AttachWatchdog(w *Watchdog) { m.watchdog = w }

// Shutdown stops every live process with gracePeriod, then stops the
// watchdog. No leaked processes remain after it returns (spec.md §4.5).
func (m *Manager) Shutdown(gracePeriod time.Duration) {
	var wg sync.WaitGroup
	for _, h := range m.List() {
		if h.Status() != StatusRunning {
			continue
		}
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			_ = m.Stop(pid, gracePeriod)
		}(h.PID)
	}
	wg.Wait()
	if m.watchdog != nil {
		m.watchdog.Stop()
	}
}

// streamLines scans r for newline-delimited lines, the way the teacher's
// stdio_transport.go reads a single bufio.Scanner, but here feeding a
// callback so multiple pipes (stdout, stderr) can be pumped concurrently.
func streamLines(r io.Reader, fn func([]byte)) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)
	for scanner.Scan() {
		line := make([]byte, len(scanner.Bytes()))
		copy(line, scanner.Bytes())
		fn(line)
	}
}

// Stdin returns the write end of pid's stdin pipe, for transports that
// need to write requests directly (spec.md §4.4 stdio transport).
func (m *Manager) Stdin(pid int) (io.Writer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.procs[pid]
	if !ok {
		return nil, fmt.Errorf("process: unknown pid %d", pid)
	}
	return e.stdin, nil
}
