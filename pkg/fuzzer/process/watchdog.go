package process

import (
	"sync"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/logging"
)

// WatchdogConfig carries the three hang thresholds spec.md §4.5 names:
// warn at ProcessTimeout, TERM at ProcessTimeout+ExtraBuffer if AutoKill,
// KILL at MaxHangTime.
type WatchdogConfig struct {
	PollInterval  time.Duration
	ProcessTimeout time.Duration
	ExtraBuffer   time.Duration
	MaxHangTime   time.Duration
	AutoKill      bool
}

func (c WatchdogConfig) withDefaults() WatchdogConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.ProcessTimeout <= 0 {
		c.ProcessTimeout = 30 * time.Second
	}
	if c.ExtraBuffer <= 0 {
		c.ExtraBuffer = 5 * time.Second
	}
	if c.MaxHangTime <= 0 {
		c.MaxHangTime = c.ProcessTimeout + c.ExtraBuffer + 30*time.Second
	}
	return c
}

type watchedState struct {
	warned    bool
	termed    bool
}

// Watchdog polls every registered Handle's LastActivity on a ticker,
// the way the teacher's PollForCompletion drives a ticker loop, and
// escalates a hanging process from warn to TERM to KILL (spec.md §4.5).
type Watchdog struct {
	cfg     WatchdogConfig
	mgr     *Manager
	logger  logging.Logger
	mu      sync.Mutex
	handles map[int]struct{}
	states  map[int]*watchedState
	stop    chan struct{}
	stopped chan struct{}
}

func NewWatchdog(mgr *Manager, cfg WatchdogConfig, logger logging.Logger) *Watchdog {
	w := &Watchdog{
		cfg:     cfg.withDefaults(),
		mgr:     mgr,
		logger:  logging.Or(logger),
		handles: map[int]struct{}{},
		states:  map[int]*watchedState{},
		stop:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *Watchdog) register(h *Handle) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handles[h.PID] = struct{}{}
	w.states[h.PID] = &watchedState{}
}

func (w *Watchdog) run() {
	defer close(w.stopped)
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Watchdog) sweep() {
	now := time.Now()
	w.mu.Lock()
	handles := make([]*Handle, 0, len(w.handles))
	for pid := range w.handles {
		h, _ := w.mgr.lookup(pid)
		if h == nil || h.Status() != StatusRunning {
			delete(w.handles, pid)
			delete(w.states, pid)
			continue
		}
		handles = append(handles, h)
	}
	w.mu.Unlock()

	for _, h := range handles {
		idle := now.Sub(h.LastActivity())
		w.mu.Lock()
		st := w.states[h.PID]
		w.mu.Unlock()
		if st == nil {
			continue
		}

		switch {
		case idle >= w.cfg.MaxHangTime:
			w.logger.Logf("watchdog: %s (pid %d) exceeded max hang time (%v idle), sending KILL", h.Name, h.PID, idle)
			_ = w.mgr.Signal(h.PID, SignalKill)
		case idle >= w.cfg.ProcessTimeout+w.cfg.ExtraBuffer:
			if w.cfg.AutoKill && !st.termed {
				st.termed = true
				w.logger.Logf("watchdog: %s (pid %d) idle %v, sending TERM", h.Name, h.PID, idle)
				_ = w.mgr.Signal(h.PID, SignalTerm)
			}
		case idle >= w.cfg.ProcessTimeout:
			if !st.warned {
				st.warned = true
				w.logger.Logf("watchdog: %s (pid %d) idle %v, exceeds process_timeout", h.Name, h.PID, idle)
			}
		}
	}
}

// Stop halts the polling loop. Idempotent-safe to call once.
func (w *Watchdog) Stop() {
	select {
	case <-w.stop:
		return
	default:
		close(w.stop)
	}
	<-w.stopped
}
