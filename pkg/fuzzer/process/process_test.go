package process

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleeperCmd() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", "timeout", "/T", "5"}
	}
	return "sleep", []string{"5"}
}

func quickCmd() (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", "exit", "0"}
	}
	return "true", nil
}

func TestStartAndStopRunningProcess(t *testing.T) {
	cmdName, args := sleeperCmd()
	mgr := NewManager(nil)
	h, err := mgr.Start(context.Background(), Config{Name: "sleeper", Command: cmdName, Args: args})
	require.NoError(t, err)
	assert.Equal(t, StatusRunning, h.Status())

	err = mgr.Stop(h.PID, 50*time.Millisecond)
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for h.Status() == StatusRunning && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotEqual(t, StatusRunning, h.Status())
}

func TestStopIsIdempotent(t *testing.T) {
	cmdName, args := quickCmd()
	mgr := NewManager(nil)
	h, err := mgr.Start(context.Background(), Config{Name: "quick", Command: cmdName, Args: args})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for h.Status() == StatusRunning && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, StatusExited, h.Status())

	require.NoError(t, mgr.Stop(h.PID, 10*time.Millisecond))
	require.NoError(t, mgr.Stop(h.PID, 10*time.Millisecond))
}

func TestStatsReflectsTerminalStates(t *testing.T) {
	cmdName, args := quickCmd()
	mgr := NewManager(nil)
	_, err := mgr.Start(context.Background(), Config{Name: "quick", Command: cmdName, Args: args})
	require.NoError(t, err)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if mgr.Stats().Exited == 1 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, mgr.Stats().Exited)
}

func TestShutdownStopsAllRunningProcesses(t *testing.T) {
	cmdName, args := sleeperCmd()
	mgr := NewManager(nil)
	h1, err := mgr.Start(context.Background(), Config{Name: "a", Command: cmdName, Args: args})
	require.NoError(t, err)
	h2, err := mgr.Start(context.Background(), Config{Name: "b", Command: cmdName, Args: args})
	require.NoError(t, err)

	mgr.Shutdown(50 * time.Millisecond)

	assert.NotEqual(t, StatusRunning, h1.Status())
	assert.NotEqual(t, StatusRunning, h2.Status())
}

func TestWatchdogWarnsOnIdleProcess(t *testing.T) {
	cmdName, args := sleeperCmd()
	mgr := NewManager(nil)
	h, err := mgr.Start(context.Background(), Config{Name: "sleeper", Command: cmdName, Args: args})
	require.NoError(t, err)
	defer mgr.Shutdown(50 * time.Millisecond)

	var logged []string
	logger := func(format string, args ...any) {
		logged = append(logged, format)
	}

	wd := NewWatchdog(mgr, WatchdogConfig{
		PollInterval:   10 * time.Millisecond,
		ProcessTimeout: 20 * time.Millisecond,
		ExtraBuffer:    time.Hour,
		MaxHangTime:    2 * time.Hour,
	}, loggerFunc(logger))
	defer wd.Stop()
	wd.register(h)

	deadline := time.Now().Add(2 * time.Second)
	for len(logged) == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotEmpty(t, logged)
}

func TestWatchdogKillsAfterMaxHangTime(t *testing.T) {
	cmdName, args := sleeperCmd()
	mgr := NewManager(nil)
	h, err := mgr.Start(context.Background(), Config{Name: "sleeper", Command: cmdName, Args: args})
	require.NoError(t, err)
	defer mgr.Shutdown(50 * time.Millisecond)

	wd := NewWatchdog(mgr, WatchdogConfig{
		PollInterval:   5 * time.Millisecond,
		ProcessTimeout: 5 * time.Millisecond,
		ExtraBuffer:    5 * time.Millisecond,
		MaxHangTime:    10 * time.Millisecond,
		AutoKill:       true,
	}, nil)
	defer wd.Stop()
	wd.register(h)

	deadline := time.Now().Add(2 * time.Second)
	for h.Status() == StatusRunning && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.NotEqual(t, StatusRunning, h.Status())
}

type loggerFunc func(format string, args ...any)

func (f loggerFunc) Logf(format string, args ...any) { f(format, args...) }
