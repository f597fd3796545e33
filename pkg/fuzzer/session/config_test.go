package session

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigResolveFillsDefaults(t *testing.T) {
	cfg, err := Config{Endpoint: "stdio-target"}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.RunsPerTool)
	assert.Equal(t, 5, cfg.MaxConcurrency)
	assert.Equal(t, 30.0, cfg.TimeoutS)
	assert.Equal(t, 1, cfg.RetryCount)
}

func TestConfigResolveKeepsExplicitValues(t *testing.T) {
	cfg, err := Config{Endpoint: "x", RunsPerTool: 10, MaxConcurrency: 2, TimeoutS: 5, RetryCount: 0}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.RunsPerTool)
	assert.Equal(t, 2, cfg.MaxConcurrency)
	assert.Equal(t, 5.0, cfg.TimeoutS)
	assert.Equal(t, 0, cfg.RetryCount)
}

func TestConfigResolveRequiresEndpoint(t *testing.T) {
	_, err := Config{}.Resolve()
	assert.Error(t, err)
}

func TestConfigTimeoutConvertsSeconds(t *testing.T) {
	cfg, err := Config{Endpoint: "x", TimeoutS: 2.5}.Resolve()
	require.NoError(t, err)
	assert.Equal(t, 2500*time.Millisecond, cfg.Timeout())
}

func TestConfigResolveAppliesEnvOverrides(t *testing.T) {
	t.Setenv("MCP_FUZZER_IN_SAFE_MODE", "1")
	t.Setenv("MCP_FUZZER_FS_ROOT", "/tmp/fuzzer-root")
	t.Setenv("MCP_FUZZER_TIMEOUT", "12.5")

	cfg, err := Config{Endpoint: "x", SafetyEnabled: false, TimeoutS: 30}.Resolve()
	require.NoError(t, err)
	assert.True(t, cfg.SafetyEnabled)
	assert.Equal(t, "/tmp/fuzzer-root", cfg.FSRoot)
	assert.Equal(t, 12.5, cfg.TimeoutS)
}

func TestConfigResolveIgnoresUnsetEnvOverrides(t *testing.T) {
	os.Unsetenv("MCP_FUZZER_IN_SAFE_MODE")
	os.Unsetenv("MCP_FUZZER_FS_ROOT")
	os.Unsetenv("MCP_FUZZER_TIMEOUT")

	cfg, err := Config{Endpoint: "x", FSRoot: "/configured/root"}.Resolve()
	require.NoError(t, err)
	assert.False(t, cfg.SafetyEnabled)
	assert.Equal(t, "/configured/root", cfg.FSRoot)
	assert.Equal(t, 30.0, cfg.TimeoutS)
}
