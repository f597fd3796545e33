// Package session implements the Session Driver of spec.md §4.9: the
// top-level collaborator that wires transport, strategy, executor, safety
// and invariant checking into one fuzz run and emits RunRecords to a
// Reporter. Config mirrors spec.md §6's resolved configuration record;
// defaults are applied the way the teacher's NewMCPClient/NewHTTPTransport
// fill in zero-value fields via a Resolve method.
package session

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/safety"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/strategy"
)

// Protocol is the wire shape the endpoint speaks.
type Protocol string

const (
	ProtocolHTTP          Protocol = "http"
	ProtocolHTTPS         Protocol = "https"
	ProtocolSSE           Protocol = "sse"
	ProtocolStdio         Protocol = "stdio"
	ProtocolStreamableHTTP Protocol = "streamable_http"
)

// Config is the resolved configuration record of spec.md §6.
type Config struct {
	Mode     strategy.Mode
	Phase    strategy.PhaseMode
	Protocol Protocol

	// Endpoint is a URL for network transports, or the executable for
	// stdio (Args holds its argv).
	Endpoint string
	Args     []string
	Env      []string

	RunsPerTool    int
	MaxConcurrency int
	TimeoutS       float64
	RetryCount     int

	SafetyEnabled bool
	FSRoot        string
	Network       safety.NetworkPolicy

	Seed        uint64
	AuthHeaders map[string]string

	// StatusAddr is the listen address for an optional StatusServer. Driver
	// does not read it; the caller passes it to NewStatusServer.
	StatusAddr string
}

// Resolve fills in zero-value fields with spec.md §6's stated defaults,
// then applies the environment variable overrides spec.md §6 names
// (MCP_FUZZER_IN_SAFE_MODE, MCP_FUZZER_FS_ROOT, MCP_FUZZER_TIMEOUT),
// which take precedence over whatever the caller set.
func (c Config) Resolve() (Config, error) {
	if os.Getenv("MCP_FUZZER_IN_SAFE_MODE") == "1" {
		c.SafetyEnabled = true
	}
	if root := os.Getenv("MCP_FUZZER_FS_ROOT"); root != "" {
		c.FSRoot = root
	}
	if timeout := os.Getenv("MCP_FUZZER_TIMEOUT"); timeout != "" {
		if t, err := strconv.ParseFloat(timeout, 64); err == nil {
			c.TimeoutS = t
		}
	}

	if c.RunsPerTool <= 0 {
		c.RunsPerTool = 1
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = 5
	}
	if c.TimeoutS <= 0 {
		c.TimeoutS = 30.0
	}
	if c.RetryCount < 0 {
		c.RetryCount = 1
	}
	if c.Endpoint == "" {
		return c, fmt.Errorf("config: endpoint is required")
	}
	return c, nil
}

// Timeout returns TimeoutS as a time.Duration.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutS * float64(time.Second))
}
