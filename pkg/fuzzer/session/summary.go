package session

import (
	"sync"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

// PerTargetStats accumulates outcome counts for one tool or one protocol
// method (spec.md §6: "SessionSummary{tool_stats, protocol_stats, ...}").
type PerTargetStats struct {
	Name               string
	Total              int
	Success            int
	ProtocolErrors     int
	TransportErrors    int
	Timeouts           int
	Blocked            int
	InvariantViolations int
}

// SessionSummary is the terminal report of one session (spec.md §6).
type SessionSummary struct {
	ToolStats          map[string]*PerTargetStats
	ProtocolStats      map[string]*PerTargetStats
	BlockedCount       int
	InvariantViolations int
	Duration           time.Duration
}

// Reporter consumes RunRecords as they are produced and/or the terminal
// SessionSummary (spec.md §4.9 "Reporter collaborator").
type Reporter interface {
	Report(r model.RunRecord)
	Finish(summary SessionSummary)
}

// NopReporter discards everything; useful as a default when the caller
// only wants the final SessionSummary returned from Driver.Run.
type NopReporter struct{}

func (NopReporter) Report(model.RunRecord)      {}
func (NopReporter) Finish(SessionSummary)       {}

// summaryBuilder accumulates stats across a run under a single mutex,
// mirroring the teacher's small-critical-section idiom.
type summaryBuilder struct {
	mu    sync.Mutex
	tools map[string]*PerTargetStats
	proto map[string]*PerTargetStats
	start time.Time
}

func newSummaryBuilder() *summaryBuilder {
	return &summaryBuilder{
		tools: map[string]*PerTargetStats{},
		proto: map[string]*PerTargetStats{},
		start: time.Now(),
	}
}

func (b *summaryBuilder) record(isProtocol bool, name string, r model.RunRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bucket := b.tools
	if isProtocol {
		bucket = b.proto
	}
	st, ok := bucket[name]
	if !ok {
		st = &PerTargetStats{Name: name}
		bucket[name] = st
	}
	st.Total++
	switch r.Outcome.Kind {
	case model.OutcomeSuccess:
		st.Success++
	case model.OutcomeProtocolError:
		st.ProtocolErrors++
	case model.OutcomeTransportError:
		st.TransportErrors++
	case model.OutcomeTimeout:
		st.Timeouts++
	case model.OutcomeBlocked:
		st.Blocked++
	case model.OutcomeInvariantViolation:
		st.InvariantViolations++
	}
}

func (b *summaryBuilder) finish() SessionSummary {
	b.mu.Lock()
	defer b.mu.Unlock()

	blocked, violations := 0, 0
	for _, st := range b.tools {
		blocked += st.Blocked
		violations += st.InvariantViolations
	}
	for _, st := range b.proto {
		blocked += st.Blocked
		violations += st.InvariantViolations
	}

	return SessionSummary{
		ToolStats:          b.tools,
		ProtocolStats:      b.proto,
		BlockedCount:       blocked,
		InvariantViolations: violations,
		Duration:           time.Since(b.start),
	}
}
