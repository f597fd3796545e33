package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
)

func TestSummaryBuilderBucketsByToolAndOutcome(t *testing.T) {
	b := newSummaryBuilder()

	b.record(false, "echo", model.RunRecord{Outcome: model.Outcome{Kind: model.OutcomeSuccess}})
	b.record(false, "echo", model.RunRecord{Outcome: model.Outcome{Kind: model.OutcomeProtocolError}})
	b.record(true, "tools/call", model.RunRecord{Outcome: model.Outcome{Kind: model.OutcomeBlocked}})

	summary := b.finish()

	echo := summary.ToolStats["echo"]
	if assert.NotNil(t, echo) {
		assert.Equal(t, 2, echo.Total)
		assert.Equal(t, 1, echo.Success)
		assert.Equal(t, 1, echo.ProtocolErrors)
	}

	proto := summary.ProtocolStats["tools/call"]
	if assert.NotNil(t, proto) {
		assert.Equal(t, 1, proto.Blocked)
	}

	assert.Equal(t, 1, summary.BlockedCount)
}

func TestNopReporterDiscardsEverything(t *testing.T) {
	var r Reporter = NopReporter{}
	r.Report(model.RunRecord{})
	r.Finish(SessionSummary{Duration: time.Second})
}
