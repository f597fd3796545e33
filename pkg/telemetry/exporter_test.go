package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewExporterRequiresCollectorURL(t *testing.T) {
	_, err := NewExporter(context.Background(), ExporterConfig{})
	assert.Error(t, err)
}

func TestNewExporterRejectsInvalidURL(t *testing.T) {
	_, err := NewExporter(context.Background(), ExporterConfig{CollectorURL: "://bad"})
	assert.Error(t, err)
}

func TestNewExporterBuildsTracerFedSettings(t *testing.T) {
	exp, err := NewExporter(context.Background(), ExporterConfig{
		CollectorURL: "http://localhost:4318",
		ServiceName:  "mcp-fuzzer-test",
		SessionID:    "session-123",
	})
	require.NoError(t, err)
	require.NotNil(t, exp)
	defer exp.Shutdown(context.Background())

	settings := DefaultSettings().WithEnabled(true).WithTracer(exp.Tracer())
	assert.True(t, settings.IsEnabled)
	assert.NotNil(t, settings.Tracer)
}
