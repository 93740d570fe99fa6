package telemetry

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetup_WritesSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var buf bytes.Buffer
	shutdown, err := Setup(&buf)
	require.NoError(t, err)

	_, span := otel.Tracer("test").Start(context.Background(), "forgeloop.iteration")
	span.End()
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), `"Name": "forgeloop.iteration"`)
}

func TestBuildMetrics(t *testing.T) {
	m, err := NewBuildMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordBuildStarted(ctx)
	m.RecordIteration(ctx, 72.5, false)
	m.RecordStepFailure(ctx, "install")
	m.RecordBuildFinished(ctx, "goal_achieved", time.Second)

	var nilMetrics *BuildMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordBuildStarted(ctx)
		nilMetrics.RecordIteration(ctx, 1, true)
		nilMetrics.RecordStepFailure(ctx, "build")
		nilMetrics.RecordBuildFinished(ctx, "stopped", 0)
	})
}
