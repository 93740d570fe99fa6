package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("github.com/mark3labs/forgeloop")

// BuildMetrics collects counters for builds and their iterations. A nil
// *BuildMetrics records nothing.
type BuildMetrics struct {
	buildsStarted  metric.Int64Counter
	buildsFinished metric.Int64Counter
	iterations     metric.Int64Counter
	stepFailures   metric.Int64Counter
	score          metric.Float64Histogram
	duration       metric.Float64Histogram
	active         metric.Int64UpDownCounter
}

// NewBuildMetrics creates the instruments on the global meter provider.
func NewBuildMetrics() (*BuildMetrics, error) {
	buildsStarted, err := meter.Int64Counter(
		"forgeloop.builds.started",
		metric.WithDescription("Total number of builds started"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	buildsFinished, err := meter.Int64Counter(
		"forgeloop.builds.finished",
		metric.WithDescription("Total number of builds finished, by outcome"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	iterations, err := meter.Int64Counter(
		"forgeloop.iterations",
		metric.WithDescription("Total number of reviewed iterations"),
		metric.WithUnit("{iteration}"),
	)
	if err != nil {
		return nil, err
	}

	stepFailures, err := meter.Int64Counter(
		"forgeloop.step.failures",
		metric.WithDescription("External step failures, by step"),
		metric.WithUnit("{failure}"),
	)
	if err != nil {
		return nil, err
	}

	score, err := meter.Float64Histogram(
		"forgeloop.review.score",
		metric.WithDescription("Review scores"),
	)
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram(
		"forgeloop.build.duration",
		metric.WithDescription("Duration of builds in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	active, err := meter.Int64UpDownCounter(
		"forgeloop.builds.active",
		metric.WithDescription("Number of builds currently running"),
		metric.WithUnit("{build}"),
	)
	if err != nil {
		return nil, err
	}

	return &BuildMetrics{
		buildsStarted:  buildsStarted,
		buildsFinished: buildsFinished,
		iterations:     iterations,
		stepFailures:   stepFailures,
		score:          score,
		duration:       duration,
		active:         active,
	}, nil
}

// RecordBuildStarted records a build entering the loop.
func (m *BuildMetrics) RecordBuildStarted(ctx context.Context) {
	if m == nil {
		return
	}
	m.buildsStarted.Add(ctx, 1)
	m.active.Add(ctx, 1)
}

// RecordIteration records one review.
func (m *BuildMetrics) RecordIteration(ctx context.Context, score float64, meetsGoal bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.Bool("meets_goal", meetsGoal))
	m.iterations.Add(ctx, 1, attrs)
	m.score.Record(ctx, score, attrs)
}

// RecordStepFailure records a failed external step.
func (m *BuildMetrics) RecordStepFailure(ctx context.Context, step string) {
	if m == nil {
		return
	}
	m.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("step", step)))
}

// RecordBuildFinished records the outcome of a build.
func (m *BuildMetrics) RecordBuildFinished(ctx context.Context, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.buildsFinished.Add(ctx, 1, attrs)
	m.duration.Record(ctx, d.Seconds(), attrs)
	m.active.Add(ctx, -1)
}
