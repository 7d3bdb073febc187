// Package internal contains the telemetry shared by every component.
package internal

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/FerroO2000/shmring"

// Telemetry groups the logger, the tracer and the meter of a component.
type Telemetry struct {
	scope string
	name  string

	logger *slog.Logger
	tracer trace.Tracer
	meter  metric.Meter
}

// NewTelemetry returns the telemetry for the component with the given name
// inside the given scope (e.g. "role", "writer").
func NewTelemetry(scope, name string) *Telemetry {
	return &Telemetry{
		scope: scope,
		name:  name,

		logger: slog.New(currentHandler()).With("scope", scope, "name", name),
		tracer: otel.Tracer(instrumentationName + "/" + scope),
		meter:  otel.Meter(instrumentationName + "/" + scope),
	}
}

// LogDebug logs a debug message.
func (t *Telemetry) LogDebug(msg string, args ...any) {
	t.logger.Debug(msg, args...)
}

// LogInfo logs an info message.
func (t *Telemetry) LogInfo(msg string, args ...any) {
	t.logger.Info(msg, args...)
}

// LogWarn logs a warning message.
func (t *Telemetry) LogWarn(msg string, args ...any) {
	t.logger.Warn(msg, args...)
}

// LogError logs an error message along with the error that caused it.
func (t *Telemetry) LogError(msg string, err error, args ...any) {
	t.logger.Error(msg, append([]any{"error", err}, args...)...)
}

// NewTrace starts a new span.
func (t *Telemetry) NewTrace(ctx context.Context, spanName string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, spanName,
		trace.WithAttributes(attribute.String("component", t.name)))
}

// NewCounter registers an observable counter whose value is read from fn
// every time the metrics are collected.
func (t *Telemetry) NewCounter(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableCounter(t.metricName(name),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(fn())
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create counter", err, "counter", name)
	}
}

// NewGauge registers an observable gauge whose value is read from fn
// every time the metrics are collected.
func (t *Telemetry) NewGauge(name string, fn func() int64) {
	_, err := t.meter.Int64ObservableGauge(t.metricName(name),
		metric.WithInt64Callback(func(_ context.Context, obs metric.Int64Observer) error {
			obs.Observe(fn())
			return nil
		}),
	)

	if err != nil {
		t.LogError("failed to create gauge", err, "gauge", name)
	}
}

func (t *Telemetry) metricName(name string) string {
	return t.scope + "." + t.name + "." + name
}
