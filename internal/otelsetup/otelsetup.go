// Licensed to Andrew Kroh under one or more agreements.
// Andrew Kroh licenses this file to you under the Apache 2.0 License.
// See the LICENSE file in the project root for more information.

// Package otelsetup provides OpenTelemetry bootstrap helpers.
package otelsetup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/contrib/exporters/autoexport"
	"go.opentelemetry.io/contrib/instrumentation/host"
	"go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Setup initializes OpenTelemetry tracing and metrics. Exporters are chosen
// by the standard OTEL_TRACES_EXPORTER and OTEL_METRICS_EXPORTER variables
// ("otlp" by default, "console", "prometheus", or "none"). Runtime and host
// metrics are started when metrics are enabled.
// It returns a shutdown function that should be deferred by the caller.
func Setup(ctx context.Context, serviceName, serviceVersion string) (shutdown func(context.Context) error, err error) {
	var shutdownFuncs []func(context.Context) error

	shutdown = func(ctx context.Context) error {
		var errs []error
		for _, fn := range shutdownFuncs {
			if fnErr := fn(ctx); fnErr != nil {
				errs = append(errs, fnErr)
			}
		}
		return errors.Join(errs...)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return shutdown, err
	}

	// W3C TraceContext + Baggage.
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	spanExporter, err := autoexport.NewSpanExporter(ctx)
	if err != nil {
		return shutdown, fmt.Errorf("creating span exporter: %w", err)
	}
	if !autoexport.IsNoneSpanExporter(spanExporter) {
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(spanExporter),
			sdktrace.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
		otel.SetTracerProvider(tracerProvider)
	}

	metricReader, err := autoexport.NewMetricReader(ctx)
	if err != nil {
		return shutdown, fmt.Errorf("creating metric reader: %w", err)
	}
	if !autoexport.IsNoneMetricReader(metricReader) {
		meterProvider := metric.NewMeterProvider(
			metric.WithReader(metricReader),
			metric.WithResource(res),
		)
		shutdownFuncs = append(shutdownFuncs, meterProvider.Shutdown)
		otel.SetMeterProvider(meterProvider)

		if err := runtime.Start(runtime.WithMeterProvider(meterProvider)); err != nil {
			return shutdown, fmt.Errorf("starting runtime metrics: %w", err)
		}
		if err := host.Start(host.WithMeterProvider(meterProvider)); err != nil {
			return shutdown, fmt.Errorf("starting host metrics: %w", err)
		}
	}

	return shutdown, nil
}

// NewLogger creates a new slog.Logger with JSON output and trace context integration.
func NewLogger(w io.Writer) *slog.Logger {
	return NewLoggerLevel(w, slog.LevelInfo)
}

// NewLoggerLevel is like NewLogger but discards records below level.
func NewLoggerLevel(w io.Writer, level slog.Leveler) *slog.Logger {
	jsonHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(NewTraceHandler(jsonHandler))
}
