// Package observer provides OTEL-based observability for research runs.
//
// It wraps Provider, Tool and the research Agent with instrumented versions
// that emit traces, metrics, and logs via OpenTelemetry. Users export to any
// OTEL-compatible backend by setting standard OTEL env vars.
package observer

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const scopeName = "github.com/nevindra/deepresearch/observer"

// Instruments holds all OTEL instruments used by the observer wrappers.
type Instruments struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger otellog.Logger

	// Counters
	TokenUsage     metric.Int64Counter
	CostTotal      metric.Float64Counter
	LLMRequests    metric.Int64Counter
	ToolExecutions metric.Int64Counter

	// Histograms
	LLMDuration  metric.Float64Histogram
	ToolDuration metric.Float64Histogram

	// Run-level
	RunExecutions metric.Int64Counter
	RunDuration   metric.Float64Histogram
	RunLLMCalls   metric.Int64Histogram

	Cost *CostCalculator
}

// Init sets up OTEL trace, metric, and log providers with OTLP HTTP exporters.
// Configuration comes from standard OTEL env vars (OTEL_EXPORTER_OTLP_ENDPOINT, etc.).
// Returns a shutdown function that must be called on application exit.
func Init(ctx context.Context, pricing map[string]ModelPricing) (*Instruments, func(context.Context) error, error) {
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName("deepresearch")),
		resource.WithFromEnv(),
	)
	if err != nil {
		return nil, nil, err
	}

	traceExp, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	metricExp, err := otlpmetrichttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, nil, err
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	logExp, err := otlploghttp.New(ctx)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, nil, err
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)

	inst, err := newInstruments(pricing)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, nil, err
	}

	shutdown := func(ctx context.Context) error {
		return errors.Join(
			tp.Shutdown(ctx),
			mp.Shutdown(ctx),
			lp.Shutdown(ctx),
		)
	}

	return inst, shutdown, nil
}

func newInstruments(pricing map[string]ModelPricing) (*Instruments, error) {
	meter := otel.Meter(scopeName)
	inst := &Instruments{
		Tracer: otel.Tracer(scopeName),
		Meter:  meter,
		Logger: global.GetLoggerProvider().Logger(scopeName),
		Cost:   NewCostCalculator(pricing),
	}

	var err error
	counter := func(dst *metric.Int64Counter, name, desc, unit string) {
		if err != nil {
			return
		}
		*dst, err = meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	}
	histogram := func(dst *metric.Float64Histogram, name, desc string) {
		if err != nil {
			return
		}
		*dst, err = meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("ms"))
	}

	counter(&inst.TokenUsage, "llm.token.usage", "Total tokens consumed", "{token}")
	counter(&inst.LLMRequests, "llm.requests", "LLM request count", "{request}")
	counter(&inst.ToolExecutions, "tool.executions", "Tool execution count", "{execution}")
	counter(&inst.RunExecutions, "research.runs", "Research run count", "{run}")
	histogram(&inst.LLMDuration, "llm.duration", "LLM call duration")
	histogram(&inst.ToolDuration, "tool.duration", "Tool execution duration")
	histogram(&inst.RunDuration, "research.duration", "Research run duration")
	if err != nil {
		return nil, err
	}

	inst.CostTotal, err = meter.Float64Counter("llm.cost.total",
		metric.WithDescription("Cumulative LLM cost in USD"),
		metric.WithUnit("USD"))
	if err != nil {
		return nil, err
	}
	inst.RunLLMCalls, err = meter.Int64Histogram("research.llm_calls",
		metric.WithDescription("Model calls spent per run"),
		metric.WithUnit("{call}"))
	if err != nil {
		return nil, err
	}
	return inst, nil
}
