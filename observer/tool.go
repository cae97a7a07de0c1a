package observer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nevindra/deepresearch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ObservedTool wraps a deepresearch.Tool with OTEL instrumentation.
type ObservedTool struct {
	inner deepresearch.Tool
	inst  *Instruments
}

// WrapTool returns an instrumented tool.
func WrapTool(inner deepresearch.Tool, inst *Instruments) *ObservedTool {
	return &ObservedTool{inner: inner, inst: inst}
}

func (o *ObservedTool) Definitions() []deepresearch.ToolDefinition {
	return o.inner.Definitions()
}

// Execute runs the wrapped tool. A panic is recorded on the span and then
// re-raised so the registry still turns it into observation text.
func (o *ObservedTool) Execute(ctx context.Context, name string, args json.RawMessage) (result deepresearch.ToolResult, err error) {
	ctx, span := o.inst.Tracer.Start(ctx, "tool.execute", trace.WithAttributes(
		AttrToolName.String(name),
	))
	start := time.Now()
	status := "ok"

	defer func() {
		if p := recover(); p != nil {
			status = "panic"
			span.SetStatus(codes.Error, "panic")
			o.finish(ctx, span, name, status, start, result)
			panic(p)
		}
		o.finish(ctx, span, name, status, start, result)
	}()

	result, err = o.inner.Execute(ctx, name, args)
	if result.Error != "" {
		status = "tool_error"
	}
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return result, err
}

func (o *ObservedTool) finish(ctx context.Context, span trace.Span, name, status string, start time.Time, result deepresearch.ToolResult) {
	defer span.End()
	durationMs := float64(time.Since(start).Milliseconds())

	span.SetAttributes(
		AttrToolStatus.String(status),
		AttrToolResultLength.Int(len(result.Content)),
	)

	o.inst.ToolExecutions.Add(ctx, 1, metric.WithAttributes(
		AttrToolName.String(name),
		attribute.String("status", status),
	))
	o.inst.ToolDuration.Record(ctx, durationMs, metric.WithAttributes(
		AttrToolName.String(name),
	))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("tool executed"))
	rec.AddAttributes(
		otellog.String("tool.name", name),
		otellog.String("tool.status", status),
		otellog.Int("tool.result_length", len(result.Content)),
		otellog.Float64("tool.duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)
}

var _ deepresearch.Tool = (*ObservedTool)(nil)
