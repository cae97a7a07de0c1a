package observer

import (
	"context"
	"time"

	"github.com/nevindra/deepresearch"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Runner is anything that answers a research question. *deepresearch.Agent
// satisfies it.
type Runner interface {
	Run(ctx context.Context, question string) (deepresearch.Result, error)
}

// ObservedAgent wraps a Runner to emit run lifecycle spans, metrics, and logs.
// The wrapper's span is the parent of every model call and tool execution in
// the run via context propagation.
type ObservedAgent struct {
	inner Runner
	inst  *Instruments
}

// WrapAgent returns an instrumented Runner.
func WrapAgent(inner Runner, inst *Instruments) *ObservedAgent {
	return &ObservedAgent{inner: inner, inst: inst}
}

func (o *ObservedAgent) Run(ctx context.Context, question string) (deepresearch.Result, error) {
	ctx, span := o.inst.Tracer.Start(ctx, "research.run")
	defer span.End()
	start := time.Now()

	span.AddEvent("research.started")

	result, err := o.inner.Run(ctx, question)

	durationMs := float64(time.Since(start).Milliseconds())
	status := "ok"
	switch {
	case ctx.Err() != nil && err != nil:
		status = "cancelled"
		span.AddEvent("research.cancelled")
		span.SetStatus(codes.Error, "cancelled")
	case err != nil:
		status = "error"
		span.AddEvent("research.failed", trace.WithAttributes(
			attribute.String("error", err.Error()),
		))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	default:
		span.AddEvent("research.completed")
	}

	termination := string(result.Termination)
	span.SetAttributes(
		AttrRunID.String(result.RunID),
		AttrRunStatus.String(status),
		AttrRunTermination.String(termination),
		AttrRunLLMCalls.Int(result.LLMCallsUsed),
		AttrRunEvidence.Int(len(result.EvidenceChains)),
		AttrTokensInput.Int(result.Usage.InputTokens),
		AttrTokensOutput.Int(result.Usage.OutputTokens),
	)

	o.inst.RunExecutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status),
		AttrRunTermination.String(termination),
	))
	o.inst.RunDuration.Record(ctx, durationMs)
	o.inst.RunLLMCalls.Record(ctx, int64(result.LLMCallsUsed))

	var rec otellog.Record
	rec.SetSeverity(otellog.SeverityInfo)
	rec.SetBody(otellog.StringValue("research run completed"))
	rec.AddAttributes(
		otellog.String("research.run_id", result.RunID),
		otellog.String("research.status", status),
		otellog.String("research.termination", termination),
		otellog.Int("research.llm_calls", result.LLMCallsUsed),
		otellog.Int("tokens.input", result.Usage.InputTokens),
		otellog.Int("tokens.output", result.Usage.OutputTokens),
		otellog.Float64("duration_ms", durationMs),
	)
	o.inst.Logger.Emit(ctx, rec)

	return result, err
}

var _ Runner = (*ObservedAgent)(nil)
var _ Runner = (*deepresearch.Agent)(nil)
