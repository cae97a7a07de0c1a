package observer

import "go.opentelemetry.io/otel/attribute"

// Attribute keys for LLM observability spans and metrics.
var (
	AttrLLMModel    = attribute.Key("llm.model")
	AttrLLMProvider = attribute.Key("llm.provider")
	AttrLLMMethod   = attribute.Key("llm.method")

	AttrTokensInput  = attribute.Key("llm.tokens.input")
	AttrTokensOutput = attribute.Key("llm.tokens.output")
	AttrCostUSD      = attribute.Key("llm.cost_usd")
	AttrMessageCount = attribute.Key("llm.message_count")
	AttrReasoning    = attribute.Key("llm.has_reasoning")

	AttrToolName         = attribute.Key("tool.name")
	AttrToolStatus       = attribute.Key("tool.status")
	AttrToolResultLength = attribute.Key("tool.result_length")

	AttrRunID          = attribute.Key("research.run_id")
	AttrRunStatus      = attribute.Key("research.status")
	AttrRunTermination = attribute.Key("research.termination")
	AttrRunLLMCalls    = attribute.Key("research.llm_calls")
	AttrRunEvidence    = attribute.Key("research.evidence")
)
