// Package deepresearch runs a bounded reason+act research loop in Go.
//
// A language model decides, turn by turn, whether to answer a question or to
// call a retrieval tool (web search, scholar search, page visit). Tool output
// is fed back as the next user turn until the model commits to an answer or a
// budget runs out. Three budgets bound every run: LLM calls, wall-clock time,
// and prompt tokens. A hard step ceiling sits on top of them.
//
// # Quick Start
//
//	provider := openaicompat.NewProvider(apiKey, "alibaba/tongyi-deepresearch-30b-a3b",
//		"https://openrouter.ai/api/v1")
//
//	tools := deepresearch.NewToolRegistry()
//	tools.Add(search.New(serperKey))
//	tools.Add(scholar.New(serperKey))
//	tools.Add(visit.New(visit.WithSummarizer(visit.NewProviderSummarizer(summaryLLM))))
//
//	agent := deepresearch.New(deepresearch.WithRetry(provider), tools, deepresearch.DefaultConfig())
//	result, err := agent.Run(ctx, "What is retrieval-augmented generation?")
//
// # Loop
//
// The loop is a fixed three-node state machine: decision, tool and finalize.
// [Route] is the pure transition function. Each node returns a [Delta] that
// [Merge] folds into the running [State] using explicit per-field reducers:
// messages and evidence append, counters sum, everything else is overwritten.
//
// # Model protocol
//
// The model speaks through in-band markers: a JSON tool call inside
// <tool_call></tool_call>, the final answer inside <answer></answer>. Tool
// output comes back wrapped in <tool_response></tool_response> and may embed
// evidence records between <evidence_json></evidence_json> delimiters.
//
// # Included Implementations
//
// Providers: provider/openaicompat (OpenAI-compatible APIs, OpenRouter by default).
// Tools: tools/search, tools/scholar (Serper), tools/visit (page fetch + summarization).
// Tokenizers: tokenizer/tiktoken.
// Run history: store/sqlite, store/postgres.
// Observability: observer (OpenTelemetry).
//
// See cmd/deepresearch for a complete command-line application.
package deepresearch
