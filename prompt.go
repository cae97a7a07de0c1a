package deepresearch

import (
	"encoding/json"
	"strings"
)

const systemPromptHead = `You are a deep research assistant. Your core function is to conduct thorough, multi-source investigations into any topic. You must handle both broad, open-domain inquiries and queries within specialized academic fields. For every request, synthesize information from credible, diverse sources to deliver a comprehensive, accurate, and objective response. When you have gathered sufficient information and are ready to provide the definitive response, you must enclose the entire final answer within <answer></answer> tags.

# Tools

You may call one or more functions to assist with the user query.

You are provided with function signatures within <tools></tools> XML tags:
<tools>
`

const systemPromptTail = `</tools>

For each function call, return a json object with function name and arguments within <tool_call></tool_call> XML tags:
<tool_call>
{"name": <function-name>, "arguments": <args-json-object>}
</tool_call>

Current date: `

// DefaultSystemPrompt renders the stock research prompt listing defs. The
// prompt ends with "Current date: " so the run initializer can append today.
func DefaultSystemPrompt(defs []ToolDefinition) string {
	var b strings.Builder
	b.WriteString(systemPromptHead)
	for _, d := range defs {
		line, err := json.Marshal(map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        d.Name,
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
		if err != nil {
			continue
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	b.WriteString(systemPromptTail)
	return b.String()
}
