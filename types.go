package deepresearch

import "encoding/json"

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// --- LLM protocol types ---

type ChatRequest struct {
	Messages         []ChatMessage     `json:"messages"`
	GenerationParams *GenerationParams `json:"generation_params,omitempty"`
}

// GenerationParams controls sampling for a single request. Nil pointer fields
// mean "use the provider default".
type GenerationParams struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            *float64 `json:"top_p,omitempty"`
	PresencePenalty *float64 `json:"presence_penalty,omitempty"`
	MaxTokens       *int     `json:"max_tokens,omitempty"`
	Stop            []string `json:"stop,omitempty"`
	Logprobs        bool     `json:"logprobs,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"` // "system", "user", "assistant"
	Content string `json:"content"`
}

// ChatResponse is a provider's reply. Reasoning holds the model's separate
// reasoning channel when the backend returns one.
type ChatResponse struct {
	Content   string `json:"content"`
	Reasoning string `json:"reasoning,omitempty"`
	Usage     Usage  `json:"usage"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ToolCall is a tool request parsed from a <tool_call> block.
type ToolCall struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ArgsJSON returns the arguments encoded as a JSON object.
func (c ToolCall) ArgsJSON() json.RawMessage {
	if len(c.Arguments) == 0 {
		return json.RawMessage(`{}`)
	}
	b, err := json.Marshal(c.Arguments)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// EvidenceRecord is a structured excerpt a retrieval tool embeds in its output.
// The "rational" key spelling is part of the wire format.
type EvidenceRecord struct {
	Rational string `json:"rational"`
	Evidence string `json:"evidence"`
	Summary  string `json:"summary"`
	URL      string `json:"url,omitempty"`
}

// --- Convenience constructors ---

// SystemMessage creates a ChatMessage with role "system".
func SystemMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: text}
}

// UserMessage creates a ChatMessage with role "user".
func UserMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: text}
}

// AssistantMessage creates a ChatMessage with role "assistant".
func AssistantMessage(text string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: text}
}
