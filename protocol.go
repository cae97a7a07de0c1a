package deepresearch

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// In-band markers of the model protocol.
const (
	ToolCallStart     = "<tool_call>"
	ToolCallEnd       = "</tool_call>"
	AnswerStart       = "<answer>"
	AnswerEnd         = "</answer>"
	ToolResponseStart = "<tool_response>"
	ToolResponseEnd   = "</tool_response>"
	ThinkStart        = "<think>"
	ThinkEnd          = "</think>"
	EvidenceStart     = "<evidence_json>"
	EvidenceEnd       = "</evidence_json>"
)

// StripToolResponse drops everything from the first <tool_response> marker
// on. Models sometimes hallucinate an observation after their tool call.
func StripToolResponse(content string) string {
	if i := strings.Index(content, ToolResponseStart); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(content)
}

// between returns the text between the first start marker and the next end
// marker after it.
func between(s, start, end string) (string, bool) {
	i := strings.Index(s, start)
	if i < 0 {
		return "", false
	}
	rest := s[i+len(start):]
	j := strings.Index(rest, end)
	if j < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:j]), true
}

// ParseToolCall extracts the first <tool_call> block. The block must hold a
// JSON object with a string "name"; "arguments", when present, must be an
// object. Anything else yields nil.
func ParseToolCall(content string) *ToolCall {
	block, ok := between(content, ToolCallStart, ToolCallEnd)
	if !ok || block == "" {
		return nil
	}
	obj := gjson.Parse(block)
	if !obj.IsObject() {
		return nil
	}
	name := obj.Get("name")
	if name.Type != gjson.String {
		return nil
	}
	args := map[string]any{}
	if a := obj.Get("arguments"); a.Exists() {
		if !a.IsObject() {
			return nil
		}
		m, ok := a.Value().(map[string]any)
		if !ok {
			return nil
		}
		args = m
	}
	return &ToolCall{Name: name.String(), Arguments: args}
}

// ExtractAnswer returns the text of the first <answer> block. An empty or
// unterminated block is not an answer.
func ExtractAnswer(content string) (string, bool) {
	ans, ok := between(content, AnswerStart, AnswerEnd)
	if !ok || ans == "" {
		return "", false
	}
	return ans, true
}

// ExtractEvidence scans a tool observation for evidence blocks. A block is
// kept only when it is a JSON object carrying rational, evidence and summary.
// Bad blocks are skipped; an unterminated block ends the scan.
func ExtractEvidence(observation string) []EvidenceRecord {
	var out []EvidenceRecord
	rest := observation
	for {
		i := strings.Index(rest, EvidenceStart)
		if i < 0 {
			return out
		}
		rest = rest[i+len(EvidenceStart):]
		j := strings.Index(rest, EvidenceEnd)
		if j < 0 {
			return out
		}
		segment := strings.TrimSpace(rest[:j])
		rest = rest[j+len(EvidenceEnd):]
		if rec, ok := parseEvidence(segment); ok {
			out = append(out, rec)
		}
	}
}

func parseEvidence(segment string) (EvidenceRecord, bool) {
	if segment == "" {
		return EvidenceRecord{}, false
	}
	obj := gjson.Parse(segment)
	if !obj.IsObject() {
		return EvidenceRecord{}, false
	}
	fields := obj.Map()
	for _, k := range []string{"rational", "evidence", "summary"} {
		if _, ok := fields[k]; !ok {
			return EvidenceRecord{}, false
		}
	}
	return EvidenceRecord{
		Rational: fields["rational"].String(),
		Evidence: fields["evidence"].String(),
		Summary:  fields["summary"].String(),
		URL:      strings.TrimSpace(fields["url"].String()),
	}, true
}

// FormatEvidenceBlock renders rec between the evidence delimiters. The JSON
// encoder escapes '<' and '>', so the payload can never contain a delimiter.
func FormatEvidenceBlock(rec EvidenceRecord) string {
	rec.URL = strings.TrimSpace(rec.URL)
	b, err := json.Marshal(rec)
	if err != nil {
		return ""
	}
	return EvidenceStart + string(b) + EvidenceEnd
}

// WrapToolResponse wraps tool output as the observation turn the model sees.
func WrapToolResponse(text string) string {
	return ToolResponseStart + "\n" + text + "\n" + ToolResponseEnd
}

// WithReasoning prefixes content with the model's reasoning in think tags.
func WithReasoning(reasoning, content string) string {
	reasoning = strings.TrimSpace(reasoning)
	if reasoning == "" {
		return strings.TrimSpace(content)
	}
	return strings.TrimSpace(ThinkStart + "\n" + reasoning + "\n" + ThinkEnd + "\n" + content)
}
