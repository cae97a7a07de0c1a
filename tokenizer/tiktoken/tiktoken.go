// Package tiktoken provides a BPE deepresearch.Tokenizer backed by
// pkoukk/tiktoken-go. Encoding files are fetched and cached on first use
// (TIKTOKEN_CACHE_DIR controls the cache location).
package tiktoken

import (
	"fmt"
	"strings"

	tk "github.com/pkoukk/tiktoken-go"

	"github.com/nevindra/deepresearch"
)

// FallbackEncoding is used for models tiktoken-go does not know.
const FallbackEncoding = "cl100k_base"

// Tokenizer counts and truncates text with a BPE encoding.
type Tokenizer struct {
	enc *tk.Tiktoken
}

// ForModel returns the encoding registered for model, or cl100k_base when
// the model is unknown.
func ForModel(model string) (*Tokenizer, error) {
	enc, err := tk.EncodingForModel(model)
	if err != nil {
		enc, err = tk.GetEncoding(FallbackEncoding)
		if err != nil {
			return nil, fmt.Errorf("tiktoken: load %s: %w", FallbackEncoding, err)
		}
	}
	return &Tokenizer{enc: enc}, nil
}

// ForEncoding loads a named encoding such as "cl100k_base" or "o200k_base".
func ForEncoding(name string) (*Tokenizer, error) {
	enc, err := tk.GetEncoding(name)
	if err != nil {
		return nil, fmt.Errorf("tiktoken: load %s: %w", name, err)
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate decodes the first maxTokens tokens. A rune split at the cut is
// dropped.
func (t *Tokenizer) Truncate(text string, maxTokens int) string {
	if maxTokens <= 0 {
		return ""
	}
	toks := t.enc.Encode(text, nil, nil)
	if len(toks) <= maxTokens {
		return text
	}
	return strings.ToValidUTF8(t.enc.Decode(toks[:maxTokens]), "")
}

var _ deepresearch.Tokenizer = (*Tokenizer)(nil)
