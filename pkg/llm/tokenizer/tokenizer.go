// Package tokenizer counts prompt tokens so suggestion requests stay within
// the configured budget.
package tokenizer

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Encoding is the BPE encoding used for counting.
const Encoding = "cl100k_base"

// Tokenizer counts tokens with tiktoken. A nil *Tokenizer is usable and
// approximates one token per four bytes.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New loads the encoding. Loading may need network access the first time;
// callers fall back to a nil Tokenizer when it fails.
func New() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", Encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	if t == nil || t.enc == nil {
		return (len(text) + 3) / 4
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Truncate returns the leading whole lines of text that fit in max tokens.
func (t *Tokenizer) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if t.CountTokens(text) <= max {
		return text
	}

	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	used := 0
	for _, line := range lines {
		n := t.CountTokens(line)
		if used+n > max {
			break
		}
		used += n
		b.WriteString(line)
	}
	return strings.TrimRight(b.String(), "\n")
}
