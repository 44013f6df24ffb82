// Package parser separates model reasoning from the answer text.
package parser

import "strings"

// thinkingTags are the open/close pairs reasoning models wrap their
// scratch work in.
var thinkingTags = map[string]string{
	"<thinking>": "</thinking>",
	"<think>":    "</think>",
}

// ThinkingParser splits content into thinking and message text. It keeps
// state across Parse calls so a tag may span chunks.
type ThinkingParser struct {
	thinking  strings.Builder
	message   strings.Builder
	tagBuffer strings.Builder // text between '<' and '>' not yet classified
	closing   string          // close tag of the open thinking block
	inTag     bool
}

// NewThinkingParser creates a new thinking parser.
func NewThinkingParser() *ThinkingParser {
	return &ThinkingParser{}
}

// Parse consumes a chunk of content.
func (p *ThinkingParser) Parse(content string) {
	for _, ch := range content {
		switch {
		case ch == '<':
			if p.inTag {
				// the previous '<' was not a tag
				p.emit(p.tagBuffer.String())
			}
			p.inTag = true
			p.tagBuffer.Reset()
			p.tagBuffer.WriteRune(ch)

		case ch == '>' && p.inTag:
			p.tagBuffer.WriteRune(ch)
			tag := p.tagBuffer.String()
			p.tagBuffer.Reset()
			p.inTag = false
			p.handleTag(tag)

		case p.inTag:
			p.tagBuffer.WriteRune(ch)

		default:
			p.emit(string(ch))
		}
	}
}

func (p *ThinkingParser) handleTag(tag string) {
	lower := strings.ToLower(tag)
	if p.closing == "" {
		if closing, ok := thinkingTags[lower]; ok {
			p.closing = closing
			return
		}
	} else if lower == p.closing {
		p.closing = ""
		return
	}
	p.emit(tag)
}

func (p *ThinkingParser) emit(text string) {
	if p.closing != "" {
		p.thinking.WriteString(text)
		return
	}
	p.message.WriteString(text)
}

// IsInThinking returns true if currently parsing thinking content.
func (p *ThinkingParser) IsInThinking() bool {
	return p.closing != ""
}

// Flush emits any partial tag and returns the accumulated text.
func (p *ThinkingParser) Flush() (thinking, message string) {
	if p.inTag {
		p.emit(p.tagBuffer.String())
		p.tagBuffer.Reset()
		p.inTag = false
	}
	return p.thinking.String(), p.message.String()
}

// Reset clears the parser for a new response.
func (p *ThinkingParser) Reset() {
	p.thinking.Reset()
	p.message.Reset()
	p.tagBuffer.Reset()
	p.closing = ""
	p.inTag = false
}

// StripThinking returns content with every thinking block removed and the
// remainder trimmed.
func StripThinking(content string) string {
	p := NewThinkingParser()
	p.Parse(content)
	_, message := p.Flush()
	return strings.TrimSpace(message)
}
