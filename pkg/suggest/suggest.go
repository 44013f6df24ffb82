// Package suggest proposes answers for deferred fields by asking a language
// model to read them off the profile. Suggestions are shown to the operator
// with the confirmation request and are never written on their own.
package suggest

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/entrhq/autofill/pkg/llm"
	"github.com/entrhq/autofill/pkg/llm/tokenizer"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/types"
)

// NoData is the answer the model gives when the profile has nothing.
const NoData = "DATA_NOT_AVAILABLE"

// DefaultMaxPromptTokens bounds the prompt when no budget is configured.
const DefaultMaxPromptTokens = 3000

const systemPrompt = `You are a form-filling assistant. You answer form questions using only the user's profile data.
If the profile holds no relevant information for a question, answer exactly ` + NoData + `.
Never guess and never invent data.`

var answerLine = regexp.MustCompile(`^\s*\**Q(\d+)\**\s*[:.)]\**\s*(.*)$`)

// Suggester batches deferred fields into one completion request.
type Suggester struct {
	provider  llm.Provider
	tok       *tokenizer.Tokenizer
	maxTokens int
	logger    *logging.Logger
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithTokenizer sets the token counter. Without one, tokens are estimated.
func WithTokenizer(t *tokenizer.Tokenizer) Option {
	return func(s *Suggester) { s.tok = t }
}

// WithMaxPromptTokens bounds the prompt size. The profile section is cut
// to fit.
func WithMaxPromptTokens(n int) Option {
	return func(s *Suggester) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Suggester) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a Suggester around provider.
func New(provider llm.Provider, opts ...Option) *Suggester {
	s := &Suggester{
		provider:  provider,
		maxTokens: DefaultMaxPromptTokens,
		logger:    logging.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest asks for answers to every field in one request. The result maps
// a field's label to its suggested value; fields the model has no data for
// are absent.
func (s *Suggester) Suggest(ctx context.Context, p *profile.Profile, fields []types.FieldDescriptor) (map[string]string, error) {
	if s == nil || len(fields) == 0 {
		return map[string]string{}, nil
	}

	questions := Questions(fields)
	budget := s.maxTokens - s.tok.CountTokens(systemPrompt) - s.tok.CountTokens(questions) - 200
	if budget <= 0 {
		return nil, fmt.Errorf("suggest: %d questions exceed the prompt budget of %d tokens", len(fields), s.maxTokens)
	}
	data := ProfileContext(p)
	if cut := s.tok.Truncate(data, budget); len(cut) < len(data) {
		s.logger.Warnf("profile context cut to %d tokens for suggestions", budget)
		data = cut
	}

	prompt := fmt.Sprintf(`USER PROFILE DATA:
%s

QUESTIONS:
%s

Answer every question on its own line in this exact format:
Q1: [answer to question 1]
Q2: [answer to question 2]
For a choice question, answer with one of the listed options (several, comma separated, where more than one may apply).`, data, questions)

	text, err := s.provider.Complete(ctx, llm.Prompt{System: systemPrompt, User: prompt})
	if err != nil {
		return nil, fmt.Errorf("suggest: %w", err)
	}

	answers := Parse(text, fields)
	s.logger.Infof("model %s suggested %d of %d answers", s.provider.GetModel(), len(answers), len(fields))
	return answers, nil
}

// Questions renders the numbered question list.
func Questions(fields []types.FieldDescriptor) string {
	var b strings.Builder
	for i, f := range fields {
		q := f.RawLabel
		if q == "" {
			q = f.Label
		}
		fmt.Fprintf(&b, "Q%d. %s", i+1, strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(q), "*")))
		if f.Kind.IsChoice() && len(f.Options) > 0 {
			fmt.Fprintf(&b, " (options: %s)", strings.Join(f.OptionLabels(), ", "))
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}

// ProfileContext renders the profile one "group.key: value" line per entry.
func ProfileContext(p *profile.Profile) string {
	var b strings.Builder
	for _, e := range p.Entries() {
		if e.Group != "" {
			b.WriteString(e.Group)
			b.WriteByte('.')
		}
		fmt.Fprintf(&b, "%s: %s\n", e.Key, e.Value)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Parse reads "Qn: answer" lines. Unnumbered lines, out-of-range numbers
// and NoData answers are ignored; the first answer for a number wins.
func Parse(text string, fields []types.FieldDescriptor) map[string]string {
	answers := make(map[string]string)
	seen := make(map[int]bool)
	for _, line := range strings.Split(text, "\n") {
		m := answerLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(fields) || seen[n] {
			continue
		}
		seen[n] = true

		answer := strings.Trim(strings.TrimSpace(m[2]), `"[]`)
		if answer == "" || strings.Contains(strings.ToUpper(answer), NoData) {
			continue
		}
		answers[fields[n-1].Label] = answer
	}
	return answers
}
