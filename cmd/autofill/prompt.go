package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/autofill/pkg/types"
)

const (
	keyEnter = "enter"
	keyTab   = "tab"
	keyEsc   = "esc"
	keyCtrlC = "ctrl+c"
)

var (
	promptTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB3BA")).Bold(true)
	promptHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	promptOptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A8E6CF"))
)

// promptModel asks for the value of one field.
type promptModel struct {
	field      types.FieldDescriptor
	suggestion string
	input      textinput.Model

	answer  string
	skipped bool
	done    bool
}

func newPromptModel(field types.FieldDescriptor, suggestion string) promptModel {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 500
	ti.Width = 60
	if suggestion != "" {
		ti.Placeholder = suggestion
	}
	ti.Focus()
	return promptModel{field: field, suggestion: suggestion, input: ti}
}

func (m promptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m promptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case keyEnter:
			m.answer = m.resolve(strings.TrimSpace(m.input.Value()))
			m.skipped = m.answer == ""
			m.done = true
			return m, tea.Quit
		case keyTab:
			if m.suggestion != "" && m.input.Value() == "" {
				m.input.SetValue(m.suggestion)
				m.input.CursorEnd()
			}
			return m, nil
		case keyEsc, keyCtrlC:
			m.skipped = true
			m.done = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// resolve turns an option number into the option's label.
func (m promptModel) resolve(answer string) string {
	if len(m.field.Options) == 0 {
		return answer
	}
	n, err := strconv.Atoi(answer)
	if err != nil || n < 1 || n > len(m.field.Options) {
		return answer
	}
	return m.field.Options[n-1].Label
}

func (m promptModel) View() string {
	if m.done {
		return ""
	}
	var b strings.Builder
	label := m.field.RawLabel
	if label == "" {
		label = m.field.Label
	}
	b.WriteString(promptTitleStyle.Render("? "+label) + promptHintStyle.Render(" ("+string(m.field.Kind)+")"))
	b.WriteString("\n")
	for i, o := range m.field.Options {
		b.WriteString(promptOptStyle.Render(fmt.Sprintf("  %d. %s", i+1, o.Label)))
		b.WriteString("\n")
	}
	b.WriteString(m.input.View())
	b.WriteString("\n")

	hint := "enter: fill • esc: leave for later"
	if m.suggestion != "" {
		hint = "tab: use suggestion • " + hint
	}
	b.WriteString(promptHintStyle.Render(hint))
	b.WriteString("\n")
	return b.String()
}

// Prompt asks for one field's value on out, reading keys from in. It
// reports false when the operator left the field for later.
func Prompt(ctx context.Context, in io.Reader, out io.Writer, field types.FieldDescriptor, suggestion string) (string, bool, error) {
	p := tea.NewProgram(newPromptModel(field, suggestion),
		tea.WithContext(ctx),
		tea.WithInput(in),
		tea.WithOutput(out),
	)
	final, err := p.Run()
	if err != nil {
		return "", false, err
	}
	m, ok := final.(promptModel)
	if !ok || m.skipped {
		return "", false, nil
	}
	return m.answer, true, nil
}

// askFunc is Prompt, replaced in tests.
type askFunc func(ctx context.Context, field types.FieldDescriptor, suggestion string) (string, bool, error)

// prompter turns confirmation_request events into prompts, one at a time,
// and sends the answers back through respond.
type prompter struct {
	ask     askFunc
	respond func(*types.ConfirmationResponse) bool

	requests chan *types.FillEvent

	mu      sync.Mutex
	active  string
	abort   context.CancelFunc
	expired map[string]bool
}

func newPrompter(ask askFunc) *prompter {
	return &prompter{
		ask:      ask,
		respond:  func(*types.ConfirmationResponse) bool { return false },
		requests: make(chan *types.FillEvent, 16),
		expired:  make(map[string]bool),
	}
}

func terminalAsk(in io.Reader, out io.Writer) askFunc {
	return func(ctx context.Context, field types.FieldDescriptor, suggestion string) (string, bool, error) {
		return Prompt(ctx, in, out, field, suggestion)
	}
}

// Event has the types.EventEmitter shape. It never blocks.
func (p *prompter) Event(e *types.FillEvent) {
	switch e.Type {
	case types.EventTypeConfirmationRequest:
		select {
		case p.requests <- e:
		default:
		}
	case types.EventTypeConfirmationTimeout:
		p.mu.Lock()
		p.expired[e.ConfirmationID] = true
		if p.active == e.ConfirmationID && p.abort != nil {
			p.abort()
		}
		p.mu.Unlock()
	}
}

// Run serves prompts until ctx is done.
func (p *prompter) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-p.requests:
			p.serve(ctx, e)
		}
	}
}

func (p *prompter) serve(ctx context.Context, e *types.FillEvent) {
	if e.Field == nil {
		return
	}
	askCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	p.mu.Lock()
	if p.expired[e.ConfirmationID] {
		p.mu.Unlock()
		return
	}
	p.active = e.ConfirmationID
	p.abort = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.active = ""
		p.abort = nil
		p.mu.Unlock()
	}()

	answer, ok, err := p.ask(askCtx, *e.Field, e.Suggestion)
	if askCtx.Err() != nil || errors.Is(err, tea.ErrProgramKilled) {
		return
	}
	if err != nil || !ok {
		p.respond(types.NewSkipResponse(e.ConfirmationID))
		return
	}
	p.respond(types.NewConfirmationResponse(e.ConfirmationID, answer))
}
