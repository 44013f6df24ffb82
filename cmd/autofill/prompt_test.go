package main

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var countryField = types.FieldDescriptor{
	Label:    "country",
	RawLabel: "Country",
	Kind:     types.KindDropdown,
	Options:  []types.Option{{Label: "India"}, {Label: "Nepal"}},
}

func press(m tea.Model, keys ...tea.KeyMsg) promptModel {
	for _, k := range keys {
		m, _ = m.Update(k)
	}
	return m.(promptModel)
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPromptModelTypedAnswer(t *testing.T) {
	m := press(newPromptModel(types.FieldDescriptor{Label: "favorite pet", RawLabel: "Favorite Pet"}, ""),
		runes("cat"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.done)
	assert.False(t, m.skipped)
	assert.Equal(t, "cat", m.answer)
	assert.Empty(t, m.View())
}

func TestPromptModelOptionNumber(t *testing.T) {
	m := press(newPromptModel(countryField, ""), runes("2"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "Nepal", m.answer)

	m = press(newPromptModel(countryField, ""), runes("7"), tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "7", m.answer)
}

func TestPromptModelSuggestion(t *testing.T) {
	m := newPromptModel(countryField, "India")
	assert.Contains(t, m.View(), "tab: use suggestion")
	assert.Contains(t, m.View(), "2. Nepal")

	m = press(m, tea.KeyMsg{Type: tea.KeyTab}, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, "India", m.answer)
}

func TestPromptModelSkip(t *testing.T) {
	m := press(newPromptModel(countryField, "India"), tea.KeyMsg{Type: tea.KeyEsc})
	assert.True(t, m.skipped)
	assert.Empty(t, m.answer)

	m = press(newPromptModel(countryField, ""), tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.skipped)
}

type responses struct {
	mu  sync.Mutex
	got []*types.ConfirmationResponse
}

func (r *responses) respond(resp *types.ConfirmationResponse) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, resp)
	return true
}

func (r *responses) list() []*types.ConfirmationResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*types.ConfirmationResponse(nil), r.got...)
}

func runPrompter(t *testing.T, p *prompter) func() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.Run(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestPrompterAnswersAndSkips(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	p := newPrompter(func(_ context.Context, f types.FieldDescriptor, suggestion string) (string, bool, error) {
		if f.Label == "country" {
			return suggestion, true, nil
		}
		return "", false, nil
	})
	var r responses
	p.respond = r.respond
	stop := runPrompter(t, p)
	defer stop()

	p.Event(types.NewConfirmationRequestEvent("s", "c1", 0, countryField, "India"))
	p.Event(types.NewConfirmationRequestEvent("s", "c2", 0, types.FieldDescriptor{Label: "favorite pet"}, ""))

	require.Eventually(t, func() bool { return len(r.list()) == 2 }, time.Second, 5*time.Millisecond)
	got := r.list()
	assert.Equal(t, "c1", got[0].ConfirmationID)
	assert.Equal(t, "India", got[0].Value)
	assert.True(t, got[1].Skip)
}

func TestPrompterDropsExpiredRequests(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	asked := make(chan string, 2)
	p := newPrompter(func(_ context.Context, f types.FieldDescriptor, _ string) (string, bool, error) {
		asked <- f.Label
		return "x", true, nil
	})
	var r responses
	p.respond = r.respond

	p.Event(types.NewConfirmationRequestEvent("s", "old", 0, types.FieldDescriptor{Label: "old"}, ""))
	p.Event(types.NewConfirmationTimeoutEvent("s", "old", types.FieldDescriptor{Label: "old"}))
	p.Event(types.NewConfirmationRequestEvent("s", "new", 0, types.FieldDescriptor{Label: "new"}, ""))

	stop := runPrompter(t, p)
	defer stop()

	assert.Equal(t, "new", <-asked)
	require.Eventually(t, func() bool { return len(r.list()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "new", r.list()[0].ConfirmationID)
}

func TestPrompterTimeoutClosesActivePrompt(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	started := make(chan struct{})
	p := newPrompter(func(ctx context.Context, _ types.FieldDescriptor, _ string) (string, bool, error) {
		close(started)
		<-ctx.Done()
		return "", false, ctx.Err()
	})
	var r responses
	p.respond = r.respond
	stop := runPrompter(t, p)

	field := types.FieldDescriptor{Label: "favorite pet"}
	p.Event(types.NewConfirmationRequestEvent("s", "c1", 0, field, ""))
	<-started
	p.Event(types.NewConfirmationTimeoutEvent("s", "c1", field))

	require.Eventually(t, func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.active == ""
	}, time.Second, 5*time.Millisecond)
	stop()
	assert.Empty(t, r.list())
}
