package suggest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/entrhq/autofill/pkg/llm"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	reply  string
	err    error
	prompt llm.Prompt
	calls  int
}

func (f *fakeProvider) Complete(_ context.Context, p llm.Prompt) (string, error) {
	f.calls++
	f.prompt = p
	return f.reply, f.err
}

func (f *fakeProvider) GetModel() string   { return "fake" }
func (f *fakeProvider) GetBaseURL() string { return "" }

func sampleProfile() *profile.Profile {
	return profile.FromEntries(
		profile.Entry{Key: "full_name", Group: "personal_info", Value: "Aakriti Sharma"},
		profile.Entry{Key: "college", Group: "education", Value: "COEP"},
	)
}

var deferred = []types.FieldDescriptor{
	{Label: "student name", RawLabel: "Student Name *", Kind: types.KindShortText},
	{Label: "favorite pet", RawLabel: "Favorite Pet", Kind: types.KindShortText},
	{Label: "institute", RawLabel: "Institute", Kind: types.KindDropdown, Options: []types.Option{{Label: "COEP"}, {Label: "VIT"}}},
}

func TestSuggest(t *testing.T) {
	fp := &fakeProvider{reply: "Q1: Aakriti Sharma\nQ2: DATA_NOT_AVAILABLE\nQ3: COEP"}
	s := New(fp)

	got, err := s.Suggest(context.Background(), sampleProfile(), deferred)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"student name": "Aakriti Sharma",
		"institute":    "COEP",
	}, got)

	assert.Equal(t, 1, fp.calls)
	assert.Contains(t, fp.prompt.User, "personal_info.full_name: Aakriti Sharma")
	assert.Contains(t, fp.prompt.User, "Q1. Student Name\n")
	assert.Contains(t, fp.prompt.User, "Q3. Institute (options: COEP, VIT)")
	assert.Contains(t, fp.prompt.System, NoData)
}

func TestSuggestNoFields(t *testing.T) {
	fp := &fakeProvider{}
	got, err := New(fp).Suggest(context.Background(), sampleProfile(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Zero(t, fp.calls)
}

func TestSuggestProviderError(t *testing.T) {
	boom := errors.New("boom")
	_, err := New(&fakeProvider{err: boom}).Suggest(context.Background(), sampleProfile(), deferred)
	assert.True(t, errors.Is(err, boom))
}

func TestSuggestBudget(t *testing.T) {
	entries := make([]profile.Entry, 0, 200)
	for i := 0; i < 200; i++ {
		entries = append(entries, profile.Entry{Key: "key_" + strings.Repeat("x", i%7) + string(rune('a'+i%26)) + string(rune('a'+i/26)), Value: strings.Repeat("v", 40)})
	}
	big := profile.FromEntries(entries...)

	fp := &fakeProvider{reply: "Q1: x"}
	_, err := New(fp, WithMaxPromptTokens(600)).Suggest(context.Background(), big, deferred)
	require.NoError(t, err)
	assert.Less(t, len(fp.prompt.User), len(ProfileContext(big)))

	_, err = New(fp, WithMaxPromptTokens(50)).Suggest(context.Background(), big, deferred)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want map[string]string
	}{
		{"plain", "Q1: Aakriti Sharma", map[string]string{"student name": "Aakriti Sharma"}},
		{"bold and brackets", "**Q1:** [Aakriti Sharma]", map[string]string{"student name": "Aakriti Sharma"}},
		{"no data lower case", "Q2: data_not_available", map[string]string{}},
		{"out of range", "Q9: nope", map[string]string{}},
		{"first answer wins", "Q3: COEP\nQ3: VIT", map[string]string{"institute": "COEP"}},
		{"chatter ignored", "Sure! Here you go:\nQ2. cat", map[string]string{"favorite pet": "cat"}},
		{"empty answer", "Q1:", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.text, deferred))
		})
	}
}
