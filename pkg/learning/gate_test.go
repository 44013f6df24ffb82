package learning

import (
	"context"
	"errors"
	"testing"

	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleProfile() *profile.Profile {
	return profile.FromMap(map[string]string{
		"full_name": "Aakriti Sharma",
		"phone":     "9876543210",
		"city":      "Pune",
		"hometown":  "Pune",
	})
}

func TestLearnOperatorAnswer(t *testing.T) {
	ctx := context.Background()
	store := learned.NewMemoryStore()
	g := New(store, sampleProfile())

	m, ok, err := g.Learn(ctx, Outcome{
		Label:     "Favorite Pet",
		Kind:      types.KindShortText,
		Value:     "cat",
		Source:    types.SourceNone,
		Decision:  types.DecisionDefer,
		Confirmed: true,
	})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "favorite pet", m.Label)
	assert.Equal(t, "cat", m.Value)
	assert.Empty(t, m.Key)
	assert.Equal(t, types.ProvenanceConfirmed, m.Provenance)

	got, found := store.Get("favorite pet")
	require.True(t, found)
	assert.Equal(t, "cat", got.Value)
}

func TestLearnStoresProfileKey(t *testing.T) {
	ctx := context.Background()
	store := learned.NewMemoryStore()
	g := New(store, sampleProfile())

	m, ok, err := g.Learn(ctx, Outcome{Label: "Student Name", Kind: types.KindShortText, Value: "aakriti sharma", Source: types.SourceNone, Confirmed: true})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "full_name", m.Key)
	assert.Empty(t, m.Value)

	// a value two keys share is stored literally
	m, _, err = g.Learn(ctx, Outcome{Label: "Town", Kind: types.KindShortText, Value: "Pune", Source: types.SourceNone, Confirmed: true})
	require.NoError(t, err)
	assert.Empty(t, m.Key)
	assert.Equal(t, "Pune", m.Value)
}

func TestLearnReplacesExisting(t *testing.T) {
	ctx := context.Background()
	store := learned.NewMemoryStore()
	g := New(store, nil)

	_, _, err := g.Learn(ctx, Outcome{Label: "pet", Kind: types.KindShortText, Value: "cat", Source: types.SourceNone, Confirmed: true})
	require.NoError(t, err)
	m, _, err := g.Learn(ctx, Outcome{Label: "Pet", Kind: types.KindShortText, Value: "dog", Source: types.SourceNone, Confirmed: true})
	require.NoError(t, err)

	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "dog", m.Value)
	assert.Equal(t, 2, m.Revision)
}

func TestEligibility(t *testing.T) {
	g := New(learned.NewMemoryStore(), nil)
	soft := New(learned.NewMemoryStore(), nil, WithSoftMatches(true))

	tests := []struct {
		name string
		gate *Gate
		o    Outcome
		want types.Provenance
		ok   bool
	}{
		{"operator answer", g, Outcome{Source: types.SourceNone, Decision: types.DecisionDefer, Confirmed: true}, types.ProvenanceConfirmed, true},
		{"unconfirmed none", g, Outcome{Source: types.SourceNone, Decision: types.DecisionDefer}, "", false},
		{"soft overridden", g, Outcome{Source: types.SourceProfile, Decision: types.DecisionAcceptSoft, Confirmed: true}, types.ProvenanceConfirmed, true},
		{"soft untouched", g, Outcome{Source: types.SourceProfile, Decision: types.DecisionAcceptSoft}, "", false},
		{"soft untouched, learning soft", soft, Outcome{Source: types.SourceProfile, Decision: types.DecisionAcceptSoft}, types.ProvenanceAuto, true},
		{"high profile match", soft, Outcome{Source: types.SourceProfile, Decision: types.DecisionAccept}, "", false},
		{"learned match", g, Outcome{Source: types.SourceLearned, Decision: types.DecisionAccept, Confirmed: true}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prov, ok := tt.gate.Eligible(tt.o)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, prov)
		})
	}
}

func TestLearnIneligibleIsNoop(t *testing.T) {
	store := learned.NewMemoryStore()
	g := New(store, nil)

	_, ok, err := g.Learn(context.Background(), Outcome{Label: "first name", Value: "A", Source: types.SourceProfile, Decision: types.DecisionAccept})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, store.Len())
}

func TestLearnRejectsInvalid(t *testing.T) {
	store := learned.NewMemoryStore()
	g := New(store, nil)

	_, ok, err := g.Learn(context.Background(), Outcome{Label: "Work Email", Kind: types.KindShortText, Value: "not-an-email", Source: types.SourceNone, Confirmed: true})
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrInvalidValue))
	assert.Zero(t, store.Len())
}

func TestConfirmOutOfBand(t *testing.T) {
	store := learned.NewMemoryStore()
	g := New(store, sampleProfile())

	m, err := g.ConfirmOutOfBand(context.Background(), "Emergency Contact Phone", "98765 43210")
	require.NoError(t, err)
	assert.Equal(t, "emergency contact phone", m.Label)
	assert.Equal(t, types.ProvenanceConfirmed, m.Provenance)
	assert.Equal(t, "98765 43210", m.Value)
}

func TestForget(t *testing.T) {
	ctx := context.Background()
	store := learned.NewMemoryStore()
	g := New(store, sampleProfile())

	_, err := g.ConfirmOutOfBand(ctx, "Favorite Pet", "cat")
	require.NoError(t, err)

	require.NoError(t, g.Forget(ctx, "Favorite  Pet?"))
	_, ok := store.Get("favorite pet")
	assert.False(t, ok)

	assert.ErrorIs(t, g.Forget(ctx, "favorite pet"), learned.ErrNotFound)
}

func TestCheck(t *testing.T) {
	tests := []struct {
		label string
		kind  types.ControlKind
		value string
		ok    bool
	}{
		{"Email Address", types.KindShortText, "a@b.co", true},
		{"E-mail", types.KindShortText, "a@b", false},
		{"Mobile Number", types.KindShortText, "+91 98765 43210", true},
		{"Phone", types.KindShortText, "12345", false},
		{"Full Name", types.KindShortText, "Aakriti", false},
		{"Full Name", types.KindShortText, "Aakriti Sharma", true},
		{"User Name (full)", types.KindShortText, "aakriti", true},
		{"Initial", types.KindShortText, "A", false},
		{"Section", types.KindSingleChoice, "A", true},
		{"Anything", types.KindShortText, "  ", false},
	}
	for _, tt := range tests {
		t.Run(tt.label+"="+tt.value, func(t *testing.T) {
			err := Check(tt.label, tt.kind, tt.value)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, errors.Is(err, ErrInvalidValue), "got %v", err)
			}
		})
	}
}
