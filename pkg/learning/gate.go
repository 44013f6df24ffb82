// Package learning decides which resolved fields become learned mappings
// and writes them. It is the only code that mutates the learned store.
package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/types"
)

// Outcome describes a field after its value was written.
type Outcome struct {
	Label string
	Kind  types.ControlKind

	// Value is the value the page now holds.
	Value string

	// Source and Decision are what the matcher and validator produced
	// before the operator stepped in, if they did.
	Source   types.MatchSource
	Decision types.Decision

	// Confirmed is set when the operator supplied or approved Value.
	Confirmed bool
}

// Gate writes learned mappings.
type Gate struct {
	store     learned.Store
	profile   *profile.Profile
	learnSoft bool
	logger    *logging.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithSoftMatches makes the gate also learn soft matches nobody
// overrode, with provenance auto.
func WithSoftMatches(on bool) Option {
	return func(g *Gate) { g.learnSoft = on }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l
		}
	}
}

// New creates a Gate. p is used to store a profile key instead of a copy
// of the value when the value belongs to exactly one profile entry.
func New(store learned.Store, p *profile.Profile, opts ...Option) *Gate {
	g := &Gate{store: store, profile: p, logger: logging.Discard()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Eligible reports whether an outcome should be learned, and with which
// provenance. Fields the profile or the learned store answered with full
// confidence are never relearned.
func (g *Gate) Eligible(o Outcome) (types.Provenance, bool) {
	switch {
	case o.Confirmed && (o.Source == types.SourceNone || o.Source == types.SourceOperator || o.Decision == types.DecisionAcceptSoft):
		return types.ProvenanceConfirmed, true
	case g.learnSoft && o.Decision == types.DecisionAcceptSoft && o.Source == types.SourceProfile:
		return types.ProvenanceAuto, true
	default:
		return "", false
	}
}

// Learn stores the mapping for an eligible outcome, replacing any mapping
// the label had. It returns false without error for ineligible outcomes,
// and an error wrapping ErrInvalidValue when the value fails Check.
func (g *Gate) Learn(ctx context.Context, o Outcome) (types.LearnedMapping, bool, error) {
	prov, ok := g.Eligible(o)
	if !ok {
		return types.LearnedMapping{}, false, nil
	}
	l := label.Normalize(o.Label)
	if l == "" {
		return types.LearnedMapping{}, false, fmt.Errorf("%w: empty label", ErrInvalidValue)
	}
	value := strings.TrimSpace(o.Value)
	if err := Check(l, o.Kind, value); err != nil {
		g.logger.Warnf("not learning %q: %v", l, err)
		return types.LearnedMapping{}, false, err
	}

	m := types.LearnedMapping{Label: l, Provenance: prov}
	if key, ok := g.profile.KeyForValue(value); ok {
		m.Key = key
	} else {
		m.Value = value
	}

	saved, err := g.store.Put(ctx, m)
	if err != nil {
		return types.LearnedMapping{}, false, fmt.Errorf("learn %q: %w", l, err)
	}
	g.logger.Infof("learned %q -> %s (%s, revision %d)", saved.Label, saved.Target(), saved.Provenance, saved.Revision)
	return saved, true, nil
}

// ConfirmOutOfBand learns an operator's answer for a field that is not on
// screen, as "autofill confirm" does between sessions.
func (g *Gate) ConfirmOutOfBand(ctx context.Context, l, value string) (types.LearnedMapping, error) {
	m, _, err := g.Learn(ctx, Outcome{
		Label:     l,
		Value:     value,
		Source:    types.SourceOperator,
		Decision:  types.DecisionDefer,
		Confirmed: true,
	})
	return m, err
}

// Forget removes the mapping learned for l. It returns learned.ErrNotFound
// when there is none.
func (g *Gate) Forget(ctx context.Context, l string) error {
	key := label.Normalize(l)
	if err := g.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("forget %q: %w", key, err)
	}
	g.logger.Infof("forgot %q", key)
	return nil
}
