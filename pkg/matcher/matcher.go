// Package matcher proposes a value for a form field from the learned
// mappings and the user profile.
//
// Lookup order is fixed:
//
//  1. a learned mapping whose label equals the field's normalized label wins
//     immediately with confidence 1.0;
//  2. otherwise every profile key is scored by comparing the label with the
//     key's aliases, and the best key above the floor is returned with its
//     similarity as confidence;
//  3. otherwise the result is a "none" match at confidence 0.
//
// Equal scores are broken by the smallest edit distance between the label
// and the key's nearest alias, then by key name, so results are stable
// across calls. A Matcher never writes to the stores it reads.
package matcher

import (
	"sort"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/similarity"
	"github.com/entrhq/autofill/pkg/types"
)

// DefaultFloor is the minimum similarity a profile candidate needs.
const DefaultFloor = 0.5

// Matcher is safe for concurrent use; it holds no mutable state.
type Matcher struct {
	profile *profile.Profile
	learned learned.Lookup
	scorer  similarity.Scorer
	floor   float64
	aliases map[string][]string
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithScorer replaces the default blended scorer.
func WithScorer(s similarity.Scorer) Option {
	return func(m *Matcher) {
		if s != nil {
			m.scorer = s
		}
	}
}

// WithFloor sets the minimum similarity for profile candidates.
func WithFloor(f float64) Option {
	return func(m *Matcher) {
		m.floor = f
	}
}

// WithAliases adds label wordings per profile key.
func WithAliases(extra map[string][]string) Option {
	return func(m *Matcher) {
		for key, list := range extra {
			m.addAliases(key, list...)
		}
	}
}

// New creates a Matcher. store may be nil when nothing has been learned.
func New(p *profile.Profile, store learned.Lookup, opts ...Option) *Matcher {
	m := &Matcher{
		profile: p,
		learned: store,
		scorer:  similarity.Blend(),
		floor:   DefaultFloor,
		aliases: make(map[string][]string),
	}
	for key, list := range DefaultAliases {
		m.addAliases(key, list...)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Matcher) addAliases(key string, list ...string) {
	for _, a := range list {
		a = label.Normalize(a)
		if a == "" || contains(m.aliases[key], a) {
			continue
		}
		m.aliases[key] = append(m.aliases[key], a)
	}
}

// WithLabels returns a copy of m that also treats each label as an alias
// of its profile key. Site templates use this for per-site wording.
func (m *Matcher) WithLabels(labelToKey map[string]string) *Matcher {
	clone := *m
	clone.aliases = make(map[string][]string, len(m.aliases))
	for k, v := range m.aliases {
		clone.aliases[k] = append([]string(nil), v...)
	}
	for l, key := range labelToKey {
		if e, ok := m.profile.Get(key); ok {
			clone.addAliases(e.Key, l)
		}
	}
	return &clone
}

// Scorer returns the comparator in use, shared with the writer for option
// matching.
func (m *Matcher) Scorer() similarity.Scorer {
	return m.scorer
}

// Floor returns the minimum similarity for a candidate.
func (m *Matcher) Floor() float64 {
	return m.floor
}

// Candidate is one scored profile key.
type Candidate struct {
	Key      string
	Value    string
	Score    float64
	Alias    string // nearest alias
	Distance int    // edit distance from the label to Alias
}

// Match proposes a value for d.
func (m *Matcher) Match(d types.FieldDescriptor) types.MatchResult {
	l := label.Normalize(d.Label)
	if l == "" {
		return types.NoMatch()
	}

	if res, ok := m.matchLearned(l, d.Kind); ok {
		return res
	}

	cands := m.Candidates(l)
	if len(cands) == 0 || cands[0].Score < m.floor {
		return types.NoMatch()
	}
	best := cands[0]
	return withValues(types.MatchResult{
		Value:      best.Value,
		Key:        best.Key,
		Confidence: best.Score,
		Source:     types.SourceProfile,
	}, d.Kind)
}

func (m *Matcher) matchLearned(l string, kind types.ControlKind) (types.MatchResult, bool) {
	if m.learned == nil {
		return types.MatchResult{}, false
	}
	mapping, ok := m.learned.Get(l)
	if !ok {
		return types.MatchResult{}, false
	}

	res := types.MatchResult{Confidence: 1, Source: types.SourceLearned}
	switch {
	case mapping.Key != "":
		e, ok := m.profile.Get(mapping.Key)
		if !ok {
			// the key was removed from the profile since it was learned
			return types.MatchResult{}, false
		}
		res.Key, res.Value = e.Key, e.Value
	default:
		res.Value = mapping.Value
	}
	return withValues(res, kind), true
}

func withValues(res types.MatchResult, kind types.ControlKind) types.MatchResult {
	if kind == types.KindMultiChoice {
		res.Values = types.SplitValues(res.Value)
	}
	return res
}

// Candidates scores every profile key against the normalized label l,
// best first, using the documented tie-break order.
func (m *Matcher) Candidates(l string) []Candidate {
	entries := m.profile.Entries()
	out := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		c := Candidate{Key: e.Key, Value: e.Value, Distance: -1}
		for _, alias := range m.aliasesFor(e.Key) {
			score := m.scorer.Score(l, alias)
			dist := similarity.Levenshtein(l, alias)
			if score > c.Score {
				c.Score = score
			}
			if c.Distance < 0 || dist < c.Distance {
				c.Distance, c.Alias = dist, alias
			}
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Distance != b.Distance {
			return a.Distance < b.Distance
		}
		return a.Key < b.Key
	})
	return out
}

func (m *Matcher) aliasesFor(key string) []string {
	list := m.aliases[key]
	own := label.Humanize(key)
	if contains(list, own) {
		return list
	}
	return append([]string{own}, list...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
