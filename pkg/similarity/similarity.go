// Package similarity provides the string comparators used to match field
// labels against profile aliases and option text.
//
// Every Scorer must be symmetric, return values in [0, 1], and return 1.0
// for identical inputs. Inputs are expected to be normalized labels already
// (lower case, punctuation stripped); scorers do not normalize further
// beyond splitting on whitespace.
package similarity

import (
	"fmt"
	"sort"
	"strings"
)

// Scorer compares two normalized strings.
type Scorer interface {
	Score(a, b string) float64
}

// Func adapts a plain function to Scorer.
type Func func(a, b string) float64

// Score implements Scorer.
func (f Func) Score(a, b string) float64 { return f(a, b) }

// StopWords are ignored by TokenOverlap. They carry no meaning in form
// labels ("What is your email?" and "email" ask the same thing).
var StopWords = map[string]bool{
	"what": true, "is": true, "your": true, "the": true, "a": true, "an": true,
	"are": true, "you": true, "my": true, "enter": true, "please": true, "of": true,
}

// Distinguishing words separate otherwise identical labels: "mother's phone"
// and "phone" must not match. When either label carries one, both must
// carry exactly the same set.
var Distinguishing = map[string]bool{
	"mother": true, "father": true, "parent": true, "emergency": true,
	"current": true, "previous": true, "dream": true, "favorite": true,
	"home": true, "work": true, "school": true, "primary": true, "alternate": true,
}

// marked returns the words of set that must agree between two labels:
// distinguishing words and numbers ("address line 2", "phone 2").
func marked(set map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for w := range set {
		if Distinguishing[w] || numeric(w) {
			out[w] = true
		}
	}
	return out
}

func numeric(w string) bool {
	for _, r := range w {
		if r < '0' || r > '9' {
			return false
		}
	}
	return w != ""
}

func words(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(s) {
		set[w] = true
	}
	return set
}

func without(set, drop map[string]bool) map[string]bool {
	out := make(map[string]bool, len(set))
	for w := range set {
		if !drop[w] {
			out[w] = true
		}
	}
	return out
}

func intersect(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool)
	for w := range a {
		if b[w] {
			out[w] = true
		}
	}
	return out
}

func sameSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for w := range a {
		if !b[w] {
			return false
		}
	}
	return true
}

// TokenOverlap scores the share of meaningful words two labels have in
// common: |common| / max(|a|, |b|) after stop words are removed. Labels that
// disagree on distinguishing words or on numbers score 0.
func TokenOverlap(a, b string) float64 {
	if a == b {
		return 1
	}
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}

	ma, mb := without(wa, StopWords), without(wb, StopWords)
	if len(ma) == 0 || len(mb) == 0 {
		// Labels made only of stop words compare on their raw words.
		ma, mb = wa, wb
	}

	if !sameSet(marked(ma), marked(mb)) {
		return 0
	}

	common := len(intersect(ma, mb))
	return float64(common) / float64(max(len(ma), len(mb)))
}

// Levenshtein returns the edit distance between a and b, counted in runes.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

// EditRatio is 1 - distance/longest, so identical strings score 1.
func EditRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 1
	}
	return 1 - float64(Levenshtein(a, b))/float64(longest)
}

// Weighted combines scorers into their weighted mean. Weights are
// normalized, so they need not sum to one.
type Weighted struct {
	Scorers []Scorer
	Weights []float64
}

// Score implements Scorer.
func (w Weighted) Score(a, b string) float64 {
	if a == b {
		return 1
	}
	var total, sum float64
	for i, s := range w.Scorers {
		weight := 1.0
		if i < len(w.Weights) {
			weight = w.Weights[i]
		}
		sum += weight * s.Score(a, b)
		total += weight
	}
	if total == 0 {
		return 0
	}
	return clamp(sum / total)
}

// Blend is the default comparator: word overlap decides most of the score
// and character edits break near misses ("zip code" / "zipcode").
func Blend() Scorer {
	return Weighted{
		Scorers: []Scorer{Func(TokenOverlap), Func(EditRatio)},
		Weights: []float64{0.6, 0.4},
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

var registry = map[string]func() Scorer{
	"blend":   Blend,
	"token":   func() Scorer { return Func(TokenOverlap) },
	"edit":    func() Scorer { return Func(EditRatio) },
	"default": Blend,
}

// ByName returns a registered scorer: blend, token or edit.
func ByName(name string) (Scorer, error) {
	if name == "" {
		return Blend(), nil
	}
	f, ok := registry[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown scorer %q (available: %s)", name, strings.Join(Names(), ", "))
	}
	return f(), nil
}

// Names lists the registered scorer names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		if n != "default" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}
