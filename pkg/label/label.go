// Package label normalizes the text of form labels into the join key used
// by the matcher, the learned store and the session tracker.
package label

import (
	"strings"
	"unicode"
)

var possessive = strings.NewReplacer("'s ", " ", "\u2019s ", " ")

// Normalize lower-cases s, strips punctuation and collapses whitespace.
// Hyphens, underscores and slashes separate words ("date-of-birth" becomes
// "date of birth"), possessives lose their "'s", and every other
// punctuation mark is dropped, the required-field asterisk included.
func Normalize(s string) string {
	s = possessive.Replace(strings.ToLower(s) + " ")
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r == '-' || r == '_' || r == '/' || r == '\\':
			b.WriteRune(' ')
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Humanize turns a profile key into the label a form would print for it.
func Humanize(key string) string {
	return Normalize(strings.ReplaceAll(key, ".", " "))
}
