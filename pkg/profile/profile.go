// Package profile loads the user's personal-data record and exposes it as a
// read-only set of semantic keys.
package profile

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

var ErrNoEntries = errors.New("profile: no string-valued entries found")

// Groups are read in this order; a key found in an earlier group wins when
// a later group repeats it.
var Groups = []string{"personal_info", "education", "professional"}

// ignoredSections belong to other tools that share the profile file.
var ignoredSections = map[string]bool{
	"learned_questions": true,
	"preferences":       true,
}

// Profile is immutable once loaded.
type Profile struct {
	entries map[string]Entry
	order   []string
}

// Entry is one profile value.
type Entry struct {
	Key   string
	Group string
	Value string
}

// Load reads a JSON or YAML profile file.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("profile: %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes profile data. JSON is accepted as YAML.
func Parse(data []byte) (*Profile, error) {
	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	p := &Profile{entries: make(map[string]Entry)}

	var extra []string
	for k := range doc {
		if !isGroup(k) && !ignoredSections[k] {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)

	for _, group := range append(append([]string{}, Groups...), extra...) {
		raw, ok := doc[group]
		if !ok {
			continue
		}
		switch v := raw.(type) {
		case map[string]interface{}:
			p.flatten(group, v)
		default:
			// top-level scalar, e.g. "email: x@y"
			if s, ok := scalar(v); ok {
				p.add(Entry{Key: normalizeKey(group), Value: s})
			}
		}
	}

	if len(p.entries) == 0 {
		return nil, ErrNoEntries
	}
	return p, nil
}

func isGroup(k string) bool {
	for _, g := range Groups {
		if g == k {
			return true
		}
	}
	return false
}

func (p *Profile) flatten(group string, m map[string]interface{}) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		switch v := m[k].(type) {
		case map[string]interface{}:
			p.flatten(group, v)
		default:
			if s, ok := scalar(v); ok {
				p.add(Entry{Key: normalizeKey(k), Group: group, Value: s})
			}
		}
	}
}

func (p *Profile) add(e Entry) {
	if e.Key == "" || e.Value == "" {
		return
	}
	if _, exists := p.entries[e.Key]; exists {
		return
	}
	p.entries[e.Key] = e
	p.order = append(p.order, e.Key)
}

func scalar(v interface{}) (string, bool) {
	switch t := v.(type) {
	case nil:
		return "", false
	case string:
		return strings.TrimSpace(t), true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := scalar(item); ok && s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", "), len(parts) > 0
	case map[string]interface{}:
		return "", false
	default:
		return fmt.Sprint(t), true
	}
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	k = strings.NewReplacer(" ", "_", "-", "_").Replace(k)
	return k
}

// FromEntries builds a profile in memory.
func FromEntries(entries ...Entry) *Profile {
	p := &Profile{entries: make(map[string]Entry)}
	for _, e := range entries {
		e.Key = normalizeKey(e.Key)
		p.add(e)
	}
	return p
}

// FromMap builds a profile from key/value pairs.
func FromMap(values map[string]string) *Profile {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	entries := make([]Entry, 0, len(keys))
	for _, k := range keys {
		entries = append(entries, Entry{Key: k, Value: values[k]})
	}
	return FromEntries(entries...)
}

// Get looks a key up. "group.key" forms are accepted and must name the
// group the key was loaded from.
func (p *Profile) Get(key string) (Entry, bool) {
	if p == nil {
		return Entry{}, false
	}
	group := ""
	if i := strings.LastIndex(key, "."); i >= 0 {
		group, key = key[:i], key[i+1:]
	}
	e, ok := p.entries[normalizeKey(key)]
	if !ok {
		return Entry{}, false
	}
	if group != "" && e.Group != "" && e.Group != group {
		return Entry{}, false
	}
	return e, true
}

// Keys returns every key, sorted.
func (p *Profile) Keys() []string {
	if p == nil {
		return nil
	}
	keys := append([]string(nil), p.order...)
	sort.Strings(keys)
	return keys
}

// Entries returns every entry in load order.
func (p *Profile) Entries() []Entry {
	if p == nil {
		return nil
	}
	out := make([]Entry, 0, len(p.order))
	for _, k := range p.order {
		out = append(out, p.entries[k])
	}
	return out
}

// Len is the number of entries.
func (p *Profile) Len() int {
	if p == nil {
		return 0
	}
	return len(p.order)
}

// KeyForValue returns the only key holding value (case-insensitive).
// It reports false when no key or more than one key holds it.
func (p *Profile) KeyForValue(value string) (string, bool) {
	if p == nil {
		return "", false
	}
	value = strings.TrimSpace(value)
	found := ""
	for _, k := range p.order {
		if strings.EqualFold(p.entries[k].Value, value) {
			if found != "" {
				return "", false
			}
			found = k
		}
	}
	return found, found != ""
}
