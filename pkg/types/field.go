// Package types holds the data model shared by every stage of the form
// filling pipeline: field descriptors, match results, learned mappings and
// the session record, plus the events the pipeline emits while it runs.
package types

import (
	"strings"
	"time"
)

// ControlKind is the interaction protocol a form control requires.
type ControlKind string

const (
	KindShortText    ControlKind = "short_text"    // KindShortText is a single line input (text, email, tel, number...).
	KindLongText     ControlKind = "long_text"     // KindLongText is a textarea.
	KindSingleChoice ControlKind = "single_choice" // KindSingleChoice is a radio group.
	KindMultiChoice  ControlKind = "multi_choice"  // KindMultiChoice is a checkbox group or multi select.
	KindDropdown     ControlKind = "dropdown"      // KindDropdown is a single select.
)

// IsChoice reports whether the kind is written by picking among options.
func (k ControlKind) IsChoice() bool {
	return k == KindSingleChoice || k == KindMultiChoice || k == KindDropdown
}

// IsText reports whether the kind accepts free text.
func (k ControlKind) IsText() bool {
	return k == KindShortText || k == KindLongText
}

// Option is one selectable entry of a choice control.
type Option struct {
	// ID addresses the option element itself (radio or checkbox input).
	// Empty for <option> elements, which are written through the parent.
	ID       string `json:"id,omitempty"`
	Label    string `json:"label"`
	Value    string `json:"value,omitempty"`
	Selected bool   `json:"selected,omitempty"`
}

// FieldDescriptor is the normalized view of one fillable control on a page.
// Descriptors are produced fresh by every scan and never mutated afterwards.
type FieldDescriptor struct {
	// ID addresses the control on the current page only; it does not
	// survive navigation.
	ID string `json:"id"`

	// Label is the normalized label, the join key used across the pipeline.
	Label string `json:"label"`

	// RawLabel is the label text as rendered on the page.
	RawLabel string `json:"raw_label"`

	Kind     ControlKind `json:"kind"`
	Value    string      `json:"value,omitempty"`
	Required bool        `json:"required,omitempty"`
	Visible  bool        `json:"visible"`
	Options  []Option    `json:"options,omitempty"`
}

// Identity is the key used to recognize the same field across pages.
func (d FieldDescriptor) Identity() string {
	return d.Label + "|" + string(d.Kind)
}

// OptionLabels returns the visible text of every option in page order.
func (d FieldDescriptor) OptionLabels() []string {
	labels := make([]string, 0, len(d.Options))
	for _, o := range d.Options {
		labels = append(labels, o.Label)
	}
	return labels
}

// ProfileEntry is one semantic key of the user's profile.
type ProfileEntry struct {
	Key   string `json:"key"`
	Group string `json:"group,omitempty"`
	Value string `json:"value"`
}

// Provenance records how a learned mapping came to exist.
type Provenance string

const (
	ProvenanceAuto      Provenance = "auto"
	ProvenanceConfirmed Provenance = "confirmed"
)

// LearnedMapping associates a normalized label with either a profile key or
// a literal value. At most one mapping is active per label.
type LearnedMapping struct {
	Label      string     `json:"label" validate:"required"`
	Key        string     `json:"key,omitempty" validate:"required_without=Value"`
	Value      string     `json:"value,omitempty" validate:"required_without=Key"`
	Provenance Provenance `json:"provenance" validate:"oneof=auto confirmed"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	Revision   int        `json:"revision"`
}

// Target describes what the mapping resolves to, for display.
func (m LearnedMapping) Target() string {
	if m.Key != "" {
		return "profile:" + m.Key
	}
	return m.Value
}

// SplitValues breaks a profile value into list items for multi-choice
// controls. Commas and semicolons both separate items.
func SplitValues(value string) []string {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ';'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
