// Package extractor turns a page snapshot into the ordered list of fields
// the filler can act on, and reads the page-level signals the session
// tracker needs: the control that advances the form and whether the page
// reports a completed submission.
package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/types"
)

// DefaultContinueLabels are tried in order; earlier entries win.
var DefaultContinueLabels = []string{
	"next",
	"continue",
	"save and continue",
	"proceed",
	"submit",
	"submit application",
	"send",
	"apply",
}

// DefaultConfirmationPatterns are phrases that mark a submitted form.
var DefaultConfirmationPatterns = []string{
	"your response has been recorded",
	"thank you for your response",
	"thanks for submitting",
	"application has been submitted",
	"submitted successfully",
	"successfully submitted",
	"form submitted",
	"we have received your",
}

// backwards buttons never advance a form, even when a configured label
// happens to be a substring of theirs.
var backwards = []string{"back", "previous", "clear", "reset", "cancel"}

// Page is one scan of a page: the raw snapshot and the fillable fields
// derived from it.
type Page struct {
	Snapshot  *browser.Snapshot
	Fields    []types.FieldDescriptor
	Signature string
}

// Scan reads the page once and returns its fillable fields in document
// order. A page that cannot be reached yields a wrapped
// browser.ErrPageUnavailable.
func Scan(ctx context.Context, page browser.Page) ([]types.FieldDescriptor, error) {
	p, err := ScanPage(ctx, page)
	if err != nil {
		return nil, err
	}
	return p.Fields, nil
}

// ScanPage is Scan that also returns the snapshot the fields came from.
func ScanPage(ctx context.Context, page browser.Page) (*Page, error) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan page: %w", err)
	}
	return &Page{
		Snapshot:  snap,
		Fields:    Describe(snap),
		Signature: browser.Fingerprint(snap),
	}, nil
}

// Describe converts a snapshot into field descriptors. Hidden and disabled
// controls are skipped, as are controls without any usable label and
// choice controls without options.
func Describe(snap *browser.Snapshot) []types.FieldDescriptor {
	if snap == nil {
		return nil
	}
	fields := make([]types.FieldDescriptor, 0, len(snap.Elements))
	for _, e := range snap.Elements {
		if !e.Visible || e.Disabled {
			continue
		}
		if !fillable(e.Kind) {
			continue
		}
		l := Normalize(e.Label)
		if l == "" {
			continue
		}
		if e.Kind.IsChoice() && len(e.Options) == 0 {
			continue
		}
		d := types.FieldDescriptor{
			ID:       e.ID,
			Label:    l,
			RawLabel: strings.TrimSpace(e.Label),
			Kind:     e.Kind,
			Value:    e.Value,
			Required: e.Required || strings.HasSuffix(strings.TrimSpace(e.Label), "*"),
			Visible:  true,
		}
		if len(e.Options) > 0 {
			d.Options = append([]types.Option(nil), e.Options...)
		}
		fields = append(fields, d)
	}
	return fields
}

func fillable(k types.ControlKind) bool {
	switch k {
	case types.KindShortText, types.KindLongText, types.KindSingleChoice, types.KindMultiChoice, types.KindDropdown:
		return true
	}
	return false
}

// Normalize is the label normalization shared by every stage.
func Normalize(raw string) string {
	return label.Normalize(raw)
}

// ContinueControl finds the visible, enabled button that advances the form.
// Labels are compared normalized; an exact match on an earlier label beats
// a partial match on a later one.
func ContinueControl(snap *browser.Snapshot, labels []string) (browser.Button, bool) {
	if snap == nil {
		return browser.Button{}, false
	}
	if len(labels) == 0 {
		labels = DefaultContinueLabels
	}

	var candidates []browser.Button
	for _, b := range snap.Buttons {
		if b.Visible && !b.Disabled && !isBackwards(Normalize(b.Label)) {
			candidates = append(candidates, b)
		}
	}

	for _, want := range labels {
		want = Normalize(want)
		for _, b := range candidates {
			if Normalize(b.Label) == want {
				return b, true
			}
		}
	}
	for _, want := range labels {
		want = Normalize(want)
		if want == "" {
			continue
		}
		for _, b := range candidates {
			if containsWord(Normalize(b.Label), want) {
				return b, true
			}
		}
	}
	return browser.Button{}, false
}

func isBackwards(l string) bool {
	for _, w := range backwards {
		if containsWord(l, w) {
			return true
		}
	}
	return false
}

// containsWord reports whether phrase occurs in l on word boundaries.
func containsWord(l, phrase string) bool {
	return strings.Contains(" "+l+" ", " "+phrase+" ")
}

// Confirmation reports whether the page text contains one of the
// confirmation patterns (case-insensitive), and which one.
func Confirmation(snap *browser.Snapshot, patterns []string) (string, bool) {
	if snap == nil {
		return "", false
	}
	if len(patterns) == 0 {
		patterns = DefaultConfirmationPatterns
	}
	text := Normalize(snap.Text)
	for _, p := range patterns {
		if np := Normalize(p); np != "" && containsWord(text, np) {
			return p, true
		}
	}
	return "", false
}
