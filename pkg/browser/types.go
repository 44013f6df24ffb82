package browser

import (
	"context"
	"errors"

	"github.com/entrhq/autofill/pkg/types"
)

var (
	// ErrPageUnavailable means the page, tab or browser can no longer be
	// reached. It is fatal for a fill session.
	ErrPageUnavailable = errors.New("page unavailable")

	// ErrElementNotFound means no element carries the requested id.
	ErrElementNotFound = errors.New("element not found")

	// ErrNoChange is returned by WaitForChange when the page did not change
	// before the timeout.
	ErrNoChange = errors.New("page did not change")
)

// IDAttribute is the DOM attribute the snapshot script stamps on every
// element it reports.
const IDAttribute = "data-autofill-id"

// MaxTextLength bounds Snapshot.Text.
const MaxTextLength = 20000

// Page is one browser tab (or static document) the filler works on.
type Page interface {
	// Snapshot lists the controls and buttons currently in the document.
	Snapshot(ctx context.Context) (*Snapshot, error)

	// SetValue replaces the value of a text control.
	SetValue(ctx context.Context, id, value string) error

	// Select picks the option with the given visible text in a select
	// element. Multi selects add to the current selection.
	Select(ctx context.Context, id, option string) error

	// ReadValue returns the current value of a control. For select
	// elements it returns the visible text of the selected options joined
	// with ", ".
	ReadValue(ctx context.Context, id string) (string, error)

	// Click activates a button, radio or checkbox.
	Click(ctx context.Context, id string) error

	// Checked reports the state of a radio or checkbox.
	Checked(ctx context.Context, id string) (bool, error)

	// Close releases the page. Browsers the driver attached to are left
	// running.
	Close() error
}

// Snapshot is a point-in-time view of a document.
type Snapshot struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Elements []Element `json:"elements"`
	Buttons  []Button  `json:"buttons"`

	// Text is the visible body text, truncated to MaxTextLength.
	Text string `json:"text"`
}

// Element is one form control, or one group of radios or checkboxes that
// share a name or an ARIA container.
type Element struct {
	ID       string            `json:"id"`
	Tag      string            `json:"tag"`
	Type     string            `json:"type,omitempty"`
	Kind     types.ControlKind `json:"kind"`
	Label    string            `json:"label"`
	Name     string            `json:"name,omitempty"`
	Value    string            `json:"value,omitempty"`
	Visible  bool              `json:"visible"`
	Disabled bool              `json:"disabled,omitempty"`
	Required bool              `json:"required,omitempty"`
	Options  []types.Option    `json:"options,omitempty"`
}

// Button is a clickable control that is not a form field.
type Button struct {
	ID       string `json:"id"`
	Label    string `json:"label"`
	Visible  bool   `json:"visible"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Element returns the element with the given id.
func (s *Snapshot) Element(id string) (Element, bool) {
	for _, e := range s.Elements {
		if e.ID == id {
			return e, true
		}
	}
	return Element{}, false
}

func selector(id string) string {
	return `[` + IDAttribute + `="` + id + `"]`
}
