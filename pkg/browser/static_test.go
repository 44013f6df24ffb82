package browser

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const applicationForm = `<!doctype html>
<html><head><title>Application</title></head>
<body>
<form action="step2.html">
  <label for="fn">First Name *</label><input id="fn" name="first_name" required>
  <label>Surname <input name="surname"></label>
  <input name="nickname" placeholder="Nick name">
  <input type="hidden" name="token" value="x">
  <input type="file" name="resume">
  <input name="ghost" style="display: none">
  <input name="locked" disabled>
  <textarea aria-label="Why do you want this job?"></textarea>
  <label>Country
    <select name="country">
      <option value="">Choose</option>
      <option value="in">India</option>
      <option value="us">United States</option>
    </select>
  </label>
  <fieldset>
    <legend>Gender</legend>
    <label><input type="radio" name="gender" value="f"> Female</label>
    <label><input type="radio" name="gender" value="m"> Male</label>
  </fieldset>
  <fieldset>
    <legend>Skills</legend>
    <label><input type="checkbox" name="skills" value="go"> Go</label>
    <label><input type="checkbox" name="skills" value="sql" checked> SQL</label>
  </fieldset>
  <input id="ro" aria-label="Reference" readonly value="R-1">
  <button type="submit">Next</button>
</form>
</body></html>`

const confirmationPage = `<html><head><title>Application</title></head>
<body><p>Your response has been recorded.</p></body></html>`

func newApplication(t *testing.T) *StaticPage {
	t.Helper()
	p, err := NewStaticPage("step1.html", applicationForm)
	require.NoError(t, err)
	require.NoError(t, p.AddDocument("step2.html", confirmationPage))
	return p
}

func elementByLabel(t *testing.T, s *Snapshot, label string) Element {
	t.Helper()
	for _, e := range s.Elements {
		if e.Label == label {
			return e
		}
	}
	t.Fatalf("no element labelled %q", label)
	return Element{}
}

func TestStaticSnapshot(t *testing.T) {
	ctx := context.Background()
	p := newApplication(t)

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "step1.html", snap.URL)
	assert.Equal(t, "Application", snap.Title)

	var labels []string
	for _, e := range snap.Elements {
		labels = append(labels, e.Label)
	}
	assert.Equal(t, []string{
		"First Name *", "Surname", "Nick name", "ghost", "locked",
		"Why do you want this job?", "Country", "Gender", "Skills", "Reference",
	}, labels)

	first := elementByLabel(t, snap, "First Name *")
	assert.True(t, first.Required)
	assert.Equal(t, types.KindShortText, first.Kind)

	assert.False(t, elementByLabel(t, snap, "ghost").Visible)
	assert.True(t, elementByLabel(t, snap, "locked").Disabled)
	assert.Equal(t, types.KindLongText, elementByLabel(t, snap, "Why do you want this job?").Kind)

	country := elementByLabel(t, snap, "Country")
	assert.Equal(t, types.KindDropdown, country.Kind)
	assert.Len(t, country.Options, 3)
	assert.Equal(t, "India", country.Options[1].Label)

	gender := elementByLabel(t, snap, "Gender")
	assert.Equal(t, types.KindSingleChoice, gender.Kind)
	require.Len(t, gender.Options, 2)
	assert.Equal(t, "Female", gender.Options[0].Label)
	assert.NotEmpty(t, gender.Options[0].ID)

	skills := elementByLabel(t, snap, "Skills")
	assert.Equal(t, types.KindMultiChoice, skills.Kind)
	assert.Equal(t, "SQL", skills.Value)

	require.Len(t, snap.Buttons, 1)
	assert.Equal(t, "Next", snap.Buttons[0].Label)
}

func TestStaticSnapshotIDsStable(t *testing.T) {
	ctx := context.Background()
	p := newApplication(t)

	a, err := p.Snapshot(ctx)
	require.NoError(t, err)
	b, err := p.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestStaticWrites(t *testing.T) {
	ctx := context.Background()
	p := newApplication(t)
	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)

	first := elementByLabel(t, snap, "First Name *")
	require.NoError(t, p.SetValue(ctx, first.ID, "Aakriti"))
	got, err := p.ReadValue(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aakriti", got)

	essay := elementByLabel(t, snap, "Why do you want this job?")
	require.NoError(t, p.SetValue(ctx, essay.ID, "I like forms."))
	got, err = p.ReadValue(ctx, essay.ID)
	require.NoError(t, err)
	assert.Equal(t, "I like forms.", got)

	country := elementByLabel(t, snap, "Country")
	require.NoError(t, p.Select(ctx, country.ID, "India"))
	got, err = p.ReadValue(ctx, country.ID)
	require.NoError(t, err)
	assert.Equal(t, "India", got)
	assert.Error(t, p.Select(ctx, country.ID, "Atlantis"))

	gender := elementByLabel(t, snap, "Gender")
	require.NoError(t, p.Click(ctx, gender.Options[0].ID))
	require.NoError(t, p.Click(ctx, gender.Options[1].ID))
	on, err := p.Checked(ctx, gender.Options[0].ID)
	require.NoError(t, err)
	assert.False(t, on, "radios are exclusive")
	on, err = p.Checked(ctx, gender.Options[1].ID)
	require.NoError(t, err)
	assert.True(t, on)

	ref := elementByLabel(t, snap, "Reference")
	require.NoError(t, p.SetValue(ctx, ref.ID, "R-2"))
	got, err = p.ReadValue(ctx, ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "R-1", got, "read-only inputs keep their value")

	locked := elementByLabel(t, snap, "locked")
	assert.Error(t, p.SetValue(ctx, locked.ID, "x"))

	_, err = p.ReadValue(ctx, "af-999")
	assert.True(t, errors.Is(err, ErrElementNotFound))
}

func TestStaticNavigation(t *testing.T) {
	ctx := context.Background()
	p := newApplication(t)
	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)

	require.NoError(t, p.Click(ctx, snap.Buttons[0].ID))
	next, err := p.Snapshot(ctx)
	require.NoError(t, err)

	assert.Equal(t, "step2.html", next.URL)
	assert.Empty(t, next.Elements)
	assert.Contains(t, next.Text, "Your response has been recorded")
	assert.NotEqual(t, Fingerprint(snap), Fingerprint(next))
}

func TestStaticReveal(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage("a.html", `<form>
		<label><input type="radio" name="visa" value="y" data-reveals="visa-extra"> Yes</label>
		<label><input type="radio" name="visa" value="n"> No</label>
		<div id="visa-extra" hidden><label>Visa Number <input name="visa_number"></label></div>
	</form>`)
	require.NoError(t, err)

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.False(t, elementByLabel(t, snap, "Visa Number").Visible)

	group := elementByLabel(t, snap, "visa")
	require.NoError(t, p.Click(ctx, group.Options[0].ID))

	snap, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.True(t, elementByLabel(t, snap, "Visa Number").Visible)
}

func TestStaticARIAWidgets(t *testing.T) {
	ctx := context.Background()
	p, err := NewStaticPage("g.html", `<div role="list">
		<div role="listitem">
			<div role="heading">Favourite language</div>
			<div role="radiogroup">
				<div role="radio" aria-label="Go" data-value="Go" aria-checked="false"></div>
				<div role="radio" aria-label="Rust" data-value="Rust" aria-checked="false"></div>
			</div>
		</div>
		<div role="listitem">
			<div role="heading" id="q2">Email address</div>
			<input type="email" aria-labelledby="q2">
		</div>
	</div>
	<div role="button">Submit</div>`)
	require.NoError(t, err)

	snap, err := p.Snapshot(ctx)
	require.NoError(t, err)

	lang := elementByLabel(t, snap, "Favourite language")
	assert.Equal(t, types.KindSingleChoice, lang.Kind)
	require.Len(t, lang.Options, 2)

	email := elementByLabel(t, snap, "Email address")
	assert.Equal(t, types.KindShortText, email.Kind)

	require.NoError(t, p.Click(ctx, lang.Options[1].ID))
	on, err := p.Checked(ctx, lang.Options[1].ID)
	require.NoError(t, err)
	assert.True(t, on)

	require.Len(t, snap.Buttons, 1)
	assert.Equal(t, "Submit", snap.Buttons[0].Label)
}

func TestStaticClosed(t *testing.T) {
	ctx := context.Background()
	p := newApplication(t)
	require.NoError(t, p.Close())

	_, err := p.Snapshot(ctx)
	assert.True(t, errors.Is(err, ErrPageUnavailable))
	assert.True(t, errors.Is(p.SetValue(ctx, "af-1", "x"), ErrPageUnavailable))
	assert.True(t, errors.Is(p.Click(ctx, "af-1"), ErrPageUnavailable))
}

func TestLoadStaticFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "step1.html"), []byte(applicationForm), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "step2.html"), []byte(confirmationPage), 0o600))

	page, err := Open(context.Background(), Options{Driver: DriverHTML, StartURL: filepath.Join(dir, "step1.html")})
	require.NoError(t, err)
	p := page.(*StaticPage)

	snap, err := p.Snapshot(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.Click(context.Background(), snap.Buttons[0].ID))
	assert.Equal(t, "step2.html", p.URL())

	// unknown targets make the page unreachable
	assert.True(t, errors.Is(p.Navigate("missing.html"), ErrPageUnavailable))
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "lynx"})
	assert.Error(t, err)
}
