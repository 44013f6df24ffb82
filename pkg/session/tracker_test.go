package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/confirm"
	"github.com/entrhq/autofill/pkg/learned"
	"github.com/entrhq/autofill/pkg/learning"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/templates"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/entrhq/autofill/pkg/writer"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const applicationPage = `<html><head><title>Application</title></head><body>
<form action="done.html">
  <label for="fn">First Name</label><input id="fn" type="text">
  <label for="pet">Favorite Pet</label><input id="pet" type="text">
  <label for="country">Country</label>
  <select id="country"><option value="">Choose</option><option>India</option><option>Nepal</option></select>
  <button type="submit">Next</button>
</form></body></html>`

const donePage = `<html><head><title>Done</title></head><body>
<p>Your response has been recorded.</p></body></html>`

func testProfile() *profile.Profile {
	return profile.FromMap(map[string]string{
		"first_name": "Aakriti",
		"full_name":  "Aakriti Sharma",
		"email":      "aakriti@example.com",
		"country":    "India",
	})
}

type recorder struct {
	mu     sync.Mutex
	events []*types.FillEvent
}

func (r *recorder) emit(e *types.FillEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(t types.FillEventType) []*types.FillEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.FillEvent
	for _, e := range r.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder) states() []types.SessionState {
	var out []types.SessionState
	for _, e := range r.ofType(types.EventTypeStateChanged) {
		out = append(out, e.State)
	}
	return out
}

func staticPage(t *testing.T, docs ...string) *browser.StaticPage {
	t.Helper()
	require.True(t, len(docs) >= 2 && len(docs)%2 == 0, "name/source pairs")
	p, err := browser.NewStaticPage(docs[0], docs[1])
	require.NoError(t, err)
	for i := 2; i < len(docs); i += 2 {
		require.NoError(t, p.AddDocument(docs[i], docs[i+1]))
	}
	return p
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.NavigationTimeout = 500 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	cfg.MaxRescans = 1
	return cfg
}

type fixture struct {
	page   *browser.StaticPage
	store  *learned.MemoryStore
	events *recorder
}

func newTracker(t *testing.T, f *fixture, cfg Config, opts ...Option) *Tracker {
	t.Helper()
	if f.store == nil {
		f.store = learned.NewMemoryStore()
	}
	if f.events == nil {
		f.events = &recorder{}
	}
	p := testProfile()
	m := matcher.New(p, f.store)
	base := []Option{
		WithGate(learning.New(f.store, p)),
		WithWriter(writer.New(writer.WithScorer(m.Scorer()), writer.WithFloor(m.Floor()), writer.WithSettleDelay(time.Millisecond))),
		WithEmitter(f.events.emit),
	}
	tr, err := New(f.page, m, cfg, append(base, opts...)...)
	require.NoError(t, err)
	return tr
}

func TestNewRequiresPageAndMatcher(t *testing.T) {
	_, err := New(nil, matcher.New(testProfile(), nil), DefaultConfig())
	assert.Error(t, err)

	p := staticPage(t, "a.html", donePage)
	_, err = New(p, nil, DefaultConfig())
	assert.Error(t, err)
}

func TestResolvedAndDeferred(t *testing.T) {
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, sum.State)
	assert.Equal(t, types.StatusCompleted, sum.Status)
	if diff := cmp.Diff([]string{"first name", "country"}, sum.ResolvedLabels()); diff != "" {
		t.Errorf("resolved labels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"favorite pet"}, sum.DeferredLabels())
	assert.Equal(t, []string{"favorite pet"}, sum.UnresolvedLabels())
	assert.False(t, sum.Complete(), "deferred labels must keep the session incomplete")

	first := sum.Resolved[0]
	assert.Equal(t, "Aakriti", first.Value)
	assert.Equal(t, types.SourceProfile, first.Source)
	assert.InDelta(t, 1.0, first.Confidence, 1e-9)
	assert.Equal(t, types.SourceNone, sum.Deferred[0].Source)
	assert.Zero(t, sum.Deferred[0].Confidence)

	require.Len(t, sum.Pages, 1)
	assert.Equal(t, "form.html", sum.Pages[0].URL)
	assert.Equal(t, "form.html", sum.StartURL)
	assert.Empty(t, sum.Learned, "profile matches are never learned")

	want := []types.SessionState{
		types.StateScanning, types.StateFilling, types.StateAwaitingNavigation,
		types.StateCompleted,
	}
	if diff := cmp.Diff(want, f.events.states()); diff != "" {
		t.Errorf("state sequence mismatch (-want +got):\n%s", diff)
	}
	assert.Len(t, f.events.ofType(types.EventTypeFieldDeferred), 1)
	assert.Len(t, f.events.ofType(types.EventTypeSessionFinished), 1)
	assert.Equal(t, types.StateCompleted, tr.State())
}

func TestConfirmedValueLearnedForNextSession(t *testing.T) {
	ctx := context.Background()
	store := learned.NewMemoryStore()

	first := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage), store: store}
	tr := newTracker(t, first, testConfig())
	sum, err := tr.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"favorite pet"}, sum.DeferredLabels())

	// the session is over: the answer is learned for next time
	m, err := tr.Confirm(ctx, "Favorite Pet", "cat")
	require.NoError(t, err)
	assert.Equal(t, "favorite pet", m.Label)
	assert.Equal(t, "cat", m.Value)
	assert.Equal(t, types.ProvenanceConfirmed, m.Provenance)

	second := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage), store: store}
	sum, err = newTracker(t, second, testConfig()).Run(ctx)
	require.NoError(t, err)

	assert.True(t, sum.Complete())
	require.Len(t, sum.Resolved, 3)
	pet := sum.Resolved[1]
	assert.Equal(t, "favorite pet", pet.Label)
	assert.Equal(t, "cat", pet.Value)
	assert.Equal(t, types.SourceLearned, pet.Source)
	assert.InDelta(t, 1.0, pet.Confidence, 1e-9)
}

func TestNavigationTimeout(t *testing.T) {
	const stuck = `<html><body><form>
  <label for="fn">First Name</label><input id="fn">
  <label for="pet">Favorite Pet</label><input id="pet">
  <button type="button">Next</button>
</form></body></html>`
	f := &fixture{page: staticPage(t, "form.html", stuck)}
	cfg := testConfig()
	cfg.NavigationTimeout = 100 * time.Millisecond
	tr := newTracker(t, f, cfg)

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.StateTimedOut, sum.State)
	assert.Equal(t, types.StatusTimedOut, sum.Status)
	assert.True(t, errors.Is(sum.Err, ErrNavigationTimeout))
	assert.Equal(t, []string{"first name"}, sum.ResolvedLabels())
	assert.Equal(t, []string{"favorite pet"}, sum.DeferredLabels())
	assert.Len(t, f.events.ofType(types.EventTypeNavigationStarted), 1)
}

func TestDropdownWithoutMatchingOptionFails(t *testing.T) {
	const codes = `<html><body><form action="done.html">
  <label for="country">Country</label><select id="country"><option>IN</option></select>
  <button type="submit">Submit</button>
</form></body></html>`
	f := &fixture{page: staticPage(t, "form.html", codes, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sum.Failed, 1)
	assert.Equal(t, "country", sum.Failed[0].Label)
	assert.Contains(t, sum.Failed[0].Error, "rejected")
	assert.Empty(t, sum.Resolved)
	assert.Empty(t, sum.DeferredLabels())
	assert.Equal(t, []string{"country"}, sum.UnresolvedLabels())
	assert.False(t, sum.Complete())
	assert.Len(t, f.events.ofType(types.EventTypeFieldFailed), 1)
}

func TestDropdownExactOption(t *testing.T) {
	ctx := context.Background()
	f := &fixture{page: staticPage(t, "form.html", applicationPage)}
	cfg := testConfig()
	cfg.AutoAdvance = false
	cfg.NavigationTimeout = 50 * time.Millisecond
	tr := newTracker(t, f, cfg)

	sum, err := tr.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateTimedOut, sum.State, "nobody navigates without auto advance")

	snap, err := f.page.Snapshot(ctx)
	require.NoError(t, err)
	for _, e := range snap.Elements {
		if strings.EqualFold(e.Label, "country") {
			got, err := f.page.ReadValue(ctx, e.ID)
			require.NoError(t, err)
			assert.Equal(t, "India", got)
			return
		}
	}
	t.Fatal("country select not found")
}

func TestDuplicateLabelsAcrossPages(t *testing.T) {
	const one = `<html><body>
  <label for="fn">First Name</label><input id="fn">
  <button data-next="two.html">Next</button></body></html>`
	const two = `<html><body><form action="done.html">
  <label for="fn">First Name</label><input id="fn">
  <label for="em">Email</label><input id="em" type="email">
  <button type="submit">Submit</button></form></body></html>`
	f := &fixture{page: staticPage(t, "one.html", one, "two.html", two, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Complete())
	assert.Equal(t, []string{"first name", "email"}, sum.ResolvedLabels())
	assert.Equal(t, []string{"first name"}, sum.DuplicateLabels)
	assert.Len(t, sum.Pages, 2)
	skipped := f.events.ofType(types.EventTypeFieldSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, types.SkipResolvedEarlier, skipped[0].Metadata["reason"])
}

const contactsPage = `<html><body><form action="done.html">
  <fieldset><legend>Applicant</legend>
    <label for="a-em">Email</label><input id="a-em" type="email">
  </fieldset>
  <fieldset><legend>Guardian</legend>
    <label for="g-em">Email</label><input id="g-em" type="email">
  </fieldset>
  <button type="submit">Submit</button></form></body></html>`

func TestDuplicateLabelOnOnePage(t *testing.T) {
	ctx := context.Background()
	f := &fixture{page: staticPage(t, "form.html", contactsPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())

	snap, err := f.page.Snapshot(ctx)
	require.NoError(t, err)
	var ids []string
	for _, e := range snap.Elements {
		if e.Label == "Email" {
			ids = append(ids, e.ID)
		}
	}
	require.Len(t, ids, 2)

	sum, err := tr.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, types.StatusCompleted, sum.Status)
	assert.Equal(t, []string{"email"}, sum.ResolvedLabels())
	assert.Equal(t, []string{"email"}, sum.DeferredLabels())
	assert.Equal(t, []string{"email"}, sum.DuplicateLabels)
	assert.False(t, sum.Complete(), "the repeated field is still open")

	skipped := f.events.ofType(types.EventTypeFieldSkipped)
	require.Len(t, skipped, 1)
	assert.Equal(t, types.SkipRepeatedOnPage, skipped[0].Metadata["reason"])
	assert.Equal(t, ids[1], skipped[0].Field.ID)
}

func TestDuplicateLabelAnsweredIsNotLearned(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mgr *confirm.Manager
	mgr = confirm.NewManager(time.Second, func(e *types.FillEvent) {
		if e.Type == types.EventTypeConfirmationRequest {
			mgr.Respond(types.NewConfirmationResponse(e.ConfirmationID, "guardian@example.com"))
		}
	})
	f := &fixture{page: staticPage(t, "form.html", contactsPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig(), WithConfirmations(mgr))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Complete())
	require.Len(t, sum.Resolved, 2)
	assert.Equal(t, "aakriti@example.com", sum.Resolved[0].Value)
	assert.Equal(t, "guardian@example.com", sum.Resolved[1].Value)
	assert.Empty(t, sum.Learned)
	_, ok := f.store.Get("email")
	assert.False(t, ok, "a repeated label must not overwrite the learned answer")
}

func TestOperatorEditLearned(t *testing.T) {
	ctx := context.Background()
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	cfg := testConfig()
	cfg.AutoAdvance = false
	cfg.NavigationTimeout = 5 * time.Second
	tr := newTracker(t, f, cfg)

	operator := make(chan error, 1)
	go func() {
		for tr.State() != types.StateAwaitingNavigation {
			time.Sleep(5 * time.Millisecond)
		}
		snap, err := f.page.Snapshot(ctx)
		if err != nil {
			operator <- err
			return
		}
		for _, e := range snap.Elements {
			if e.Label == "Favorite Pet" {
				if err := f.page.SetValue(ctx, e.ID, "cat"); err != nil {
					operator <- err
					return
				}
			}
		}
		time.Sleep(100 * time.Millisecond)
		for _, b := range snap.Buttons {
			if b.Label == "Next" {
				operator <- f.page.Click(ctx, b.ID)
				return
			}
		}
		operator <- errors.New("no Next button")
	}()

	sum, err := tr.Run(ctx)
	require.NoError(t, err)
	require.NoError(t, <-operator)

	assert.Equal(t, types.StateCompleted, sum.State)
	assert.True(t, sum.Complete())
	require.Len(t, sum.Resolved, 3)
	var pet types.FieldOutcome
	for _, o := range sum.Resolved {
		if o.Label == "favorite pet" {
			pet = o
		}
	}
	assert.Equal(t, "cat", pet.Value)
	assert.Equal(t, types.SourceOperator, pet.Source)

	got, ok := f.store.Get("favorite pet")
	require.True(t, ok)
	assert.Equal(t, "cat", got.Value)
	assert.Equal(t, types.ProvenanceConfirmed, got.Provenance)
}

func TestProgressiveDisclosure(t *testing.T) {
	const form = `<html><body><form action="done.html">
  <label for="fn">First Name</label><input id="fn" data-reveals="more">
  <div id="more" hidden><label for="em">Email</label><input id="em" type="email"></div>
  <button type="submit">Submit</button></form></body></html>`
	f := &fixture{page: staticPage(t, "form.html", form, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"first name", "email"}, sum.ResolvedLabels())
	require.Len(t, sum.Pages, 1)
	assert.Equal(t, 1, sum.Pages[0].Rescans)
	assert.Equal(t, 2, sum.Pages[0].Fields)
}

func TestDeadEnd(t *testing.T) {
	const form = `<html><body><form action="blank.html">
  <label for="fn">First Name</label><input id="fn">
  <button type="submit">Submit</button></form></body></html>`
	f := &fixture{page: staticPage(t, "form.html", form, "blank.html", `<html><body><p>Hmm.</p></body></html>`)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.True(t, errors.Is(sum.Err, ErrDeadEnd))
	assert.Equal(t, []string{"first name"}, sum.ResolvedLabels())
}

func TestPageLimit(t *testing.T) {
	const loop = `<html><body>
  <label for="fn">First Name</label><input id="fn">
  <button data-next="b.html">Next</button></body></html>`
	const loopB = `<html><body>
  <label for="em">Email</label><input id="em">
  <button data-next="a.html">Next</button></body></html>`
	f := &fixture{page: staticPage(t, "a.html", loop, "b.html", loopB)}
	cfg := testConfig()
	cfg.MaxPages = 3
	tr := newTracker(t, f, cfg)

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.True(t, errors.Is(sum.Err, ErrPageLimit))
	assert.Len(t, sum.Pages, 3)
}

func TestPageUnavailableAbandons(t *testing.T) {
	const form = `<html><body>
  <label for="fn">First Name</label><input id="fn">
  <button data-next="gone.html">Next</button></body></html>`
	f := &fixture{page: staticPage(t, "form.html", form)}
	tr := newTracker(t, f, testConfig())

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.True(t, errors.Is(sum.Err, browser.ErrPageUnavailable))
	assert.Len(t, f.events.ofType(types.EventTypeError), 1)
}

func TestRunTwice(t *testing.T) {
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())
	_, err := tr.Run(context.Background())
	require.NoError(t, err)

	_, err = tr.Run(context.Background())
	assert.True(t, errors.Is(err, ErrAlreadyStarted))
}

func TestCancelBeforeRun(t *testing.T) {
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig())
	tr.Cancel()

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.Equal(t, ErrCancelled.Error(), sum.Reason)
	assert.Empty(t, sum.Resolved)
}

func TestContextCancelledAbandons(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}

	sum, err := newTracker(t, f, testConfig()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.True(t, errors.Is(sum.Err, context.Canceled))
}

func TestConfirmationAnswered(t *testing.T) {
	defer goleak.VerifyNone(t)

	var mgr *confirm.Manager
	mgr = confirm.NewManager(time.Second, func(e *types.FillEvent) {
		if e.Type == types.EventTypeConfirmationRequest {
			mgr.Respond(types.NewConfirmationResponse(e.ConfirmationID, "cat"))
		}
	})
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig(), WithConfirmations(mgr))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, sum.Complete())
	assert.Equal(t, []string{"first name", "favorite pet", "country"}, sum.ResolvedLabels())
	pet := sum.Resolved[1]
	assert.Equal(t, types.SourceOperator, pet.Source)
	assert.Equal(t, "cat", pet.Value)

	require.Len(t, sum.Learned, 1)
	assert.Equal(t, "favorite pet", sum.Learned[0].Label)
	got, ok := f.store.Get("favorite pet")
	require.True(t, ok)
	assert.Equal(t, "cat", got.Value)
	assert.Len(t, f.events.ofType(types.EventTypeMappingLearned), 1)
}

func TestConfirmationTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	events := &recorder{}
	mgr := confirm.NewManager(20*time.Millisecond, events.emit)
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig(), WithConfirmations(mgr))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.StateCompleted, sum.State)
	assert.Equal(t, []string{"favorite pet"}, sum.DeferredLabels())
	assert.Len(t, events.ofType(types.EventTypeConfirmationTimeout), 1)
	assert.Empty(t, mgr.Pending())
}

func TestCancelWhileAwaitingConfirmation(t *testing.T) {
	defer goleak.VerifyNone(t)

	var tr *Tracker
	mgr := confirm.NewManager(0, func(e *types.FillEvent) {
		if e.Type == types.EventTypeConfirmationRequest {
			tr.Cancel()
		}
	})
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr = newTracker(t, f, testConfig(), WithConfirmations(mgr))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, types.StateAbandoned, sum.State)
	assert.True(t, errors.Is(sum.Err, ErrCancelled))
	assert.Equal(t, []string{"first name", "country"}, sum.ResolvedLabels())
	assert.Equal(t, []string{"favorite pet"}, sum.DeferredLabels())
}

func TestConfirmDuringRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	type reply struct {
		m   types.LearnedMapping
		err error
	}
	replies := make(chan reply, 1)

	var tr *Tracker
	mgr := confirm.NewManager(0, func(e *types.FillEvent) {
		if e.Type == types.EventTypeConfirmationRequest {
			go func() {
				m, err := tr.Confirm(context.Background(), "Favorite Pet", "dog")
				replies <- reply{m, err}
			}()
		}
	})
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr = newTracker(t, f, testConfig(), WithConfirmations(mgr))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	r := <-replies
	require.NoError(t, r.err)
	assert.Equal(t, "dog", r.m.Value)
	assert.True(t, sum.Complete())
	assert.Equal(t, "dog", sum.Resolved[1].Value)
	assert.Empty(t, mgr.Pending())
}

type fakeSuggester struct {
	answers map[string]string
	asked   []types.FieldDescriptor
}

func (s *fakeSuggester) Suggest(_ context.Context, _ *profile.Profile, fields []types.FieldDescriptor) (map[string]string, error) {
	s.asked = append(s.asked, fields...)
	return s.answers, nil
}

func TestSuggestionsAttachedNeverWritten(t *testing.T) {
	s := &fakeSuggester{answers: map[string]string{"favorite pet": "cat"}}
	f := &fixture{page: staticPage(t, "form.html", applicationPage, "done.html", donePage)}
	tr := newTracker(t, f, testConfig(), WithSuggester(s, testProfile()))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, s.asked, 1)
	assert.Equal(t, "favorite pet", s.asked[0].Label)
	require.Len(t, sum.Deferred, 1)
	assert.Equal(t, "cat", sum.Deferred[0].Suggestion)
	assert.Empty(t, sum.Deferred[0].Value)

	deferred := f.events.ofType(types.EventTypeFieldDeferred)
	require.Len(t, deferred, 1)
	assert.Equal(t, "cat", deferred[0].Suggestion)
}

type fakeTemplates struct {
	tpl  templates.Template
	used []string
}

func (f *fakeTemplates) ForURL(url string) (templates.Template, bool) {
	return f.tpl, f.tpl.Matches(url)
}

func (f *fakeTemplates) MarkUsed(name string) error {
	f.used = append(f.used, name)
	return nil
}

func TestTemplateAddsLabels(t *testing.T) {
	const form = `<html><body><form action="done.html">
  <label for="pn">Pupil Identifier</label><input id="pn">
  <button type="submit">Submit</button></form></body></html>`
	src := &fakeTemplates{tpl: templates.Template{
		Name:          "school",
		SiteURL:       "form.html",
		FieldMappings: map[string]string{"Pupil Identifier": "full_name"},
	}}
	f := &fixture{page: staticPage(t, "form.html", form, "done.html", donePage)}
	tr := newTracker(t, f, testConfig(), WithTemplates(src))

	sum, err := tr.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, sum.Resolved, 1)
	assert.Equal(t, "Aakriti Sharma", sum.Resolved[0].Value)
	assert.Equal(t, "full_name", sum.Resolved[0].Key)
	assert.Equal(t, []string{"school"}, sum.Templates)
	assert.Equal(t, []string{"school"}, src.used)
}
