// Package session drives one fill session across the pages of a form: scan,
// match, validate, write, ask the operator, learn, advance. A Tracker is a
// single-goroutine state machine; every DOM mutation happens in Run.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/confidence"
	"github.com/entrhq/autofill/pkg/confirm"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/learning"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/matcher"
	"github.com/entrhq/autofill/pkg/profile"
	"github.com/entrhq/autofill/pkg/templates"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/entrhq/autofill/pkg/writer"
	"github.com/google/uuid"
)

var (
	// ErrNavigationTimeout means the page did not change after the
	// continue control was triggered.
	ErrNavigationTimeout = errors.New("navigation timeout")

	// ErrDeadEnd means a page showed neither fields nor a confirmation.
	ErrDeadEnd = errors.New("no fillable fields and no confirmation")

	// ErrPageLimit means the session reached Config.MaxPages.
	ErrPageLimit = errors.New("page limit reached")

	// ErrCancelled means Cancel was called.
	ErrCancelled = errors.New("session cancelled")

	// ErrAlreadyStarted is returned by a second Run call.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrLearningDisabled is returned by Confirm on a tracker without a
	// learning gate when the field is not on screen.
	ErrLearningDisabled = errors.New("learning is disabled")
)

// Config holds the session limits and page-reading settings.
type Config struct {
	// StartURL is reported in the session_started event. The page is
	// expected to be showing it already.
	StartURL string

	// AutoAdvance clicks the continue control after a page is filled.
	// Without it the tracker waits for the operator to navigate.
	AutoAdvance bool

	// MaxPages bounds the pages one session may visit.
	MaxPages int

	// MaxRescans bounds the extra scans of one page made to catch fields
	// that appear after others are filled.
	MaxRescans int

	NavigationTimeout time.Duration
	PollInterval      time.Duration

	// ContinueLabels and ConfirmationPatterns fall back to the extractor
	// defaults when empty.
	ContinueLabels       []string
	ConfirmationPatterns []string
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AutoAdvance:       true,
		MaxPages:          20,
		MaxRescans:        2,
		NavigationTimeout: 15 * time.Second,
		PollInterval:      250 * time.Millisecond,
	}
}

func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.MaxPages <= 0 {
		c.MaxPages = d.MaxPages
	}
	if c.MaxRescans < 0 {
		c.MaxRescans = 0
	}
	if c.NavigationTimeout <= 0 {
		c.NavigationTimeout = d.NavigationTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
}

// Suggester proposes answers for fields the matcher deferred.
type Suggester interface {
	Suggest(ctx context.Context, p *profile.Profile, fields []types.FieldDescriptor) (map[string]string, error)
}

// TemplateSource finds the site template for a page URL.
type TemplateSource interface {
	ForURL(url string) (templates.Template, bool)
	MarkUsed(name string) error
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithValidator sets the confidence thresholds.
func WithValidator(v confidence.Validator) Option {
	return func(t *Tracker) { t.validator = v }
}

// WithWriter sets the field writer.
func WithWriter(w *writer.Writer) Option {
	return func(t *Tracker) {
		if w != nil {
			t.writer = w
		}
	}
}

// WithGate enables learning.
func WithGate(g *learning.Gate) Option {
	return func(t *Tracker) { t.gate = g }
}

// WithConfirmations makes the tracker suspend on deferred fields until the
// operator answers through m or its timeout passes.
func WithConfirmations(m *confirm.Manager) Option {
	return func(t *Tracker) { t.confirmations = m }
}

// WithSuggester attaches suggested answers to confirmation requests. p is
// the profile the suggester reads.
func WithSuggester(s Suggester, p *profile.Profile) Option {
	return func(t *Tracker) {
		t.suggester = s
		t.profile = p
	}
}

// WithTemplates applies matching site templates per page.
func WithTemplates(src TemplateSource) Option {
	return func(t *Tracker) { t.templates = src }
}

// WithEmitter sets where pipeline events go.
func WithEmitter(e types.EventEmitter) Option {
	return func(t *Tracker) {
		if e != nil {
			t.emit = e
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) Option {
	return func(t *Tracker) {
		if id != "" {
			t.id = id
		}
	}
}

// Tracker runs one fill session. Create it with New, start it with Run.
type Tracker struct {
	id            string
	cfg           Config
	page          browser.Page
	matcher       *matcher.Matcher
	validator     confidence.Validator
	writer        *writer.Writer
	gate          *learning.Gate
	confirmations *confirm.Manager
	suggester     Suggester
	profile       *profile.Profile
	templates     TemplateSource
	emit          types.EventEmitter
	logger        *logging.Logger

	mu        sync.Mutex
	state     types.SessionState
	running   bool
	cancelled bool
	cancel    context.CancelFunc
	confirmCh chan confirmRequest
	finished  chan struct{}

	// owned by the Run goroutine
	sum         *Summary
	records     []*record
	resolved    map[string]*record // identity -> record, across pages
	current     map[string]*record      // page key -> record, current page
	onPage      map[string]*record      // identity -> first record, current page
	fields      []types.FieldDescriptor // latest scan of the current page
	pageIndex   int
	pageMatcher *matcher.Matcher
	applied     map[string]bool
	duplicates  map[string]bool
}

// New creates a tracker for page. m must not be nil.
func New(page browser.Page, m *matcher.Matcher, cfg Config, opts ...Option) (*Tracker, error) {
	if page == nil {
		return nil, errors.New("session: page is required")
	}
	if m == nil {
		return nil, errors.New("session: matcher is required")
	}
	cfg.applyDefaults()

	t := &Tracker{
		id:         uuid.New().String(),
		cfg:        cfg,
		page:       page,
		matcher:    m,
		validator:  confidence.Default(),
		writer:     writer.New(writer.WithScorer(m.Scorer()), writer.WithFloor(m.Floor())),
		emit:       types.DiscardEvents,
		logger:     logging.Discard(),
		state:      types.StateIdle,
		confirmCh:  make(chan confirmRequest),
		finished:   make(chan struct{}),
		resolved:   make(map[string]*record),
		applied:    make(map[string]bool),
		duplicates: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.sum = &Summary{SessionID: t.id, State: types.StateIdle, Status: types.StatusInProgress}
	return t, nil
}

// ID returns the session id.
func (t *Tracker) ID() string {
	return t.id
}

// State returns the current state.
func (t *Tracker) State() types.SessionState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Cancel stops the session. A write in flight finishes; no new field is
// started and the session ends Abandoned. Cancel before Run makes Run
// return at once.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	t.cancelled = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Done is closed when Run returns.
func (t *Tracker) Done() <-chan struct{} {
	return t.finished
}

// Run drives the session to a terminal state and returns its summary.
// Terminal failures (navigation timeout, lost page, cancellation) are
// reported in the summary, not as an error.
func (t *Tracker) Run(ctx context.Context) (*Summary, error) {
	t.mu.Lock()
	if t.state != types.StateIdle || t.running {
		t.mu.Unlock()
		return nil, ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.running = true
	cancelled := t.cancelled
	t.mu.Unlock()

	defer func() {
		cancel()
		t.mu.Lock()
		t.running = false
		t.mu.Unlock()
		close(t.finished)
	}()

	t.sum.StartedAt = time.Now()
	t.emit(types.NewSessionStartedEvent(t.id, t.cfg.StartURL))
	t.logger.Infof("session %s started", t.id)

	if cancelled {
		t.finish(types.StateAbandoned, ErrCancelled)
	} else {
		t.loop(runCtx)
	}
	return t.sum, nil
}

func (t *Tracker) loop(ctx context.Context) {
	t.transition(types.StateScanning)
	page, err := t.scan(ctx)
	if err != nil {
		t.stop(ctx, err)
		return
	}

	for {
		if t.confirmed(page) {
			t.finish(types.StateCompleted, nil)
			return
		}
		if len(page.Fields) == 0 {
			t.finish(types.StateAbandoned, ErrDeadEnd)
			return
		}
		if len(t.sum.Pages) >= t.cfg.MaxPages {
			t.finish(types.StateAbandoned, fmt.Errorf("%w (%d)", ErrPageLimit, t.cfg.MaxPages))
			return
		}

		t.visit(page)
		t.transition(types.StateFilling)
		if err := t.fillPage(ctx, page); err != nil {
			t.stop(ctx, err)
			return
		}

		t.transition(types.StateAwaitingNavigation)
		next, err := t.advance(ctx)
		if err != nil {
			t.stop(ctx, err)
			return
		}
		if t.confirmed(next) {
			t.finish(types.StateCompleted, nil)
			return
		}
		t.transition(types.StateScanning)
		page = next
	}
}

// confirmed reports whether page is the form's confirmation page.
func (t *Tracker) confirmed(page *extractor.Page) bool {
	if len(page.Fields) > 0 {
		return false
	}
	pattern, ok := extractor.Confirmation(page.Snapshot, t.cfg.ConfirmationPatterns)
	if ok {
		t.logger.Infof("confirmation found: %q", pattern)
	}
	return ok
}

// stop ends the session for err.
func (t *Tracker) stop(ctx context.Context, err error) {
	switch {
	case t.isCancelled():
		t.finish(types.StateAbandoned, ErrCancelled)
	case ctx.Err() != nil:
		t.finish(types.StateAbandoned, ctx.Err())
	case errors.Is(err, ErrNavigationTimeout):
		t.finish(types.StateTimedOut, err)
	default:
		t.finish(types.StateAbandoned, err)
	}
}

func (t *Tracker) isCancelled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cancelled
}

func (t *Tracker) transition(to types.SessionState) bool {
	t.mu.Lock()
	from := t.state
	if from.Terminal() || from == to {
		t.mu.Unlock()
		return false
	}
	t.state = to
	t.mu.Unlock()

	t.sum.State = to
	t.logger.Debugf("session %s: %s -> %s", t.id, from, to)
	t.emit(types.NewStateChangedEvent(t.id, from, to))
	return true
}

func (t *Tracker) finish(state types.SessionState, err error) {
	if !t.transition(state) {
		return
	}
	t.sum.Status = state.Status()
	t.sum.Err = err
	if err != nil {
		t.sum.Reason = err.Error()
		if state != types.StateCompleted {
			t.emit(types.NewErrorEvent(t.id, err))
		}
	}
	t.sum.FinishedAt = time.Now()
	t.sum.Duration = t.sum.FinishedAt.Sub(t.sum.StartedAt)
	t.buildSummary()

	t.logger.Infof("session %s finished: %s (%d resolved, %d deferred, %d failed) %s",
		t.id, state, len(t.sum.Resolved), len(t.sum.Deferred), len(t.sum.Failed), t.sum.Reason)
	t.emit(types.NewSessionFinishedEvent(t.id, state, t.sum.Reason))
}

func (t *Tracker) scan(ctx context.Context) (*extractor.Page, error) {
	p, err := extractor.ScanPage(ctx, t.page)
	if err == nil || errors.Is(err, browser.ErrPageUnavailable) || ctx.Err() != nil {
		return p, err
	}
	t.logger.Warnf("scan failed, retrying once: %v", err)
	if err := sleep(ctx, t.cfg.PollInterval); err != nil {
		return nil, err
	}
	return extractor.ScanPage(ctx, t.page)
}

// visit records a new page and picks the matcher for it.
func (t *Tracker) visit(page *extractor.Page) {
	t.pageIndex = len(t.sum.Pages)
	if t.pageIndex == 0 {
		t.sum.StartURL = page.Snapshot.URL
	}
	visit := types.PageVisit{
		Index:     t.pageIndex,
		URL:       page.Snapshot.URL,
		Title:     page.Snapshot.Title,
		Signature: page.Signature,
		Fields:    len(page.Fields),
		VisitedAt: time.Now(),
	}
	t.sum.Pages = append(t.sum.Pages, visit)

	t.pageMatcher = t.matcher
	if t.templates != nil {
		if tpl, ok := t.templates.ForURL(page.Snapshot.URL); ok {
			t.pageMatcher = t.matcher.WithLabels(tpl.Labels())
			if !t.applied[tpl.Name] {
				t.applied[tpl.Name] = true
				t.sum.Templates = append(t.sum.Templates, tpl.Name)
				if err := t.templates.MarkUsed(tpl.Name); err != nil {
					t.logger.Warnf("template %s: %v", tpl.Name, err)
				}
				t.logger.Infof("applying template %s to %s", tpl.Name, page.Snapshot.URL)
			}
		}
	}

	t.emit(types.NewPageScannedEvent(t.id, visit))
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
