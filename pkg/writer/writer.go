// Package writer puts a matched value into a page control and verifies the
// page accepted it.
package writer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/similarity"
	"github.com/entrhq/autofill/pkg/types"
)

// ErrFieldWriteRejected means the control did not hold the value after a
// write and one retry.
var ErrFieldWriteRejected = errors.New("field write rejected")

// DefaultSettleDelay is the pause before the single retry.
const DefaultSettleDelay = 300 * time.Millisecond

// Writer is stateless apart from its configuration.
type Writer struct {
	scorer similarity.Scorer
	floor  float64
	settle time.Duration
	logger *logging.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithScorer sets the comparator used to pick options. Pass the matcher's
// scorer so options are judged the way labels are.
func WithScorer(s similarity.Scorer) Option {
	return func(w *Writer) {
		if s != nil {
			w.scorer = s
		}
	}
}

// WithFloor sets the minimum similarity for an option to be picked.
func WithFloor(f float64) Option {
	return func(w *Writer) { w.floor = f }
}

// WithSettleDelay sets the pause before retrying a rejected write.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Writer) { w.settle = d }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// New creates a Writer.
func New(opts ...Option) *Writer {
	w := &Writer{
		scorer: similarity.Blend(),
		floor:  0.5,
		settle: DefaultSettleDelay,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write fills d with the value in m. A rejected write is retried once
// after the settle delay, against the control as the page renders it then.
// An unreachable page is returned at once wrapped in
// browser.ErrPageUnavailable.
func (w *Writer) Write(ctx context.Context, page browser.Page, d types.FieldDescriptor, m types.MatchResult) error {
	err := w.attempt(ctx, page, d, m)
	if err == nil {
		return nil
	}
	if fatal(ctx, err) {
		return err
	}

	w.logger.Debugf("write to %q rejected (%v), retrying in %s", d.Label, err, w.settle)
	if err := sleep(ctx, w.settle); err != nil {
		return err
	}

	live, err := refresh(ctx, page, d)
	if err != nil {
		return err
	}
	err = w.attempt(ctx, page, live, m)
	if err == nil {
		return nil
	}
	if fatal(ctx, err) {
		return err
	}
	return fmt.Errorf("%w: %q: %v", ErrFieldWriteRejected, d.Label, err)
}

// refresh re-reads d from the page so the retry sees options and ids
// rendered since the scan. The element with d's id wins, then the first
// field with d's label and kind. d is kept when neither is on the page.
func refresh(ctx context.Context, page browser.Page, d types.FieldDescriptor) (types.FieldDescriptor, error) {
	snap, err := page.Snapshot(ctx)
	if err != nil {
		if fatal(ctx, err) {
			return d, err
		}
		return d, nil
	}
	fields := extractor.Describe(snap)
	for _, f := range fields {
		if f.ID == d.ID && f.Kind == d.Kind {
			return f, nil
		}
	}
	for _, f := range fields {
		if f.Identity() == d.Identity() {
			return f, nil
		}
	}
	return d, nil
}

func fatal(ctx context.Context, err error) bool {
	return errors.Is(err, browser.ErrPageUnavailable) || ctx.Err() != nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Writer) attempt(ctx context.Context, page browser.Page, d types.FieldDescriptor, m types.MatchResult) error {
	switch d.Kind {
	case types.KindShortText, types.KindLongText:
		return w.writeText(ctx, page, d, m.Value)
	case types.KindDropdown:
		return w.writeDropdown(ctx, page, d, m.Value)
	case types.KindSingleChoice:
		return w.writeSingle(ctx, page, d, m.Value)
	case types.KindMultiChoice:
		values := m.Values
		if len(values) == 0 {
			values = types.SplitValues(m.Value)
		}
		return w.writeMulti(ctx, page, d, values)
	default:
		return fmt.Errorf("unsupported control kind %q", d.Kind)
	}
}

func (w *Writer) writeText(ctx context.Context, page browser.Page, d types.FieldDescriptor, value string) error {
	if err := page.SetValue(ctx, d.ID, value); err != nil {
		return err
	}
	got, err := page.ReadValue(ctx, d.ID)
	if err != nil {
		return err
	}
	if !Equivalent(got, value) {
		return fmt.Errorf("page holds %q after writing %q", got, value)
	}
	return nil
}

func (w *Writer) writeDropdown(ctx context.Context, page browser.Page, d types.FieldDescriptor, value string) error {
	opt, ok := w.BestOption(d.Options, value)
	if !ok {
		return fmt.Errorf("no option matches %q", value)
	}
	if err := page.Select(ctx, d.ID, opt.Label); err != nil {
		return err
	}
	got, err := page.ReadValue(ctx, d.ID)
	if err != nil {
		return err
	}
	if !Equivalent(got, opt.Label) {
		return fmt.Errorf("page shows %q after selecting %q", got, opt.Label)
	}
	return nil
}

func (w *Writer) writeSingle(ctx context.Context, page browser.Page, d types.FieldDescriptor, value string) error {
	opt, ok := w.BestOption(d.Options, value)
	if !ok {
		return fmt.Errorf("no option matches %q", value)
	}
	return w.check(ctx, page, opt)
}

func (w *Writer) writeMulti(ctx context.Context, page browser.Page, d types.FieldDescriptor, values []string) error {
	var picked []types.Option
	seen := make(map[string]bool)
	for _, v := range values {
		opt, ok := w.BestOption(d.Options, v)
		if !ok || seen[opt.Label] {
			continue
		}
		seen[opt.Label] = true
		picked = append(picked, opt)
	}
	if len(picked) == 0 {
		return fmt.Errorf("no option matches any of %q", values)
	}

	for _, opt := range picked {
		if opt.ID == "" {
			// option of a multi select
			if err := page.Select(ctx, d.ID, opt.Label); err != nil {
				return err
			}
			continue
		}
		if err := w.check(ctx, page, opt); err != nil {
			return err
		}
	}

	if picked[0].ID == "" {
		got, err := page.ReadValue(ctx, d.ID)
		if err != nil {
			return err
		}
		for _, opt := range picked {
			if !containsItem(got, opt.Label) {
				return fmt.Errorf("page shows %q, missing %q", got, opt.Label)
			}
		}
	}
	return nil
}

// check clicks a radio or checkbox unless it is already on, then verifies
// it is on.
func (w *Writer) check(ctx context.Context, page browser.Page, opt types.Option) error {
	on, err := page.Checked(ctx, opt.ID)
	if err != nil {
		return err
	}
	if !on {
		if err := page.Click(ctx, opt.ID); err != nil {
			return err
		}
		if on, err = page.Checked(ctx, opt.ID); err != nil {
			return err
		}
	}
	if !on {
		return fmt.Errorf("option %q did not stay selected", opt.Label)
	}
	return nil
}

// BestOption returns the option whose label is most similar to value. An
// exact match on the option's label or submitted value always wins; other
// options must reach the floor. Ties keep page order.
func (w *Writer) BestOption(opts []types.Option, value string) (types.Option, bool) {
	want := label.Normalize(value)
	if want == "" {
		return types.Option{}, false
	}
	best, bestScore := -1, 0.0
	for i, o := range opts {
		l := label.Normalize(o.Label)
		if l == "" {
			continue
		}
		if l == want || (o.Value != "" && strings.EqualFold(o.Value, value)) {
			return o, true
		}
		if s := w.scorer.Score(want, l); s > bestScore {
			best, bestScore = i, s
		}
	}
	if best < 0 || bestScore < w.floor {
		return types.Option{}, false
	}
	return opts[best], true
}

// Equivalent reports whether a value read back from the page is the value
// written, allowing for changes in case, whitespace and separators that
// input masks introduce ("98765 43210" for "9876543210").
func Equivalent(got, want string) bool {
	if strings.Join(strings.Fields(got), " ") == strings.Join(strings.Fields(want), " ") {
		return true
	}
	if strings.EqualFold(strings.TrimSpace(got), strings.TrimSpace(want)) {
		return true
	}
	g, w := alnum(got), alnum(want)
	return g != "" && g == w
}

func alnum(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func containsItem(list, item string) bool {
	for _, part := range strings.Split(list, ",") {
		if Equivalent(part, item) {
			return true
		}
	}
	return false
}
