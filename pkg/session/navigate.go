package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/entrhq/autofill/pkg/writer"
)

// waitSlice bounds one WaitForChange call so Confirm calls are served
// while the tracker waits for a navigation.
const waitSlice = time.Second

// advance triggers the continue control (with AutoAdvance) and waits for
// the next page. A page that changes but shows no fields yet is rescanned
// up to MaxRescans times before it is handed back.
func (t *Tracker) advance(ctx context.Context) (*extractor.Page, error) {
	t.drain(ctx)
	if err := t.interrupted(ctx); err != nil {
		return nil, err
	}

	current, err := t.scan(ctx)
	if err != nil {
		return nil, err
	}
	t.watchEdits(ctx, current.Fields)
	// Field ids go stale once navigation starts.
	t.fields = nil

	if t.cfg.AutoAdvance {
		btn, ok := extractor.ContinueControl(current.Snapshot, t.cfg.ContinueLabels)
		if ok {
			t.logger.Infof("page %d filled, clicking %q", t.pageIndex+1, btn.Label)
			t.emit(types.NewNavigationStartedEvent(t.id, t.pageIndex, btn.Label))
			if err := t.click(ctx, btn.ID); err != nil {
				if fatal(err) {
					return nil, err
				}
				t.logger.Warnf("click %q: %v", btn.Label, err)
			}
		} else {
			t.logger.Warnf("no continue control on page %d, waiting for the operator", t.pageIndex+1)
		}
	}

	snap, err := t.waitForChange(ctx, current.Signature)
	t.takeEdits(ctx)
	if err != nil {
		return nil, err
	}
	next := &extractor.Page{Snapshot: snap, Fields: extractor.Describe(snap), Signature: browser.Fingerprint(snap)}
	t.emit(types.NewPageChangedEvent(t.id, t.pageIndex+1, snap.URL, next.Signature))

	for i := 0; len(next.Fields) == 0 && i < t.cfg.MaxRescans; i++ {
		if _, done := extractor.Confirmation(next.Snapshot, t.cfg.ConfirmationPatterns); done {
			break
		}
		if err := sleep(ctx, t.cfg.PollInterval); err != nil {
			return nil, err
		}
		if next, err = t.scan(ctx); err != nil {
			return nil, err
		}
	}
	return next, nil
}

func (t *Tracker) click(ctx context.Context, id string) error {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.NavigationTimeout)
	defer cancel()
	return t.page.Click(cctx, id)
}

// waitForChange polls until the page signature differs from since or
// NavigationTimeout passes.
func (t *Tracker) waitForChange(ctx context.Context, since string) (*browser.Snapshot, error) {
	deadline := time.Now().Add(t.cfg.NavigationTimeout)
	for {
		t.drain(ctx)
		if err := t.interrupted(ctx); err != nil {
			return nil, err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w after %s", ErrNavigationTimeout, t.cfg.NavigationTimeout)
		}
		snap, err := browser.Watch(ctx, t.page, since, min(remaining, waitSlice), t.cfg.PollInterval, func(s *browser.Snapshot) {
			t.watchEdits(ctx, extractor.Describe(s))
		})
		switch {
		case err == nil:
			return snap, nil
		case !errors.Is(err, browser.ErrNoChange):
			return nil, err
		}
	}
}

// editSettle is how long a typed value must stay unchanged before it is
// taken as the operator's answer. Values still settling are taken when
// the page navigates away.
const editSettle = time.Second

// watchEdits follows values the operator types into fields of the current
// page the tracker left open, could not write, or filled from a soft match.
// The first observation of a field is its baseline.
func (t *Tracker) watchEdits(ctx context.Context, fields []types.FieldDescriptor) {
	now := time.Now()
	for _, d := range fields {
		rec, ok := t.current[pageKey(d)]
		if !ok || rec.page != t.pageIndex || !rec.watched() {
			continue
		}
		live := strings.TrimSpace(d.Value)
		switch {
		case !rec.hasBaseline:
			rec.baseline, rec.hasBaseline = live, true
		case live == "" || writer.Equivalent(live, rec.baseline):
			rec.edit = ""
		case live != rec.edit:
			rec.edit, rec.editSince = live, now
		case now.Sub(rec.editSince) >= editSettle:
			t.takeEdit(ctx, rec)
		}
	}
}

// takeEdits takes every edit still settling on the current page.
func (t *Tracker) takeEdits(ctx context.Context) {
	for _, rec := range t.records {
		if rec.page == t.pageIndex && rec.edit != "" {
			t.takeEdit(ctx, rec)
		}
	}
}

// takeEdit resolves rec with the value the operator typed and hands it to
// the learning gate as a confirmed answer.
func (t *Tracker) takeEdit(ctx context.Context, rec *record) {
	value := rec.edit
	rec.edit = ""
	rec.baseline = value
	rec.edited = true
	rec.match = types.MatchResult{Value: value, Confidence: 1, Source: types.SourceOperator}
	if rec.field.Kind == types.KindMultiChoice {
		rec.match.Values = types.SplitValues(value)
	}
	t.logger.Infof("operator entered %q for %q", value, rec.field.Label)
	if _, err := t.resolve(ctx, rec, value, true); err != nil {
		t.logger.Warnf("edit of %q: %v", rec.field.Label, err)
	}
}

type confirmRequest struct {
	label string
	value string
	reply chan confirmReply
}

type confirmReply struct {
	mapping types.LearnedMapping
	err     error
}

// Confirm supplies the operator's value for a label. While the session
// runs and the field is on the current page, the value is written there
// (replacing a soft match) and learned. Otherwise it is learned for the
// next time the label is seen. Confirm blocks until the tracker reaches a
// point where it can act on the answer.
func (t *Tracker) Confirm(ctx context.Context, l, value string) (types.LearnedMapping, error) {
	t.mu.Lock()
	running := t.running
	t.mu.Unlock()

	if running {
		req := confirmRequest{label: l, value: value, reply: make(chan confirmReply, 1)}
		select {
		case t.confirmCh <- req:
			select {
			case r := <-req.reply:
				return r.mapping, r.err
			case <-ctx.Done():
				return types.LearnedMapping{}, ctx.Err()
			}
		case <-t.finished:
		case <-ctx.Done():
			return types.LearnedMapping{}, ctx.Err()
		}
	}
	return t.confirmOutOfBand(ctx, label.Normalize(l), value)
}

func (t *Tracker) confirmOutOfBand(ctx context.Context, l, value string) (types.LearnedMapping, error) {
	if t.gate == nil {
		return types.LearnedMapping{}, ErrLearningDisabled
	}
	return t.gate.ConfirmOutOfBand(ctx, l, value)
}

// drain serves the Confirm calls already waiting. It runs only on the Run
// goroutine, between DOM operations.
func (t *Tracker) drain(ctx context.Context) {
	for {
		select {
		case req := <-t.confirmCh:
			t.serveConfirm(ctx, req)
		default:
			return
		}
	}
}

func (t *Tracker) serveConfirm(ctx context.Context, req confirmRequest) {
	l := label.Normalize(req.label)
	var target *record
	var live types.FieldDescriptor
	for _, d := range t.fields {
		if d.Label != l {
			continue
		}
		rec, ok := t.current[pageKey(d)]
		if !ok || rec.page != t.pageIndex {
			continue
		}
		// the first open control with the label wins
		if target == nil || (target.status == statusResolved && rec.status != statusResolved) {
			target, live = rec, d
		}
	}
	if target != nil {
		// the latest scan carries the live element id
		target.field = live
		m, err := t.applyAnswer(ctx, target, req.value)
		req.reply <- confirmReply{m, err}
		return
	}

	m, err := t.confirmOutOfBand(context.WithoutCancel(ctx), l, req.value)
	if err == nil {
		t.learned(m)
	}
	req.reply <- confirmReply{m, err}
}
