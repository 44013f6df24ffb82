package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/extractor"
	"github.com/entrhq/autofill/pkg/learning"
	"github.com/entrhq/autofill/pkg/types"
)

type fieldStatus int

const (
	statusDeferred fieldStatus = iota
	statusFailed
	statusResolved
)

// record is what the tracker knows about one field on one page.
type record struct {
	field      types.FieldDescriptor
	page       int
	match      types.MatchResult
	decision   types.Decision
	status     fieldStatus
	value      string
	suggestion string
	confirmed  bool
	asked      bool
	err        error

	// duplicate marks a second control with the label of one already on
	// this page. It is never filled automatically nor learned from.
	duplicate bool

	// Operator edits: baseline is the value the page held when the tracker
	// finished with the page, edit a different value seen since.
	baseline    string
	hasBaseline bool
	edit        string
	editSince   time.Time
	edited      bool
}

func (r *record) outcome() types.FieldOutcome {
	o := types.FieldOutcome{
		Label:      r.field.Label,
		Kind:       r.field.Kind,
		Page:       r.page,
		Value:      r.value,
		Key:        r.match.Key,
		Source:     r.match.Source,
		Confidence: r.match.Confidence,
		Decision:   r.decision,
		Suggestion: r.suggestion,
	}
	if r.err != nil {
		o.Error = r.err.Error()
	}
	return o
}

// soft reports whether the field was written from a soft match nobody
// confirmed.
func (r *record) soft() bool {
	return r.status == statusResolved && r.decision == types.DecisionAcceptSoft && !r.confirmed
}

// leaveOpen defers the field. The value the scan saw is the baseline for
// operator edits.
func (r *record) leaveOpen() {
	r.status = statusDeferred
	r.baseline, r.hasBaseline = strings.TrimSpace(r.field.Value), true
}

// watched reports whether operator edits to the field are picked up.
func (r *record) watched() bool {
	return r.status != statusResolved || r.soft() || r.edited
}

// pageKey addresses a control on the current page. Element ids are stable
// across rescans of one document.
func pageKey(d types.FieldDescriptor) string {
	if d.ID != "" {
		return d.ID
	}
	return d.Identity()
}

// fillPage writes every field of page it can, asks about the rest, and
// rescans for fields revealed along the way.
func (t *Tracker) fillPage(ctx context.Context, page *extractor.Page) error {
	t.current = make(map[string]*record)
	t.onPage = make(map[string]*record)
	for rescans := 0; ; rescans++ {
		t.fields = page.Fields
		if err := t.pass(ctx, page.Fields); err != nil {
			return err
		}
		if err := t.resolvePending(ctx); err != nil {
			return err
		}
		if rescans >= t.cfg.MaxRescans {
			return nil
		}

		next, err := t.scan(ctx)
		if err != nil {
			return err
		}
		unseen := t.unseen(next.Fields)
		if unseen == 0 {
			t.fields = next.Fields
			return nil
		}
		t.logger.Debugf("page %d: %d new fields after rescan", t.pageIndex+1, unseen)
		visit := &t.sum.Pages[t.pageIndex]
		visit.Rescans++
		visit.Fields += unseen
		page = next
	}
}

func (t *Tracker) unseen(fields []types.FieldDescriptor) int {
	n := 0
	for _, d := range fields {
		if _, ok := t.current[pageKey(d)]; !ok {
			n++
		}
	}
	return n
}

// pass handles the fields not yet seen on this page, in page order.
func (t *Tracker) pass(ctx context.Context, fields []types.FieldDescriptor) error {
	for _, d := range fields {
		t.drain(ctx)
		if err := t.interrupted(ctx); err != nil {
			return err
		}

		key := pageKey(d)
		if _, seen := t.current[key]; seen {
			continue
		}
		id := d.Identity()
		if prev, ok := t.resolved[id]; ok && prev.page != t.pageIndex {
			t.current[key] = prev
			t.flagDuplicate(d.Label)
			t.logger.Debugf("skipping %q, resolved on page %d", d.Label, prev.page+1)
			t.emit(types.NewFieldSkippedEvent(t.id, t.pageIndex, d, &prev.match, types.SkipResolvedEarlier))
			continue
		}

		if first, ok := t.onPage[id]; ok {
			rec := &record{field: d, page: t.pageIndex, match: types.NoMatch(), decision: types.DecisionDefer, duplicate: true}
			rec.leaveOpen()
			t.current[key] = rec
			t.records = append(t.records, rec)
			t.flagDuplicate(d.Label)
			t.logger.Warnf("page %d has more than one %q, leaving the repeat for review", t.pageIndex+1, d.Label)
			t.emit(types.NewFieldSkippedEvent(t.id, t.pageIndex, d, &first.match, types.SkipRepeatedOnPage))
			continue
		}

		m := t.pageMatcher.Match(d)
		rec := &record{field: d, page: t.pageIndex, match: m, decision: t.validator.Decide(m)}
		t.current[key] = rec
		t.onPage[id] = rec
		t.records = append(t.records, rec)

		if !rec.decision.Writes() {
			rec.leaveOpen()
			continue
		}
		if err := t.write(ctx, d, m); err != nil {
			if fatal(err) {
				return err
			}
			rec.status = statusFailed
			rec.err = err
			t.logger.Warnf("field %q failed: %v", d.Label, err)
			t.emit(types.NewFieldEvent(types.EventTypeFieldFailed, t.id, t.pageIndex, d, &m, err))
			continue
		}
		if _, err := t.resolve(ctx, rec, written(m), false); err != nil {
			t.logger.Warnf("field %q: %v", d.Label, err)
		}
	}
	return nil
}

func (t *Tracker) flagDuplicate(l string) {
	if !t.duplicates[l] {
		t.duplicates[l] = true
		t.sum.DuplicateLabels = append(t.sum.DuplicateLabels, l)
	}
}

// interrupted reports why no new field may be started.
func (t *Tracker) interrupted(ctx context.Context) error {
	if t.isCancelled() {
		return ErrCancelled
	}
	return ctx.Err()
}

// write runs one field write. A cancelled session lets the write finish.
func (t *Tracker) write(ctx context.Context, d types.FieldDescriptor, m types.MatchResult) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), t.cfg.NavigationTimeout)
	defer cancel()
	return t.writer.Write(wctx, t.page, d, m)
}

func fatal(err error) bool {
	return errors.Is(err, browser.ErrPageUnavailable)
}

func written(m types.MatchResult) string {
	if m.Value != "" {
		return m.Value
	}
	return strings.Join(m.Values, ", ")
}

// resolve marks rec written with value and feeds the learning gate.
func (t *Tracker) resolve(ctx context.Context, rec *record, value string, confirmed bool) (types.LearnedMapping, error) {
	rec.status = statusResolved
	rec.value = value
	rec.confirmed = confirmed
	rec.err = nil
	if !rec.duplicate {
		t.resolved[rec.field.Identity()] = rec
	}

	evt := types.EventTypeFieldFilled
	if rec.soft() {
		evt = types.EventTypeFieldFlagged
	}
	t.emit(types.NewFieldEvent(evt, t.id, rec.page, rec.field, &rec.match, nil))

	if t.gate == nil {
		return types.LearnedMapping{}, nil
	}
	if rec.duplicate {
		t.logger.Debugf("not learning repeated label %q", rec.field.Label)
		return types.LearnedMapping{}, nil
	}
	m, ok, err := t.gate.Learn(context.WithoutCancel(ctx), learning.Outcome{
		Label:     rec.field.Label,
		Kind:      rec.field.Kind,
		Value:     value,
		Source:    rec.match.Source,
		Decision:  rec.decision,
		Confirmed: confirmed,
	})
	if err != nil || !ok {
		return types.LearnedMapping{}, err
	}
	t.learned(m)
	return m, nil
}

func (t *Tracker) learned(m types.LearnedMapping) {
	t.sum.Learned = append(t.sum.Learned, m)
	t.emit(types.NewMappingLearnedEvent(t.id, m))
}

// resolvePending reports the deferred and failed fields of this page not
// reported yet and, with confirmations enabled, asks the operator for each.
// A confirmation timeout stops the asking for the rest of the page.
func (t *Tracker) resolvePending(ctx context.Context) error {
	var pending []*record
	for _, rec := range t.records {
		if rec.page == t.pageIndex && rec.status != statusResolved && !rec.asked {
			rec.asked = true
			pending = append(pending, rec)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	suggestions := t.suggest(ctx, pending)
	for _, rec := range pending {
		rec.suggestion = suggestions[rec.field.Label]
		if rec.status == statusDeferred {
			e := types.NewFieldEvent(types.EventTypeFieldDeferred, t.id, t.pageIndex, rec.field, &rec.match, nil)
			e.Suggestion = rec.suggestion
			t.emit(e)
		}
	}

	if t.confirmations == nil {
		return nil
	}
	for _, rec := range pending {
		if err := t.interrupted(ctx); err != nil {
			return err
		}
		if rec.status == statusResolved {
			// answered through Confirm meanwhile
			continue
		}
		resp, timedOut, err := t.ask(ctx, rec)
		if err != nil {
			return err
		}
		if timedOut {
			t.logger.Warnf("confirmation for %q timed out, leaving the rest of page %d for review", rec.field.Label, t.pageIndex+1)
			return nil
		}
		if !resp.Answered() {
			continue
		}
		if _, err := t.applyAnswer(ctx, rec, resp.Value); err != nil {
			if fatal(err) {
				return err
			}
			t.logger.Warnf("answer for %q: %v", rec.field.Label, err)
		}
	}
	return nil
}

func (t *Tracker) suggest(ctx context.Context, pending []*record) map[string]string {
	if t.suggester == nil || t.profile == nil {
		return nil
	}
	fields := make([]types.FieldDescriptor, 0, len(pending))
	for _, rec := range pending {
		fields = append(fields, rec.field)
	}
	out, err := t.suggester.Suggest(ctx, t.profile, fields)
	if err != nil {
		t.logger.Warnf("suggestions unavailable: %v", err)
		return nil
	}
	return out
}

// ask waits for the operator's answer to rec while still serving Confirm
// calls. It returns nil without a timeout when rec was answered through
// Confirm or the session was cancelled.
func (t *Tracker) ask(ctx context.Context, rec *record) (*types.ConfirmationResponse, bool, error) {
	type result struct {
		resp     *types.ConfirmationResponse
		timedOut bool
	}
	askCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan result, 1)
	go func() {
		resp, timedOut := t.confirmations.Request(askCtx, t.id, t.pageIndex, rec.field, rec.suggestion)
		done <- result{resp, timedOut}
	}()

	for {
		select {
		case r := <-done:
			if err := t.interrupted(ctx); err != nil {
				return nil, false, err
			}
			return r.resp, r.timedOut, nil
		case req := <-t.confirmCh:
			t.serveConfirm(ctx, req)
			if rec.status == statusResolved {
				cancel()
				<-done
				return nil, false, nil
			}
		}
	}
}

// applyAnswer writes an operator's value into rec's field and learns it.
func (t *Tracker) applyAnswer(ctx context.Context, rec *record, value string) (types.LearnedMapping, error) {
	value = strings.TrimSpace(value)
	m := types.MatchResult{Value: value, Confidence: 1, Source: types.SourceOperator}
	if rec.field.Kind == types.KindMultiChoice {
		m.Values = types.SplitValues(value)
	}
	if err := t.write(ctx, rec.field, m); err != nil {
		if !fatal(err) && rec.status != statusResolved {
			rec.status = statusFailed
			rec.err = err
			rec.hasBaseline = false
			t.emit(types.NewFieldEvent(types.EventTypeFieldFailed, t.id, rec.page, rec.field, &m, err))
		}
		return types.LearnedMapping{}, err
	}
	rec.match = m
	return t.resolve(ctx, rec, value, true)
}

func (t *Tracker) buildSummary() {
	t.sum.Resolved, t.sum.Soft, t.sum.Deferred, t.sum.Failed = nil, nil, nil, nil
	for _, rec := range t.records {
		o := rec.outcome()
		switch rec.status {
		case statusResolved:
			t.sum.Resolved = append(t.sum.Resolved, o)
			if rec.soft() {
				t.sum.Soft = append(t.sum.Soft, o)
			}
		case statusFailed:
			t.sum.Failed = append(t.sum.Failed, o)
		default:
			t.sum.Deferred = append(t.sum.Deferred, o)
		}
	}
}
