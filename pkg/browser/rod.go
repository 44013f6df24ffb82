package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// RodPage drives a Chromium tab through go-rod.
type RodPage struct {
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
	opts     Options
}

// OpenRod attaches to the browser behind opts.RemoteURL or the debug port,
// or launches one.
func OpenRod(ctx context.Context, opts Options) (*RodPage, error) {
	r := &RodPage{opts: opts}

	var controlURL string
	var err error
	if endpoint := opts.endpoint(); endpoint != "" {
		controlURL, err = launcher.ResolveURL(strings.TrimPrefix(endpoint, "http://"))
		if err != nil {
			return nil, fmt.Errorf("%w: resolve %s: %v", ErrPageUnavailable, endpoint, err)
		}
	} else {
		r.launcher = launcher.New().Headless(opts.Headless)
		controlURL, err = r.launcher.Launch()
		if err != nil {
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	r.browser = rod.New().ControlURL(controlURL).Context(ctx)
	if err := r.browser.Connect(); err != nil {
		r.cleanup()
		return nil, fmt.Errorf("%w: connect to chrome: %v", ErrPageUnavailable, err)
	}

	if err := r.pickPage(opts.StartURL); err != nil {
		_ = r.Close()
		return nil, err
	}
	return r, nil
}

func (r *RodPage) pickPage(startURL string) error {
	pages, err := r.browser.Pages()
	if err != nil {
		return fmt.Errorf("list pages: %w", err)
	}
	for _, pg := range pages {
		info, err := pg.Info()
		if err == nil && startURL != "" && info.URL == startURL {
			r.page = pg
			return nil
		}
	}

	if len(pages) > 0 {
		r.page = pages.First()
	} else if r.page, err = r.browser.Page(proto.TargetCreateTarget{}); err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	if startURL == "" {
		return nil
	}
	if err := r.page.Navigate(startURL); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return r.page.WaitLoad()
}

func (r *RodPage) bound(ctx context.Context) *rod.Page {
	p := r.page.Context(ctx)
	if r.opts.Timeout > 0 {
		p = p.Timeout(r.opts.Timeout)
	}
	return p
}

// check maps a CDP error onto ErrPageUnavailable when the target is gone.
func (r *RodPage) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if _, infoErr := r.page.Info(); infoErr != nil {
		return fmt.Errorf("%s: %w: %v", op, ErrPageUnavailable, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

func (r *RodPage) eval(ctx context.Context, js string, args ...interface{}) (*proto.RuntimeRemoteObject, error) {
	return r.bound(ctx).Evaluate(&rod.EvalOptions{
		JS:           js,
		JSArgs:       args,
		ByValue:      true,
		AwaitPromise: true,
	})
}

// Snapshot implements Page.
func (r *RodPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	res, err := r.eval(ctx, snapshotScript)
	if err != nil {
		return nil, r.check("snapshot", err)
	}
	if res == nil {
		return nil, fmt.Errorf("snapshot returned no result")
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

func (r *RodPage) element(ctx context.Context, id string) (*rod.Element, error) {
	has, el, err := r.bound(ctx).Has(selector(id))
	if err != nil {
		return nil, r.check("find", err)
	}
	if !has {
		return nil, fmt.Errorf("find %s: %w", id, ErrElementNotFound)
	}
	return el, nil
}

// SetValue implements Page. The value is typed so input handlers fire.
func (r *RodPage) SetValue(ctx context.Context, id, value string) error {
	el, err := r.element(ctx, id)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return r.check("fill", err)
	}
	return r.check("fill", el.Input(value))
}

// Select implements Page.
func (r *RodPage) Select(ctx context.Context, id, option string) error {
	res, err := r.eval(ctx, selectScript, map[string]string{"id": id, "label": option})
	if err != nil {
		return r.check("select", err)
	}
	if res.Value.Nil() {
		return fmt.Errorf("select %s: %w", id, ErrElementNotFound)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("select %s: no option %q", id, option)
	}
	return nil
}

// ReadValue implements Page.
func (r *RodPage) ReadValue(ctx context.Context, id string) (string, error) {
	res, err := r.eval(ctx, readValueScript, id)
	if err != nil {
		return "", r.check("read", err)
	}
	if res.Value.Nil() {
		return "", fmt.Errorf("read %s: %w", id, ErrElementNotFound)
	}
	return res.Value.Str(), nil
}

// Click implements Page, falling back to a DOM click for covered controls.
func (r *RodPage) Click(ctx context.Context, id string) error {
	el, err := r.element(ctx, id)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err == nil {
		return nil
	}
	res, err := r.eval(ctx, clickScript, id)
	if err != nil {
		return r.check("click", err)
	}
	if !res.Value.Bool() {
		return fmt.Errorf("click %s: %w", id, ErrElementNotFound)
	}
	return nil
}

// Checked implements Page.
func (r *RodPage) Checked(ctx context.Context, id string) (bool, error) {
	res, err := r.eval(ctx, checkedScript, id)
	if err != nil {
		return false, r.check("checked", err)
	}
	if res.Value.Nil() {
		return false, fmt.Errorf("checked %s: %w", id, ErrElementNotFound)
	}
	return res.Value.Bool(), nil
}

// Close implements Page. An attached browser is left running.
func (r *RodPage) Close() error {
	if r.launcher == nil {
		return nil
	}
	err := r.browser.Close()
	r.cleanup()
	return err
}

func (r *RodPage) cleanup() {
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher.Cleanup()
	}
}
