package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/playwright-community/playwright-go"
)

// PlaywrightPage drives a Chromium tab through Playwright.
type PlaywrightPage struct {
	pw       *playwright.Playwright
	browser  playwright.Browser
	page     playwright.Page
	attached bool
}

// OpenPlaywright attaches to the browser at opts.RemoteURL (or the local
// debug port) over CDP, or launches Chromium when neither is set. The tab
// showing opts.StartURL is reused if one is open; otherwise the most recent
// tab is used and navigated to StartURL.
func OpenPlaywright(ctx context.Context, opts Options) (*PlaywrightPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Driver output is discarded so it does not interleave with the prompt.
	runOpts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(runOpts); err != nil {
		return nil, fmt.Errorf("failed to install playwright: %w", err)
	}
	pw, err := playwright.Run(runOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	p := &PlaywrightPage{pw: pw}
	if endpoint := opts.endpoint(); endpoint != "" {
		p.browser, err = pw.Chromium.ConnectOverCDP(endpoint)
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("%w: connect to %s: %v", ErrPageUnavailable, endpoint, err)
		}
		p.attached = true
	} else {
		headless := opts.Headless
		p.browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
			Headless: &headless,
		})
		if err != nil {
			_ = pw.Stop()
			return nil, fmt.Errorf("failed to launch browser: %w", err)
		}
	}

	if err := p.pickPage(opts.StartURL); err != nil {
		_ = p.Close()
		return nil, err
	}
	if opts.Timeout > 0 {
		p.page.SetDefaultTimeout(float64(opts.Timeout.Milliseconds()))
	}
	return p, nil
}

func (p *PlaywrightPage) pickPage(startURL string) error {
	var pages []playwright.Page
	for _, bc := range p.browser.Contexts() {
		pages = append(pages, bc.Pages()...)
	}
	for _, pg := range pages {
		if startURL != "" && pg.URL() == startURL {
			p.page = pg
			return nil
		}
	}

	if len(pages) > 0 {
		p.page = pages[len(pages)-1]
	} else {
		bc, err := p.browser.NewContext()
		if err != nil {
			return fmt.Errorf("failed to create context: %w", err)
		}
		if p.page, err = bc.NewPage(); err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
	}

	if startURL == "" {
		return nil
	}
	waitUntil := playwright.WaitUntilStateDomcontentloaded
	if _, err := p.page.Goto(startURL, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// check maps a driver error onto ErrPageUnavailable when the tab is gone.
func (p *PlaywrightPage) check(op string, err error) error {
	if err == nil {
		return nil
	}
	if p.page == nil || p.page.IsClosed() || !p.browser.IsConnected() {
		return fmt.Errorf("%s: %w: %v", op, ErrPageUnavailable, err)
	}
	return fmt.Errorf("%s failed: %w", op, err)
}

// Snapshot implements Page.
func (p *PlaywrightPage) Snapshot(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := p.page.Evaluate(snapshotScript)
	if err != nil {
		return nil, p.check("snapshot", err)
	}
	// The result arrives as generic maps; round-trip through JSON to type it.
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// SetValue implements Page.
func (p *PlaywrightPage) SetValue(ctx context.Context, id, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.check("fill", p.page.Fill(selector(id), value))
}

// Select implements Page.
func (p *PlaywrightPage) Select(ctx context.Context, id, option string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	res, err := p.page.Evaluate(selectScript, map[string]string{"id": id, "label": option})
	if err != nil {
		return p.check("select", err)
	}
	switch hit := res.(type) {
	case nil:
		return fmt.Errorf("select %s: %w", id, ErrElementNotFound)
	case bool:
		if !hit {
			return fmt.Errorf("select %s: no option %q", id, option)
		}
	}
	return nil
}

// ReadValue implements Page.
func (p *PlaywrightPage) ReadValue(ctx context.Context, id string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	res, err := p.page.Evaluate(readValueScript, id)
	if err != nil {
		return "", p.check("read", err)
	}
	if res == nil {
		return "", fmt.Errorf("read %s: %w", id, ErrElementNotFound)
	}
	s, _ := res.(string)
	return s, nil
}

// Click implements Page. Controls hidden behind custom styling are clicked
// through the DOM when the pointer click is refused.
func (p *PlaywrightPage) Click(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := p.page.Click(selector(id))
	if err == nil {
		return nil
	}
	if errors.Is(p.check("click", err), ErrPageUnavailable) {
		return p.check("click", err)
	}
	res, evalErr := p.page.Evaluate(clickScript, id)
	if evalErr != nil {
		return p.check("click", evalErr)
	}
	if ok, _ := res.(bool); !ok {
		return fmt.Errorf("click %s: %w", id, ErrElementNotFound)
	}
	return nil
}

// Checked implements Page.
func (p *PlaywrightPage) Checked(ctx context.Context, id string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	res, err := p.page.Evaluate(checkedScript, id)
	if err != nil {
		return false, p.check("checked", err)
	}
	if res == nil {
		return false, fmt.Errorf("checked %s: %w", id, ErrElementNotFound)
	}
	on, _ := res.(bool)
	return on, nil
}

// Close implements Page. An attached browser is left running.
func (p *PlaywrightPage) Close() error {
	var errs []error
	if p.browser != nil && !p.attached {
		errs = append(errs, p.browser.Close())
	}
	if p.pw != nil {
		errs = append(errs, p.pw.Stop())
	}
	return errors.Join(errs...)
}
