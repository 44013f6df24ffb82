// Package browser is the boundary between the form filler and a live page.
//
// Everything above this package sees a page through the Page interface: a
// Snapshot of the fillable controls and buttons currently rendered, plus a
// handful of primitive writes addressed by element id. Element ids are
// stamped onto the DOM by the snapshot script (data-autofill-id) so they stay
// stable across rescans of the same document but do not survive navigation.
//
// # Drivers
//
// Three drivers implement Page:
//
//   - playwright: attaches to a running Chromium over CDP, or launches one
//   - rod: the same over go-rod, for machines without the Playwright driver
//   - html: a static in-memory page parsed with x/net/html, used by
//     "autofill inspect" and by tests
//
// Open selects a driver from Options.
//
// # Failure model
//
// A driver returns ErrPageUnavailable (wrapped) once the page or its browser
// is gone. Callers treat it as fatal for the session. Any other error is
// transient and may be retried.
//
// # Example Usage
//
//	page, err := browser.Open(ctx, browser.Options{Driver: "playwright", DebugPort: 9222})
//	if err != nil {
//	    return err
//	}
//	defer page.Close()
//
//	snap, err := page.Snapshot(ctx)
//	...
//	next, err := browser.WaitForChange(ctx, page, browser.Fingerprint(snap), 10*time.Second, 250*time.Millisecond)
package browser
