package browser

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"
)

// Fingerprint identifies the structure of a page: its URL, title, and the
// id, label and kind of every element and button. Values, visibility and
// body text are left out so typing into a field or showing a validation
// message does not count as a page change.
func Fingerprint(s *Snapshot) string {
	if s == nil {
		return ""
	}
	h := sha256.New()
	_, _ = io.WriteString(h, s.URL+"\n"+s.Title+"\n")
	for _, e := range s.Elements {
		fmt.Fprintf(h, "e|%s|%s|%s\n", e.ID, e.Label, e.Kind)
	}
	for _, b := range s.Buttons {
		fmt.Fprintf(h, "b|%s|%s\n", b.ID, b.Label)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// WaitForChange polls page every interval until its fingerprint differs
// from since, and returns the new snapshot. It returns ErrNoChange after
// timeout and ErrPageUnavailable as soon as the page is gone. Other snapshot
// errors are expected while a navigation is in flight and are retried.
func WaitForChange(ctx context.Context, page Page, since string, timeout, interval time.Duration) (*Snapshot, error) {
	return Watch(ctx, page, since, timeout, interval, nil)
}

// Watch is WaitForChange that also hands every unchanged snapshot to
// unchanged, so callers can follow values typed into the page while they
// wait. unchanged runs on the calling goroutine.
func Watch(ctx context.Context, page Page, since string, timeout, interval time.Duration, unchanged func(*Snapshot)) (*Snapshot, error) {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var lastErr error
	for {
		snap, err := page.Snapshot(ctx)
		switch {
		case err == nil:
			if Fingerprint(snap) != since {
				return snap, nil
			}
			if unchanged != nil {
				unchanged(snap)
			}
		case errors.Is(err, ErrPageUnavailable):
			return nil, err
		default:
			lastErr = err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			if lastErr != nil {
				return nil, fmt.Errorf("%w after %s (last error: %v)", ErrNoChange, timeout, lastErr)
			}
			return nil, fmt.Errorf("%w after %s", ErrNoChange, timeout)
		case <-ticker.C:
		}
	}
}
