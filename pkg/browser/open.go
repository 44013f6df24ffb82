package browser

import (
	"context"
	"fmt"
	"time"
)

// Driver names accepted by Open.
const (
	DriverPlaywright = "playwright"
	DriverRod        = "rod"
	DriverHTML       = "html"
)

// Drivers lists the accepted driver names.
func Drivers() []string {
	return []string{DriverPlaywright, DriverRod, DriverHTML}
}

// Options selects and configures a driver.
type Options struct {
	Driver string

	// DebugPort is the local remote-debugging port of an already running
	// browser. Zero with an empty RemoteURL means launch a new browser.
	DebugPort int

	// RemoteURL overrides DebugPort with an explicit CDP endpoint.
	RemoteURL string

	Headless bool

	// StartURL is opened before filling. For the html driver it is the
	// path of the document to load.
	StartURL string

	// Timeout bounds single driver operations.
	Timeout time.Duration
}

func (o Options) endpoint() string {
	if o.RemoteURL != "" {
		return o.RemoteURL
	}
	if o.DebugPort > 0 {
		return fmt.Sprintf("http://127.0.0.1:%d", o.DebugPort)
	}
	return ""
}

// Open returns a Page for the configured driver.
func Open(ctx context.Context, opts Options) (Page, error) {
	switch opts.Driver {
	case DriverPlaywright, "":
		return OpenPlaywright(ctx, opts)
	case DriverRod:
		return OpenRod(ctx, opts)
	case DriverHTML:
		if opts.StartURL == "" {
			return nil, fmt.Errorf("html driver needs a document path")
		}
		return LoadStaticFile(opts.StartURL)
	default:
		return nil, fmt.Errorf("unknown browser driver %q (want one of %v)", opts.Driver, Drivers())
	}
}
