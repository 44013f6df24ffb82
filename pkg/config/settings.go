package config

import (
	"github.com/entrhq/autofill/pkg/browser"
	"github.com/entrhq/autofill/pkg/confidence"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/similarity"
)

// SessionSettings returns the tracker configuration.
func (c *Config) SessionSettings() session.Config {
	return session.Config{
		StartURL:             c.Browser.StartURL,
		AutoAdvance:          c.Session.AutoAdvance,
		MaxPages:             c.Session.MaxPages,
		MaxRescans:           c.Session.MaxRescans,
		NavigationTimeout:    c.Timing.NavigationTimeout,
		PollInterval:         c.Timing.PollInterval,
		ContinueLabels:       c.Session.ContinueLabels,
		ConfirmationPatterns: c.Session.ConfirmationPatterns,
	}
}

// BrowserOptions returns the options for browser.Open.
func (c *Config) BrowserOptions() browser.Options {
	return browser.Options{
		Driver:    c.Browser.Driver,
		DebugPort: c.Browser.DebugPort,
		RemoteURL: c.Browser.RemoteURL,
		Headless:  c.Browser.Headless,
		StartURL:  c.Browser.StartURL,
		Timeout:   c.Browser.Timeout,
	}
}

// Validator returns the confidence thresholds.
func (c *Config) Validator() (confidence.Validator, error) {
	return confidence.New(c.Matching.HighThreshold, c.Matching.LowThreshold)
}

// Scorer returns the configured similarity function.
func (c *Config) Scorer() (similarity.Scorer, error) {
	return similarity.ByName(c.Matching.Scorer)
}

// LogLevel returns the parsed verbosity. Validate has already rejected
// unknown names.
func (c *Config) LogLevel() logging.Level {
	level, _ := logging.ParseLevel(c.Logging.Verbosity)
	return level
}
