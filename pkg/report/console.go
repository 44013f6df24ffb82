package report

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/types"
)

var (
	salmonPink = lipgloss.Color("#FFB3BA")
	mintGreen  = lipgloss.Color("#A8E6CF")
	amber      = lipgloss.Color("#FFD59E")
	mutedGray  = lipgloss.Color("#6B7280")
)

// Console prints session progress for a person watching the terminal. Its
// output is filtered by the same verbosity levels as the log file.
type Console struct {
	mu     sync.Mutex
	level  logging.Level
	writer io.Writer

	header  lipgloss.Style
	section lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	fail    lipgloss.Style
	muted   lipgloss.Style
}

// NewConsole creates a console writing to w. Colors are used only when w
// is a terminal.
func NewConsole(w io.Writer, level logging.Level) *Console {
	r := lipgloss.NewRenderer(w)
	return &Console{
		level:   level,
		writer:  w,
		header:  r.NewStyle().Foreground(salmonPink).Bold(true),
		section: r.NewStyle().Foreground(salmonPink),
		ok:      r.NewStyle().Foreground(mintGreen),
		warn:    r.NewStyle().Foreground(amber),
		fail:    r.NewStyle().Foreground(salmonPink).Bold(true),
		muted:   r.NewStyle().Foreground(mutedGray),
	}
}

func (c *Console) printf(min logging.Level, style lipgloss.Style, format string, args ...interface{}) {
	if c.level < min {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.writer, style.Render(fmt.Sprintf(format, args...)))
}

// Header prints a prominent header message
func (c *Console) Header(message string) {
	rule := strings.Repeat("=", 60)
	c.printf(logging.LevelNormal, c.header, "%s\n  %s\n%s", rule, message, rule)
}

// Infof prints an informational line.
func (c *Console) Infof(format string, args ...interface{}) {
	c.printf(logging.LevelNormal, lipgloss.NewStyle(), format, args...)
}

// Warnf prints a warning, shown at every level.
func (c *Console) Warnf(format string, args ...interface{}) {
	c.printf(logging.LevelQuiet, c.warn, "⚠ "+format, args...)
}

// Errorf prints an error, shown at every level.
func (c *Console) Errorf(format string, args ...interface{}) {
	c.printf(logging.LevelQuiet, c.fail, "✗ "+format, args...)
}

// Event renders one pipeline event. It has the types.EventEmitter shape.
func (c *Console) Event(e *types.FillEvent) {
	switch e.Type {
	case types.EventTypePageScanned:
		c.printf(logging.LevelNormal, c.section, "\n▶ Page %d: %v (%v fields)", e.Page+1, e.Metadata["url"], e.Metadata["fields"])
	case types.EventTypeFieldFilled:
		c.printf(logging.LevelNormal, c.ok, "  ✓ %s = %s %s", e.Field.RawLabel, valueOf(e), c.muted.Render(matchNote(e.Match)))
	case types.EventTypeFieldFlagged:
		c.printf(logging.LevelNormal, c.warn, "  ~ %s = %s (review: %s)", e.Field.RawLabel, valueOf(e), matchNote(e.Match))
	case types.EventTypeFieldDeferred:
		msg := "  ? " + e.Field.RawLabel + " left for you"
		if e.Suggestion != "" {
			msg += fmt.Sprintf(" (suggested: %s)", e.Suggestion)
		}
		c.printf(logging.LevelNormal, c.warn, "%s", msg)
	case types.EventTypeFieldFailed:
		c.printf(logging.LevelQuiet, c.fail, "  ✗ %s: %v", e.Field.RawLabel, e.Error)
	case types.EventTypeFieldSkipped:
		if e.Metadata["reason"] == types.SkipRepeatedOnPage {
			c.printf(logging.LevelNormal, c.warn, "  ? %s appears more than once on this page, left for you", e.Field.RawLabel)
			break
		}
		c.printf(logging.LevelVerbose, c.muted, "  · %s already filled on an earlier page", e.Field.RawLabel)
	case types.EventTypeMappingLearned:
		c.printf(logging.LevelNormal, c.ok, "  + learned %q → %s", e.Mapping.Label, e.Mapping.Target())
	case types.EventTypeNavigationStarted:
		c.printf(logging.LevelVerbose, c.muted, "  → clicking %q", e.Metadata["control"])
	case types.EventTypeStateChanged:
		c.printf(logging.LevelDebug, c.muted, "[DEBUG] %v → %s", e.Metadata["from"], e.State)
	case types.EventTypeConfirmationTimeout:
		c.printf(logging.LevelNormal, c.warn, "  ⏱ no answer for %s, moving on", e.Field.RawLabel)
	case types.EventTypeError:
		c.printf(logging.LevelQuiet, c.fail, "✗ %v", e.Error)
	}
}

func valueOf(e *types.FillEvent) string {
	if e.Match == nil {
		return ""
	}
	if e.Match.Value != "" {
		return e.Match.Value
	}
	return strings.Join(e.Match.Values, ", ")
}

func matchNote(m *types.MatchResult) string {
	if m == nil {
		return ""
	}
	return fmt.Sprintf("[%s %.2f]", m.Source, m.Confidence)
}

// Summary prints the end-of-session report.
func (c *Console) Summary(sum *session.Summary) {
	rule := strings.Repeat("=", 60)
	c.printf(logging.LevelQuiet, c.header, "\n%s\n  SESSION SUMMARY\n%s", rule, rule)

	status := c.ok.Render("✓ " + strings.ToUpper(string(sum.Status)))
	switch {
	case sum.Status != types.StatusCompleted:
		status = c.fail.Render("✗ " + strings.ToUpper(string(sum.Status)))
	case !sum.Complete():
		status = c.warn.Render("⚠ COMPLETED WITH OPEN FIELDS")
	}
	c.printf(logging.LevelQuiet, lipgloss.NewStyle(), "  Status:   %s", status)
	c.printf(logging.LevelQuiet, lipgloss.NewStyle(), "  Pages:    %d", len(sum.Pages))
	c.printf(logging.LevelQuiet, lipgloss.NewStyle(), "  Duration: %s", sum.Duration.Round(time.Second))
	c.printf(logging.LevelQuiet, lipgloss.NewStyle(), "  Filled:   %d (%d to review)", len(sum.Resolved), len(sum.Soft))

	if len(sum.Learned) > 0 {
		c.printf(logging.LevelQuiet, lipgloss.NewStyle(), "  Learned:  %d", len(sum.Learned))
	}
	if len(sum.Deferred) > 0 {
		c.printf(logging.LevelQuiet, c.warn, "  Deferred: %s", strings.Join(sum.DeferredLabels(), ", "))
	}
	for _, o := range sum.Failed {
		c.printf(logging.LevelQuiet, c.fail, "  Failed:   %s (%s)", o.Label, o.Error)
	}
	if len(sum.DuplicateLabels) > 0 {
		c.printf(logging.LevelQuiet, c.warn, "  Repeated: %s", strings.Join(sum.DuplicateLabels, ", "))
	}
	if sum.Reason != "" && sum.Status != types.StatusCompleted {
		c.printf(logging.LevelQuiet, c.fail, "  Reason:   %s", sum.Reason)
	}
	c.printf(logging.LevelQuiet, c.header, "%s", rule)
}
