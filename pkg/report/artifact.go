// Package report renders finished sessions for people: the artifact files
// written next to each run and the console output of the CLI.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/types"
)

// Artifact file names inside a session directory.
const (
	SessionFile = "session.json"
	SummaryFile = "summary.md"
)

// ArtifactWriter writes session artifacts under outputDir/<session id>/.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a new artifact writer
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{
		outputDir: outputDir,
	}
}

// Dir returns the directory the artifacts of sum go to.
func (w *ArtifactWriter) Dir(sum *session.Summary) string {
	return filepath.Join(w.outputDir, sum.SessionID)
}

// WriteAll writes every artifact for sum and returns the directory.
func (w *ArtifactWriter) WriteAll(sum *session.Summary) (string, error) {
	dir := w.Dir(sum)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	if err := w.WriteSessionJSON(dir, sum); err != nil {
		return "", err
	}
	if err := w.WriteSummaryMarkdown(dir, sum); err != nil {
		return "", err
	}
	return dir, nil
}

// WriteSessionJSON writes the full summary as JSON.
func (w *ArtifactWriter) WriteSessionJSON(dir string, sum *session.Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session summary: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, SessionFile), data, 0600); err != nil {
		return fmt.Errorf("failed to write session JSON: %w", err)
	}
	return nil
}

// WriteSummaryMarkdown writes the review document for sum.
func (w *ArtifactWriter) WriteSummaryMarkdown(dir string, sum *session.Summary) error {
	if err := os.WriteFile(filepath.Join(dir, SummaryFile), []byte(Markdown(sum)), 0600); err != nil {
		return fmt.Errorf("failed to write summary markdown: %w", err)
	}
	return nil
}

// Markdown renders sum as a review document: what was filled, what needs
// a second look, and what is still open.
func Markdown(sum *session.Summary) string {
	var md strings.Builder

	md.WriteString("# Autofill Session Summary\n\n")
	fmt.Fprintf(&md, "**Session:** %s\n\n", sum.SessionID)
	if sum.StartURL != "" {
		fmt.Fprintf(&md, "**Form:** %s\n\n", sum.StartURL)
	}
	fmt.Fprintf(&md, "**Status:** %s\n\n", sum.Status)
	fmt.Fprintf(&md, "**Started:** %s\n\n", sum.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&md, "**Duration:** %s\n\n", sum.Duration.Round(time.Millisecond))

	md.WriteString("## Result\n\n")
	switch {
	case sum.Complete():
		md.WriteString("✅ **Submitted, nothing left to review**\n\n")
	case sum.Status == types.StatusCompleted:
		md.WriteString("⚠ **Submitted with open fields**\n\n")
	default:
		fmt.Fprintf(&md, "❌ **%s:** %s\n\n", sum.Status, sum.Reason)
	}

	if len(sum.Pages) > 0 {
		md.WriteString("## Pages\n\n")
		for _, p := range sum.Pages {
			title := p.Title
			if title == "" {
				title = p.URL
			}
			fmt.Fprintf(&md, "%d. %s (%d fields)\n", p.Index+1, title, p.Fields)
		}
		md.WriteString("\n")
	}

	fieldTable(&md, "Filled", sum.Resolved, func(o types.FieldOutcome) string {
		return fmt.Sprintf("%s (%.2f)", o.Source, o.Confidence)
	})
	fieldTable(&md, "Needs review", sum.Soft, func(o types.FieldOutcome) string {
		return fmt.Sprintf("soft match %.2f", o.Confidence)
	})
	fieldTable(&md, "Deferred", sum.Deferred, func(o types.FieldOutcome) string {
		if o.Suggestion != "" {
			return "suggested: " + o.Suggestion
		}
		return "no match"
	})
	fieldTable(&md, "Failed", sum.Failed, func(o types.FieldOutcome) string {
		return o.Error
	})

	if len(sum.Learned) > 0 {
		md.WriteString("## Learned\n\n")
		for _, m := range sum.Learned {
			fmt.Fprintf(&md, "- `%s` → %s (%s)\n", m.Label, m.Target(), m.Provenance)
		}
		md.WriteString("\n")
	}

	if len(sum.DuplicateLabels) > 0 {
		md.WriteString("## Repeated labels\n\n")
		md.WriteString("These labels appeared more than once. Repeats on a later page were skipped, repeats on the same page were left open. Check them by hand.\n\n")
		for _, l := range sum.DuplicateLabels {
			fmt.Fprintf(&md, "- %s\n", l)
		}
		md.WriteString("\n")
	}
	return md.String()
}

func fieldTable(md *strings.Builder, title string, outcomes []types.FieldOutcome, note func(types.FieldOutcome) string) {
	if len(outcomes) == 0 {
		return
	}
	fmt.Fprintf(md, "## %s\n\n", title)
	md.WriteString("| Page | Field | Value | Note |\n|---|---|---|---|\n")
	for _, o := range outcomes {
		fmt.Fprintf(md, "| %d | %s | %s | %s |\n", o.Page+1, cell(o.Label), cell(o.Value), cell(note(o)))
	}
	md.WriteString("\n")
}

func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.ReplaceAll(s, "\n", " ")
}
