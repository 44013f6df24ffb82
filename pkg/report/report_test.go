package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/autofill/pkg/logging"
	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSummary() *session.Summary {
	return &session.Summary{
		SessionID: "abc",
		StartURL:  "https://example.com/apply",
		State:     types.StateCompleted,
		Status:    types.StatusCompleted,
		StartedAt: time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC),
		Duration:  3 * time.Second,
		Pages:     []types.PageVisit{{Index: 0, URL: "https://example.com/apply", Title: "Apply", Fields: 3}},
		Resolved: []types.FieldOutcome{
			{Label: "first name", Value: "Aakriti", Source: types.SourceProfile, Confidence: 1},
			{Label: "city", Value: "Pune", Source: types.SourceProfile, Confidence: 0.7},
		},
		Soft:     []types.FieldOutcome{{Label: "city", Value: "Pune", Confidence: 0.7}},
		Deferred: []types.FieldOutcome{{Label: "favorite pet", Suggestion: "cat"}},
		Learned: []types.LearnedMapping{
			{Label: "school", Value: "DPS | Pune", Provenance: types.ProvenanceConfirmed},
		},
		DuplicateLabels: []string{"email"},
	}
}

func TestWriteAll(t *testing.T) {
	w := NewArtifactWriter(t.TempDir())
	sum := sampleSummary()

	dir, err := w.WriteAll(sum)
	require.NoError(t, err)
	assert.Equal(t, w.Dir(sum), dir)

	data, err := os.ReadFile(filepath.Join(dir, SessionFile))
	require.NoError(t, err)
	var decoded session.Summary
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "abc", decoded.SessionID)
	assert.Equal(t, []string{"favorite pet"}, decoded.DeferredLabels())

	md, err := os.ReadFile(filepath.Join(dir, SummaryFile))
	require.NoError(t, err)
	assert.Contains(t, string(md), "# Autofill Session Summary")
}

func TestMarkdownSections(t *testing.T) {
	md := Markdown(sampleSummary())

	assert.Contains(t, md, "⚠ **Submitted with open fields**")
	assert.Contains(t, md, "## Filled")
	assert.Contains(t, md, "| 1 | first name | Aakriti | profile (1.00) |")
	assert.Contains(t, md, "## Needs review")
	assert.Contains(t, md, "suggested: cat")
	assert.Contains(t, md, `DPS \| Pune`)
	assert.Contains(t, md, "## Repeated labels")
	assert.NotContains(t, md, "## Failed")
}

func TestMarkdownFailure(t *testing.T) {
	sum := &session.Summary{SessionID: "x", Status: types.StatusTimedOut, Reason: "navigation timeout after 15s"}
	md := Markdown(sum)
	assert.Contains(t, md, "❌ **timed_out:** navigation timeout after 15s")
	assert.NotContains(t, md, "## Filled")
}

func TestConsoleLevels(t *testing.T) {
	field := types.FieldDescriptor{Label: "first name", RawLabel: "First Name"}
	filled := types.NewFieldEvent(types.EventTypeFieldFilled, "s", 0, field,
		&types.MatchResult{Value: "Aakriti", Source: types.SourceProfile, Confidence: 1}, nil)
	skipped := types.NewFieldEvent(types.EventTypeFieldSkipped, "s", 1, field, nil, nil)
	failed := types.NewFieldEvent(types.EventTypeFieldFailed, "s", 0, field, nil, errors.New("rejected"))

	var quiet bytes.Buffer
	c := NewConsole(&quiet, logging.LevelQuiet)
	c.Event(filled)
	c.Event(skipped)
	c.Event(failed)
	assert.NotContains(t, quiet.String(), "Aakriti")
	assert.Contains(t, quiet.String(), "First Name: rejected")

	var verbose bytes.Buffer
	c = NewConsole(&verbose, logging.LevelVerbose)
	c.Event(filled)
	c.Event(skipped)
	assert.Contains(t, verbose.String(), "✓ First Name = Aakriti")
	assert.Contains(t, verbose.String(), "already filled on an earlier page")
}

func TestConsoleRepeatedOnPage(t *testing.T) {
	field := types.FieldDescriptor{Label: "email", RawLabel: "Email"}
	var buf bytes.Buffer
	NewConsole(&buf, logging.LevelNormal).Event(types.NewFieldSkippedEvent("s", 0, field, nil, types.SkipRepeatedOnPage))
	assert.Contains(t, buf.String(), "Email appears more than once on this page")
}

func TestConsoleSummary(t *testing.T) {
	var buf bytes.Buffer
	NewConsole(&buf, logging.LevelQuiet).Summary(sampleSummary())

	out := buf.String()
	assert.Contains(t, out, "SESSION SUMMARY")
	assert.Contains(t, out, "COMPLETED WITH OPEN FIELDS")
	assert.Contains(t, out, "Deferred: favorite pet")
	assert.Contains(t, out, "Filled:   2 (1 to review)")
}
