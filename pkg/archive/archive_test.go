package archive

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/autofill/pkg/session"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "nested", "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func summary(id string, started time.Time, deferred ...string) *session.Summary {
	sum := &session.Summary{
		SessionID: id,
		StartURL:  "https://docs.google.com/forms/d/x",
		State:     types.StateCompleted,
		Status:    types.StatusCompleted,
		StartedAt: started,
		Duration:  1500 * time.Millisecond,
		Pages:     []types.PageVisit{{Index: 0, URL: "https://docs.google.com/forms/d/x", Fields: 3}},
		Resolved: []types.FieldOutcome{
			{Label: "first name", Kind: types.KindShortText, Value: "Aakriti", Source: types.SourceProfile, Confidence: 1},
			{Label: "city", Kind: types.KindShortText, Value: "Pune", Source: types.SourceProfile, Confidence: 0.7, Decision: types.DecisionAcceptSoft},
		},
		Soft: []types.FieldOutcome{
			{Label: "city", Kind: types.KindShortText, Value: "Pune", Source: types.SourceProfile, Confidence: 0.7, Decision: types.DecisionAcceptSoft},
		},
	}
	for _, l := range deferred {
		sum.Deferred = append(sum.Deferred, types.FieldOutcome{Label: l, Kind: types.KindShortText, Source: types.SourceNone})
	}
	return sum
}

func TestSaveAndGet(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t)
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, a.Save(ctx, summary("s1", started, "favorite pet")))

	got, err := a.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, types.StatusCompleted, got.Status)
	assert.Equal(t, []string{"first name", "city"}, got.ResolvedLabels())
	assert.Equal(t, []string{"favorite pet"}, got.DeferredLabels())
	assert.True(t, got.StartedAt.Equal(started))

	_, err = a.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSaveReplaces(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t)
	now := time.Now()

	require.NoError(t, a.Save(ctx, summary("s1", now, "favorite pet")))
	require.NoError(t, a.Save(ctx, summary("s1", now)))

	entries, err := a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Deferred)

	labels, err := a.Unresolved(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, labels, "replaced session fields are dropped")
}

func TestListNewestFirst(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		require.NoError(t, a.Save(ctx, summary(id, base.Add(time.Duration(i)*time.Hour))))
	}

	entries, err := a.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "new", entries[0].ID)
	assert.Equal(t, "mid", entries[1].ID)
	assert.Equal(t, 2, entries[0].Resolved)
	assert.Equal(t, 1500*time.Millisecond, entries[0].Duration)
	assert.Equal(t, 1, entries[0].Pages)
}

func TestUnresolvedRanking(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t)
	now := time.Now()

	require.NoError(t, a.Save(ctx, summary("a", now, "favorite pet", "dream company")))
	require.NoError(t, a.Save(ctx, summary("b", now, "favorite pet")))
	failed := summary("c", now)
	failed.Failed = []types.FieldOutcome{{Label: "dream company", Kind: types.KindDropdown, Error: "rejected"}}
	require.NoError(t, a.Save(ctx, failed))

	got, err := a.Unresolved(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []LabelCount{{Label: "dream company", Count: 2}, {Label: "favorite pet", Count: 2}}, got)
}

func TestDeleteBefore(t *testing.T) {
	ctx := context.Background()
	a := openArchive(t)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, a.Save(ctx, summary("old", base, "favorite pet")))
	require.NoError(t, a.Save(ctx, summary("new", base.Add(48*time.Hour))))

	n, err := a.Delete(ctx, base.Add(24*time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	entries, err := a.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "new", entries[0].ID)

	labels, err := a.Unresolved(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, labels, "field rows cascade with their session")
}

func TestSaveRequiresID(t *testing.T) {
	a := openArchive(t)
	assert.Error(t, a.Save(context.Background(), &session.Summary{}))
}
