package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveFieldEvents(t *testing.T) {
	m := New()
	field := types.FieldDescriptor{Label: "first name", Kind: types.KindShortText}

	m.Observe(types.NewFieldEvent(types.EventTypeFieldFilled, "s1", 0, field, &types.MatchResult{Source: types.SourceProfile, Confidence: 1}, nil))
	m.Observe(types.NewFieldEvent(types.EventTypeFieldFilled, "s1", 0, field, &types.MatchResult{Source: types.SourceLearned, Confidence: 1}, nil))
	m.Observe(types.NewFieldEvent(types.EventTypeFieldDeferred, "s1", 0, field, &types.MatchResult{Source: types.SourceNone}, nil))
	m.Observe(types.NewFieldEvent(types.EventTypeFieldSkipped, "s1", 1, field, nil, nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.fields.WithLabelValues("filled")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fields.WithLabelValues("deferred")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.fields.WithLabelValues("skipped")))
	assert.Equal(t, 3, testutil.CollectAndCount(m.confidence))
}

func TestObserveSessionEvents(t *testing.T) {
	m := New()
	m.Observe(types.NewPageScannedEvent("s1", types.PageVisit{Index: 0}))
	m.Observe(types.NewPageScannedEvent("s1", types.PageVisit{Index: 1}))
	m.Observe(types.NewConfirmationRequestEvent("s1", "c1", 0, types.FieldDescriptor{}, ""))
	m.Observe(types.NewConfirmationTimeoutEvent("s1", "c1", types.FieldDescriptor{}))
	m.Observe(types.NewMappingLearnedEvent("s1", types.LearnedMapping{Label: "pet", Value: "cat", Provenance: types.ProvenanceConfirmed}))
	m.Observe(types.NewErrorEvent("s1", assert.AnError))
	m.RecordSession(types.StatusCompleted, 3*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.pages))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("requested")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.confirmations.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.learned.WithLabelValues("confirmed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.errors))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.sessions.WithLabelValues("completed")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe(types.NewErrorEvent("s1", assert.AnError))
		m.RecordSession(types.StatusAbandoned, time.Second)
	})
	assert.NoError(t, m.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	assert.Nil(t, m.Registry())
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.RecordSession(types.StatusTimedOut, time.Second)

	path := filepath.Join(t.TempDir(), "autofill.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `autofill_session_finished_total{status="timed_out"} 1`)
}
