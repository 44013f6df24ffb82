package session

import (
	"time"

	"github.com/entrhq/autofill/pkg/types"
)

// Summary is the record of a finished session.
type Summary struct {
	SessionID string              `json:"session_id"`
	StartURL  string              `json:"start_url,omitempty"`
	State     types.SessionState  `json:"state"`
	Status    types.SessionStatus `json:"status"`
	Reason    string              `json:"reason,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Pages []types.PageVisit `json:"pages"`

	// Resolved lists every field written, soft matches included.
	Resolved []types.FieldOutcome `json:"resolved"`
	// Soft lists the resolved fields written from a soft match that
	// nobody confirmed. They need review.
	Soft     []types.FieldOutcome `json:"soft,omitempty"`
	Deferred []types.FieldOutcome `json:"deferred,omitempty"`
	Failed   []types.FieldOutcome `json:"failed,omitempty"`

	Learned []types.LearnedMapping `json:"learned,omitempty"`

	// DuplicateLabels are labels seen on more than one control: again on a
	// later page after being resolved (skipped there), or twice on one page
	// (the repeat is left deferred).
	DuplicateLabels []string `json:"duplicate_labels,omitempty"`

	// Templates names the site templates applied.
	Templates []string `json:"templates,omitempty"`

	// Err is the error behind a TimedOut or Abandoned state.
	Err error `json:"-"`
}

// Complete reports whether the form was submitted with nothing left for the
// operator: the session completed and no field was deferred or failed.
func (s *Summary) Complete() bool {
	return s != nil && s.Status == types.StatusCompleted && len(s.UnresolvedLabels()) == 0
}

// ResolvedLabels lists the labels written, in the order they were written.
func (s *Summary) ResolvedLabels() []string {
	return labels(s.Resolved)
}

// DeferredLabels lists the labels left for the operator.
func (s *Summary) DeferredLabels() []string {
	return labels(s.Deferred)
}

// UnresolvedLabels lists every field that still needs the operator: the
// deferred ones, then those whose write was rejected.
func (s *Summary) UnresolvedLabels() []string {
	return append(labels(s.Deferred), labels(s.Failed)...)
}

func labels(outcomes []types.FieldOutcome) []string {
	out := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		out = append(out, o.Label)
	}
	return out
}
