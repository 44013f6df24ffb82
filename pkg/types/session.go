package types

import "time"

// SessionStatus is the externally reported status of a fill session.
type SessionStatus string

const (
	StatusInProgress SessionStatus = "in_progress"
	StatusCompleted  SessionStatus = "completed"
	StatusAbandoned  SessionStatus = "abandoned"
	StatusTimedOut   SessionStatus = "timed_out"
)

// SessionState is the session tracker's internal state.
type SessionState string

const (
	StateIdle               SessionState = "idle"
	StateScanning           SessionState = "scanning"
	StateFilling            SessionState = "filling"
	StateAwaitingNavigation SessionState = "awaiting_navigation"
	StateCompleted          SessionState = "completed"
	StateAbandoned          SessionState = "abandoned"
	StateTimedOut           SessionState = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateAbandoned || s == StateTimedOut
}

// Status maps a state onto the reported session status.
func (s SessionState) Status() SessionStatus {
	switch s {
	case StateCompleted:
		return StatusCompleted
	case StateAbandoned:
		return StatusAbandoned
	case StateTimedOut:
		return StatusTimedOut
	default:
		return StatusInProgress
	}
}

// PageVisit records one page the session scanned.
type PageVisit struct {
	Index     int       `json:"index"`
	URL       string    `json:"url"`
	Title     string    `json:"title,omitempty"`
	Signature string    `json:"signature"`
	Fields    int       `json:"fields"`
	Rescans   int       `json:"rescans,omitempty"`
	VisitedAt time.Time `json:"visited_at"`
}

// FieldOutcome is what happened to one label during the session.
type FieldOutcome struct {
	Label      string      `json:"label"`
	Kind       ControlKind `json:"kind"`
	Page       int         `json:"page"`
	Value      string      `json:"value,omitempty"`
	Key        string      `json:"key,omitempty"`
	Source     MatchSource `json:"source"`
	Confidence float64     `json:"confidence"`
	Decision   Decision    `json:"decision,omitempty"`
	Error      string      `json:"error,omitempty"`
	// Suggestion is the proposed answer shown for a deferred field.
	Suggestion string `json:"suggestion,omitempty"`
}
