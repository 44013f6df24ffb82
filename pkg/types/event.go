package types

import "time"

// FillEventType defines the type of event emitted by a fill session.
type FillEventType string

const (
	EventTypeSessionStarted       FillEventType = "session_started"       // EventTypeSessionStarted indicates a new fill session was triggered.
	EventTypeStateChanged         FillEventType = "state_changed"         // EventTypeStateChanged indicates the tracker moved to a new state.
	EventTypePageScanned          FillEventType = "page_scanned"          // EventTypePageScanned indicates the extractor produced descriptors for a page.
	EventTypeFieldFilled          FillEventType = "field_filled"          // EventTypeFieldFilled indicates a value was written and verified.
	EventTypeFieldFlagged         FillEventType = "field_flagged"         // EventTypeFieldFlagged indicates a soft match was written and needs review.
	EventTypeFieldDeferred        FillEventType = "field_deferred"        // EventTypeFieldDeferred indicates a field was left unfilled for confirmation.
	EventTypeFieldFailed          FillEventType = "field_failed"          // EventTypeFieldFailed indicates the page rejected a write twice.
	EventTypeFieldSkipped         FillEventType = "field_skipped"         // EventTypeFieldSkipped indicates a label already resolved earlier in the session.
	EventTypeConfirmationRequest  FillEventType = "confirmation_request"  // EventTypeConfirmationRequest indicates the operator is asked for a value.
	EventTypeConfirmationReceived FillEventType = "confirmation_received" // EventTypeConfirmationReceived indicates the operator answered.
	EventTypeConfirmationTimeout  FillEventType = "confirmation_timeout"  // EventTypeConfirmationTimeout indicates nobody answered in time.
	EventTypeMappingLearned       FillEventType = "mapping_learned"       // EventTypeMappingLearned indicates the learned store gained or replaced a mapping.
	EventTypeNavigationStarted    FillEventType = "navigation_started"    // EventTypeNavigationStarted indicates the continue control was triggered.
	EventTypePageChanged          FillEventType = "page_changed"          // EventTypePageChanged indicates a new page signature was observed.
	EventTypeSessionFinished      FillEventType = "session_finished"      // EventTypeSessionFinished indicates the session reached a terminal state.
	EventTypeError                FillEventType = "error"                 // EventTypeError indicates a non-fatal error worth surfacing.
)

// FillEvent represents an event emitted by the session tracker.
type FillEvent struct {
	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{}

	// Error contains error information for failure events.
	Error error

	// Type indicates the kind of event.
	Type FillEventType

	// SessionID identifies the session that emitted the event.
	SessionID string

	// Page is the zero-based page index the event refers to.
	Page int

	// State is the tracker state, set on state and finish events.
	State SessionState

	// Field is the descriptor the event refers to (field and confirmation events).
	Field *FieldDescriptor

	// Match is the matcher's proposal for Field, when one was computed.
	Match *MatchResult

	// ConfirmationID correlates a confirmation request with its response.
	ConfirmationID string

	// Suggestion is a proposed answer shown with a confirmation request.
	// It is never written without the operator accepting it.
	Suggestion string

	// Mapping is the learned mapping written (mapping_learned events).
	Mapping *LearnedMapping

	Timestamp time.Time
}

// EventEmitter receives events from the pipeline. Implementations must not
// block for long; the tracker calls them from its own goroutine.
type EventEmitter func(event *FillEvent)

// DiscardEvents is an emitter that drops every event.
func DiscardEvents(*FillEvent) {}

// Fanout returns an emitter that hands each event to every non-nil
// emitter, in order.
func Fanout(emitters ...EventEmitter) EventEmitter {
	list := make([]EventEmitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			list = append(list, e)
		}
	}
	return func(event *FillEvent) {
		for _, e := range list {
			e(event)
		}
	}
}

func newEvent(t FillEventType, sessionID string) *FillEvent {
	return &FillEvent{
		Type:      t,
		SessionID: sessionID,
		Metadata:  make(map[string]interface{}),
		Timestamp: time.Now(),
	}
}

// NewSessionStartedEvent creates a session_started event.
func NewSessionStartedEvent(sessionID, url string) *FillEvent {
	e := newEvent(EventTypeSessionStarted, sessionID)
	e.Metadata["url"] = url
	return e
}

// NewStateChangedEvent creates a state_changed event.
func NewStateChangedEvent(sessionID string, from, to SessionState) *FillEvent {
	e := newEvent(EventTypeStateChanged, sessionID)
	e.State = to
	e.Metadata["from"] = string(from)
	return e
}

// NewPageScannedEvent creates a page_scanned event.
func NewPageScannedEvent(sessionID string, visit PageVisit) *FillEvent {
	e := newEvent(EventTypePageScanned, sessionID)
	e.Page = visit.Index
	e.Metadata["url"] = visit.URL
	e.Metadata["fields"] = visit.Fields
	e.Metadata["signature"] = visit.Signature
	return e
}

// NewFieldEvent creates one of the per-field events.
func NewFieldEvent(t FillEventType, sessionID string, page int, field FieldDescriptor, match *MatchResult, err error) *FillEvent {
	e := newEvent(t, sessionID)
	e.Page = page
	e.Field = &field
	e.Match = match
	e.Error = err
	return e
}

// Reasons carried in a field_skipped event's "reason" metadata.
const (
	// SkipResolvedEarlier: the label was resolved on an earlier page.
	SkipResolvedEarlier = "resolved_earlier"
	// SkipRepeatedOnPage: another control on the same page has the label.
	SkipRepeatedOnPage = "repeated_on_page"
)

// NewFieldSkippedEvent creates a field_skipped event.
func NewFieldSkippedEvent(sessionID string, page int, field FieldDescriptor, match *MatchResult, reason string) *FillEvent {
	e := NewFieldEvent(EventTypeFieldSkipped, sessionID, page, field, match, nil)
	e.Metadata["reason"] = reason
	return e
}

// NewConfirmationRequestEvent creates a confirmation_request event.
func NewConfirmationRequestEvent(sessionID, confirmationID string, page int, field FieldDescriptor, suggestion string) *FillEvent {
	e := newEvent(EventTypeConfirmationRequest, sessionID)
	e.ConfirmationID = confirmationID
	e.Page = page
	e.Field = &field
	e.Suggestion = suggestion
	return e
}

// NewConfirmationTimeoutEvent creates a confirmation_timeout event.
func NewConfirmationTimeoutEvent(sessionID, confirmationID string, field FieldDescriptor) *FillEvent {
	e := newEvent(EventTypeConfirmationTimeout, sessionID)
	e.ConfirmationID = confirmationID
	e.Field = &field
	return e
}

// NewConfirmationReceivedEvent creates a confirmation_received event.
func NewConfirmationReceivedEvent(sessionID, confirmationID string, field FieldDescriptor) *FillEvent {
	e := newEvent(EventTypeConfirmationReceived, sessionID)
	e.ConfirmationID = confirmationID
	e.Field = &field
	return e
}

// NewMappingLearnedEvent creates a mapping_learned event.
func NewMappingLearnedEvent(sessionID string, m LearnedMapping) *FillEvent {
	e := newEvent(EventTypeMappingLearned, sessionID)
	e.Mapping = &m
	return e
}

// NewNavigationStartedEvent creates a navigation_started event.
func NewNavigationStartedEvent(sessionID string, page int, control string) *FillEvent {
	e := newEvent(EventTypeNavigationStarted, sessionID)
	e.Page = page
	e.Metadata["control"] = control
	return e
}

// NewPageChangedEvent creates a page_changed event.
func NewPageChangedEvent(sessionID string, page int, url, signature string) *FillEvent {
	e := newEvent(EventTypePageChanged, sessionID)
	e.Page = page
	e.Metadata["url"] = url
	e.Metadata["signature"] = signature
	return e
}

// NewSessionFinishedEvent creates a session_finished event.
func NewSessionFinishedEvent(sessionID string, state SessionState, reason string) *FillEvent {
	e := newEvent(EventTypeSessionFinished, sessionID)
	e.State = state
	e.Metadata["reason"] = reason
	return e
}

// NewErrorEvent creates an error event.
func NewErrorEvent(sessionID string, err error) *FillEvent {
	e := newEvent(EventTypeError, sessionID)
	e.Error = err
	return e
}
