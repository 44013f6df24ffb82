// Package confirm suspends a fill session while the operator supplies a
// value for a field the matcher could not resolve.
package confirm

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/google/uuid"
)

// Manager handles confirmation requests and responses
type Manager struct {
	timeout   time.Duration
	pending   map[string]*pendingConfirmation
	mu        sync.Mutex
	emitEvent types.EventEmitter
}

// pendingConfirmation tracks a request that is waiting for an answer
type pendingConfirmation struct {
	id        string
	sessionID string
	field     types.FieldDescriptor
	asked     time.Time
	response  chan *types.ConfirmationResponse
	closeOnce sync.Once // the channel is closed exactly once
}

// Pending describes an open request, for prompts that attach late.
type Pending struct {
	ID        string
	SessionID string
	Field     types.FieldDescriptor
	Asked     time.Time
}

// NewManager creates a confirmation manager. A nil emitter drops events.
func NewManager(timeout time.Duration, emitEvent types.EventEmitter) *Manager {
	if emitEvent == nil {
		emitEvent = types.DiscardEvents
	}
	return &Manager{
		timeout:   timeout,
		pending:   make(map[string]*pendingConfirmation),
		emitEvent: emitEvent,
	}
}

// Request asks the operator for a value for field and waits for the
// answer. It returns the response (nil when none arrived) and whether the
// wait timed out. Cancelling ctx ends the wait without a timeout event.
func (m *Manager) Request(ctx context.Context, sessionID string, page int, field types.FieldDescriptor, suggestion string) (*types.ConfirmationResponse, bool) {
	id := uuid.New().String()
	responseChannel := make(chan *types.ConfirmationResponse, 1)

	m.setupPending(id, sessionID, field, responseChannel)
	defer m.cleanupPending(id, responseChannel)

	m.emitEvent(types.NewConfirmationRequestEvent(sessionID, id, page, field, suggestion))

	return m.waitForResponse(ctx, id, sessionID, field, responseChannel)
}

// Respond delivers an operator's answer. It reports whether a request was
// waiting for it; answers to unknown or finished requests are dropped.
func (m *Manager) Respond(response *types.ConfirmationResponse) bool {
	if response == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	pc, ok := m.pending[response.ConfirmationID]
	if !ok {
		return false
	}

	// non-blocking: the waiter may already be cleaning up
	select {
	case pc.response <- response:
		return true
	default:
		return false
	}
}

// Pending lists open requests, oldest first.
func (m *Manager) Pending() []Pending {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Pending, 0, len(m.pending))
	for _, pc := range m.pending {
		out = append(out, Pending{ID: pc.id, SessionID: pc.sessionID, Field: pc.field, Asked: pc.asked})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Asked.Before(out[j].Asked) })
	return out
}

func (m *Manager) setupPending(id, sessionID string, field types.FieldDescriptor, responseChannel chan *types.ConfirmationResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pending[id] = &pendingConfirmation{
		id:        id,
		sessionID: sessionID,
		field:     field,
		asked:     time.Now(),
		response:  responseChannel,
	}
}

// cleanupPending is safe to call more than once.
func (m *Manager) cleanupPending(id string, responseChannel chan *types.ConfirmationResponse) {
	m.mu.Lock()
	pc, ok := m.pending[id]
	if ok {
		delete(m.pending, id)
	}
	m.mu.Unlock()

	if ok && pc != nil {
		pc.closeOnce.Do(func() {
			close(responseChannel)
		})
	}
}
