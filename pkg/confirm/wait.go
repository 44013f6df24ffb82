package confirm

import (
	"context"
	"time"

	"github.com/entrhq/autofill/pkg/types"
)

// waitForResponse waits for the operator's answer. A zero timeout waits
// until ctx is done.
func (m *Manager) waitForResponse(ctx context.Context, id, sessionID string, field types.FieldDescriptor, responseChannel chan *types.ConfirmationResponse) (*types.ConfirmationResponse, bool) {
	var expired <-chan time.Time
	if m.timeout > 0 {
		timer := time.NewTimer(m.timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-ctx.Done():
		return nil, false

	case <-expired:
		m.emitEvent(types.NewConfirmationTimeoutEvent(sessionID, id, field))
		return nil, true

	case response, ok := <-responseChannel:
		if !ok {
			return nil, false
		}
		m.emitEvent(types.NewConfirmationReceivedEvent(sessionID, id, field))
		return response, false
	}
}
