package types

// ConfirmationResponse is the operator's answer to a confirmation request.
type ConfirmationResponse struct {
	// ConfirmationID must match the request being answered.
	ConfirmationID string

	// Value is the answer to write and learn. Ignored when Skip is set.
	Value string

	// Skip leaves the field deferred without learning anything.
	Skip bool
}

// NewConfirmationResponse creates an answer carrying a value.
func NewConfirmationResponse(confirmationID, value string) *ConfirmationResponse {
	return &ConfirmationResponse{
		ConfirmationID: confirmationID,
		Value:          value,
	}
}

// NewSkipResponse creates an answer that leaves the field deferred.
func NewSkipResponse(confirmationID string) *ConfirmationResponse {
	return &ConfirmationResponse{
		ConfirmationID: confirmationID,
		Skip:           true,
	}
}

// Answered reports whether the response supplies a usable value.
func (r *ConfirmationResponse) Answered() bool {
	return r != nil && !r.Skip && r.Value != ""
}
