package types

// MatchSource identifies which store produced a match.
type MatchSource string

const (
	SourceProfile MatchSource = "profile"
	SourceLearned MatchSource = "learned"
	SourceNone    MatchSource = "none"
	// SourceOperator marks values typed in by the operator on confirmation.
	SourceOperator MatchSource = "operator"
)

// MatchResult is the matcher's proposal for one field.
type MatchResult struct {
	Value string `json:"value,omitempty"`

	// Values is the list form of Value, used by multi-choice controls.
	Values []string `json:"values,omitempty"`

	// Key is the profile key the value came from, when there is one.
	Key string `json:"key,omitempty"`

	// Confidence is in [0, 1]; learned exact matches are always 1.0.
	Confidence float64     `json:"confidence"`
	Source     MatchSource `json:"source"`
}

// NoMatch is the result returned when nothing clears the match floor.
func NoMatch() MatchResult {
	return MatchResult{Source: SourceNone, Confidence: 0}
}

// Found reports whether the result carries a value to write.
func (m MatchResult) Found() bool {
	return m.Source != SourceNone && (m.Value != "" || len(m.Values) > 0)
}

// Decision is the confidence validator's verdict on a match.
type Decision string

const (
	DecisionAccept     Decision = "accept"
	DecisionAcceptSoft Decision = "accept_soft"
	DecisionDefer      Decision = "defer"
)

// Writes reports whether the decision allows the writer to touch the field.
func (d Decision) Writes() bool {
	return d == DecisionAccept || d == DecisionAcceptSoft
}
