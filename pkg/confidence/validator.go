// Package confidence turns a match confidence into a fill decision using a
// two-tier threshold: at or above High the value is written outright,
// between Low and High it is written but flagged for review, and below Low
// (or when nothing matched) the field is deferred and left untouched.
package confidence

import (
	"fmt"

	"github.com/entrhq/autofill/pkg/types"
)

// Default thresholds.
const (
	DefaultHigh = 0.85
	DefaultLow  = 0.6
)

// Validator holds the thresholds.
type Validator struct {
	High float64
	Low  float64
}

// New creates a Validator and checks 0 <= low <= high <= 1.
func New(high, low float64) (Validator, error) {
	v := Validator{High: high, Low: low}
	if err := v.Validate(); err != nil {
		return Validator{}, err
	}
	return v, nil
}

// Default returns the validator with the default thresholds.
func Default() Validator {
	return Validator{High: DefaultHigh, Low: DefaultLow}
}

// Validate checks the thresholds are ordered and in range.
func (v Validator) Validate() error {
	if v.Low < 0 || v.High > 1 {
		return fmt.Errorf("thresholds must be within [0, 1] (low=%.2f, high=%.2f)", v.Low, v.High)
	}
	if v.Low > v.High {
		return fmt.Errorf("low threshold %.2f is above high threshold %.2f", v.Low, v.High)
	}
	return nil
}

// Decide returns the decision for m. A match without a value is always
// deferred, whatever its confidence.
func (v Validator) Decide(m types.MatchResult) types.Decision {
	if !m.Found() {
		return types.DecisionDefer
	}
	switch {
	case m.Confidence >= v.High:
		return types.DecisionAccept
	case m.Confidence >= v.Low:
		return types.DecisionAcceptSoft
	default:
		return types.DecisionDefer
	}
}
