package learning

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/entrhq/autofill/pkg/label"
	"github.com/entrhq/autofill/pkg/types"
	"github.com/go-playground/validator/v10"
)

// ErrInvalidValue means a value failed the plausibility checks and was not
// learned.
var ErrInvalidValue = errors.New("invalid value")

var validate = validator.New()

// Check runs the plausibility rules for an answer to the question l:
// e-mail questions need an address, phone questions at least ten digits,
// full-name questions two words, and free-text answers two characters.
// It returns nil or an error wrapping ErrInvalidValue that lists every
// problem found.
func Check(l string, kind types.ControlKind, value string) error {
	value = strings.TrimSpace(value)
	words := " " + label.Normalize(l) + " "
	has := func(w string) bool { return strings.Contains(words, " "+w+" ") }

	var issues []string
	if value == "" {
		issues = append(issues, "answer is empty")
	} else if (kind.IsText() || kind == "") && len([]rune(value)) < 2 {
		issues = append(issues, "answer seems too short")
	}

	if has("name") && !has("user") && (has("full") || has("complete")) && len(strings.Fields(value)) < 2 {
		issues = append(issues, "full name should have first and last name")
	}
	if has("email") || has("e mail") {
		if err := validate.Var(value, "required,email"); err != nil {
			issues = append(issues, "email format appears invalid")
		}
	}
	if has("phone") || has("mobile") {
		if digits(value) < 10 {
			issues = append(issues, "phone number seems too short")
		}
	}

	if len(issues) > 0 {
		return fmt.Errorf("%w for %q: %s", ErrInvalidValue, l, strings.Join(issues, "; "))
	}
	return nil
}

func digits(s string) int {
	n := 0
	for _, r := range s {
		if unicode.IsDigit(r) {
			n++
		}
	}
	return n
}
