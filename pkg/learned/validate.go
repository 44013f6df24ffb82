package learned

import (
	"fmt"

	"github.com/entrhq/autofill/pkg/types"
	"github.com/go-playground/validator/v10"
)

var validate = func() func(types.LearnedMapping) error {
	v := validator.New(validator.WithRequiredStructEnabled())
	return func(m types.LearnedMapping) error {
		if m.Provenance == "" {
			return fmt.Errorf("learned: mapping %q: provenance is required", m.Label)
		}
		if err := v.Struct(m); err != nil {
			return fmt.Errorf("learned: invalid mapping %q: %w", m.Label, err)
		}
		return nil
	}
}()
