package profiles

import (
	"fmt"

	"github.com/dmitrijs2005/symbiobot/internal/common"
	"github.com/dmitrijs2005/symbiobot/internal/schema"
)

// ValidationError reports a value of the wrong type or arity for a field.
type ValidationError struct {
	Field string
	Want  schema.Kind
	Got   string
	// Input is the raw user text, when the error comes from parsing.
	Input string
}

func (e *ValidationError) Error() string {
	if e.Input != "" {
		return fmt.Sprintf("field %q must be %s, got %q", e.Field, e.Want, e.Input)
	}
	return fmt.Sprintf("field %q must be %s, got %s", e.Field, e.Want, e.Got)
}

func (e *ValidationError) Unwrap() error { return common.ErrorValidation }
