package refine

import "fmt"

// EmptyRequestError reports a refinement request with no candidates or no
// symptoms.
type EmptyRequestError struct {
	Field string
}

func (e *EmptyRequestError) Error() string {
	return fmt.Sprintf("refinement requires at least one %s", e.Field)
}
