package symptomindex

import "fmt"

// UnavailableError reports that the index could not be loaded from the store.
// Refinement treats it as "no boost available".
type UnavailableError struct {
	Err error
}

func (e *UnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("disease-symptom index unavailable: %v", e.Err)
	}
	return "disease-symptom index unavailable"
}

func (e *UnavailableError) Unwrap() error { return e.Err }
