package booking

import (
	"errors"
	"strings"
)

var (
	// ErrSlotConflict means an existing booking on the same date overlaps
	// the candidate interval.
	ErrSlotConflict = errors.New("this time slot is already booked")

	// ErrNotFound means the referenced booking does not exist (or is not
	// visible to the caller).
	ErrNotFound = errors.New("booking not found")

	// ErrStoreUnavailable wraps failures of the backing store.
	ErrStoreUnavailable = errors.New("booking store unavailable")
)

// ValidationError reports every rule a candidate slot failed.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Messages returns one human-readable message per violation.
func (e *ValidationError) Messages() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Message)
	}
	return out
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
