package cabinet

import (
	"errors"
	"fmt"
)

// ErrForbidden is returned when a caller-supplied path resolves outside the
// managed root. Confinement is the sole access-control boundary here.
var ErrForbidden = errors.New("path is outside the managed root")

// ErrNotFound is returned when a requested blob does not exist
var ErrNotFound = errors.New("object not found")

// ValidationError carries a caller-facing message for rejected input
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalidf(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
