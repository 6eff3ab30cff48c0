package bluff

import "errors"

var ErrNilCollection = errors.New("collection must be present")

// ValidationError reports a malformed GameState or Action.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return "invalid " + e.Field + ": " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid " + e.Field + ": " + e.Reason
}

func (e *ValidationError) Unwrap() error { return e.Err }

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
