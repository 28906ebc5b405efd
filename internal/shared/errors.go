package shared

import "errors"

// Error categories. Every failure returned by the engine unwraps to exactly one
// of the first four; ErrNotFound is an additional marker on validation errors
// that reference a missing entity.
var (
	// ErrValidation indicates bad input rejected before any mutation.
	ErrValidation = errors.New("validation failed")
	// ErrConflict indicates the request clashes with current state.
	ErrConflict = errors.New("conflict")
	// ErrConsistency indicates a write failed after an earlier write of the same event.
	ErrConsistency = errors.New("consistency failure")
	// ErrAuthorization indicates the actor lacks role or tenant scope.
	ErrAuthorization = errors.New("not authorized")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
)

// Error is a categorised domain error.
type Error struct {
	msg   string
	kinds []error
}

func (e *Error) Error() string { return e.msg }

// Unwrap exposes the category sentinels (and the cause, if any) to errors.Is.
func (e *Error) Unwrap() []error { return e.kinds }

// Validation builds a validation error.
func Validation(msg string) error {
	return &Error{msg: msg, kinds: []error{ErrValidation}}
}

// Conflict builds a conflict error.
func Conflict(msg string) error {
	return &Error{msg: msg, kinds: []error{ErrConflict}}
}

// Forbidden builds an authorization error.
func Forbidden(msg string) error {
	return &Error{msg: msg, kinds: []error{ErrAuthorization}}
}

// NotFound builds a validation error that is also marked as not found.
func NotFound(msg string) error {
	return &Error{msg: msg, kinds: []error{ErrValidation, ErrNotFound}}
}

// Consistency wraps an unexpected downstream failure. The cause stays reachable
// through errors.Is/As.
func Consistency(cause error) error {
	if cause == nil {
		return nil
	}
	return &Error{msg: "consistency failure: " + cause.Error(), kinds: []error{ErrConsistency, cause}}
}

// Categorised reports whether err already belongs to one of the four categories.
func Categorised(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrConsistency) ||
		errors.Is(err, ErrAuthorization)
}

// Classify leaves categorised errors untouched and wraps anything else as a
// consistency failure.
func Classify(err error) error {
	if err == nil || Categorised(err) {
		return err
	}
	return Consistency(err)
}

// UserSafeMessage returns the message that may be shown to API callers.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrConsistency) {
		return "the operation could not be completed and was rolled back"
	}
	return err.Error()
}
