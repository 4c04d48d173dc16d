// Package erruser provides errors whose Error() is a single sentence meant for
// the operator. The underlying cause stays reachable through Unwrap so the CLI
// can print it on a separate "Details:" line.
package erruser

import "github.com/cockroachdb/errors"

// Err holds a user-facing message and an optional cause.
type Err struct {
	Msg string
	Err error
}

// Error returns the user-facing message only.
func (e *Err) Error() string {
	if e == nil {
		return ""
	}
	return e.Msg
}

// Unwrap returns the underlying error. Safe on a nil receiver.
func (e *Err) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New returns an error with the given user-facing message. When err is nil the
// result has no cause and Unwrap returns nil.
func New(msg string, err error) error {
	if err == nil {
		return errors.New(msg)
	}
	return &Err{Msg: msg, Err: err}
}

// Split separates err into the sentence to show the operator and the cause to
// show on a "Details:" line. Only an *Err anywhere in the chain has a cause to
// split off; any other error is returned whole as the sentence with a nil
// cause, so its text is never printed twice.
func Split(err error) (msg string, cause error) {
	if err == nil {
		return "", nil
	}
	var ue *Err
	if errors.As(err, &ue) {
		return ue.Msg, ue.Err
	}
	return err.Error(), nil
}
