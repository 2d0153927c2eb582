package actions

import "fmt"

// CommandError is a recoverable business-rule violation. The dispatcher
// delivers it to the offending session as an 'e' packet and aborts the
// command only; the connection stays up.
type CommandError struct {
	Message string
}

func (e *CommandError) Error() string {
	return e.Message
}

// Errorf builds a CommandError.
func Errorf(format string, args ...any) *CommandError {
	return &CommandError{Message: fmt.Sprintf(format, args...)}
}

// StatusError is a non-fatal informational rejection. The dispatcher
// delivers it as a 'd' status notice rather than an error.
type StatusError struct {
	Category string
	Message  string
}

func (e *StatusError) Error() string {
	return e.Category + ": " + e.Message
}
