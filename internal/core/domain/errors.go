package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected means the session with the node could not be
	// established or was lost. A later retry may succeed.
	ErrNotConnected = errors.New("not connected to the backend")

	ErrUnknownNetwork    = errors.New("unknown network")
	ErrPasswordCancelled = errors.New("password prompt cancelled")
)

// CommandFailedError means the node is reachable but rejected the request.
// Message is meant to be shown to the user as is.
type CommandFailedError struct {
	Message string
}

func (e *CommandFailedError) Error() string {
	return e.Message
}

func CommandFailed(format string, args ...any) error {
	return &CommandFailedError{Message: fmt.Sprintf(format, args...)}
}

func IsCommandFailed(err error) bool {
	var cmdErr *CommandFailedError
	return errors.As(err, &cmdErr)
}
