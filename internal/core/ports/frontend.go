package ports

import "context"

// Frontend is implemented by the presentation layer and used by the
// backends while unlocking the node wallet.
type Frontend interface {
	// GetPassword blocks until the user enters a password. It returns
	// domain.ErrPasswordCancelled if the user declines.
	GetPassword(ctx context.Context, prompt string) (string, error)
	ShowError(message string)
}
