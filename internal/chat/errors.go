package chat

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound means no live conversation has the given id. Callers
	// show the customer the session-expired reply.
	ErrNotFound = errors.New("chat: conversation not found")

	// ErrConflict means Start was called with an id already in use.
	ErrConflict = errors.New("chat: conversation already exists")

	// ErrNotEscalated means an agent tried to take over a conversation the
	// bot is still handling.
	ErrNotEscalated = errors.New("chat: conversation is not waiting for an agent")

	// ErrCollaboratorUnavailable matches any CollaboratorError.
	ErrCollaboratorUnavailable = errors.New("chat: collaborator unavailable")
)

// CollaboratorError wraps a failed identity or persistence call.
type CollaboratorError struct {
	Op  string
	Err error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("chat: %s: %v", e.Op, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause to errors.Is.
func (e *CollaboratorError) Unwrap() []error {
	return []error{ErrCollaboratorUnavailable, e.Err}
}
