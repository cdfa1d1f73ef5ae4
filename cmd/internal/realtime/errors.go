package realtime

import "errors"

var (
	// ErrNotAuthorized is returned when a connection cannot be bound to a user.
	ErrNotAuthorized = errors.New("realtime: not authorized")
	// ErrNotAMember is returned for conversation operations by non-members.
	ErrNotAMember = errors.New("realtime: not a conversation member")
)
