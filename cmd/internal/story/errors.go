package story

import "errors"

var (
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("story: invalid input")

	// ErrNotFound marks a missing story.
	ErrNotFound = errors.New("story: not found")
)
