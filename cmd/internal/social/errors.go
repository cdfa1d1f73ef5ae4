package social

import "errors"

var (
	ErrInvalidInput = errors.New("social: invalid input")
	ErrNotFound     = errors.New("social: not found")
	ErrUserNotFound = errors.New("social: user not found")
)
