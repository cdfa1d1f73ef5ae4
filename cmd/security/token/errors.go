package token

import "errors"

var (
	ErrInvalidToken = errors.New("token: invalid token")
	ErrNoSubject    = errors.New("token: missing subject")
)
