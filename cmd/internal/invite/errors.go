package invite

import "errors"

var (
	ErrInvalidInput     = errors.New("invite: invalid input")
	ErrInvalidSignature = errors.New("invite: invalid signature")
	ErrSelfInvite       = errors.New("invite: cannot accept own invite")
	ErrNotFound         = errors.New("invite: not found")
	ErrExpired          = errors.New("invite: expired")
)
