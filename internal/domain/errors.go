package domain

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("account has been deactivated")
	ErrTooManyAttempts    = errors.New("too many failed login attempts")

	ErrRequestNotFound  = errors.New("request not found")
	ErrForbidden        = errors.New("not allowed to act on this request")
	ErrInvalidState     = errors.New("request is not in a valid state for this action")
	ErrSelfRequest      = errors.New("cannot send a request to yourself")
	ErrDuplicatePending = errors.New("a similar request already exists between you and this user")
	ErrAlreadyRated     = errors.New("request has already been rated by this user")
)
