package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalidNumber = errors.New("invalid result number")
	ErrLockHeld      = errors.New("lock already held")
)
