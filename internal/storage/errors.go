package storage

import "errors"

// Common storage errors
var (
	// ErrUserNotFound indicates that user was not found in storage
	ErrUserNotFound = errors.New("user not found")

	// ErrUserAlreadyExists indicates that user with this username already exists
	ErrUserAlreadyExists = errors.New("user already exists")

	// ErrSessionNotFound indicates that no session exists for (username, account type)
	ErrSessionNotFound = errors.New("login session not found")

	// ErrSessionAlreadyExists indicates that a session for (username, account type) already exists
	ErrSessionAlreadyExists = errors.New("login session already exists")
)
