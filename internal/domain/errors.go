package domain

import "errors"

// Sentinel errors for handlers to map to transport-level status codes.
var (
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = errors.New("user not found")
	// ErrProjectNotFound is returned when a project id does not resolve.
	ErrProjectNotFound = errors.New("project not found")
	// ErrActivityNotFound is returned when an activity id does not resolve.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrSelfDependency is returned when an activity is asked to depend on itself.
	ErrSelfDependency = errors.New("activity cannot depend on itself")
)
