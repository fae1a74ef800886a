package domain

import "errors"

var (
	// ErrAccessDenied is returned when a room is not in the session's
	// allowed set. Recoverable: the user may request access.
	ErrAccessDenied = errors.New("access to room denied")

	// ErrNotInRoom is returned when a post or signal arrives from a
	// session with no active room.
	ErrNotInRoom = errors.New("not in a room")

	// ErrForbidden is returned when a non-admin invokes an admin command.
	ErrForbidden = errors.New("admin privileges required")

	// ErrPersistence marks a failed history append. The message is still
	// broadcast live; the sender is told durability was not achieved.
	ErrPersistence = errors.New("message could not be persisted")

	// ErrAdapterTimeout is returned when an external store call exceeds
	// its deadline. Transient; the caller may retry.
	ErrAdapterTimeout = errors.New("storage adapter timed out")

	// ErrBadCredentials deliberately does not distinguish an unknown user
	// from a wrong password, to avoid username enumeration.
	ErrBadCredentials = errors.New("unknown user or bad credential")

	ErrUserExists   = errors.New("username already taken")
	ErrUserNotFound = errors.New("user not found")

	ErrEmptyMessage = errors.New("message needs text or an attachment")
	ErrUnknownRoom  = errors.New("unknown room")

	ErrNotAuthenticated = errors.New("not authenticated")

	ErrMissingFields = errors.New("required fields missing")
)
