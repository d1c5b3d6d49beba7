package history

import "errors"

// ErrInvalidSessionID is returned when a session id contains a path
// separator, carries a filename suffix, or would resolve outside the
// storage root.
var ErrInvalidSessionID = errors.New("history: invalid session id")

// ErrSessionNotFound is returned by Load/Delete when no session file
// exists for a given id.
var ErrSessionNotFound = errors.New("history: session not found")
