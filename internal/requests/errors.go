package requests

import "errors"

// ErrNotFound indicates no request row exists for the given TMDB id.
var ErrNotFound = errors.New("request not found")

// ErrExists indicates a create raced with another writer that inserted the
// same TMDB id first. Callers should re-read and update instead.
var ErrExists = errors.New("request already exists")

// ErrConflict indicates an optimistic-concurrency failure: the row's revision
// changed between read and write. Callers should re-read, replay their change
// against the fresh record, and try again.
var ErrConflict = errors.New("request revision conflict")
