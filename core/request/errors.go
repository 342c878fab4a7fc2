package request

import "errors"

// ErrNotFound is returned for ids the store has never seen.
var ErrNotFound = errors.New("request not found")

// ErrConflict is the generic optimistic-concurrency failure: the request
// status changed since the caller's last read. Callers must refresh state
// rather than retry the identical call.
var ErrConflict = errors.New("request status changed")
