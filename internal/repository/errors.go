package repository

import "errors"

// ErrNotFound marks operations that target a medicine or schedule that no
// longer exists. Reminder-path callers treat it as a silent no-op (the
// expected race with deletion); user-path callers map it to a 404-style reply.
var ErrNotFound = errors.New("not found")
