package domain

import "errors"

// ErrNotFound is returned when a referenced tenant, item or aggregate has no
// persisted record. Callers should match it with errors.Is.
var ErrNotFound = errors.New("not found")
