package vecstore

import "errors"

// ErrNotFound is returned when a lookup by id or name finds nothing.
var ErrNotFound = errors.New("vecstore: not found")
