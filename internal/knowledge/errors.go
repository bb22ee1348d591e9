package knowledge

import "errors"

// ErrNotFound is returned when a lookup finds no matching record.
var ErrNotFound = errors.New("knowledge: record not found")
