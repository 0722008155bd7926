package types

import "errors"

// ErrObjectNotFound is returned when an object is not found in storage
var ErrObjectNotFound = errors.New("object not found")
