package tag

import "errors"

// Sentinel errors for the tag service layer.
var (
	ErrNotFound = errors.New("tag not found")
)
