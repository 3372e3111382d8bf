package domain

import "errors"

// ErrVersionConflict is returned by the wallet store when a version-gated
// update finds the stored version has moved since it was read.
var ErrVersionConflict = errors.New("wallet version conflict")
