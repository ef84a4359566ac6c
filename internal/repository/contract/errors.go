package contract

import "errors"

// ErrDuplicateKey is returned by repositories when an insert hits a
// storage-level uniqueness constraint.
var ErrDuplicateKey = errors.New("duplicate key violation")
