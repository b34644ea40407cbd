package dao

import "errors"

// Sentinel errors shared by every store; match them with errors.Is.
var (
	// ErrNotFound is returned when no entity is stored under the key
	ErrNotFound = errors.New("dao: not found")

	// ErrInvalidID is returned for an empty or zero key
	ErrInvalidID = errors.New("dao: invalid id")

	// ErrNilEntity is returned when saving a nil pointer
	ErrNilEntity = errors.New("dao: nil entity")
)

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
