package container

import "github.com/pkg/errors"

// Sentinel errors returned by container operations.
//
// Returned errors carry the set/field path and a stack trace; use
// [errors.Is] to check the kind:
//
//	if errors.Is(err, container.ErrFieldNotFound) {
//	    // fall back to another field
//	}
var (
	// ErrCorrupt indicates the container file is damaged (checksum mismatch,
	// truncated data, out-of-bounds blocks).
	ErrCorrupt = errors.New("container: corrupt")

	// ErrIncompatible indicates the file is not a container this package can
	// read (bad magic, unknown version or flags).
	ErrIncompatible = errors.New("container: incompatible")

	// ErrClosed indicates the [Reader] has already been closed.
	ErrClosed = errors.New("container: closed")

	// ErrSetNotFound indicates the requested set does not exist.
	ErrSetNotFound = errors.New("container: set not found")

	// ErrFieldNotFound indicates the requested field does not exist in the
	// set, or is not part of the object field list.
	ErrFieldNotFound = errors.New("container: field not found")

	// ErrOutOfRange indicates an index outside an array's bounds.
	ErrOutOfRange = errors.New("container: index out of range")

	// ErrTypeMismatch indicates an array has the wrong type or rank for the
	// requested conversion.
	ErrTypeMismatch = errors.New("container: type mismatch")

	// ErrNoObjectFields indicates the container has no object field list, so
	// objects cannot be resolved to values.
	ErrNoObjectFields = errors.New("container: no object fields")

	// ErrInvalidInput indicates invalid arguments to the writer or array
	// constructors.
	ErrInvalidInput = errors.New("container: invalid input")
)
