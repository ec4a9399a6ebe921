package registry

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by registry operations.
//
// Callers should use [errors.Is] to check error types:
//
//	if errors.Is(err, registry.ErrDatasetNotFound) {
//	    // download and process the dataset first
//	}
var (
	// ErrDatasetNotFound indicates the dataset is not registered under any
	// category. Returned errors are *[DatasetNotFoundError].
	ErrDatasetNotFound = errors.New("registry: dataset does not exist")

	// ErrTaskNotFound indicates the dataset is registered but has no cache
	// file for the requested task.
	ErrTaskNotFound = errors.New("registry: task does not exist")

	// ErrInvalidDocument indicates the registry file exists but is not a
	// valid registry document.
	ErrInvalidDocument = errors.New("registry: invalid document")

	// ErrUnknownField indicates a record field name other than data_dir or
	// cache_dir was requested.
	ErrUnknownField = errors.New("registry: unknown record field")

	// ErrInvalidInput indicates invalid arguments, such as an empty dataset
	// or category name.
	ErrInvalidInput = errors.New("registry: invalid input")
)

// DatasetNotFoundError reports a required dataset that is not registered.
type DatasetNotFoundError struct {
	Name string
}

func (e *DatasetNotFoundError) Error() string {
	return fmt.Sprintf("dataset %q does not exist in the cache file", e.Name)
}

// Is makes errors.Is(err, ErrDatasetNotFound) match.
func (e *DatasetNotFoundError) Is(target error) bool {
	return target == ErrDatasetNotFound
}
