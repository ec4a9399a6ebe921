package fs

import (
	"bytes"
	"fmt"
	"os"

	"github.com/natefinch/atomic"
)

// Real implements [FS] using the real filesystem.
//
// All methods are passthroughs to the [os] package with identical behavior
// and error semantics. The exceptions are [Real.Exists] which wraps
// [os.Stat] and [Real.WriteFileAtomic] which writes a temp file and renames
// it over the target.
type Real struct{}

// NewReal returns a new [Real] filesystem.
func NewReal() *Real {
	return &Real{}
}

// A passthrough wrapper for [os.ReadFile].
func (r *Real) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// WriteFileAtomic writes data through [atomic.WriteFile] and then applies
// perm, since atomic.WriteFile only preserves the mode of an existing file.
func (r *Real) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	writeErr := atomic.WriteFile(path, bytes.NewReader(data))
	if writeErr != nil {
		return writeErr
	}

	chmodErr := os.Chmod(path, perm)
	if chmodErr != nil {
		return fmt.Errorf("chmod %q: %w", path, chmodErr)
	}

	return nil
}

// --- Directory Operations ---

// A passthrough wrapper for [os.MkdirAll].
func (r *Real) MkdirAll(path string, perm os.FileMode) error {
	return os.MkdirAll(path, perm)
}

// --- Metadata ---

// Exists checks if a file exists using [os.Stat].
// Returns (true, nil) if the file exists, (false, nil) if it does not,
// or (false, err) for other errors.
func (r *Real) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if os.IsNotExist(err) {
		return false, nil
	}

	return false, err
}

// --- Mutations ---

// A passthrough wrapper for [os.RemoveAll].
func (r *Real) RemoveAll(path string) error {
	return os.RemoveAll(path)
}

// Compile-time interface check.
var _ FS = (*Real)(nil)
