// Package fs provides the filesystem seam used by the registry.
//
// The main types are:
//   - [FS]: interface for the filesystem operations the registry performs
//   - [Real]: production implementation using [os] and atomic file replacement
//   - [Faulty]: testing implementation that injects errors for chosen operations
//
// Example usage:
//
//	fsys := fs.NewReal()
//	data, err := fsys.ReadFile("/home/me/.dbcollection.json")
//	if err != nil {
//	    return err
//	}
package fs

import (
	"os"
)

// FS defines the filesystem operations needed to load, persist and clean up
// dataset registries.
//
// Paths use OS semantics (like the os package and path/filepath), not the
// slash-separated paths used by the standard library io/fs package.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type FS interface {
	// ReadFile reads an entire file into memory. See [os.ReadFile].
	ReadFile(path string) ([]byte, error)

	// WriteFileAtomic replaces path with data as a whole. Readers observe
	// either the old or the new content, never a partial write. Parent
	// directories must exist.
	WriteFileAtomic(path string, data []byte, perm os.FileMode) error

	// MkdirAll creates a directory and all parents. See [os.MkdirAll].
	// No error if the directory already exists.
	MkdirAll(path string, perm os.FileMode) error

	// Exists reports whether a file or directory exists.
	// Returns (false, nil) if not found, (false, err) on other errors.
	Exists(path string) (bool, error)

	// RemoveAll deletes a path and any children. See [os.RemoveAll].
	// No error if path doesn't exist.
	RemoveAll(path string) error
}
