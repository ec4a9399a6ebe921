package fs

import (
	"os"
	"path/filepath"
	"sync"
)

// Op names an [FS] operation that [Faulty] can intercept.
type Op string

// Operations that can be failed with [Faulty.Fail].
const (
	OpReadFile        Op = "read"
	OpWriteFileAtomic Op = "write"
	OpMkdirAll        Op = "mkdir"
	OpExists          Op = "exists"
	OpRemoveAll       Op = "removeall"
)

// Faulty wraps an [FS] and returns injected errors for selected operations.
//
// Unlike a random fault injector, Faulty is deterministic: a fault fires for
// every call of the given operation on a matching path until it is cleared.
// Calls that don't match are passed through to the wrapped filesystem.
//
// Injected errors are returned as *[os.PathError] wrapping the configured
// error, so callers can use [os.IsNotExist], [errors.Is] and friends the same
// way they would with real failures.
type Faulty struct {
	fs FS

	mu     sync.Mutex
	faults map[Op]map[string]error
	calls  map[Op]int
}

// NewFaulty returns a [Faulty] that passes everything through to fsys.
// Panics if fsys is nil.
func NewFaulty(fsys FS) *Faulty {
	if fsys == nil {
		panic("fs is nil")
	}

	return &Faulty{
		fs:     fsys,
		faults: make(map[Op]map[string]error),
		calls:  make(map[Op]int),
	}
}

// Fail makes every later call of op on path return err. An empty path
// matches any path.
func (f *Faulty) Fail(op Op, path string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.faults[op] == nil {
		f.faults[op] = make(map[string]error)
	}

	if path != "" {
		path = filepath.Clean(path)
	}

	f.faults[op][path] = err
}

// Clear removes all injected faults.
func (f *Faulty) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faults = make(map[Op]map[string]error)
}

// Calls returns how many times op was invoked, including failed calls.
func (f *Faulty) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.calls[op]
}

func (f *Faulty) check(op Op, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[op]++

	byPath := f.faults[op]
	if byPath == nil {
		return nil
	}

	err, ok := byPath[filepath.Clean(path)]
	if !ok {
		err, ok = byPath[""]
	}

	if !ok {
		return nil
	}

	return &os.PathError{Op: string(op), Path: path, Err: err}
}

func (f *Faulty) ReadFile(path string) ([]byte, error) {
	if err := f.check(OpReadFile, path); err != nil {
		return nil, err
	}

	return f.fs.ReadFile(path)
}

func (f *Faulty) WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	if err := f.check(OpWriteFileAtomic, path); err != nil {
		return err
	}

	return f.fs.WriteFileAtomic(path, data, perm)
}

func (f *Faulty) MkdirAll(path string, perm os.FileMode) error {
	if err := f.check(OpMkdirAll, path); err != nil {
		return err
	}

	return f.fs.MkdirAll(path, perm)
}

func (f *Faulty) Exists(path string) (bool, error) {
	if err := f.check(OpExists, path); err != nil {
		return false, err
	}

	return f.fs.Exists(path)
}

func (f *Faulty) RemoveAll(path string) error {
	if err := f.check(OpRemoveAll, path); err != nil {
		return err
	}

	return f.fs.RemoveAll(path)
}

// Compile-time interface check.
var _ FS = (*Faulty)(nil)
