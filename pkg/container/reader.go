package container

import (
	"hash/crc32"
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Reserved field names.
const (
	// ObjectIDsField holds one id vector per object: a 2-D integer array
	// [objects, len(ObjectFields)].
	ObjectIDsField = "object_ids"

	// ObjectFieldsField holds the composite field names as a 2-D uint8
	// character-code array.
	ObjectFieldsField = "object_fields"

	// TrainSet is the set the object field list is read from.
	TrainSet = "train"
)

// Reader is a read-only handle on a container file.
//
// The file is memory-mapped by [Open] and released by [Reader.Close].
// Methods are safe for concurrent use; any number of readers may have the
// same file open.
type Reader struct {
	mu     sync.RWMutex
	closed bool

	path string
	file *os.File
	data []byte

	sets         []*setEntry // sorted by name
	objectFields []string
}

// ObjectResult is the result of [Reader.GetObject].
//
// Without value resolution only IDs is set. With resolution, Tuple holds the
// object when exactly one row was requested and Tuples holds one object per
// row otherwise. The single-row shape is kept for callers that index the
// result directly.
type ObjectResult struct {
	IDs    *Array
	Tuple  Object
	Tuples []Object
}

// Object holds one value per object field, in [Reader.ObjectFields] order.
type Object []*Array

// Open opens and validates the container at path.
//
// Possible errors: I/O errors from open/stat/mmap, [ErrIncompatible],
// [ErrCorrupt].
func Open(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open container")
	}

	reader, err := openFile(path, file)
	if err != nil {
		_ = file.Close()

		return nil, err
	}

	return reader, nil
}

func openFile(path string, file *os.File) (*Reader, error) {
	info, err := file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat container")
	}

	size := info.Size()
	if size < dbc1HeaderSize {
		return nil, errors.Wrapf(ErrCorrupt, "%s: file too small: %d bytes", path, size)
	}

	if size > int64(maxInt) {
		return nil, errors.Wrapf(ErrIncompatible, "%s: file size %d exceeds max int", path, size)
	}

	data, err := unix.Mmap(int(file.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "mmap container")
	}

	reader := &Reader{path: path, file: file, data: data}

	loadErr := reader.load()
	if loadErr != nil {
		_ = unix.Munmap(data)

		return nil, errors.WithMessage(loadErr, path)
	}

	return reader, nil
}

func (r *Reader) load() error {
	fileSize := uint64(len(r.data))

	header, err := decodeHeader(r.data, fileSize)
	if err != nil {
		return err
	}

	dir := r.data[header.DirOffset : header.DirOffset+header.DirLength]
	if got := crc32.Checksum(dir, castagnoli); got != header.DirCRC32C {
		return errors.Wrapf(ErrCorrupt, "directory crc mismatch: got 0x%08x, want 0x%08x", got, header.DirCRC32C)
	}

	sets, err := decodeDirectory(dir, header.DirOffset)
	if err != nil {
		return err
	}

	slices.SortFunc(sets, func(a, b *setEntry) int { return strings.Compare(a.name, b.name) })

	for _, set := range sets {
		slices.SortFunc(set.fields, func(a, b *fieldEntry) int { return strings.Compare(a.name, b.name) })
	}

	r.sets = sets

	train, ok := r.set(TrainSet)
	if !ok {
		return nil
	}

	entry, ok := train.field(ObjectFieldsField)
	if !ok {
		return nil
	}

	names, err := r.view(entry).Strings()
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "%s/%s: %v", TrainSet, ObjectFieldsField, err)
	}

	r.objectFields = names

	return nil
}

// Close unmaps the file and closes the descriptor. Calling Close more than
// once is a no-op.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}

	r.closed = true

	munmapErr := unix.Munmap(r.data)
	r.data = nil

	closeErr := r.file.Close()

	if munmapErr != nil {
		return errors.Wrap(munmapErr, "munmap container")
	}

	if closeErr != nil {
		return errors.Wrap(closeErr, "close container")
	}

	return nil
}

// Path returns the path the reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Sets returns the names of all sets, sorted.
func (r *Reader) Sets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.sets))
	for i, set := range r.sets {
		names[i] = set.name
	}

	return names
}

// ObjectFields returns the ordered names of the fields that make up an
// object, as stored in the train set. Nil when the container has none.
func (r *Reader) ObjectFields() []string {
	return slices.Clone(r.objectFields)
}

// Fields returns the field names of a set, sorted.
//
// Possible errors: [ErrClosed], [ErrSetNotFound].
func (r *Reader) Fields(set string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	entry, ok := r.set(set)
	if !ok {
		return nil, errors.Wrapf(ErrSetNotFound, "set %q", set)
	}

	names := make([]string, len(entry.fields))
	for i, f := range entry.fields {
		names[i] = f.name
	}

	return names, nil
}

// Get returns the array of field in set.
//
// With a nil idx the whole array is returned. [At] selects one row along the
// first dimension (the result has one dimension less); [Rows] selects rows
// in the given order (the result keeps the rank).
//
// Possible errors: [ErrClosed], [ErrSetNotFound], [ErrFieldNotFound],
// [ErrOutOfRange].
func (r *Reader) Get(set, field string, idx Index) (*Array, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	arr, err := r.array(set, field)
	if err != nil {
		return nil, err
	}

	out, err := selectRows(arr, idx)
	if err != nil {
		return nil, errors.WithMessagef(err, "%s/%s", set, field)
	}

	return out, nil
}

// GetObject returns the objects at idx in set.
//
// When resolve is false, ObjectResult.IDs holds the raw id vectors from the
// object_ids field, selected like [Reader.Get]. When resolve is true, every
// id vector is resolved into an [Object]: element k is the row ids[k] of
// field ObjectFields()[k]. A nil idx selects all objects.
//
// Possible errors: those of [Reader.Get], [ErrNoObjectFields].
func (r *Reader) GetObject(set string, idx Index, resolve bool) (ObjectResult, error) {
	if !resolve {
		ids, err := r.Get(set, ObjectIDsField, idx)
		if err != nil {
			return ObjectResult{}, err
		}

		return ObjectResult{IDs: ids}, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ObjectResult{}, ErrClosed
	}

	if len(r.objectFields) == 0 {
		return ObjectResult{}, errors.Wrapf(ErrNoObjectFields, "resolve objects of set %q", set)
	}

	ids, err := r.array(set, ObjectIDsField)
	if err != nil {
		return ObjectResult{}, err
	}

	fields := make([]*Array, len(r.objectFields))
	for k, name := range r.objectFields {
		fields[k], err = r.array(set, name)
		if err != nil {
			return ObjectResult{}, err
		}
	}

	var rows []int
	if idx == nil {
		rows = make([]int, ids.Len())
		for i := range rows {
			rows[i] = i
		}
	} else {
		rows = idx.rows()
	}

	objects := make([]Object, 0, len(rows))

	for _, row := range rows {
		vec, err := ids.Row(row)
		if err != nil {
			return ObjectResult{}, errors.WithMessagef(err, "%s/%s", set, ObjectIDsField)
		}

		obj := make(Object, len(fields))
		for k, arr := range fields {
			id, err := vec.Int64(k)
			if err != nil {
				return ObjectResult{}, errors.WithMessagef(err, "%s/%s row %d", set, ObjectIDsField, row)
			}

			obj[k], err = arr.Row(int(id))
			if err != nil {
				return ObjectResult{}, errors.WithMessagef(err, "%s/%s", set, r.objectFields[k])
			}
		}

		objects = append(objects, obj)
	}

	if len(objects) == 1 {
		return ObjectResult{Tuple: objects[0]}, nil
	}

	return ObjectResult{Tuples: objects}, nil
}

// Size returns the length of the first dimension of field. An empty field
// means object_ids.
//
// Possible errors: those of [Reader.Shape], [ErrOutOfRange] for 0-d fields.
func (r *Reader) Size(set, field string) (int, error) {
	shape, err := r.Shape(set, field)
	if err != nil {
		return 0, err
	}

	if len(shape) == 0 {
		return 0, errors.Wrapf(ErrOutOfRange, "%s/%s: 0-d field has no length", set, field)
	}

	return shape[0], nil
}

// Shape returns the full shape of field. An empty field means object_ids.
//
// Possible errors: [ErrClosed], [ErrSetNotFound], [ErrFieldNotFound].
func (r *Reader) Shape(set, field string) ([]int, error) {
	if field == "" {
		field = ObjectIDsField
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, ErrClosed
	}

	entry, err := r.field(set, field)
	if err != nil {
		return nil, err
	}

	return slices.Clone(entry.shape), nil
}

// FieldPosition returns the position of field in [Reader.ObjectFields].
//
// Possible errors: [ErrFieldNotFound].
func (r *Reader) FieldPosition(field string) (int, error) {
	pos := slices.Index(r.objectFields, field)
	if pos < 0 {
		return 0, errors.Wrapf(ErrFieldNotFound, "field name %q does not exist", field)
	}

	return pos, nil
}

func (r *Reader) set(name string) (*setEntry, bool) {
	i, ok := slices.BinarySearchFunc(r.sets, name, func(s *setEntry, name string) int {
		return strings.Compare(s.name, name)
	})
	if !ok {
		return nil, false
	}

	return r.sets[i], true
}

func (r *Reader) field(set, field string) (*fieldEntry, error) {
	entry, ok := r.set(set)
	if !ok {
		return nil, errors.Wrapf(ErrSetNotFound, "set %q", set)
	}

	f, ok := entry.field(field)
	if !ok {
		return nil, errors.Wrapf(ErrFieldNotFound, "field %s/%s", set, field)
	}

	return f, nil
}

// array returns a view of the field that aliases the mapping. Callers must
// copy before handing data out.
func (r *Reader) array(set, field string) (*Array, error) {
	f, err := r.field(set, field)
	if err != nil {
		return nil, err
	}

	return r.view(f), nil
}

func (r *Reader) view(f *fieldEntry) *Array {
	return newArrayView(f.dtype, f.shape, r.data[f.offset:f.offset+f.length])
}
