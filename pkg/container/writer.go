package container

import (
	"bytes"
	"hash/crc32"
	"io"
	"slices"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/pkg/errors"
)

// Writer collects arrays in memory and encodes them as a container file.
//
// A Writer is not safe for concurrent use.
type Writer struct {
	sets map[string]map[string]*Array
}

// NewWriter returns an empty [Writer].
func NewWriter() *Writer {
	return &Writer{sets: make(map[string]map[string]*Array)}
}

// Put adds field to set. The array is copied.
//
// Possible errors: [ErrInvalidInput] for invalid names, duplicate fields,
// nil arrays and arrays of more than 32 dimensions.
func (w *Writer) Put(set, field string, a *Array) error {
	if err := validateName(set); err != nil {
		return errors.WithMessage(err, "set")
	}

	if err := validateName(field); err != nil {
		return errors.WithMessagef(err, "field of set %q", set)
	}

	if a == nil {
		return errors.Wrapf(ErrInvalidInput, "%s/%s: nil array", set, field)
	}

	if a.Ndim() > maxNdim {
		return errors.Wrapf(ErrInvalidInput, "%s/%s: rank %d exceeds %d", set, field, a.Ndim(), maxNdim)
	}

	fields, ok := w.sets[set]
	if !ok {
		fields = make(map[string]*Array)
		w.sets[set] = fields
	}

	if _, exists := fields[field]; exists {
		return errors.Wrapf(ErrInvalidInput, "%s/%s: field already exists", set, field)
	}

	fields[field] = a.Clone()

	return nil
}

// PutObjects adds the object layout of set: fields become the object field
// list and ids the per-object id vectors, one column per field.
//
// Possible errors: [ErrInvalidInput].
func (w *Writer) PutObjects(set string, fields []string, ids *Array) error {
	if len(fields) == 0 {
		return errors.Wrapf(ErrInvalidInput, "%s: empty object field list", set)
	}

	for _, f := range fields {
		if err := validateName(f); err != nil {
			return errors.WithMessagef(err, "object field of set %q", set)
		}
	}

	if ids == nil || ids.Ndim() != 2 || !ids.DType().IsInteger() {
		return errors.Wrapf(ErrInvalidInput, "%s: object ids must be a 2-d integer array", set)
	}

	if ids.shape[1] != len(fields) {
		return errors.Wrapf(ErrInvalidInput, "%s: object ids have %d columns for %d fields", set, ids.shape[1], len(fields))
	}

	if err := w.Put(set, ObjectFieldsField, TextArray(fields)); err != nil {
		return err
	}

	return w.Put(set, ObjectIDsField, ids)
}

// WriteTo encodes the container to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	var body bytes.Buffer

	pos := uint64(dbc1HeaderSize)
	sets := make([]*setEntry, 0, len(w.sets))

	for _, setName := range sortedKeys(w.sets) {
		set := &setEntry{name: setName}

		for _, fieldName := range sortedKeys(w.sets[setName]) {
			arr := w.sets[setName][fieldName]

			if pad := alignUp(pos) - pos; pad > 0 {
				body.Write(make([]byte, pad))
				pos += pad
			}

			set.fields = append(set.fields, &fieldEntry{
				name:   fieldName,
				dtype:  arr.dtype,
				shape:  slices.Clone(arr.shape),
				offset: pos,
				length: uint64(len(arr.data)),
			})

			body.Write(arr.data)
			pos += uint64(len(arr.data))
		}

		sets = append(sets, set)
	}

	dir := encodeDirectory(sets)

	header := encodeHeader(&dbc1Header{
		Version:    dbc1Version,
		HeaderSize: dbc1HeaderSize,
		DirOffset:  pos,
		DirLength:  uint64(len(dir)),
		DirCRC32C:  crc32.Checksum(dir, castagnoli),
	})

	var written int64

	for _, chunk := range [][]byte{header, body.Bytes(), dir} {
		n, err := dst.Write(chunk)
		written += int64(n)

		if err != nil {
			return written, errors.Wrap(err, "write container")
		}
	}

	return written, nil
}

// WriteFile encodes the container and atomically replaces path with it.
func (w *Writer) WriteFile(path string) error {
	var buf bytes.Buffer

	if _, err := w.WriteTo(&buf); err != nil {
		return err
	}

	if err := atomic.WriteFile(path, &buf); err != nil {
		return errors.Wrapf(err, "write container %s", path)
	}

	return nil
}

func validateName(name string) error {
	if name == "" {
		return errors.Wrap(ErrInvalidInput, "empty name")
	}

	if len(name) > maxNameLen {
		return errors.Wrapf(ErrInvalidInput, "name of %d bytes exceeds %d", len(name), maxNameLen)
	}

	if strings.Contains(name, "/") {
		return errors.Wrapf(ErrInvalidInput, "name %q contains '/'", name)
	}

	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	return keys
}
