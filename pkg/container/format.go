package container

import (
	"bytes"
	"hash/crc32"
	"math/bits"

	"github.com/pkg/errors"
)

// DBC1 file format constants.
const (
	// File format version.
	dbc1Version = 1

	// Fixed header size in bytes. Data blocks start right after it.
	dbc1HeaderSize = 64

	// Data blocks start on this boundary.
	dbc1Align = 8

	// Upper bound on array rank, to reject garbage directories early.
	maxNdim = 32

	maxNameLen = 1<<16 - 1
)

var dbc1Magic = [4]byte{'D', 'B', 'C', '1'}

// Safe integer conversion constants.
const (
	maxInt = int(^uint(0) >> 1)
)

// Header field offsets (bytes from file start).
const (
	offMagic        = 0x00 // [4]byte
	offVersion      = 0x04 // uint32
	offHeaderSize   = 0x08 // uint32
	offFlags        = 0x0C // uint32
	offDirOffset    = 0x10 // uint64
	offDirLength    = 0x18 // uint64
	offDirCRC32C    = 0x20 // uint32
	offHeaderCRC32C = 0x24 // uint32
	offReserved     = 0x28 // reserved bytes through 0x3F
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// dbc1Header represents the 64-byte DBC1 file header.
type dbc1Header struct {
	Version    uint32
	HeaderSize uint32
	Flags      uint32
	DirOffset  uint64
	DirLength  uint64
	DirCRC32C  uint32
}

// fieldEntry describes one array in the directory.
type fieldEntry struct {
	name   string
	dtype  DType
	shape  []int
	offset uint64
	length uint64
}

// setEntry describes one set in the directory. Fields are sorted by name.
type setEntry struct {
	name   string
	fields []*fieldEntry
}

func (s *setEntry) field(name string) (*fieldEntry, bool) {
	for _, f := range s.fields {
		if f.name == name {
			return f, true
		}
	}

	return nil, false
}

// encodeHeader serializes the header to a 64-byte slice.
// The header CRC is computed and stored in the output.
func encodeHeader(h *dbc1Header) []byte {
	buf := make([]byte, dbc1HeaderSize)

	copy(buf[offMagic:], dbc1Magic[:])
	le.PutUint32(buf[offVersion:], h.Version)
	le.PutUint32(buf[offHeaderSize:], h.HeaderSize)
	le.PutUint32(buf[offFlags:], h.Flags)
	le.PutUint64(buf[offDirOffset:], h.DirOffset)
	le.PutUint64(buf[offDirLength:], h.DirLength)
	le.PutUint32(buf[offDirCRC32C:], h.DirCRC32C)

	le.PutUint32(buf[offHeaderCRC32C:], headerCRC(buf))

	return buf
}

// headerCRC computes the CRC32-C of the header with the CRC field zeroed.
func headerCRC(buf []byte) uint32 {
	tmp := make([]byte, dbc1HeaderSize)
	copy(tmp, buf[:dbc1HeaderSize])
	le.PutUint32(tmp[offHeaderCRC32C:], 0)

	return crc32.Checksum(tmp, castagnoli)
}

// decodeHeader validates and parses the header of a file of the given size.
//
// Possible errors: [ErrIncompatible], [ErrCorrupt].
func decodeHeader(buf []byte, fileSize uint64) (*dbc1Header, error) {
	if len(buf) < dbc1HeaderSize {
		return nil, errors.Wrapf(ErrCorrupt, "file too small for header: %d bytes", len(buf))
	}

	if !bytes.Equal(buf[offMagic:offMagic+4], dbc1Magic[:]) {
		return nil, errors.Wrapf(ErrIncompatible, "invalid magic %q, expected DBC1", buf[offMagic:offMagic+4])
	}

	h := &dbc1Header{
		Version:    le.Uint32(buf[offVersion:]),
		HeaderSize: le.Uint32(buf[offHeaderSize:]),
		Flags:      le.Uint32(buf[offFlags:]),
		DirOffset:  le.Uint64(buf[offDirOffset:]),
		DirLength:  le.Uint64(buf[offDirLength:]),
		DirCRC32C:  le.Uint32(buf[offDirCRC32C:]),
	}

	if h.Version != dbc1Version {
		return nil, errors.Wrapf(ErrIncompatible, "unsupported version %d, expected %d", h.Version, dbc1Version)
	}

	if h.HeaderSize != dbc1HeaderSize {
		return nil, errors.Wrapf(ErrIncompatible, "unsupported header_size %d, expected %d", h.HeaderSize, dbc1HeaderSize)
	}

	if h.Flags != 0 {
		return nil, errors.Wrapf(ErrIncompatible, "unknown flags 0x%08x", h.Flags)
	}

	for _, b := range buf[offReserved:dbc1HeaderSize] {
		if b != 0 {
			return nil, errors.Wrap(ErrIncompatible, "reserved bytes are non-zero")
		}
	}

	if got, want := headerCRC(buf), le.Uint32(buf[offHeaderCRC32C:]); got != want {
		return nil, errors.Wrapf(ErrCorrupt, "header crc mismatch: got 0x%08x, want 0x%08x", got, want)
	}

	if h.DirOffset < dbc1HeaderSize || h.DirOffset > fileSize || h.DirLength > fileSize-h.DirOffset {
		return nil, errors.Wrapf(ErrCorrupt, "directory [%d, +%d) outside file of %d bytes", h.DirOffset, h.DirLength, fileSize)
	}

	return h, nil
}

// encodeDirectory serializes the set/field tree.
func encodeDirectory(sets []*setEntry) []byte {
	var enc encoder

	enc.u32(uint32(len(sets)))

	for _, set := range sets {
		enc.str(set.name)
		enc.u32(uint32(len(set.fields)))

		for _, f := range set.fields {
			enc.str(f.name)
			enc.u8(uint8(f.dtype))
			enc.u8(uint8(len(f.shape)))
			enc.u16(0)

			for _, dim := range f.shape {
				enc.u64(uint64(dim))
			}

			enc.u64(f.offset)
			enc.u64(f.length)
		}
	}

	return enc.buf
}

// decodeDirectory parses the directory and checks every data block against
// the data region [dbc1HeaderSize, dataEnd).
//
// Possible errors: [ErrCorrupt].
func decodeDirectory(buf []byte, dataEnd uint64) ([]*setEntry, error) {
	dec := decoder{buf: buf}

	setCount := dec.u32()
	sets := make([]*setEntry, 0, min(int(setCount), 1024))

	for range setCount {
		set := &setEntry{name: dec.str()}
		fieldCount := dec.u32()

		for range fieldCount {
			f := &fieldEntry{name: dec.str()}
			f.dtype = DType(dec.u8())
			ndim := int(dec.u8())
			_ = dec.u16()

			if dec.err != nil {
				break
			}

			if ndim > maxNdim {
				return nil, errors.Wrapf(ErrCorrupt, "field %s/%s: rank %d exceeds %d", set.name, f.name, ndim, maxNdim)
			}

			f.shape = make([]int, ndim)
			for d := range f.shape {
				dim := dec.u64()
				if dim > uint64(maxInt) {
					return nil, errors.Wrapf(ErrCorrupt, "field %s/%s: dimension %d too large", set.name, f.name, dim)
				}

				f.shape[d] = int(dim)
			}

			f.offset = dec.u64()
			f.length = dec.u64()

			if dec.err != nil {
				break
			}

			err := validateField(set.name, f, dataEnd)
			if err != nil {
				return nil, err
			}

			set.fields = append(set.fields, f)
		}

		if dec.err != nil {
			break
		}

		sets = append(sets, set)
	}

	if dec.err != nil {
		return nil, errors.Wrap(ErrCorrupt, dec.err.Error())
	}

	if dec.off != len(buf) {
		return nil, errors.Wrapf(ErrCorrupt, "directory has %d trailing bytes", len(buf)-dec.off)
	}

	return sets, nil
}

func validateField(set string, f *fieldEntry, dataEnd uint64) error {
	if !f.dtype.Valid() {
		return errors.Wrapf(ErrCorrupt, "field %s/%s: unknown dtype %d", set, f.name, uint8(f.dtype))
	}

	count, err := elementCount(f.shape)
	if err != nil {
		return errors.Wrapf(ErrCorrupt, "field %s/%s: %v", set, f.name, err)
	}

	hi, want := bits.Mul64(uint64(count), uint64(f.dtype.Size()))
	if hi != 0 || f.length != want {
		return errors.Wrapf(ErrCorrupt, "field %s/%s: length %d does not match %s%v", set, f.name, f.length, f.dtype, f.shape)
	}

	if f.offset < dbc1HeaderSize || f.offset > dataEnd || f.length > dataEnd-f.offset {
		return errors.Wrapf(ErrCorrupt, "field %s/%s: block [%d, +%d) outside data region", set, f.name, f.offset, f.length)
	}

	return nil
}

// encoder appends little-endian values to a buffer.
type encoder struct {
	buf []byte
}

func (e *encoder) u8(v uint8)   { e.buf = append(e.buf, v) }
func (e *encoder) u16(v uint16) { e.buf = le.AppendUint16(e.buf, v) }
func (e *encoder) u32(v uint32) { e.buf = le.AppendUint32(e.buf, v) }
func (e *encoder) u64(v uint64) { e.buf = le.AppendUint64(e.buf, v) }

func (e *encoder) str(s string) {
	e.u16(uint16(len(s)))
	e.buf = append(e.buf, s...)
}

// decoder reads little-endian values from a buffer. The first short read
// sets err; later reads return zero values.
type decoder struct {
	buf []byte
	off int
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}

	if n > len(d.buf)-d.off {
		d.err = errors.Errorf("directory truncated at offset %d (need %d bytes)", d.off, n)

		return nil
	}

	b := d.buf[d.off : d.off+n]
	d.off += n

	return b
}

func (d *decoder) u8() uint8 {
	if b := d.take(1); b != nil {
		return b[0]
	}

	return 0
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return le.Uint16(b)
	}

	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return le.Uint32(b)
	}

	return 0
}

func (d *decoder) u64() uint64 {
	if b := d.take(8); b != nil {
		return le.Uint64(b)
	}

	return 0
}

func (d *decoder) str() string {
	n := int(d.u16())

	return string(d.take(n))
}

func alignUp(n uint64) uint64 {
	return (n + dbc1Align - 1) &^ (dbc1Align - 1)
}
