// Package codec provides the endian-aware primitive readers and writers
// used throughout jetdb: unsigned byte/short, 3-byte page-number integers
// in either orientation, 4-byte integers with explicit endianness, and a
// handful of buffer helpers covering the full primitive set spec.md 4.2
// requires.
package codec

import (
	"encoding/binary"
	"errors"
)

// ErrShortBuffer is returned when a read would run past the end of the
// supplied slice.
var ErrShortBuffer = errors.New("codec: short buffer")

// ReadByte reads a single unsigned byte at off.
func ReadByte(b []byte, off int) (byte, error) {
	if off < 0 || off >= len(b) {
		return 0, ErrShortBuffer
	}
	return b[off], nil
}

// WriteByte writes a single unsigned byte at off.
func WriteByte(b []byte, off int, v byte) error {
	if off < 0 || off >= len(b) {
		return ErrShortBuffer
	}
	b[off] = v
	return nil
}

// ReadUint16LE reads a little-endian unsigned short at off. Jet header and
// row structures default to little-endian.
func ReadUint16LE(b []byte, off int) (uint16, error) {
	if off < 0 || off+2 > len(b) {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint16(b[off : off+2]), nil
}

// WriteUint16LE writes a little-endian unsigned short at off.
func WriteUint16LE(b []byte, off int, v uint16) error {
	if off < 0 || off+2 > len(b) {
		return ErrShortBuffer
	}
	binary.LittleEndian.PutUint16(b[off:off+2], v)
	return nil
}

// ReadUint32 reads a 4-byte unsigned integer at off using the requested
// byte order without touching any other field's interpretation.
func ReadUint32(b []byte, off int, order binary.ByteOrder) (uint32, error) {
	if off < 0 || off+4 > len(b) {
		return 0, ErrShortBuffer
	}
	return order.Uint32(b[off : off+4]), nil
}

// WriteUint32 writes a 4-byte unsigned integer at off using the requested
// byte order.
func WriteUint32(b []byte, off int, v uint32, order binary.ByteOrder) error {
	if off < 0 || off+4 > len(b) {
		return ErrShortBuffer
	}
	order.PutUint32(b[off:off+4], v)
	return nil
}

// ReadInt24 reads a 3-byte integer (used to pack a page number inside an
// index entry's trailing row-id, spec.md 4.2) in the requested orientation.
// Leaf entries use big-endian; header structures use little-endian.
func ReadInt24(b []byte, off int, bigEndian bool) (int32, error) {
	if off < 0 || off+3 > len(b) {
		return 0, ErrShortBuffer
	}
	var v uint32
	if bigEndian {
		v = uint32(b[off])<<16 | uint32(b[off+1])<<8 | uint32(b[off+2])
	} else {
		v = uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16
	}
	return int32(v), nil
}

// WriteInt24 writes a 3-byte integer in the requested orientation.
func WriteInt24(b []byte, off int, v int32, bigEndian bool) error {
	if off < 0 || off+3 > len(b) {
		return ErrShortBuffer
	}
	u := uint32(v)
	if bigEndian {
		b[off] = byte(u >> 16)
		b[off+1] = byte(u >> 8)
		b[off+2] = byte(u)
	} else {
		b[off] = byte(u)
		b[off+1] = byte(u >> 8)
		b[off+2] = byte(u >> 16)
	}
	return nil
}

// Fill sets every byte in b[start:end] to v.
func Fill(b []byte, start, end int, v byte) error {
	if start < 0 || end > len(b) || start > end {
		return ErrShortBuffer
	}
	for i := start; i < end; i++ {
		b[i] = v
	}
	return nil
}

// Clear zeroes b[start:end].
func Clear(b []byte, start, end int) error {
	return Fill(b, start, end, 0)
}

// MatchRange reports whether every byte in b[start:end] equals v.
func MatchRange(b []byte, start, end int, v byte) (bool, error) {
	if start < 0 || end > len(b) || start > end {
		return false, ErrShortBuffer
	}
	for i := start; i < end; i++ {
		if b[i] != v {
			return false, nil
		}
	}
	return true, nil
}

// Slice returns a narrowed, independent copy-free view of b from position
// to limit (exclusive), analogous to duplicating a buffer and setting its
// mark at position (spec.md 4.2). Because Go slices already carry their
// own bounds, this is the idiomatic equivalent of the Java ByteBuffer
// slice/mark dance: callers get a window that cannot see bytes outside
// [position, limit) and whose index 0 corresponds to b[position].
func Slice(b []byte, position, limit int) ([]byte, error) {
	if position < 0 || limit > len(b) || position > limit {
		return nil, ErrShortBuffer
	}
	return b[position:limit:limit], nil
}

// PutRowID packs a row-id's page number (3 bytes) and row number (1 byte)
// into a 4-byte big-endian field, the on-disk layout used by long-value
// pointers and overflow row pointers.
func PutRowID(b []byte, off int, page int32, row byte) error {
	if err := WriteInt24(b, off, page, true); err != nil {
		return err
	}
	return WriteByte(b, off+3, row)
}

// GetRowID unpacks a page/row pair written by PutRowID.
func GetRowID(b []byte, off int) (page int32, row byte, err error) {
	page, err = ReadInt24(b, off, true)
	if err != nil {
		return 0, 0, err
	}
	row, err = ReadByte(b, off+3)
	return page, row, err
}
