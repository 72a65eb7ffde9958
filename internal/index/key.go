// Package index implements the B-tree index codec: per-column-type key
// encoding, leaf/node page layout with entry-prefix compression, and the
// entry cursor used for index-driven table scans (spec.md 4.7).
//
// Each page holds a local cell list with capacity checks on insert, and
// interior pages traverse by left-child/key comparison, covering the
// full typed-key set spec.md 4.7.1 requires with leaf entries that carry
// a row-id instead of a page pointer.
package index

import (
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"

	"github.com/kjhughes/jetdb/internal/row"
	"github.com/kjhughes/jetdb/internal/textcodec"
)

// Flag bytes prefix every column's contribution to an index entry, so NULL
// and non-NULL values of the same type still compare correctly and a
// multi-column entry's column boundaries stay unambiguous (spec.md 4.7.1).
const (
	flagNull    byte = 0x00
	flagNonNull byte = 0x01
)

// Sentinel full-entry values used by range-scan bounds (spec.md 4.7.1:
// "MIN/MAX sentinels").
var (
	EntryMin = []byte{0x00}
	EntryMax = []byte{0xFF}
)

// KeyColumn describes one column's participation in an index, ordering and
// sort-order metadata included.
type KeyColumn struct {
	Column     row.Column
	Descending bool
	SortOrder  textcodec.SortOrder
}

// EncodeKey concatenates the per-column entry bytes for an index entry,
// honoring each column's ascending/descending flag. v may be nil for a
// column that is NULL in this row.
func EncodeKey(cols []KeyColumn, values []interface{}) ([]byte, error) {
	if len(cols) != len(values) {
		return nil, fmt.Errorf("index: %d key columns but %d values", len(cols), len(values))
	}
	var out []byte
	for i, kc := range cols {
		b, err := encodeColumnValue(kc, values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

// EncodeKeyPrefix is like EncodeKey, except the last column's contribution
// is truncated to its text-collation inline-grouping prefix when that
// column is text (spec.md 4.8's inline/extra split). Every value whose
// last pattern column collates equal under a case-insensitive matcher
// shares this prefix, so it bounds a contiguous index-driven
// find_first_row scan without requiring an exact key match on trailing
// bytes (spec.md 4.9, Scenario C).
func EncodeKeyPrefix(cols []KeyColumn, values []interface{}) ([]byte, error) {
	if len(cols) != len(values) {
		return nil, fmt.Errorf("index: %d key columns but %d values", len(cols), len(values))
	}
	var out []byte
	for i, kc := range cols {
		last := i == len(cols)-1
		if last && kc.Column.Type == row.TypeText && values[i] != nil {
			b, err := encodeColumnTextPrefix(kc, values[i])
			if err != nil {
				return nil, err
			}
			out = append(out, b...)
			continue
		}
		b, err := encodeColumnValue(kc, values[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	return out, nil
}

func encodeColumnTextPrefix(kc KeyColumn, v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeErr(kc, v)
	}
	body, err := textcodec.InlinePrefix(s, kc.SortOrder)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, flagNonNull)
	out = append(out, body...)
	if kc.Descending {
		for i := range out {
			out[i] = ^out[i]
		}
	}
	return out, nil
}

func encodeColumnValue(kc KeyColumn, v interface{}) ([]byte, error) {
	if v == nil {
		if kc.Descending {
			return []byte{^flagNull}, nil
		}
		return []byte{flagNull}, nil
	}

	body, err := encodeColumnBody(kc, v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(body)+1)
	out = append(out, flagNonNull)
	out = append(out, body...)
	if kc.Descending {
		for i := range out {
			out[i] = ^out[i]
		}
	}
	return out, nil
}

func encodeColumnBody(kc KeyColumn, v interface{}) ([]byte, error) {
	switch kc.Column.Type {
	case row.TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, typeErr(kc, v)
		}
		if b {
			return []byte{0x01}, nil
		}
		return []byte{0x00}, nil

	case row.TypeByte:
		b, ok := v.(byte)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return []byte{b}, nil

	case row.TypeInteger:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeSignedInt(uint64(int16(n)), 2), nil

	case row.TypeLong, row.TypeComplex:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeSignedInt(uint64(int32(n)), 4), nil

	case row.TypeMoney:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeSignedInt(uint64(n), 8), nil

	case row.TypeFloat:
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeFloatBits(uint64(math.Float32bits(float32(f))), 4), nil

	case row.TypeDouble, row.TypeShortDateTime:
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeFloatBits(math.Float64bits(f), 8), nil

	case row.TypeNumeric:
		d, ok := v.(row.Decimal)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return encodeFixedPoint(d.Magnitude, kc.Column.Precision >= 28 /* legacy threshold */), nil

	case row.TypeGUID:
		g, ok := v.(uuid.UUID)
		if !ok {
			return nil, typeErr(kc, v)
		}
		out := make([]byte, 16)
		copy(out, g[:])
		return out, nil

	case row.TypeText:
		s, ok := v.(string)
		if !ok {
			return nil, typeErr(kc, v)
		}
		return textcodec.Encode(s, kc.SortOrder, true)

	default:
		return nil, fmt.Errorf("index: column %q (type 0x%02x) is not indexable", kc.Column.Name, kc.Column.Type)
	}
}

// encodeSignedInt flips the sign bit so two's-complement integers compare
// correctly under an unsigned big-endian byte comparison (spec.md 4.7.1:
// "Integer/Long/Money... sign bit flipped").
func encodeSignedInt(u uint64, width int) []byte {
	signBit := uint64(1) << (uint(width)*8 - 1)
	u ^= signBit
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(u)
		u >>= 8
	}
	return out
}

// encodeFloatBits maps IEEE-754 bits to an order-preserving unsigned
// encoding: for non-negative numbers flip the sign bit, for negative
// numbers flip every bit (spec.md 4.7.1: "Float/Double... monotonic byte
// encoding").
func encodeFloatBits(bits uint64, width int) []byte {
	signBit := uint64(1) << (uint(width)*8 - 1)
	if bits&signBit != 0 {
		bits = ^bits
	} else {
		bits |= signBit
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(bits)
		bits >>= 8
	}
	return out
}

// encodeFixedPoint encodes a NUMERIC magnitude for index ordering: sign
// bit flipped two's complement, 16 bytes wide, matching the row codec's
// on-disk width (spec.md 4.7.1 distinguishes a "new" vs "legacy"
// fixed-point encoding; legacy instead complements the magnitude bytes
// when negative and then sets byte 0 to 0x00 for a negative value and
// 0xFF otherwise, so negatives sort before non-negatives).
func encodeFixedPoint(mag *big.Int, legacy bool) []byte {
	const width = 16
	out := make([]byte, width)
	negative := mag.Sign() < 0

	abs := new(big.Int).Abs(mag)
	b := abs.Bytes()
	copy(out[width-len(b):], b)

	if legacy {
		if negative {
			for i := range out {
				out[i] = ^out[i]
			}
			out[0] = 0x00
		} else {
			out[0] = 0xFF
		}
	} else {
		if negative {
			mod := new(big.Int).Lsh(big.NewInt(1), width*8)
			twos := new(big.Int).Add(mod, mag)
			tb := twos.Bytes()
			for i := range out {
				out[i] = 0
			}
			copy(out[width-len(tb):], tb)
		}
		out[0] ^= 0x80 // sign-bit flip so unsigned comparison orders correctly
	}
	return out
}

func typeErr(kc KeyColumn, v interface{}) error {
	return fmt.Errorf("index: column %q (type 0x%02x) cannot hold value of type %T", kc.Column.Name, kc.Column.Type, v)
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case byte:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
