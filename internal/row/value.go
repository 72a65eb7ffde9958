package row

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/big"

	"github.com/google/uuid"
)

// Decimal is the Go-side representation of a Jet NUMERIC column: a signed
// magnitude plus the descriptor's fixed scale. Callers compare/format via
// big.Rat; the wire encoding is a 16-byte two's-complement big-endian
// integer, matching the width the index codec's fixed-point encodings
// operate on (spec.md 4.7.1).
type Decimal struct {
	Magnitude *big.Int // may be negative
}

// Rat returns the decimal value as an exact rational, applying scale
// (number of fractional digits).
func (d Decimal) Rat(scale byte) *big.Rat {
	r := new(big.Rat).SetInt(d.Magnitude)
	denom := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(scale)), nil)
	return r.Quo(r, new(big.Rat).SetInt(denom))
}

const numericWidth = 16

func encodeNumericMagnitude(v *big.Int) []byte {
	buf := make([]byte, numericWidth)
	if v.Sign() >= 0 {
		mag := v.Bytes()
		copy(buf[numericWidth-len(mag):], mag)
		return buf
	}
	// two's complement: (2^128 + v)
	mod := new(big.Int).Lsh(big.NewInt(1), numericWidth*8)
	twos := new(big.Int).Add(mod, v)
	mag := twos.Bytes()
	for i := range buf {
		buf[i] = 0xFF
	}
	copy(buf[numericWidth-len(mag):], mag)
	return buf
}

func decodeNumericMagnitude(b []byte) *big.Int {
	v := new(big.Int).SetBytes(b)
	if b[0]&0x80 != 0 {
		mod := new(big.Int).Lsh(big.NewInt(1), numericWidth*8)
		v.Sub(v, mod)
	}
	return v
}

func encodeFixed(c Column, v interface{}) ([]byte, error) {
	width, err := c.FixedWidth()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, width)
	switch c.Type {
	case TypeByte:
		b, ok := v.(byte)
		if !ok {
			return nil, typeErr(c, v)
		}
		buf[0] = b
	case TypeInteger:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(c, v)
		}
		binary.LittleEndian.PutUint16(buf, uint16(int16(n)))
	case TypeLong, TypeComplex:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(c, v)
		}
		binary.LittleEndian.PutUint32(buf, uint32(int32(n)))
	case TypeMoney:
		n, ok := asInt64(v)
		if !ok {
			return nil, typeErr(c, v)
		}
		binary.LittleEndian.PutUint64(buf, uint64(n))
	case TypeFloat:
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeErr(c, v)
		}
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(f)))
	case TypeDouble, TypeShortDateTime:
		f, ok := asFloat64(v)
		if !ok {
			return nil, typeErr(c, v)
		}
		binary.LittleEndian.PutUint64(buf, math.Float64bits(f))
	case TypeGUID:
		g, ok := v.(uuid.UUID)
		if !ok {
			return nil, typeErr(c, v)
		}
		copy(buf, g[:])
	case TypeNumeric:
		d, ok := v.(Decimal)
		if !ok {
			return nil, typeErr(c, v)
		}
		copy(buf, encodeNumericMagnitude(d.Magnitude))
	default:
		return nil, fmt.Errorf("row: type 0x%02x is not fixed-width", c.Type)
	}
	return buf, nil
}

func decodeFixed(c Column, b []byte) (interface{}, error) {
	switch c.Type {
	case TypeByte:
		return b[0], nil
	case TypeInteger:
		return int16(binary.LittleEndian.Uint16(b)), nil
	case TypeLong, TypeComplex:
		return int32(binary.LittleEndian.Uint32(b)), nil
	case TypeMoney:
		return int64(binary.LittleEndian.Uint64(b)), nil
	case TypeFloat:
		return math.Float32frombits(binary.LittleEndian.Uint32(b)), nil
	case TypeDouble, TypeShortDateTime:
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
	case TypeGUID:
		var g uuid.UUID
		copy(g[:], b)
		return g, nil
	case TypeNumeric:
		return Decimal{Magnitude: decodeNumericMagnitude(b)}, nil
	default:
		return nil, fmt.Errorf("row: type 0x%02x is not fixed-width", c.Type)
	}
}

func typeErr(c Column, v interface{}) error {
	return fmt.Errorf("row: column %q (type 0x%02x) cannot hold value of type %T", c.Name, c.Type, v)
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
