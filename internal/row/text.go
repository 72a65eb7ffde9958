package row

import (
	"fmt"
	"unicode/utf16"
)

// compressedMarker prefixes a compressed-unicode run: every code point in
// the string is < U+0080, so each is stored as a single byte instead of
// the column's normal two-byte encoding (spec.md 4.5).
var compressedMarker = []byte{0xFF, 0xFE}

func encodeText(col Column, v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		return nil, typeErr(col, v)
	}

	if col.Flags&FlagCompressedUnicode != 0 && isASCIICompressible(s) {
		out := make([]byte, 0, len(compressedMarker)+len(s))
		out = append(out, compressedMarker...)
		for _, r := range s {
			out = append(out, byte(r))
		}
		return out, nil
	}

	units := utf16.Encode([]rune(s))
	out := make([]byte, 2*len(units))
	for i, u := range units {
		out[2*i] = byte(u)
		out[2*i+1] = byte(u >> 8)
	}
	return out, nil
}

func decodeText(col Column, b []byte) (string, error) {
	if len(b) >= 2 && b[0] == compressedMarker[0] && b[1] == compressedMarker[1] {
		rest := b[2:]
		runes := make([]rune, len(rest))
		for i, c := range rest {
			runes[i] = rune(c)
		}
		return string(runes), nil
	}

	if len(b)%2 != 0 {
		return "", fmt.Errorf("row: text column %q has odd-length uncompressed payload", col.Name)
	}
	units := make([]uint16, len(b)/2)
	for i := range units {
		units[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return string(utf16.Decode(units)), nil
}

func isASCIICompressible(s string) bool {
	for _, r := range s {
		if r >= 0x80 {
			return false
		}
	}
	return true
}
