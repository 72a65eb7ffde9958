package index

import (
	"fmt"

	"github.com/kjhughes/jetdb/internal/codec"
	"github.com/kjhughes/jetdb/internal/page"
)

// RowID identifies the data row a leaf entry points at: a page number plus
// the row's slot index within that page (spec.md 4.2 row-id).
type RowID struct {
	Page page.Number
	Row  byte
}

// LeafEntry is one (key, row-id) pair on an index leaf page.
type LeafEntry struct {
	Key []byte
	Row RowID
}

// NodeEntry is one (separator key, child page) pair on an index interior
// page. Child holds every leaf/subtree whose greatest key is <= Key.
type NodeEntry struct {
	Key   []byte
	Child page.Number
}

// Leaf page header: [type byte][reserved byte][entry count uint16 LE].
// Node page header adds a 3-byte rightmost-child page number after that.
const (
	leafHeaderSize = 4
	nodeHeaderSize = 7
)

// EncodeLeafPage serializes entries (already sorted ascending by Key) into
// a page-sized buffer, prefix-compressing each entry against its
// predecessor (spec.md 4.7: "entry-prefix compression"). Returns
// ErrPageFull if the entries do not fit.
func EncodeLeafPage(pageSize int, entries []LeafEntry) ([]byte, error) {
	buf := make([]byte, pageSize)
	buf[0] = byte(page.TypeIndexLeaf)

	pos := leafHeaderSize
	var prev []byte
	for _, e := range entries {
		shared := commonPrefixLen(prev, e.Key)
		suffix := e.Key[shared:]
		need := 2 + len(suffix) + 4
		if pos+need > len(buf) {
			return nil, ErrPageFull
		}
		buf[pos] = byte(shared)
		buf[pos+1] = byte(len(suffix))
		pos += 2
		copy(buf[pos:], suffix)
		pos += len(suffix)
		if err := codec.PutRowID(buf, pos, int32(e.Row.Page), e.Row.Row); err != nil {
			return nil, err
		}
		pos += 4
		prev = e.Key
	}

	if err := codec.WriteUint16LE(buf, 2, uint16(len(entries))); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeLeafPage reverses EncodeLeafPage.
func DecodeLeafPage(buf []byte) ([]LeafEntry, error) {
	if page.Type(buf[0]) != page.TypeIndexLeaf {
		return nil, fmt.Errorf("index: page is not an index leaf page")
	}
	count, err := codec.ReadUint16LE(buf, 2)
	if err != nil {
		return nil, err
	}

	entries := make([]LeafEntry, 0, count)
	pos := leafHeaderSize
	var prev []byte
	for i := 0; i < int(count); i++ {
		if pos+2 > len(buf) {
			return nil, fmt.Errorf("index: leaf page truncated at entry %d", i)
		}
		shared := int(buf[pos])
		suffixLen := int(buf[pos+1])
		pos += 2
		if shared > len(prev) || pos+suffixLen+4 > len(buf) {
			return nil, fmt.Errorf("index: leaf page corrupt at entry %d", i)
		}
		key := make([]byte, shared+suffixLen)
		copy(key, prev[:shared])
		copy(key[shared:], buf[pos:pos+suffixLen])
		pos += suffixLen

		pnum, row, err := codec.GetRowID(buf, pos)
		if err != nil {
			return nil, err
		}
		pos += 4

		entries = append(entries, LeafEntry{Key: key, Row: RowID{Page: page.Number(pnum), Row: row}})
		prev = key
	}
	return entries, nil
}

// EncodeNodePage serializes interior-page entries the same way, plus a
// trailing rightmost-child pointer for keys greater than every entry.
func EncodeNodePage(pageSize int, entries []NodeEntry, rightmost page.Number) ([]byte, error) {
	buf := make([]byte, pageSize)
	buf[0] = byte(page.TypeIndexNode)
	if err := codec.WriteInt24(buf, 4, int32(rightmost), false); err != nil {
		return nil, err
	}

	pos := nodeHeaderSize
	var prev []byte
	for _, e := range entries {
		shared := commonPrefixLen(prev, e.Key)
		suffix := e.Key[shared:]
		need := 2 + len(suffix) + 3
		if pos+need > len(buf) {
			return nil, ErrPageFull
		}
		buf[pos] = byte(shared)
		buf[pos+1] = byte(len(suffix))
		pos += 2
		copy(buf[pos:], suffix)
		pos += len(suffix)
		if err := codec.WriteInt24(buf, pos, int32(e.Child), false); err != nil {
			return nil, err
		}
		pos += 3
		prev = e.Key
	}

	if err := codec.WriteUint16LE(buf, 2, uint16(len(entries))); err != nil {
		return nil, err
	}
	return buf, nil
}

// DecodeNodePage reverses EncodeNodePage.
func DecodeNodePage(buf []byte) ([]NodeEntry, page.Number, error) {
	if page.Type(buf[0]) != page.TypeIndexNode {
		return nil, page.Invalid, fmt.Errorf("index: page is not an index node page")
	}
	rightmost, err := codec.ReadInt24(buf, 4, false)
	if err != nil {
		return nil, page.Invalid, err
	}
	count, err := codec.ReadUint16LE(buf, 2)
	if err != nil {
		return nil, page.Invalid, err
	}

	entries := make([]NodeEntry, 0, count)
	pos := nodeHeaderSize
	var prev []byte
	for i := 0; i < int(count); i++ {
		if pos+2 > len(buf) {
			return nil, page.Invalid, fmt.Errorf("index: node page truncated at entry %d", i)
		}
		shared := int(buf[pos])
		suffixLen := int(buf[pos+1])
		pos += 2
		if shared > len(prev) || pos+suffixLen+3 > len(buf) {
			return nil, page.Invalid, fmt.Errorf("index: node page corrupt at entry %d", i)
		}
		key := make([]byte, shared+suffixLen)
		copy(key, prev[:shared])
		copy(key[shared:], buf[pos:pos+suffixLen])
		pos += suffixLen

		child, err := codec.ReadInt24(buf, pos, false)
		if err != nil {
			return nil, page.Invalid, err
		}
		pos += 3

		entries = append(entries, NodeEntry{Key: key, Child: page.Number(child)})
		prev = key
	}
	return entries, page.Number(rightmost), nil
}

func commonPrefixLen(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	if i > 255 {
		i = 255 // shared-length is a single byte field
	}
	return i
}
