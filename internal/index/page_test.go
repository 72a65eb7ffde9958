package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/page"
)

func TestLeafPageRoundTrip(t *testing.T) {
	entries := []LeafEntry{
		{Key: []byte("apple"), Row: RowID{Page: 4, Row: 0}},
		{Key: []byte("applesauce"), Row: RowID{Page: 4, Row: 1}},
		{Key: []byte("banana"), Row: RowID{Page: 5, Row: 2}},
	}
	buf, err := EncodeLeafPage(512, entries)
	require.NoError(t, err)

	out, err := DecodeLeafPage(buf)
	require.NoError(t, err)
	assert.Equal(t, entries, out)
}

func TestLeafPageOverflowReturnsPageFull(t *testing.T) {
	var entries []LeafEntry
	for i := 0; i < 200; i++ {
		entries = append(entries, LeafEntry{Key: []byte("a long enough key to force overflow"), Row: RowID{Page: page.Number(i), Row: byte(i)}})
	}
	_, err := EncodeLeafPage(256, entries)
	assert.ErrorIs(t, err, ErrPageFull)
}

func TestNodePageRoundTrip(t *testing.T) {
	entries := []NodeEntry{
		{Key: []byte("apple"), Child: 10},
		{Key: []byte("banana"), Child: 11},
	}
	buf, err := EncodeNodePage(512, entries, 12)
	require.NoError(t, err)

	out, rightmost, err := DecodeNodePage(buf)
	require.NoError(t, err)
	assert.Equal(t, entries, out)
	assert.Equal(t, page.Number(12), rightmost)
}

func TestCommonPrefixLenCompression(t *testing.T) {
	entries := []LeafEntry{
		{Key: []byte("prefix-aaaa"), Row: RowID{Page: 1, Row: 0}},
		{Key: []byte("prefix-aaab"), Row: RowID{Page: 1, Row: 1}},
	}
	buf, err := EncodeLeafPage(512, entries)
	require.NoError(t, err)
	// second entry should have shared=10 (all but the final byte)
	assert.Equal(t, byte(10), buf[leafHeaderSize+2+len(entries[0].Key)+4])
}
