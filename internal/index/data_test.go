package index

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/page"
)

func TestSimpleDataInsertMaintainsOrder(t *testing.T) {
	d := NewSimpleData()
	keys := []string{"delta", "alpha", "charlie", "bravo"}
	for i, k := range keys {
		require.NoError(t, d.Insert([]byte(k), RowID{Page: 1, Row: byte(i)}))
	}
	entries, err := d.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "alpha", string(entries[0].Key))
	assert.Equal(t, "bravo", string(entries[1].Key))
	assert.Equal(t, "charlie", string(entries[2].Key))
	assert.Equal(t, "delta", string(entries[3].Key))
}

func TestSimpleDataRemoveNotFound(t *testing.T) {
	d := NewSimpleData()
	require.NoError(t, d.Insert([]byte("a"), RowID{Page: 1, Row: 0}))
	err := d.Remove([]byte("missing"), RowID{Page: 1, Row: 0})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSimpleDataModCountIncrementsOnChange(t *testing.T) {
	d := NewSimpleData()
	assert.EqualValues(t, 0, d.ModCount())
	require.NoError(t, d.Insert([]byte("a"), RowID{Page: 1, Row: 0}))
	assert.EqualValues(t, 1, d.ModCount())
	require.NoError(t, d.Remove([]byte("a"), RowID{Page: 1, Row: 0}))
	assert.EqualValues(t, 2, d.ModCount())
}

func newTestChannel(t *testing.T, pageSize int) *page.Channel {
	t.Helper()
	f := page.NewMemFile()
	ch := page.NewChannel(f, pageSize, false, false)
	return ch
}

func TestPagedDataInsertAndScanSmall(t *testing.T) {
	ch := newTestChannel(t, 512)
	d, err := NewPagedData(ch)
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		require.NoError(t, d.Insert(key, RowID{Page: page.Number(i + 1), Row: 0}))
	}

	entries, err := d.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 10)
	for i := 1; i < len(entries); i++ {
		assert.True(t, string(entries[i-1].Key) < string(entries[i].Key))
	}
}

func TestPagedDataSplitsAcrossManyPages(t *testing.T) {
	ch := newTestChannel(t, 128) // small page forces several splits
	d, err := NewPagedData(ch)
	require.NoError(t, err)

	const n = 80
	for i := 0; i < n; i++ {
		key := []byte(fmt.Sprintf("key-%04d", i))
		require.NoError(t, d.Insert(key, RowID{Page: page.Number(i + 1), Row: 0}))
	}

	entries, err := d.Entries()
	require.NoError(t, err)
	require.Len(t, entries, n)
	for i := 1; i < len(entries); i++ {
		assert.True(t, string(entries[i-1].Key) < string(entries[i].Key), "out of order at %d", i)
	}

	pages, err := ch.PageCount()
	require.NoError(t, err)
	assert.Greater(t, pages, 1, "expected the tree to have split into multiple pages")
}

func TestPagedDataRemove(t *testing.T) {
	ch := newTestChannel(t, 256)
	d, err := NewPagedData(ch)
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		key := []byte(fmt.Sprintf("key-%03d", i))
		require.NoError(t, d.Insert(key, RowID{Page: page.Number(i + 1), Row: 0}))
	}
	require.NoError(t, d.Remove([]byte("key-010"), RowID{Page: 11, Row: 0}))

	entries, err := d.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 19)
	for _, e := range entries {
		assert.NotEqual(t, "key-010", string(e.Key))
	}
}

func TestPagedDataRemoveNotFound(t *testing.T) {
	ch := newTestChannel(t, 256)
	d, err := NewPagedData(ch)
	require.NoError(t, err)
	require.NoError(t, d.Insert([]byte("a"), RowID{Page: 1, Row: 0}))

	err = d.Remove([]byte("missing"), RowID{Page: 1, Row: 0})
	assert.ErrorIs(t, err, ErrNotFound)
}
