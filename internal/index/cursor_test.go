package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(t *testing.T) *SimpleData {
	t.Helper()
	d := NewSimpleData()
	for i, k := range []string{"bravo", "delta", "alpha", "charlie"} {
		require.NoError(t, d.Insert([]byte(k), RowID{Page: 1, Row: byte(i)}))
	}
	return d
}

func TestEntryCursorForwardIteration(t *testing.T) {
	d := seeded(t)
	c, err := NewEntryCursor(d, d)
	require.NoError(t, err)

	var got []string
	for {
		e, ok, err := c.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(e.Key))
	}
	assert.Equal(t, []string{"alpha", "bravo", "charlie", "delta"}, got)
}

func TestEntryCursorBackwardIteration(t *testing.T) {
	d := seeded(t)
	c, err := NewEntryCursor(d, d)
	require.NoError(t, err)
	require.NoError(t, c.AfterLast())

	var got []string
	for {
		e, ok, err := c.Previous()
		require.NoError(t, err)
		if !ok {
			break
		}
		got = append(got, string(e.Key))
	}
	assert.Equal(t, []string{"delta", "charlie", "bravo", "alpha"}, got)
}

func TestEntryCursorFindFirst(t *testing.T) {
	d := seeded(t)
	c, err := NewEntryCursor(d, d)
	require.NoError(t, err)

	found, err := c.FindFirst([]byte("bravo"))
	require.NoError(t, err)
	assert.True(t, found)

	e, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bravo", string(e.Key))
}

func TestEntryCursorSaveRestoreSurvivesInsert(t *testing.T) {
	d := seeded(t)
	c, err := NewEntryCursor(d, d)
	require.NoError(t, err)

	e, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alpha", string(e.Key))

	sp := c.Save()
	require.NoError(t, d.Insert([]byte("aardvark"), RowID{Page: 9, Row: 9}))
	require.NoError(t, c.Restore(sp))

	next, ok, err := c.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "bravo", string(next.Key), "cursor should resume after alpha despite the new earlier entry")
}

func TestEntryCursorStaleDetection(t *testing.T) {
	d := seeded(t)
	c, err := NewEntryCursor(d, d)
	require.NoError(t, err)
	assert.False(t, c.Stale())

	require.NoError(t, d.Insert([]byte("echo"), RowID{Page: 1, Row: 9}))
	assert.True(t, c.Stale())

	_, _, err = c.Next()
	require.NoError(t, err)
	assert.False(t, c.Stale())
}
