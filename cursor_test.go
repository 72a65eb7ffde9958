package jetdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/index"
	"github.com/kjhughes/jetdb/internal/row"
	"github.com/kjhughes/jetdb/internal/textcodec"
)

func abortOnError(id RowID, err error) bool { return false }

func TestTableScanCursorWalksInInsertOrder(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	names := []string{"a", "b", "c"}
	for _, n := range names {
		_, err := tbl.Insert(row.Values{"Name": n})
		require.NoError(t, err)
	}

	cur, err := NewTableScanCursor(tbl, abortOnError)
	require.NoError(t, err)

	var seen []string
	for {
		ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		_, values, _ := cur.Current()
		seen = append(seen, values["Name"].(string))
	}
	require.Equal(t, names, seen)
}

func TestTableScanCursorSavepointSurvivesInsert(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	firstID, err := tbl.Insert(row.Values{"Name": "a"})
	require.NoError(t, err)

	cur, err := NewTableScanCursor(tbl, abortOnError)
	require.NoError(t, err)
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)

	sp := cur.Savepoint()

	_, err = tbl.Insert(row.Values{"Name": "b"})
	require.NoError(t, err)

	require.NoError(t, cur.Restore(sp))
	id, _, ok := cur.Current()
	require.True(t, ok)
	require.Equal(t, firstID, id)
}

func TestTableScanCursorDeleteCurrentRow(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	id, err := tbl.Insert(row.Values{"Name": "a"})
	require.NoError(t, err)

	cur, err := NewTableScanCursor(tbl, abortOnError)
	require.NoError(t, err)
	ok, err := cur.Next()
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, cur.DeleteCurrentRow())
	_, err = tbl.Row(id)
	require.Error(t, err)
}

func TestIndexCursorFindFirstLocatesKey(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	kcs, err := buildKeyColumns(tbl, []string{"Name"}, nil, textcodec.SortGeneral)
	require.NoError(t, err)
	idx := &Index{Name: "ix_name", Columns: kcs, Data: index.NewSimpleData()}
	tbl.AddIndex(idx)

	for _, n := range []string{"charlie", "alpha", "bravo"} {
		_, err := tbl.Insert(row.Values{"Name": n})
		require.NoError(t, err)
	}

	cur, err := NewIndexCursor(tbl, idx, abortOnError)
	require.NoError(t, err)

	target, err := index.EncodeKey(idx.Columns, []interface{}{"bravo"})
	require.NoError(t, err)

	ok, err := cur.FindFirst(target)
	require.NoError(t, err)
	require.True(t, ok)

	_, values, _ := cur.Current()
	require.Equal(t, "bravo", values["Name"])
}
