package jetdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/index"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/row"
	"github.com/kjhughes/jetdb/internal/textcodec"
)

func newTestChannel(t *testing.T) *page.Channel {
	t.Helper()
	return page.NewChannel(page.NewMemFile(), 4096, false, false)
}

func widgetColumns() []row.Column {
	return []row.Column{
		{Name: "ID", Number: 0, Type: row.TypeLong, Flags: row.FlagFixedLen | row.FlagAutoNumber, FixedOffset: 0},
		{Name: "Name", Number: 1, Type: row.TypeText, Length: 50, VariableIndex: 0},
	}
}

func TestTableInsertAssignsAutoNumber(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	id1, err := tbl.Insert(row.Values{"Name": "a"})
	require.NoError(t, err)
	id2, err := tbl.Insert(row.Values{"Name": "b"})
	require.NoError(t, err)

	v1, err := tbl.Row(id1)
	require.NoError(t, err)
	v2, err := tbl.Row(id2)
	require.NoError(t, err)

	require.EqualValues(t, 1, v1["ID"])
	require.EqualValues(t, 2, v2["ID"])
}

func TestTableUpdateInPlaceKeepsRowID(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	id, err := tbl.Insert(row.Values{"Name": "short"})
	require.NoError(t, err)

	newID, err := tbl.Update(id, row.Values{"ID": 1, "Name": "small"})
	require.NoError(t, err)
	require.Equal(t, id, newID)

	values, err := tbl.Row(id)
	require.NoError(t, err)
	require.Equal(t, "small", values["Name"])
}

func TestTableDeleteRemovesRow(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	id, err := tbl.Insert(row.Values{"Name": "gone"})
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(id))

	_, err = tbl.Row(id)
	require.Error(t, err)
}

func TestTableStatsCountsLiveRows(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	id1, err := tbl.Insert(row.Values{"Name": "a"})
	require.NoError(t, err)
	_, err = tbl.Insert(row.Values{"Name": "b"})
	require.NoError(t, err)
	require.NoError(t, tbl.Delete(id1))

	stats, err := tbl.Stats()
	require.NoError(t, err)
	require.Equal(t, 1, stats.RowCount)
	require.Equal(t, 1, stats.PageCount)
}

func TestTableIndexEntriesTrackMutations(t *testing.T) {
	ch := newTestChannel(t)
	tbl, err := NewTable("Widgets", widgetColumns(), ch, 2, row.NewChainIO())
	require.NoError(t, err)

	kcs, err := buildKeyColumns(tbl, []string{"Name"}, nil, textcodec.SortGeneral)
	require.NoError(t, err)
	idx := &Index{Name: "ix_name", Columns: kcs, Data: index.NewSimpleData()}
	tbl.AddIndex(idx)

	id, err := tbl.Insert(row.Values{"Name": "findme"})
	require.NoError(t, err)

	entries, err := idx.Data.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, id, entries[0].Row)

	require.NoError(t, tbl.Delete(id))
	entries, err = idx.Data.Entries()
	require.NoError(t, err)
	require.Empty(t, entries)
}
