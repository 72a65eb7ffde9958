package jetdb

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/row"
)

// newTestCatalog mirrors bootstrap's own page layout (header page, then
// global free-page map, then MSysObjects) so a fresh Catalog lands on the
// same deterministic page numbers a real Create would produce.
func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	ch := newTestChannel(t)
	desc, err := format.Resolve(byte(format.VersionJet4))
	require.NoError(t, err)

	_, err = ch.Allocate(page.TypeTableDef)
	require.NoError(t, err)
	freeMapPage, err := ch.Allocate(page.TypeUsageMap)
	require.NoError(t, err)
	ch.SetFreeMap(page.NewGlobalUsageMap(freeMapPage.Number+1, 0))

	cat, err := bootstrapCatalog(ch, desc, defaultOptions(), row.NewChainIO())
	require.NoError(t, err)
	return cat
}

func TestCatalogCreateTableRejectsDuplicateName(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("Widgets", widgetColumns())
	require.NoError(t, err)

	_, err = cat.CreateTable("Widgets", widgetColumns())
	require.Error(t, err)
}

func TestCatalogCreateTableRejectsReservedName(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("Table", widgetColumns())
	require.Error(t, err)
}

func TestCatalogOpenTableFindsResidentTable(t *testing.T) {
	cat := newTestCatalog(t)
	created, err := cat.CreateTable("Widgets", widgetColumns())
	require.NoError(t, err)

	opened, err := cat.OpenTable("Widgets")
	require.NoError(t, err)
	require.Same(t, created, opened)
}

func TestCatalogOpenTableUnknownNameFails(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.OpenTable("Nope")
	require.Error(t, err)
}

func TestCatalogDropTableRemovesFromDirectory(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("Widgets", widgetColumns())
	require.NoError(t, err)

	require.NoError(t, cat.DropTable("Widgets"))
	_, err = cat.OpenTable("Widgets")
	require.Error(t, err)
}

func TestCatalogCreateIndexAttachesToTable(t *testing.T) {
	cat := newTestCatalog(t)
	tbl, err := cat.CreateTable("Widgets", widgetColumns())
	require.NoError(t, err)

	idx, err := cat.CreateIndex(tbl, "ix_name", []string{"Name"}, nil, false)
	require.NoError(t, err)
	require.Len(t, tbl.indexes, 1)
	require.Same(t, idx, tbl.indexes[0])
}

func TestCatalogRelationshipsResolveBothEndpoints(t *testing.T) {
	cat := newTestCatalog(t)
	_, err := cat.CreateTable("Orders", widgetColumns())
	require.NoError(t, err)
	_, err = cat.CreateTable("Customers", widgetColumns())
	require.NoError(t, err)

	rel := Relationship{Name: "FK_Orders_Customers", FromTable: "Orders", FromColumn: "ID", ToTable: "Customers", ToColumn: "ID"}
	require.NoError(t, cat.CreateRelationship(rel))

	require.Len(t, cat.Relationships("Orders"), 1)
	require.Len(t, cat.Relationships("Customers"), 1)
}

func TestCatalogLinkedTableRoundTrips(t *testing.T) {
	cat := newTestCatalog(t)
	lt := LinkedTable{Name: "RemoteWidgets", ConnectionString: "Driver=...;", RemoteTableName: "Widgets"}
	require.NoError(t, cat.CreateLinkedTable(lt))

	resolved, err := cat.ResolveLinkedTable("RemoteWidgets")
	require.NoError(t, err)
	require.Equal(t, lt, resolved)
}
