package jetdb

import (
	"fmt"

	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/index"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/reserved"
	"github.com/kjhughes/jetdb/internal/row"
	"github.com/kjhughes/jetdb/internal/textcodec"
)

// ObjectType tags an entry in the system object directory (spec.md
// 4.10's MSysObjects: "Table", "Relationship", "Linked Table").
type ObjectType byte

const (
	ObjectTable ObjectType = iota + 1
	ObjectRelationship
	ObjectLinkedTable
)

// objectEntry is one object registered in the MSysObjects directory: its
// name and directory type.
type objectEntry struct {
	Name string
	Type ObjectType
}

// Relationship records a foreign-key relationship between two tables
// (spec.md 4.10 supplemented feature: original Access databases store
// these in MSysRelationships; the distilled specification's row/index/
// page model has no equivalent, so this is carried forward from
// original_source rather than the distillation).
type Relationship struct {
	Name          string
	FromTable     string
	FromColumn    string
	ToTable       string
	ToColumn      string
	Enforced      bool
	CascadeUpdate bool
	CascadeDelete bool
}

// LinkedTable records a pointer to a table whose data lives in another
// database file (spec.md 4.10 supplemented feature). Resolving the
// connection itself -- actually opening the remote file -- is left to
// the caller; this module only tracks the bookkeeping record.
type LinkedTable struct {
	Name             string
	ConnectionString string
	RemoteTableName  string
}

// sysObjectsDataPage and sysObjectsTdefPage are the deterministic
// bootstrap page numbers for the MSysObjects system table itself (spec.md
// 4.10: "Catalog table name MSysObjects on page 2"). bootstrap always
// allocates the header page (0) and the global free-page map page (1)
// before creating any table, and MSysObjects is always the very first
// table created, so these two numbers are stable across every database
// this module creates.
const (
	sysObjectsDataPage page.Number = 2
	sysObjectsTdefPage page.Number = 3
)

// Object directory field flags packed into MSysObjects' Flags column.
const (
	relFlagEnforced      byte = 1 << 0
	relFlagCascadeUpdate byte = 1 << 1
	relFlagCascadeDelete byte = 1 << 2
)

// sysObjectsColumns describes MSysObjects' own schema: a name, an object
// type tag, the object's table-definition page (when it has one), four
// general-purpose text slots reused for relationship endpoints or linked-
// table connection info depending on Type, and a flags byte (spec.md
// 4.10, 3's "Table Definition"/"Linked Table" data elements).
func sysObjectsColumns() []row.Column {
	return []row.Column{
		{Name: "Name", Number: 0, Type: row.TypeText, Length: 255, VariableIndex: 0},
		{Name: "Type", Number: 1, Type: row.TypeByte, Flags: row.FlagFixedLen, FixedOffset: 0},
		{Name: "TdefPage", Number: 2, Type: row.TypeLong, Flags: row.FlagFixedLen, FixedOffset: 1},
		{Name: "Data1", Number: 3, Type: row.TypeText, Length: 255, VariableIndex: 1},
		{Name: "Data2", Number: 4, Type: row.TypeText, Length: 255, VariableIndex: 2},
		{Name: "Data3", Number: 5, Type: row.TypeText, Length: 255, VariableIndex: 3},
		{Name: "Data4", Number: 6, Type: row.TypeText, Length: 255, VariableIndex: 4},
		{Name: "Flags", Number: 7, Type: row.TypeByte, Flags: row.FlagFixedLen, FixedOffset: 5},
	}
}

// Catalog is a database's live object directory: known tables
// (materialized from their table-definition pages), relationships, and
// linked-table references, all backed by MSysObjects -- itself a regular
// table (spec.md 4.10) rather than an in-memory-only registry.
type Catalog struct {
	ch     *page.Channel
	format *format.Descriptor
	opts   Options

	sysObjects *Table

	objects       map[string]objectEntry
	tables        map[string]*Table
	relationships map[string][]Relationship // keyed by either endpoint's table name
	linked        map[string]LinkedTable

	longValueIO row.IO
}

// bootstrapCatalog creates a brand new MSysObjects table -- landing, by
// construction order, on sysObjectsDataPage/sysObjectsTdefPage -- and
// wraps it in an otherwise-empty Catalog. Used only by Database's
// fresh-file Create path.
func bootstrapCatalog(ch *page.Channel, desc *format.Descriptor, opts Options, longValueIO row.IO) (*Catalog, error) {
	t, err := NewTable("MSysObjects", sysObjectsColumns(), ch, desc.RowCountSize, longValueIO)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	if t.owned.Pages()[0] != sysObjectsDataPage {
		return nil, newErr("Create", ErrCorruption, fmt.Errorf("MSysObjects data page %d, want %d", t.owned.Pages()[0], sysObjectsDataPage))
	}
	t.format = desc
	tdefPage, err := writeTableDef(ch, desc, t, 0)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	if tdefPage != sysObjectsTdefPage {
		return nil, newErr("Create", ErrCorruption, fmt.Errorf("MSysObjects tdef page %d, want %d", tdefPage, sysObjectsTdefPage))
	}
	t.tdefPage = tdefPage

	return &Catalog{
		ch:            ch,
		format:        desc,
		opts:          opts,
		sysObjects:    t,
		objects:       make(map[string]objectEntry),
		tables:        make(map[string]*Table),
		relationships: make(map[string][]Relationship),
		linked:        make(map[string]LinkedTable),
		longValueIO:   longValueIO,
	}, nil
}

// openCatalog decodes MSysObjects' table-definition chain from an
// existing file and materializes every object it lists: each table from
// its own tdef page, each relationship and linked table from its packed
// MSysObjects row (spec.md 8 Scenario A).
func openCatalog(ch *page.Channel, desc *format.Descriptor, opts Options, longValueIO row.IO) (*Catalog, error) {
	rec, err := readTableDef(ch, desc, sysObjectsTdefPage)
	if err != nil {
		return nil, newErr("Open", ErrCorruption, fmt.Errorf("decoding MSysObjects table definition: %w", err))
	}
	sysObjects := tableFromTdef("MSysObjects", rec, ch, desc, longValueIO, sysObjectsTdefPage)

	c := &Catalog{
		ch:            ch,
		format:        desc,
		opts:          opts,
		sysObjects:    sysObjects,
		objects:       make(map[string]objectEntry),
		tables:        make(map[string]*Table),
		relationships: make(map[string][]Relationship),
		linked:        make(map[string]LinkedTable),
		longValueIO:   longValueIO,
	}

	ids, err := sysObjects.Rows()
	if err != nil {
		return nil, newErr("Open", ErrCorruption, err)
	}
	for _, id := range ids {
		values, err := sysObjects.Row(id)
		if err != nil {
			return nil, newErr("Open", ErrCorruption, err)
		}
		if err := c.loadObjectRow(values); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Catalog) loadObjectRow(values row.Values) error {
	name := textField(values, "Name")
	typ := ObjectType(byteField(values, "Type"))

	switch typ {
	case ObjectTable:
		tdefPage := page.Number(int32Field(values, "TdefPage"))
		rec, err := readTableDef(c.ch, c.format, tdefPage)
		if err != nil {
			return newErr("Open", ErrCorruption, fmt.Errorf("decoding table definition for %q: %w", name, err))
		}
		t := tableFromTdef(name, rec, c.ch, c.format, c.longValueIO, tdefPage)
		c.objects[name] = objectEntry{Name: name, Type: ObjectTable}
		c.tables[name] = t

	case ObjectRelationship:
		r := relationshipFromRow(name, values)
		c.objects[name] = objectEntry{Name: name, Type: ObjectRelationship}
		c.relationships[r.FromTable] = append(c.relationships[r.FromTable], r)
		c.relationships[r.ToTable] = append(c.relationships[r.ToTable], r)

	case ObjectLinkedTable:
		lt := linkedTableFromRow(name, values)
		c.objects[name] = objectEntry{Name: name, Type: ObjectLinkedTable}
		c.linked[name] = lt

	default:
		return newErr("Open", ErrCorruption, fmt.Errorf("object %q has unknown directory type 0x%02x", name, typ))
	}
	return nil
}

func textField(values row.Values, name string) string {
	s, _ := values[name].(string)
	return s
}

func byteField(values row.Values, name string) byte {
	b, _ := values[name].(byte)
	return b
}

func int32Field(values row.Values, name string) int32 {
	n, _ := values[name].(int32)
	return n
}

func relationshipRow(r Relationship) row.Values {
	var flags byte
	if r.Enforced {
		flags |= relFlagEnforced
	}
	if r.CascadeUpdate {
		flags |= relFlagCascadeUpdate
	}
	if r.CascadeDelete {
		flags |= relFlagCascadeDelete
	}
	return row.Values{
		"Name":     r.Name,
		"Type":     byte(ObjectRelationship),
		"TdefPage": int32(page.Invalid),
		"Data1":    r.FromTable,
		"Data2":    r.FromColumn,
		"Data3":    r.ToTable,
		"Data4":    r.ToColumn,
		"Flags":    flags,
	}
}

func relationshipFromRow(name string, values row.Values) Relationship {
	flags := byteField(values, "Flags")
	return Relationship{
		Name:          name,
		FromTable:     textField(values, "Data1"),
		FromColumn:    textField(values, "Data2"),
		ToTable:       textField(values, "Data3"),
		ToColumn:      textField(values, "Data4"),
		Enforced:      flags&relFlagEnforced != 0,
		CascadeUpdate: flags&relFlagCascadeUpdate != 0,
		CascadeDelete: flags&relFlagCascadeDelete != 0,
	}
}

func linkedTableRow(lt LinkedTable) row.Values {
	return row.Values{
		"Name":     lt.Name,
		"Type":     byte(ObjectLinkedTable),
		"TdefPage": int32(page.Invalid),
		"Data1":    lt.ConnectionString,
		"Data2":    lt.RemoteTableName,
		"Data3":    "",
		"Data4":    "",
		"Flags":    byte(0),
	}
}

func linkedTableFromRow(name string, values row.Values) LinkedTable {
	return LinkedTable{
		Name:             name,
		ConnectionString: textField(values, "Data1"),
		RemoteTableName:  textField(values, "Data2"),
	}
}

// CreateTable validates name and columns, allocates the table's first
// data page and table-definition page, and registers both the table and
// its directory row in MSysObjects (spec.md 4.10's table-creation
// sequence). Indexes, if any, must be added afterward via Table.AddIndex.
func (c *Catalog) CreateTable(name string, columns []row.Column) (*Table, error) {
	if err := reserved.Validate(name); err != nil {
		return nil, newErr("Catalog.CreateTable", ErrPolicy, err)
	}
	if _, exists := c.objects[name]; exists {
		return nil, newErr("Catalog.CreateTable", ErrPolicy, fmt.Errorf("table %q already exists", name))
	}
	for _, col := range columns {
		if err := reserved.Validate(col.Name); err != nil {
			return nil, newErr("Catalog.CreateTable", ErrPolicy, err)
		}
	}

	t, err := NewTable(name, columns, c.ch, c.format.RowCountSize, c.longValueIO)
	if err != nil {
		return nil, newErr("Catalog.CreateTable", ErrIO, err)
	}
	t.format = c.format
	tdefPage, err := writeTableDef(c.ch, c.format, t, 0)
	if err != nil {
		return nil, newErr("Catalog.CreateTable", ErrIO, err)
	}
	t.tdefPage = tdefPage

	if _, err := c.sysObjects.Insert(row.Values{
		"Name":     name,
		"Type":     byte(ObjectTable),
		"TdefPage": int32(tdefPage),
		"Data1":    "",
		"Data2":    "",
		"Data3":    "",
		"Data4":    "",
		"Flags":    byte(0),
	}); err != nil {
		return nil, newErr("Catalog.CreateTable", ErrIO, err)
	}

	c.objects[name] = objectEntry{Name: name, Type: ObjectTable}
	c.tables[name] = t
	return t, nil
}

// OpenTable returns a table previously created this session or decoded
// from MSysObjects at Open time -- every object MSysObjects lists is
// materialized eagerly, so a missing entry here means the object
// directory itself is inconsistent rather than that the table needs
// decoding now.
func (c *Catalog) OpenTable(name string) (*Table, error) {
	entry, ok := c.objects[name]
	if !ok {
		return nil, newErr("Catalog.OpenTable", ErrPolicy, fmt.Errorf("table %q does not exist", name))
	}
	if entry.Type != ObjectTable {
		return nil, newErr("Catalog.OpenTable", ErrPolicy, fmt.Errorf("%q is not a table", name))
	}
	t, ok := c.tables[name]
	if !ok {
		return nil, newErr("Catalog.OpenTable", ErrCorruption, fmt.Errorf("table %q is listed in MSysObjects but was never materialized", name))
	}
	return t, nil
}

// DropTable deallocates every page a table owns, including its
// table-definition chain, and removes it and its directory row from
// MSysObjects.
func (c *Catalog) DropTable(name string) error {
	t, err := c.OpenTable(name)
	if err != nil {
		return err
	}
	for _, pn := range t.owned.Pages() {
		p, err := c.ch.Read(pn)
		if err != nil {
			return newErr("Catalog.DropTable", ErrIO, err)
		}
		if err := c.ch.Deallocate(p); err != nil {
			return newErr("Catalog.DropTable", ErrIO, err)
		}
	}
	if t.tdefPage != page.Invalid {
		for _, pn := range mustTdefChainPages(c.ch, t.tdefPage) {
			p, err := c.ch.Read(pn)
			if err != nil {
				return newErr("Catalog.DropTable", ErrIO, err)
			}
			if err := c.ch.Deallocate(p); err != nil {
				return newErr("Catalog.DropTable", ErrIO, err)
			}
		}
	}
	if err := c.deleteDirectoryRow(name); err != nil {
		return err
	}

	delete(c.objects, name)
	delete(c.tables, name)
	delete(c.relationships, name)
	return nil
}

func mustTdefChainPages(ch *page.Channel, start page.Number) []page.Number {
	pages, err := tdefChainPages(ch, start)
	if err != nil {
		return nil
	}
	return pages
}

func (c *Catalog) deleteDirectoryRow(name string) error {
	ids, err := c.sysObjects.Rows()
	if err != nil {
		return newErr("Catalog.DropTable", ErrIO, err)
	}
	for _, id := range ids {
		values, err := c.sysObjects.Row(id)
		if err != nil {
			return newErr("Catalog.DropTable", ErrIO, err)
		}
		if textField(values, "Name") == name {
			return c.sysObjects.Delete(id)
		}
	}
	return nil
}

// TableNames lists every table currently registered in the object
// directory.
func (c *Catalog) TableNames() []string {
	var out []string
	for name, e := range c.objects {
		if e.Type == ObjectTable {
			out = append(out, name)
		}
	}
	return out
}

// CreateRelationship registers a foreign-key relationship between two
// already-created tables, persisted as an MSysObjects directory row.
func (c *Catalog) CreateRelationship(r Relationship) error {
	if _, ok := c.objects[r.FromTable]; !ok {
		return newErr("Catalog.CreateRelationship", ErrPolicy, fmt.Errorf("table %q does not exist", r.FromTable))
	}
	if _, ok := c.objects[r.ToTable]; !ok {
		return newErr("Catalog.CreateRelationship", ErrPolicy, fmt.Errorf("table %q does not exist", r.ToTable))
	}
	if _, err := c.sysObjects.Insert(relationshipRow(r)); err != nil {
		return newErr("Catalog.CreateRelationship", ErrIO, err)
	}
	c.objects[r.Name] = objectEntry{Name: r.Name, Type: ObjectRelationship}
	c.relationships[r.FromTable] = append(c.relationships[r.FromTable], r)
	c.relationships[r.ToTable] = append(c.relationships[r.ToTable], r)
	return nil
}

// Relationships returns every relationship that names table as either
// endpoint.
func (c *Catalog) Relationships(table string) []Relationship {
	return c.relationships[table]
}

// CreateLinkedTable registers a pointer to a table whose data lives in
// another database file, persisted as an MSysObjects directory row.
func (c *Catalog) CreateLinkedTable(lt LinkedTable) error {
	if err := reserved.Validate(lt.Name); err != nil {
		return newErr("Catalog.CreateLinkedTable", ErrPolicy, err)
	}
	if _, exists := c.objects[lt.Name]; exists {
		return newErr("Catalog.CreateLinkedTable", ErrPolicy, fmt.Errorf("object %q already exists", lt.Name))
	}
	if _, err := c.sysObjects.Insert(linkedTableRow(lt)); err != nil {
		return newErr("Catalog.CreateLinkedTable", ErrIO, err)
	}
	c.objects[lt.Name] = objectEntry{Name: lt.Name, Type: ObjectLinkedTable}
	c.linked[lt.Name] = lt
	return nil
}

// ResolveLinkedTable returns a registered linked-table reference. Opening
// the referenced database file is the caller's responsibility.
func (c *Catalog) ResolveLinkedTable(name string) (LinkedTable, error) {
	lt, ok := c.linked[name]
	if !ok {
		return LinkedTable{}, newErr("Catalog.ResolveLinkedTable", ErrPolicy, fmt.Errorf("linked table %q does not exist", name))
	}
	return lt, nil
}

// buildKeyColumns resolves a list of column names against t's schema
// into index.KeyColumn descriptors, the shape Table.AddIndex and
// CreateIndex need.
func buildKeyColumns(t *Table, columnNames []string, descending []bool, sortOrder textcodec.SortOrder) ([]index.KeyColumn, error) {
	out := make([]index.KeyColumn, len(columnNames))
	for i, name := range columnNames {
		var found *row.Column
		for _, col := range t.Columns {
			if col.Name == name {
				c := col
				found = &c
				break
			}
		}
		if found == nil {
			return nil, fmt.Errorf("catalog: table %q has no column %q", t.Name, name)
		}
		desc := false
		if i < len(descending) {
			desc = descending[i]
		}
		out[i] = index.KeyColumn{Column: *found, Descending: desc, SortOrder: sortOrder}
	}
	return out, nil
}

// CreateIndex builds and attaches a new index over t's named columns,
// choosing the paged variant when Options.UseBigIndex is set and the
// simple in-memory variant otherwise; the format's index capacity is not
// consulted (spec.md 4.7.7).
func (c *Catalog) CreateIndex(t *Table, name string, columnNames []string, descending []bool, unique bool) (*Index, error) {
	kcs, err := buildKeyColumns(t, columnNames, descending, c.opts.SortOrder)
	if err != nil {
		return nil, newErr("Catalog.CreateIndex", ErrPolicy, err)
	}

	var data index.IndexData
	if c.opts.UseBigIndex {
		data, err = index.NewPagedData(c.ch)
		if err != nil {
			return nil, newErr("Catalog.CreateIndex", ErrIO, err)
		}
	} else {
		data = index.NewSimpleData()
	}

	idx := &Index{Name: name, Columns: kcs, Unique: unique, Data: data}
	t.AddIndex(idx)
	return idx, nil
}
