package jetdb

import (
	"fmt"

	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/index"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/row"
)

// RowID identifies one stored row: the data page it lives on plus its
// slot within that page's directory (spec.md 4.2).
type RowID = index.RowID

// ErrorHandler lets a caller decide whether a corrupt row encountered
// during a scan should abort the scan (return false) or be skipped
// (return true), per spec.md 7's "recoverable vs fatal" error split.
type ErrorHandler func(id RowID, err error) (skip bool)

// Index is one table index: its key-column layout plus the storage
// strategy (index.SimpleData, or index.PagedData when Catalog.CreateIndex
// runs with Options.UseBigIndex set).
type Index struct {
	Name    string
	Columns []index.KeyColumn
	Unique  bool
	Data    index.IndexData
}

// RowState is the per-cursor scratch area spec.md's glossary describes:
// a cached decode of the row a cursor is currently positioned on, along
// with the table modification counter it was decoded against, so a
// cursor can tell whether its cached values are still current without
// re-reading the page (spec.md 4.9).
type RowState struct {
	ID       RowID
	Values   row.Values
	modCount uint32
}

// Table is one table's live handle: its column/codec layout, the data
// pages it owns, its indexes, and the bookkeeping (auto-number counter,
// modification counter) spec.md 4.6 assigns to a table.
//
// A table spans many data pages, each laid out with the page-local
// slotted layout in internal/page/datapage.go, and carries a real index
// set rather than relying on a full scan for every lookup.
type Table struct {
	Name    string
	Columns []row.Column

	ch    *page.Channel
	codec *row.Codec

	owned     *page.UsageMap
	freeSpace *page.UsageMap
	indexes   []*Index

	nextAutoNumber int32
	modCount       uint32

	// format and tdefPage are set once a table is registered with a
	// Catalog backed by a real file; a bare NewTable used directly (tests,
	// or the catalog's own bootstrap sequence before the tdef page
	// exists) leaves tdefPage at page.Invalid, and persistTdef becomes a
	// no-op.
	format   *format.Descriptor
	tdefPage page.Number
}

// NewTable creates a table backed by a fresh data page, ready for
// inserts. rowCountSize is the format's row-count field width (1 for
// Jet3, 2 for Jet4+); longValueIO routes memo/OLE overflow.
func NewTable(name string, columns []row.Column, ch *page.Channel, rowCountSize int, longValueIO row.IO) (*Table, error) {
	first, err := ch.Allocate(page.TypeData)
	if err != nil {
		return nil, err
	}
	page.InitDataPage(first)
	if err := ch.Write(first, 0); err != nil {
		return nil, err
	}

	owned := page.NewIndirectUsageMap(first.Number)
	if err := owned.AddPage(first.Number); err != nil {
		return nil, err
	}
	freeSpace := page.NewIndirectUsageMap(first.Number)
	if err := freeSpace.AddPage(first.Number); err != nil {
		return nil, err
	}

	return &Table{
		Name:    name,
		Columns: columns,
		ch:      ch,
		codec:   &row.Codec{Columns: columns, RowCountSize: rowCountSize, LongValueIO: longValueIO},

		owned:     owned,
		freeSpace: freeSpace,

		tdefPage: page.Invalid,
	}, nil
}

// persistTdef rewrites this table's table-definition page chain, if one
// has been assigned (spec.md 4.10 step 3). A table created directly via
// NewTable without going through a Catalog has no tdef page and this is a
// no-op.
func (t *Table) persistTdef() error {
	if t.tdefPage == page.Invalid || t.format == nil {
		return nil
	}
	stats, err := t.Stats()
	if err != nil {
		return newErr("Table.persistTdef", ErrIO, err)
	}
	if err := persistTableDef(t.ch, t.format, t, stats.RowCount); err != nil {
		return newErr("Table.persistTdef", ErrIO, err)
	}
	return nil
}

// AddIndex registers an index over this table. The caller is responsible
// for backfilling entries for any rows already present (spec.md 4.10's
// table-creation sequence builds indexes before any rows exist, so the
// common case needs no backfill).
func (t *Table) AddIndex(idx *Index) { t.indexes = append(t.indexes, idx) }

// ModCount returns the table's structural modification counter, used by
// table-scan cursors to detect changes made since they last positioned
// themselves (spec.md 4.9).
func (t *Table) ModCount() uint32 { return t.modCount }

// Stats summarizes a table's current size, grounded on the original
// implementation's table-statistics surface (a feature the distilled
// specification omitted but a complete engine exposes): total live rows
// and the number of data pages backing them.
type Stats struct {
	RowCount  int
	PageCount int
}

// Stats walks every owned data page and counts live (non-tombstoned)
// rows.
func (t *Table) Stats() (Stats, error) {
	var s Stats
	for _, pn := range t.owned.Pages() {
		p, err := t.ch.Read(pn)
		if err != nil {
			return Stats{}, newErr("Table.Stats", ErrIO, err)
		}
		slots, _, err := page.Rows(p)
		if err != nil {
			return Stats{}, newErr("Table.Stats", ErrCorruption, err)
		}
		s.RowCount += len(slots)
		s.PageCount++
	}
	return s, nil
}

// Insert encodes values and stores them on whichever owned page has
// room, allocating a new page if none does, then adds one entry per
// index. An auto-number column left unset in values is assigned the
// table's next counter value.
func (t *Table) Insert(values row.Values) (RowID, error) {
	t.assignAutoNumbers(values)

	data, err := t.codec.Encode(values)
	if err != nil {
		return RowID{}, newErr("Table.Insert", ErrPolicy, err)
	}

	id, err := t.storeNewRow(data)
	if err != nil {
		return RowID{}, err
	}

	if err := t.insertIndexEntries(id, values); err != nil {
		return RowID{}, err
	}

	t.modCount++
	if err := t.persistTdef(); err != nil {
		return RowID{}, err
	}
	return id, nil
}

func (t *Table) assignAutoNumbers(values row.Values) {
	for _, col := range t.Columns {
		if col.Flags&row.FlagAutoNumber == 0 {
			continue
		}
		if v, present := values[col.Name]; present && v != nil {
			continue
		}
		t.nextAutoNumber++
		values[col.Name] = t.nextAutoNumber
	}
}

func (t *Table) storeNewRow(data []byte) (RowID, error) {
	for _, pn := range t.freeSpace.Pages() {
		p, err := t.ch.Read(pn)
		if err != nil {
			return RowID{}, newErr("Table.Insert", ErrIO, err)
		}
		if page.FreeSpace(p) < len(data)+6 {
			continue
		}
		slot, err := page.AddRow(p, data)
		if err != nil {
			continue
		}
		if err := t.ch.Write(p, 0); err != nil {
			return RowID{}, newErr("Table.Insert", ErrIO, err)
		}
		return RowID{Page: pn, Row: byte(slot)}, nil
	}

	p, err := t.ch.Allocate(page.TypeData)
	if err != nil {
		return RowID{}, newErr("Table.Insert", ErrIO, err)
	}
	page.InitDataPage(p)
	slot, err := page.AddRow(p, data)
	if err != nil {
		return RowID{}, newErr("Table.Insert", ErrPolicy, err)
	}
	if err := t.ch.Write(p, 0); err != nil {
		return RowID{}, newErr("Table.Insert", ErrIO, err)
	}
	if err := t.owned.AddPage(p.Number); err != nil {
		return RowID{}, newErr("Table.Insert", ErrCorruption, err)
	}
	if err := t.freeSpace.AddPage(p.Number); err != nil {
		return RowID{}, newErr("Table.Insert", ErrCorruption, err)
	}
	return RowID{Page: p.Number, Row: byte(slot)}, nil
}

// Row retrieves and decodes one row by id.
func (t *Table) Row(id RowID) (row.Values, error) {
	p, err := t.ch.Read(id.Page)
	if err != nil {
		return nil, newErr("Table.Row", ErrIO, err)
	}
	data, err := page.GetRow(p, int(id.Row))
	if err == page.ErrRowDeleted {
		return nil, newErr("Table.Row", ErrPolicy, fmt.Errorf("row %v was deleted", id))
	}
	if err != nil {
		return nil, newErr("Table.Row", ErrCorruption, err)
	}
	values, err := t.codec.Decode(data)
	if err != nil {
		return nil, newErr("Table.Row", ErrCorruption, err)
	}
	return values, nil
}

// Update replaces a row's values. If the new encoding fits in the
// original slot it is overwritten in place and the row-id is unchanged;
// otherwise the old slot is deleted and the row is re-inserted
// elsewhere, returning a new row-id (spec.md 4.6: growth-triggered
// relocation, no forwarding pointers).
func (t *Table) Update(id RowID, values row.Values) (RowID, error) {
	old, err := t.Row(id)
	if err != nil {
		return RowID{}, err
	}

	data, err := t.codec.Encode(values)
	if err != nil {
		return RowID{}, newErr("Table.Update", ErrPolicy, err)
	}

	p, err := t.ch.Read(id.Page)
	if err != nil {
		return RowID{}, newErr("Table.Update", ErrIO, err)
	}
	ok, err := page.UpdateRowInPlace(p, int(id.Row), data)
	if err != nil {
		return RowID{}, newErr("Table.Update", ErrCorruption, err)
	}

	newID := id
	if !ok {
		if err := page.DeleteRow(p, int(id.Row)); err != nil {
			return RowID{}, newErr("Table.Update", ErrCorruption, err)
		}
		if err := t.ch.Write(p, 0); err != nil {
			return RowID{}, newErr("Table.Update", ErrIO, err)
		}
		newID, err = t.storeNewRow(data)
		if err != nil {
			return RowID{}, err
		}
	} else if err := t.ch.Write(p, 0); err != nil {
		return RowID{}, newErr("Table.Update", ErrIO, err)
	}

	if err := t.removeIndexEntries(id, old); err != nil {
		return RowID{}, err
	}
	if err := t.insertIndexEntries(newID, values); err != nil {
		return RowID{}, err
	}

	t.modCount++
	if err := t.persistTdef(); err != nil {
		return RowID{}, err
	}
	return newID, nil
}

// Delete tombstones a row's slot and removes its index entries.
func (t *Table) Delete(id RowID) error {
	values, err := t.Row(id)
	if err != nil {
		return err
	}
	p, err := t.ch.Read(id.Page)
	if err != nil {
		return newErr("Table.Delete", ErrIO, err)
	}
	if err := page.DeleteRow(p, int(id.Row)); err != nil {
		return newErr("Table.Delete", ErrCorruption, err)
	}
	if err := t.ch.Write(p, 0); err != nil {
		return newErr("Table.Delete", ErrIO, err)
	}
	if err := t.removeIndexEntries(id, values); err != nil {
		return err
	}
	t.modCount++
	return t.persistTdef()
}

func (t *Table) insertIndexEntries(id RowID, values row.Values) error {
	for _, idx := range t.indexes {
		key, err := encodeIndexKey(idx, values)
		if err != nil {
			return newErr("Table.Insert", ErrPolicy, err)
		}
		if err := idx.Data.Insert(key, id); err != nil {
			return newErr("Table.Insert", ErrCorruption, err)
		}
	}
	return nil
}

func (t *Table) removeIndexEntries(id RowID, values row.Values) error {
	for _, idx := range t.indexes {
		key, err := encodeIndexKey(idx, values)
		if err != nil {
			return newErr("Table.Delete", ErrPolicy, err)
		}
		if err := idx.Data.Remove(key, id); err != nil && err != index.ErrNotFound {
			return newErr("Table.Delete", ErrCorruption, err)
		}
	}
	return nil
}

func encodeIndexKey(idx *Index, values row.Values) ([]byte, error) {
	vals := make([]interface{}, len(idx.Columns))
	for i, kc := range idx.Columns {
		vals[i] = values[kc.Column.Name]
	}
	return index.EncodeKey(idx.Columns, vals)
}

// Rows returns every live row-id currently stored, in page/slot order --
// the basis of the table-scan cursor variant (spec.md 4.9).
func (t *Table) Rows() ([]RowID, error) {
	var out []RowID
	for _, pn := range t.owned.Pages() {
		p, err := t.ch.Read(pn)
		if err != nil {
			return nil, newErr("Table.Rows", ErrIO, err)
		}
		slots, _, err := page.Rows(p)
		if err != nil {
			return nil, newErr("Table.Rows", ErrCorruption, err)
		}
		for _, s := range slots {
			out = append(out, RowID{Page: pn, Row: byte(s)})
		}
	}
	return out, nil
}
