package jetdb

import (
	"encoding/binary"
	"fmt"

	"github.com/kjhughes/jetdb/internal/codec"
	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/row"
)

// tdefRecord is the decoded form of a table's table-definition page chain
// (spec.md 3 "Table Definition", 4.10): the column layout plus the
// bookkeeping a reopened table needs to resume where it left off. Index
// descriptors are not persisted here -- a reopened table has no indexes
// until CreateIndex is called again in the new session (spec.md 4.7's
// index data is scoped to a live process, not a durable on-disk index store).
type tdefRecord struct {
	Columns        []row.Column
	RowCount       int
	NextAutoNumber int32
	OwnedPages     []page.Number
	FreePages      []page.Number
}

// tdefChunkSize is one table-def page's payload capacity: the full page
// minus its leading type byte and its trailing 4-byte chain trailer (3
// bytes of next-page pointer plus one pad byte), the same chaining layout
// internal/row.PageIO uses for long-value pages.
func tdefChunkSize(pageSize int) int { return pageSize - 1 - 4 }

// tdefWriter appends sequential fields to a growing buffer, used for a
// tdef page chain's variable-length column-descriptor and page-list
// trailer.
type tdefWriter struct{ buf []byte }

func (w *tdefWriter) putByte(v byte) { w.buf = append(w.buf, v) }

func (w *tdefWriter) putUint16(v uint16) {
	var tmp [2]byte
	binary.LittleEndian.PutUint16(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *tdefWriter) putUint32(v uint32) {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

func (w *tdefWriter) putBytesField(b []byte) {
	w.putUint16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *tdefWriter) putStringField(s string) { w.putBytesField([]byte(s)) }

// tdefReader reads sequential fields back out of a tdef buffer, sticking
// on the first error so callers can check it once at the end instead of
// after every field.
type tdefReader struct {
	buf []byte
	pos int
	err error
}

func (r *tdefReader) getByte() byte {
	if r.err != nil {
		return 0
	}
	v, err := codec.ReadByte(r.buf, r.pos)
	r.err = err
	r.pos++
	return v
}

func (r *tdefReader) getUint16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := codec.ReadUint16LE(r.buf, r.pos)
	r.err = err
	r.pos += 2
	return v
}

func (r *tdefReader) getUint32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := codec.ReadUint32(r.buf, r.pos, binary.LittleEndian)
	r.err = err
	r.pos += 4
	return v
}

func (r *tdefReader) getBytesField() []byte {
	if r.err != nil {
		return nil
	}
	n := r.getUint16()
	if r.err != nil {
		return nil
	}
	start := r.pos
	end := start + int(n)
	if end > len(r.buf) {
		r.err = codec.ErrShortBuffer
		return nil
	}
	out := make([]byte, n)
	copy(out, r.buf[start:end])
	r.pos = end
	return out
}

func (r *tdefReader) getStringField() string { return string(r.getBytesField()) }

// encodeTableDef builds the full logical tdef buffer for t: fixed header
// fields at the format's declared offsets, one column descriptor per
// column, and a trailer listing the table's owned and free data pages
// (spec.md 4.10 step 3's "Table Definition" data element, persisted in
// place of a full on-disk usage-map bitmap for those two lists).
func encodeTableDef(desc *format.Descriptor, t *Table, rowCount int) ([]byte, error) {
	header := make([]byte, desc.TdefColumnDefOffset)
	if err := codec.WriteUint32(header, desc.TdefRowCountOffset, uint32(rowCount), binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("tdef: row count: %w", err)
	}
	if err := codec.WriteUint32(header, desc.TdefNextAutoNumOffset, uint32(t.nextAutoNumber), binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("tdef: next auto-number: %w", err)
	}
	if err := codec.WriteUint16LE(header, desc.TdefColumnCountOffset, uint16(len(t.Columns))); err != nil {
		return nil, fmt.Errorf("tdef: column count: %w", err)
	}
	if err := codec.WriteUint16LE(header, desc.TdefIndexCountOffset, 0); err != nil {
		return nil, fmt.Errorf("tdef: index count: %w", err)
	}

	ownedPages := t.owned.Pages()
	ownedStart := page.Invalid
	if len(ownedPages) > 0 {
		ownedStart = ownedPages[0]
	}
	if err := codec.WriteUint32(header, desc.TdefLogicalIndexOffset, uint32(ownedStart), binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("tdef: owned start page: %w", err)
	}

	w := &tdefWriter{buf: header}
	for _, col := range t.Columns {
		w.putStringField(col.Name)
		w.putByte(byte(col.Type))
		w.putUint16(uint16(col.Flags))
		w.putUint16(uint16(col.FixedOffset))
		w.putUint16(uint16(col.Length))
		w.putUint16(uint16(col.VariableIndex))
		w.putUint16(uint16(col.Number))
		w.putByte(col.Precision)
		w.putByte(col.Scale)
		w.putBytesField(col.DefaultValueExpr())
		w.putBytesField(col.ValidationRule())
		w.putStringField(col.ValidationText)
	}

	w.putUint16(uint16(len(ownedPages)))
	for _, p := range ownedPages {
		w.putUint32(uint32(p))
	}
	freePages := t.freeSpace.Pages()
	w.putUint16(uint16(len(freePages)))
	for _, p := range freePages {
		w.putUint32(uint32(p))
	}

	buf := w.buf
	// Stash the logical buffer's exact length in the reserved bytes ahead
	// of TdefRowCountOffset (always >= 12 in every format version), so a
	// chain read can trim the zero padding a partially-filled final page
	// contributes.
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(buf)))
	return buf, nil
}

// decodeTableDef reverses encodeTableDef.
func decodeTableDef(desc *format.Descriptor, buf []byte) (tdefRecord, error) {
	rowCount, err := codec.ReadUint32(buf, desc.TdefRowCountOffset, binary.LittleEndian)
	if err != nil {
		return tdefRecord{}, fmt.Errorf("tdef: row count: %w", err)
	}
	nextAutoNumber, err := codec.ReadUint32(buf, desc.TdefNextAutoNumOffset, binary.LittleEndian)
	if err != nil {
		return tdefRecord{}, fmt.Errorf("tdef: next auto-number: %w", err)
	}
	colCount, err := codec.ReadUint16LE(buf, desc.TdefColumnCountOffset)
	if err != nil {
		return tdefRecord{}, fmt.Errorf("tdef: column count: %w", err)
	}

	r := &tdefReader{buf: buf, pos: desc.TdefColumnDefOffset}
	columns := make([]row.Column, colCount)
	for i := range columns {
		name := r.getStringField()
		typ := r.getByte()
		flags := r.getUint16()
		fixedOffset := r.getUint16()
		length := r.getUint16()
		variableIndex := r.getUint16()
		number := r.getUint16()
		precision := r.getByte()
		scale := r.getByte()
		defaultValue := r.getBytesField()
		validationRule := r.getBytesField()
		validationText := r.getStringField()

		col := row.Column{
			Name:          name,
			Number:        int(number),
			Type:          row.Type(typ),
			Precision:     precision,
			Scale:         scale,
			Flags:         row.Flags(flags),
			Length:        int(length),
			FixedOffset:   int(fixedOffset),
			VariableIndex: int(variableIndex),
			ValidationText: validationText,
		}
		col = col.WithDefaultValueExpr(defaultValue).WithValidationRule(validationRule)
		columns[i] = col
	}

	ownedCount := r.getUint16()
	ownedPages := make([]page.Number, ownedCount)
	for i := range ownedPages {
		ownedPages[i] = page.Number(r.getUint32())
	}
	freeCount := r.getUint16()
	freePages := make([]page.Number, freeCount)
	for i := range freePages {
		freePages[i] = page.Number(r.getUint32())
	}
	if r.err != nil {
		return tdefRecord{}, fmt.Errorf("tdef: %w", r.err)
	}

	return tdefRecord{
		Columns:        columns,
		RowCount:       int(rowCount),
		NextAutoNumber: int32(nextAutoNumber),
		OwnedPages:     ownedPages,
		FreePages:      freePages,
	}, nil
}

// tdefChainPages walks an existing table-def page chain, following each
// page's trailing next-pointer, and returns the page numbers in chain
// order.
func tdefChainPages(ch *page.Channel, start page.Number) ([]page.Number, error) {
	var out []page.Number
	cur := start
	for cur != page.Invalid {
		out = append(out, cur)
		pg, err := ch.Read(cur)
		if err != nil {
			return nil, err
		}
		next, err := codec.ReadInt24(pg.Data, len(pg.Data)-4, false)
		if err != nil {
			return nil, err
		}
		cur = page.Number(next)
	}
	return out, nil
}

// readTableDefChain reconstructs the full logical tdef buffer from a page
// chain, trimming the last page's trailing padding using the length
// stamped by encodeTableDef.
func readTableDefChain(ch *page.Channel, start page.Number) ([]byte, error) {
	var raw []byte
	cur := start
	for cur != page.Invalid {
		pg, err := ch.Read(cur)
		if err != nil {
			return nil, err
		}
		raw = append(raw, pg.Data[1:len(pg.Data)-4]...)
		next, err := codec.ReadInt24(pg.Data, len(pg.Data)-4, false)
		if err != nil {
			return nil, err
		}
		cur = page.Number(next)
	}
	if len(raw) < 4 {
		return nil, fmt.Errorf("tdef: page %d: chain too short for header", start)
	}
	totalLen := binary.LittleEndian.Uint32(raw[0:4])
	if int(totalLen) > len(raw) {
		return nil, fmt.Errorf("tdef: page %d: stored length %d exceeds chain capacity %d", start, totalLen, len(raw))
	}
	return raw[:totalLen], nil
}

// readTableDef reads and decodes the table-def chain starting at start.
func readTableDef(ch *page.Channel, desc *format.Descriptor, start page.Number) (tdefRecord, error) {
	raw, err := readTableDefChain(ch, start)
	if err != nil {
		return tdefRecord{}, err
	}
	return decodeTableDef(desc, raw)
}

// writeTableDef allocates a fresh table-def page chain for t and returns
// its first page number, which stays fixed for the table's lifetime
// (persistTableDef rewrites in place against this same first page).
func writeTableDef(ch *page.Channel, desc *format.Descriptor, t *Table, rowCount int) (page.Number, error) {
	buf, err := encodeTableDef(desc, t, rowCount)
	if err != nil {
		return page.Invalid, err
	}
	pages, err := allocateTdefPages(ch, len(buf))
	if err != nil {
		return page.Invalid, err
	}
	if err := writeTdefPages(ch, pages, buf); err != nil {
		return page.Invalid, err
	}
	return pages[0].Number, nil
}

// persistTableDef rewrites t's table-def chain in place, reusing its
// existing pages (growing or shrinking the chain as needed) so the first
// page number -- the one MSysObjects stores as a stable reference --
// never changes.
func persistTableDef(ch *page.Channel, desc *format.Descriptor, t *Table, rowCount int) error {
	if t.tdefPage == page.Invalid || t.format == nil {
		return nil
	}
	buf, err := encodeTableDef(desc, t, rowCount)
	if err != nil {
		return err
	}

	existing, err := tdefChainPages(ch, t.tdefPage)
	if err != nil {
		return err
	}

	chunkSize := tdefChunkSize(ch.PageSize())
	nChunks := (len(buf) + chunkSize - 1) / chunkSize
	if nChunks == 0 {
		nChunks = 1
	}

	pages := make([]*page.Page, 0, nChunks)
	for i := 0; i < nChunks; i++ {
		if i < len(existing) {
			pg, err := ch.Read(existing[i])
			if err != nil {
				return err
			}
			pg.SetType(page.TypeTableDef)
			pages = append(pages, pg)
			continue
		}
		pg, err := ch.Allocate(page.TypeTableDef)
		if err != nil {
			return err
		}
		pages = append(pages, pg)
	}
	for i := nChunks; i < len(existing); i++ {
		pg, err := ch.Read(existing[i])
		if err != nil {
			return err
		}
		if err := ch.Deallocate(pg); err != nil {
			return err
		}
	}

	return writeTdefPages(ch, pages, buf)
}

func allocateTdefPages(ch *page.Channel, bufLen int) ([]*page.Page, error) {
	chunkSize := tdefChunkSize(ch.PageSize())
	n := (bufLen + chunkSize - 1) / chunkSize
	if n == 0 {
		n = 1
	}
	pages := make([]*page.Page, 0, n)
	for i := 0; i < n; i++ {
		pg, err := ch.Allocate(page.TypeTableDef)
		if err != nil {
			return nil, err
		}
		pages = append(pages, pg)
	}
	return pages, nil
}

// writeTdefPages splits buf across pages (already allocated or reused),
// chains them with trailing next-pointers, and writes each one.
func writeTdefPages(ch *page.Channel, pages []*page.Page, buf []byte) error {
	chunkSize := tdefChunkSize(ch.PageSize())
	for i, pg := range pages {
		if err := codec.Clear(pg.Data, 1, len(pg.Data)-4); err != nil {
			return err
		}
		off := i * chunkSize
		end := off + chunkSize
		if end > len(buf) {
			end = len(buf)
		}
		if off < len(buf) {
			copy(pg.Data[1:], buf[off:end])
		}
		next := page.Invalid
		if i+1 < len(pages) {
			next = pages[i+1].Number
		}
		if err := codec.WriteInt24(pg.Data, len(pg.Data)-4, int32(next), false); err != nil {
			return err
		}
		if err := ch.Write(pg, 0); err != nil {
			return err
		}
	}
	return nil
}

// tableFromTdef rebuilds a live *Table handle from a decoded tdef record,
// restoring its owned/free page lists as indirect usage maps anchored at
// the first owned page (spec.md 4.4's Indirect form).
func tableFromTdef(name string, rec tdefRecord, ch *page.Channel, desc *format.Descriptor, longValueIO row.IO, tdefPage page.Number) *Table {
	ownedStart := page.Invalid
	if len(rec.OwnedPages) > 0 {
		ownedStart = rec.OwnedPages[0]
	}
	owned := page.NewIndirectUsageMap(ownedStart)
	for _, p := range rec.OwnedPages {
		_ = owned.AddPage(p)
	}
	freeStart := page.Invalid
	if len(rec.FreePages) > 0 {
		freeStart = rec.FreePages[0]
	}
	freeSpace := page.NewIndirectUsageMap(freeStart)
	for _, p := range rec.FreePages {
		_ = freeSpace.AddPage(p)
	}

	return &Table{
		Name:    name,
		Columns: rec.Columns,
		ch:      ch,
		codec:   &row.Codec{Columns: rec.Columns, RowCountSize: desc.RowCountSize, LongValueIO: longValueIO},

		owned:     owned,
		freeSpace: freeSpace,

		nextAutoNumber: rec.NextAutoNumber,

		format:   desc,
		tdefPage: tdefPage,
	}
}
