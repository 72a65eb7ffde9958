// Package page implements the fixed-size page channel (spec.md 4.3): page
// read/write/allocate/deallocate against a random-access file, plus the raw
// Page buffer abstraction every other layer builds on.
//
// A typed header is decoded once into a struct, backed by a mutable byte
// slice that owns the actual page bytes, covering Jet's six page types.
package page

import (
	"errors"
	"fmt"
)

// Type tags the first byte of every page.
type Type byte

const (
	TypeInvalid   Type = 0x00
	TypeData      Type = 0x01
	TypeTableDef  Type = 0x02
	TypeIndexLeaf Type = 0x03
	TypeIndexNode Type = 0x04
	TypeUsageMap  Type = 0x05
	TypeLongValue Type = 0x06
)

// Number is a 32-bit signed page number. Invalid denotes "no page".
type Number int32

// Invalid is the sentinel page number.
const Invalid Number = -1

// Page is a fixed-size, mutable in-memory copy of one on-disk page.
type Page struct {
	Number Number
	Data   []byte
}

// TypeOf returns the page's type tag (byte 0).
func (p *Page) TypeOf() Type {
	if len(p.Data) == 0 {
		return TypeInvalid
	}
	return Type(p.Data[0])
}

// SetType stamps the page's type tag.
func (p *Page) SetType(t Type) {
	p.Data[0] = byte(t)
}

// MarkInvalid overwrites the type byte and the next three bytes with the
// invalid marker, per spec.md's deallocation invariant ("A page marked
// deallocated has its type byte and next three bytes overwritten with the
// invalid marker").
func (p *Page) MarkInvalid() {
	for i := 0; i < 4 && i < len(p.Data); i++ {
		p.Data[i] = byte(TypeInvalid)
	}
}

// New allocates a zeroed page buffer of the given size, tagged as t.
func New(number Number, size int, t Type) *Page {
	p := &Page{Number: number, Data: make([]byte, size)}
	p.SetType(t)
	return p
}

// File is the minimal random-access surface the channel needs. A real
// *os.File satisfies it; tests use an in-memory implementation.
type File interface {
	ReadAt(b []byte, off int64) (int, error)
	WriteAt(b []byte, off int64) (int, error)
	Truncate(size int64) error
	Size() (int64, error)
	Sync() error
	Close() error
}

// Channel reads and writes fixed-size pages to a File. Allocate always
// extends the file; Deallocate records the page in a global free-page
// usage map (installed by the catalog after bootstrap via SetFreeMap),
// which Allocate does not draw from.
type Channel struct {
	file     File
	pageSize int
	autoSync bool
	readOnly bool
	maxSize  int64

	freeMap FreeMapper
}

// FreeMapper is implemented by the global usage map; Channel uses it to
// record deallocated pages (spec.md 4.3 Deallocate). Recorded pages are
// not handed out again by Allocate.
type FreeMapper interface {
	AddPage(p Number) error
}

// ErrDatabaseFull is returned by Write when a write would push the file
// past the format's maximum database size.
var ErrDatabaseFull = errors.New("page: database full")

// ErrReadOnly is returned by any mutating Channel call when the channel was
// opened read-only (spec.md scenario E).
var ErrReadOnly = errors.New("page: read-only format")

// NewChannel constructs a Channel over an already-open File.
func NewChannel(f File, pageSize int, autoSync, readOnly bool) *Channel {
	return &Channel{file: f, pageSize: pageSize, autoSync: autoSync, readOnly: readOnly}
}

// SetFreeMap installs the global free-page usage map used by Deallocate.
func (c *Channel) SetFreeMap(m FreeMapper) { c.freeMap = m }

// PageSize returns the fixed page size for this channel.
func (c *Channel) PageSize() int { return c.pageSize }

// PageCount returns the number of pages currently in the file.
func (c *Channel) PageCount() (int, error) {
	size, err := c.file.Size()
	if err != nil {
		return 0, err
	}
	return int(size) / c.pageSize, nil
}

func (c *Channel) offset(n Number) int64 {
	return int64(n) * int64(c.pageSize)
}

// Read reads page n into a fresh buffer.
func (c *Channel) Read(n Number) (*Page, error) {
	if n <= Invalid {
		return nil, fmt.Errorf("page: invalid page number %d", n)
	}
	count, err := c.PageCount()
	if err != nil {
		return nil, err
	}
	if int(n) >= count {
		return nil, fmt.Errorf("page: page %d out of bounds (have %d pages)", n, count)
	}

	buf := make([]byte, c.pageSize)
	if _, err := c.file.ReadAt(buf, c.offset(n)); err != nil {
		return nil, fmt.Errorf("page: read %d: %w", n, err)
	}
	return &Page{Number: n, Data: buf}, nil
}

// Write writes p at an optional intra-page offset. When offset is 0 the
// whole page buffer is written. Honors the auto-sync policy: every write
// is flushed immediately when autoSync is set, otherwise left to the OS.
func (c *Channel) Write(p *Page, intraOffset int) error {
	if c.readOnly {
		return ErrReadOnly
	}

	end := c.offset(p.Number) + int64(len(p.Data))
	maxSize, ok := c.maxDatabaseSize()
	if ok && end > maxSize {
		return ErrDatabaseFull
	}

	data := p.Data
	writeAt := c.offset(p.Number)
	if intraOffset > 0 {
		data = p.Data[intraOffset:]
		writeAt += int64(intraOffset)
	}

	if _, err := c.file.WriteAt(data, writeAt); err != nil {
		return fmt.Errorf("page: write %d: %w", p.Number, err)
	}

	if c.autoSync {
		return c.file.Sync()
	}
	return nil
}

// maxDatabaseSize is set by the caller (database handle) after resolving
// the format descriptor; zero-value channels (tests) skip the check.
func (c *Channel) maxDatabaseSize() (int64, bool) {
	if c.maxSize == 0 {
		return 0, false
	}
	return c.maxSize, true
}

// SetMaxDatabaseSize installs the format's maximum database size, enabling
// the "database full" guard in Write.
func (c *Channel) SetMaxDatabaseSize(n int64) { c.maxSize = n }

// Allocate extends the file by one page worth of bytes (by writing a
// single trailing byte at the new end-of-file offset) and returns the
// new page number.
func (c *Channel) Allocate(t Type) (*Page, error) {
	if c.readOnly {
		return nil, ErrReadOnly
	}
	count, err := c.PageCount()
	if err != nil {
		return nil, err
	}
	newNumber := Number(count)
	newOffset := c.offset(newNumber)

	// Grow the file by writing a single byte at the last offset of the new
	// page so the file actually grows to the next page boundary.
	if _, err := c.file.WriteAt([]byte{0}, newOffset+int64(c.pageSize)-1); err != nil {
		return nil, fmt.Errorf("page: allocate: %w", err)
	}

	p := New(newNumber, c.pageSize, t)
	return p, nil
}

// Deallocate overwrites the page's leading invalid marker and, if a free
// page map has been installed, records the page as globally free.
func (c *Channel) Deallocate(p *Page) error {
	if c.readOnly {
		return ErrReadOnly
	}
	p.MarkInvalid()
	if err := c.Write(p, 0); err != nil {
		return err
	}
	if c.freeMap != nil {
		return c.freeMap.AddPage(p.Number)
	}
	return nil
}

// Flush forces outstanding writes to disk.
func (c *Channel) Flush() error {
	if c.autoSync {
		return nil
	}
	return c.file.Sync()
}

// Close flushes then releases the underlying file.
func (c *Channel) Close() error {
	if err := c.Flush(); err != nil {
		_ = c.file.Close()
		return err
	}
	return c.file.Close()
}
