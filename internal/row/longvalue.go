package row

import (
	"errors"
	"fmt"

	"github.com/kjhughes/jetdb/internal/codec"
	"github.com/kjhughes/jetdb/internal/page"
)

// InlineLongValueCap is the largest memo/OLE payload stored inline with
// the row (spec.md 4.5: "Long values (memo/ole) <= 64 bytes are inlined").
const InlineLongValueCap = 64

// longValueFlag occupies the top byte of the 4-byte length+flags header.
type longValueFlag byte

const (
	lvInline     longValueFlag = 0x80
	lvSinglePage longValueFlag = 0x40
	lvChain      longValueFlag = 0x00
)

// IO resolves and stores long-value payloads on dedicated long-value
// pages (spec.md 3 "Long Value"). A table supplies a concrete
// implementation backed by its page channel; tests use an in-memory fake.
type IO interface {
	// ReadChain reads the full payload starting at (pageNum, row),
	// concatenating chunks until the terminating null pointer, per
	// spec.md 4.5.
	ReadChain(p page.Number, row byte) ([]byte, error)

	// WriteChain stores data across one or more long-value pages and
	// returns the entry pointer to its first chunk.
	WriteChain(data []byte) (p page.Number, row byte, err error)
}

// EncodeLongValue produces the on-disk bytes for a memo/OLE column value:
// either the inline form (header + bytes) or a pointer form (header +
// page/row), delegating storage of non-inline payloads to io.
func EncodeLongValue(io IO, data []byte) ([]byte, error) {
	if len(data) <= InlineLongValueCap {
		out := make([]byte, 4+len(data))
		putLVHeader(out, lvInline, len(data))
		copy(out[4:], data)
		return out, nil
	}

	if io == nil {
		return nil, errors.New("row: long value exceeds inline cap but no long-value IO was supplied")
	}

	p, rowNum, err := io.WriteChain(data)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 8)
	putLVHeader(out, lvChain, len(data))
	if err := codec.PutRowID(out, 4, int32(p), rowNum); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeLongValue reverses EncodeLongValue.
func DecodeLongValue(io IO, b []byte) ([]byte, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("row: long value header truncated")
	}
	flag, length, err := getLVHeader(b)
	if err != nil {
		return nil, err
	}

	switch flag {
	case lvInline:
		if len(b) < 4+length {
			return nil, fmt.Errorf("row: inline long value truncated")
		}
		out := make([]byte, length)
		copy(out, b[4:4+length])
		return out, nil
	case lvSinglePage, lvChain:
		if len(b) < 8 {
			return nil, fmt.Errorf("row: long value pointer truncated")
		}
		if io == nil {
			return nil, errors.New("row: long value requires IO but none was supplied")
		}
		p, rowNum, err := codec.GetRowID(b, 4)
		if err != nil {
			return nil, err
		}
		data, err := io.ReadChain(page.Number(p), rowNum)
		if err != nil {
			return nil, err
		}
		if len(data) > length {
			data = data[:length] // drop the unused tail of the last chunk
		}
		return data, nil
	default:
		return nil, fmt.Errorf("row: unknown long value flag 0x%02x", flag)
	}
}

func putLVHeader(b []byte, flag longValueFlag, length int) {
	// low 3 bytes little-endian length, top byte is the flag
	b[0] = byte(length)
	b[1] = byte(length >> 8)
	b[2] = byte(length >> 16)
	b[3] = byte(flag)
}

func getLVHeader(b []byte) (longValueFlag, int, error) {
	length := int(b[0]) | int(b[1])<<8 | int(b[2])<<16
	return longValueFlag(b[3]), length, nil
}

// ChainIO is a simple in-memory IO implementation used by tests and by
// callers that do not need real page-backed overflow storage.
type ChainIO struct {
	pages map[page.Number][]byte
	next  page.Number
}

// NewChainIO creates an empty in-memory long-value store.
func NewChainIO() *ChainIO {
	return &ChainIO{pages: make(map[page.Number][]byte)}
}

func (c *ChainIO) WriteChain(data []byte) (page.Number, byte, error) {
	p := c.next
	c.next++
	cp := make([]byte, len(data))
	copy(cp, data)
	c.pages[p] = cp
	return p, 0, nil
}

func (c *ChainIO) ReadChain(p page.Number, _ byte) ([]byte, error) {
	data, ok := c.pages[p]
	if !ok {
		return nil, fmt.Errorf("row: no long value at page %d", p)
	}
	return data, nil
}

var _ IO = (*ChainIO)(nil)

// PageIO is the real, page-channel-backed IO implementation: a long
// value is split across one or more TypeLongValue pages, each holding as
// much payload as fits plus a trailing pointer to the next chunk
// (page.Invalid terminates the chain), per spec.md 4.5.
type PageIO struct {
	ch *page.Channel
}

// NewPageIO wraps a page channel for long-value storage.
func NewPageIO(ch *page.Channel) *PageIO { return &PageIO{ch: ch} }

// chunkSize is the payload per page: the page minus its leading type byte
// and its trailing 4-byte next-page pointer.
func (p *PageIO) chunkSize() int { return p.ch.PageSize() - 1 - 4 }

func (p *PageIO) WriteChain(data []byte) (page.Number, byte, error) {
	chunk := p.chunkSize()

	var pages []*page.Page
	for off := 0; off < len(data); off += chunk {
		end := off + chunk
		if end > len(data) {
			end = len(data)
		}
		pg, err := p.ch.Allocate(page.TypeLongValue)
		if err != nil {
			return 0, 0, err
		}
		copy(pg.Data[1:], data[off:end])
		pages = append(pages, pg)
	}
	if len(pages) == 0 {
		pg, err := p.ch.Allocate(page.TypeLongValue)
		if err != nil {
			return 0, 0, err
		}
		pages = append(pages, pg)
	}

	for i, pg := range pages {
		next := page.Invalid
		if i+1 < len(pages) {
			next = pages[i+1].Number
		}
		if err := codec.WriteInt24(pg.Data, len(pg.Data)-4, int32(next), false); err != nil {
			return 0, 0, err
		}
		if err := p.ch.Write(pg, 0); err != nil {
			return 0, 0, err
		}
	}
	return pages[0].Number, 0, nil
}

func (p *PageIO) ReadChain(start page.Number, _ byte) ([]byte, error) {
	var out []byte
	cur := start
	for cur != page.Invalid {
		pg, err := p.ch.Read(cur)
		if err != nil {
			return nil, err
		}
		out = append(out, pg.Data[1:len(pg.Data)-4]...)
		next, err := codec.ReadInt24(pg.Data, len(pg.Data)-4, false)
		if err != nil {
			return nil, err
		}
		cur = page.Number(next)
	}
	return out, nil
}

var _ IO = (*PageIO)(nil)
