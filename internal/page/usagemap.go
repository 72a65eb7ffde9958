package page

import "fmt"

// UsageMap is a bitmap of page numbers, tracking the pages owned by one
// table or, for the database-wide free-page map, every currently free
// page (spec.md 4.4). It has two concrete storage forms behind this one
// type: Inline (all bits packed into the row itself) and Indirect (a list
// of dedicated bitmap pages). Global additionally treats any page beyond
// the current high-water mark as present.
type UsageMap struct {
	indirect bool
	global   bool

	// startPage is the page number represented by bit 0.
	startPage Number

	// bits holds one bit per page number, startPage + i for bit i. For the
	// indirect form this is the concatenation of every bitmap page's
	// payload, in page-list order.
	bits []bool

	// highWater is the largest page number ever added to this map
	// (AddPage); Global uses it to decide whether a page outside bits is
	// implicitly free.
	highWater Number

	modCount uint32
}

// NewInlineUsageMap creates an inline usage map covering pages
// [startPage, startPage+capacity).
func NewInlineUsageMap(startPage Number, capacity int) *UsageMap {
	return &UsageMap{startPage: startPage, bits: make([]bool, capacity)}
}

// NewIndirectUsageMap creates an indirect usage map; capacity grows by
// extending bits and is backed, on disk, by additional bitmap pages
// (the in-memory representation here does not distinguish page boundaries
// -- that bookkeeping lives in the table/index layer that owns the page
// list).
func NewIndirectUsageMap(startPage Number) *UsageMap {
	return &UsageMap{startPage: startPage, indirect: true}
}

// NewGlobalUsageMap creates the database-wide free-page map: same storage
// as inline, but any page beyond the tracked range is implicitly present
// (spec.md 4.4 "global").
func NewGlobalUsageMap(startPage Number, capacity int) *UsageMap {
	return &UsageMap{startPage: startPage, bits: make([]bool, capacity), global: true}
}

// ModCount returns the map's modification counter, used by dependent
// cursors to detect structural change (spec.md 4.4's page-cursor).
func (m *UsageMap) ModCount() uint32 { return m.modCount }

func (m *UsageMap) index(p Number) (int, bool) {
	if p < m.startPage {
		return 0, false
	}
	i := int(p - m.startPage)
	return i, true
}

func (m *UsageMap) ensure(i int) {
	if i < len(m.bits) {
		return
	}
	grown := make([]bool, i+1)
	copy(grown, m.bits)
	m.bits = grown
}

// Contains reports whether p is marked present in the map.
func (m *UsageMap) Contains(p Number) bool {
	i, ok := m.index(p)
	if !ok {
		return false
	}
	if i >= len(m.bits) {
		return m.global && p > m.highWater
	}
	return m.bits[i]
}

// AddPage marks p present, growing the backing storage for the indirect
// and global forms if p falls outside the current range. Inline maps have
// a fixed capacity and report an error if p is out of range -- the caller
// (table/index allocation) is responsible for switching to the indirect
// form before that happens, matching spec.md's Indirect description
// ("On addition of a page number outside the covered range, a new bitmap
// page is allocated and linked").
func (m *UsageMap) AddPage(p Number) error {
	i, ok := m.index(p)
	if !ok {
		return fmt.Errorf("page: usage map cannot represent page %d before start %d", p, m.startPage)
	}
	if i >= len(m.bits) {
		if !m.indirect && !m.global {
			return fmt.Errorf("page: inline usage map exhausted at page %d", p)
		}
		m.ensure(i)
	}
	m.bits[i] = true
	if p > m.highWater {
		m.highWater = p
	}
	m.modCount++
	return nil
}

// RemovePage marks p absent.
func (m *UsageMap) RemovePage(p Number) error {
	i, ok := m.index(p)
	if !ok || i >= len(m.bits) {
		return nil
	}
	m.bits[i] = false
	m.modCount++
	return nil
}

// Pages returns every page number currently marked present, in ascending
// order. For a Global map this only returns pages that were explicitly
// tracked (never the implicit "everything beyond highWater" pages, since
// those are unbounded) -- callers that need to test the implicit region
// use Contains directly.
func (m *UsageMap) Pages() []Number {
	var out []Number
	for i, set := range m.bits {
		if set {
			out = append(out, m.startPage+Number(i))
		}
	}
	return out
}

// Cursor walks a usage map's present pages forward or backward, detecting
// structural change via the map's modification counter.
type Cursor struct {
	m        *UsageMap
	modCount uint32
	idx      int // index into m.bits, -1 before first / len(bits) after last
}

// NewCursor creates a page-cursor positioned before the first entry.
func (m *UsageMap) NewCursor() *Cursor {
	return &Cursor{m: m, modCount: m.modCount, idx: -1}
}

// Stale reports whether the underlying map has been mutated since this
// cursor last moved.
func (c *Cursor) Stale() bool { return c.modCount != c.m.modCount }

func (c *Cursor) resync() { c.modCount = c.m.modCount }

// Next advances to the next present page, returning (page, true) or
// (0, false) at the end.
func (c *Cursor) Next() (Number, bool) {
	defer c.resync()
	for i := c.idx + 1; i < len(c.m.bits); i++ {
		if c.m.bits[i] {
			c.idx = i
			return c.m.startPage + Number(i), true
		}
	}
	c.idx = len(c.m.bits)
	return 0, false
}

// Previous moves back to the previous present page.
func (c *Cursor) Previous() (Number, bool) {
	defer c.resync()
	start := c.idx - 1
	if c.idx > len(c.m.bits) {
		start = len(c.m.bits) - 1
	}
	for i := start; i >= 0; i-- {
		if c.m.bits[i] {
			c.idx = i
			return c.m.startPage + Number(i), true
		}
	}
	c.idx = -1
	return 0, false
}
