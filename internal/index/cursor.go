package index

import "sort"

// ModCounter is implemented by an index's modification counter source
// (SimpleData/PagedData), letting EntryCursor detect structural changes
// made since it last positioned itself (spec.md 4.7.8 cursor staleness,
// mirroring the table cursor's row-state invalidation in spec.md 4.9).
type ModCounter interface {
	ModCount() uint32
}

// Savepoint captures an EntryCursor's logical position well enough to
// restore it after the underlying index has possibly changed shape
// (spec.md 4.9 "restore_savepoint"): identity by (key, row), not by
// page/slot, since a split or a neighbor's delete can move both.
type Savepoint struct {
	key    []byte
	row    RowID
	valid  bool // false for before-first/after-last savepoints
	atLast bool
}

// EntryCursor walks an index's entries in ascending key order,
// independent of whether the index is a SimpleData or PagedData. It
// holds a point-in-time snapshot and re-synchronizes against the index's
// modification counter the next time it is moved after a change.
type EntryCursor struct {
	data    IndexData
	counter ModCounter

	modCount uint32
	entries  []LeafEntry
	idx      int // -1 = before first, len(entries) = after last
}

// NewEntryCursor creates a cursor positioned before the first entry.
func NewEntryCursor(data IndexData, counter ModCounter) (*EntryCursor, error) {
	c := &EntryCursor{data: data, counter: counter, idx: -1}
	if err := c.resync(); err != nil {
		return nil, err
	}
	return c, nil
}

// Stale reports whether the index has been modified since the cursor
// last resynchronized its snapshot.
func (c *EntryCursor) Stale() bool { return c.counter.ModCount() != c.modCount }

func (c *EntryCursor) resync() error {
	entries, err := c.data.Entries()
	if err != nil {
		return err
	}
	c.entries = entries
	c.modCount = c.counter.ModCount()
	return nil
}

func (c *EntryCursor) ensureFresh() error {
	if !c.Stale() {
		return nil
	}
	// Re-anchor on the entry (key, row) the cursor was last sitting on, so
	// a resync doesn't silently reorder iteration (spec.md 4.9).
	var anchor *LeafEntry
	if c.idx >= 0 && c.idx < len(c.entries) {
		e := c.entries[c.idx]
		anchor = &e
	}
	wasAfterLast := c.idx >= len(c.entries) && len(c.entries) > 0

	if err := c.resync(); err != nil {
		return err
	}

	switch {
	case anchor != nil:
		c.idx = c.locate(anchor.Key, anchor.Row)
	case wasAfterLast:
		c.idx = len(c.entries)
	default:
		c.idx = -1
	}
	return nil
}

// locate finds where (key, row) is, or would be, in the current snapshot.
func (c *EntryCursor) locate(key []byte, row RowID) int {
	return sort.Search(len(c.entries), func(i int) bool {
		return compareEntry(c.entries[i].Key, c.entries[i].Row, key, row) >= 0
	})
}

// BeforeFirst repositions the cursor before the first entry.
func (c *EntryCursor) BeforeFirst() error {
	if err := c.ensureFresh(); err != nil {
		return err
	}
	c.idx = -1
	return nil
}

// AfterLast repositions the cursor after the last entry.
func (c *EntryCursor) AfterLast() error {
	if err := c.ensureFresh(); err != nil {
		return err
	}
	c.idx = len(c.entries)
	return nil
}

// Next advances to and returns the next entry, or (zero, false) once
// past the last entry.
func (c *EntryCursor) Next() (LeafEntry, bool, error) {
	if err := c.ensureFresh(); err != nil {
		return LeafEntry{}, false, err
	}
	if c.idx+1 >= len(c.entries) {
		c.idx = len(c.entries)
		return LeafEntry{}, false, nil
	}
	c.idx++
	return c.entries[c.idx], true, nil
}

// Previous moves back to and returns the previous entry.
func (c *EntryCursor) Previous() (LeafEntry, bool, error) {
	if err := c.ensureFresh(); err != nil {
		return LeafEntry{}, false, err
	}
	if c.idx <= 0 {
		c.idx = -1
		return LeafEntry{}, false, nil
	}
	c.idx--
	return c.entries[c.idx], true, nil
}

// FindFirst positions the cursor just before the first entry whose key is
// >= target, so a following Next() lands on it (spec.md 4.9
// "find_first_row"). Returns false if no such entry exists.
func (c *EntryCursor) FindFirst(target []byte) (bool, error) {
	if err := c.ensureFresh(); err != nil {
		return false, err
	}
	i := sort.Search(len(c.entries), func(i int) bool {
		return compareBytes(c.entries[i].Key, target) >= 0
	})
	c.idx = i - 1
	return i < len(c.entries), nil
}

// Save captures the cursor's current logical position.
func (c *EntryCursor) Save() Savepoint {
	if c.idx < 0 {
		return Savepoint{valid: false, atLast: false}
	}
	if c.idx >= len(c.entries) {
		return Savepoint{valid: false, atLast: true}
	}
	e := c.entries[c.idx]
	return Savepoint{key: e.Key, row: e.Row, valid: true}
}

// Restore repositions the cursor to a previously captured Savepoint,
// re-synchronizing first so the restored position reflects any
// intervening modification (spec.md 4.9 "restore_savepoint").
func (c *EntryCursor) Restore(sp Savepoint) error {
	if err := c.resync(); err != nil {
		return err
	}
	switch {
	case sp.valid:
		c.idx = c.locate(sp.key, sp.row)
	case sp.atLast:
		c.idx = len(c.entries)
	default:
		c.idx = -1
	}
	return nil
}

func compareBytes(a, b []byte) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}
