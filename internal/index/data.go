package index

import (
	"bytes"
	"sort"

	"github.com/kjhughes/jetdb/internal/page"
)

// IndexData is the storage strategy behind one index: spec.md 4.7.7
// distinguishes a compact "simple" representation (small indexes, no
// paging) from a full "paged" B-tree once the entry set outgrows a
// single page.
type IndexData interface {
	Insert(key []byte, row RowID) error
	Remove(key []byte, row RowID) error
	Entries() ([]LeafEntry, error)
}

func compareEntry(aKey []byte, aRow RowID, bKey []byte, bRow RowID) int {
	if c := bytes.Compare(aKey, bKey); c != 0 {
		return c
	}
	if aRow.Page != bRow.Page {
		if aRow.Page < bRow.Page {
			return -1
		}
		return 1
	}
	if aRow.Row != bRow.Row {
		if aRow.Row < bRow.Row {
			return -1
		}
		return 1
	}
	return 0
}

// SimpleData is the in-memory, single-page-equivalent variant: every
// entry lives in one sorted slice, never split. Appropriate for indexes
// small enough that paging would be pure overhead.
type SimpleData struct {
	entries  []LeafEntry
	modCount uint32
}

// ModCount returns the number of structural changes (inserts/removes)
// applied so far, for EntryCursor staleness detection.
func (s *SimpleData) ModCount() uint32 { return s.modCount }

// NewSimpleData constructs an empty simple index.
func NewSimpleData() *SimpleData { return &SimpleData{} }

func (s *SimpleData) search(key []byte, row RowID) (int, bool) {
	i := sort.Search(len(s.entries), func(i int) bool {
		return compareEntry(s.entries[i].Key, s.entries[i].Row, key, row) >= 0
	})
	found := i < len(s.entries) && compareEntry(s.entries[i].Key, s.entries[i].Row, key, row) == 0
	return i, found
}

// Insert adds (key, row); duplicates (same key, different row) are kept
// side by side in row-id order (spec.md 4.7: non-unique indexes).
func (s *SimpleData) Insert(key []byte, row RowID) error {
	i, found := s.search(key, row)
	if found {
		return nil // already present
	}
	s.entries = append(s.entries, LeafEntry{})
	copy(s.entries[i+1:], s.entries[i:])
	s.entries[i] = LeafEntry{Key: key, Row: row}
	s.modCount++
	return nil
}

// Remove deletes the (key, row) entry, or ErrNotFound if absent.
func (s *SimpleData) Remove(key []byte, row RowID) error {
	i, found := s.search(key, row)
	if !found {
		return ErrNotFound
	}
	s.entries = append(s.entries[:i], s.entries[i+1:]...)
	s.modCount++
	return nil
}

// Entries returns every entry in ascending key order.
func (s *SimpleData) Entries() ([]LeafEntry, error) {
	return s.entries, nil
}

// PagedData is the full B-tree variant: a root page plus however many
// leaf and interior node pages the entry set requires, split on overflow
// (spec.md 4.7.2-4.7.4), supporting an arbitrary-depth tree via the
// node-split propagation in insert().
type PagedData struct {
	ch       *page.Channel
	root     page.Number
	modCount uint32
}

// ModCount returns the number of structural changes applied so far.
func (d *PagedData) ModCount() uint32 { return d.modCount }

// NewPagedData allocates a fresh, empty index rooted at a single leaf
// page.
func NewPagedData(ch *page.Channel) (*PagedData, error) {
	p, err := ch.Allocate(page.TypeIndexLeaf)
	if err != nil {
		return nil, err
	}
	buf, err := EncodeLeafPage(ch.PageSize(), nil)
	if err != nil {
		return nil, err
	}
	copy(p.Data, buf)
	if err := ch.Write(p, 0); err != nil {
		return nil, err
	}
	return &PagedData{ch: ch, root: p.Number}, nil
}

// OpenPagedData resumes an existing index rooted at root.
func OpenPagedData(ch *page.Channel, root page.Number) *PagedData {
	return &PagedData{ch: ch, root: root}
}

// Root returns the current root page number, for the catalog to persist
// in the index's tdef entry.
func (d *PagedData) Root() page.Number { return d.root }

// Insert descends to the owning leaf, inserts in sorted order, and splits
// leaf and ancestor node pages bottom-up as needed, growing the tree's
// height by allocating a new root when the existing root itself splits.
func (d *PagedData) Insert(key []byte, row RowID) error {
	path, err := d.descendPath(key)
	if err != nil {
		return err
	}
	leafNum := path[len(path)-1]
	nodePath := path[:len(path)-1]

	leafPage, err := d.ch.Read(leafNum)
	if err != nil {
		return err
	}
	entries, err := DecodeLeafPage(leafPage.Data)
	if err != nil {
		return err
	}

	i := sort.Search(len(entries), func(i int) bool {
		return compareEntry(entries[i].Key, entries[i].Row, key, row) >= 0
	})
	if i < len(entries) && compareEntry(entries[i].Key, entries[i].Row, key, row) == 0 {
		return nil // already present
	}
	entries = append(entries, LeafEntry{})
	copy(entries[i+1:], entries[i:])
	entries[i] = LeafEntry{Key: key, Row: row}
	d.modCount++

	buf, err := EncodeLeafPage(d.ch.PageSize(), entries)
	if err == nil {
		copy(leafPage.Data, buf)
		return d.ch.Write(leafPage, 0)
	}
	if err != ErrPageFull {
		return err
	}

	// Split the overflowing leaf and propagate the new separator upward.
	k := len(entries) / 2
	left, right := entries[:k], entries[k:]
	leftBuf, err := EncodeLeafPage(d.ch.PageSize(), left)
	if err != nil {
		return err
	}
	copy(leafPage.Data, leftBuf)
	if err := d.ch.Write(leafPage, 0); err != nil {
		return err
	}

	rightPage, err := d.ch.Allocate(page.TypeIndexLeaf)
	if err != nil {
		return err
	}
	rightBuf, err := EncodeLeafPage(d.ch.PageSize(), right)
	if err != nil {
		return err
	}
	copy(rightPage.Data, rightBuf)
	if err := d.ch.Write(rightPage, 0); err != nil {
		return err
	}

	sepKey := left[len(left)-1].Key
	return d.propagateSplit(nodePath, leafNum, sepKey, rightPage.Number)
}

// descendPath walks from the root to the owning leaf, returning every
// page number visited (node pages followed by the leaf).
func (d *PagedData) descendPath(key []byte) ([]page.Number, error) {
	var path []page.Number
	cur := d.root
	for {
		path = append(path, cur)
		p, err := d.ch.Read(cur)
		if err != nil {
			return nil, err
		}
		if page.Type(p.Data[0]) == page.TypeIndexLeaf {
			return path, nil
		}
		entries, rightmost, err := DecodeNodePage(p.Data)
		if err != nil {
			return nil, err
		}
		i := sort.Search(len(entries), func(i int) bool {
			return bytes.Compare(key, entries[i].Key) <= 0
		})
		if i < len(entries) {
			cur = entries[i].Child
		} else {
			cur = rightmost
		}
	}
}

// propagateSplit inserts (sepKey -> oldChild) into the lowest node on
// nodePath, splitting that node in turn if it overflows, up to and
// including allocating a new root.
func (d *PagedData) propagateSplit(nodePath []page.Number, oldChild page.Number, sepKey []byte, newChild page.Number) error {
	if len(nodePath) == 0 {
		// Old child was the root: grow the tree by one level.
		newRoot, err := d.ch.Allocate(page.TypeIndexNode)
		if err != nil {
			return err
		}
		buf, err := EncodeNodePage(d.ch.PageSize(), []NodeEntry{{Key: sepKey, Child: oldChild}}, newChild)
		if err != nil {
			return err
		}
		copy(newRoot.Data, buf)
		if err := d.ch.Write(newRoot, 0); err != nil {
			return err
		}
		d.root = newRoot.Number
		return nil
	}

	parentNum := nodePath[len(nodePath)-1]
	parentPage, err := d.ch.Read(parentNum)
	if err != nil {
		return err
	}
	entries, rightmost, err := DecodeNodePage(parentPage.Data)
	if err != nil {
		return err
	}

	entries, rightmost = insertChildSeparator(entries, rightmost, oldChild, sepKey, newChild)

	buf, err := EncodeNodePage(d.ch.PageSize(), entries, rightmost)
	if err == nil {
		copy(parentPage.Data, buf)
		return d.ch.Write(parentPage, 0)
	}
	if err != ErrPageFull {
		return err
	}

	k := len(entries) / 2
	leftEntries := entries[:k]
	leftRightmost := entries[k].Child
	promotedKey := entries[k].Key
	rightEntries := entries[k+1:]
	rightRightmost := rightmost

	leftBuf, err := EncodeNodePage(d.ch.PageSize(), leftEntries, leftRightmost)
	if err != nil {
		return err
	}
	copy(parentPage.Data, leftBuf)
	if err := d.ch.Write(parentPage, 0); err != nil {
		return err
	}

	rightPage, err := d.ch.Allocate(page.TypeIndexNode)
	if err != nil {
		return err
	}
	rightBuf, err := EncodeNodePage(d.ch.PageSize(), rightEntries, rightRightmost)
	if err != nil {
		return err
	}
	copy(rightPage.Data, rightBuf)
	if err := d.ch.Write(rightPage, 0); err != nil {
		return err
	}

	return d.propagateSplit(nodePath[:len(nodePath)-1], parentNum, promotedKey, rightPage.Number)
}

// insertChildSeparator records that oldChild's subtree has been split:
// oldChild now covers everything up to sepKey, and newChild takes over
// whatever range oldChild used to cover above that.
func insertChildSeparator(entries []NodeEntry, rightmost page.Number, oldChild page.Number, sepKey []byte, newChild page.Number) ([]NodeEntry, page.Number) {
	for i, e := range entries {
		if e.Child == oldChild {
			out := make([]NodeEntry, 0, len(entries)+1)
			out = append(out, entries[:i]...)
			out = append(out, NodeEntry{Key: sepKey, Child: oldChild})
			out = append(out, NodeEntry{Key: e.Key, Child: newChild})
			out = append(out, entries[i+1:]...)
			return out, rightmost
		}
	}
	// oldChild was the rightmost (catch-all) subtree.
	out := append(append([]NodeEntry{}, entries...), NodeEntry{Key: sepKey, Child: oldChild})
	return out, newChild
}

// Remove deletes (key, row) from its owning leaf page. Underfull leaves
// left behind by a delete are not merged back together; Jet itself
// tolerates sparse leaves between compactions, and this module does not
// implement an offline compaction pass.
func (d *PagedData) Remove(key []byte, row RowID) error {
	path, err := d.descendPath(key)
	if err != nil {
		return err
	}
	leafNum := path[len(path)-1]
	leafPage, err := d.ch.Read(leafNum)
	if err != nil {
		return err
	}
	entries, err := DecodeLeafPage(leafPage.Data)
	if err != nil {
		return err
	}

	i := sort.Search(len(entries), func(i int) bool {
		return compareEntry(entries[i].Key, entries[i].Row, key, row) >= 0
	})
	if i >= len(entries) || compareEntry(entries[i].Key, entries[i].Row, key, row) != 0 {
		return ErrNotFound
	}
	entries = append(entries[:i], entries[i+1:]...)
	d.modCount++

	buf, err := EncodeLeafPage(d.ch.PageSize(), entries)
	if err != nil {
		return err
	}
	copy(leafPage.Data, buf)
	return d.ch.Write(leafPage, 0)
}

// Entries walks every leaf page left to right and returns the full
// ascending entry list. Used by EntryCursor, which snapshots the full list
// on every resync, and by tests.
func (d *PagedData) Entries() ([]LeafEntry, error) {
	var out []LeafEntry
	leaf, err := d.firstLeaf(d.root)
	if err != nil {
		return nil, err
	}
	for leaf != page.Invalid {
		p, err := d.ch.Read(leaf)
		if err != nil {
			return nil, err
		}
		entries, err := DecodeLeafPage(p.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, entries...)
		leaf, err = d.nextLeaf(leaf)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (d *PagedData) firstLeaf(start page.Number) (page.Number, error) {
	cur := start
	for {
		p, err := d.ch.Read(cur)
		if err != nil {
			return page.Invalid, err
		}
		if page.Type(p.Data[0]) == page.TypeIndexLeaf {
			return cur, nil
		}
		entries, rightmost, err := DecodeNodePage(p.Data)
		if err != nil {
			return page.Invalid, err
		}
		if len(entries) > 0 {
			cur = entries[0].Child
		} else {
			cur = rightmost
		}
	}
}

// nextLeaf is a simple (non-sibling-linked) leaf successor lookup: it
// re-descends from the root using the leaf's own last key. PagedData
// trades an extra root-to-leaf walk per leaf boundary for not having to
// maintain sibling pointers through every split.
func (d *PagedData) nextLeaf(leaf page.Number) (page.Number, error) {
	p, err := d.ch.Read(leaf)
	if err != nil {
		return page.Invalid, err
	}
	entries, err := DecodeLeafPage(p.Data)
	if err != nil {
		return page.Invalid, err
	}
	if len(entries) == 0 {
		return page.Invalid, nil
	}
	lastKey := entries[len(entries)-1].Key
	succKey := append(append([]byte{}, lastKey...), 0x00)

	path, err := d.descendPath(succKey)
	if err != nil {
		return page.Invalid, err
	}
	candidate := path[len(path)-1]
	if candidate == leaf {
		return page.Invalid, nil
	}
	return candidate, nil
}
