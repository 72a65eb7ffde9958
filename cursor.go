package jetdb

import (
	"bytes"
	"sort"
	"strings"

	"github.com/kjhughes/jetdb/internal/index"
	"github.com/kjhughes/jetdb/internal/row"
)

// Matcher compares one column's stored value against a requested pattern
// value, the pluggable half of a cursor's "column-matcher strategy"
// (spec.md 4.9).
type Matcher func(stored, pattern interface{}) bool

// DefaultMatcher compares values with plain equality on the decoded
// Object, the cursor's default strategy (spec.md 4.9).
func DefaultMatcher(stored, pattern interface{}) bool { return stored == pattern }

// CaseInsensitiveMatcher behaves like DefaultMatcher except that two
// strings compare equal under a case-fold (spec.md 4.9's "case-insensitive
// variant... routes text-column comparisons through a case-fold").
func CaseInsensitiveMatcher(stored, pattern interface{}) bool {
	ss, sok := stored.(string)
	ps, pok := pattern.(string)
	if sok && pok {
		return strings.EqualFold(ss, ps)
	}
	return stored == pattern
}

// CursorSavepoint captures a Cursor's logical position so it can be
// restored after the underlying table or index has possibly changed
// shape (spec.md 4.9 "savepoint"/"restore_savepoint").
type CursorSavepoint struct {
	entrySp index.Savepoint // only meaningful for an index-driven cursor
	rowID   RowID
	before  bool
	after   bool
}

// Cursor walks a table's rows either by full table scan (in page/slot
// order) or driven by one of the table's indexes (in key order).
// Identical iteration contract either way: Next/Previous/FindFirst
// reposition and decode, DeleteCurrentRow/UpdateCurrentRow/
// SetCurrentValue mutate the row the cursor currently sits on, and
// Savepoint/Restore survive intervening modifications (spec.md 4.9).
//
// Supports both a plain table scan and an index-driven variant over
// index.EntryCursor.
type Cursor struct {
	table *Table
	idx   *Index
	ec    *index.EntryCursor // set iff idx != nil

	rowSnapshot   []RowID // set iff idx == nil
	tableModCount uint32
	pos           int // index into rowSnapshot; -1 before first, len after last

	errHandler ErrorHandler
	matcher    Matcher
	state      RowState
	lastErr    error
}

// SetMatcher installs the column-matcher strategy FindFirstRow uses to
// compare stored values against a requested pattern (spec.md 4.9).
// Defaults to DefaultMatcher.
func (c *Cursor) SetMatcher(m Matcher) { c.matcher = m }

func (c *Cursor) matcherOrDefault() Matcher {
	if c.matcher != nil {
		return c.matcher
	}
	return DefaultMatcher
}

// NewTableScanCursor creates a cursor that walks every live row of t in
// page/slot order.
func NewTableScanCursor(t *Table, onError ErrorHandler) (*Cursor, error) {
	c := &Cursor{table: t, errHandler: onError, pos: -1}
	if err := c.resyncScan(); err != nil {
		return nil, err
	}
	return c, nil
}

// NewIndexCursor creates a cursor that walks t's rows in idx's key order.
func NewIndexCursor(t *Table, idx *Index, onError ErrorHandler) (*Cursor, error) {
	ec, err := index.NewEntryCursor(idx.Data, modCounterOf(idx.Data))
	if err != nil {
		return nil, newErr("NewIndexCursor", ErrCorruption, err)
	}
	return &Cursor{table: t, idx: idx, ec: ec, errHandler: onError, pos: -1}, nil
}

// modCounterOf narrows an index.IndexData down to the ModCount method
// index.EntryCursor needs; both SimpleData and PagedData implement it.
func modCounterOf(d index.IndexData) index.ModCounter {
	return d.(index.ModCounter)
}

func (c *Cursor) resyncScan() error {
	rows, err := c.table.Rows()
	if err != nil {
		return err
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Page != rows[j].Page {
			return rows[i].Page < rows[j].Page
		}
		return rows[i].Row < rows[j].Row
	})
	c.rowSnapshot = rows
	c.tableModCount = c.table.ModCount()
	return nil
}

func (c *Cursor) ensureFreshScan() error {
	if c.idx != nil || c.tableModCount == c.table.ModCount() {
		return nil
	}
	var anchor *RowID
	if c.pos >= 0 && c.pos < len(c.rowSnapshot) {
		id := c.rowSnapshot[c.pos]
		anchor = &id
	}
	afterLast := c.pos >= len(c.rowSnapshot) && len(c.rowSnapshot) > 0

	if err := c.resyncScan(); err != nil {
		return err
	}
	switch {
	case anchor != nil:
		k := sort.Search(len(c.rowSnapshot), func(i int) bool {
			return !rowIDLess(c.rowSnapshot[i], *anchor)
		})
		if k < len(c.rowSnapshot) && c.rowSnapshot[k] == *anchor {
			c.pos = k // anchor still present: stay on it
		} else {
			c.pos = k - 1
		}
	case afterLast:
		c.pos = len(c.rowSnapshot)
	default:
		c.pos = -1
	}
	return nil
}

func rowIDLess(a, b RowID) bool {
	if a.Page != b.Page {
		return a.Page < b.Page
	}
	return a.Row < b.Row
}

// BeforeFirst repositions the cursor before the first row.
func (c *Cursor) BeforeFirst() error {
	c.state = RowState{}
	if c.idx != nil {
		return c.ec.BeforeFirst()
	}
	if err := c.ensureFreshScan(); err != nil {
		return err
	}
	c.pos = -1
	return nil
}

// AfterLast repositions the cursor after the last row.
func (c *Cursor) AfterLast() error {
	c.state = RowState{}
	if c.idx != nil {
		return c.ec.AfterLast()
	}
	if err := c.ensureFreshScan(); err != nil {
		return err
	}
	c.pos = len(c.rowSnapshot)
	return nil
}

// Next advances to and decodes the next row. A row that fails to decode
// (e.g. a page read error) is reported through the cursor's
// ErrorHandler: returning true skips it and continues, false aborts the
// scan with that error (spec.md 7).
func (c *Cursor) Next() (bool, error) {
	if c.idx != nil {
		for {
			e, ok, err := c.ec.Next()
			if err != nil {
				return false, newErr("Cursor.Next", ErrCorruption, err)
			}
			if !ok {
				c.state = RowState{}
				return false, nil
			}
			if c.loadRow(e.Row) {
				return true, nil
			}
			if c.errHandler == nil || !c.errHandler(e.Row, c.lastErr) {
				return false, c.lastErr
			}
		}
	}

	if err := c.ensureFreshScan(); err != nil {
		return false, err
	}
	for c.pos+1 < len(c.rowSnapshot) {
		c.pos++
		id := c.rowSnapshot[c.pos]
		if c.loadRow(id) {
			return true, nil
		}
		if c.errHandler == nil || !c.errHandler(id, c.lastErr) {
			return false, c.lastErr
		}
	}
	c.pos = len(c.rowSnapshot)
	c.state = RowState{}
	return false, nil
}

// Previous moves back to and decodes the previous row.
func (c *Cursor) Previous() (bool, error) {
	if c.idx != nil {
		for {
			e, ok, err := c.ec.Previous()
			if err != nil {
				return false, newErr("Cursor.Previous", ErrCorruption, err)
			}
			if !ok {
				c.state = RowState{}
				return false, nil
			}
			if c.loadRow(e.Row) {
				return true, nil
			}
			if c.errHandler == nil || !c.errHandler(e.Row, c.lastErr) {
				return false, c.lastErr
			}
		}
	}

	if err := c.ensureFreshScan(); err != nil {
		return false, err
	}
	for c.pos > 0 {
		c.pos--
		id := c.rowSnapshot[c.pos]
		if c.loadRow(id) {
			return true, nil
		}
		if c.errHandler == nil || !c.errHandler(id, c.lastErr) {
			return false, c.lastErr
		}
	}
	c.pos = -1
	c.state = RowState{}
	return false, nil
}

func (c *Cursor) loadRow(id RowID) bool {
	values, err := c.table.Row(id)
	if err != nil {
		c.lastErr = err
		return false
	}
	c.state = RowState{ID: id, Values: values, modCount: c.table.ModCount()}
	return true
}

// FindFirstRow seeks, from the start, the first row whose named columns
// match the given pattern values under the cursor's column-matcher
// strategy (spec.md 4.9 "find_first_row(column_pattern, value_pattern)").
// On an index-driven cursor whose pattern columns are a prefix of the
// index's key columns, the search is index-bounded; otherwise (including
// every table-scan cursor) it falls back to a full scan. Either way the
// match is verified by re-checking every pattern column against the
// decoded row before returning (spec.md 9 Open Questions: "this spec
// requires post-filtering after the index-bounded scan in all cases").
func (c *Cursor) FindFirstRow(columnPattern []string, valuePattern []interface{}) (bool, error) {
	if len(columnPattern) != len(valuePattern) {
		return false, newErr("Cursor.FindFirstRow", ErrPolicy, nil)
	}
	if c.idx != nil && indexColumnsHavePrefix(c.idx.Columns, columnPattern) {
		return c.indexFindFirstRow(columnPattern, valuePattern)
	}
	return c.scanFindFirstRow(columnPattern, valuePattern)
}

// indexColumnsHavePrefix reports whether pattern names exactly the
// leading columns of keyCols, in order (spec.md 4.9: "use the index if
// the pattern columns are a prefix of the index key").
func indexColumnsHavePrefix(keyCols []index.KeyColumn, pattern []string) bool {
	if len(pattern) == 0 || len(pattern) > len(keyCols) {
		return false
	}
	for i, name := range pattern {
		if keyCols[i].Column.Name != name {
			return false
		}
	}
	return true
}

func (c *Cursor) matchesPattern(values row.Values, columnPattern []string, valuePattern []interface{}) bool {
	m := c.matcherOrDefault()
	for i, name := range columnPattern {
		if !m(values[name], valuePattern[i]) {
			return false
		}
	}
	return true
}

// indexFindFirstRow bounds the scan to the contiguous run of entries
// sharing the pattern's index-key prefix, then post-filters every
// candidate through the column matcher (spec.md 4.9, Scenario C).
func (c *Cursor) indexFindFirstRow(columnPattern []string, valuePattern []interface{}) (bool, error) {
	prefixCols := c.idx.Columns[:len(columnPattern)]
	bound, err := index.EncodeKeyPrefix(prefixCols, valuePattern)
	if err != nil {
		return false, newErr("Cursor.FindFirstRow", ErrPolicy, err)
	}

	ok, err := c.ec.FindFirst(bound)
	if err != nil {
		return false, newErr("Cursor.FindFirstRow", ErrCorruption, err)
	}
	if !ok {
		c.state = RowState{}
		return false, nil
	}

	for {
		more, err := c.Next()
		if err != nil {
			return false, err
		}
		if !more {
			return false, nil
		}
		_, values, _ := c.Current()

		candidateVals := make([]interface{}, len(prefixCols))
		for i, kc := range prefixCols {
			candidateVals[i] = values[kc.Column.Name]
		}
		candidateKey, err := index.EncodeKeyPrefix(prefixCols, candidateVals)
		if err != nil {
			return false, newErr("Cursor.FindFirstRow", ErrPolicy, err)
		}
		if !bytes.Equal(candidateKey, bound) {
			c.state = RowState{}
			return false, nil
		}

		if c.matchesPattern(values, columnPattern, valuePattern) {
			return true, nil
		}
	}
}

// scanFindFirstRow walks every live row of the table in page/slot order,
// returning the first one matching the pattern under the column matcher.
func (c *Cursor) scanFindFirstRow(columnPattern []string, valuePattern []interface{}) (bool, error) {
	ids, err := c.table.Rows()
	if err != nil {
		return false, err
	}
	sort.Slice(ids, func(i, j int) bool { return rowIDLess(ids[i], ids[j]) })

	for _, id := range ids {
		values, err := c.table.Row(id)
		if err != nil {
			if c.errHandler == nil || !c.errHandler(id, err) {
				return false, err
			}
			continue
		}
		if !c.matchesPattern(values, columnPattern, valuePattern) {
			continue
		}
		if c.idx == nil {
			c.rowSnapshot = ids
			c.tableModCount = c.table.ModCount()
			for i, rid := range ids {
				if rid == id {
					c.pos = i
					break
				}
			}
		}
		c.state = RowState{ID: id, Values: values, modCount: c.table.ModCount()}
		return true, nil
	}
	c.state = RowState{}
	return false, nil
}

// FindFirst positions an index-driven cursor at the first entry whose
// raw encoded key is >= target (spec.md 4.9 "find_first_row"), the
// lower-level primitive FindFirstRow builds on. Returns ErrUnsupported
// for a table-scan cursor, which has no natural ordering to search
// against.
func (c *Cursor) FindFirst(target []byte) (bool, error) {
	if c.idx == nil {
		return false, newErr("Cursor.FindFirst", ErrUnsupported, nil)
	}
	ok, err := c.ec.FindFirst(target)
	if err != nil {
		return false, newErr("Cursor.FindFirst", ErrCorruption, err)
	}
	if !ok {
		return false, nil
	}
	return c.Next()
}

// Savepoint captures the cursor's current logical position.
func (c *Cursor) Savepoint() CursorSavepoint {
	if c.idx != nil {
		return CursorSavepoint{entrySp: c.ec.Save()}
	}
	switch {
	case c.pos < 0:
		return CursorSavepoint{before: true}
	case c.pos >= len(c.rowSnapshot):
		return CursorSavepoint{after: true}
	default:
		return CursorSavepoint{rowID: c.rowSnapshot[c.pos]}
	}
}

// Restore repositions the cursor to a previously captured Savepoint.
func (c *Cursor) Restore(sp CursorSavepoint) error {
	if c.idx != nil {
		return c.ec.Restore(sp.entrySp)
	}
	if err := c.resyncScan(); err != nil {
		return err
	}
	switch {
	case sp.before:
		c.pos = -1
	case sp.after:
		c.pos = len(c.rowSnapshot)
	default:
		k := sort.Search(len(c.rowSnapshot), func(i int) bool {
			return !rowIDLess(c.rowSnapshot[i], sp.rowID)
		})
		if k < len(c.rowSnapshot) && c.rowSnapshot[k] == sp.rowID {
			c.pos = k // saved row still present: sit on it
		} else {
			c.pos = k - 1
		}
	}
	return nil
}

// DeleteCurrentRow deletes the row the cursor currently sits on.
func (c *Cursor) DeleteCurrentRow() error {
	if c.state.Values == nil {
		return newErr("Cursor.DeleteCurrentRow", ErrPolicy, nil)
	}
	if err := c.table.Delete(c.state.ID); err != nil {
		return err
	}
	c.state = RowState{}
	return nil
}

// UpdateCurrentRow replaces the current row's values (spec.md 4.9
// "update_current_row").
func (c *Cursor) UpdateCurrentRow(values row.Values) error {
	if c.state.Values == nil {
		return newErr("Cursor.UpdateCurrentRow", ErrPolicy, nil)
	}
	id, err := c.table.Update(c.state.ID, values)
	if err != nil {
		return err
	}
	c.state = RowState{ID: id, Values: values, modCount: c.table.ModCount()}
	return nil
}

// SetCurrentValue updates a single column of the current row, leaving
// every other column as-is (spec.md 4.9 "set_current_value").
func (c *Cursor) SetCurrentValue(column string, v interface{}) error {
	if c.state.Values == nil {
		return newErr("Cursor.SetCurrentValue", ErrPolicy, nil)
	}
	updated := make(row.Values, len(c.state.Values))
	for k, val := range c.state.Values {
		updated[k] = val
	}
	updated[column] = v
	return c.UpdateCurrentRow(updated)
}

// Current returns the row the cursor currently sits on, and whether the
// cursor is positioned on an actual row at all.
func (c *Cursor) Current() (RowID, row.Values, bool) {
	if c.state.Values == nil {
		return RowID{}, nil, false
	}
	return c.state.ID, c.state.Values, true
}
