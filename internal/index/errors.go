package index

import "errors"

// ErrPageFull is returned by the page encoders when an entry set does not
// fit in one page; PagedData uses it to trigger a split.
var ErrPageFull = errors.New("index: page full")

// ErrNotFound is returned by Remove when no matching (key, row) entry
// exists.
var ErrNotFound = errors.New("index: entry not found")
