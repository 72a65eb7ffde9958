package jetdb

import (
	"time"

	"github.com/kjhughes/jetdb/internal/textcodec"
)

// Options configures how a database is opened. Use the With* functions to
// build one; fields no option sets keep the defaults from defaultOptions
// (read-write, General sort order, auto-sync on, local timezone). The zero
// Options value is not those defaults: it has auto-sync off, the
// General-Legacy sort order and a nil Location.
type Options struct {
	ReadOnly      bool
	AutoSync      bool
	SortOrder     textcodec.SortOrder
	Location      *time.Location
	CodecProvider CodecProvider
	UseBigIndex   bool
}

// CodecProvider describes a page-level cipher for encrypted databases.
// A provider is only stored in Options: the page channel does not consult
// it, so pages are always read and written as-is.
type CodecProvider interface {
	Decode(pageNumber int32, data []byte) error
	Encode(pageNumber int32, data []byte) error
}

// Option mutates an Options value using the functional-options pattern.
type Option func(*Options)

// WithReadOnly opens the database without permitting any mutating
// operation (spec.md scenario E).
func WithReadOnly() Option { return func(o *Options) { o.ReadOnly = true } }

// WithAutoSync forces every page write to be flushed to the underlying
// file immediately instead of batching with the OS's own write-back.
func WithAutoSync() Option { return func(o *Options) { o.AutoSync = true } }

// WithSortOrder selects which text-collation table indexes are encoded
// against (spec.md 4.8). Defaults to General (Access 2010+).
func WithSortOrder(order textcodec.SortOrder) Option {
	return func(o *Options) { o.SortOrder = order }
}

// WithLocation records a timezone in Options. Jet stores Short Date/Time
// values as a format-local double with no embedded zone; the row codec
// reads and writes that double as a plain float64 and does not consult
// Location.
func WithLocation(loc *time.Location) Option { return func(o *Options) { o.Location = loc } }

// WithCodecProvider stores a page-level cipher in Options (see
// CodecProvider: the page channel does not use it).
func WithCodecProvider(p CodecProvider) Option {
	return func(o *Options) { o.CodecProvider = p }
}

// WithBigIndex makes Catalog.CreateIndex back new indexes with the paged
// B-tree variant (index.PagedData) instead of the in-memory
// index.SimpleData.
func WithBigIndex() Option { return func(o *Options) { o.UseBigIndex = true } }

func defaultOptions() Options {
	return Options{
		AutoSync:  true,
		SortOrder: textcodec.SortGeneral,
		Location:  time.Local,
	}
}

func resolveOptions(opts []Option) Options {
	o := defaultOptions()
	for _, apply := range opts {
		apply(&o)
	}
	return o
}
