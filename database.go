package jetdb

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/kjhughes/jetdb/internal/format"
	"github.com/kjhughes/jetdb/internal/page"
	"github.com/kjhughes/jetdb/internal/row"
)

// osFile adapts *os.File to page.File: os.File has everything but Size,
// which it exposes only through Stat.
type osFile struct {
	f *os.File
}

func (o osFile) ReadAt(b []byte, off int64) (int, error)  { return o.f.ReadAt(b, off) }
func (o osFile) WriteAt(b []byte, off int64) (int, error) { return o.f.WriteAt(b, off) }
func (o osFile) Truncate(size int64) error                { return o.f.Truncate(size) }
func (o osFile) Sync() error                              { return o.f.Sync() }
func (o osFile) Close() error                              { return o.f.Close() }


func (o osFile) Size() (int64, error) {
	fi, err := o.f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Database is one opened Jet file: its page channel, resolved format
// descriptor, and live object catalog, paired with a logger for
// diagnostics.
type Database struct {
	ch      *page.Channel
	format  *format.Descriptor
	Catalog *Catalog

	opts Options
	log  *logrus.Logger
}

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Create initializes a new, empty database file at path for the requested
// format version and opens it.
func Create(path string, version format.Version, opts ...Option) (*Database, error) {
	o := resolveOptions(opts)
	if o.ReadOnly {
		return nil, newErr("Create", ErrPolicy, fmt.Errorf("cannot create a database read-only"))
	}

	desc, err := format.Resolve(byte(version))
	if err != nil {
		return nil, newErr("Create", ErrUnsupported, err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}

	db, err := bootstrap(f, desc, o)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return db, nil
}

// Open opens an existing database file, resolving its format version from
// the header byte at format.VersionOffset. If the file cannot be opened
// for writing, read_only is auto-promoted to true instead of failing
// (spec.md 9: "read_only ... auto-promoted to true if the file is not
// writable").
func Open(path string, opts ...Option) (*Database, error) {
	o := resolveOptions(opts)

	f, err := openWithAutoReadOnly(path, &o)
	if err != nil {
		return nil, newErr("Open", ErrIO, err)
	}

	header := make([]byte, format.VersionOffset+1)
	if _, err := f.ReadAt(header, 0); err != nil {
		_ = f.Close()
		return nil, newErr("Open", ErrCorruption, fmt.Errorf("reading format header: %w", err))
	}
	desc, err := format.Resolve(header[format.VersionOffset])
	if err != nil {
		_ = f.Close()
		return nil, newErr("Open", ErrUnsupported, err)
	}

	ch := page.NewChannel(osFile{f}, desc.PageSize, o.AutoSync, o.ReadOnly)
	ch.SetMaxDatabaseSize(desc.MaxDatabaseSize)

	log := newLogger()
	longValueIO := row.NewPageIO(ch)
	catalog, err := openCatalog(ch, desc, o, longValueIO)
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	log.WithField("version", desc.Version).Infof("opened database %s", path)
	return &Database{ch: ch, format: desc, Catalog: catalog, opts: o, log: log}, nil
}

// openWithAutoReadOnly opens path for read-write unless the caller already
// asked for read-only; if opening for read-write fails, it retries
// read-only and flips o.ReadOnly to match (spec.md 9's auto-promotion
// rule). A read-only request that still fails (e.g. the file is missing)
// reports that failure as-is.
func openWithAutoReadOnly(path string, o *Options) (*os.File, error) {
	if o.ReadOnly {
		return os.OpenFile(path, os.O_RDONLY, 0644)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err == nil {
		return f, nil
	}
	if !os.IsPermission(err) {
		return nil, err
	}
	f, roErr := os.OpenFile(path, os.O_RDONLY, 0644)
	if roErr != nil {
		return nil, err
	}
	o.ReadOnly = true
	return f, nil
}

// bootstrap lays down a fresh database's header page, global free-page
// usage map, and the MSysObjects system table, then wraps it the same way
// Open does (spec.md 4.10's "creating a new database" sequence).
func bootstrap(f *os.File, desc *format.Descriptor, o Options) (*Database, error) {
	ch := page.NewChannel(osFile{f}, desc.PageSize, o.AutoSync, o.ReadOnly)
	ch.SetMaxDatabaseSize(desc.MaxDatabaseSize)

	header, err := ch.Allocate(page.TypeTableDef)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	header.Data[format.VersionOffset] = byte(desc.Version)
	if err := ch.Write(header, 0); err != nil {
		return nil, newErr("Create", ErrIO, err)
	}

	freeMapPage, err := ch.Allocate(page.TypeUsageMap)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	if err := ch.Write(freeMapPage, 0); err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	freeMap := page.NewGlobalUsageMap(freeMapPage.Number+1, 0)
	ch.SetFreeMap(freeMap)

	log := newLogger()
	longValueIO := row.NewPageIO(ch)
	catalog, err := bootstrapCatalog(ch, desc, o, longValueIO)
	if err != nil {
		return nil, err
	}

	log.WithField("version", desc.Version).Info("created new database")
	return &Database{ch: ch, format: desc, Catalog: catalog, opts: o, log: log}, nil
}

// Close flushes and releases the underlying file.
func (db *Database) Close() error {
	if err := db.ch.Close(); err != nil {
		return newErr("Database.Close", ErrIO, err)
	}
	return nil
}

// Format returns the resolved format descriptor this database was opened
// with.
func (db *Database) Format() *format.Descriptor { return db.format }
