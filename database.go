// Package jetdb is a read/write engine for the Jet (.mdb/.accdb) on-disk
// database file format: page channel and codec, row storage, B-tree
// indexes, and a Table/Cursor layer, fronted by the Database object this
// file implements.
package jetdb

import (
	"encoding/binary"
	"sort"
	"strings"

	"github.com/jahlborn/jackcess-sub007/internal/format"
	"github.com/jahlborn/jackcess-sub007/internal/page"
	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/table"
	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
	"github.com/jahlborn/jackcess-sub007/jetlog"
	"github.com/jahlborn/jackcess-sub007/jetopt"
)

var log = jetlog.For("jetdb")

// Options re-exports jetopt.Options so callers need only import this
// package.
type Options = jetopt.Options

// DefaultOptions re-exports jetopt.DefaultOptions.
func DefaultOptions() Options { return jetopt.DefaultOptions() }

// Version identifies an on-disk Jet format revision, re-exported from
// internal/format so callers of this package never need to import an
// internal path directly.
type Version = format.Version

const (
	VersionJet3 = format.VersionJet3 // legacy.mdb, read-only
	VersionJet4 = format.VersionJet4 //.mdb, Access 2000-2003
	VersionJet5 = format.VersionJet5 //.accdb, Access 2007+
)

// catalogMetaOffset is where Database persists the catalog table's own
// owned-pages lists within page 0. Every format's header fields end by
// 0x6A (PasswordOffset 0x42 + PasswordLength up to 40); 0x200 leaves ample
// clearance before the rest of the page is free for this.
const catalogMetaOffset = 0x200

// tableEntry is Database's bookkeeping for one open user table: the usage
// maps backing its pages (needed to persist catalog state on Close) and
// the RowId of its own catalog row (so Close rewrites it instead of
// appending a duplicate).
type tableEntry struct {
	name    string
	tbl     *table.Table
	dataMap *page.UsageMap
	longMap *page.UsageMap

	hasCatalogRow bool
	catalogRow    row.Id

	// Linked tables: the catalog stores the
	// absolute path of the external database plus the remote table name;
	// tbl stays nil until first resolved through Options.LinkResolver.
	linkedPath   string
	linkedRemote string
}

func (e *tableEntry) isLink() bool { return e.linkedPath != "" }

// Database is one open Jet file: its page channel, its system catalog, and
// the registry of tables opened from (or created into) that catalog.
type Database struct {
	ch   *page.Channel
	opts Options

	catalogDef     *schema.TableDef
	catalogTable   *table.Table
	catalogDataMap *page.UsageMap
	catalogLongMap *page.UsageMap

	tables map[string]*tableEntry

	// linkedDBs caches one child Database per linked file path, opened on
	// first access to any table linked through it.
	linkedDBs map[string]*Database
}

// Charset returns the charset in force for this handle: the Options
// override when one was given, else the format's header default.
func (db *Database) Charset() string {
	if db.opts.Charset != "" {
		return db.opts.Charset
	}
	return db.ch.Format().Charset
}

func normalizeName(name string) string { return strings.ToLower(name) }

// Create creates a brand-new, empty database file at path in the given
// format version, with a fresh system catalog.
func Create(path string, version Version, opts Options) (*Database, error) {
	d, ok := format.For(version)
	if !ok {
		return nil, jeterr.New(jeterr.UnsupportedFormat, "unknown format version %v", version)
	}
	ch, err := page.Create(path, d)
	if err != nil {
		return nil, err
	}
	db, err := newDatabase(ch, opts)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := db.createCatalog(); err != nil {
		ch.Close()
		return nil, err
	}
	log.WithField("path", path).WithField("format", version.String()).Info("created database")
	return db, nil
}

// Open opens an existing database file at path, reading its system catalog
// and reconstructing every table it names.
func Open(path string, opts Options) (*Database, error) {
	ch, err := page.Open(path, opts.ReadOnly)
	if err != nil {
		return nil, err
	}
	db, err := newDatabase(ch, opts)
	if err != nil {
		ch.Close()
		return nil, err
	}
	if err := db.loadCatalog(); err != nil {
		ch.Close()
		return nil, err
	}
	log.WithField("path", path).WithField("tables", len(db.tables)).Info("opened database")
	return db, nil
}

func newDatabase(ch *page.Channel, opts Options) (*Database, error) {
	ch.SetAutoSync(opts.AutoSync)
	if opts.CodecProvider != nil {
		codec, err := opts.CodecProvider.CodecFor(nil)
		if err != nil {
			return nil, err
		}
		ch.SetCodec(codec)
	}
	return &Database{ch: ch, opts: opts, tables: map[string]*tableEntry{}, linkedDBs: map[string]*Database{}}, nil
}

func (db *Database) createCatalog() error {
	db.catalogDef = catalogTableDef()
	db.catalogDataMap = page.NewInlineUsageMap(0)
	db.catalogLongMap = page.NewInlineUsageMap(0)
	dataStore := table.NewPageStore(db.ch, db.catalogDataMap)
	longStore := table.NewPageStore(db.ch, db.catalogLongMap)
	tbl, err := table.Create(db.catalogDef, dataStore, longStore)
	if err != nil {
		return err
	}
	db.catalogTable = tbl
	return db.writeHeader()
}

func usageMapFromPages(pages []uint32) *page.UsageMap {
	var start uint32
	if len(pages) > 0 {
		start = pages[0]
	}
	m := page.NewInlineUsageMap(start)
	for _, p := range pages {
		m.Add(p)
	}
	return m
}

func (db *Database) loadCatalog() error {
	buf, err := db.ch.ReadPage(0)
	if err != nil {
		return err
	}
	length := binary.LittleEndian.Uint32(buf[catalogMetaOffset:])
	if length == 0 || catalogMetaOffset+4+int(length) > len(buf) {
		return jeterr.New(jeterr.CorruptedFormat, "missing or corrupt catalog metadata")
	}
	meta, err := decodeCatalogMeta(buf[catalogMetaOffset+4 : catalogMetaOffset+4+int(length)])
	if err != nil {
		return jeterr.Wrap(err, jeterr.CorruptedFormat, "decode catalog metadata")
	}

	db.catalogDef = catalogTableDef()
	db.catalogDataMap = usageMapFromPages(meta.DataPages)
	db.catalogLongMap = usageMapFromPages(meta.LongValuePages)
	dataStore := table.NewPageStore(db.ch, db.catalogDataMap)
	longStore := table.NewPageStore(db.ch, db.catalogLongMap)

	tbl, err := table.Open(db.catalogDef, dataStore, longStore)
	if err != nil {
		return err
	}
	db.catalogTable = tbl

	cur := tbl.NewTableScanCursor(table.Forward)
	for {
		id, vals, ok, err := cur.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rec, err := decodeCatalogRecord(vals[1].Bytes())
		if err != nil {
			return jeterr.Wrap(err, jeterr.CorruptedFormat, "decode catalog row for table")
		}
		var entry *tableEntry
		if rec.LinkedPath != "" {
			entry = &tableEntry{linkedPath: rec.LinkedPath, linkedRemote: rec.LinkedRemote}
		} else {
			entry, err = db.openTableEntry(rec)
			if err != nil {
				return err
			}
		}
		entry.name = rec.Def.Name
		entry.hasCatalogRow = true
		entry.catalogRow = id
		db.tables[normalizeName(rec.Def.Name)] = entry
	}
	db.propagateRelationships()
	return nil
}

// propagateRelationships mirrors every child-declared relationship onto
// the referenced table's definition, so a parent can find the children
// pointing at it during delete/update enforcement.
func (db *Database) propagateRelationships() {
	for _, e := range db.tables {
		if e.tbl == nil {
			continue
		}
		for _, rel := range e.tbl.Def.Relationships {
			parent, ok := db.tables[normalizeName(rel.ToTable)]
			if !ok || parent.tbl == nil || parent == e {
				continue
			}
			already := false
			for _, prel := range parent.tbl.Def.Relationships {
				if prel.Name == rel.Name {
					already = true
					break
				}
			}
			if !already {
				parent.tbl.Def.Relationships = append(parent.tbl.Def.Relationships, rel)
			}
		}
	}
}

func (db *Database) openTableEntry(rec catalogRecord) (*tableEntry, error) {
	dataMap := usageMapFromPages(rec.DataPages)
	longMap := usageMapFromPages(rec.LongValuePages)
	dataStore := table.NewPageStore(db.ch, dataMap)
	longStore := table.NewPageStore(db.ch, longMap)
	tbl, err := table.Open(rec.Def, dataStore, longStore)
	if err != nil {
		return nil, err
	}
	tbl.RestoreAutoNumberState(rec.AutoLong, rec.ComplexSeq)
	db.configureTable(tbl)
	return &tableEntry{name: rec.Def.Name, tbl: tbl, dataMap: dataMap, longMap: longMap}, nil
}

func (db *Database) configureTable(tbl *table.Table) {
	tbl.SetEnforceForeignKeys(db.opts.EnforceForeignKeys)
	tbl.SetAllowAutoNumberInsert(db.opts.AllowAutoNumberInsert)
	tbl.SetTableResolver(db.resolveTable)
	if db.opts.ColumnMatcher != nil {
		tbl.SetColumnMatcher(db.opts.ColumnMatcher)
	}
	if db.opts.ErrorHandler != nil {
		tbl.SetRowErrorHandler(db.opts.ErrorHandler)
	}
}

func (db *Database) resolveTable(name string) (*table.Table, error) { return db.Table(name) }

// writeHeader persists the catalog table's root page number (at the
// format's well-known CatalogRootPageOffset) and its owned-pages lists
// into page 0.
func (db *Database) writeHeader() error {
	buf, err := db.ch.ReadPage(0)
	if err != nil {
		return err
	}
	var root uint32
	if pn, ok := db.catalogDataMap.FirstPageNumber(); ok {
		root = pn
	}
	binary.LittleEndian.PutUint32(buf[db.ch.Format().CatalogRootPageOffset:], root)

	meta := catalogMeta{DataPages: db.catalogDataMap.Pages(), LongValuePages: db.catalogLongMap.Pages()}
	encoded, err := encodeCatalogMeta(meta)
	if err != nil {
		return err
	}
	if catalogMetaOffset+4+len(encoded) > len(buf) {
		return jeterr.New(jeterr.CorruptedFormat, "catalog metadata too large for header page")
	}
	binary.LittleEndian.PutUint32(buf[catalogMetaOffset:], uint32(len(encoded)))
	copy(buf[catalogMetaOffset+4:], encoded)

	return db.ch.WritePage(buf, 0, 0)
}

// TableNames returns every user table's name, sorted.
func (db *Database) TableNames() []string {
	names := make([]string, 0, len(db.tables))
	for _, e := range db.tables {
		names = append(names, e.name)
	}
	sort.Strings(names)
	return names
}

// Table looks up an already-open user table by name, case-insensitively
// A linked table is resolved on first
// access through Options.LinkResolver and served from the linked file.
func (db *Database) Table(name string) (*table.Table, error) {
	e, ok := db.tables[normalizeName(name)]
	if !ok {
		return nil, jeterr.New(jeterr.NotFound, "no such table %q", name)
	}
	if e.isLink() && e.tbl == nil {
		tbl, err := db.resolveLinkedTable(e)
		if err != nil {
			return nil, err
		}
		e.tbl = tbl
	}
	return e.tbl, nil
}

// resolveLinkedTable opens (or reuses) the linked database behind e and
// returns its remote table.
func (db *Database) resolveLinkedTable(e *tableEntry) (*table.Table, error) {
	path := e.linkedPath
	if db.opts.LinkResolver != nil {
		resolved, err := db.opts.LinkResolver(path)
		if err != nil {
			return nil, jeterr.Wrap(err, jeterr.NotFound, "resolve linked database %q", path)
		}
		path = resolved
	}
	child, ok := db.linkedDBs[path]
	if !ok {
		opts := db.opts
		opts.LinkResolver = nil // links never chain (the original product forbids it)
		var err error
		child, err = Open(path, opts)
		if err != nil {
			return nil, jeterr.Wrap(err, jeterr.NotFound, "open linked database %q", path)
		}
		db.linkedDBs[path] = child
	}
	return child.Table(e.linkedRemote)
}

// CreateLinkedTable records a link to remoteName inside the database file
// at linkedPath, under the local name. The linked file is not touched
// until the table is first accessed.
func (db *Database) CreateLinkedTable(name, linkedPath, remoteName string) error {
	key := normalizeName(name)
	if _, exists := db.tables[key]; exists {
		return jeterr.New(jeterr.InvalidArgument, "table %q already exists", name)
	}
	entry := &tableEntry{name: name, linkedPath: linkedPath, linkedRemote: remoteName}
	if err := db.appendCatalogRow(entry); err != nil {
		return err
	}
	if err := db.writeHeader(); err != nil {
		return err
	}
	db.tables[key] = entry
	log.WithField("table", name).WithField("path", linkedPath).Info("created linked table")
	return nil
}

// CreateTable formats a brand-new table, writes its catalog row, and
// registers it for lookup via Table/TableNames.
func (db *Database) CreateTable(def *schema.TableDef) (*table.Table, error) {
	key := normalizeName(def.Name)
	if _, exists := db.tables[key]; exists {
		return nil, jeterr.New(jeterr.InvalidArgument, "table %q already exists", def.Name)
	}
	d := db.ch.Format()
	for _, c := range def.Columns {
		if !d.Supports(c.Type.String()) {
			return nil, jeterr.New(jeterr.UnsupportedFormat, "column %s: %v is not supported by %v files", c.Name, c.Type, d.Version)
		}
		if c.Flags.AutoNumber == schema.AutoNumberGUID && !d.Supports("GUID_AUTO") {
			return nil, jeterr.New(jeterr.UnsupportedFormat, "column %s: GUID auto-number is not supported by %v files", c.Name, d.Version)
		}
	}
	dataMap := page.NewInlineUsageMap(0)
	longMap := page.NewInlineUsageMap(0)
	dataStore := table.NewPageStore(db.ch, dataMap)
	longStore := table.NewPageStore(db.ch, longMap)
	tbl, err := table.Create(def, dataStore, longStore)
	if err != nil {
		return nil, err
	}
	db.configureTable(tbl)
	entry := &tableEntry{name: def.Name, tbl: tbl, dataMap: dataMap, longMap: longMap}

	if err := db.appendCatalogRow(entry); err != nil {
		return nil, err
	}
	if err := db.writeHeader(); err != nil {
		return nil, err
	}
	db.tables[key] = entry
	db.propagateRelationships()
	log.WithField("table", def.Name).Info("created table")
	return tbl, nil
}

func recordFor(e *tableEntry) catalogRecord {
	if e.isLink() {
		return catalogRecord{
			Def:          &schema.TableDef{Name: e.name},
			LinkedPath:   e.linkedPath,
			LinkedRemote: e.linkedRemote,
		}
	}
	return catalogRecord{
		Def:            e.tbl.Def,
		DataPages:      e.dataMap.Pages(),
		LongValuePages: e.longMap.Pages(),
		AutoLong:       e.tbl.AutoLongState(),
		ComplexSeq:     e.tbl.ComplexSeq(),
	}
}

func catalogRowValues(e *tableEntry) ([]values.Value, error) {
	encoded, err := encodeCatalogRecord(recordFor(e))
	if err != nil {
		return nil, err
	}
	return []values.Value{
		values.NewText(values.TypeText, e.name),
		values.NewBytes(values.TypeOLE, encoded),
	}, nil
}

func (db *Database) appendCatalogRow(e *tableEntry) error {
	vals, err := catalogRowValues(e)
	if err != nil {
		return err
	}
	id, err := db.catalogTable.AddRow(vals)
	if err != nil {
		return err
	}
	e.hasCatalogRow = true
	e.catalogRow = id
	return nil
}

func (db *Database) updateCatalogRow(e *tableEntry) error {
	vals, err := catalogRowValues(e)
	if err != nil {
		return err
	}
	if !e.hasCatalogRow {
		return db.appendCatalogRow(e)
	}
	return db.catalogTable.UpdateRow(e.catalogRow, vals)
}

// SetEnforceForeignKeys toggles referential-integrity enforcement for this
// handle and every table it has already opened.
func (db *Database) SetEnforceForeignKeys(v bool) {
	db.opts.EnforceForeignKeys = v
	for _, e := range db.tables {
		if e.tbl != nil {
			e.tbl.SetEnforceForeignKeys(v)
		}
	}
}

// SetAllowAutoNumberInsert toggles whether AddRow accepts an explicit value
// for a Long auto-number column, for this handle and every table it has
// already opened.
func (db *Database) SetAllowAutoNumberInsert(v bool) {
	db.opts.AllowAutoNumberInsert = v
	for _, e := range db.tables {
		if e.tbl != nil {
			e.tbl.SetAllowAutoNumberInsert(v)
		}
	}
}

// Close flushes every open table's current catalog state (owned pages and
// auto-number counters) and the header, then releases the file handle.
func (db *Database) Close() error {
	if db.ch == nil {
		return nil
	}
	var linkErr error
	for _, child := range db.linkedDBs {
		if err := child.Close(); err != nil && linkErr == nil {
			linkErr = err
		}
	}
	db.linkedDBs = map[string]*Database{}

	if db.opts.ReadOnly {
		err := db.ch.Close()
		db.ch = nil
		if err != nil {
			return err
		}
		return linkErr
	}

	db.ch.StartWrite()
	var ferr error
	for _, e := range db.tables {
		if err := db.updateCatalogRow(e); err != nil && ferr == nil {
			ferr = err
		}
	}
	if ferr == nil {
		ferr = db.writeHeader()
	}
	if err := db.ch.FinishWrite(); err != nil && ferr == nil {
		ferr = err
	}
	if err := db.ch.Close(); err != nil && ferr == nil {
		ferr = err
	}
	db.ch = nil
	if ferr == nil {
		ferr = linkErr
	}
	return ferr
}
