package table

import (
	"github.com/jahlborn/jackcess-sub007/internal/index"
	"github.com/jahlborn/jackcess-sub007/internal/page"
	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
	"github.com/jahlborn/jackcess-sub007/jetlog"
)

var log = jetlog.For("table")

// pageTypeTableData tags ordinary row-storage pages, distinct from the
// long-value and index page-type tags defined in internal/row/internal/index.
const pageTypeTableData uint16 = 0x0010

// freeSpaceReuseThreshold is the fewest free bytes a data page may have
// and still stay in the pages-with-free-space map; pages below it are
// effectively full and dropped so inserts stop rescanning them.
const freeSpaceReuseThreshold = 32

// indexHandle pairs a logical schema.Index with the physical B-tree
// backing it and the page store that owns its pages.
type indexHandle struct {
	def   *schema.Index
	tree  *index.BTree
	store *PageStore
}

// Table is one open table: its metadata, the pages it owns, its indexes,
// and its auto-number sequencing state.
type Table struct {
	Def *schema.TableDef

	store      *PageStore
	longValues *row.LongValueStore
	indexes    []*indexHandle

	autoLong   map[int]int64 // column ordinal -> next Long auto-number value
	complexSeq int64

	// freeSpace tracks owned data pages believed to have room for at
	// least one more row. Populated lazily by the first placeRow of a session, then
	// maintained incrementally.
	freeSpace       *page.UsageMap
	freeSpaceLoaded bool

	// dataPages is the subset of the owned-pages map holding row data, as
	// opposed to the index/long-value pages the same store also owns.
	// Reconstructed lazily from each owned page's type tag on first use
	// after open; kept current by placeRow thereafter.
	dataPages       *page.UsageMap
	dataPagesLoaded bool

	// generation moves on every row mutation; cursors compare it against
	// their RowState to detect concurrent modification.
	generation uint64

	allowAutoNumberInsert bool
	enforceForeignKeys    bool
	resolveTable          func(tableName string) (*Table, error)
	columnMatcher         func(colName string, expected, actual interface{}) bool
	rowErrorHandler       func(tableName string, rowErr error) (skip bool, rethrow error)
}

// Generation returns the table's modification counter.
func (t *Table) Generation() uint64 { return t.generation }

func (t *Table) bump() { t.generation++ }

// SetColumnMatcher installs a custom equality predicate for cursor find
// operations.
func (t *Table) SetColumnMatcher(f func(colName string, expected, actual interface{}) bool) {
	t.columnMatcher = f
}

// SetRowErrorHandler installs the per-row decode error hook.
func (t *Table) SetRowErrorHandler(f func(tableName string, rowErr error) (skip bool, rethrow error)) {
	t.rowErrorHandler = f
}

// handleRowError consults the configured row error handler for a decode
// failure surfaced during a scan. Returns skip=true to drop the row and
// continue, or a non-nil error to surface in place of the original.
func (t *Table) handleRowError(err error) (skip bool, rethrow error) {
	if t.rowErrorHandler == nil {
		return false, nil
	}
	return t.rowErrorHandler(t.Def.Name, err)
}

// SetAllowAutoNumberInsert controls whether AddRow accepts an explicit
// value for a Long auto-number column.
func (t *Table) SetAllowAutoNumberInsert(v bool) { t.allowAutoNumberInsert = v }

// SetEnforceForeignKeys controls whether AddRow/UpdateRow/DeleteRow check
// referential integrity against related tables.
func (t *Table) SetEnforceForeignKeys(v bool) { t.enforceForeignKeys = v }

// SetTableResolver installs the callback Table uses to look up another
// table by name when checking a foreign-key reference. The
// Database wires this in when it hands out Table handles, since a Table
// on its own has no notion of its sibling tables.
func (t *Table) SetTableResolver(f func(tableName string) (*Table, error)) {
	t.resolveTable = f
}

// AutoLongState returns the table's current per-column Long auto-number
// counters, for the catalog layer to persist across close/reopen.
func (t *Table) AutoLongState() map[int]int64 {
	out := make(map[int]int64, len(t.autoLong))
	for k, v := range t.autoLong {
		out[k] = v
	}
	return out
}

// ComplexSeq returns the table's shared complex-type auto-number counter.
func (t *Table) ComplexSeq() int64 { return t.complexSeq }

// RestoreAutoNumberState seeds the table's auto-number counters from
// previously persisted catalog state.
func (t *Table) RestoreAutoNumberState(autoLong map[int]int64, complexSeq int64) {
	for k, v := range autoLong {
		t.autoLong[k] = v
	}
	t.complexSeq = complexSeq
}

// Open wraps an existing table whose metadata and owned-pages map have
// already been read from the catalog.
func Open(def *schema.TableDef, store *PageStore, longStore *PageStore) (*Table, error) {
	t := &Table{
		Def:        def,
		store:      store,
		longValues: row.NewLongValueStore(longStore),
		autoLong:   map[int]int64{},
		freeSpace:  page.NewInlineUsageMap(0),
		dataPages:  page.NewInlineUsageMap(0),
	}
	for _, idxDef := range def.Indexes {
		// Each logical index's physical root page is recorded on
		// idxDef.IndexDataID; the index's pages live in the table's own
		// PageStore, so its owned-pages map holds them alongside the data
		// pages.
		tree := index.NewBTree(store, idxDef.IndexDataID, idxDef.Unique || idxDef.Primary, idxDef.IgnoreNulls)
		t.indexes = append(t.indexes, &indexHandle{def: idxDef, tree: tree, store: store})
	}
	return t, nil
}

// Create formats a brand-new table: one empty data page and one empty
// B-tree per declared index.
func Create(def *schema.TableDef, store *PageStore, longStore *PageStore) (*Table, error) {
	t := &Table{
		Def:        def,
		store:      store,
		longValues: row.NewLongValueStore(longStore),
		autoLong:   map[int]int64{},
		freeSpace:  page.NewInlineUsageMap(0),
		dataPages:  page.NewInlineUsageMap(0),
	}
	pn, buf, err := store.AllocatePage(pageTypeTableData)
	if err != nil {
		return nil, err
	}
	dp := row.InitDataPage(buf, pageTypeTableData)
	if err := store.WritePage(pn, dp.Buf); err != nil {
		return nil, err
	}
	t.dataPages.Add(pn)
	t.dataPagesLoaded = true
	t.freeSpace.Add(pn)
	t.freeSpaceLoaded = true
	for _, idxDef := range def.Indexes {
		tree, err := index.CreateEmpty(store, idxDef.Unique || idxDef.Primary, idxDef.IgnoreNulls)
		if err != nil {
			return nil, err
		}
		idxDef.IndexDataID = tree.RootPage()
		t.indexes = append(t.indexes, &indexHandle{def: idxDef, tree: tree, store: store})
	}
	log.WithField("table", def.Name).WithField("indexes", len(def.Indexes)).Debug("created table")
	return t, nil
}

// resolveAutoNumbers fills in any auto-number columns' values before a row
// is packed: Long auto-numbers increment per table unless
// allowAutoNumberInsert is set and the caller supplies an explicit value
// (which advances the counter only when larger than what the table has
// already handed out — a caller-supplied value is otherwise silently
// replaced by the next sequential number); GUID auto-numbers are freshly
// randomized; complex-type auto-numbers share one counter across every
// complex-type column in the table.
func (t *Table) resolveAutoNumbers(vals []values.Value) ([]values.Value, error) {
	out := append([]values.Value(nil), vals...)
	for i, c := range t.Def.Columns {
		switch c.Flags.AutoNumber {
		case schema.AutoNumberLong:
			v := vals[i]
			// Without allowAutoNumberInsert, whatever the caller supplied is
			// ignored (even a non-numeric placeholder) and the next sequential
			// number is assigned, matching the original product.
			if v.IsAutoNumberRequest() || v.IsNull() || !t.allowAutoNumberInsert {
				next := t.autoLong[i] + 1
				t.autoLong[i] = next
				out[i] = values.NewInt(values.TypeInt32, next)
				continue
			}
			explicit := v.Int()
			if explicit <= 0 {
				return nil, jeterr.New(jeterr.ValueOutOfRange, "auto-number column %s: explicit value %d must be positive", c.Name, explicit)
			}
			if explicit > t.autoLong[i] {
				t.autoLong[i] = explicit
			}
			out[i] = values.NewInt(values.TypeInt32, explicit)
		case schema.AutoNumberGUID:
			out[i] = values.NewGUID(values.NewAutoGUID())
		case schema.AutoNumberComplexType:
			t.complexSeq++
			out[i] = values.NewInt(c.Type, t.complexSeq)
		}
	}
	return out, nil
}

// AddRow packs vals and inserts it into the
// first owned page with room, allocating a fresh page if none has space,
// then maintains every index (rolling back the insert if a uniqueness or
// referential-integrity check fails).
func (t *Table) AddRow(vals []values.Value) (row.Id, error) {
	if len(vals) != len(t.Def.Columns) {
		return row.Id{}, jeterr.New(jeterr.InvalidArgument, "AddRow: %d values for %d columns", len(vals), len(t.Def.Columns))
	}
	vals, err := t.resolveAutoNumbers(vals)
	if err != nil {
		return row.Id{}, err
	}
	if t.enforceForeignKeys {
		if err := t.checkForeignKeys(vals); err != nil {
			return row.Id{}, err
		}
	}
	vals, err = t.overflowLongValues(vals, nil)
	if err != nil {
		return row.Id{}, err
	}

	packed, err := row.PackRow(t.Def.Columns, vals)
	if err != nil {
		return row.Id{}, err
	}

	id, err := t.placeRow(packed)
	if err != nil {
		return row.Id{}, err
	}

	if err := t.insertIntoIndexes(vals, id); err != nil {
		// Best-effort rollback: remove the row we just placed so a failed
		// unique/FK check doesn't leave an orphaned row behind.
		_ = t.deletePhysicalRow(id)
		return row.Id{}, err
	}
	t.bump()
	return id, nil
}

// overflowLongValues replaces any MEMO/OLE value whose literal bytes
// exceed the inline threshold with a LongValueRef pointer cell, writing
// the payload out through t.longValues first. A true entry in
// skip marks a column whose value is already a previously stored
// LongValueRef (e.g. an UpdateRow column left untouched by the KeepValue
// sentinel) and must be passed through as-is rather than re-Put, which
// would both duplicate storage and lose any non-inline payload (Value
// only carries raw bytes for the inline case).
func (t *Table) overflowLongValues(vals []values.Value, skip []bool) ([]values.Value, error) {
	out := append([]values.Value(nil), vals...)
	for i, c := range t.Def.Columns {
		if !c.Type.IsLongValue() || vals[i].IsNull() {
			continue
		}
		if skip != nil && skip[i] {
			continue
		}
		var payload []byte
		if c.Type == values.TypeMemo {
			payload = []byte(vals[i].String())
		} else {
			payload = vals[i].Bytes()
		}
		ref, err := t.longValues.Put(payload)
		if err != nil {
			return nil, err
		}
		out[i] = values.NewLongValue(c.Type, ref)
	}
	return out, nil
}

// dataPageMap returns the usage map of pages holding row data,
// reconstructing it from page type tags on first use after open (the
// owned-pages map the catalog persists also contains index and long-value
// pages, which a table scan must never interpret as row storage).
func (t *Table) dataPageMap() (*page.UsageMap, error) {
	if t.dataPagesLoaded {
		return t.dataPages, nil
	}
	cur := t.store.OwnedPages().NewCursor()
	for pn, ok := cur.Next(); ok; pn, ok = cur.Next() {
		buf, err := t.store.ReadPage(pn)
		if err != nil {
			return nil, err
		}
		if row.PageTypeTag(buf) == pageTypeTableData {
			t.dataPages.Add(pn)
		}
	}
	t.dataPagesLoaded = true
	return t.dataPages, nil
}

// freeSpaceMap returns the pages-with-free-space map, scanning
// the data pages once per session to seed it.
func (t *Table) freeSpaceMap() (*page.UsageMap, error) {
	if t.freeSpaceLoaded {
		return t.freeSpace, nil
	}
	data, err := t.dataPageMap()
	if err != nil {
		return nil, err
	}
	cur := data.NewCursor()
	for pn, ok := cur.Next(); ok; pn, ok = cur.Next() {
		buf, err := t.store.ReadPage(pn)
		if err != nil {
			return nil, err
		}
		if row.NewDataPage(buf).FreeSpace() > 0 {
			t.freeSpace.Add(pn)
		}
	}
	t.freeSpaceLoaded = true
	return t.freeSpace, nil
}

func (t *Table) placeRow(packed []byte) (row.Id, error) {
	free, err := t.freeSpaceMap()
	if err != nil {
		return row.Id{}, err
	}
	cur := free.NewCursor()
	for pn, ok := cur.Next(); ok; pn, ok = cur.Next() {
		buf, err := t.store.ReadPage(pn)
		if err != nil {
			return row.Id{}, err
		}
		dp := row.NewDataPage(buf)
		if dp.FreeSpace() < len(packed)+2 {
			if dp.FreeSpace() < freeSpaceReuseThreshold {
				free.Remove(pn)
			}
			continue
		}
		rowNo, err := dp.AddRow(packed, 0)
		if err != nil {
			return row.Id{}, err
		}
		if err := t.store.WritePage(pn, dp.Buf); err != nil {
			return row.Id{}, err
		}
		if dp.FreeSpace() < freeSpaceReuseThreshold {
			free.Remove(pn)
		}
		return row.Id{PageNo: pn, RowNo: rowNo}, nil
	}

	pn, buf, err := t.store.AllocatePage(pageTypeTableData)
	if err != nil {
		return row.Id{}, err
	}
	dp := row.InitDataPage(buf, pageTypeTableData)
	rowNo, err := dp.AddRow(packed, 0)
	if err != nil {
		return row.Id{}, err
	}
	if err := t.store.WritePage(pn, dp.Buf); err != nil {
		return row.Id{}, err
	}
	t.dataPages.Add(pn)
	free.Add(pn)
	return row.Id{PageNo: pn, RowNo: rowNo}, nil
}

// indexKeyHasNull reports whether any of idx's key components is NULL in
// vals.
func (t *Table) indexKeyHasNull(idx *schema.Index, vals []values.Value) bool {
	for _, ic := range idx.Columns {
		if vals[ic.ColumnOrdinal].IsNull() {
			return true
		}
	}
	return false
}

func (t *Table) insertIntoIndexes(vals []values.Value, id row.Id) error {
	var done []*indexHandle
	for _, h := range t.indexes {
		if h.def.IgnoreNulls && t.indexKeyHasNull(h.def, vals) {
			continue // the row is simply absent from this index
		}
		key, err := t.buildKey(h.def, vals)
		if err != nil {
			return err
		}
		if err := h.tree.Insert(key, id); err != nil {
			for _, prev := range done {
				k, _ := t.buildKey(prev.def, vals)
				_ = prev.tree.Delete(k, id)
			}
			return err
		}
		done = append(done, h)
	}
	return nil
}

// checkForeignKeys verifies, for every FK index this table carries as a
// child, that vals' key exists in the referenced table's referenced
// index. A key with a NULL component is exempt (nullable foreign keys are
// allowed to be absent).
func (t *Table) checkForeignKeys(vals []values.Value) error {
	if t.resolveTable == nil {
		return nil
	}
	for _, h := range t.indexes {
		if !h.def.ForeignKey || h.def.Reference == nil {
			continue
		}
		key, err := t.buildKey(h.def, vals)
		if err != nil {
			return err
		}
		if index.KeyIsAllNull(key) {
			continue
		}
		target, err := t.resolveTable(h.def.Reference.TargetTable)
		if err != nil {
			return err
		}
		tree, _, ok := target.IndexByName(h.def.Reference.TargetIndex)
		if !ok {
			return jeterr.New(jeterr.ReferentialIntegrityError, "FK %s: target index %s.%s not found", h.def.Name, h.def.Reference.TargetTable, h.def.Reference.TargetIndex)
		}
		if _, found, err := tree.Find(key); err != nil {
			return err
		} else if !found {
			return jeterr.New(jeterr.ReferentialIntegrityError, "FK %s: no matching row in %s.%s", h.def.Name, h.def.Reference.TargetTable, h.def.Reference.TargetIndex)
		}
	}
	return nil
}

// cascadeAction is one deferred child-table fixup collected by
// checkOrphans: delete the listed child rows, or rewrite their FK columns
// to the parent's new key values.
type cascadeAction struct {
	child      *Table
	ids        []row.Id
	fkOrdinals []int          // child column ordinals, in FK index column order
	newVals    []values.Value // parent's new values for those positions; nil = delete
}

// checkOrphans is the parent side of referential integrity: before a
// parent row's key disappears (delete) or changes (update), every child
// table whose relationship targets this table must either have no
// matching children, allow cascading (in which case the required child
// fixups are returned for the caller to apply after its own write), or
// the operation fails.
func (t *Table) checkOrphans(oldVals, newVals []values.Value, deleting bool) ([]cascadeAction, error) {
	if t.resolveTable == nil || len(t.Def.Relationships) == 0 {
		return nil, nil
	}
	var actions []cascadeAction
	for _, rel := range t.Def.Relationships {
		if !schema.NameEqualFold(rel.ToTable, t.Def.Name) {
			continue
		}
		child, err := t.resolveTable(rel.FromTable)
		if err != nil {
			return nil, err
		}
		cascade := rel.CascadeDelete
		if !deleting {
			cascade = rel.CascadeUpdate
		}
		for _, h := range child.indexes {
			if !h.def.ForeignKey || h.def.Reference == nil {
				continue
			}
			if !schema.NameEqualFold(h.def.Reference.TargetTable, t.Def.Name) {
				continue
			}
			// The FK index's key bytes are, by construction, identical to
			// the parent's referenced-index key bytes for the same logical
			// value (same column types and order) — so the parent's own
			// buildKey reproduces exactly what the child's tree holds,
			// with no need to re-derive it from the child's column layout.
			_, parentDef, ok := t.IndexByName(h.def.Reference.TargetIndex)
			if !ok {
				continue
			}
			oldKey, err := t.buildKey(parentDef, oldVals)
			if err != nil {
				return nil, err
			}
			if !deleting {
				newKey, err := t.buildKey(parentDef, newVals)
				if err != nil {
					return nil, err
				}
				if index.CompareKeys(oldKey, newKey) == 0 {
					continue // key unchanged; children unaffected
				}
			}
			ids, err := h.tree.FindRange(oldKey)
			if err != nil {
				return nil, err
			}
			if len(ids) == 0 {
				continue
			}
			if !cascade {
				return nil, jeterr.New(jeterr.ReferentialIntegrityError, "row is referenced by %s.%s", rel.FromTable, h.def.Name)
			}
			act := cascadeAction{child: child, ids: ids}
			if !deleting {
				act.fkOrdinals = make([]int, len(h.def.Columns))
				act.newVals = make([]values.Value, len(h.def.Columns))
				for i, ic := range h.def.Columns {
					act.fkOrdinals[i] = ic.ColumnOrdinal
					act.newVals[i] = newVals[parentDef.Columns[i].ColumnOrdinal]
				}
			}
			actions = append(actions, act)
		}
	}
	return actions, nil
}

// applyCascades performs the deferred child fixups collected by
// checkOrphans, after the parent's own write has landed (so a cascaded
// child update's FK re-check sees the parent's new key in place).
func (t *Table) applyCascades(actions []cascadeAction) error {
	for _, act := range actions {
		for _, id := range act.ids {
			if act.newVals == nil {
				if err := act.child.DeleteRow(id); err != nil {
					return jeterr.Wrap(err, jeterr.ReferentialIntegrityError, "cascade delete into %s", act.child.Def.Name)
				}
				continue
			}
			upd := make([]values.Value, len(act.child.Def.Columns))
			for i := range upd {
				upd[i] = row.KeepValue
			}
			for i, ord := range act.fkOrdinals {
				upd[ord] = act.newVals[i]
			}
			if err := act.child.UpdateRow(id, upd); err != nil {
				return jeterr.Wrap(err, jeterr.ReferentialIntegrityError, "cascade update into %s", act.child.Def.Name)
			}
		}
	}
	return nil
}

func (t *Table) buildKey(idx *schema.Index, vals []values.Value) ([]byte, error) {
	keyVals := make([]values.Value, len(idx.Columns))
	ascending := make([]bool, len(idx.Columns))
	for i, ic := range idx.Columns {
		keyVals[i] = vals[ic.ColumnOrdinal]
		ascending[i] = ic.Ascending
	}
	return index.EncodeCompositeKey(keyVals, ascending)
}

// GetRow reads and unpacks the row at id, resolving any long-value
// pointer cells to their full payload.
func (t *Table) GetRow(id row.Id) ([]values.Value, error) {
	buf, err := t.store.ReadPage(id.PageNo)
	if err != nil {
		return nil, err
	}
	dp := row.NewDataPage(buf)
	raw, flags, err := dp.RowBytes(id.RowNo)
	if err != nil {
		return nil, err
	}
	if flags&row.FlagDeleted != 0 {
		return nil, jeterr.New(jeterr.NotFound, "row %v is deleted", id)
	}
	vals, err := row.UnpackRow(t.Def.Columns, raw)
	if err != nil {
		return nil, err
	}
	for i, c := range t.Def.Columns {
		if c.Type.IsLongValue() && !vals[i].IsNull() {
			payload, err := t.longValues.Get(vals[i].LongRef())
			if err != nil {
				return nil, err
			}
			if c.Type == values.TypeMemo {
				vals[i] = values.NewText(c.Type, string(payload))
			} else {
				vals[i] = values.NewBytes(c.Type, payload)
			}
		}
	}
	return vals, nil
}

// UpdateRow replaces id's row with newVals, where a value equal to
// row.KeepValue (the update-row sentinel) leaves that column's
// existing value untouched. Indexes are updated by removing the old key
// and inserting the new one.
func (t *Table) UpdateRow(id row.Id, newVals []values.Value) error {
	oldVals, err := t.GetRowRaw(id)
	if err != nil {
		return err
	}
	merged := append([]values.Value(nil), oldVals...)
	kept := make([]bool, len(merged))
	for i, v := range newVals {
		if v.IsKeep() {
			kept[i] = true
		} else {
			merged[i] = v
		}
	}
	var cascades []cascadeAction
	if t.enforceForeignKeys {
		if err := t.checkForeignKeys(merged); err != nil {
			return err
		}
		cascades, err = t.checkOrphans(oldVals, merged, false)
		if err != nil {
			return err
		}
	}
	merged, err = t.overflowLongValues(merged, kept)
	if err != nil {
		return err
	}
	packed, err := row.PackRow(t.Def.Columns, merged)
	if err != nil {
		return err
	}

	for _, h := range t.indexes {
		if h.def.IgnoreNulls && t.indexKeyHasNull(h.def, oldVals) {
			continue // never inserted
		}
		oldKey, err := t.buildKey(h.def, oldVals)
		if err != nil {
			return err
		}
		if err := h.tree.Delete(oldKey, id); err != nil && !jeterr.Is(err, jeterr.NotFound) {
			return err
		}
	}

	buf, err := t.store.ReadPage(id.PageNo)
	if err != nil {
		return err
	}
	dp := row.NewDataPage(buf)
	if dp.FitsInPlace(id.RowNo, packed) {
		if err := dp.UpdateInPlace(id.RowNo, packed); err != nil {
			return err
		}
		if err := t.store.WritePage(id.PageNo, dp.Buf); err != nil {
			return err
		}
	} else {
		if err := dp.SetDeleted(id.RowNo, true); err != nil {
			return err
		}
		if err := t.store.WritePage(id.PageNo, dp.Buf); err != nil {
			return err
		}
		newID, err := t.placeRow(packed)
		if err != nil {
			return err
		}
		id = newID
	}

	if err := t.insertIntoIndexes(merged, id); err != nil {
		return err
	}
	t.bump()
	return t.applyCascades(cascades)
}

// GetRowRaw is like GetRow but leaves long-value columns as their
// LongValueRef-backed Value rather than resolving the payload, for
// callers (like UpdateRow) that only need it to rebuild index keys and
// re-pack the row.
func (t *Table) GetRowRaw(id row.Id) ([]values.Value, error) {
	buf, err := t.store.ReadPage(id.PageNo)
	if err != nil {
		return nil, err
	}
	dp := row.NewDataPage(buf)
	raw, flags, err := dp.RowBytes(id.RowNo)
	if err != nil {
		return nil, err
	}
	if flags&row.FlagDeleted != 0 {
		return nil, jeterr.New(jeterr.NotFound, "row %v is deleted", id)
	}
	return row.UnpackRow(t.Def.Columns, raw)
}

// DeleteRow removes id from every index and tombstones its physical slot.
func (t *Table) DeleteRow(id row.Id) error {
	vals, err := t.GetRowRaw(id)
	if err != nil {
		return err
	}
	var cascades []cascadeAction
	if t.enforceForeignKeys {
		cascades, err = t.checkOrphans(vals, nil, true)
		if err != nil {
			return err
		}
	}
	for _, h := range t.indexes {
		if h.def.IgnoreNulls && t.indexKeyHasNull(h.def, vals) {
			continue // never inserted
		}
		key, err := t.buildKey(h.def, vals)
		if err != nil {
			return err
		}
		if err := h.tree.Delete(key, id); err != nil && !jeterr.Is(err, jeterr.NotFound) {
			return err
		}
	}
	if err := t.deletePhysicalRow(id); err != nil {
		return err
	}
	t.bump()
	return t.applyCascades(cascades)
}

func (t *Table) deletePhysicalRow(id row.Id) error {
	buf, err := t.store.ReadPage(id.PageNo)
	if err != nil {
		return err
	}
	dp := row.NewDataPage(buf)
	if err := dp.SetDeleted(id.RowNo, true); err != nil {
		return err
	}
	if err := t.store.WritePage(id.PageNo, dp.Buf); err != nil {
		return err
	}
	// The tombstoned bytes become reclaimable on the next compaction, so
	// the page is a candidate for new rows again.
	if t.freeSpaceLoaded {
		t.freeSpace.Add(id.PageNo)
	}
	return nil
}

// RowCount returns the number of live (non-tombstoned) rows, by walking a
// fresh table-scan cursor. There is no maintained
// running counter to invalidate on every add/delete, so this is O(rows).
func (t *Table) RowCount() (int, error) {
	cur := t.NewTableScanCursor(Forward)
	n := 0
	for {
		_, _, ok, err := cur.Next()
		if err != nil {
			return 0, err
		}
		if !ok {
			return n, nil
		}
		n++
	}
}

// IndexByName returns the physical B-tree for idxName, for Cursor to use
// on an index-ordered scan.
func (t *Table) IndexByName(idxName string) (*index.BTree, *schema.Index, bool) {
	for _, h := range t.indexes {
		if schema.NameEqualFold(h.def.Name, idxName) {
			return h.tree, h.def, true
		}
	}
	return nil, nil, false
}

// IndexStats reports one index's entry bookkeeping.
type IndexStats struct {
	Name             string
	EntryCount       int
	UniqueEntryCount int
}

// IndexStatsFor returns the entry and unique-entry counts of idxName.
func (t *Table) IndexStatsFor(idxName string) (IndexStats, error) {
	tree, def, ok := t.IndexByName(idxName)
	if !ok {
		return IndexStats{}, jeterr.New(jeterr.InvalidArgument, "no such index %q", idxName)
	}
	n, err := tree.EntryCount()
	if err != nil {
		return IndexStats{}, err
	}
	u, err := tree.UniqueEntryCount()
	if err != nil {
		return IndexStats{}, err
	}
	return IndexStats{Name: def.Name, EntryCount: n, UniqueEntryCount: u}, nil
}

// ValidateIndexes runs every index's O(N) invariant check.
func (t *Table) ValidateIndexes() error {
	for _, h := range t.indexes {
		if err := h.tree.Validate(); err != nil {
			return jeterr.Wrap(err, jeterr.CorruptedFormat, "index %s on table %s", h.def.Name, t.Def.Name)
		}
	}
	return nil
}

// Name returns the table's name.
func (t *Table) Name() string { return t.Def.Name }

// Columns returns the table's column definitions in ordinal order.
func (t *Table) Columns() []*schema.Column { return t.Def.Columns }

// Indexes returns the table's index definitions.
func (t *Table) Indexes() []*schema.Index { return t.Def.Indexes }
