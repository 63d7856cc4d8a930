package table

import (
	"fmt"

	"github.com/jahlborn/jackcess-sub007/internal/index"
	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// direction is the tagged-variant traversal policy a Cursor is configured
// with. The four behaviors a traversal direction decides —
// the boundary position, the row-number step within a page, the page
// step across the owned-pages map, and the initial row number on a
// freshly entered page — all derive from the single forward bit.
type direction struct {
	forward bool
}

// boundary is the sentinel position a cursor of this direction starts at.
func (d direction) boundary() row.Id {
	if d.forward {
		return row.First
	}
	return row.Last
}

// stepRow returns the next row number within a page of n rows, or ok=false
// when the page is exhausted in this direction.
func (d direction) stepRow(cur uint16, n uint16) (uint16, bool) {
	if d.forward {
		if cur+1 < n {
			return cur + 1, true
		}
		return 0, false
	}
	if cur > 0 {
		return cur - 1, true
	}
	return 0, false
}

// entryRow returns the row number a freshly entered page of n rows starts
// at in this direction (n must be > 0).
func (d direction) entryRow(n uint16) uint16 {
	if d.forward {
		return 0
	}
	return n - 1
}

var (
	Forward  = direction{forward: true}
	Backward = direction{forward: false}
)

// Savepoint captures a Cursor's position so a caller can rewind after a
// speculative move. owner identifies the cursor that captured
// it; Restore rejects a savepoint captured by a different cursor instance.
type Savepoint struct {
	id       row.Id
	indexKey []byte
	valid    bool
	owner    interface{}
}

// TableScanCursor walks every live row of a table in physical (page,row)
// order, independent of any index.
type TableScanCursor struct {
	t     *Table
	dir   direction
	cur   row.Id
	state *row.RowState
}

// NewTableScanCursor creates a cursor positioned before the first
// (Forward) or after the last (Backward) row.
func (t *Table) NewTableScanCursor(dir direction) *TableScanCursor {
	return &TableScanCursor{t: t, dir: dir, cur: dir.boundary(), state: row.NewRowState(t.store)}
}

// Next advances to and returns the next live row, skipping tombstoned
// slots and pages the table no longer owns.
func (c *TableScanCursor) Next() (row.Id, []values.Value, bool, error) {
	c.state.Invalidate(c.t.Generation())
	for {
		nextID, ok, err := c.stepPhysical()
		if err != nil {
			return row.Id{}, nil, false, err
		}
		if !ok {
			return row.Id{}, nil, false, nil
		}
		c.cur = nextID
		vals, err := c.t.GetRow(nextID)
		if err != nil {
			if jeterr.Is(err, jeterr.NotFound) {
				continue // tombstoned row; keep scanning
			}
			if skip, rerr := c.t.handleRowError(err); skip {
				continue
			} else if rerr != nil {
				return row.Id{}, nil, false, rerr
			}
			return row.Id{}, nil, false, err
		}
		return nextID, vals, true, nil
	}
}

// stepPhysical computes the next candidate RowId in page/row order without
// regard to tombstones, advancing within the current page or entering the
// next owned page in this cursor's direction.
func (c *TableScanCursor) stepPhysical() (row.Id, bool, error) {
	if c.cur.IsSentinel() {
		pn, ok, err := c.firstOwnedPage()
		if err != nil || !ok {
			return row.Id{}, false, err
		}
		return c.enterPage(pn)
	}

	n, err := c.state.RowCountAt(c.cur.PageNo)
	if err != nil {
		return row.Id{}, false, err
	}
	if next, ok := c.dir.stepRow(c.cur.RowNo, n); ok {
		return row.Id{PageNo: c.cur.PageNo, RowNo: next}, true, nil
	}

	nextPN, ok, err := c.nextOwnedPage(c.cur.PageNo)
	if err != nil || !ok {
		return row.Id{}, false, err
	}
	return c.enterPage(nextPN)
}

// enterPage positions at the first row of pn in this cursor's direction,
// skipping over empty pages.
func (c *TableScanCursor) enterPage(pn uint32) (row.Id, bool, error) {
	for {
		n, err := c.state.RowCountAt(pn)
		if err != nil {
			return row.Id{}, false, err
		}
		if n > 0 {
			return row.Id{PageNo: pn, RowNo: c.dir.entryRow(n)}, true, nil
		}
		next, ok, err := c.nextOwnedPage(pn)
		if err != nil || !ok {
			return row.Id{}, false, err
		}
		pn = next
	}
}

// IsCurrentRowDeleted reports whether the row this cursor last yielded has
// since been tombstoned by another writer.
func (c *TableScanCursor) IsCurrentRowDeleted() (bool, error) {
	if c.cur.IsSentinel() {
		return false, nil
	}
	c.state.Invalidate(c.t.Generation())
	_, deleted, err := c.state.PositionAtRowData(c.cur)
	if err != nil {
		return false, err
	}
	return deleted, nil
}

func (c *TableScanCursor) firstOwnedPage() (uint32, bool, error) {
	m, err := c.t.dataPageMap()
	if err != nil {
		return 0, false, err
	}
	if c.dir.forward {
		pn, ok := m.NewCursor().Next()
		return pn, ok, nil
	}
	pn, ok := m.NewCursorAtEnd().Prev()
	return pn, ok, nil
}

func (c *TableScanCursor) nextOwnedPage(after uint32) (uint32, bool, error) {
	m, err := c.t.dataPageMap()
	if err != nil {
		return 0, false, err
	}
	if c.dir.forward {
		cur := m.NewCursor()
		for pn, ok := cur.Next(); ok; pn, ok = cur.Next() {
			if pn > after {
				return pn, true, nil
			}
		}
		return 0, false, nil
	}
	cur := m.NewCursorAtEnd()
	for pn, ok := cur.Prev(); ok; pn, ok = cur.Prev() {
		if pn < after {
			return pn, true, nil
		}
	}
	return 0, false, nil
}

// Save captures the cursor's current position.
func (c *TableScanCursor) Save() Savepoint { return Savepoint{id: c.cur, valid: true, owner: c} }

// Restore rewinds the cursor to a previously captured position, rejecting
// a savepoint captured by a different cursor.
func (c *TableScanCursor) Restore(sp Savepoint) error {
	if !sp.valid {
		return jeterr.New(jeterr.InvalidArgument, "restoring an empty savepoint")
	}
	if sp.owner != c {
		return jeterr.New(jeterr.InvalidArgument, "savepoint belongs to a different cursor")
	}
	c.cur = sp.id
	return nil
}

// CurrentRowID returns the RowId most recently yielded by Next.
func (c *TableScanCursor) CurrentRowID() row.Id { return c.cur }

// UpdateCurrentRow replaces the row this cursor is positioned on.
func (c *TableScanCursor) UpdateCurrentRow(newVals []values.Value) error {
	return c.t.UpdateRow(c.cur, newVals)
}

// DeleteCurrentRow tombstones the row this cursor is positioned on.
func (c *TableScanCursor) DeleteCurrentRow() error {
	return c.t.DeleteRow(c.cur)
}

// IndexCursor walks an index's B-tree leaves in key order, resolving each
// leaf entry's RowId back to its row through the owning Table.
type IndexCursor struct {
	t    *Table
	tree *index.BTree
	dir  direction
	ic   *index.Cursor

	lastID  row.Id
	lastKey []byte

	startKey, endKey             []byte
	startInclusive, endInclusive bool
}

// NewIndexCursor positions a cursor at the start of idxName's key order
// (Forward: ascending; Backward: the index's own descending encoding,
// since each column's byte encoding already accounts for ascending/
// descending), unbounded on both ends.
func (t *Table) NewIndexCursor(idxName string, dir direction) (*IndexCursor, error) {
	return t.NewBoundedIndexCursor(idxName, dir, nil, nil, true, true)
}

// NewBoundedIndexCursor is NewIndexCursor restricted to the key range
// [startKey, endKey] (or half-open per startInclusive/endInclusive), per
// A nil bound is
// unbounded on that side.
func (t *Table) NewBoundedIndexCursor(idxName string, dir direction, startKey, endKey []byte, startInclusive, endInclusive bool) (*IndexCursor, error) {
	tree, _, ok := t.IndexByName(idxName)
	if !ok {
		return nil, jeterr.New(jeterr.InvalidArgument, "no such index %q", idxName)
	}
	var ic *index.Cursor
	var err error
	if dir.forward {
		ic, err = tree.NewCursor(startKey)
	} else {
		ic, err = tree.NewCursorAtEnd()
	}
	if err != nil {
		return nil, err
	}
	return &IndexCursor{
		t: t, tree: tree, dir: dir, ic: ic,
		startKey: startKey, endKey: endKey,
		startInclusive: startInclusive, endInclusive: endInclusive,
	}, nil
}

// withinBounds reports whether key falls inside this cursor's configured
// range, and whether encountering it should stop traversal entirely (as
// opposed to merely skipping it and continuing, which happens on a
// backward scan before it has entered a bounded range from the tree's
// true end).
func (c *IndexCursor) withinBounds(key []byte) (include, stop bool) {
	tooLow, tooHigh := false, false
	if c.startKey != nil {
		cmp := index.CompareKeys(key, c.startKey)
		if cmp < 0 || (cmp == 0 && !c.startInclusive) {
			tooLow = true
		}
	}
	if c.endKey != nil {
		cmp := index.CompareKeys(key, c.endKey)
		if cmp > 0 || (cmp == 0 && !c.endInclusive) {
			tooHigh = true
		}
	}
	switch {
	case tooLow:
		return false, true
	case tooHigh:
		if c.dir.forward {
			return false, true
		}
		return false, false // backward: haven't entered the bounded range yet, keep skipping
	default:
		return true, false
	}
}

// Next advances the cursor (via the B-tree's Next or Prev, depending on
// the direction it was opened with) and resolves the underlying row,
// skipping any index entry whose row has since been deleted (a stale
// entry a concurrent delete left behind momentarily).
func (c *IndexCursor) Next() (row.Id, []values.Value, bool, error) {
	for {
		var key []byte
		var id row.Id
		var ok bool
		var err error
		if c.dir.forward {
			key, id, ok, err = c.ic.Next()
		} else {
			key, id, ok, err = c.ic.Prev()
		}
		if err != nil {
			return row.Id{}, nil, false, err
		}
		if !ok {
			return row.Id{}, nil, false, nil
		}
		if include, stop := c.withinBounds(key); stop {
			return row.Id{}, nil, false, nil
		} else if !include {
			continue
		}
		vals, err := c.t.GetRow(id)
		if err != nil {
			if jeterr.Is(err, jeterr.NotFound) {
				continue
			}
			if skip, rerr := c.t.handleRowError(err); skip {
				continue
			} else if rerr != nil {
				return row.Id{}, nil, false, rerr
			}
			return row.Id{}, nil, false, err
		}
		c.lastID, c.lastKey = id, key
		return id, vals, true, nil
	}
}

// IsCurrentRowDeleted reports whether the row this cursor last yielded has
// since been tombstoned by another writer. Index traversal
// itself never yields a deleted row — delete removes the entry — so this
// only observes a deletion that happened after the yield.
func (c *IndexCursor) IsCurrentRowDeleted() (bool, error) {
	if c.lastID == (row.Id{}) {
		return false, nil
	}
	_, err := c.t.GetRowRaw(c.lastID)
	if err == nil {
		return false, nil
	}
	if jeterr.Is(err, jeterr.NotFound) {
		return true, nil
	}
	return false, err
}

// CurrentRowID returns the RowId most recently yielded by Next.
func (c *IndexCursor) CurrentRowID() row.Id { return c.lastID }

// UpdateCurrentRow replaces the row this cursor is positioned on.
func (c *IndexCursor) UpdateCurrentRow(newVals []values.Value) error {
	return c.t.UpdateRow(c.lastID, newVals)
}

// DeleteCurrentRow tombstones the row this cursor is positioned on.
func (c *IndexCursor) DeleteCurrentRow() error {
	return c.t.DeleteRow(c.lastID)
}

// Save captures the index cursor's current key/row position.
func (c *IndexCursor) Save() Savepoint {
	return Savepoint{id: c.lastID, indexKey: c.lastKey, valid: true, owner: c}
}

// Restore rewinds the cursor to its position at sp, so the next move
// continues past the saved entry, rejecting a savepoint captured by a
// different cursor.
func (c *IndexCursor) Restore(sp Savepoint) error {
	if !sp.valid {
		return jeterr.New(jeterr.InvalidArgument, "restoring an empty savepoint")
	}
	if sp.owner != c {
		return jeterr.New(jeterr.InvalidArgument, "savepoint belongs to a different cursor")
	}
	ic, err := c.tree.NewCursor(sp.indexKey)
	if sp.indexKey == nil && !c.dir.forward {
		ic, err = c.tree.NewCursorAtEnd()
	}
	if err != nil {
		return err
	}
	// Step onto the saved entry itself, so either direction continues past it.
	for sp.indexKey != nil {
		key, id, ok, err := ic.Next()
		if err != nil {
			return err
		}
		if !ok || id == sp.id || index.CompareKeys(key, sp.indexKey) > 0 {
			break
		}
	}
	c.ic, c.lastID, c.lastKey = ic, sp.id, sp.indexKey
	return nil
}

// Pattern is an equality predicate over one or more columns, used by
// FindFirstRow/FindNextRow.
type Pattern struct {
	Columns []string
	Values  []values.Value
	Match   func(colName string, expected, actual values.Value) bool
}

func (p Pattern) matches(t *Table, vals []values.Value) bool {
	for i, name := range p.Columns {
		_, ord := t.Def.ColumnByName(name)
		if ord < 0 {
			return false
		}
		if p.Match != nil {
			if !p.Match(name, p.Values[i], vals[ord]) {
				return false
			}
			continue
		}
		if t.columnMatcher != nil {
			if !t.columnMatcher(name, p.Values[i].Raw(), vals[ord].Raw()) {
				return false
			}
			continue
		}
		if !valuesEqual(p.Values[i], vals[ord]) {
			return false
		}
	}
	return true
}

func valuesEqual(a, b values.Value) bool {
	if a.IsNull() != b.IsNull() {
		return false
	}
	if a.IsNull() {
		return true
	}
	return fmt.Sprintf("%v", a.Raw()) == fmt.Sprintf("%v", b.Raw())
}

// FindFirstRow scans forward from the cursor's current position until a
// row matches pattern, restoring the starting position on failure.
func (c *TableScanCursor) FindFirstRow(pattern Pattern) (row.Id, []values.Value, bool, error) {
	sp := c.Save()
	for {
		id, vals, ok, err := c.Next()
		if err != nil {
			c.Restore(sp)
			return row.Id{}, nil, false, err
		}
		if !ok {
			c.Restore(sp)
			return row.Id{}, nil, false, nil
		}
		if pattern.matches(c.t, vals) {
			return id, vals, true, nil
		}
	}
}

// FindFirstRow is the index-cursor analogue of TableScanCursor.FindFirstRow:
// it scans onward in the cursor's direction from its current position
// until a row matches pattern, restoring the starting position on failure.
// It does not seek the index by the pattern's values; every remaining
// entry is visited, not only an equal-key range.
func (c *IndexCursor) FindFirstRow(pattern Pattern) (row.Id, []values.Value, bool, error) {
	sp := c.Save()
	for {
		id, vals, ok, err := c.Next()
		if err != nil {
			c.Restore(sp)
			return row.Id{}, nil, false, err
		}
		if !ok {
			c.Restore(sp)
			return row.Id{}, nil, false, nil
		}
		if pattern.matches(c.t, vals) {
			return id, vals, true, nil
		}
	}
}
