package index

import (
	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// PageAllocator is the subset of page.Channel/UsageMap behavior the B-tree
// needs: allocate a fresh page of a given type, read one back, and persist
// an updated one.
type PageAllocator interface {
	AllocatePage(pageType uint16) (uint32, []byte, error)
	ReadPage(pageNo uint32) ([]byte, error)
	WritePage(pageNo uint32, buf []byte) error
}

// pageTypeLeaf/pageTypeInternal tag index pages distinctly from table
// row-storage pages within the same channel.
const (
	pageTypeLeaf     uint16 = 0x0030
	pageTypeInternal uint16 = 0x0031
)

// BTree is the physical B-tree backing one IndexData: byte-
// order-preserving composite keys, RowId-addressed leaves, insert with
// split cascade, delete without merging, and ordered traversal.
type BTree struct {
	alloc       PageAllocator
	root        uint32
	unique      bool
	ignoreNulls bool

	// Entry bookkeeping. Loaded lazily by a leaf walk on first access, then kept
	// current by Insert/Delete for the rest of the session.
	entryCount   int
	uniqueCount  int
	countsLoaded bool
}

// splitHeadroom is reserved out of a page's buffer so a newly inserted
// entry never has to be test-fit byte-by-byte before deciding whether a
// split is needed.
const splitHeadroom = 32

// NewBTree wraps an existing root page (already allocated/initialized by
// the caller) as a usable index.
func NewBTree(alloc PageAllocator, rootPageNo uint32, unique, ignoreNulls bool) *BTree {
	return &BTree{alloc: alloc, root: rootPageNo, unique: unique, ignoreNulls: ignoreNulls}
}

// CreateEmpty allocates a fresh, empty leaf page as the new tree's root.
func CreateEmpty(alloc PageAllocator, unique, ignoreNulls bool) (*BTree, error) {
	pn, buf, err := alloc.AllocatePage(pageTypeLeaf)
	if err != nil {
		return nil, err
	}
	InitLeafPage(buf)
	if err := alloc.WritePage(pn, buf); err != nil {
		return nil, err
	}
	return &BTree{alloc: alloc, root: pn, unique: unique, ignoreNulls: ignoreNulls, countsLoaded: true}, nil
}

func (t *BTree) RootPage() uint32 { return t.root }

func (t *BTree) loadPage(pn uint32) (*Page, error) {
	buf, err := t.alloc.ReadPage(pn)
	if err != nil {
		return nil, err
	}
	return NewPage(buf), nil
}

func (t *BTree) savePage(pn uint32, p *Page) error {
	return t.alloc.WritePage(pn, p.Buf)
}

// pathStep records one internal page visited on the way down, and which
// child index (-1 = LeftChild) was followed, so Insert/Delete can walk
// back up to propagate a split or detect underflow.
type pathStep struct {
	pageNo  uint32
	page    *Page
	childAt int // index into page.entries(); -1 means LeftChild
}

// descend walks from the root to the leaf that would contain key,
// returning the leaf and the stack of internal pages visited.
func (t *BTree) descend(key []byte) (*Page, uint32, []pathStep, error) {
	pn := t.root
	var path []pathStep
	for {
		p, err := t.loadPage(pn)
		if err != nil {
			return nil, 0, nil, err
		}
		if p.IsLeaf() {
			return p, pn, path, nil
		}
		entries := p.entries()
		// Follow the rightmost child whose separator key is <= key: skip
		// past separators equal to key, since a separator is the lowest
		// key of the subtree to its right.
		idx := findInsertionPoint(entries, key)
		for idx < len(entries) && CompareKeys(entries[idx].key, key) == 0 {
			idx++
		}
		var childPN uint32
		if idx == 0 {
			childPN = p.LeftChild()
			path = append(path, pathStep{pageNo: pn, page: p, childAt: -1})
		} else {
			childPN = entries[idx-1].childPN
			path = append(path, pathStep{pageNo: pn, page: p, childAt: idx - 1})
		}
		pn = childPN
	}
}

// Find locates the first leaf entry matching key exactly, per CompareKeys.
func (t *BTree) Find(key []byte) (row.Id, bool, error) {
	leaf, _, _, err := t.descend(key)
	if err != nil {
		return row.Id{}, false, err
	}
	entries := leaf.entries()
	idx := findInsertionPoint(entries, key)
	if idx < len(entries) && CompareKeys(entries[idx].key, key) == 0 {
		return entries[idx].rowID, true, nil
	}
	return row.Id{}, false, nil
}

// Insert adds (key, id) to the tree, enforcing uniqueness when t.unique is
// set unless the key is all-NULL
// components and t.ignoreNulls is set.
func (t *BTree) Insert(key []byte, id row.Id) error {
	leaf, leafPN, path, err := t.descend(key)
	if err != nil {
		return err
	}
	entries := leaf.entries()
	idx := findInsertionPoint(entries, key)
	if t.unique && !(t.ignoreNulls && keyIsAllNull(key)) {
		if idx < len(entries) && CompareKeys(entries[idx].key, key) == 0 {
			return jeterr.New(jeterr.UniquenessViolation, "duplicate index key")
		}
	}

	if t.countsLoaded {
		existed, err := t.keyExistsAround(leaf, entries, idx, key)
		if err != nil {
			return err
		}
		t.entryCount++
		if !existed {
			t.uniqueCount++
		}
	}

	// The uniqueness/count checks above only need the first equal-or-
	// greater key; the physical slot must also tie-break on RowId so a run
	// of duplicate keys stays ascending by (key, RowId).
	slot := findLeafInsertionPoint(entries, key, id)

	newEntries := make([]entry, 0, len(entries)+1)
	newEntries = append(newEntries, entries[:slot]...)
	newEntries = append(newEntries, entry{key: append([]byte(nil), key...), rowID: id})
	newEntries = append(newEntries, entries[slot:]...)

	return t.insertEntries(leafPN, leaf, newEntries, path)
}

// keyExistsAround reports whether key already appears among entries (at or
// adjacent to idx) or, when idx sits on a page boundary, on the relevant
// sibling leaf. Equal keys are always stored contiguously, so these are
// the only places a duplicate can live.
func (t *BTree) keyExistsAround(leaf *Page, entries []entry, idx int, key []byte) (bool, error) {
	if idx < len(entries) && CompareKeys(entries[idx].key, key) == 0 {
		return true, nil
	}
	if idx > 0 && CompareKeys(entries[idx-1].key, key) == 0 {
		return true, nil
	}
	if idx == 0 && leaf.LeftSibling() != 0 {
		sib, err := t.loadPage(leaf.LeftSibling())
		if err != nil {
			return false, err
		}
		se := sib.entries()
		if len(se) > 0 && CompareKeys(se[len(se)-1].key, key) == 0 {
			return true, nil
		}
	}
	if idx == len(entries) && leaf.RightSibling() != 0 {
		sib, err := t.loadPage(leaf.RightSibling())
		if err != nil {
			return false, err
		}
		se := sib.entries()
		if len(se) > 0 && CompareKeys(se[0].key, key) == 0 {
			return true, nil
		}
	}
	return false, nil
}

// KeyIsAllNull reports whether every component of a composite key encoded
// NULL (the single 0x00 byte convention from EncodeKeyComponent). Exported
// for callers outside this package (e.g. the table layer's foreign-key
// checks) that need the same "is this an all-NULL key" test Insert uses
// for ignore-nulls.
func KeyIsAllNull(key []byte) bool { return keyIsAllNull(key) }

// keyIsAllNull reports whether every component of a composite key encoded
// NULL (the single 0x00 byte convention from EncodeKeyComponent).
func keyIsAllNull(key []byte) bool {
	for _, b := range key {
		if b != 0x00 {
			return false
		}
	}
	return len(key) > 0
}

// insertEntries writes newEntries into a leaf (or internal) page, splitting
// and propagating upward through path when the entries' byte size plus
// the header and splitHeadroom no longer fits the page buffer.
func (t *BTree) insertEntries(pn uint32, p *Page, newEntries []entry, path []pathStep) error {
	if entriesByteSize(newEntries, p.IsLeaf())+nodeHeaderSize+splitHeadroom <= len(p.Buf) {
		if err := p.rewrite(newEntries); err != nil {
			return err
		}
		return t.savePage(pn, p)
	}

	mid := len(newEntries) / 2
	left := newEntries[:mid]
	right := newEntries[mid:]
	splitKey := right[0].key

	if err := p.rewrite(left); err != nil {
		return err
	}
	if err := t.savePage(pn, p); err != nil {
		return err
	}

	newPN, newBuf, err := t.alloc.AllocatePage(pageTypeForKind(p.Kind))
	if err != nil {
		return err
	}
	var newPage *Page
	if p.IsLeaf() {
		newPage = InitLeafPage(newBuf)
	} else {
		newPage = InitInternalPage(newBuf)
		newPage.SetLeftChild(right[0].childPN)
		right = right[1:] // the split key's own child becomes the new page's LeftChild
	}
	oldRight := p.RightSibling()
	newPage.SetRightSibling(oldRight)
	newPage.SetLeftSibling(pn)
	newPage.SetParent(p.Parent())
	if err := newPage.rewrite(right); err != nil {
		return err
	}
	if err := t.savePage(newPN, newPage); err != nil {
		return err
	}
	p.SetRightSibling(newPN)
	if err := t.savePage(pn, p); err != nil {
		return err
	}
	if oldRight != 0 {
		oldRightPage, err := t.loadPage(oldRight)
		if err != nil {
			return err
		}
		oldRightPage.SetLeftSibling(newPN)
		if err := t.savePage(oldRight, oldRightPage); err != nil {
			return err
		}
	}

	return t.propagateSplit(splitKey, newPN, path)
}

func entriesByteSize(entries []entry, leaf bool) int {
	total := 0
	for _, e := range entries {
		total += entrySize(e, leaf)
	}
	return total
}

func pageTypeForKind(kind uint16) uint16 {
	if kind == nodeKindLeaf {
		return pageTypeLeaf
	}
	return pageTypeInternal
}

// propagateSplit inserts (splitKey -> rightChildPN) into the parent named
// by the top of path, creating a new root if the tree had none above the
// split point.
func (t *BTree) propagateSplit(splitKey []byte, rightChildPN uint32, path []pathStep) error {
	if len(path) == 0 {
		// Splitting the root: allocate a fresh internal root over both halves.
		rootPN, rootBuf, err := t.alloc.AllocatePage(pageTypeInternal)
		if err != nil {
			return err
		}
		newRoot := InitInternalPage(rootBuf)
		newRoot.SetLeftChild(t.root)
		if err := newRoot.rewrite([]entry{{key: splitKey, childPN: rightChildPN}}); err != nil {
			return err
		}
		if err := t.savePage(rootPN, newRoot); err != nil {
			return err
		}
		t.root = rootPN
		return nil
	}

	top := path[len(path)-1]
	entries := top.page.entries()
	idx := findInsertionPoint(entries, splitKey)
	newEntries := make([]entry, 0, len(entries)+1)
	newEntries = append(newEntries, entries[:idx]...)
	newEntries = append(newEntries, entry{key: append([]byte(nil), splitKey...), childPN: rightChildPN})
	newEntries = append(newEntries, entries[idx:]...)
	return t.insertEntries(top.pageNo, top.page, newEntries, path[:len(path)-1])
}

// Delete removes the leaf entry matching (key, id) exactly. Underflowed
// pages are left sparse rather than merged with a sibling: jetdb documents
// this as a simplification in DESIGN.md (space reclamation, not
// correctness, is what merge-on-delete buys; traversal and lookups are
// unaffected by a sparse page).
func (t *BTree) Delete(key []byte, id row.Id) error {
	leaf, leafPN, _, err := t.descend(key)
	if err != nil {
		return err
	}
	entries := leaf.entries()
	out := entries[:0:0]
	removed := false
	for _, e := range entries {
		if !removed && CompareKeys(e.key, key) == 0 && e.rowID == id {
			removed = true
			continue
		}
		out = append(out, e)
	}
	if !removed {
		return jeterr.New(jeterr.NotFound, "index entry not found")
	}
	if t.countsLoaded {
		idx := findInsertionPoint(out, key)
		stillThere, err := t.keyExistsAround(leaf, out, idx, key)
		if err != nil {
			return err
		}
		t.entryCount--
		if !stillThere {
			t.uniqueCount--
		}
	}
	if err := leaf.rewrite(out); err != nil {
		return err
	}
	return t.savePage(leafPN, leaf)
}

// Cursor walks leaf entries in ascending (or, reversed, descending) key
// order across sibling pages.
type Cursor struct {
	t         *BTree
	pageNo    uint32
	page      *Page
	idx       int
	exhausted bool
}

// NewCursor positions a cursor before the first entry of the leaf that
// would contain startKey (or the tree's leftmost leaf if startKey is nil).
func (t *BTree) NewCursor(startKey []byte) (*Cursor, error) {
	pn := t.root
	for {
		p, err := t.loadPage(pn)
		if err != nil {
			return nil, err
		}
		if p.IsLeaf() {
			idx := 0
			if startKey != nil {
				idx = findInsertionPoint(p.entries(), startKey)
			}
			return &Cursor{t: t, pageNo: pn, page: p, idx: idx - 1}, nil
		}
		entries := p.entries()
		if startKey == nil {
			pn = p.LeftChild()
			continue
		}
		fi := findInsertionPoint(entries, startKey)
		if fi == 0 {
			pn = p.LeftChild()
		} else {
			pn = entries[fi-1].childPN
		}
	}
}

// NewCursorAtEnd positions a cursor after the last entry of the tree's
// rightmost leaf, ready for Prev() to walk backward.
func (t *BTree) NewCursorAtEnd() (*Cursor, error) {
	pn := t.root
	for {
		p, err := t.loadPage(pn)
		if err != nil {
			return nil, err
		}
		if p.IsLeaf() {
			return &Cursor{t: t, pageNo: pn, page: p, idx: len(p.entries())}, nil
		}
		entries := p.entries()
		if len(entries) == 0 {
			pn = p.LeftChild()
			continue
		}
		pn = entries[len(entries)-1].childPN
	}
}

// Next advances to and returns the next (key, RowId) pair in ascending
// order, following right-sibling links across page boundaries.
func (c *Cursor) Next() ([]byte, row.Id, bool, error) {
	if c.exhausted {
		return nil, row.Id{}, false, nil
	}
	for {
		entries := c.page.entries()
		if c.idx+1 < len(entries) {
			c.idx++
			e := entries[c.idx]
			return e.key, e.rowID, true, nil
		}
		sib := c.page.RightSibling()
		if sib == 0 {
			c.exhausted = true
			return nil, row.Id{}, false, nil
		}
		p, err := c.t.loadPage(sib)
		if err != nil {
			return nil, row.Id{}, false, err
		}
		c.page = p
		c.pageNo = sib
		c.idx = -1
	}
}

// Prev moves to and returns the previous (key, RowId) pair in ascending
// order (i.e. the next one when walking the index backward), following
// left-sibling links across page boundaries.
func (c *Cursor) Prev() ([]byte, row.Id, bool, error) {
	if c.exhausted {
		return nil, row.Id{}, false, nil
	}
	for {
		if c.idx-1 >= 0 {
			c.idx--
			e := c.page.entries()[c.idx]
			return e.key, e.rowID, true, nil
		}
		sib := c.page.LeftSibling()
		if sib == 0 {
			c.exhausted = true
			return nil, row.Id{}, false, nil
		}
		p, err := c.t.loadPage(sib)
		if err != nil {
			return nil, row.Id{}, false, err
		}
		c.page = p
		c.pageNo = sib
		c.idx = len(p.entries())
	}
}

// leftmostLeaf descends to the tree's first leaf in key order.
func (t *BTree) leftmostLeaf() (*Page, uint32, error) {
	pn := t.root
	for {
		p, err := t.loadPage(pn)
		if err != nil {
			return nil, 0, err
		}
		if p.IsLeaf() {
			return p, pn, nil
		}
		pn = p.LeftChild()
	}
}

// loadCounts walks every leaf once to establish the entry and unique-entry
// counts for a tree opened over existing pages.
func (t *BTree) loadCounts() error {
	if t.countsLoaded {
		return nil
	}
	p, _, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	total, uniq := 0, 0
	var prev []byte
	havePrev := false
	for {
		for _, e := range p.entries() {
			total++
			if !havePrev || CompareKeys(prev, e.key) != 0 {
				uniq++
			}
			prev = append(prev[:0], e.key...)
			havePrev = true
		}
		sib := p.RightSibling()
		if sib == 0 {
			break
		}
		if p, err = t.loadPage(sib); err != nil {
			return err
		}
	}
	t.entryCount, t.uniqueCount, t.countsLoaded = total, uniq, true
	return nil
}

// EntryCount returns the number of entries in the tree.
func (t *BTree) EntryCount() (int, error) {
	if err := t.loadCounts(); err != nil {
		return 0, err
	}
	return t.entryCount, nil
}

// UniqueEntryCount returns the number of distinct keys in the tree.
func (t *BTree) UniqueEntryCount() (int, error) {
	if err := t.loadCounts(); err != nil {
		return 0, err
	}
	return t.uniqueCount, nil
}

// FindRange returns the RowId of every entry whose key equals key exactly,
// in (key, RowId) order. Used by the table layer's cascade machinery to
// locate every child row carrying a given foreign-key value.
func (t *BTree) FindRange(key []byte) ([]row.Id, error) {
	cur, err := t.NewCursor(key)
	if err != nil {
		return nil, err
	}
	var out []row.Id
	for {
		k, id, ok, err := cur.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		cmp := CompareKeys(k, key)
		if cmp > 0 {
			return out, nil
		}
		if cmp == 0 {
			out = append(out, id)
		}
	}
}

// Validate verifies the tree's structural invariants in one O(N)
// pass: entries
// strictly ordered by (key, RowId) under the unsigned-byte comparator,
// unique trees carry no duplicate non-NULL keys, every internal node's
// entry key is the lowest key of its right subtree, and the maintained
// entry counts match what the leaves actually hold.
func (t *BTree) Validate() error {
	if _, _, err := t.validateNode(t.root); err != nil {
		return err
	}

	p, _, err := t.leftmostLeaf()
	if err != nil {
		return err
	}
	total, uniq := 0, 0
	var prevKey []byte
	var prevID row.Id
	havePrev := false
	for {
		for _, e := range p.entries() {
			if havePrev {
				cmp := CompareKeys(prevKey, e.key)
				if cmp > 0 || (cmp == 0 && row.Compare(prevID, e.rowID) >= 0) {
					return jeterr.New(jeterr.CorruptedFormat, "index entries out of (key, rowId) order")
				}
				if cmp == 0 && t.unique && !(t.ignoreNulls && keyIsAllNull(e.key)) {
					return jeterr.New(jeterr.CorruptedFormat, "duplicate key in unique index")
				}
			}
			total++
			if !havePrev || CompareKeys(prevKey, e.key) != 0 {
				uniq++
			}
			prevKey = append(prevKey[:0], e.key...)
			prevID = e.rowID
			havePrev = true
		}
		sib := p.RightSibling()
		if sib == 0 {
			break
		}
		if p, err = t.loadPage(sib); err != nil {
			return err
		}
	}
	if t.countsLoaded && (total != t.entryCount || uniq != t.uniqueCount) {
		return jeterr.New(jeterr.CorruptedFormat, "index counts drifted: have %d/%d, leaves hold %d/%d", t.entryCount, t.uniqueCount, total, uniq)
	}
	t.entryCount, t.uniqueCount, t.countsLoaded = total, uniq, true
	return nil
}

// validateNode recursively checks the subtree rooted at pn, returning its
// lowest and highest keys.
func (t *BTree) validateNode(pn uint32) (lo, hi []byte, err error) {
	p, err := t.loadPage(pn)
	if err != nil {
		return nil, nil, err
	}
	entries := p.entries()
	if p.IsLeaf() {
		if len(entries) == 0 {
			return nil, nil, nil
		}
		return entries[0].key, entries[len(entries)-1].key, nil
	}

	lo, hi, err = t.validateNode(p.LeftChild())
	if err != nil {
		return nil, nil, err
	}
	for _, e := range entries {
		clo, chi, err := t.validateNode(e.childPN)
		if err != nil {
			return nil, nil, err
		}
		if clo != nil && CompareKeys(e.key, clo) > 0 {
			return nil, nil, jeterr.New(jeterr.CorruptedFormat, "node key exceeds its subtree's lowest key")
		}
		if hi != nil && clo != nil && CompareKeys(hi, clo) > 0 {
			return nil, nil, jeterr.New(jeterr.CorruptedFormat, "sibling subtrees out of order")
		}
		if lo == nil {
			lo = clo
		}
		if chi != nil {
			hi = chi
		}
	}
	return lo, hi, nil
}
