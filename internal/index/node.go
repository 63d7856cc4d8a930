package index

import (
	"encoding/binary"
	"sort"

	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// Node page kinds, distinguishing leaf entries (key + RowId) from internal
// entries (key + child page number). The compressed flag bit
// marks a page whose entries are prefix-compressed against their
// predecessor; this engine reads both forms but always writes
// uncompressed.
const (
	nodeKindLeaf     uint16 = 0x01
	nodeKindInternal uint16 = 0x02

	nodeFlagCompressed uint16 = 0x10
	nodeKindMask       uint16 = 0x0F
)

// nodeHeaderSize: 2-byte kind tag, 4-byte parent page number (0 = root),
// 4-byte right-sibling page number (0 = none), 2-byte entry count, 4-byte
// leftmost-child page number (internal pages only: the child holding keys
// less than entries()[0].key), 4-byte left-sibling page number (0 = none),
// enabling reverse leaf traversal without retracing from the root.
const nodeHeaderSize = 20

// entry is one decoded key/payload pair within a Page. For a leaf, payload
// is its row's 6-byte (pageNo,rowNo) address; for an internal node,
// payload is its right-hand child page number (4 bytes).
//
// Real Jet index pages prefix-compress adjacent keys against a shared
// "previous key" prefix length; jetdb stores each entry's full key bytes
// instead (documented in DESIGN.md) to keep split/merge arithmetic simple,
// while still satisfying every ordering and uniqueness property reads
// depend on.
type entry struct {
	key     []byte
	rowID   row.Id // leaf only
	childPN uint32 // internal only
}

// Page is one physical index page, either a leaf or an internal node.
type Page struct {
	Buf        []byte
	Kind       uint16
	compressed bool
}

func NewPage(buf []byte) *Page {
	raw := binary.LittleEndian.Uint16(buf[0:2])
	return &Page{Buf: buf, Kind: raw & nodeKindMask, compressed: raw&nodeFlagCompressed != 0}
}

func InitLeafPage(buf []byte) *Page {
	p := &Page{Buf: buf, Kind: nodeKindLeaf}
	p.init(nodeKindLeaf)
	return p
}

func InitInternalPage(buf []byte) *Page {
	p := &Page{Buf: buf, Kind: nodeKindInternal}
	p.init(nodeKindInternal)
	return p
}

func (p *Page) init(kind uint16) {
	binary.LittleEndian.PutUint16(p.Buf[0:2], kind)
	binary.LittleEndian.PutUint32(p.Buf[2:6], 0)
	binary.LittleEndian.PutUint32(p.Buf[6:10], 0)
	binary.LittleEndian.PutUint16(p.Buf[10:12], 0)
}

func (p *Page) IsLeaf() bool { return p.Kind == nodeKindLeaf }

func (p *Page) Parent() uint32            { return binary.LittleEndian.Uint32(p.Buf[2:6]) }
func (p *Page) SetParent(pn uint32)       { binary.LittleEndian.PutUint32(p.Buf[2:6], pn) }
func (p *Page) RightSibling() uint32      { return binary.LittleEndian.Uint32(p.Buf[6:10]) }
func (p *Page) SetRightSibling(pn uint32) { binary.LittleEndian.PutUint32(p.Buf[6:10], pn) }
func (p *Page) Count() int                { return int(binary.LittleEndian.Uint16(p.Buf[10:12])) }
func (p *Page) setCount(n int)            { binary.LittleEndian.PutUint16(p.Buf[10:12], uint16(n)) }

// LeftChild is the leftmost child pointer of an internal page: the child
// holding every key less than entries()[0].key.
func (p *Page) LeftChild() uint32      { return binary.LittleEndian.Uint32(p.Buf[12:16]) }
func (p *Page) SetLeftChild(pn uint32) { binary.LittleEndian.PutUint32(p.Buf[12:16], pn) }

// LeftSibling is the page to this leaf's left in key order (0 = none).
func (p *Page) LeftSibling() uint32      { return binary.LittleEndian.Uint32(p.Buf[16:20]) }
func (p *Page) SetLeftSibling(pn uint32) { binary.LittleEndian.PutUint32(p.Buf[16:20], pn) }

// entries decodes every entry on the page, in key order (entries are
// always kept sorted on disk, so no further sort is needed here).
//
// Two on-disk entry forms are understood: the uncompressed form this
// engine writes ([keyLen u16][key][payload]), and the prefix-compressed
// form the original product may have written ([sharedPrefix u8]
// [suffixLen u16][suffix][payload]), where each key reuses the leading
// sharedPrefix bytes of its predecessor.
func (p *Page) entries() []entry {
	n := p.Count()
	out := make([]entry, 0, n)
	pos := nodeHeaderSize
	var prev []byte
	for i := 0; i < n; i++ {
		var key []byte
		if p.compressed {
			shared := int(p.Buf[pos])
			pos++
			suffixLen := int(binary.LittleEndian.Uint16(p.Buf[pos : pos+2]))
			pos += 2
			if shared > len(prev) {
				shared = len(prev)
			}
			key = make([]byte, 0, shared+suffixLen)
			key = append(key, prev[:shared]...)
			key = append(key, p.Buf[pos:pos+suffixLen]...)
			pos += suffixLen
		} else {
			klen := int(binary.LittleEndian.Uint16(p.Buf[pos : pos+2]))
			pos += 2
			// Copied, not sliced: callers hold these keys across rewrites
			// and splits of this same buffer.
			key = append([]byte(nil), p.Buf[pos:pos+klen]...)
			pos += klen
		}
		prev = key
		var e entry
		e.key = key
		if p.IsLeaf() {
			e.rowID = row.Id{
				PageNo: binary.LittleEndian.Uint32(p.Buf[pos : pos+4]),
				RowNo:  binary.LittleEndian.Uint16(p.Buf[pos+4 : pos+6]),
			}
			pos += 6
		} else {
			e.childPN = binary.LittleEndian.Uint32(p.Buf[pos : pos+4])
			pos += 4
		}
		out = append(out, e)
	}
	return out
}

func entrySize(e entry, leaf bool) int {
	if leaf {
		return 2 + len(e.key) + 6
	}
	return 2 + len(e.key) + 4
}

// UsedBytes returns how many bytes the page's entries currently occupy.
func (p *Page) UsedBytes() int {
	total := nodeHeaderSize
	for _, e := range p.entries() {
		total += entrySize(e, p.IsLeaf())
	}
	return total
}

// rewrite serializes entries back into the page buffer in order,
// replacing whatever was there before. Always emits the uncompressed
// entry form, clearing the compressed flag if the page carried one.
// Serialization goes through a scratch buffer first, so a caller-supplied
// key that aliases this very page's bytes is never overwritten before it
// is read.
func (p *Page) rewrite(entries []entry) error {
	if p.compressed {
		p.compressed = false
		binary.LittleEndian.PutUint16(p.Buf[0:2], p.Kind)
	}
	scratch := make([]byte, len(p.Buf)-nodeHeaderSize)
	pos := 0
	for _, e := range entries {
		need := entrySize(e, p.IsLeaf())
		if pos+need > len(scratch) {
			return jeterr.New(jeterr.CorruptedFormat, "index page overflow while rewriting (%d entries)", len(entries))
		}
		binary.LittleEndian.PutUint16(scratch[pos:pos+2], uint16(len(e.key)))
		pos += 2
		copy(scratch[pos:], e.key)
		pos += len(e.key)
		if p.IsLeaf() {
			binary.LittleEndian.PutUint32(scratch[pos:pos+4], e.rowID.PageNo)
			binary.LittleEndian.PutUint16(scratch[pos+4:pos+6], e.rowID.RowNo)
			pos += 6
		} else {
			binary.LittleEndian.PutUint32(scratch[pos:pos+4], e.childPN)
			pos += 4
		}
	}
	copy(p.Buf[nodeHeaderSize:], scratch[:pos])
	p.setCount(len(entries))
	return nil
}

// findInsertionPoint returns the index within entries() at which an entry
// with the given key should be inserted to keep the page sorted, using
// CompareKeys.
func findInsertionPoint(entries []entry, key []byte) int {
	return sort.Search(len(entries), func(i int) bool {
		return CompareKeys(entries[i].key, key) >= 0
	})
}

// findLeafInsertionPoint is findInsertionPoint with the (key, RowId)
// composite order a leaf stores its entries in: within a run of equal
// keys the new entry lands at its RowId-ordered slot, keeping duplicate
// keys ascending by RowId.
func findLeafInsertionPoint(entries []entry, key []byte, id row.Id) int {
	return sort.Search(len(entries), func(i int) bool {
		c := CompareKeys(entries[i].key, key)
		if c != 0 {
			return c > 0
		}
		return row.Compare(entries[i].rowID, id) >= 0
	})
}
