package page

import (
	"sort"

	"github.com/OneOfOne/xxhash"
)

// encoding selects how a UsageMap's bits are physically stored.
type encoding byte

const (
	encodingInline encoding = iota
	encodingReference
)

// inlineCapacityBits is the number of bits an inline usage map can hold
// before it must be promoted to the reference encoding.
const inlineCapacityBits = 4000

// referencePageCapacityBits is how many bits one reference-indirected page
// holds.
const referencePageCapacityBits = 32000

// UsageMap is a sparse set of page numbers, used both for a table's owned
// data pages and for the file-wide free-page map.
type UsageMap struct {
	enc        encoding
	startPage  uint32 // first page number the bitmap's bit 0 represents
	bits       map[uint32]bool
	referenced []uint32 // for encodingReference: the indirection pages backing this map
	generation uint64
	isGlobal   bool // the global free-page map: pages outside tracked range are implicitly present
}

// NewInlineUsageMap creates an empty inline-encoded usage map.
func NewInlineUsageMap(startPage uint32) *UsageMap {
	return &UsageMap{enc: encodingInline, startPage: startPage, bits: map[uint32]bool{}}
}

// NewGlobalUsageMap creates the file-wide free-page map: pages never
// explicitly added are implicitly present (free) until first touched.
func NewGlobalUsageMap() *UsageMap {
	return &UsageMap{enc: encodingReference, bits: map[uint32]bool{}, isGlobal: true}
}

// Fingerprint returns a cheap xxhash digest of the map's current membership
// (its page numbers in ascending order).
func (m *UsageMap) Fingerprint() uint64 {
	h := xxhash.New64()
	pages := m.pages()
	buf := make([]byte, 4)
	for _, p := range pages {
		buf[0] = byte(p)
		buf[1] = byte(p >> 8)
		buf[2] = byte(p >> 16)
		buf[3] = byte(p >> 24)
		h.Write(buf)
	}
	return h.Sum64()
}

// Generation returns a counter that changes whenever the map's membership
// changes, for cursors to detect concurrent modification.
func (m *UsageMap) Generation() uint64 { return m.generation }

func (m *UsageMap) bump() { m.generation++ }

// Contains reports whether pageNo is a member of this map.
func (m *UsageMap) Contains(pageNo uint32) bool {
	if v, ok := m.bits[pageNo]; ok {
		return v
	}
	return m.isGlobal
}

// Add marks pageNo as a member, promoting inline to reference encoding if
// the inline bitmap's span would overflow its fixed capacity.
func (m *UsageMap) Add(pageNo uint32) {
	if m.bits[pageNo] {
		return
	}
	m.bits[pageNo] = true
	m.bump()
	m.maybePromote(pageNo)
}

// Remove clears pageNo's membership.
func (m *UsageMap) Remove(pageNo uint32) {
	if !m.Contains(pageNo) {
		return
	}
	if m.isGlobal {
		m.bits[pageNo] = false
	} else {
		delete(m.bits, pageNo)
	}
	m.bump()
}

func (m *UsageMap) maybePromote(pageNo uint32) {
	if m.enc == encodingReference {
		return
	}
	span := int64(pageNo) - int64(m.startPage)
	if span < 0 {
		span = -span
	}
	if span >= inlineCapacityBits {
		m.promote()
	}
}

// promote converts an inline map to the reference encoding once its bit
// range has overflowed inline capacity, preserving existing membership.
func (m *UsageMap) promote() {
	if m.enc == encodingReference {
		return
	}
	m.enc = encodingReference
	// Reference pages are assigned lazily by the table/segment layer that
	// owns this map; here we only flip the encoding and recompute how many
	// indirection pages the current membership would require.
	count := len(m.pages())
	needed := (count + referencePageCapacityBits - 1) / referencePageCapacityBits
	if needed == 0 {
		needed = 1
	}
	m.referenced = make([]uint32, needed)
}

// IsReference reports whether this map has been promoted.
func (m *UsageMap) IsReference() bool { return m.enc == encodingReference }

// Pages returns every page number currently in the map, ascending. Used
// by the catalog layer to persist a table's owned-pages membership across
// close/reopen.
func (m *UsageMap) Pages() []uint32 { return m.pages() }

func (m *UsageMap) pages() []uint32 {
	out := make([]uint32, 0, len(m.bits))
	for p, present := range m.bits {
		if present {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// FirstPageNumber returns the smallest page number in the map, or ok=false
// if the map is empty.
func (m *UsageMap) FirstPageNumber() (uint32, bool) {
	pages := m.pages()
	if len(pages) == 0 {
		return 0, false
	}
	return pages[0], true
}

// LastPageNumber returns the largest page number in the map, or ok=false
// if the map is empty.
func (m *UsageMap) LastPageNumber() (uint32, bool) {
	pages := m.pages()
	if len(pages) == 0 {
		return 0, false
	}
	return pages[len(pages)-1], true
}

// Cursor walks a UsageMap's page numbers in order, forward or reverse,
// re-seeking transparently if the map's generation changes underneath it.
type Cursor struct {
	m          *UsageMap
	generation uint64
	pos        int // index into a sorted snapshot; -1 = before-first
	snapshot   []uint32
}

// NewCursor creates a cursor positioned before the first page, ready for
// Next() to walk forward.
func (m *UsageMap) NewCursor() *Cursor {
	c := &Cursor{m: m}
	c.reseek()
	c.pos = -1
	return c
}

// NewCursorAtEnd creates a cursor positioned after the last page, ready
// for Prev() to walk backward.
func (m *UsageMap) NewCursorAtEnd() *Cursor {
	c := &Cursor{m: m}
	c.reseek()
	c.pos = len(c.snapshot)
	return c
}

func (c *Cursor) reseek() {
	c.snapshot = c.m.pages()
	c.generation = c.m.generation
}

func (c *Cursor) ensureFresh() {
	if c.generation != c.m.generation {
		// Preserve relative position by re-finding the last page number we
		// were on, the same "revalidate against the previous position"
		// contract cursors use elsewhere.
		var last uint32
		hadLast := c.pos >= 0 && c.pos < len(c.snapshot)
		afterEnd := c.pos >= len(c.snapshot)
		if hadLast {
			last = c.snapshot[c.pos]
		}
		c.reseek()
		if afterEnd {
			c.pos = len(c.snapshot)
			return
		}
		if !hadLast {
			return
		}
		idx := sort.Search(len(c.snapshot), func(i int) bool { return c.snapshot[i] >= last })
		if idx < len(c.snapshot) && c.snapshot[idx] == last {
			c.pos = idx
		} else {
			c.pos = idx - 1
		}
	}
}

// Next advances to and returns the next page number, or ok=false at end.
func (c *Cursor) Next() (uint32, bool) {
	c.ensureFresh()
	if c.pos+1 >= len(c.snapshot) {
		c.pos = len(c.snapshot)
		return 0, false
	}
	c.pos++
	return c.snapshot[c.pos], true
}

// Prev moves to and returns the previous page number, or ok=false at start.
func (c *Cursor) Prev() (uint32, bool) {
	c.ensureFresh()
	if c.pos <= 0 {
		c.pos = -1
		return 0, false
	}
	c.pos--
	return c.snapshot[c.pos], true
}

// Reset repositions the cursor before the first page.
func (c *Cursor) Reset() {
	c.reseek()
	c.pos = -1
}
