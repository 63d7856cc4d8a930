package row

import (
	"encoding/binary"

	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// Per-row directory entry flags.
const (
	FlagDeleted     byte = 1 << 0
	FlagOverflow    byte = 1 << 1
	FlagHasNullMask byte = 1 << 2
)

// dataPageHeaderSize: a 2-byte page-type tag, 2-byte row count, 2-byte
// free-space-pointer.
const dataPageHeaderSize = 6

// dirEntrySize: 2-byte row offset + 1-byte flags.
const dirEntrySize = 3

// DataPage is an in-memory view over one data page's bytes: a header, a
// forward-growing region of packed row bytes, and a backward-growing
// per-row directory.
type DataPage struct {
	Buf      []byte
	PageSize int
}

// NewDataPage wraps an existing page buffer (read from the channel).
func NewDataPage(buf []byte) *DataPage {
	return &DataPage{Buf: buf, PageSize: len(buf)}
}

// InitDataPage formats a freshly allocated page as an empty data page.
func InitDataPage(buf []byte, pageType uint16) *DataPage {
	binary.LittleEndian.PutUint16(buf[0:2], pageType)
	binary.LittleEndian.PutUint16(buf[2:4], 0)                          // row count
	binary.LittleEndian.PutUint16(buf[4:6], uint16(dataPageHeaderSize)) // free space starts here
	return &DataPage{Buf: buf, PageSize: len(buf)}
}

func (p *DataPage) RowCount() uint16 { return binary.LittleEndian.Uint16(p.Buf[2:4]) }

func (p *DataPage) setRowCount(n uint16) { binary.LittleEndian.PutUint16(p.Buf[2:4], n) }

func (p *DataPage) freeStart() uint16 { return binary.LittleEndian.Uint16(p.Buf[4:6]) }

func (p *DataPage) setFreeStart(v uint16) { binary.LittleEndian.PutUint16(p.Buf[4:6], v) }

// dirOffset returns the byte offset of rowNo's directory entry (the
// directory grows backward from the end of the page).
func (p *DataPage) dirOffset(rowNo uint16) int {
	return p.PageSize - (int(rowNo)+1)*dirEntrySize
}

func (p *DataPage) readDir(rowNo uint16) (offset uint16, flags byte) {
	o := p.dirOffset(rowNo)
	return binary.LittleEndian.Uint16(p.Buf[o : o+2]), p.Buf[o+2]
}

func (p *DataPage) writeDir(rowNo uint16, offset uint16, flags byte) {
	o := p.dirOffset(rowNo)
	binary.LittleEndian.PutUint16(p.Buf[o:o+2], offset)
	p.Buf[o+2] = flags
}

// FreeSpace returns how many bytes remain between the packed rows and the
// directory for a new row (including its own directory entry).
func (p *DataPage) FreeSpace() int {
	n := int(p.RowCount())
	dirStart := p.PageSize - n*dirEntrySize
	return dirStart - int(p.freeStart()) - dirEntrySize
}

// AddRow appends data as a new row (framed with a 2-byte length prefix so
// RowBytes can recover its extent without relying on directory ordering),
// returning its row number. Fails with InvalidArgument unless
// FreeSpace() >= len(data)+2 (FreeSpace already counts the new directory
// entry).
func (p *DataPage) AddRow(data []byte, flags byte) (uint16, error) {
	framed := 2 + len(data)
	if p.FreeSpace() < framed {
		return 0, jeterr.New(jeterr.InvalidArgument, "row of %d bytes does not fit (free space %d)", len(data), p.FreeSpace())
	}
	rowNo := p.RowCount()
	start := p.freeStart()
	binary.LittleEndian.PutUint16(p.Buf[start:start+2], uint16(len(data)))
	copy(p.Buf[start+2:], data)
	p.writeDir(rowNo, start, flags)
	p.setFreeStart(start + uint16(framed))
	p.setRowCount(rowNo + 1)
	return rowNo, nil
}

// RowBytes returns the raw packed bytes for rowNo and its directory flags.
func (p *DataPage) RowBytes(rowNo uint16) ([]byte, byte, error) {
	if rowNo >= p.RowCount() {
		return nil, 0, jeterr.New(jeterr.CorruptedFormat, "row %d out of range (page has %d rows)", rowNo, p.RowCount())
	}
	offset, flags := p.readDir(rowNo)
	end := p.freeStart()
	// The row's extent comes from its 2-byte length prefix, not from the
	// next row's offset: an in-place update can shrink a row without
	// moving its neighbours, so adjacency says nothing about length.
	length := binary.LittleEndian.Uint16(p.Buf[offset : offset+2])
	rowStart := offset + 2
	rowEnd := int(rowStart) + int(length)
	if rowEnd > int(end) {
		return nil, 0, jeterr.New(jeterr.CorruptedFormat, "row %d length %d overruns page", rowNo, length)
	}
	return p.Buf[rowStart:rowEnd], flags, nil
}

// SetDeleted marks rowNo's directory entry as a tombstone.
func (p *DataPage) SetDeleted(rowNo uint16, deleted bool) error {
	if rowNo >= p.RowCount() {
		return jeterr.New(jeterr.CorruptedFormat, "row %d out of range", rowNo)
	}
	offset, flags := p.readDir(rowNo)
	if deleted {
		flags |= FlagDeleted
	} else {
		flags &^= FlagDeleted
	}
	p.writeDir(rowNo, offset, flags)
	return nil
}

// IsDeleted reports rowNo's tombstone flag.
func (p *DataPage) IsDeleted(rowNo uint16) bool {
	_, flags := p.readDir(rowNo)
	return flags&FlagDeleted != 0
}

// Flags returns rowNo's directory flags.
func (p *DataPage) Flags(rowNo uint16) byte {
	_, flags := p.readDir(rowNo)
	return flags
}

// FitsInPlace reports whether newData could overwrite rowNo's current slot
// without moving any other row (same or smaller length).
func (p *DataPage) FitsInPlace(rowNo uint16, newData []byte) bool {
	offset, _ := p.readDir(rowNo)
	curLen := binary.LittleEndian.Uint16(p.Buf[offset : offset+2])
	return len(newData) <= int(curLen)
}

// UpdateInPlace overwrites rowNo's bytes; the new payload must be no
// larger than what FitsInPlace validated.
func (p *DataPage) UpdateInPlace(rowNo uint16, newData []byte) error {
	offset, flags := p.readDir(rowNo)
	curLen := binary.LittleEndian.Uint16(p.Buf[offset : offset+2])
	if len(newData) > int(curLen) {
		return jeterr.New(jeterr.InvalidArgument, "UpdateInPlace: new row (%d bytes) exceeds slot (%d bytes)", len(newData), curLen)
	}
	binary.LittleEndian.PutUint16(p.Buf[offset:offset+2], uint16(len(newData)))
	copy(p.Buf[offset+2:], newData)
	p.writeDir(rowNo, offset, flags)
	return nil
}

// Compact reclaims space left by deleted/shrunk rows by repacking all live
// row bytes contiguously from the start of the row area; a deleted row
// keeps its directory entry with an empty body. Row numbers (and
// therefore RowIds) are preserved; only byte offsets move.
func (p *DataPage) Compact() {
	n := p.RowCount()
	type slot struct {
		rowNo  uint16
		offset uint16
		length uint16
		flags  byte
	}
	slots := make([]slot, 0, n)
	for i := uint16(0); i < n; i++ {
		offset, flags := p.readDir(i)
		length := binary.LittleEndian.Uint16(p.Buf[offset : offset+2])
		slots = append(slots, slot{i, offset, length, flags})
	}
	cursor := uint16(dataPageHeaderSize)
	scratch := make([]byte, p.PageSize)
	for _, s := range slots {
		framed := s.length + 2
		if s.flags&FlagDeleted != 0 {
			// A tombstone keeps its row number but not its bytes.
			binary.LittleEndian.PutUint16(scratch[cursor:], 0)
			framed = 2
		} else {
			copy(scratch[cursor:], p.Buf[s.offset:s.offset+framed])
		}
		p.writeDir(s.rowNo, cursor, s.flags)
		cursor += framed
	}
	copy(p.Buf[dataPageHeaderSize:], scratch[dataPageHeaderSize:cursor])
	p.setFreeStart(cursor)
}

// PageTypeTag returns the 2-byte page type a formatted page carries in its
// first two bytes, for callers that must classify a page (data, index,
// long-value) before interpreting it.
func PageTypeTag(buf []byte) uint16 {
	if len(buf) < 2 {
		return 0
	}
	return binary.LittleEndian.Uint16(buf[0:2])
}
