package row

import (
	"encoding/binary"

	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// Long-value cell markers: a MEMO/OLE column's row-physical
// bytes are either the literal payload (inline) or a small pointer cell
// identified by one of these leading marker bytes.
const (
	longValueMarkerInline     byte = 0x00
	longValueMarkerSinglePage byte = 0x01
	longValueMarkerMultiPage  byte = 0x02
)

// inlineLongValueThreshold is the largest payload jetdb stores directly in
// the row rather than overflowing to a long-value page chain. Real Access
// files vary this by row width; jetdb fixes it, a simplification that keeps
// long-value round-trips exact without the original's per-row free-space
// heuristic.
const inlineLongValueThreshold = 256

// encodeLongValueCell packs a LongValueRef into the small pointer cell a
// row stores in place of an overflowed MEMO/OLE payload.
func encodeLongValueCell(ref values.LongValueRef) []byte {
	if ref.IsInline() {
		out := make([]byte, 1+len(ref.Inline))
		out[0] = longValueMarkerInline
		copy(out[1:], ref.Inline)
		return out
	}
	marker := longValueMarkerSinglePage
	if ref.MultiPage {
		marker = longValueMarkerMultiPage
	}
	out := make([]byte, 10)
	out[0] = marker
	binary.LittleEndian.PutUint32(out[1:5], ref.Length)
	binary.LittleEndian.PutUint32(out[5:9], ref.PageNo)
	out[9] = ref.RowNo
	return out
}

// decodeLongValueCell is the inverse of encodeLongValueCell.
func decodeLongValueCell(cell []byte) (values.LongValueRef, error) {
	if len(cell) == 0 {
		return values.LongValueRef{}, jeterr.New(jeterr.CorruptedFormat, "empty long-value cell")
	}
	switch cell[0] {
	case longValueMarkerInline:
		return values.LongValueRef{Inline: append([]byte(nil), cell[1:]...)}, nil
	case longValueMarkerSinglePage, longValueMarkerMultiPage:
		if len(cell) < 10 {
			return values.LongValueRef{}, jeterr.New(jeterr.CorruptedFormat, "short long-value pointer cell")
		}
		return values.LongValueRef{
			Length:    binary.LittleEndian.Uint32(cell[1:5]),
			PageNo:    binary.LittleEndian.Uint32(cell[5:9]),
			RowNo:     cell[9],
			MultiPage: cell[0] == longValueMarkerMultiPage,
		}, nil
	default:
		return values.LongValueRef{}, jeterr.New(jeterr.CorruptedFormat, "unknown long-value cell marker 0x%02x", cell[0])
	}
}

// LongValueStore reads and writes MEMO/OLE payloads that overflow out of
// their row, chaining across long-value data pages the same way ordinary
// table rows chain across data pages: each chunk is itself stored as a row
// (flagged FlagOverflow) on a page managed through the channel's usage-map
// allocator.
type LongValueStore struct {
	alloc PageAllocator
}

// PageAllocator is the subset of page.Channel/UsageMap behavior
// LongValueStore needs: allocate a fresh page of a given type and read an
// existing one back by number.
type PageAllocator interface {
	AllocatePage(pageType uint16) (uint32, []byte, error)
	ReadPage(pageNo uint32) ([]byte, error)
	WritePage(pageNo uint32, buf []byte) error
}

// NewLongValueStore builds a store backed by alloc.
func NewLongValueStore(alloc PageAllocator) *LongValueStore {
	return &LongValueStore{alloc: alloc}
}

// longValuePageType tags long-value data pages distinctly from ordinary
// table row-storage pages, even though both use the DataPage layout.
const longValuePageType = 0x0050

// Put stores payload, choosing inline/single-page/multi-page framing per
// and returns the LongValueRef a row should carry.
func (s *LongValueStore) Put(payload []byte) (values.LongValueRef, error) {
	if len(payload) <= inlineLongValueThreshold {
		return values.LongValueRef{Inline: append([]byte(nil), payload...), Length: uint32(len(payload))}, nil
	}

	pageNo, buf, err := s.alloc.AllocatePage(longValuePageType)
	if err != nil {
		return values.LongValueRef{}, err
	}
	dp := InitDataPage(buf, longValuePageType)

	chunkCap := dp.PageSize - dataPageHeaderSize - dirEntrySize - 2
	if len(payload) <= chunkCap {
		rowNo, err := dp.AddRow(payload, FlagOverflow)
		if err != nil {
			return values.LongValueRef{}, err
		}
		if err := s.alloc.WritePage(pageNo, dp.Buf); err != nil {
			return values.LongValueRef{}, err
		}
		return values.LongValueRef{Length: uint32(len(payload)), PageNo: pageNo, RowNo: byte(rowNo), MultiPage: false}, nil
	}

	// Multi-page: chain payload across as many long-value pages as needed,
	// each row holding one chunk plus a trailing 4-byte next-page pointer
	// (0 terminates the chain).
	remaining := payload
	var firstPageNo uint32
	var firstRowNo byte
	var prevPage *DataPage
	var prevPageNo uint32
	var prevRowNo byte
	first := true

	for len(remaining) > 0 {
		pn, pb, err := s.alloc.AllocatePage(longValuePageType)
		if err != nil {
			return values.LongValueRef{}, err
		}
		page := InitDataPage(pb, longValuePageType)
		chunkCap := page.PageSize - dataPageHeaderSize - dirEntrySize - 2 - 4
		chunk := remaining
		if len(chunk) > chunkCap {
			chunk = remaining[:chunkCap]
		}
		remaining = remaining[len(chunk):]

		framed := make([]byte, len(chunk)+4)
		copy(framed, chunk)
		// next-page pointer patched in once we know if there is a next page
		rowNo, err := page.AddRow(framed, FlagOverflow)
		if err != nil {
			return values.LongValueRef{}, err
		}
		if err := s.alloc.WritePage(pn, page.Buf); err != nil {
			return values.LongValueRef{}, err
		}

		if first {
			firstPageNo, firstRowNo = pn, byte(rowNo)
			first = false
		} else {
			rb, _, err := prevPage.RowBytes(uint16(prevRowNo))
			if err != nil {
				return values.LongValueRef{}, err
			}
			binary.LittleEndian.PutUint32(rb[len(rb)-4:], pn)
			if err := s.alloc.WritePage(prevPageNo, prevPage.Buf); err != nil {
				return values.LongValueRef{}, err
			}
		}
		prevPage, prevPageNo, prevRowNo = page, pn, byte(rowNo)
	}

	return values.LongValueRef{Length: uint32(len(payload)), PageNo: firstPageNo, RowNo: firstRowNo, MultiPage: true}, nil
}

// Get resolves ref to its full payload.
func (s *LongValueStore) Get(ref values.LongValueRef) ([]byte, error) {
	if ref.IsInline() {
		return ref.Inline, nil
	}
	if !ref.MultiPage {
		buf, err := s.alloc.ReadPage(ref.PageNo)
		if err != nil {
			return nil, err
		}
		dp := NewDataPage(buf)
		data, _, err := dp.RowBytes(uint16(ref.RowNo))
		if err != nil {
			return nil, err
		}
		return append([]byte(nil), data...), nil
	}

	var out []byte
	pageNo, rowNo := ref.PageNo, ref.RowNo
	for {
		buf, err := s.alloc.ReadPage(pageNo)
		if err != nil {
			return nil, err
		}
		dp := NewDataPage(buf)
		framed, _, err := dp.RowBytes(uint16(rowNo))
		if err != nil {
			return nil, err
		}
		if len(framed) < 4 {
			return nil, jeterr.New(jeterr.CorruptedFormat, "long-value chunk too short for chain pointer")
		}
		chunk := framed[:len(framed)-4]
		next := binary.LittleEndian.Uint32(framed[len(framed)-4:])
		out = append(out, chunk...)
		if next == 0 {
			break
		}
		pageNo, rowNo = next, 0
	}
	if uint32(len(out)) != ref.Length {
		return nil, jeterr.New(jeterr.CorruptedFormat, "long-value length mismatch: want %d, read %d", ref.Length, len(out))
	}
	return out, nil
}
