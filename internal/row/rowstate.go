package row

// PageReader is the read-side subset of PageAllocator a RowState needs.
type PageReader interface {
	ReadPage(pageNo uint32) ([]byte, error)
}

// RowState is a read-cursor cache: it holds the current
// data page, the most recently parsed row's directory entry, a deleted
// flag, and an "up-to-date" generation. Callers position it at a RowId
// and read through it; if the table reports a newer generation the cached
// page is dropped and re-read transparently.
type RowState struct {
	reader PageReader

	pageNo  uint32
	page    *DataPage
	haveRow bool
	rowNo   uint16
	rowData []byte
	flags   byte

	generation uint64
}

// NewRowState builds an empty state reading through reader.
func NewRowState(reader PageReader) *RowState {
	return &RowState{reader: reader}
}

// Invalidate drops every cached page and row, forcing the next position
// call to re-read from disk, unless generation equals the one already
// recorded and a page is cached, in which case it keeps the cache. Cursors
// call this with the owning table's current generation counter.
func (s *RowState) Invalidate(generation uint64) {
	if generation == s.generation && s.page != nil {
		return
	}
	s.page = nil
	s.haveRow = false
	s.generation = generation
}

// Generation returns the table generation this state last revalidated at.
func (s *RowState) Generation() uint64 { return s.generation }

func (s *RowState) loadPage(pageNo uint32) (*DataPage, error) {
	if s.page != nil && s.pageNo == pageNo {
		return s.page, nil
	}
	buf, err := s.reader.ReadPage(pageNo)
	if err != nil {
		return nil, err
	}
	s.page = NewDataPage(buf)
	s.pageNo = pageNo
	s.haveRow = false
	return s.page, nil
}

// PositionAtRowHeader reads id's data page (from cache when the page is
// unchanged) and decodes its row directory entry, caching the row's
// packed bytes and flags.
func (s *RowState) PositionAtRowHeader(id Id) (*DataPage, error) {
	dp, err := s.loadPage(id.PageNo)
	if err != nil {
		return nil, err
	}
	if s.haveRow && s.rowNo == id.RowNo {
		return dp, nil
	}
	data, flags, err := dp.RowBytes(id.RowNo)
	if err != nil {
		return nil, err
	}
	s.rowNo, s.rowData, s.flags, s.haveRow = id.RowNo, data, flags, true
	return dp, nil
}

// PositionAtRowData positions at id and returns the row's packed bytes,
// for the caller to unpack into column values. Returns the
// deleted flag alongside so callers can skip tombstones without a second
// directory decode.
func (s *RowState) PositionAtRowData(id Id) ([]byte, bool, error) {
	if _, err := s.PositionAtRowHeader(id); err != nil {
		return nil, false, err
	}
	return s.rowData, s.flags&FlagDeleted != 0, nil
}

// IsDeleted reports the cached row's tombstone flag. Only meaningful
// after a successful position call.
func (s *RowState) IsDeleted() bool { return s.haveRow && s.flags&FlagDeleted != 0 }

// RowCountAt returns the row count of page pageNo, positioning the page
// cache there as a side effect.
func (s *RowState) RowCountAt(pageNo uint32) (uint16, error) {
	dp, err := s.loadPage(pageNo)
	if err != nil {
		return 0, err
	}
	return dp.RowCount(), nil
}
