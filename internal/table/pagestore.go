// Package table implements the Table and Cursor layer:
// metadata-plus-owned-pages table objects, row CRUD routed through
// internal/row and internal/index, auto-number sequencing, and forward/
// reverse scanning cursors with concurrent-modification revalidation.
package table

import (
	"github.com/jahlborn/jackcess-sub007/internal/page"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// PageStore adapts a page.Channel plus the UsageMap that tracks which
// pages belong to one table or index into the small allocate/read/write
// contract internal/row and internal/index each depend on
// (row.PageAllocator, index.PageAllocator): the two interfaces are
// structurally identical by design, so one adapter type serves both.
type PageStore struct {
	ch    *page.Channel
	owned *page.UsageMap
}

// NewPageStore wraps ch for the pages tracked by owned.
func NewPageStore(ch *page.Channel, owned *page.UsageMap) *PageStore {
	return &PageStore{ch: ch, owned: owned}
}

// AllocatePage takes a page from the channel (a reclaimed free page if
// one is available, otherwise a new page at the end of the file), registers it in this store's
// owned-pages map, and returns a zeroed buffer ready for the caller to
// format as a data/leaf/internal page.
func (s *PageStore) AllocatePage(pageType uint16) (uint32, []byte, error) {
	pn, err := s.ch.AllocateNewPage()
	if err != nil {
		return 0, nil, err
	}
	s.owned.Add(pn)
	return pn, make([]byte, s.ch.Format().PageSize), nil
}

// ReadPage reads pn's current bytes through the channel's codec.
func (s *PageStore) ReadPage(pn uint32) ([]byte, error) {
	if !s.owned.Contains(pn) {
		return nil, jeterr.New(jeterr.CorruptedFormat, "page %d is not owned by this store", pn)
	}
	return s.ch.ReadPage(pn)
}

// WritePage persists pn's full page image.
func (s *PageStore) WritePage(pn uint32, buf []byte) error {
	return s.ch.WritePage(buf, pn, 0)
}

// OwnedPages exposes the usage map backing this store, for callers that
// need to iterate every page the table/index currently owns.
func (s *PageStore) OwnedPages() *page.UsageMap { return s.owned }

// PageSize is the channel's fixed page size.
func (s *PageStore) PageSize() int { return s.ch.Format().PageSize }
