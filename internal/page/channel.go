package page

import (
	"os"
	"sync"

	"github.com/jahlborn/jackcess-sub007/internal/format"
	"github.com/jahlborn/jackcess-sub007/jeterr"
	"github.com/jahlborn/jackcess-sub007/jetlog"
)

var log = jetlog.For("pagechannel")

// Channel is paged I/O over a single open file handle: it allocates,
// reads, writes, and deallocates fixed-size pages, applies/removes the
// header mask on page 0, and delegates per-page encrypt/decrypt to a
// CodecHandler.
//
// A Channel owns its *os.File exclusively for its lifetime: Open/Create
// acquire it, Close releases it on every exit path.
type Channel struct {
	mu     sync.RWMutex
	file   *os.File
	format *format.Descriptor
	codec  CodecHandler

	autoSync bool
	readOnly bool

	// writeBracket is true while a StartWrite/FinishWrite batch is open;
	// auto-sync is deferred until the bracket closes.
	writeBracket bool

	// globalFree is the sole authority for free pages: DeallocatePage returns page numbers here and
	// AllocateNewPage drains it before growing the file.
	globalFree *UsageMap
}

// Open opens path for an existing database, detecting its format version
// from the (mask-reversed) page-0 signature.
func Open(path string, readOnly bool) (*Channel, error) {
	flag := os.O_RDWR
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0o666)
	if err != nil {
		return nil, jeterr.Wrap(err, jeterr.IoFailure, "open %s", path)
	}
	c := &Channel{file: f, codec: Identity(), readOnly: readOnly, globalFree: NewInlineUsageMap(0)}

	// Detect format from page 0. We don't yet know the page size, so peek
	// the largest possible header region and unmask using every known
	// format's mask at its own offset, then match signatures.
	probe := make([]byte, 4096)
	n, err := f.ReadAt(probe, 0)
	if err != nil && n == 0 {
		f.Close()
		return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "read page-0 header of %s", path)
	}
	probe = probe[:n]

	var detected *format.Descriptor
	for _, v := range []format.Version{format.VersionJet5, format.VersionJet4, format.VersionJet3} {
		d, _ := format.For(v)
		unmasked := append([]byte(nil), probe...)
		unmask(unmasked, d)
		if dv, ok := format.DetectFromPageZero(unmasked); ok && dv == v {
			detected = d
			break
		}
	}
	if detected == nil {
		f.Close()
		return nil, jeterr.New(jeterr.CorruptedFormat, "unrecognized format signature in %s", path)
	}
	c.format = detected
	log.WithField("format", detected.Version.String()).Debug("opened database file")
	return c, nil
}

// Create creates a brand-new, empty database file of the given format.
func Create(path string, d *format.Descriptor) (*Channel, error) {
	if d.ReadOnly {
		return nil, jeterr.New(jeterr.UnsupportedFormat, "cannot create a %s file (read-only format)", d.Version)
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, jeterr.Wrap(err, jeterr.IoFailure, "create %s", path)
	}
	c := &Channel{file: f, format: d, codec: Identity(), globalFree: NewInlineUsageMap(0)}

	header := make([]byte, d.PageSize)
	copy(header[d.SignatureOff:], d.Signature)
	if err := c.writeRaw(header, 0, 0, true); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return c, nil
}

func unmask(buf []byte, d *format.Descriptor) {
	for i, b := range d.HeaderMask {
		pos := d.MaskOffset + i
		if pos < len(buf) {
			buf[pos] ^= b
		}
	}
}

// SetCodec installs the per-page encrypt/decrypt handler (default: identity).
func (c *Channel) SetCodec(h CodecHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codec = h
}

// SetAutoSync enables/disables fsync-after-every-write.
func (c *Channel) SetAutoSync(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.autoSync = v
}

// Format returns the descriptor this channel was opened/created with.
func (c *Channel) Format() *format.Descriptor { return c.format }

func (c *Channel) pageCount() (uint32, error) {
	info, err := c.file.Stat()
	if err != nil {
		return 0, jeterr.Wrap(err, jeterr.IoFailure, "stat")
	}
	size := info.Size()
	ps := int64(c.format.PageSize)
	if size%ps != 0 {
		return 0, jeterr.New(jeterr.CorruptedFormat, "file size %d is not a multiple of page size %d", size, ps)
	}
	return uint32(size / ps), nil
}

// ReadPage reads one full page's bytes, applying the header mask (page 0)
// or the codec's decode (every other page).
func (c *Channel) ReadPage(pageNo uint32) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, err := c.pageCount()
	if err != nil {
		return nil, err
	}
	if pageNo >= count {
		return nil, jeterr.New(jeterr.CorruptedFormat, "page %d out of range (file has %d pages)", pageNo, count)
	}

	buf := make([]byte, c.format.PageSize)
	off := int64(pageNo) * int64(c.format.PageSize)
	n, err := c.file.ReadAt(buf, off)
	if err != nil || n != len(buf) {
		return nil, jeterr.Wrap(err, jeterr.IoFailure, "read page %d (%d/%d bytes)", pageNo, n, len(buf))
	}

	if pageNo == 0 {
		unmask(buf, c.format)
		return buf, nil
	}
	if err := c.codec.DecodePage(buf, pageNo); err != nil {
		return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "decode page %d", pageNo)
	}
	return buf, nil
}

// WritePage writes buf (a full or partial page image) at pageOffset within
// pageNo. When the write is partial and the codec cannot encode a partial
// page, the current page is read back, the slice is overlaid, and the
// full page is re-encoded before writing.
func (c *Channel) WritePage(buf []byte, pageNo uint32, pageOffset int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeRaw(buf, pageNo, pageOffset, false)
}

func (c *Channel) writeRaw(buf []byte, pageNo uint32, pageOffset int, creating bool) error {
	if c.readOnly {
		return jeterr.New(jeterr.UnsupportedFormat, "database is read-only")
	}
	ps := c.format.PageSize
	if !creating {
		count, err := c.pageCount()
		if err != nil {
			return err
		}
		if pageNo >= count {
			return jeterr.New(jeterr.CorruptedFormat, "write to page %d out of range (file has %d pages)", pageNo, count)
		}
	}

	full := buf
	partial := pageOffset != 0 || len(buf) != ps
	if pageNo != 0 && partial && !c.codec.CanEncodePartialPage() {
		current := make([]byte, ps)
		off := int64(pageNo) * int64(ps)
		if n, err := c.file.ReadAt(current, off); err != nil && n != ps {
			return jeterr.Wrap(err, jeterr.IoFailure, "read-before-write page %d", pageNo)
		}
		// Decode the on-disk bytes first so the overlay and the full-page
		// re-encode below both work on plaintext.
		if err := c.codec.DecodePage(current, pageNo); err != nil {
			return jeterr.Wrap(err, jeterr.CorruptedFormat, "decode page %d before partial write", pageNo)
		}
		copy(current[pageOffset:], buf)
		full = current
		pageOffset = 0
	}

	var encoded []byte
	var err error
	if pageNo == 0 {
		encoded = make([]byte, ps)
		copy(encoded, full)
		mask(encoded, c.format)
	} else {
		encoded, err = c.codec.EncodePage(full, pageNo, pageOffset)
		if err != nil {
			return jeterr.Wrap(err, jeterr.IoFailure, "encode page %d", pageNo)
		}
	}

	off := int64(pageNo)*int64(ps) + int64(pageOffset)
	n, err := c.file.WriteAt(encoded, off)
	if err != nil || n != len(encoded) {
		return jeterr.Wrap(err, jeterr.IoFailure, "write page %d at offset %d", pageNo, pageOffset)
	}

	if c.autoSync && !c.writeBracket {
		if err := c.file.Sync(); err != nil {
			return jeterr.Wrap(err, jeterr.IoFailure, "sync after page %d", pageNo)
		}
	}
	return nil
}

func mask(buf []byte, d *format.Descriptor) { unmask(buf, d) } // XOR is involutive

// StartWrite opens a batch-write bracket: auto-sync is deferred until
// FinishWrite closes it, even if an error occurs inside the bracket.
func (c *Channel) StartWrite() {
	c.mu.Lock()
	c.writeBracket = true
	c.mu.Unlock()
}

// FinishWrite closes the batch-write bracket and performs the deferred
// sync if auto-sync is enabled. Safe to call even after an error inside
// the bracket (the bracket is always released).
func (c *Channel) FinishWrite() error {
	c.mu.Lock()
	c.writeBracket = false
	autoSync := c.autoSync
	c.mu.Unlock()
	if autoSync {
		if err := c.file.Sync(); err != nil {
			return jeterr.Wrap(err, jeterr.IoFailure, "sync at end of write bracket")
		}
	}
	return nil
}

// AllocateNewPage returns a usable page number: a page reclaimed from the
// global free map when one is available, else one zero-filled page
// appended to the file. Either way the page leaves the free map.
func (c *Channel) AllocateNewPage() (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return 0, jeterr.New(jeterr.UnsupportedFormat, "database is read-only")
	}
	if pn, ok := c.globalFree.FirstPageNumber(); ok {
		c.globalFree.Remove(pn)
		zero := make([]byte, c.format.PageSize)
		off := int64(pn) * int64(c.format.PageSize)
		if _, err := c.file.WriteAt(zero, off); err != nil {
			return 0, jeterr.Wrap(err, jeterr.IoFailure, "reclaim page %d", pn)
		}
		log.WithField("page", pn).Debug("reclaimed free page")
		return pn, nil
	}
	count, err := c.pageCount()
	if err != nil {
		return 0, err
	}
	maxPages := uint32((c.format.MaxDBSizeMB * 1024 * 1024) / int64(c.format.PageSize))
	if count >= maxPages {
		return 0, jeterr.New(jeterr.IoFailure, "database at maximum size (%d pages)", maxPages)
	}
	buf := make([]byte, c.format.PageSize)
	off := int64(count) * int64(c.format.PageSize)
	if _, err := c.file.WriteAt(buf, off); err != nil {
		return 0, jeterr.Wrap(err, jeterr.IoFailure, "allocate page %d", count)
	}
	log.WithField("page", count).Debug("allocated page")
	return count, nil
}

// DeallocatePage overwrites the first four bytes with the invalid-page
// marker and returns the page number to the global free map, from which
// a later AllocateNewPage may hand it out again.
func (c *Channel) DeallocatePage(pageNo uint32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readOnly {
		return jeterr.New(jeterr.UnsupportedFormat, "database is read-only")
	}
	off := int64(pageNo) * int64(c.format.PageSize)
	if _, err := c.file.WriteAt(InvalidPageMarker[:], off); err != nil {
		return jeterr.Wrap(err, jeterr.IoFailure, "deallocate page %d", pageNo)
	}
	c.globalFree.Add(pageNo)
	return nil
}

// FreePageCount reports how many deallocated pages are currently awaiting
// reuse in the global free map.
func (c *Channel) FreePageCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.globalFree.Pages())
}

// PageCount returns the number of pages currently in the file.
func (c *Channel) PageCount() (uint32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.pageCount()
}

// Close flushes and releases the underlying file handle.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return nil
	}
	var syncErr error
	if !c.readOnly {
		syncErr = c.file.Sync()
	}
	closeErr := c.file.Close()
	c.file = nil
	if syncErr != nil {
		return jeterr.Wrap(syncErr, jeterr.IoFailure, "sync on close")
	}
	if closeErr != nil {
		return jeterr.Wrap(closeErr, jeterr.IoFailure, "close")
	}
	return nil
}
