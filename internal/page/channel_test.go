package page

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jahlborn/jackcess-sub007/internal/format"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// TestChannelCreateOpenRoundTrip checks that a freshly created
// file can be reopened and its format is detected correctly from the
// mask-reversed page-0 signature.
func TestChannelCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round.accdb")
	d, ok := format.For(format.VersionJet4)
	require.True(t, ok)

	c, err := Create(path, d)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2, err := Open(path, false)
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, format.VersionJet4, c2.Format().Version)
}

// TestChannelCannotCreateReadOnlyFormat exercises the Jet3 format's
// ReadOnly descriptor flag being enforced on Create.
func TestChannelCannotCreateReadOnlyFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.mdb")
	d, ok := format.For(format.VersionJet3)
	require.True(t, ok)

	_, err := Create(path, d)
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.UnsupportedFormat))
}

// TestChannelReadWritePage checks the page round trip: a page
// written through WritePage reads back identically through ReadPage, with
// page 0's header mask applied/removed transparently.
func TestChannelReadWritePage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rw.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()

	pn, err := c.AllocateNewPage()
	require.NoError(t, err)
	assert.Equal(t, uint32(1), pn)

	payload := make([]byte, d.PageSize)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	require.NoError(t, c.WritePage(payload, pn, 0))

	got, err := c.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, payload, got)

	// Page 0 still carries its masked signature and round-trips too.
	page0, err := c.ReadPage(0)
	require.NoError(t, err)
	assert.Equal(t, d.Signature, page0[d.SignatureOff:d.SignatureOff+len(d.Signature)])
}

// TestChannelReadPageOutOfRange exercises the CorruptedFormat error for a
// page number beyond the file's current extent.
func TestChannelReadPageOutOfRange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oor.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.ReadPage(99)
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.CorruptedFormat))
}

// TestChannelReadOnlyRejectsWrites checks read-only mode:
// WritePage and AllocateNewPage must both refuse.
func TestChannelReadOnlyRejectsWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	require.NoError(t, c.Close())

	c2, err := Open(path, true)
	require.NoError(t, err)
	defer c2.Close()

	_, err = c2.AllocateNewPage()
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.UnsupportedFormat))

	err = c2.WritePage(make([]byte, d.PageSize), 0, 0)
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.UnsupportedFormat))
}

// TestChannelWriteBracketDefersSync confirms StartWrite/FinishWrite at
// least don't error and that auto-sync can be toggled around a batch.
func TestChannelWriteBracketDefersSync(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bracket.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()
	c.SetAutoSync(true)

	pn, err := c.AllocateNewPage()
	require.NoError(t, err)

	c.StartWrite()
	require.NoError(t, c.WritePage(make([]byte, d.PageSize), pn, 0))
	require.NoError(t, c.FinishWrite())
}

// TestChannelDeallocatePageMarksInvalid exercises the invalid-page marker
// contract DeallocatePage leaves behind for the owning UsageMap to observe.
func TestChannelDeallocatePageMarksInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dealloc.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()

	pn, err := c.AllocateNewPage()
	require.NoError(t, err)
	require.NoError(t, c.DeallocatePage(pn))

	got, err := c.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, InvalidPageMarker[:], got[:len(InvalidPageMarker)])
}

// TestChannelReusesDeallocatedPages exercises the free-list
// discipline: a deallocated page number is handed out again by the next
// allocation, zero-filled, instead of growing the file.
func TestChannelReusesDeallocatedPages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reuse.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()

	p1, err := c.AllocateNewPage()
	require.NoError(t, err)
	p2, err := c.AllocateNewPage()
	require.NoError(t, err)
	require.NotEqual(t, p1, p2)

	require.NoError(t, c.DeallocatePage(p1))
	assert.Equal(t, 1, c.FreePageCount())

	p3, err := c.AllocateNewPage()
	require.NoError(t, err)
	assert.Equal(t, p1, p3, "the freed page is reused")
	assert.Equal(t, 0, c.FreePageCount())

	got, err := c.ReadPage(p3)
	require.NoError(t, err)
	for _, b := range got[:16] {
		assert.Zero(t, b, "reclaimed page is zero-filled")
	}

	count, err := c.PageCount()
	require.NoError(t, err)
	assert.Equal(t, uint32(3), count, "file did not grow past header + two pages")
}

// xorCodec is a toy CodecHandler standing in for an encrypted-variant
// plug-in: it XORs every byte with a page-number-derived pad and declares
// it cannot encode partial pages, forcing the channel down its
// read-overlay-reencode path.
type xorCodec struct{}

func (xorCodec) pad(pageNo uint32) byte { return byte(pageNo)*7 + 0x5A }

func (c xorCodec) DecodePage(buf []byte, pageNo uint32) error {
	p := c.pad(pageNo)
	for i := range buf {
		buf[i] ^= p
	}
	return nil
}

func (c xorCodec) EncodePage(page []byte, pageNo uint32, pageOffset int) ([]byte, error) {
	p := c.pad(pageNo)
	out := make([]byte, len(page))
	for i, b := range page {
		out[i] = b ^ p
	}
	return out, nil
}

func (xorCodec) CanEncodePartialPage() bool { return false }
func (xorCodec) CanDecodeInline() bool      { return true }

// TestChannelCodecRoundTripAndPartialWrite exercises the codec contract:
// full pages round-trip through encode/decode, page 0 bypasses the codec
// entirely, and a partial write against a codec that cannot encode
// partial pages is widened to a full-page re-encode.
func TestChannelCodecRoundTripAndPartialWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "codec.accdb")
	d, _ := format.For(format.VersionJet4)
	c, err := Create(path, d)
	require.NoError(t, err)
	defer c.Close()
	c.SetCodec(xorCodec{})

	pn, err := c.AllocateNewPage()
	require.NoError(t, err)

	full := make([]byte, d.PageSize)
	for i := range full {
		full[i] = byte(i)
	}
	require.NoError(t, c.WritePage(full, pn, 0))
	got, err := c.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, full, got)

	// Partial write: overlay 16 bytes at offset 100; the rest of the page
	// must survive the widen-and-reencode.
	patch := make([]byte, 16)
	for i := range patch {
		patch[i] = 0xEE
	}
	require.NoError(t, c.WritePage(patch, pn, 100))
	got, err = c.ReadPage(pn)
	require.NoError(t, err)
	assert.Equal(t, patch, got[100:116])
	assert.Equal(t, full[:100], got[:100])
	assert.Equal(t, full[116:], got[116:])

	// Page 0 is masked, never codec-encoded: the signature still reads.
	page0, err := c.ReadPage(0)
	require.NoError(t, err)
	assert.Equal(t, d.Signature, page0[d.SignatureOff:d.SignatureOff+len(d.Signature)])
}
