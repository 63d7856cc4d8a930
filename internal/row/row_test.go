package row

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
)

func testColumns() []*schema.Column {
	return []*schema.Column{
		{Name: "A", Ordinal: 0, Type: values.TypeText, Nullable: true, Params: values.Params{CompressedUnicode: true}},
		{Name: "B", Ordinal: 1, Type: values.TypeInt32, Nullable: false},
		{Name: "C", Ordinal: 2, Type: values.TypeDouble, Nullable: true},
		{Name: "D", Ordinal: 3, Type: values.TypeBoolean, Nullable: false},
	}
}

// TestPackUnpackRoundTrip checks that write-then-read returns the
// same logical row.
func TestPackUnpackRoundTrip(t *testing.T) {
	cols := testColumns()
	vals := []values.Value{
		values.NewText(values.TypeText, "McCune"),
		values.NewInt(values.TypeInt32, 999),
		values.NewFloat(values.TypeDouble, 555.66),
		values.NewBool(true),
	}
	buf, err := PackRow(cols, vals)
	require.NoError(t, err)

	got, err := UnpackRow(cols, buf)
	require.NoError(t, err)
	require.Len(t, got, len(vals))
	assert.Equal(t, "McCune", got[0].String())
	assert.Equal(t, int64(999), got[1].Int())
	assert.Equal(t, 555.66, got[2].Float64())
	assert.Equal(t, true, got[3].Bool())
}

func TestPackUnpackWithNulls(t *testing.T) {
	cols := testColumns()
	vals := []values.Value{
		values.Null(values.TypeText),
		values.NewInt(values.TypeInt32, 1),
		values.Null(values.TypeDouble),
		values.NewBool(false),
	}
	buf, err := PackRow(cols, vals)
	require.NoError(t, err)
	got, err := UnpackRow(cols, buf)
	require.NoError(t, err)
	assert.True(t, got[0].IsNull())
	assert.Equal(t, int64(1), got[1].Int())
	assert.True(t, got[2].IsNull())
	assert.Equal(t, false, got[3].Bool())
}

// TestDataPageAddDeleteCompact exercises the directory/tombstone/compact
// cycle a single data page goes through under add/delete.
func TestDataPageAddDeleteCompact(t *testing.T) {
	buf := make([]byte, 512)
	dp := InitDataPage(buf, 0x0010)

	r0, err := dp.AddRow([]byte("hello"), 0)
	require.NoError(t, err)
	r1, err := dp.AddRow([]byte("world!"), 0)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), r0)
	assert.Equal(t, uint16(1), r1)
	assert.Equal(t, uint16(2), dp.RowCount())

	data, flags, err := dp.RowBytes(r0)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Zero(t, flags)

	require.NoError(t, dp.SetDeleted(r0, true))
	assert.True(t, dp.IsDeleted(r0))
	assert.False(t, dp.IsDeleted(r1))

	dp.Compact()
	// Row numbers survive compaction; row 1's bytes are still readable.
	data1, _, err := dp.RowBytes(r1)
	require.NoError(t, err)
	assert.Equal(t, "world!", string(data1))
}

// TestRowIdOrdering checks the total order: FIRST < (p,r) < LAST,
// with real ids ordered lexicographically by page then row.
func TestRowIdOrdering(t *testing.T) {
	a := Id{PageNo: 1, RowNo: 5}
	b := Id{PageNo: 1, RowNo: 6}
	c := Id{PageNo: 2, RowNo: 0}

	assert.True(t, Compare(First, a) < 0)
	assert.True(t, Compare(a, Last) < 0)
	assert.True(t, Compare(a, b) < 0)
	assert.True(t, Compare(b, c) < 0)
	assert.Equal(t, 0, Compare(First, First))
	assert.Equal(t, 0, Compare(Last, Last))
	assert.True(t, Compare(Last, First) > 0)
}

// fakeAllocator is a tiny in-memory PageAllocator for LongValueStore tests.
type fakeAllocator struct {
	pages    map[uint32][]byte
	pageSize int
	next     uint32
}

func newFakeAllocator(pageSize int) *fakeAllocator {
	return &fakeAllocator{pages: map[uint32][]byte{}, pageSize: pageSize, next: 1}
}

func (f *fakeAllocator) AllocatePage(pageType uint16) (uint32, []byte, error) {
	pn := f.next
	f.next++
	buf := make([]byte, f.pageSize)
	f.pages[pn] = buf
	return pn, buf, nil
}

func (f *fakeAllocator) ReadPage(pn uint32) ([]byte, error) { return f.pages[pn], nil }

func (f *fakeAllocator) WritePage(pn uint32, buf []byte) error {
	f.pages[pn] = buf
	return nil
}

// TestLongValueInlineAndOverflow checks that small values stay
// inline, large values overflow to a page chain and round-trip exactly.
func TestLongValueInlineAndOverflow(t *testing.T) {
	alloc := newFakeAllocator(512)
	store := NewLongValueStore(alloc)

	small := []byte("short text")
	ref, err := store.Put(small)
	require.NoError(t, err)
	assert.True(t, ref.IsInline())
	got, err := store.Get(ref)
	require.NoError(t, err)
	assert.Equal(t, small, got)

	big := make([]byte, 2030)
	for i := range big {
		big[i] = byte('a' + i%26)
	}
	ref2, err := store.Put(big)
	require.NoError(t, err)
	assert.False(t, ref2.IsInline())
	got2, err := store.Get(ref2)
	require.NoError(t, err)
	assert.Equal(t, big, got2)
}

// TestRowStateCachingAndInvalidation exercises the RowState
// contract: repeated positioning on one page reuses the cached page, a
// generation change drops the cache, and the deleted flag is surfaced.
func TestRowStateCachingAndInvalidation(t *testing.T) {
	alloc := newFakeAllocator(512)
	pn, buf, err := alloc.AllocatePage(0x0010)
	require.NoError(t, err)
	dp := InitDataPage(buf, 0x0010)
	r0, err := dp.AddRow([]byte("alpha"), 0)
	require.NoError(t, err)
	r1, err := dp.AddRow([]byte("beta"), 0)
	require.NoError(t, err)
	require.NoError(t, alloc.WritePage(pn, dp.Buf))

	st := NewRowState(alloc)
	data, deleted, err := st.PositionAtRowData(Id{PageNo: pn, RowNo: r0})
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.Equal(t, "alpha", string(data))

	data, _, err = st.PositionAtRowData(Id{PageNo: pn, RowNo: r1})
	require.NoError(t, err)
	assert.Equal(t, "beta", string(data))

	// Tombstone r0 behind the state's back, then invalidate: the state
	// re-reads and reports the deletion.
	require.NoError(t, dp.SetDeleted(r0, true))
	require.NoError(t, alloc.WritePage(pn, dp.Buf))
	st.Invalidate(st.Generation() + 1)
	_, deleted, err = st.PositionAtRowData(Id{PageNo: pn, RowNo: r0})
	require.NoError(t, err)
	assert.True(t, deleted)
}
