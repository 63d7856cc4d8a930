package table

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jahlborn/jackcess-sub007/internal/format"
	"github.com/jahlborn/jackcess-sub007/internal/page"
	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

func newTestChannel(t *testing.T) *page.Channel {
	t.Helper()
	d, _ := format.For(format.VersionJet4)
	path := filepath.Join(t.TempDir(), "test.accdb")
	ch, err := page.Create(path, d)
	require.NoError(t, err)
	t.Cleanup(func() { ch.Close() })
	return ch
}

func newTestStore(ch *page.Channel) *PageStore {
	return NewPageStore(ch, page.NewInlineUsageMap(0))
}

func widgetsDef() *schema.TableDef {
	return &schema.TableDef{
		Name: "Widgets",
		Columns: []*schema.Column{
			{Name: "Id", Ordinal: 0, Type: values.TypeInt32, Flags: schema.ColumnFlags{AutoNumber: schema.AutoNumberLong, PartOfPrimaryKey: true}},
			{Name: "Name", Ordinal: 1, Type: values.TypeText, Nullable: true, Params: values.Params{CompressedUnicode: true}},
		},
		Indexes: []*schema.Index{
			{Name: "PrimaryKey", Primary: true, Unique: true, Columns: []schema.IndexColumn{{ColumnOrdinal: 0, Ascending: true}}},
		},
	}
}

func widgetOrdersDef() *schema.TableDef {
	return &schema.TableDef{
		Name: "WidgetOrders",
		Columns: []*schema.Column{
			{Name: "Id", Ordinal: 0, Type: values.TypeInt32, Flags: schema.ColumnFlags{AutoNumber: schema.AutoNumberLong, PartOfPrimaryKey: true}},
			{Name: "WidgetId", Ordinal: 1, Type: values.TypeInt32},
		},
		Indexes: []*schema.Index{
			{Name: "PrimaryKey", Primary: true, Unique: true, Columns: []schema.IndexColumn{{ColumnOrdinal: 0, Ascending: true}}},
			{
				Name:       "WidgetFK",
				Columns:    []schema.IndexColumn{{ColumnOrdinal: 1, Ascending: true}},
				ForeignKey: true,
				Reference:  &schema.ForeignKeyRef{TargetTable: "Widgets", TargetIndex: "PrimaryKey"},
			},
		},
		Relationships: []*schema.Relationship{
			{Name: "WidgetOrders_Widgets", FromTable: "WidgetOrders", FromColumns: []string{"WidgetId"}, ToTable: "Widgets", ToColumns: []string{"Id"}},
		},
	}
}

// TestTableAddGetUpdateDeleteRoundTrip checks that values
// written through AddRow read back identically, survive an UpdateRow that
// changes only one column (the other kept via KeepValue), and disappear
// after DeleteRow.
func TestTableAddGetUpdateDeleteRoundTrip(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(widgetsDef(), store, store)
	require.NoError(t, err)

	id, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "sprocket")})
	require.NoError(t, err)

	got, err := tbl.GetRow(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].Int())
	assert.Equal(t, "sprocket", got[1].String())

	require.NoError(t, tbl.UpdateRow(id, []values.Value{values.Keep(), values.NewText(values.TypeText, "widget")}))
	got, err = tbl.GetRow(id)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got[0].Int())
	assert.Equal(t, "widget", got[1].String())

	require.NoError(t, tbl.DeleteRow(id))
	_, err = tbl.GetRow(id)
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.NotFound))
}

// TestTableAutoNumberSequencingAndExplicitInsert checks auto-number
// sequencing: the Long auto-number counter increments per accepted row,
// any caller-supplied value is silently replaced by the next sequential
// number until explicit inserts are enabled, and once enabled an explicit
// value is honored (advancing the counter only when it exceeds the
// largest value already handed out).
func TestTableAutoNumberSequencingAndExplicitInsert(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(widgetsDef(), store, store)
	require.NoError(t, err)

	// The caller-supplied 13 on the second row is ignored: explicit
	// inserts are not enabled yet, so the rows number 1, 2, 3.
	id1, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "a")})
	require.NoError(t, err)
	id2, err := tbl.AddRow([]values.Value{values.NewInt(values.TypeInt32, 13), values.NewText(values.TypeText, "b")})
	require.NoError(t, err)
	id3, err := tbl.AddRow([]values.Value{values.Null(values.TypeInt32), values.NewText(values.TypeText, "c")})
	require.NoError(t, err)

	for i, id := range []row.Id{id1, id2, id3} {
		v, err := tbl.GetRow(id)
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), v[0].Int())
	}

	tbl.SetAllowAutoNumberInsert(true)
	_, err = tbl.AddRow([]values.Value{values.NewInt(values.TypeInt32, 0), values.NewText(values.TypeText, "bad")})
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.ValueOutOfRange))

	// An explicit value above the counter is stored as-is and advances the
	// counter.
	id4, err := tbl.AddRow([]values.Value{values.NewInt(values.TypeInt32, 100), values.NewText(values.TypeText, "d")})
	require.NoError(t, err)
	v4, err := tbl.GetRow(id4)
	require.NoError(t, err)
	assert.Equal(t, int64(100), v4[0].Int())

	id5, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "e")})
	require.NoError(t, err)
	v5, err := tbl.GetRow(id5)
	require.NoError(t, err)
	assert.Equal(t, int64(101), v5[0].Int(), "counter resumes past the largest explicit value ever accepted")
}

// TestTableUniqueIndexRejectsDuplicate exercises unique-key rejection through the table layer.
func TestTableUniqueIndexRejectsDuplicate(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(widgetsDef(), store, store)
	require.NoError(t, err)

	_, err = tbl.AddRow([]values.Value{values.NewInt(values.TypeInt32, 1), values.NewText(values.TypeText, "a")})
	require.NoError(t, err)

	tbl.SetAllowAutoNumberInsert(true)
	_, err = tbl.AddRow([]values.Value{values.NewInt(values.TypeInt32, 1), values.NewText(values.TypeText, "dup")})
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.UniquenessViolation))
}

// TestTableForeignKeyEnforcement checks that a child row
// referencing a nonexistent parent is rejected once enforcement is on, and
// accepted once the parent exists; deleting a referenced parent is refused
// while a child still points at it.
func TestTableForeignKeyEnforcement(t *testing.T) {
	ch := newTestChannel(t)
	parentStore := newTestStore(ch)
	childStore := newTestStore(ch)

	parent, err := Create(widgetsDef(), parentStore, parentStore)
	require.NoError(t, err)
	child, err := Create(widgetOrdersDef(), childStore, childStore)
	require.NoError(t, err)
	// Both participants carry the relationship (the Database layer mirrors
	// it automatically; at the table level it is wired by hand).
	parent.Def.Relationships = child.Def.Relationships

	resolver := func(name string) (*Table, error) {
		if schema.NameEqualFold(name, "Widgets") {
			return parent, nil
		}
		if schema.NameEqualFold(name, "WidgetOrders") {
			return child, nil
		}
		return nil, jeterr.New(jeterr.NotFound, "no such table %q", name)
	}
	child.SetTableResolver(resolver)
	parent.SetTableResolver(resolver)
	child.SetEnforceForeignKeys(true)
	parent.SetEnforceForeignKeys(true)

	_, err = child.AddRow([]values.Value{values.AutoNumberRequested(), values.NewInt(values.TypeInt32, 999)})
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.ReferentialIntegrityError))

	parentID, err := parent.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "sprocket")})
	require.NoError(t, err)
	parentRow, err := parent.GetRow(parentID)
	require.NoError(t, err)
	widgetPK := parentRow[0].Int()

	childID, err := child.AddRow([]values.Value{values.AutoNumberRequested(), values.NewInt(values.TypeInt32, widgetPK)})
	require.NoError(t, err)
	require.NotZero(t, childID.PageNo)

	err = parent.DeleteRow(parentID)
	require.Error(t, err)
	assert.True(t, jeterr.Is(err, jeterr.ReferentialIntegrityError))

	require.NoError(t, child.DeleteRow(childID))
	require.NoError(t, parent.DeleteRow(parentID))
}

// TestTableScanCursorForwardBackwardSymmetry checks forward/backward symmetry at the table-cursor layer.
func TestTableScanCursorForwardBackwardSymmetry(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(widgetsDef(), store, store)
	require.NoError(t, err)

	var ids []int64
	for i := 0; i < 5; i++ {
		id, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "x")})
		require.NoError(t, err)
		v, err := tbl.GetRow(id)
		require.NoError(t, err)
		ids = append(ids, v[0].Int())
	}

	fwd := tbl.NewTableScanCursor(Forward)
	var forward []int64
	for {
		_, vals, ok, err := fwd.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		forward = append(forward, vals[0].Int())
	}
	assert.Equal(t, ids, forward)

	back := tbl.NewTableScanCursor(Backward)
	var backward []int64
	for {
		_, vals, ok, err := back.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		backward = append(backward, vals[0].Int())
	}
	require.Len(t, backward, len(forward))
	for i := range forward {
		assert.Equal(t, forward[i], backward[len(backward)-1-i])
	}
}

// TestTableRowCount exercises RowCount's live-row-only contract across a
// delete.
func TestTableRowCount(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(widgetsDef(), store, store)
	require.NoError(t, err)

	var last values.Value = values.AutoNumberRequested()
	id, err := tbl.AddRow([]values.Value{last, values.NewText(values.TypeText, "a")})
	require.NoError(t, err)
	_, err = tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "b")})
	require.NoError(t, err)

	n, err := tbl.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, tbl.DeleteRow(id))
	n, err = tbl.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// TestIgnoreNullsIndexExcludesNullRows checks that an
// ignore-nulls index holds a strict subset of the table's live rows when
// some rows carry NULL in the indexed columns, and invariant 4's
// "respecting ignore-nulls" entry-count accounting.
func TestIgnoreNullsIndexExcludesNullRows(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	def := &schema.TableDef{
		Name: "Sparse",
		Columns: []*schema.Column{
			{Name: "Id", Ordinal: 0, Type: values.TypeInt32, Flags: schema.ColumnFlags{AutoNumber: schema.AutoNumberLong}},
			{Name: "Code", Ordinal: 1, Type: values.TypeText, Nullable: true, Params: values.Params{CompressedUnicode: true}},
		},
		Indexes: []*schema.Index{
			{Name: "ByCode", Unique: true, IgnoreNulls: true, Columns: []schema.IndexColumn{{ColumnOrdinal: 1, Ascending: true}}},
		},
	}
	tbl, err := Create(def, store, store)
	require.NoError(t, err)

	_, err = tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "aa")})
	require.NoError(t, err)
	nullID, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.Null(values.TypeText)})
	require.NoError(t, err)
	_, err = tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.Null(values.TypeText)})
	require.NoError(t, err, "two NULLs never violate uniqueness: the rows are not in the index at all")
	_, err = tbl.AddRow([]values.Value{values.AutoNumberRequested(), values.NewText(values.TypeText, "bb")})
	require.NoError(t, err)

	n, err := tbl.RowCount()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	stats, err := tbl.IndexStatsFor("ByCode")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntryCount, "NULL rows are excluded from the index")
	assert.Equal(t, 2, stats.UniqueEntryCount)

	cur, err := tbl.NewIndexCursor("ByCode", Forward)
	require.NoError(t, err)
	seen := 0
	for {
		_, _, ok, err := cur.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		seen++
	}
	assert.Equal(t, 2, seen, "index scan reaches a strict subset of live rows")

	// Deleting a NULL row must not disturb the index.
	require.NoError(t, tbl.DeleteRow(nullID))
	stats, err = tbl.IndexStatsFor("ByCode")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.EntryCount)
}
