package table

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
)

func blobTableDef() *schema.TableDef {
	return &schema.TableDef{
		Name: "Attachments",
		Columns: []*schema.Column{
			{Name: "Id", Ordinal: 0, Type: values.TypeInt32, Flags: schema.ColumnFlags{AutoNumber: schema.AutoNumberLong}},
			{Name: "Data", Ordinal: 1, Type: values.TypeOLE, Nullable: true},
		},
	}
}

// TestBlobArchiveRoundTrip exports a mix of inline, overflowed, and NULL
// OLE payloads into an lz4 archive and reads them back byte-identical.
func TestBlobArchiveRoundTrip(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(blobTableDef(), store, store)
	require.NoError(t, err)

	payloads := [][]byte{
		[]byte("tiny"),
		bytes.Repeat([]byte{0xCA, 0xFE}, 4000), // overflows to a long-value chain
		nil,
	}
	var ids []row.Id
	for _, p := range payloads {
		v := values.Null(values.TypeOLE)
		if p != nil {
			v = values.NewBytes(values.TypeOLE, p)
		}
		id, err := tbl.AddRow([]values.Value{values.AutoNumberRequested(), v})
		require.NoError(t, err)
		ids = append(ids, id)
	}

	var buf bytes.Buffer
	require.NoError(t, tbl.ExportBlobArchive(&buf, "Data", ids))

	got, err := ImportBlobArchive(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(payloads))
	assert.Equal(t, payloads[0], got[0])
	assert.Equal(t, payloads[1], got[1])
	assert.Nil(t, got[2])
}

// TestBlobArchiveRejectsWrongColumn checks the argument validation.
func TestBlobArchiveRejectsWrongColumn(t *testing.T) {
	ch := newTestChannel(t)
	store := newTestStore(ch)
	tbl, err := Create(blobTableDef(), store, store)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.Error(t, tbl.ExportBlobArchive(&buf, "Id", nil), "Id is not a long-value column")
	require.Error(t, tbl.ExportBlobArchive(&buf, "Missing", nil))
}
