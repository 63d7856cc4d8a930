package table

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pierrec/lz4/v4"

	"github.com/jahlborn/jackcess-sub007/internal/row"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// ExportBlobArchive snapshots the MEMO/OLE long-value payload of colName
// for every row in ids into a single lz4-framed archive: an ambient
// convenience the table layer offers for copying long-value chains out of
// a database file without round-tripping each one through AddRow/GetRow.
// This never touches the on-disk page bytes (Jet pages are never
// compressed) — only the extracted copies passed to w are
// lz4-compressed.
func (t *Table) ExportBlobArchive(w io.Writer, colName string, ids []row.Id) error {
	col, _ := t.Def.ColumnByName(colName)
	if col == nil {
		return jeterr.New(jeterr.InvalidArgument, "no such column %q", colName)
	}
	if !col.Type.IsLongValue() {
		return jeterr.New(jeterr.InvalidArgument, "column %q is not a long-value type", colName)
	}

	zw := lz4.NewWriter(w)
	defer zw.Close()
	bw := bufio.NewWriter(zw)

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(ids)))
	if _, err := bw.Write(lenBuf[:]); err != nil {
		return err
	}

	for _, id := range ids {
		vals, err := t.GetRowRaw(id)
		if err != nil {
			return err
		}
		var payload []byte
		if !vals[col.Ordinal].IsNull() {
			payload, err = t.longValues.Get(vals[col.Ordinal].LongRef())
			if err != nil {
				return err
			}
		}
		binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(payload)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if len(payload) > 0 {
			if _, err := bw.Write(payload); err != nil {
				return err
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return zw.Close()
}

// ImportBlobArchive reads back an archive written by ExportBlobArchive,
// returning each row's payload bytes in order (NULL entries come back as
// a nil slice). It does not write anything into the table; callers pass
// the results to AddRow/UpdateRow for the same or a different table.
func ImportBlobArchive(r io.Reader) ([][]byte, error) {
	zr := lz4.NewReader(r)
	var lenBuf [4]byte
	if _, err := io.ReadFull(zr, lenBuf[:]); err != nil {
		return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "blob archive count")
	}
	count := binary.LittleEndian.Uint32(lenBuf[:])

	out := make([][]byte, count)
	for i := range out {
		if _, err := io.ReadFull(zr, lenBuf[:]); err != nil {
			return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "blob archive entry length")
		}
		n := binary.LittleEndian.Uint32(lenBuf[:])
		if n == 0 {
			continue
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(zr, buf); err != nil {
			return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "blob archive entry payload")
		}
		out[i] = buf
	}
	return out, nil
}
