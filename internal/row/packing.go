package row

import (
	"encoding/binary"

	"github.com/jahlborn/jackcess-sub007/internal/schema"
	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// wideRowOffsetWindow is the window size the format's jump table
// segments the variable-length offset table into, to keep
// per-entry offsets 8-bit. jetdb always stores offsets as 16-bit (a
// simplification of the format), so the jump table degenerates
// to a single segment; the constant is kept so the on-disk layout still
// names the concept the format is built around.
const wideRowOffsetWindow = 256

// KeepValue is the update-row sentinel meaning "leave this column's value
// untouched". It is never valid on insert.
var KeepValue = values.Keep()

// PackRow encodes one logical row (one values.Value per column, in
// schema.TableDef.Columns order) into its physical on-disk byte form:
// column count, fixed-length values, NULL bitmap,
// variable-length values, variable-length offset table, var-length count.
//
// Boolean columns are folded into the NULL bitmap as a value bit (not a
// nullability bit): this engine follows the common real-world case of
// NOT NULL boolean columns, so the format's boolean-as-bitmap-bit rule
// needs no second bit per boolean column.
func PackRow(cols []*schema.Column, vals []values.Value) ([]byte, error) {
	if len(vals) != len(cols) {
		return nil, jeterr.New(jeterr.InvalidArgument, "PackRow: %d values for %d columns", len(vals), len(cols))
	}

	nullBits := make([]bool, len(cols))
	var fixedRegion []byte
	var varValues [][]byte

	for i, c := range cols {
		v := vals[i]
		switch {
		case c.Type == values.TypeBoolean:
			nullBits[i] = !v.Bool() // 0 = true, 1 = false
		case v.IsNull():
			nullBits[i] = true
			if c.Type.FixedWidth() > 0 {
				fixedRegion = append(fixedRegion, make([]byte, c.Type.FixedWidth())...)
			} else {
				// Var-length columns still occupy one offset-table slot when
				// NULL, as a zero-length entry, so later columns' slots stay
				// aligned with their position in cols.
				varValues = append(varValues, nil)
			}
		case c.Type.FixedWidth() > 0:
			enc, err := values.EncodeInline(v, c.Params)
			if err != nil {
				return nil, jeterr.Wrap(err, jeterr.ValueOutOfRange, "column %s", c.Name)
			}
			fixedRegion = append(fixedRegion, enc...)
		default:
			// var-length or long-value column; long values are encoded by
			// the caller (RowStorage) into a LongValueRef cell before
			// PackRow is invoked, so by this point v carries either the
			// literal inline bytes or a pre-built pointer cell.
			enc, err := encodeVarCell(c, v)
			if err != nil {
				return nil, err
			}
			varValues = append(varValues, enc)
		}
	}

	out := make([]byte, 2)
	binary.LittleEndian.PutUint16(out, uint16(len(cols)))
	out = append(out, fixedRegion...)

	nullBitmapLen := (len(cols) + 7) / 8
	bitmap := make([]byte, nullBitmapLen)
	for i, isNull := range nullBits {
		if isNull {
			bitmap[i/8] |= 1 << uint(i%8)
		}
	}
	out = append(out, bitmap...)

	offsets := make([]uint16, 0, len(varValues)+1)
	cursor := uint16(0)
	for _, vv := range varValues {
		out = append(out, vv...)
		cursor += uint16(len(vv))
		offsets = append(offsets, cursor)
	}
	for _, off := range offsets {
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, off)
		out = append(out, buf...)
	}
	countBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(countBuf, uint16(len(varValues)))
	out = append(out, countBuf...)

	return out, nil
}

func encodeVarCell(c *schema.Column, v values.Value) ([]byte, error) {
	if c.Type.IsLongValue() {
		ref := v.LongRef()
		return encodeLongValueCell(ref), nil
	}
	switch c.Type {
	case values.TypeText:
		return values.EncodeText(v.String(), c.Params)
	default:
		return values.EncodeInline(v, c.Params)
	}
}

// UnpackRow is the inverse of PackRow, returning one values.Value per
// column in cols order. Long-value cells (MEMO/OLE) are returned as
// values.Value wrapping the LongValueRef; callers that need the full
// payload must resolve it via RowStorage's long-value reader.
func UnpackRow(cols []*schema.Column, buf []byte) ([]values.Value, error) {
	if len(buf) < 2 {
		return nil, jeterr.New(jeterr.CorruptedFormat, "row too short for column count")
	}
	n := int(binary.LittleEndian.Uint16(buf[0:2]))
	if n != len(cols) {
		return nil, jeterr.New(jeterr.CorruptedFormat, "row declares %d columns, schema has %d", n, len(cols))
	}
	pos := 2

	fixedOffsets := make([]int, len(cols))
	for i, c := range cols {
		fixedOffsets[i] = pos
		if w := c.Type.FixedWidth(); w > 0 {
			pos += w
		}
	}

	nullBitmapLen := (n + 7) / 8
	if pos+nullBitmapLen > len(buf) {
		return nil, jeterr.New(jeterr.CorruptedFormat, "row too short for NULL bitmap")
	}
	bitmap := buf[pos : pos+nullBitmapLen]
	pos += nullBitmapLen

	isNull := func(i int) bool { return bitmap[i/8]&(1<<uint(i%8)) != 0 }

	if len(buf) < 2 {
		return nil, jeterr.New(jeterr.CorruptedFormat, "row missing var-length count")
	}
	varCount := int(binary.LittleEndian.Uint16(buf[len(buf)-2:]))
	countFieldStart := len(buf) - 2
	offsetTableStart := countFieldStart - varCount*2
	if offsetTableStart < 0 {
		return nil, jeterr.New(jeterr.CorruptedFormat, "row var-length offset table overruns buffer")
	}
	offsets := make([]uint16, varCount)
	for i := 0; i < varCount; i++ {
		offsets[i] = binary.LittleEndian.Uint16(buf[offsetTableStart+i*2:])
	}
	varDataStart := pos
	varDataEnd := offsetTableStart

	out := make([]values.Value, len(cols))
	varIdx := 0
	varCursor := uint16(0)
	for i, c := range cols {
		if c.Type == values.TypeBoolean {
			out[i] = values.NewBool(!isNull(i))
			continue
		}
		if isNull(i) && c.Type.FixedWidth() > 0 {
			out[i] = values.Null(c.Type)
			continue
		}
		if c.Type.FixedWidth() > 0 {
			v, err := values.DecodeFixed(c.Type, buf[fixedOffsets[i]:fixedOffsets[i]+c.Type.FixedWidth()], c.Params)
			if err != nil {
				return nil, jeterr.Wrap(err, jeterr.CorruptedFormat, "column %s", c.Name)
			}
			out[i] = v
			continue
		}
		// variable-length column
		if varIdx >= varCount {
			return nil, jeterr.New(jeterr.CorruptedFormat, "missing var-length slot for column %s", c.Name)
		}
		end := offsets[varIdx]
		if int(varDataStart)+int(end) > varDataEnd {
			return nil, jeterr.New(jeterr.CorruptedFormat, "var-length column %s overruns row", c.Name)
		}
		cell := buf[varDataStart+int(varCursor) : varDataStart+int(end)]
		varCursor = end
		varIdx++

		if isNull(i) {
			out[i] = values.Null(c.Type)
			continue
		}
		v, err := decodeVarCell(c, cell)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func decodeVarCell(c *schema.Column, cell []byte) (values.Value, error) {
	if c.Type.IsLongValue() {
		ref, err := decodeLongValueCell(cell)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewLongValue(c.Type, ref), nil
	}
	switch c.Type {
	case values.TypeText:
		s, err := values.DecodeText(cell)
		if err != nil {
			return values.Value{}, err
		}
		return values.NewText(c.Type, s), nil
	default:
		return values.DecodeInline(c.Type, cell, c.Params)
	}
}
