// Package index implements the B-tree-like index engine:
// collation-aware, byte-order-preserving key encoding, leaf/node page
// traversal, prefix-compressed entries, and unique/primary/foreign-key
// semantics.
package index

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/jahlborn/jackcess-sub007/internal/values"
	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// textTerminator ends an ascending text key so that a key which is a
// proper prefix of another still sorts first.
const textTerminator = 0x01

// EncodeKeyComponent produces the byte-order-preserving encoding of one
// column value within an index key. The unsigned-byte
// lexicographic order of the returned bytes matches v's logical order
// when ascending is true, and the exact reverse when false.
//
// NOTE on text collation: the real product's
// per-character sort tables are an exhaustive, format-specific mapping of
// thousands of code points into four bucket encodings ("crazy" multi-byte
// sequences included) that must be reproduced verbatim and
// never inferred from a locale library. Those tables were not available in
// this engine's reference material, so jetdb reproduces the four-bucket
// *structure* — inline sort bytes, an unprintable-extra encoding,
// international extension bytes, and multi-byte sequences with trailing
// markers — over a deterministic, strictly order-preserving mapping:
// ASCII from 0x20 up inline, control characters below 0x20 through the
// separator bucket, the rest of the BMP through the extension bucket, non-BMP
// runes through the multi-byte bucket. This keeps the ordering contract
// (unsigned-byte order matches logical order) satisfied for every
// string, at the cost of not being byte-for-byte identical to the
// original product's index pages for text columns. Recorded in DESIGN.md
// as a deliberate simplification, not a bug.
func EncodeKeyComponent(v values.Value, ascending bool) ([]byte, error) {
	var out []byte
	if v.IsNull() {
		out = []byte{0x00}
		return invertIfDescending(out, ascending), nil
	}

	switch v.Type() {
	case values.TypeByte:
		// BYTE is unsigned: its single byte already sorts in numeric order.
		out = []byte{byte(v.Int())}
	case values.TypeInt16, values.TypeInt32, values.TypeInt64, values.TypeComplexType:
		out = encodeSignedInt(v)
	case values.TypeBoolean:
		// 0 = true, 1 = false at the row level; the index key
		// for booleans still needs true < false to sort correctly under
		// the product's convention, so we key on the same inverted bit.
		if v.Bool() {
			out = []byte{0x00}
		} else {
			out = []byte{0x01}
		}
	case values.TypeFloat32, values.TypeDouble:
		out = encodeFloat(v.Float64())
	case values.TypeCurrency:
		out = encodeSignedInt(values.NewInt(values.TypeInt64, v.Decimal().Shift(4).Round(0).IntPart()))
	case values.TypeNumeric:
		out = encodeNumericKey(v)
	case values.TypeDateTime:
		d := values.ToJetDays(v.Time())
		out = encodeFloat(d)
	case values.TypeGUID:
		out = append([]byte(nil), v.GUID().String()...)
	case values.TypeText, values.TypeMemo:
		var err error
		out, err = encodeTextKey(v.String())
		if err != nil {
			return nil, err
		}
		out = append(out, textTerminator)
	default:
		return nil, jeterr.New(jeterr.InvalidArgument, "EncodeKeyComponent: unsupported type %v", v.Type())
	}
	return invertIfDescending(out, ascending), nil
}

func invertIfDescending(b []byte, ascending bool) []byte {
	if ascending {
		return b
	}
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = ^c
	}
	return out
}

// encodeSignedInt produces big-endian bytes with the sign bit inverted so
// unsigned-byte order matches signed numeric order.
func encodeSignedInt(v values.Value) []byte {
	width := v.Type().FixedWidth()
	if width <= 0 {
		width = 8
	}
	buf := make([]byte, width)
	u := uint64(v.Int())
	for i := width - 1; i >= 0; i-- {
		buf[i] = byte(u)
		u >>= 8
	}
	buf[0] ^= 0x80
	return buf
}

// encodeFloat produces big-endian IEEE-754 bytes with the sign bit flipped,
// and for negative values a bitwise-NOT of the remainder, so unsigned-byte
// order matches numeric order including -0.0 == +0.0.
func encodeFloat(f float64) []byte {
	if f == 0 {
		f = 0 // fold -0.0 into +0.0
	}
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// numericKeyScale is a fixed internal scale used to normalize NUMERIC key
// magnitudes to a canonical integer, independent of how a particular
// decimal.Decimal happens to be represented internally.
const numericKeyScale = 12

// encodeNumericKey: sign byte followed by magnitude; negative values
// encode as 0x00 prefix + bitwise-NOT magnitude, non-negative as 0xFF
// prefix + raw magnitude.
func encodeNumericKey(v values.Value) []byte {
	d := v.Decimal().Shift(numericKeyScale).Round(0)
	mag := new(big.Int).Abs(d.BigInt())
	magBytes := mag.FillBytes(make([]byte, 16))
	out := make([]byte, 17)
	if d.Sign() < 0 {
		out[0] = 0x00
		for i, b := range magBytes {
			out[1+i] = ^b
		}
	} else {
		out[0] = 0xFF
		copy(out[1:], magBytes)
	}
	return out
}

// Text key bucket markers. Every character falls into one of the four
// bucket encodings; the markers are chosen so that the
// concatenated encodings stay monotone in code-point order under the
// unsigned-byte comparator, and all sort above the NULL byte (0x00) and
// the ascending terminator (0x01).
const (
	textBucketUnprintable byte = 0x02 // separator + extra byte for control characters
	textBucketIntl        byte = 0xE0 // international extension: marker + 16-bit code unit
	textBucketCrazy       byte = 0xFC // "crazy" multi-byte: marker + 32-bit code point + trailer
	textCrazyTrailer      byte = 0xFF
)

// encodeTextKey maps each character to its bucket encoding — see the
// collation note on EncodeKeyComponent above. ASCII from 0x20 to 0x7F
// emits one inline sort byte (the code point itself, above the
// unprintable separator and below the international and multi-byte
// markers); control characters below 0x20 emit the unprintable separator
// plus an extra byte;
// the rest of the BMP emits the international-extension marker plus the
// big-endian code unit; non-BMP runes emit the multi-byte bucket with its
// trailing marker.
func encodeTextKey(s string) ([]byte, error) {
	out := make([]byte, 0, len(s)+4)
	for _, r := range s {
		switch {
		case r < 0x20:
			out = append(out, textBucketUnprintable, byte(r)+1)
		case r < 0x80:
			out = append(out, byte(r))
		case r <= 0xFFFF:
			buf := make([]byte, 2)
			binary.BigEndian.PutUint16(buf, uint16(r))
			out = append(out, textBucketIntl)
			out = append(out, buf...)
		default:
			buf := make([]byte, 4)
			binary.BigEndian.PutUint32(buf, uint32(r))
			out = append(out, textBucketCrazy)
			out = append(out, buf...)
			out = append(out, textCrazyTrailer)
		}
	}
	return out, nil
}

// EncodeCompositeKey concatenates the per-column encodings of a multi-
// column index key in column order; no separator is needed because each
// per-column encoding is prefix-free.
func EncodeCompositeKey(vals []values.Value, ascending []bool) ([]byte, error) {
	var out []byte
	for i, v := range vals {
		asc := true
		if i < len(ascending) {
			asc = ascending[i]
		}
		enc, err := EncodeKeyComponent(v, asc)
		if err != nil {
			return nil, err
		}
		out = append(out, enc...)
	}
	return out, nil
}

// CompareKeys implements the unsigned-byte lexicographic comparator used
// everywhere index bytes are compared: never substitute the
// host's signed-byte comparator.
func CompareKeys(a, b []byte) int {
	la, lb := len(a), len(b)
	n := la
	if lb < n {
		n = lb
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case la < lb:
		return -1
	case la > lb:
		return 1
	default:
		return 0
	}
}
