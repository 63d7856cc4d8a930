package values

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/jahlborn/jackcess-sub007/jeterr"
)

// EncodeFixed writes v's row-physical bytes for every fixed-width numeric
// and date type.
func EncodeFixed(v Value, p Params) ([]byte, error) {
	switch v.typ {
	case TypeByte:
		return []byte{byte(v.i)}, nil
	case TypeInt16:
		buf := make([]byte, 2)
		binary.LittleEndian.PutUint16(buf, uint16(int16(v.i)))
		return buf, nil
	case TypeInt32, TypeComplexType:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(int32(v.i)))
		return buf, nil
	case TypeInt64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(v.i))
		return buf, nil
	case TypeFloat32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(float32(v.f)))
		return buf, nil
	case TypeDouble:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.f))
		return buf, nil
	case TypeCurrency:
		scaled := v.dec.Shift(4).Round(0).IntPart()
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, uint64(scaled))
		return buf, nil
	case TypeNumeric:
		return encodeNumeric(v.dec, p)
	case TypeDateTime:
		d := ToJetDays(v.t)
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(d))
		return buf, nil
	default:
		return nil, jeterr.New(jeterr.InvalidArgument, "EncodeFixed: not a fixed numeric type %v", v.typ)
	}
}

// DecodeFixed is the inverse of EncodeFixed.
func DecodeFixed(t DataType, buf []byte, p Params) (Value, error) {
	switch t {
	case TypeByte:
		if len(buf) < 1 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short BYTE field")
		}
		return NewInt(t, int64(buf[0])), nil
	case TypeInt16:
		if len(buf) < 2 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short INT field")
		}
		return NewInt(t, int64(int16(binary.LittleEndian.Uint16(buf)))), nil
	case TypeInt32, TypeComplexType:
		if len(buf) < 4 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short LONG field")
		}
		return NewInt(t, int64(int32(binary.LittleEndian.Uint32(buf)))), nil
	case TypeInt64:
		if len(buf) < 8 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short BIGINT field")
		}
		return NewInt(t, int64(binary.LittleEndian.Uint64(buf))), nil
	case TypeFloat32:
		if len(buf) < 4 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short FLOAT field")
		}
		return NewFloat(t, float64(math.Float32frombits(binary.LittleEndian.Uint32(buf)))), nil
	case TypeDouble:
		if len(buf) < 8 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short DOUBLE field")
		}
		return NewFloat(t, math.Float64frombits(binary.LittleEndian.Uint64(buf))), nil
	case TypeCurrency:
		if len(buf) < 8 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short CURRENCY field")
		}
		raw := int64(binary.LittleEndian.Uint64(buf))
		return NewDecimal(t, decimal.New(raw, -4)), nil
	case TypeNumeric:
		return decodeNumeric(buf, p)
	case TypeDateTime:
		if len(buf) < 8 {
			return Value{}, jeterr.New(jeterr.CorruptedFormat, "short DATETIME field")
		}
		d := math.Float64frombits(binary.LittleEndian.Uint64(buf))
		return NewDateTime(FromJetDays(d)), nil
	default:
		return Value{}, jeterr.New(jeterr.InvalidArgument, "DecodeFixed: not a fixed numeric type %v", t)
	}
}

// encodeNumeric produces the 17-byte NUMERIC wire form: a sign byte
// followed by a big-endian unsigned 16-byte magnitude, where the logical
// value equals sign * magnitude * 10^-scale.
func encodeNumeric(d decimal.Decimal, p Params) ([]byte, error) {
	scaled := d.Shift(int32(p.Scale)).Round(0)
	mag := new(big.Int).Abs(scaled.BigInt())

	maxMag := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(p.Precision)), nil)
	if mag.Cmp(maxMag) >= 0 {
		return nil, jeterr.New(jeterr.ValueOutOfRange, "numeric value does not fit precision %d scale %d", p.Precision, p.Scale)
	}

	out := make([]byte, 17)
	if scaled.Sign() < 0 {
		out[0] = 0x00
	} else {
		out[0] = 0x01
	}
	magBytes := mag.Bytes()
	if len(magBytes) > 16 {
		return nil, jeterr.New(jeterr.ValueOutOfRange, "numeric magnitude overflows 16 bytes")
	}
	copy(out[1+16-len(magBytes):], magBytes)
	return out, nil
}

func decodeNumeric(buf []byte, p Params) (Value, error) {
	if len(buf) < 17 {
		return Value{}, jeterr.New(jeterr.CorruptedFormat, "short NUMERIC field")
	}
	mag := new(big.Int).SetBytes(buf[1:17])
	d := decimal.NewFromBigInt(mag, -int32(p.Scale))
	if buf[0] == 0x00 {
		d = d.Neg()
	}
	return NewDecimal(TypeNumeric, d), nil
}
